package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adammhaile/elpis/internal/music"
	"github.com/adammhaile/elpis/internal/scrobbler"
	"github.com/adammhaile/elpis/pkg/lastfm"
)

// PlayState is the daemon's view of the current play.
type PlayState struct {
	Track     *music.Track     `json:"track,omitempty"`      // Current track (nil if stopped)
	StartedAt time.Time        `json:"started_at"`           // When this play began
	Announced bool             `json:"announced"`            // Now playing was queued
	Scrobbled bool             `json:"scrobbled"`            // Scrobble was queued
	Rating    scrobbler.Rating `json:"rating"`               // Rating given during this play
	RatedAt   time.Time        `json:"rated_at,omitempty"`   // When Rating was set
	UpdatedAt time.Time        `json:"updated_at,omitempty"` // Last sample time

	// Corrected is the service's canonical copy of the track, once a
	// submission for this play came back with corrections.
	Corrected *lastfm.Track `json:"corrected,omitempty"`
}

// State turns player samples into eligibility decisions and keeps the
// current play, optionally mirrored to a JSON file for `elpis now`.
type State struct {
	mu       sync.Mutex
	current  PlayState
	tracker  *scrobbler.Tracker
	filePath string
	now      func() time.Time

	// Writes are throttled because the poller samples every second.
	persistInterval time.Duration
	lastPersist     time.Time
	dirty           bool
}

// NewState creates a State. filePath may be empty to disable persistence.
func NewState(filePath string) *State {
	return &State{
		tracker:         scrobbler.NewTracker(),
		filePath:        filePath,
		now:             time.Now,
		persistInterval: 5 * time.Second,
	}
}

// Observe feeds one poll result. A nil track means nothing is playing.
func (s *State) Observe(track *music.Track) (scrobbler.Due, PlayState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if track == nil {
		due := s.tracker.Observe(scrobbler.Sample{TrackID: s.tracker.TrackID(), Status: scrobbler.StatusStopped})
		if s.current.Track == nil {
			return due, s.current, nil
		}
		s.current = PlayState{UpdatedAt: now}
		return due, s.current, s.persist()
	}

	due := s.tracker.Observe(scrobbler.Sample{
		TrackID: track.ID,
		Total:   track.Duration,
		Elapsed: track.Position,
		Status:  statusOf(track.State),
	})

	if due.Restarted {
		s.current = PlayState{
			Track:     track,
			StartedAt: now.Add(-track.Position),
		}
	} else {
		s.current.Track = track
	}
	s.current.UpdatedAt = now
	if due.NowPlaying {
		s.current.Announced = true
	}
	if due.Scrobble {
		s.current.Scrobbled = true
	}

	if due.Restarted || due.NowPlaying || due.Scrobble {
		return due, s.current, s.persist()
	}
	return due, s.current, s.throttledPersist()
}

// ApplyCorrection stores ct for the current play if it belongs to it and
// the service changed anything. It reports whether ct was stored.
func (s *State) ApplyCorrection(ct lastfm.CorrectedTrack) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Track == nil || !ct.Corrected() || !ct.StartedAt.Equal(s.current.StartedAt) {
		return false
	}
	t := ct.Track
	s.current.Corrected = &t
	s.dirty = true
	return true
}

// Snapshot returns a copy of the current play.
func (s *State) Snapshot() PlayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reset forgets the current play.
func (s *State) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = PlayState{}
	s.tracker.Reset()
	return s.persist()
}

// Flush writes pending changes, if any.
func (s *State) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persist()
}

func statusOf(st music.PlayState) scrobbler.Status {
	switch st {
	case music.StatePlaying:
		return scrobbler.StatusPlaying
	case music.StatePaused:
		return scrobbler.StatusPaused
	default:
		return scrobbler.StatusStopped
	}
}

// throttledPersist writes only if persistInterval has passed since the
// last write. Must be called with lock held.
func (s *State) throttledPersist() error {
	if s.now().Sub(s.lastPersist) < s.persistInterval {
		s.dirty = true
		return nil
	}
	return s.persist()
}

// persist saves the current state to disk. A newer rating that `elpis
// love` and friends wrote for the same play is adopted first.
// Must be called with lock held
func (s *State) persist() error {
	if s.filePath == "" {
		return nil // No persistence configured
	}

	if disk, err := LoadState(s.filePath); err == nil && samePlay(disk, s.current) && disk.RatedAt.After(s.current.RatedAt) {
		s.current.Rating = disk.Rating
		s.current.RatedAt = disk.RatedAt
	}

	if err := writeState(s.filePath, s.current); err != nil {
		return err
	}
	s.lastPersist = s.now()
	s.dirty = false
	return nil
}

// writeState writes ps atomically via temp file + rename.
func writeState(filePath string, ps PlayState) error {
	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, filePath)
}

func samePlay(a, b PlayState) bool {
	return a.Track != nil && b.Track != nil && a.Track.ID == b.Track.ID && a.StartedAt.Equal(b.StartedAt)
}

// LoadState reads a state file written by a running daemon.
func LoadState(filePath string) (PlayState, error) {
	var ps PlayState
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ps, err
	}
	err = json.Unmarshal(data, &ps)
	return ps, err
}

// SaveRating records r for play in the state file. It fails with
// ErrPlayChanged if the file has moved on to another play since play was
// loaded.
func SaveRating(filePath string, play PlayState, r scrobbler.Rating, at time.Time) error {
	current, err := LoadState(filePath)
	if err != nil {
		return err
	}
	if !samePlay(current, play) {
		return ErrPlayChanged
	}
	current.Rating = r
	current.RatedAt = at
	return writeState(filePath, current)
}
