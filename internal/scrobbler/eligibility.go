package scrobbler

import (
	"time"
)

// Status is the playback status reported by the player.
type Status int

const (
	StatusStopped Status = iota
	StatusPlaying
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "stopped"
	}
}

// Sample is one progress report for the current track.
type Sample struct {
	TrackID string
	Total   time.Duration
	Elapsed time.Duration
	Status  Status
}

// Due tells the caller which submissions the latest sample triggered.
// Restarted is set when the sample began a new play of a track.
type Due struct {
	Restarted  bool
	NowPlaying bool
	Scrobble   bool
}

// Tracker decides, sample by sample, when a play becomes due for now
// playing and for a scrobble. Each fires at most once per play.
//
// A new play begins when the track ID changes or when playback returns
// to Playing from anything other than Paused.
//
// Tracker is not safe for concurrent use; it belongs to the poll loop.
type Tracker struct {
	trackID   string
	status    Status
	observed  bool
	announced bool
	scrobbled bool
}

// NewTracker returns a tracker with no current play.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe feeds one sample and reports what became due.
func (t *Tracker) Observe(s Sample) Due {
	var due Due

	restart := !t.observed || s.TrackID != t.trackID
	if s.Status == StatusPlaying && t.status != StatusPlaying && t.status != StatusPaused {
		restart = true
	}
	if restart {
		t.trackID = s.TrackID
		t.announced = false
		t.scrobbled = false
		due.Restarted = true
	}
	t.observed = true
	t.status = s.Status

	if s.Status != StatusPlaying {
		return due
	}

	if !t.announced && ShouldAnnounce(s.Total, s.Elapsed) {
		t.announced = true
		due.NowPlaying = true
	}
	if !t.scrobbled && ShouldScrobble(s.Total, s.Elapsed) {
		t.scrobbled = true
		due.Scrobble = true
	}
	return due
}

// Reset forgets the current play.
func (t *Tracker) Reset() {
	*t = Tracker{}
}

// TrackID returns the ID of the current play, or "" before the first sample.
func (t *Tracker) TrackID() string {
	return t.trackID
}
