package music

import (
	"context"
	"time"
)

// Track represents a music track with its metadata and current state
type Track struct {
	ID          string        // Player-assigned track id, stable for one queue entry
	Name        string        // Track name/title
	Artist      string        // Artist name
	Album       string        // Album name
	AlbumArtist string        // Album artist, if the player reports one
	TrackNumber int           // Position on the album, 0 if unknown
	MBID        string        // MusicBrainz track id, if tagged
	Duration    time.Duration // Total track duration, 0 if unknown
	Position    time.Duration // Current playback position
	State       PlayState     // Current playback state
	Player      string        // Bus name of the reporting player
}

// PlayState represents the current playback state of the music player
type PlayState int

const (
	StateStopped PlayState = iota // No track playing
	StatePlaying                  // Track is currently playing
	StatePaused                   // Track is paused
)

// String returns a human-readable representation of the PlayState
func (s PlayState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Client defines the interface for interacting with a music player
type Client interface {
	// GetCurrentTrack returns the currently playing/paused track, or nil if stopped
	GetCurrentTrack(ctx context.Context) (*Track, error)

	// IsRunning checks if a player is available
	IsRunning(ctx context.Context) (bool, error)

	// Play resumes playback
	Play(ctx context.Context) error

	// Pause pauses playback
	Pause(ctx context.Context) error

	// PlayPause toggles between play and pause
	PlayPause(ctx context.Context) error

	// NextTrack skips to the next track
	NextTrack(ctx context.Context) error

	// PreviousTrack goes to the previous track
	PreviousTrack(ctx context.Context) error

	// Close releases the player connection
	Close() error
}
