package scrobbler

import (
	"time"
)

// Eligibility rules applied while a track is playing.
const (
	// MinimumTrackDuration is the shortest track that can be scrobbled.
	MinimumTrackDuration = 30 * time.Second

	// ScrobblePercentage of the track must be played before it is scrobbled.
	ScrobblePercentage = 0.5

	// MaxScrobbleThreshold caps the play time required for long tracks.
	MaxScrobbleThreshold = 4 * time.Minute

	// NowPlayingFraction of the track must be played before now playing
	// is announced. Short skips therefore never reach the service.
	NowPlayingFraction = 0.05
)

// ShouldScrobble reports whether a track of trackDuration that has been
// playing for playedDuration is due for a scrobble:
//
//	trackDuration >= 30s && (played >= 4m || played/trackDuration >= 0.5)
func ShouldScrobble(trackDuration, playedDuration time.Duration) bool {
	if !IsEligible(trackDuration) {
		return false
	}
	if playedDuration >= MaxScrobbleThreshold {
		return true
	}
	return float64(playedDuration)/float64(trackDuration) >= ScrobblePercentage
}

// ShouldAnnounce reports whether now playing is due. An unknown duration
// (zero) announces immediately.
func ShouldAnnounce(trackDuration, playedDuration time.Duration) bool {
	if trackDuration <= 0 {
		return true
	}
	return float64(playedDuration)/float64(trackDuration) >= NowPlayingFraction
}

// ScrobbleThreshold returns the play time at which ShouldScrobble turns
// true, or -1 for a track that can never be scrobbled.
func ScrobbleThreshold(trackDuration time.Duration) time.Duration {
	if !IsEligible(trackDuration) {
		return time.Duration(-1)
	}

	threshold := time.Duration(float64(trackDuration) * ScrobblePercentage)
	if threshold > MaxScrobbleThreshold {
		threshold = MaxScrobbleThreshold
	}
	return threshold
}

// IsEligible checks the duration floor alone.
func IsEligible(trackDuration time.Duration) bool {
	return trackDuration >= MinimumTrackDuration
}
