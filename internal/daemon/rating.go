package daemon

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/adammhaile/elpis/internal/music"
	"github.com/adammhaile/elpis/internal/scrobbler"
	"github.com/adammhaile/elpis/pkg/lastfm"
	"github.com/rs/zerolog"
)

// ErrPlayChanged is returned by SaveRating when the state file no longer
// records the play being rated.
var ErrPlayChanged = errors.New("daemon: recorded play changed")

// Matches reports whether p is a play of t, by player track id when both
// have one and by artist and name otherwise. Corrected names match too.
func (p PlayState) Matches(t *music.Track) bool {
	if p.Track == nil || t == nil {
		return false
	}
	if p.Track.ID != "" && t.ID != "" {
		return p.Track.ID == t.ID
	}
	if sameNames(p.Track.Artist, p.Track.Name, t) {
		return true
	}
	return p.Corrected != nil && sameNames(p.Corrected.Artist, p.Corrected.Track, t)
}

func sameNames(artist, name string, t *music.Track) bool {
	return strings.EqualFold(artist, t.Artist) && strings.EqualFold(name, t.Name)
}

// Target is the track rating calls are sent for: the service's corrected
// copy once there is one.
func (p PlayState) Target() lastfm.Track {
	if p.Corrected != nil {
		return *p.Corrected
	}
	return trackOf(p.Track)
}

// Rate changes the rating of track to to.
//
// When stateFile records a play of track, the play's rating is the previous
// rating, the call carries the corrected names and the new rating is written
// back for the daemon to adopt. Otherwise, or when the recorded rating is
// already to, assumed is taken as the previous rating so the call is still
// sent.
func Rate(ctx context.Context, rater *scrobbler.Rater, stateFile string, track *music.Track, assumed, to scrobbler.Rating, logger zerolog.Logger) (*lastfm.RatingResponse, lastfm.Track, error) {
	target := trackOf(track)
	from := assumed

	play, err := LoadState(stateFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Str("path", stateFile).Msg("Failed to read daemon state")
	}
	matched := err == nil && play.Matches(track)
	if matched {
		target = play.Target()
		if play.Rating != to {
			from = play.Rating
		}
	}

	resp, err := rater.RatingChanged(ctx, target, from, to)
	if err != nil {
		return resp, target, err
	}

	if matched {
		if err := SaveRating(stateFile, play, to, time.Now()); err != nil {
			logger.Warn().Err(err).Msg("Failed to record rating in daemon state")
		}
	}
	return resp, target, nil
}
