package scrobbler

import (
	"context"
	"fmt"

	"github.com/adammhaile/elpis/internal/history"
	"github.com/adammhaile/elpis/pkg/lastfm"
	"github.com/rs/zerolog"
)

// Rating is the user's opinion of a track.
type Rating int

const (
	RatingNone Rating = iota
	RatingLove
	RatingBan
)

func (r Rating) String() string {
	switch r {
	case RatingLove:
		return "love"
	case RatingBan:
		return "ban"
	default:
		return "none"
	}
}

// ParseRating parses the output of Rating.String.
func ParseRating(s string) (Rating, error) {
	switch s {
	case "love":
		return RatingLove, nil
	case "ban":
		return RatingBan, nil
	case "none", "":
		return RatingNone, nil
	default:
		return RatingNone, fmt.Errorf("unknown rating %q", s)
	}
}

// RatingService sends rating calls. *lastfm.TrackService satisfies it.
type RatingService interface {
	Love(ctx context.Context, track lastfm.Track) (*lastfm.RatingResponse, error)
	Unlove(ctx context.Context, track lastfm.Track) (*lastfm.RatingResponse, error)
	Ban(ctx context.Context, track lastfm.Track) (*lastfm.RatingResponse, error)
	Unban(ctx context.Context, track lastfm.Track) (*lastfm.RatingResponse, error)
}

// Rater turns rating changes into rating calls. Calls bypass the queue.
type Rater struct {
	service  RatingService
	recorder Recorder
	logger   zerolog.Logger
}

// NewRater creates a Rater. recorder may be nil.
func NewRater(service RatingService, recorder Recorder, logger zerolog.Logger) *Rater {
	return &Rater{
		service:  service,
		recorder: recorder,
		logger:   logger.With().Str("component", "rater").Logger(),
	}
}

type rateCall func(context.Context, lastfm.Track) (*lastfm.RatingResponse, error)

// RatingChanged issues the calls for a change from one rating to another.
// It returns nil, nil when the rating did not change. Switching between
// love and ban clears the old rating first, and the returned response is
// the one for the last call made.
//
//	none -> love   track.love
//	none -> ban    track.ban
//	love -> none   track.unlove
//	ban  -> none   track.unban
//	love -> ban    track.unlove, track.ban
//	ban  -> love   track.unban, track.love
func (r *Rater) RatingChanged(ctx context.Context, track lastfm.Track, from, to Rating) (*lastfm.RatingResponse, error) {
	if from == to {
		return nil, nil
	}

	var resp *lastfm.RatingResponse
	for _, call := range r.calls(from, to) {
		var err error
		resp, err = call(ctx, track)
		if resp != nil {
			r.record(ctx, resp)
		}
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("kind", lastfm.KindOf(err).String()).
				Str("from", from.String()).
				Str("to", to.String()).
				Str("track", track.Track).
				Msg("Rating call failed")
			return resp, fmt.Errorf("failed to change rating to %s: %w", to, err)
		}
		r.logger.Info().
			Str("method", resp.Method).
			Str("track", track.Track).
			Str("artist", track.Artist).
			Msg("Rating updated")
	}
	return resp, nil
}

func (r *Rater) calls(from, to Rating) []rateCall {
	var calls []rateCall
	switch from {
	case RatingLove:
		calls = append(calls, r.service.Unlove)
	case RatingBan:
		calls = append(calls, r.service.Unban)
	}
	switch to {
	case RatingLove:
		calls = append(calls, r.service.Love)
	case RatingBan:
		calls = append(calls, r.service.Ban)
	}
	return calls
}

func (r *Rater) record(ctx context.Context, resp *lastfm.RatingResponse) {
	if r.recorder == nil {
		return
	}
	entry := history.Entry{
		Lane:      resp.Method,
		Artist:    resp.Track.Artist,
		Track:     resp.Track.Track.Track,
		Album:     resp.Track.Album,
		Kind:      lastfm.KindOf(resp.Err).String(),
		ErrorCode: resp.ErrorCode,
	}
	if resp.Err != nil {
		entry.Message = resp.Err.Error()
	}
	if _, err := r.recorder.Record(ctx, entry); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to record rating")
	}
}
