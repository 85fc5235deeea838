package scrobbler

import (
	"context"
	"errors"
	"testing"

	"github.com/adammhaile/elpis/pkg/lastfm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRatings struct {
	methods []string
	err     error
}

func (f *fakeRatings) do(method string, track lastfm.Track) (*lastfm.RatingResponse, error) {
	f.methods = append(f.methods, method)
	resp := &lastfm.RatingResponse{Method: method}
	resp.Track.Track = track
	if f.err != nil {
		resp.Fail(f.err)
		return resp, f.err
	}
	return resp, nil
}

func (f *fakeRatings) Love(_ context.Context, t lastfm.Track) (*lastfm.RatingResponse, error) {
	return f.do("track.love", t)
}

func (f *fakeRatings) Unlove(_ context.Context, t lastfm.Track) (*lastfm.RatingResponse, error) {
	return f.do("track.unlove", t)
}

func (f *fakeRatings) Ban(_ context.Context, t lastfm.Track) (*lastfm.RatingResponse, error) {
	return f.do("track.ban", t)
}

func (f *fakeRatings) Unban(_ context.Context, t lastfm.Track) (*lastfm.RatingResponse, error) {
	return f.do("track.unban", t)
}

func TestRater_RatingChanged(t *testing.T) {
	track := lastfm.Track{Artist: "Broadcast", Track: "Tears in the Typing Pool"}

	tests := []struct {
		from, to Rating
		want     []string
	}{
		{RatingNone, RatingLove, []string{"track.love"}},
		{RatingNone, RatingBan, []string{"track.ban"}},
		{RatingLove, RatingNone, []string{"track.unlove"}},
		{RatingBan, RatingNone, []string{"track.unban"}},
		{RatingBan, RatingLove, []string{"track.unban", "track.love"}},
		{RatingLove, RatingBan, []string{"track.unlove", "track.ban"}},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			svc := &fakeRatings{}
			rec := &fakeRecorder{}
			r := NewRater(svc, rec, zerolog.Nop())

			resp, err := r.RatingChanged(context.Background(), track, tt.from, tt.to)
			require.NoError(t, err)
			require.True(t, resp.Success())
			require.Equal(t, tt.want, svc.methods)
			require.Equal(t, tt.want[len(tt.want)-1], resp.Method)

			entries := rec.all()
			require.Len(t, entries, len(tt.want))
			for i, e := range entries {
				require.Equal(t, tt.want[i], e.Lane)
				require.Equal(t, "none", e.Kind)
			}
		})
	}
}

// A failed unlove leaves the love in place, so no ban is sent.
func TestRater_SwitchStopsAtFirstFailure(t *testing.T) {
	svc := &fakeRatings{err: &lastfm.Error{Code: lastfm.ErrCodeOperationFailed, Message: "Operation failed"}}
	r := NewRater(svc, nil, zerolog.Nop())

	resp, err := r.RatingChanged(context.Background(), lastfm.Track{Artist: "A", Track: "B"}, RatingLove, RatingBan)
	require.Error(t, err)
	require.Equal(t, "track.unlove", resp.Method)
	require.Equal(t, []string{"track.unlove"}, svc.methods)
}

func TestRater_Unchanged(t *testing.T) {
	svc := &fakeRatings{}
	r := NewRater(svc, nil, zerolog.Nop())

	for _, rating := range []Rating{RatingNone, RatingLove, RatingBan} {
		resp, err := r.RatingChanged(context.Background(), lastfm.Track{Artist: "A", Track: "B"}, rating, rating)
		require.NoError(t, err)
		require.Nil(t, resp)
	}
	require.Empty(t, svc.methods)
}

func TestRater_Failure(t *testing.T) {
	svc := &fakeRatings{err: &lastfm.Error{Code: lastfm.ErrCodeInvalidSessionKey, Message: "Invalid session key"}}
	rec := &fakeRecorder{}
	r := NewRater(svc, rec, zerolog.Nop())

	resp, err := r.RatingChanged(context.Background(), lastfm.Track{Artist: "A", Track: "B"}, RatingNone, RatingLove)
	require.Error(t, err)
	require.False(t, resp.Success())
	require.Equal(t, lastfm.KindAuthenticationFailure, lastfm.KindOf(err))

	var apiErr *lastfm.Error
	require.True(t, errors.As(err, &apiErr))

	entries := rec.all()
	require.Len(t, entries, 1)
	require.Equal(t, 9, entries[0].ErrorCode)
	require.Equal(t, "authentication_failure", entries[0].Kind)
}

func TestParseRating(t *testing.T) {
	for _, r := range []Rating{RatingNone, RatingLove, RatingBan} {
		got, err := ParseRating(r.String())
		require.NoError(t, err)
		require.Equal(t, r, got)
	}
	_, err := ParseRating("meh")
	require.Error(t, err)
}
