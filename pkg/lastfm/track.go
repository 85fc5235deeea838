package lastfm

import (
	"context"
	"net/http"
)

// TrackService issues rating calls. Each one is sent immediately.
type TrackService struct {
	client *Client
}

// Love marks the track as loved.
func (s *TrackService) Love(ctx context.Context, track Track) (*RatingResponse, error) {
	return s.rate(ctx, "track.love", track)
}

// Unlove removes the loved mark.
func (s *TrackService) Unlove(ctx context.Context, track Track) (*RatingResponse, error) {
	return s.rate(ctx, "track.unlove", track)
}

// Ban marks the track as banned.
func (s *TrackService) Ban(ctx context.Context, track Track) (*RatingResponse, error) {
	return s.rate(ctx, "track.ban", track)
}

// Unban removes the ban.
func (s *TrackService) Unban(ctx context.Context, track Track) (*RatingResponse, error) {
	return s.rate(ctx, "track.unban", track)
}

// rate sends a rating call. Rating calls return no metadata, so the
// response carries the track as given; pass the CorrectedTrack from an
// earlier submission to rate the canonical name.
func (s *TrackService) rate(ctx context.Context, method string, track Track) (*RatingResponse, error) {
	if err := ValidateTrack(track); err != nil {
		return nil, err
	}
	session, err := s.client.authedSession()
	if err != nil {
		return nil, err
	}

	resp := &RatingResponse{
		Response: Response{Track: CorrectedTrack{Track: track}},
		Method:   method,
	}
	params := map[string]string{
		"artist": track.Artist,
		"track":  track.Track,
	}
	if _, err := s.client.call(ctx, http.MethodPost, method, params, session); err != nil {
		resp.Fail(err)
		return resp, err
	}
	return resp, nil
}
