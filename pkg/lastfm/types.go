package lastfm

import (
	"time"
)

// Track represents a music track for scrobbling, now playing updates
// and rating calls.
type Track struct {
	Artist      string        // Required: Artist name
	Track       string        // Required: Track name
	Album       string        // Optional: Album name
	AlbumArtist string        // Optional: Album artist (if different from track artist)
	TrackNumber int           // Optional: Track number on album
	MBID        string        // Optional: MusicBrainz track ID
	Duration    time.Duration // Optional for now playing, required for scrobbles
	StartedAt   time.Time     // Required for scrobbles only
}

// CorrectedTrack is a Track as the service reported it back. A set flag
// means the service replaced the corresponding field.
type CorrectedTrack struct {
	Track

	TrackCorrected       bool
	ArtistCorrected      bool
	AlbumCorrected       bool
	AlbumArtistCorrected bool
}

// Corrected reports whether any field was replaced.
func (c CorrectedTrack) Corrected() bool {
	return c.TrackCorrected || c.ArtistCorrected || c.AlbumCorrected || c.AlbumArtistCorrected
}

// AuthToken is a short-lived token from auth.getToken.
type AuthToken struct {
	Value   string
	Created time.Time
}

// TokenLifetime is how long an AuthToken may be used after creation.
const TokenLifetime = 60 * time.Minute

// Valid reports whether the token can still be used at now.
func (t *AuthToken) Valid(now time.Time) bool {
	if t == nil || t.Value == "" {
		return false
	}
	return now.Sub(t.Created) < TokenLifetime
}

// Session represents an authenticated session from auth.getSession.
type Session struct {
	Key        string // Session key for authenticated requests
	Username   string // Last.fm username
	Subscriber bool   // Whether user is a subscriber
}

// IgnoredMessage is the service's reason for ignoring a submission.
// Code 0 means it was not ignored.
type IgnoredMessage struct {
	Code    int
	Message string
}

// Ignored codes returned by track.scrobble and track.updateNowPlaying.
const (
	IgnoredArtist            = 1
	IgnoredTrack             = 2
	IgnoredTimestampTooOld   = 3
	IgnoredTimestampTooNew   = 4
	IgnoredDailyLimitReached = 5
)

// ClockSkew reports whether the item was ignored for its timestamp.
func (m IgnoredMessage) ClockSkew() bool {
	return m.Code == IgnoredTimestampTooOld || m.Code == IgnoredTimestampTooNew
}

// Response holds what every track call reports back.
type Response struct {
	Track     CorrectedTrack
	Ignored   IgnoredMessage
	Err       error
	ErrorCode int
}

// Base returns the shared response fields.
func (r *Response) Base() *Response {
	return r
}

// Result is implemented by every track call response.
type Result interface {
	Base() *Response
}

// NowPlayingResponse is the outcome of track.updateNowPlaying.
type NowPlayingResponse struct {
	Response
}

// ScrobbleResponse is the outcome of track.scrobble.
type ScrobbleResponse struct {
	Response
	Accepted  int
	Timestamp int64
}

// RatingResponse is the outcome of a love, unlove, ban or unban call.
type RatingResponse struct {
	Response
	Method string
}

// Success reports whether the rating call was accepted.
func (r *RatingResponse) Success() bool {
	return r.ErrorCode == 0 && r.Err == nil
}

// Fail records err on r. ErrorCode becomes the service code for an
// *Error and ErrCodeLocal for anything else.
func (r *Response) Fail(err error) {
	r.Err = err
	r.ErrorCode = ErrCodeLocal
	if apiErr, ok := asAPIError(err); ok {
		r.ErrorCode = apiErr.Code
	}
}
