package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScrobbleService provides the now playing and scrobble calls.
type ScrobbleService struct {
	client *Client
	now    func() time.Time
}

// Limits applied by ValidateScrobble right before a scrobble is sent.
// They are deliberately a little looser than the eligibility rules in
// internal/scrobbler so an item accepted there is never rejected here.
const (
	// ScrobbleMinDuration is the shortest track Last.fm accepts.
	ScrobbleMinDuration = 30 * time.Second

	// ScrobbleMaxWait caps the required play time.
	ScrobbleMaxWait = 4 * time.Minute

	// ScrobbleFraction of the track must have elapsed since StartedAt.
	ScrobbleFraction = 0.51

	// ScrobbleTolerance is subtracted from the required play time to
	// absorb sampling jitter.
	ScrobbleTolerance = 5 * time.Second
)

// ValidateTrack checks the fields every track call requires.
func ValidateTrack(t Track) error {
	if strings.TrimSpace(t.Artist) == "" {
		return &ArgumentError{Field: "artist", Err: ErrMissingField}
	}
	if strings.TrimSpace(t.Track) == "" {
		return &ArgumentError{Field: "track", Err: ErrMissingField}
	}
	return nil
}

// ValidateScrobble checks that t may be scrobbled at now: it must have a
// start time, be at least ScrobbleMinDuration long, and have been
// playing for min(ScrobbleFraction of its duration, ScrobbleMaxWait)
// less ScrobbleTolerance.
func ValidateScrobble(t Track, now time.Time) error {
	if err := ValidateTrack(t); err != nil {
		return err
	}
	if t.StartedAt.IsZero() {
		return &ArgumentError{Field: "started_at", Err: ErrMissingField}
	}
	if t.Duration < ScrobbleMinDuration {
		return fmt.Errorf("%w: %v < %v", ErrTrackTooShort, t.Duration, ScrobbleMinDuration)
	}

	required := time.Duration(float64(t.Duration) * ScrobbleFraction)
	if required > ScrobbleMaxWait {
		required = ScrobbleMaxWait
	}
	required -= ScrobbleTolerance

	if elapsed := now.Sub(t.StartedAt); elapsed < required {
		return fmt.Errorf("%w: %v of %v", ErrNotPlayedEnough, elapsed.Truncate(time.Second), required)
	}
	return nil
}

// UpdateNowPlaying updates the "now playing" status on Last.fm.
//
// This should be called when a track starts playing. It does not count
// as a scrobble. The returned response is non-nil whenever the request
// was attempted, so its Track can be threaded forward even on failure.
func (s *ScrobbleService) UpdateNowPlaying(ctx context.Context, track Track) (*NowPlayingResponse, error) {
	if err := ValidateTrack(track); err != nil {
		return nil, err
	}
	session, err := s.client.authedSession()
	if err != nil {
		return nil, err
	}

	resp := &NowPlayingResponse{Response: Response{Track: CorrectedTrack{Track: track}}}

	env, err := s.client.call(ctx, http.MethodPost, "track.updateNowPlaying", s.trackParams(track, false), session)
	if err != nil {
		resp.Fail(err)
		return resp, err
	}

	var body struct {
		NowPlaying correctionNode `xml:"nowplaying"`
	}
	if err := unmarshalInner(env.Inner, &body); err != nil {
		err = fmt.Errorf("lastfm: failed to parse now playing response: %w", err)
		resp.Fail(err)
		return resp, err
	}

	resp.Track = applyCorrections(track, body.NowPlaying)
	resp.Ignored = body.NowPlaying.ignored()
	return resp, nil
}

// Scrobble submits a single scrobble to Last.fm.
//
// The track is checked with ValidateScrobble first; a track that fails
// that check is rejected before any request is made. An item the
// service ignores for its timestamp is reported with ErrClockSkew.
func (s *ScrobbleService) Scrobble(ctx context.Context, track Track) (*ScrobbleResponse, error) {
	if err := ValidateScrobble(track, s.now()); err != nil {
		return nil, err
	}
	session, err := s.client.authedSession()
	if err != nil {
		return nil, err
	}

	resp := &ScrobbleResponse{Response: Response{Track: CorrectedTrack{Track: track}}}

	env, err := s.client.call(ctx, http.MethodPost, "track.scrobble", s.trackParams(track, true), session)
	if err != nil {
		resp.Fail(err)
		return resp, err
	}

	var body struct {
		Scrobbles struct {
			Accepted int            `xml:"accepted,attr"`
			Ignored  int            `xml:"ignored,attr"`
			Items    []scrobbleNode `xml:"scrobble"`
		} `xml:"scrobbles"`
	}
	if err := unmarshalInner(env.Inner, &body); err != nil {
		err = fmt.Errorf("lastfm: failed to parse scrobble response: %w", err)
		resp.Fail(err)
		return resp, err
	}

	resp.Accepted = body.Scrobbles.Accepted
	if len(body.Scrobbles.Items) > 0 {
		item := body.Scrobbles.Items[0]
		resp.Track = applyCorrections(track, item.correctionNode)
		resp.Ignored = item.ignored()
		resp.Timestamp, _ = strconv.ParseInt(strings.TrimSpace(item.Timestamp), 10, 64)
	}

	if resp.Ignored.ClockSkew() {
		err := fmt.Errorf("%w: %s", ErrClockSkew, resp.Ignored.Message)
		resp.Fail(err)
		return resp, err
	}
	return resp, nil
}

func (s *ScrobbleService) trackParams(t Track, withTimestamp bool) map[string]string {
	params := map[string]string{
		"artist": t.Artist,
		"track":  t.Track,
	}
	if t.Album != "" {
		params["album"] = t.Album
	}
	if t.AlbumArtist != "" {
		params["albumArtist"] = t.AlbumArtist
	}
	if t.Duration > 0 {
		params["duration"] = strconv.Itoa(int(t.Duration / time.Second))
	}
	if t.TrackNumber > 0 {
		params["trackNumber"] = strconv.Itoa(t.TrackNumber)
	}
	if t.MBID != "" {
		if _, err := uuid.Parse(t.MBID); err == nil {
			params["mbid"] = t.MBID
		} else {
			s.client.logDebugf("lastfm: dropping invalid mbid %q: %v", t.MBID, err)
		}
	}
	if withTimestamp {
		params["timestamp"] = strconv.FormatInt(t.StartedAt.Unix(), 10)
	}
	return params
}

// correctableField is an element like <artist corrected="1">Name</artist>.
type correctableField struct {
	Corrected string `xml:"corrected,attr"`
	Value     string `xml:",chardata"`
}

func (f correctableField) apply(dst *string) bool {
	v := strings.TrimSpace(f.Value)
	if f.Corrected != "1" || v == "" || v == *dst {
		return false
	}
	*dst = v
	return true
}

type correctionNode struct {
	Track          correctableField `xml:"track"`
	Artist         correctableField `xml:"artist"`
	Album          correctableField `xml:"album"`
	AlbumArtist    correctableField `xml:"albumArtist"`
	IgnoredMessage struct {
		Code int    `xml:"code,attr"`
		Text string `xml:",chardata"`
	} `xml:"ignoredMessage"`
}

func (n correctionNode) ignored() IgnoredMessage {
	return IgnoredMessage{Code: n.IgnoredMessage.Code, Message: strings.TrimSpace(n.IgnoredMessage.Text)}
}

type scrobbleNode struct {
	correctionNode
	Timestamp string `xml:"timestamp"`
}

// applyCorrections returns a copy of t with every field the service
// flagged as corrected replaced. t itself is not modified.
func applyCorrections(t Track, n correctionNode) CorrectedTrack {
	out := CorrectedTrack{Track: t}
	out.TrackCorrected = n.Track.apply(&out.Track.Track)
	out.ArtistCorrected = n.Artist.apply(&out.Track.Artist)
	out.AlbumCorrected = n.Album.apply(&out.Track.Album)
	out.AlbumArtistCorrected = n.AlbumArtist.apply(&out.Track.AlbumArtist)
	return out
}
