package scrobbler

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/adammhaile/elpis/pkg/lastfm"
)

// lastfmServer is an httptest fake of the Last.fm endpoint that answers
// from a per-method table of XML bodies.
type lastfmServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]string
	calls     []string
}

func newLastfmServer(t *testing.T, responses map[string]string) *lastfmServer {
	t.Helper()

	s := &lastfmServer{responses: responses}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		method := r.FormValue("method")

		s.mu.Lock()
		s.calls = append(s.calls, method)
		body, ok := s.responses[method]
		s.mu.Unlock()

		if !ok {
			body = `<lfm status="failed"><error code="3">Invalid Method</error></lfm>`
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *lastfmServer) set(method, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method] = body
}

func (s *lastfmServer) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == method {
			n++
		}
	}
	return n
}

// playedTrack returns a 200s track that started 3 minutes before now.
func playedTrack(name string, now time.Time) lastfm.Track {
	return lastfm.Track{
		Artist:    "Stereolab",
		Track:     name,
		Album:     "Dots and Loops",
		Duration:  200 * time.Second,
		StartedAt: now.Add(-3 * time.Minute),
	}
}

func okNowPlaying(track lastfm.Track) *lastfm.NowPlayingResponse {
	resp := &lastfm.NowPlayingResponse{}
	resp.Track.Track = track
	return resp
}

func okScrobble(track lastfm.Track) *lastfm.ScrobbleResponse {
	resp := &lastfm.ScrobbleResponse{Accepted: 1, Timestamp: track.StartedAt.Unix()}
	resp.Track.Track = track
	return resp
}

const (
	nowPlayingOKXML   = `<lfm status="ok"><nowplaying><track corrected="0">T</track><artist corrected="0">A</artist><album corrected="0"></album><albumArtist corrected="0"></albumArtist><ignoredMessage code="0"></ignoredMessage></nowplaying></lfm>`
	scrobbleOKXML     = `<lfm status="ok"><scrobbles accepted="1" ignored="0"><scrobble><track corrected="0">T</track><artist corrected="0">A</artist><album corrected="0"></album><albumArtist corrected="0"></albumArtist><timestamp>1700000000</timestamp><ignoredMessage code="0"></ignoredMessage></scrobble></scrobbles></lfm>`
	invalidSessionXML = `<lfm status="failed"><error code="9">Invalid session key - Please re-authenticate</error></lfm>`
)
