package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/adammhaile/elpis/internal/daemon"
	"github.com/adammhaile/elpis/internal/music"
	"github.com/adammhaile/elpis/internal/scrobbler"
	"github.com/adammhaile/elpis/pkg/lastfm"
)

// ratingServer answers every call with ok and remembers the method and
// track of each request.
func ratingServer(t *testing.T) (*httptest.Server, func() [][2]string) {
	t.Helper()
	var mu sync.Mutex
	var calls [][2]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		calls = append(calls, [2]string{r.FormValue("method"), r.FormValue("track")})
		mu.Unlock()
		_, _ = w.Write([]byte(`<lfm status="ok"></lfm>`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() [][2]string {
		mu.Lock()
		defer mu.Unlock()
		return append([][2]string(nil), calls...)
	}
}

func testRateClient(t *testing.T, url string) *scrobbler.Client {
	t.Helper()
	client, err := scrobbler.New(lastfm.Config{APIKey: "key", APISecret: "secret", SessionKey: "sk", BaseURL: url})
	if err != nil {
		t.Fatalf("scrobbler.New: %v", err)
	}
	return client
}

func findAction(t *testing.T, use string) rateAction {
	t.Helper()
	for _, a := range rateActions {
		if a.use == use {
			return a
		}
	}
	t.Fatalf("no %s action", use)
	return rateAction{}
}

func TestRateTrack_SendsCorrectedNames(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	current := &music.Track{
		ID:       "/org/mpris/MediaPlayer2/Track/7",
		Name:     "Song A",
		Artist:   "Artist",
		Duration: 200 * time.Second,
		Position: 20 * time.Second,
		State:    music.StatePlaying,
	}

	state := daemon.NewState(stateFile)
	_, play, err := state.Observe(current)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	ct := lastfm.CorrectedTrack{
		Track:          lastfm.Track{Artist: "Artist", Track: "Song A (Live)", StartedAt: play.StartedAt},
		TrackCorrected: true,
	}
	if !state.ApplyCorrection(ct) {
		t.Fatal("correction not applied")
	}
	if err := state.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	srv, calls := ratingServer(t)
	client := testRateClient(t, srv.URL)

	sent, err := rateTrack(context.Background(), client, nil, stateFile, current, findAction(t, "love"))
	if err != nil {
		t.Fatalf("love: %v", err)
	}
	if sent.Track != "Song A (Live)" {
		t.Errorf("sent track = %q, want the corrected name", sent.Track)
	}

	// ban after love clears the love first.
	if _, err := rateTrack(context.Background(), client, nil, stateFile, current, findAction(t, "ban")); err != nil {
		t.Fatalf("ban: %v", err)
	}

	want := [][2]string{
		{"track.love", "Song A (Live)"},
		{"track.unlove", "Song A (Live)"},
		{"track.ban", "Song A (Live)"},
	}
	got := calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, got[i], want[i])
		}
	}

	ps, err := daemon.LoadState(stateFile)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if ps.Rating != scrobbler.RatingBan {
		t.Errorf("recorded rating = %v, want ban", ps.Rating)
	}
}

func TestRateTrack_NoDaemonState(t *testing.T) {
	srv, calls := ratingServer(t)
	client := testRateClient(t, srv.URL)
	track := &music.Track{Artist: "Broadcast", Name: "Pendulum"}

	sent, err := rateTrack(context.Background(), client, nil, filepath.Join(t.TempDir(), "state.json"), track, findAction(t, "unban"))
	if err != nil {
		t.Fatalf("unban: %v", err)
	}
	if sent.Track != "Pendulum" {
		t.Errorf("sent track = %q", sent.Track)
	}
	if got := calls(); len(got) != 1 || got[0][0] != "track.unban" {
		t.Errorf("calls = %v, want one track.unban", got)
	}
}
