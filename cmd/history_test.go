package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/adammhaile/elpis/internal/history"
)

func TestRenderHistory(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	entries := []history.Entry{
		{Lane: "scrobble", Artist: "Stereolab", Track: "Miss Modular", SubmittedAt: at, Kind: "none"},
		{Lane: "now_playing", Artist: "Broadcast", Track: "Tears in the Typing Pool", SubmittedAt: at, Kind: "none", Corrected: true},
		{Lane: "track.love", Artist: "Broadcast", Track: "Pendulum", SubmittedAt: at, Kind: "service_rejected", ErrorCode: 6, Message: "Track not found"},
	}

	var buf bytes.Buffer
	renderHistory(&buf, entries)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header, 3 rows and 1 message:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "SUBMITTED") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "ok") || !strings.Contains(lines[1], "Stereolab - Miss Modular") {
		t.Errorf("scrobble row = %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "Tears in the Typing Pool *") {
		t.Errorf("corrected row = %q", lines[2])
	}
	if !strings.Contains(lines[3], "service_rejected (6)") {
		t.Errorf("failed row = %q", lines[3])
	}
	if !strings.HasSuffix(lines[4], "Track not found") {
		t.Errorf("message row = %q", lines[4])
	}

	// Lane column is padded to the widest lane.
	lane := strings.Index(lines[1], "scrobble")
	if lane != strings.Index(lines[3], "track.love") {
		t.Errorf("lane columns not aligned:\n%s", buf.String())
	}
}
