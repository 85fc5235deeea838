package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// createTestJournal creates an in-memory journal for testing
func createTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test journal: %v", err)
	}
	t.Cleanup(func() {
		_ = j.Close()
	})
	return j
}

func TestOpen(t *testing.T) {
	t.Run("in-memory database", func(t *testing.T) {
		j := createTestJournal(t)
		if j.db == nil {
			t.Error("journal database is nil")
		}
	})

	t.Run("file-based database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")

		j, err := Open(path)
		if err != nil {
			t.Fatalf("failed to open file journal: %v", err)
		}
		defer func() { _ = j.Close() }()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected database file to exist: %v", err)
		}
	})
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Lane: "now_playing", Artist: "Low", Track: "Words", SubmittedAt: base},
		{Lane: "scrobble", Artist: "Low", Track: "Words", Album: "I Could Live in Hope",
			StartedAt: base.Add(-3 * time.Minute), SubmittedAt: base.Add(time.Minute), Corrected: true},
		{Lane: "scrobble", Artist: "Low", Track: "Lazy", SubmittedAt: base.Add(2 * time.Minute),
			Kind: "authentication_failure", ErrorCode: 9, Message: "Invalid session key"},
	}
	for _, e := range entries {
		id, err := j.Record(ctx, e)
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if id <= 0 {
			t.Errorf("expected positive id, got %d", id)
		}
	}

	all, err := j.Recent(ctx, Filter{})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Track != "Lazy" || all[2].Lane != "now_playing" {
		t.Errorf("expected newest first, got %q then ... %q", all[0].Track, all[2].Lane)
	}

	scrobble := all[1]
	if !scrobble.OK() {
		t.Errorf("expected scrobble to be ok, kind %q", scrobble.Kind)
	}
	if !scrobble.Corrected {
		t.Error("expected corrected flag to round trip")
	}
	if !scrobble.StartedAt.Equal(base.Add(-3 * time.Minute)) {
		t.Errorf("expected started_at %v, got %v", base.Add(-3*time.Minute), scrobble.StartedAt)
	}
	if !all[2].StartedAt.IsZero() {
		t.Errorf("expected zero started_at for now playing, got %v", all[2].StartedAt)
	}

	failed, err := j.Recent(ctx, Filter{FailedOnly: true})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ErrorCode != 9 || failed[0].OK() {
		t.Errorf("expected the single code 9 failure, got %+v", failed)
	}

	limited, err := j.Recent(ctx, Filter{Lane: "scrobble", Limit: 1})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(limited) != 1 || limited[0].Track != "Lazy" {
		t.Errorf("expected newest scrobble only, got %+v", limited)
	}
}

func TestJournal_Count(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := j.Record(ctx, Entry{Lane: "scrobble", Artist: "A", Track: "B"}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if _, err := j.Record(ctx, Entry{Lane: "scrobble", Artist: "A", Track: "B", Kind: "transport"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	total, err := j.Count(ctx, false)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 4 {
		t.Errorf("expected 4 entries, got %d", total)
	}

	failed, err := j.Count(ctx, true)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if failed != 1 {
		t.Errorf("expected 1 failure, got %d", failed)
	}
}

func TestJournal_IgnoredCountsAsFailed(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	if _, err := j.Record(ctx, Entry{Lane: "scrobble", Artist: "A", Track: "B"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := j.Record(ctx, Entry{Lane: "scrobble", Artist: "A", Track: "C",
		Kind: KindIgnored, ErrorCode: 1, Message: "Artist was ignored"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	failed, err := j.Recent(ctx, Filter{FailedOnly: true})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Track != "C" || failed[0].OK() {
		t.Errorf("expected the ignored scrobble, got %+v", failed)
	}
}

func TestJournal_Cleanup(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	old := Entry{Lane: "scrobble", Artist: "A", Track: "old", SubmittedAt: now.Add(-30 * 24 * time.Hour)}
	recent := Entry{Lane: "scrobble", Artist: "A", Track: "recent", SubmittedAt: now.Add(-time.Hour)}
	for _, e := range []Entry{old, recent} {
		if _, err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	deleted, err := j.Cleanup(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	left, err := j.Recent(ctx, Filter{})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(left) != 1 || left[0].Track != "recent" {
		t.Errorf("expected only the recent entry to remain, got %+v", left)
	}
}

func TestJournal_RecordDefaultsSubmittedAt(t *testing.T) {
	j := createTestJournal(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	if _, err := j.Record(context.Background(), Entry{Lane: "track.love", Artist: "A", Track: "B"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	got, err := j.Recent(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 || !got[0].SubmittedAt.Equal(now) || got[0].Kind != "none" {
		t.Errorf("unexpected entry %+v", got)
	}
}
