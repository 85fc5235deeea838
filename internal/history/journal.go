// Package history keeps a local journal of submission outcomes.
//
// The journal is write-only from the daemon's point of view: nothing in
// it is ever read back into the submission queue.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is an append-only log of submission outcomes backed by SQLite.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// KindIgnored is the Kind of a submission the service accepted but did not
// count. Its ignored code is stored as the ErrorCode.
const KindIgnored = "ignored"

// Entry is one recorded outcome.
type Entry struct {
	ID          int64
	Lane        string // "now_playing", "scrobble" or a rating method
	Artist      string
	Track       string
	Album       string
	StartedAt   time.Time
	SubmittedAt time.Time
	Kind        string // lastfm.Kind of the failure, KindIgnored, or "none" on success
	ErrorCode   int
	Message     string
	Corrected   bool
}

// OK reports whether the submission succeeded.
func (e Entry) OK() bool {
	return e.Kind == "" || e.Kind == "none"
}

// Open opens (creating if needed) the journal at path. Use ":memory:"
// for a throwaway journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			lane TEXT NOT NULL,
			artist TEXT NOT NULL,
			track TEXT NOT NULL,
			album TEXT,
			started_at INTEGER,
			submitted_at INTEGER NOT NULL,
			kind TEXT NOT NULL DEFAULT 'none',
			error_code INTEGER NOT NULL DEFAULT 0,
			message TEXT,
			corrected BOOLEAN DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_outcomes_submitted ON outcomes(submitted_at);
		CREATE INDEX IF NOT EXISTS idx_outcomes_kind ON outcomes(kind, submitted_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record appends e and returns its row id. A zero SubmittedAt is
// replaced by the current time.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = j.now()
	}
	if e.Kind == "" {
		e.Kind = "none"
	}

	var startedAt sql.NullInt64
	if !e.StartedAt.IsZero() {
		startedAt = sql.NullInt64{Int64: e.StartedAt.Unix(), Valid: true}
	}

	result, err := j.db.ExecContext(ctx, `
		INSERT INTO outcomes (lane, artist, track, album, started_at, submitted_at, kind, error_code, message, corrected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Lane,
		e.Artist,
		e.Track,
		e.Album,
		startedAt,
		e.SubmittedAt.Unix(),
		e.Kind,
		e.ErrorCode,
		e.Message,
		e.Corrected,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert outcome: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}
	return id, nil
}

// Filter narrows Recent.
type Filter struct {
	Lane       string // empty for every lane
	FailedOnly bool
	Limit      int // 0 for no limit
}

// Recent returns matching entries, newest first.
func (j *Journal) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	query := `
		SELECT id, lane, artist, track, COALESCE(album, ''), started_at, submitted_at,
			kind, error_code, COALESCE(message, ''), corrected
		FROM outcomes
		WHERE 1 = 1
	`
	var args []any
	if f.Lane != "" {
		query += " AND lane = ?"
		args = append(args, f.Lane)
	}
	if f.FailedOnly {
		query += " AND kind != 'none'"
	}
	query += " ORDER BY submitted_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedAt sql.NullInt64
		var submittedAt int64

		err := rows.Scan(
			&e.ID,
			&e.Lane,
			&e.Artist,
			&e.Track,
			&e.Album,
			&startedAt,
			&submittedAt,
			&e.Kind,
			&e.ErrorCode,
			&e.Message,
			&e.Corrected,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}

		if startedAt.Valid {
			e.StartedAt = time.Unix(startedAt.Int64, 0)
		}
		e.SubmittedAt = time.Unix(submittedAt, 0)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries. If failedOnly is set, only
// failures are counted.
func (j *Journal) Count(ctx context.Context, failedOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM outcomes"
	if failedOnly {
		query += " WHERE kind != 'none'"
	}

	var count int
	if err := j.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return count, nil
}

// Cleanup removes entries submitted more than maxAge ago and returns
// how many were deleted.
func (j *Journal) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := j.now().Add(-maxAge).Unix()

	result, err := j.db.ExecContext(ctx, "DELETE FROM outcomes WHERE submitted_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old outcomes: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
