// Package journal keeps the execution log. It is backed by SQLite so the
// inspection tooling can query it, but defaults to an in-memory database:
// the runtime promises no durability beyond the current session.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cascadekit/cascade/internal/queue"
)

// ErrNotFound is returned when an execution id has no journal entry.
var ErrNotFound = errors.New("execution not found")

// Entry is one recorded execution.
type Entry struct {
	ID          string        `json:"id"`
	Command     string        `json:"command"`
	Target      string        `json:"target"`
	Source      string        `json:"source,omitempty"`
	Origin      queue.Origin  `json:"origin"`
	Status      queue.Status  `json:"status"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// Journal records executions into a command_log table.
type Journal struct {
	db *sql.DB
}

// Open opens (and bootstraps) the journal database. An empty path means
// in-memory, scoped to this process.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		path = "file::memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps the in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS command_log (
  id           TEXT PRIMARY KEY,
  command      TEXT NOT NULL,
  target       TEXT NOT NULL,
  source       TEXT,
  origin       TEXT NOT NULL,
  status       TEXT NOT NULL,
  error        TEXT,
  started_at   TEXT NOT NULL,
  completed_at TEXT NOT NULL,
  duration_ms  INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS command_log_started_at_idx ON command_log(started_at);`,
		`CREATE INDEX IF NOT EXISTS command_log_command_target_idx ON command_log(command, target);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap journal: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one execution entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry id is empty")
	}
	var errVal any
	if e.Error != "" {
		errVal = e.Error
	}
	var sourceVal any
	if e.Source != "" {
		sourceVal = e.Source
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO command_log(
  id, command, target, source, origin, status, error, started_at, completed_at, duration_ms
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.Command, e.Target, sourceVal, string(e.Origin), string(e.Status), errVal,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.CompletedAt.UTC().Format(time.RFC3339Nano),
		e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// Get loads one entry by execution id.
func (j *Journal) Get(ctx context.Context, id string) (*Entry, error) {
	row := j.db.QueryRowContext(ctx, `
SELECT id, command, target, source, origin, status, error, started_at, completed_at, duration_ms
FROM command_log
WHERE id = ?;
`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load execution %q: %w", id, err)
	}
	return e, nil
}

// Recent returns the newest entries, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, command, target, source, origin, status, error, started_at, completed_at, duration_ms
FROM command_log
ORDER BY started_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// CountSince returns how many executions started at or after t. Used by
// the doctor's runaway-chain report.
func (j *Journal) CountSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM command_log WHERE started_at >= ?;
`, t.UTC().Format(time.RFC3339Nano)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count executions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e          Entry
		source     sql.NullString
		errMsg     sql.NullString
		startedS   string
		completedS string
		durationMS int64
		origin     string
		status     string
	)
	if err := row.Scan(&e.ID, &e.Command, &e.Target, &source, &origin, &status,
		&errMsg, &startedS, &completedS, &durationMS); err != nil {
		return nil, err
	}
	e.Origin = queue.Origin(origin)
	e.Status = queue.Status(status)
	if source.Valid {
		e.Source = source.String
	}
	if errMsg.Valid {
		e.Error = errMsg.String
	}
	if t, err := time.Parse(time.RFC3339Nano, startedS); err == nil {
		e.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, completedS); err == nil {
		e.CompletedAt = t
	}
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return &e, nil
}
