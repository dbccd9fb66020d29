// Package history keeps a local log of completed sync passes. It is only read
// back for display; the reconciliation never consults it.
package history

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/skywriter/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS passes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL, -- RFC3339
    duration_ms INTEGER NOT NULL,
    pushed INTEGER NOT NULL,
    pulled INTEGER NOT NULL,
    unchanged INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    bytes INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS failures (
    pass_id INTEGER NOT NULL REFERENCES passes(id) ON DELETE CASCADE,
    action TEXT NOT NULL,
    local_path TEXT NOT NULL,
    remote_path TEXT NOT NULL,
    error TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failures_pass ON failures(pass_id);
`

// Pass is the summary of one completed pass.
type Pass struct {
	ID        int64
	StartedAt time.Time
	Duration  time.Duration
	Pushed    int
	Pulled    int
	Unchanged int
	Skipped   int
	Failed    int
	Bytes     int64
	Failures  []Failure
}

// Failure is one transfer that did not complete.
type Failure struct {
	Action     string `db:"action"`
	LocalPath  string `db:"local_path"`
	RemotePath string `db:"remote_path"`
	Error      string `db:"error"`
}

type dbPass struct {
	ID         int64  `db:"id"`
	StartedAt  string `db:"started_at"`
	DurationMs int64  `db:"duration_ms"`
	Pushed     int    `db:"pushed"`
	Pulled     int    `db:"pulled"`
	Unchanged  int    `db:"unchanged"`
	Skipped    int    `db:"skipped"`
	Failed     int    `db:"failed"`
	Bytes      int64  `db:"bytes"`
}

type History struct {
	db *sqlx.DB
}

// Open creates or opens the history database at path.
func Open(path string) (*History, error) {
	conn, err := db.Open(db.WithPath(path), db.WithMaxOpenConns(1), db.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &History{db: conn}, nil
}

func (h *History) Close() error {
	if err := h.db.Close(); err != nil {
		slog.Error("history close", "error", err)
		return err
	}
	return nil
}

// Record stores a pass and its failures, returning the new pass id.
func (h *History) Record(p *Pass) (int64, error) {
	tx, err := h.db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := dbPass{
		StartedAt:  p.StartedAt.UTC().Format(time.RFC3339),
		DurationMs: p.Duration.Milliseconds(),
		Pushed:     p.Pushed,
		Pulled:     p.Pulled,
		Unchanged:  p.Unchanged,
		Skipped:    p.Skipped,
		Failed:     p.Failed,
		Bytes:      p.Bytes,
	}

	res, err := tx.NamedExec(`INSERT INTO passes (started_at, duration_ms, pushed, pulled, unchanged, skipped, failed, bytes)
		VALUES (:started_at, :duration_ms, :pushed, :pulled, :unchanged, :skipped, :failed, :bytes)`, row)
	if err != nil {
		return 0, fmt.Errorf("history: insert pass: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: pass id: %w", err)
	}

	for _, f := range p.Failures {
		_, err := tx.Exec(`INSERT INTO failures (pass_id, action, local_path, remote_path, error) VALUES (?, ?, ?, ?, ?)`,
			id, f.Action, f.LocalPath, f.RemotePath, f.Error)
		if err != nil {
			return 0, fmt.Errorf("history: insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("history: commit: %w", err)
	}

	slog.Debug("history recorded", "pass", id, "failed", p.Failed)
	return id, nil
}

// Recent returns up to limit passes, newest first, with their failures.
func (h *History) Recent(limit int) ([]*Pass, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []dbPass
	err := h.db.Select(&rows, `SELECT id, started_at, duration_ms, pushed, pulled, unchanged, skipped, failed, bytes
		FROM passes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query passes: %w", err)
	}

	passes := make([]*Pass, 0, len(rows))
	for _, row := range rows {
		started, err := time.Parse(time.RFC3339, row.StartedAt)
		if err != nil {
			slog.Warn("history: bad timestamp", "pass", row.ID, "value", row.StartedAt, "error", err)
			continue
		}

		p := &Pass{
			ID:        row.ID,
			StartedAt: started,
			Duration:  time.Duration(row.DurationMs) * time.Millisecond,
			Pushed:    row.Pushed,
			Pulled:    row.Pulled,
			Unchanged: row.Unchanged,
			Skipped:   row.Skipped,
			Failed:    row.Failed,
			Bytes:     row.Bytes,
		}

		if row.Failed > 0 {
			if err := h.db.Select(&p.Failures, `SELECT action, local_path, remote_path, error FROM failures WHERE pass_id = ?`, row.ID); err != nil {
				return nil, fmt.Errorf("history: query failures: %w", err)
			}
		}
		passes = append(passes, p)
	}
	return passes, nil
}

// Prune keeps the newest keep passes and deletes the rest.
func (h *History) Prune(keep int) (int64, error) {
	res, err := h.db.Exec(`DELETE FROM passes WHERE id NOT IN (SELECT id FROM passes ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}
