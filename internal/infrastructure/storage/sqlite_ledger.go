package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"RiverWatch/internal/domain"
	"RiverWatch/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	source_url  TEXT NOT NULL,
	shape       TEXT NOT NULL,
	found       INTEGER NOT NULL,
	new_count   INTEGER NOT NULL,
	watermark   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS bulletins (
	url           TEXT PRIMARY KEY,
	date_value    INTEGER NOT NULL,
	date_text     TEXT NOT NULL,
	title         TEXT NOT NULL,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	first_seen_at TEXT NOT NULL
);
`

// SQLiteLedger keeps an audit trail of runs and the bulletins each announced.
type SQLiteLedger struct {
	db *sql.DB
}

var _ ports.RunLedger = (*SQLiteLedger)(nil)

// OpenSQLiteLedger opens (and creates if needed) the ledger database at path.
func OpenSQLiteLedger(path string) (*SQLiteLedger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ledger %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}

	return NewSQLiteLedger(db), nil
}

// NewSQLiteLedger wires an already prepared sql.DB.
func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

// Close releases the database.
func (l *SQLiteLedger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// RecordRun inserts the run row and the bulletins first announced by it.
// Bulletins already known by URL are left untouched.
func (l *SQLiteLedger) RecordRun(ctx context.Context, run ports.RunRecord, fresh []domain.Bulletin) error {
	if l.db == nil {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	startedAt := run.StartedAt.UTC().Format(time.RFC3339)
	_, err = sq.Insert("runs").
		Columns("id", "started_at", "source_url", "shape", "found", "new_count", "watermark").
		Values(run.ID, startedAt, run.SourceURL, string(run.Shape), run.Found, run.New, run.Watermark).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(fresh) > 0 {
		insert := sq.Insert("bulletins").
			Columns("url", "date_value", "date_text", "title", "run_id", "first_seen_at")
		for _, b := range fresh {
			insert = insert.Values(b.URL, b.DateValue, b.DateText, b.Title, run.ID, startedAt)
		}
		_, err = insert.Suffix("ON CONFLICT(url) DO NOTHING").RunWith(tx).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("insert bulletins: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *SQLiteLedger) RecentRuns(ctx context.Context, limit int) ([]ports.RunRecord, error) {
	if l.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := sq.Select("id", "started_at", "source_url", "shape", "found", "new_count", "watermark").
		From("runs").
		OrderBy("started_at DESC", "rowid DESC").
		Limit(uint64(limit)).
		RunWith(l.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var result []ports.RunRecord
	for rows.Next() {
		var (
			rec       ports.RunRecord
			startedAt string
			shape     string
		)
		if err := rows.Scan(&rec.ID, &startedAt, &rec.SourceURL, &shape, &rec.Found, &rec.New, &rec.Watermark); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Shape = ports.Shape(shape)
		if rec.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		result = append(result, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// KnownBulletins counts bulletins recorded so far.
func (l *SQLiteLedger) KnownBulletins(ctx context.Context) (int, error) {
	if l.db == nil {
		return 0, nil
	}

	var n int
	err := sq.Select("COUNT(*)").From("bulletins").RunWith(l.db).QueryRowContext(ctx).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bulletins: %w", err)
	}
	return n, nil
}
