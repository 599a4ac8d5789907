// =============================================================================
// SPED Anonymizer - Run Ledger
// =============================================================================
//
// This module keeps a local SQLite record of every processed file.
//
// Each row links an input file (by name and SHA-256) to the anonymized file
// it produced and the run that produced it, so an operator can later answer
// "was this declaration already anonymized, and where is the output?".
//
// =============================================================================

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Status is the outcome of one file.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusDryRun  Status = "dry_run"
)

// Entry is one row of the ledger.
type Entry struct {
	ID          int64
	RunID       string
	FileName    string
	OutputFile  string
	ProcessedAt time.Time
	Status      Status
	Checksum    string
	Lines       int
	Error       string
}

// Ledger is safe for concurrent use.
type Ledger struct {
	db   *sql.DB
	path string
}

const schema = `CREATE TABLE IF NOT EXISTS file_records (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	file_name    TEXT NOT NULL,
	output_file  TEXT NOT NULL DEFAULT '',
	processed_at TEXT NOT NULL,
	status       TEXT NOT NULL,
	checksum     TEXT NOT NULL DEFAULT '',
	lines        INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS file_records_checksum ON file_records (checksum);`

// Open opens (creating if needed) the ledger database at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between
	// concurrent file workers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create file_records table: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Path is the database file.
func (l *Ledger) Path() string { return l.path }

// Record inserts e and returns its id. A zero ProcessedAt is set to now.
func (l *Ledger) Record(ctx context.Context, e Entry) (int64, error) {
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now()
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO file_records (run_id, file_name, output_file, processed_at, status, checksum, lines, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.FileName, e.OutputFile, e.ProcessedAt.UTC().Format(time.RFC3339Nano),
		string(e.Status), e.Checksum, e.Lines, e.Error)
	if err != nil {
		return 0, fmt.Errorf("failed to insert file record: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, file_name, output_file, processed_at, status, checksum, lines, error
		 FROM file_records ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select file records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// FindByChecksum returns the successful entries for an input checksum,
// oldest first.
func (l *Ledger) FindByChecksum(ctx context.Context, checksum string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, file_name, output_file, processed_at, status, checksum, lines, error
		 FROM file_records WHERE checksum = ? AND status = ? ORDER BY id`,
		checksum, string(StatusSuccess))
	if err != nil {
		return nil, fmt.Errorf("failed to select file records by checksum: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			processedAt string
			status      string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.FileName, &e.OutputFile, &processedAt,
			&status, &e.Checksum, &e.Lines, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, processedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse processed_at %q of entry %d: %w", processedAt, e.ID, err)
		}
		e.ProcessedAt = t
		e.Status = Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
