package logstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	insertSQL = `INSERT INTO entries (timestamp, severity, message, metadata) VALUES (?, ?, ?, ?)`
	deleteSQL = `DELETE FROM entries WHERE timestamp < ?`
	countSQL  = `SELECT COUNT(*) FROM entries`
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS entries (
		timestamp REAL NOT NULL,
		severity INTEGER NOT NULL,
		message TEXT NOT NULL,
		metadata BLOB NOT NULL DEFAULT x''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_timestamp_severity ON entries(timestamp DESC, severity DESC)`,
}

// engine owns the SQLite handle. Every method runs on the executor
// goroutine, so none of them lock.
type engine struct {
	path string
	log  *slog.Logger

	db     *sql.DB
	insert *sql.Stmt
}

func newEngine(path string, log *slog.Logger) *engine {
	return &engine{path: path, log: log}
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func (e *engine) isOpen() bool {
	return e.db != nil
}

// open creates the file and schema if needed and prepares the insert.
func (e *engine) open(ctx context.Context) error {
	if e.db != nil {
		return nil
	}

	if !isMemory(e.path) {
		if dir := filepath.Dir(e.path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return newStoreError(ErrOpenFailed, fmt.Errorf("create store directory: %w", err))
			}
		}
	}

	db, err := sql.Open("sqlite", e.path)
	if err != nil {
		return newStoreError(ErrOpenFailed, fmt.Errorf("open database: %w", err))
	}
	// One connection: an in-memory store lives on a single connection, and
	// the executor never issues statements concurrently anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return newStoreError(ErrOpenFailed, fmt.Errorf("ping database: %w", err))
	}
	if !isMemory(e.path) {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return newStoreError(ErrOpenFailed, fmt.Errorf("enable WAL: %w", err))
		}
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return newStoreError(ErrSchemaFailed, fmt.Errorf("execute migration: %w", err))
		}
	}

	insert, err := db.PrepareContext(ctx, insertSQL)
	if err != nil {
		db.Close()
		return newStoreError(ErrSchemaFailed, fmt.Errorf("prepare insert: %w", err))
	}

	e.db = db
	e.insert = insert
	e.log.Debug("log store opened", "path", e.path)
	return nil
}

// close releases the statement, then the handle. Calling it again is a no-op.
func (e *engine) close() error {
	if e.db == nil {
		return nil
	}

	var errs []error
	if e.insert != nil {
		if err := e.insert.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close insert statement: %w", err))
		}
	}
	if err := e.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	e.insert = nil
	e.db = nil

	if len(errs) > 0 {
		return newStoreError(ErrCloseFailed, errors.Join(errs...))
	}
	e.log.Debug("log store closed", "path", e.path)
	return nil
}

func (e *engine) insertEntry(ctx context.Context, entry Entry) error {
	if e.db == nil {
		return &StoreError{Kind: ErrInsertFailed, Msg: ErrNotOpen.Error(), Err: ErrNotOpen}
	}

	metadata := entry.Metadata
	if metadata == nil {
		metadata = []byte{}
	}
	_, err := e.insert.ExecContext(ctx,
		toSeconds(entry.Timestamp), int(entry.Severity), entry.Message, metadata)
	if err != nil {
		return newStoreError(ErrInsertFailed, err)
	}
	return nil
}

// queryRange returns entries with start <= timestamp <= end whose severity is
// at least minSeverity. A zero start means the epoch and a zero end means now.
// maxRows < 0 is unbounded.
func (e *engine) queryRange(ctx context.Context, start, end time.Time, minSeverity Severity, maxRows int, ascending bool) ([]Entry, error) {
	if e.db == nil {
		return nil, &StoreError{Kind: ErrQueryFailed, Msg: ErrNotOpen.Error(), Err: ErrNotOpen}
	}

	from := 0.0
	if !start.IsZero() {
		from = toSeconds(start)
	}
	if end.IsZero() {
		end = time.Now()
	}

	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	query := `SELECT timestamp, severity, message, metadata FROM entries
		WHERE timestamp BETWEEN ? AND ? AND severity <= ?
		ORDER BY timestamp ` + dir + `, severity ` + dir + `
		LIMIT ?`

	rows, err := e.db.QueryContext(ctx, query, from, toSeconds(end), int(minSeverity), maxRows)
	if err != nil {
		return nil, newStoreError(ErrQueryFailed, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			ts       float64
			severity int
			entry    Entry
		)
		if err := rows.Scan(&ts, &severity, &entry.Message, &entry.Metadata); err != nil {
			return nil, newStoreError(ErrQueryFailed, fmt.Errorf("scan entry: %w", err))
		}
		entry.Timestamp = fromSeconds(ts)
		entry.Severity = Severity(severity)
		if len(entry.Metadata) == 0 {
			entry.Metadata = nil
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError(ErrQueryFailed, err)
	}
	return entries, nil
}

// deleteOlderThan removes every entry with timestamp < cutoff (seconds since
// the epoch) and returns the number of rows removed.
func (e *engine) deleteOlderThan(ctx context.Context, cutoff float64) (int64, error) {
	if e.db == nil {
		return 0, &StoreError{Kind: ErrPruneFailed, Msg: ErrNotOpen.Error(), Err: ErrNotOpen}
	}

	res, err := e.db.ExecContext(ctx, deleteSQL, cutoff)
	if err != nil {
		return 0, newStoreError(ErrPruneFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newStoreError(ErrPruneFailed, err)
	}
	return n, nil
}

func (e *engine) count(ctx context.Context) (int64, error) {
	if e.db == nil {
		return 0, &StoreError{Kind: ErrQueryFailed, Msg: ErrNotOpen.Error(), Err: ErrNotOpen}
	}

	var n int64
	if err := e.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, newStoreError(ErrQueryFailed, err)
	}
	return n, nil
}
