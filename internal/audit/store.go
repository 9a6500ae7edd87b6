// Package audit keeps a local history of pipeline runs in SQLite so
// successive extractions over the same range can be compared: row counts,
// drop reasons, and failures per run.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    station TEXT NOT NULL,
    range_start TIMESTAMP NOT NULL,
    range_end TIMESTAMP NOT NULL,
    channel TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    rows_out INTEGER NOT NULL DEFAULT 0,
    dropped_out_of_bounds INTEGER NOT NULL DEFAULT 0,
    dropped_missing_channel INTEGER NOT NULL DEFAULT 0,
    dropped_missing_ground INTEGER NOT NULL DEFAULT 0,
    duplicates INTEGER NOT NULL DEFAULT 0,
    off_grid INTEGER NOT NULL DEFAULT 0,
    out_of_range INTEGER NOT NULL DEFAULT 0,
    failures INTEGER NOT NULL DEFAULT 0,
    output_path TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_kind_station ON runs(kind, station, id);
`

const insertRunSQL = `
INSERT INTO runs (
    kind, station, range_start, range_end, channel,
    started_at, finished_at, rows_out,
    dropped_out_of_bounds, dropped_missing_channel, dropped_missing_ground,
    duplicates, off_grid, out_of_range, failures, output_path
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectRunSQL = `
SELECT id, kind, station, range_start, range_end, channel,
       started_at, finished_at, rows_out,
       dropped_out_of_bounds, dropped_missing_channel, dropped_missing_ground,
       duplicates, off_grid, out_of_range, failures, output_path
FROM runs`

// Run kinds.
const (
	KindSatellite = "goes"
	KindGround    = "sonda"
	KindFeatures  = "features"
)

// Run is one recorded pipeline execution. Which counters are meaningful
// depends on the kind: satellite runs fill OutOfBounds and Failures, ground
// runs fill Duplicates/OffGrid/OutOfRange, feature runs fill the two
// missing-data drop reasons.
type Run struct {
	ID         int64
	Kind       string
	Station    string
	RangeStart time.Time
	RangeEnd   time.Time
	Channel    string
	StartedAt  time.Time
	FinishedAt time.Time
	Rows       int64

	DroppedOutOfBounds    int64
	DroppedMissingChannel int64
	DroppedMissingGround  int64
	Duplicates            int64
	OffGrid               int64
	OutOfRange            int64
	Failures              int64

	OutputPath string
}

// Store is the SQLite-backed run history.
type Store struct {
	dbPath string
	logger *slog.Logger

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// Open creates a store for the database at path. The connection and schema
// are initialized lazily on first use.
func Open(path string, logger *slog.Logger) *Store {
	return &Store{dbPath: path, logger: logger}
}

func (s *Store) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3",
			fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_loc=UTC", s.dbPath))
		if err != nil {
			s.dbErr = fmt.Errorf("opening audit db: %w", err)
			return
		}
		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing audit schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

// RecordRun appends one run and returns its id.
func (s *Store) RecordRun(ctx context.Context, run Run) (id int64, err error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	stmt, err := db.PrepareContext(ctx, insertRunSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx,
		run.Kind, run.Station, run.RangeStart.UTC(), run.RangeEnd.UTC(), run.Channel,
		run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Rows,
		run.DroppedOutOfBounds, run.DroppedMissingChannel, run.DroppedMissingGround,
		run.Duplicates, run.OffGrid, run.OutOfRange, run.Failures, run.OutputPath,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting run id: %w", err)
	}
	s.logger.Debug("recorded run", "id", id, "kind", run.Kind, "station", run.Station, "rows", run.Rows)
	return id, nil
}

// ListRuns returns the most recent runs across all kinds, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.queryRuns(ctx, selectRunSQL+" ORDER BY id DESC LIMIT ?", limit)
}

// RunHistory returns the most recent runs for one kind and station, newest
// first. Two entries are enough to report a delta against the previous run.
func (s *Store) RunHistory(ctx context.Context, kind, station string, limit int) ([]Run, error) {
	return s.queryRuns(ctx,
		selectRunSQL+" WHERE kind = ? AND station = ? ORDER BY id DESC LIMIT ?",
		kind, station, limit)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) (runs []Run, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r Run
		if err = rows.Scan(
			&r.ID, &r.Kind, &r.Station, &r.RangeStart, &r.RangeEnd, &r.Channel,
			&r.StartedAt, &r.FinishedAt, &r.Rows,
			&r.DroppedOutOfBounds, &r.DroppedMissingChannel, &r.DroppedMissingGround,
			&r.Duplicates, &r.OffGrid, &r.OutOfRange, &r.Failures, &r.OutputPath,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Close releases the database. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
			s.db = nil
		}
	})
	return s.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
