package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ifgstack/internal/sqlitedb"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE schema_version (version INTEGER NOT NULL);
CREATE TABLE runs (
    id           TEXT PRIMARY KEY,
    request_path TEXT NOT NULL,
    workdir      TEXT NOT NULL,
    identity     TEXT,
    status       TEXT NOT NULL,
    stage        TEXT,
    ifg_count    INTEGER NOT NULL DEFAULT 0,
    error        TEXT,
    started_at   TEXT NOT NULL,
    finished_at  TEXT
);
CREATE INDEX idx_runs_started ON runs(started_at);
CREATE INDEX idx_runs_identity ON runs(identity);
`

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store persists runs.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger at path.
func Open(path string) (*Store, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := sqlitedb.EnsureSchema(context.Background(), db, schemaSQL, schemaVersion); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Start records a new running run.
func (s *Store) Start(ctx context.Context, id, requestPath, workdir string) (*Run, error) {
	now := time.Now().UTC()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, request_path, workdir, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, requestPath, workdir, StatusRunning, now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Run{ID: id, RequestPath: requestPath, Workdir: workdir, Status: StatusRunning, StartedAt: now}, nil
}

// SetIdentity attaches the derived identity and retained interferogram count.
func (s *Store) SetIdentity(ctx context.Context, id, identity string, ifgCount int) error {
	return s.update(ctx, `UPDATE runs SET identity = ?, ifg_count = ? WHERE id = ?`, identity, ifgCount, id)
}

// SetStage records the stage a run is executing.
func (s *Store) SetStage(ctx context.Context, id, stage string) error {
	return s.update(ctx, `UPDATE runs SET stage = ? WHERE id = ?`, stage, id)
}

// Finish moves a run to a terminal status.
func (s *Store) Finish(ctx context.Context, id string, status Status, message string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish run %s: %q is not a terminal status", id, status)
	}
	return s.update(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, nullableString(message), time.Now().UTC().Format(timeLayout), id,
	)
}

// Get returns one run.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// List returns the most recent runs, newest first. A limit of zero returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + ` ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// FailInterrupted marks runs left running by a crashed process as failed.
func (s *Store) FailInterrupted(ctx context.Context, workdir string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE status = ? AND workdir = ?`,
		StatusFailed, "interrupted", time.Now().UTC().Format(timeLayout), StatusRunning, workdir,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

const selectRuns = `SELECT id, request_path, workdir, identity, status, stage, ifg_count, error, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                      Run
		identity, stage, message sql.NullString
		status, started          string
		finished                 sql.NullString
	)
	if err := row.Scan(&run.ID, &run.RequestPath, &run.Workdir, &identity, &status, &stage, &run.IfgCount, &message, &started, &finished); err != nil {
		return nil, err
	}
	run.Identity = identity.String
	run.Stage = stage.String
	run.Error = message.String
	run.Status = Status(status)
	var err error
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		if run.FinishedAt, err = time.Parse(timeLayout, finished.String); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
	}
	return &run, nil
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
