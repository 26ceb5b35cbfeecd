package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rigproc/internal/orchestrator"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Run is one persisted run.
type Run struct {
	ID       string        `json:"id"`
	Process  string        `json:"process"`
	Started  time.Time     `json:"started"`
	Elapsed  time.Duration `json:"elapsed"`
	Outcome  string        `json:"outcome"`
	Strict   bool          `json:"strict"`
	Stopped  bool          `json:"stopped"`
	Only     string        `json:"only,omitempty"`
	Error    string        `json:"error,omitempty"`
	Failures int           `json:"failures"`
}

// StepRecord is one persisted step result.
type StepRecord struct {
	Seq      int           `json:"seq"`
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Record persists report. It satisfies orchestrator.ReportSink.
func (s *Store) Record(ctx context.Context, report orchestrator.Report) error {
	if report.RunID == "" {
		return fmt.Errorf("record run: missing run id")
	}
	errText := ""
	if report.Err != nil {
		errText = report.Err.Error()
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, process, started_at, elapsed_ms, outcome, strict, stopped, only_step, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID,
			report.Process,
			report.Started.UTC().Format(time.RFC3339Nano),
			report.Elapsed.Milliseconds(),
			report.Outcome(),
			boolToInt(report.Strict),
			boolToInt(report.Stopped),
			nullIfEmpty(report.Only),
			nullIfEmpty(errText),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for i, res := range report.Results {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO step_results (run_id, seq, name, status, detail, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
				report.RunID, i, res.Name, string(res.Status), nullIfEmpty(res.Detail), res.Duration.Milliseconds(),
			); err != nil {
				return fmt.Errorf("insert step result: %w", err)
			}
		}
		return tx.Commit()
	})
}

// Runs returns the most recent runs, newest first. An empty process matches all.
func (s *Store) Runs(ctx context.Context, process string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT r.id, r.process, r.started_at, r.elapsed_ms, r.outcome, r.strict, r.stopped,
		COALESCE(r.only_step, ''), COALESCE(r.error, ''),
		(SELECT COUNT(1) FROM step_results sr WHERE sr.run_id = r.id AND sr.status = 'Failed')
		FROM runs r`
	args := []any{}
	if process = strings.TrimSpace(process); process != "" {
		query += " WHERE r.process = ?"
		args = append(args, process)
	}
	query += " ORDER BY r.started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedRaw string
			elapsedMS  int64
			strict     int
			stopped    int
		)
		if err := rows.Scan(&run.ID, &run.Process, &startedRaw, &elapsedMS, &run.Outcome,
			&strict, &stopped, &run.Only, &run.Error, &run.Failures); err != nil {
			return nil, err
		}
		run.Started, _ = time.Parse(time.RFC3339Nano, startedRaw)
		run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		run.Strict = strict != 0
		run.Stopped = stopped != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Steps returns the step results of runID in execution order. A run id
// prefix is accepted when it is unambiguous.
func (s *Store) Steps(ctx context.Context, runID string) (string, []StepRecord, error) {
	fullID, err := s.resolveRunID(ctx, runID)
	if err != nil {
		return "", nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, name, status, COALESCE(detail, ''), duration_ms FROM step_results WHERE run_id = ? ORDER BY seq`,
		fullID,
	)
	if err != nil {
		return "", nil, fmt.Errorf("list step results: %w", err)
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var (
			rec        StepRecord
			durationMS int64
		)
		if err := rows.Scan(&rec.Seq, &rec.Name, &rec.Status, &rec.Detail, &durationMS); err != nil {
			return "", nil, err
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, rec)
	}
	return fullID, steps, rows.Err()
}

// Prune deletes all but the newest keep runs.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC LIMIT ?)`, keep)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return affected, nil
}

func (s *Store) resolveRunID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("run id is required")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs WHERE id LIKE ? LIMIT 2`, prefix+"%")
	if err != nil {
		return "", fmt.Errorf("resolve run id: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("run %q not found", prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("run id %q is ambiguous", prefix)
	}
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

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
