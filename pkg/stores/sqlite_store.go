package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a run or build record does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// every connection to :memory: opens its own database
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate brings the schema up to date.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// CreateRun inserts a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	targets, err := json.Marshal(run.Targets)
	if err != nil {
		return fmt.Errorf("failed to encode run targets: %w", err)
	}

	query := `
		INSERT INTO runs (id, root, targets, status, built, started_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.Root,
		string(targets),
		run.Status,
		run.Built,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// CompleteRun records the final status of a run along with its errors, in
// one transaction.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, built int, errs []RunError) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var summary *string
	if len(errs) > 0 {
		msg := errs[0].Details
		if len(errs) > 1 {
			msg = fmt.Sprintf("%s (and %d more)", msg, len(errs)-1)
		}
		summary = &msg
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, built = ?, completed_at = ?, error = ?
		WHERE id = ?
	`, status, built, time.Now(), summary, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	for i, e := range errs {
		fields, err := json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode error fields: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_errors (run_id, seq, kind, details, fields, fatal)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, i, e.Kind, e.Details, string(fields), e.Fatal)
		if err != nil {
			return fmt.Errorf("failed to record run error: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, root, targets, status, built, started_at, completed_at, error
		FROM runs
		WHERE id = ?
	`
	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs, newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, root, targets, status, built, started_at, completed_at, error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run and, through the foreign keys, its records
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	return nil
}

// RecordTargetBuild appends one action outcome to a run
func (s *SQLiteStore) RecordTargetBuild(ctx context.Context, build *TargetBuild) error {
	if build.CreatedAt.IsZero() {
		build.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO target_builds (run_id, zone, target, action, outcome, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		build.RunID,
		build.Zone,
		build.Target,
		build.Action,
		build.Outcome,
		build.Duration.Milliseconds(),
		build.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record target build: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get target build id: %w", err)
	}
	build.ID = id
	return nil
}

// ListTargetBuilds lists the actions of a run in the order they ran
func (s *SQLiteStore) ListTargetBuilds(ctx context.Context, runID string) ([]*TargetBuild, error) {
	query := `
		SELECT id, run_id, zone, target, action, outcome, duration_ms, created_at
		FROM target_builds
		WHERE run_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list target builds: %w", err)
	}
	defer rows.Close()

	builds := []*TargetBuild{}
	for rows.Next() {
		build, err := scanTargetBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target build: %w", err)
		}
		builds = append(builds, build)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating target builds: %w", err)
	}

	return builds, nil
}

// LastBuild returns the most recent action recorded for a target
func (s *SQLiteStore) LastBuild(ctx context.Context, target string) (*TargetBuild, error) {
	query := `
		SELECT id, run_id, zone, target, action, outcome, duration_ms, created_at
		FROM target_builds
		WHERE target = ?
		ORDER BY id DESC
		LIMIT 1
	`
	build, err := scanTargetBuild(s.db.QueryRowContext(ctx, query, target))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("target %s: %w", target, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last build: %w", err)
	}
	return build, nil
}

// ListErrors lists the errors reported by a run in report order
func (s *SQLiteStore) ListErrors(ctx context.Context, runID string) ([]*RunError, error) {
	query := `
		SELECT id, run_id, kind, details, fields, fatal
		FROM run_errors
		WHERE run_id = ?
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run errors: %w", err)
	}
	defer rows.Close()

	errs := []*RunError{}
	for rows.Next() {
		e := &RunError{}
		var fields string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &e.Details, &fields, &e.Fatal); err != nil {
			return nil, fmt.Errorf("failed to scan run error: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode error fields: %w", err)
		}
		errs = append(errs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run errors: %w", err)
	}

	return errs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var targets string
	err := row.Scan(
		&run.ID,
		&run.Root,
		&targets,
		&run.Status,
		&run.Built,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(targets), &run.Targets); err != nil {
		return nil, fmt.Errorf("failed to decode run targets: %w", err)
	}
	return run, nil
}

func scanTargetBuild(row scanner) (*TargetBuild, error) {
	build := &TargetBuild{}
	var ms int64
	err := row.Scan(
		&build.ID,
		&build.RunID,
		&build.Zone,
		&build.Target,
		&build.Action,
		&build.Outcome,
		&ms,
		&build.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	build.Duration = time.Duration(ms) * time.Millisecond
	return build, nil
}
