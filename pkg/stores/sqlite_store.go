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

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/results"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists run history in a SQLite database: one row per run
// with its marshaled result tree, one row per executed step, and the run
// lifecycle events. It implements engine.RunRecorder.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ engine.RunRecorder = (*SQLiteStore)(nil)

// Config holds SQLite store configuration.
type Config struct {
	// Path is the database file path, or ":memory:".
	Path string

	// MaxOpenConns caps the connection pool. Defaults to 25.
	MaxOpenConns int

	// MaxIdleConns caps idle pooled connections. Defaults to 5.
	MaxIdleConns int

	// ConnMaxLifetime recycles pooled connections. Defaults to 5 minutes.
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a store for the given configuration. Call Init to
// open the database and Migrate to bring the schema up to date.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database, configures the connection pool, and enables WAL
// mode and foreign keys.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	maxOpen := s.cfg.MaxOpenConns
	if s.cfg.Path == ":memory:" {
		// A pooled in-memory DSN gives every connection its own database.
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	s.db = db
	return nil
}

// Migrate brings the schema up to date from the embedded migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginRun inserts the run row when a run starts.
func (s *SQLiteStore) BeginRun(ctx context.Context, rec engine.RunRecord) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO runs (run_id, recipe, recipe_version, recipe_type, engine, target, status, error, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.RunID,
		rec.Recipe,
		rec.RecipeVersion,
		rec.RecipeType,
		rec.Engine,
		rec.Target,
		rec.Status,
		rec.StartedAt.UTC(),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	return nil
}

// RecordStep inserts one executed step of a run.
func (s *SQLiteStore) RecordStep(ctx context.Context, rec engine.StepRecord) error {
	query := `
		INSERT INTO step_records (run_id, step_index, group_alias, origin, step, action, status, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.RunID,
		rec.Index,
		rec.Group,
		string(rec.Origin),
		rec.Step,
		rec.Action,
		rec.Status,
		rec.Error,
		rec.StartedAt.UTC(),
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert step %d of run %s: %w", rec.Index, rec.RunID, err)
	}
	return nil
}

// FinishRun closes the run row with its terminal status and the marshaled
// result tree.
func (s *SQLiteStore) FinishRun(ctx context.Context, rec engine.RunRecord) error {
	var resultJSON sql.NullString
	var errText string
	if rec.Result != nil {
		data, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("marshal result tree for run %s: %w", rec.RunID, err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
		errText = rec.Result.ErrorText
	}

	query := `
		UPDATE runs
		SET status = ?, error = ?, result_json = ?, ended_at = ?, updated_at = ?
		WHERE run_id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		rec.Status,
		errText,
		resultJSON,
		rec.EndedAt.UTC(),
		time.Now().UTC(),
		rec.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", rec.RunID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", rec.RunID, err)
	}
	if rows == 0 {
		return &NotFoundError{Kind: "run", ID: rec.RunID}
	}
	return nil
}

// RecordEvent inserts one run lifecycle event.
func (s *SQLiteStore) RecordEvent(ctx context.Context, ev telemetry.Event) error {
	created := ev.Timestamp
	if created.IsZero() {
		created = time.Now()
	}

	query := `
		INSERT INTO run_events (event_id, run_id, type, level, step, action, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		ev.ID,
		ev.RunID,
		ev.Type,
		ev.Level,
		ev.Step,
		ev.Action,
		ev.Message,
		created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.Type, err)
	}
	return nil
}

// EventSink adapts the store into an event subscriber. Insert failures are
// dropped: event history is best effort and must never disturb a run.
func (s *SQLiteStore) EventSink() telemetry.EventSubscriber {
	return func(ev telemetry.Event) {
		_ = s.RecordEvent(context.Background(), ev)
	}
}

// GetRun returns one run with its decoded result tree.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `
		SELECT run_id, recipe, recipe_version, recipe_type, engine, target, status, error, result_json, started_at, ended_at, created_at, updated_at
		FROM runs
		WHERE run_id = ?
	`

	run := &Run{}
	var resultJSON sql.NullString
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&run.RunID,
		&run.Recipe,
		&run.RecipeVersion,
		&run.RecipeType,
		&run.Engine,
		&run.Target,
		&run.Status,
		&run.Error,
		&resultJSON,
		&run.StartedAt,
		&run.EndedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "run", ID: runID}
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	if resultJSON.Valid {
		var node results.Node
		if err := json.Unmarshal([]byte(resultJSON.String), &node); err != nil {
			return nil, fmt.Errorf("decode result tree of run %s: %w", runID, err)
		}
		run.Result = &node
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first, without their
// result trees.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, recipe, recipe_version, recipe_type, engine, target, status, error, started_at, ended_at, created_at, updated_at
		FROM runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.RunID,
			&run.Recipe,
			&run.RecipeVersion,
			&run.RecipeType,
			&run.Engine,
			&run.Target,
			&run.Status,
			&run.Error,
			&run.StartedAt,
			&run.EndedAt,
			&run.CreatedAt,
			&run.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ListSteps returns a run's executed steps in plan order.
func (s *SQLiteStore) ListSteps(ctx context.Context, runID string) ([]Step, error) {
	query := `
		SELECT run_id, step_index, group_alias, origin, step, action, status, error, started_at, duration_ms
		FROM step_records
		WHERE run_id = ?
		ORDER BY step_index
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps of run %s: %w", runID, err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var step Step
		var durationMS int64
		if err := rows.Scan(
			&step.RunID,
			&step.Index,
			&step.Group,
			&step.Origin,
			&step.Name,
			&step.Action,
			&step.Status,
			&step.Error,
			&step.StartedAt,
			&durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list steps of run %s: %w", runID, err)
	}
	return steps, nil
}

// ListEvents returns a run's recorded events in arrival order.
func (s *SQLiteStore) ListEvents(ctx context.Context, runID string) ([]Event, error) {
	query := `
		SELECT id, event_id, run_id, type, level, step, action, message, created_at
		FROM run_events
		WHERE run_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list events of run %s: %w", runID, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(
			&ev.ID,
			&ev.EventID,
			&ev.RunID,
			&ev.Type,
			&ev.Level,
			&ev.Step,
			&ev.Action,
			&ev.Message,
			&ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events of run %s: %w", runID, err)
	}
	return events, nil
}

// DeleteRun removes a run, its step records, and its events.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	// run_events carries no foreign key, so it is cleared explicitly.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM run_events WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete events of run %s: %w", runID, err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if rows == 0 {
		return &NotFoundError{Kind: "run", ID: runID}
	}
	return nil
}

// Stats summarizes the stored run history.
type Stats struct {
	// Runs is the total number of stored runs.
	Runs int `json:"runs"`

	// ByStatus counts runs per terminal status.
	ByStatus map[string]int `json:"by_status"`
}

// Stats returns aggregate counts over the stored runs.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("collect store stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByStatus: make(map[string]int)}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan store stats: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Runs += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect store stats: %w", err)
	}
	return stats, nil
}
