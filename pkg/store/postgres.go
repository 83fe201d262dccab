package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/proxsoc/hydra-runner/pkg/models"
)

// PostgreSQLStore implements Store using PostgreSQL, for deployments where
// several runner hosts report into one central history database
type PostgreSQLStore struct {
	db *sql.DB
}

// NewPostgreSQLStore creates a new PostgreSQL store
func NewPostgreSQLStore(config Config) (*PostgreSQLStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates tables if they don't exist
func (s *PostgreSQLStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		args TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL DEFAULT -1,
		pid INTEGER DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateRun inserts a new run record
func (s *PostgreSQLStore) CreateRun(run *models.Run) error {
	args, err := json.Marshal(run.Args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, args, status, exit_code, pid, started_at, finished_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, string(args), run.Status, run.ExitCode, run.PID, run.StartedAt, run.FinishedAt, run.Error)

	return err
}

// GetRun retrieves a run by ID
func (s *PostgreSQLStore) GetRun(id string) (*models.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, args, status, exit_code, pid, started_at, finished_at, error
		FROM runs WHERE id = $1
	`, id)
	return scanRun(row)
}

// MarkRunning transitions a run to the running state and records the child pid
func (s *PostgreSQLStore) MarkRunning(id string, pid int) error {
	run, err := s.GetRun(id)
	if err != nil {
		return err
	}
	if err := models.ValidateTransition(run.Status, models.RunStatusRunning); err != nil {
		return err
	}

	_, err = s.db.Exec(`UPDATE runs SET status = $1, pid = $2 WHERE id = $3`,
		models.RunStatusRunning, pid, id)
	return err
}

// FinishRun transitions a run to a terminal state with its exit code
func (s *PostgreSQLStore) FinishRun(id string, status models.RunStatus, exitCode int, errorMsg string) error {
	run, err := s.GetRun(id)
	if err != nil {
		return err
	}
	if err := models.ValidateTransition(run.Status, status); err != nil {
		return err
	}

	_, err = s.db.Exec(`
		UPDATE runs SET status = $1, exit_code = $2, finished_at = $3, error = $4 WHERE id = $5
	`, status, exitCode, time.Now(), errorMsg, id)
	return err
}

// RecentRuns returns the most recent runs, newest first
func (s *PostgreSQLStore) RecentRuns(limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, args, status, exit_code, pid, started_at, finished_at, error
		FROM runs ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastRun returns the most recent run, or ErrRunNotFound if the history is empty
func (s *PostgreSQLStore) LastRun() (*models.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, args, status, exit_code, pid, started_at, finished_at, error
		FROM runs ORDER BY started_at DESC LIMIT 1
	`)
	return scanRun(row)
}

// PruneBefore deletes runs started before the cutoff, returning the count removed
func (s *PostgreSQLStore) PruneBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close closes the database connection
func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database is reachable
func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}
