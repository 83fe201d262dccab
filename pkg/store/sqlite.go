package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/proxsoc/hydra-runner/pkg/models"
)

// SQLiteStore is a SQLite-based implementation of the run-history store
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite connection string for concurrent access:
	// - _journal_mode=WAL: a background run and a status command may touch
	//   the database at the same time
	// - _busy_timeout=10000: wait up to 10 seconds when the database is locked
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to avoid SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		args TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL DEFAULT -1,
		pid INTEGER DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateRun inserts a new run record
func (s *SQLiteStore) CreateRun(run *models.Run) error {
	args, err := json.Marshal(run.Args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, args, status, exit_code, pid, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, string(args), run.Status, run.ExitCode, run.PID, run.StartedAt, run.FinishedAt, run.Error)

	return err
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(id string) (*models.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, args, status, exit_code, pid, started_at, finished_at, error
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// MarkRunning transitions a run to the running state and records the child pid
func (s *SQLiteStore) MarkRunning(id string, pid int) error {
	run, err := s.GetRun(id)
	if err != nil {
		return err
	}
	if err := models.ValidateTransition(run.Status, models.RunStatusRunning); err != nil {
		return err
	}

	_, err = s.db.Exec(`UPDATE runs SET status = ?, pid = ? WHERE id = ?`,
		models.RunStatusRunning, pid, id)
	return err
}

// FinishRun transitions a run to a terminal state with its exit code
func (s *SQLiteStore) FinishRun(id string, status models.RunStatus, exitCode int, errorMsg string) error {
	run, err := s.GetRun(id)
	if err != nil {
		return err
	}
	if err := models.ValidateTransition(run.Status, status); err != nil {
		return err
	}

	_, err = s.db.Exec(`
		UPDATE runs SET status = ?, exit_code = ?, finished_at = ?, error = ? WHERE id = ?
	`, status, exitCode, time.Now(), errorMsg, id)
	return err
}

// RecentRuns returns the most recent runs, newest first
func (s *SQLiteStore) RecentRuns(limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, args, status, exit_code, pid, started_at, finished_at, error
		FROM runs ORDER BY started_at DESC LIMIT ?
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
func (s *SQLiteStore) LastRun() (*models.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, args, status, exit_code, pid, started_at, finished_at, error
		FROM runs ORDER BY started_at DESC LIMIT 1
	`)
	return scanRun(row)
}

// PruneBefore deletes runs started before the cutoff, returning the count removed
func (s *SQLiteStore) PruneBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database is reachable
func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var argsJSON string
	var pid sql.NullInt64
	var finishedAt sql.NullTime
	var errorMsg sql.NullString

	err := row.Scan(&run.ID, &argsJSON, &run.Status, &run.ExitCode, &pid,
		&run.StartedAt, &finishedAt, &errorMsg)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(argsJSON), &run.Args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if pid.Valid {
		run.PID = int(pid.Int64)
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if errorMsg.Valid {
		run.Error = errorMsg.String
	}

	return &run, nil
}
