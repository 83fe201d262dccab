package store

import (
	"errors"
	"time"

	"github.com/proxsoc/hydra-runner/pkg/models"
)

var (
	ErrRunNotFound         = errors.New("run not found")
	ErrUnsupportedDatabase = errors.New("unsupported database type")
)

// Store defines the interface for run-history persistence
// SQLite, PostgreSQL and the in-memory store all implement this interface
type Store interface {
	// Run operations
	CreateRun(run *models.Run) error
	GetRun(id string) (*models.Run, error)
	MarkRunning(id string, pid int) error
	FinishRun(id string, status models.RunStatus, exitCode int, errorMsg string) error
	RecentRuns(limit int) ([]*models.Run, error)
	LastRun() (*models.Run, error)
	PruneBefore(cutoff time.Time) (int, error)

	// Lifecycle
	Close() error
	HealthCheck() error
}

// Config holds database configuration
type Config struct {
	Type string // "sqlite", "postgres" or "memory"
	DSN  string // PostgreSQL connection string
	Path string // SQLite database path
}

// NewStore creates a store based on configuration
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "postgres", "postgresql":
		return NewPostgreSQLStore(config)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		path := config.Path
		if path == "" {
			path = "history.db"
		}
		return NewSQLiteStore(path)
	default:
		return nil, ErrUnsupportedDatabase
	}
}
