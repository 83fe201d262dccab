package store

import (
	"sort"
	"sync"
	"time"

	"github.com/proxsoc/hydra-runner/pkg/models"
)

// MemoryStore is an in-memory implementation of the run-history store,
// used by tests and as a fallback when no database is wanted
type MemoryStore struct {
	runs map[string]*models.Run
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*models.Run),
	}
}

// CreateRun inserts a new run record
func (s *MemoryStore) CreateRun(run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *run
	s.runs[run.ID] = &stored
	return nil
}

// GetRun retrieves a run by ID
func (s *MemoryStore) GetRun(id string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

// MarkRunning transitions a run to the running state and records the child pid
func (s *MemoryStore) MarkRunning(id string, pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if err := models.ValidateTransition(run.Status, models.RunStatusRunning); err != nil {
		return err
	}

	run.Status = models.RunStatusRunning
	run.PID = pid
	return nil
}

// FinishRun transitions a run to a terminal state with its exit code
func (s *MemoryStore) FinishRun(id string, status models.RunStatus, exitCode int, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if err := models.ValidateTransition(run.Status, status); err != nil {
		return err
	}

	now := time.Now()
	run.Status = status
	run.ExitCode = exitCode
	run.FinishedAt = &now
	run.Error = errorMsg
	return nil
}

// RecentRuns returns the most recent runs, newest first
func (s *MemoryStore) RecentRuns(limit int) ([]*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	runs := make([]*models.Run, 0, len(s.runs))
	for _, run := range s.runs {
		copied := *run
		runs = append(runs, &copied)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// LastRun returns the most recent run, or ErrRunNotFound if the history is empty
func (s *MemoryStore) LastRun() (*models.Run, error) {
	runs, err := s.RecentRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return runs[0], nil
}

// PruneBefore deletes runs started before the cutoff, returning the count removed
func (s *MemoryStore) PruneBefore(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, run := range s.runs {
		if run.StartedAt.Before(cutoff) {
			delete(s.runs, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

// HealthCheck always succeeds for the in-memory store
func (s *MemoryStore) HealthCheck() error {
	return nil
}
