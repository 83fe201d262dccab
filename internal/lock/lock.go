// Package lock provides the single-instance guard for background pipeline
// runs. Acquisition is non-blocking: an overlapping cron trigger observes the
// lock held and skips, it never queues.
package lock

import "sync"

// Lock is a cooperative advisory mutual-exclusion handle. The production
// implementation is a flock(2) on a well-known file; tests substitute Memory.
type Lock interface {
	// TryAcquire attempts a non-blocking acquisition. A false return with nil
	// error means another holder has the lock — that is a skip, not an error.
	TryAcquire() (bool, error)

	// Release frees the lock. Safe to call multiple times.
	Release() error
}

// Memory is an in-process Lock for tests
type Memory struct {
	mu   sync.Mutex
	held bool
}

// NewMemory creates an in-memory lock
func NewMemory() *Memory {
	return &Memory{}
}

// TryAcquire takes the lock unless it is already held
func (m *Memory) TryAcquire() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held {
		return false, nil
	}
	m.held = true
	return true, nil
}

// Release frees the lock
func (m *Memory) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.held = false
	return nil
}
