//go:build unix

package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// FileLock holds a non-blocking exclusive flock on a configured file path.
// The zero-byte lock file is harmless if orphaned — the kernel releases the
// flock automatically when the fd is closed, including on process crash, so
// a dead holder can never deadlock future scheduled runs.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a lock handle for the given path. Nothing is acquired
// until TryAcquire.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryAcquire opens (or creates) the lock file and attempts a non-blocking
// exclusive flock. Returns (false, nil) when another process holds the lock.
// On success the holder's pid is written into the file for diagnostics.
func (l *FileLock) TryAcquire() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, fmt.Errorf("open lock file %s: %w", l.path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return false, nil
		}
		return false, fmt.Errorf("flock %s: %w", l.path, err)
	}

	// Record the holder pid. Best effort: the flock itself is the guard,
	// the pid is only read by the status command.
	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
		f.Sync()
	}

	l.file = f
	return true, nil
}

// Release unlocks the flock and closes the file descriptor. Safe to call
// multiple times.
func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// LOCK_UN before Close for explicitness; Close also releases the flock.
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		l.file = nil
		return fmt.Errorf("flock unlock %s: %w", l.path, err)
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the lock file path
func (l *FileLock) Path() string {
	return l.path
}

// HolderPID reads the pid recorded in a lock file. Returns 0 when the file
// is missing or empty (no holder has written into it yet).
func HolderPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("lock file %s: malformed pid %q", path, s)
	}
	return pid, nil
}
