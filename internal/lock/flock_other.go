//go:build !unix

package lock

import "errors"

var errFlockUnavailable = errors.New("file locking not available on this platform")

// FileLock is the non-unix stub. The pipeline hosts are Linux; on other
// platforms background mode refuses to start rather than run unguarded.
type FileLock struct {
	path string
}

// NewFileLock creates a lock handle for the given path
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryAcquire always fails on non-unix platforms
func (l *FileLock) TryAcquire() (bool, error) {
	return false, errFlockUnavailable
}

// Release is a no-op on non-unix platforms
func (l *FileLock) Release() error {
	return nil
}

// Path returns the lock file path
func (l *FileLock) Path() string {
	return l.path
}

// HolderPID always reports no holder on non-unix platforms
func HolderPID(path string) (int, error) {
	return 0, nil
}
