//go:build unix

package lock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileLockAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.lock")

	l := NewFileLock(path)
	ok, err := l.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if !ok {
		t.Fatal("TryAcquire returned false on a fresh lock")
	}

	pid, err := HolderPID(path)
	if err != nil {
		t.Fatalf("HolderPID failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("HolderPID = %d, want %d", pid, os.Getpid())
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	// Release must be safe to call again
	if err := l.Release(); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}
}

func TestFileLockDeniesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.lock")

	first := NewFileLock(path)
	ok, err := first.TryAcquire()
	if err != nil || !ok {
		t.Fatalf("first TryAcquire = (%v, %v), want (true, nil)", ok, err)
	}
	defer first.Release()

	// flock is per open file description, so a second handle in the same
	// process contends the same way a second process would.
	second := NewFileLock(path)
	ok, err = second.TryAcquire()
	if err != nil {
		t.Fatalf("second TryAcquire failed: %v", err)
	}
	if ok {
		second.Release()
		t.Fatal("second TryAcquire succeeded while lock held")
	}
}

func TestFileLockReacquireAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.lock")

	first := NewFileLock(path)
	if ok, err := first.TryAcquire(); err != nil || !ok {
		t.Fatalf("TryAcquire = (%v, %v), want (true, nil)", ok, err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	second := NewFileLock(path)
	ok, err := second.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire after release failed: %v", err)
	}
	if !ok {
		t.Fatal("lock not reacquirable after release")
	}
	second.Release()
}

func TestMemoryLock(t *testing.T) {
	m := NewMemory()

	ok, err := m.TryAcquire()
	if err != nil || !ok {
		t.Fatalf("TryAcquire = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = m.TryAcquire()
	if err != nil {
		t.Fatalf("second TryAcquire failed: %v", err)
	}
	if ok {
		t.Fatal("memory lock acquired twice")
	}

	if err := m.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	ok, _ = m.TryAcquire()
	if !ok {
		t.Fatal("memory lock not reacquirable after release")
	}
}
