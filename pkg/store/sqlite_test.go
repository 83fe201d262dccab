package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/proxsoc/hydra-runner/pkg/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRunLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)

	run := models.NewRun([]string{"--nmap", "discovery"})
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if err := store.MarkRunning(run.ID, 4321); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}

	if err := store.FinishRun(run.ID, models.RunStatusCompleted, 0, ""); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != models.RunStatusCompleted {
		t.Errorf("Status = %v, want %v", got.Status, models.RunStatusCompleted)
	}
	if got.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", got.ExitCode)
	}
	if got.PID != 4321 {
		t.Errorf("PID = %d, want 4321", got.PID)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set after FinishRun")
	}
	if len(got.Args) != 2 || got.Args[0] != "--nmap" || got.Args[1] != "discovery" {
		t.Errorf("Args = %v, want [--nmap discovery]", got.Args)
	}
}

func TestSQLiteFailedRunKeepsExitCode(t *testing.T) {
	store := newTestSQLiteStore(t)

	run := models.NewRun([]string{"--ms365"})
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := store.MarkRunning(run.ID, 100); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if err := store.FinishRun(run.ID, models.RunStatusFailed, 2, "exit status 2"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != models.RunStatusFailed || got.ExitCode != 2 {
		t.Errorf("got status=%v exit=%d, want failed/2", got.Status, got.ExitCode)
	}
}

func TestSQLiteRejectsInvalidTransition(t *testing.T) {
	store := newTestSQLiteStore(t)

	run := models.NewRun(nil)
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	// starting → completed skips running and must be rejected
	if err := store.FinishRun(run.ID, models.RunStatusCompleted, 0, ""); err == nil {
		t.Error("FinishRun allowed starting → completed")
	}
}

func TestSQLiteRecentRunsOrderAndLimit(t *testing.T) {
	store := newTestSQLiteStore(t)

	base := time.Now().Add(-1 * time.Hour)
	for i := 0; i < 5; i++ {
		run := models.NewRun([]string{"--ms365"})
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.CreateRun(run); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	runs, err := store.RecentRuns(3)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.After(runs[i-1].StartedAt) {
			t.Error("RecentRuns not ordered newest first")
		}
	}
}

func TestSQLitePruneBefore(t *testing.T) {
	store := newTestSQLiteStore(t)

	old := models.NewRun(nil)
	old.StartedAt = time.Now().Add(-48 * time.Hour)
	if err := store.CreateRun(old); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	recent := models.NewRun(nil)
	if err := store.CreateRun(recent); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	removed, err := store.PruneBefore(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := store.GetRun(old.ID); err != ErrRunNotFound {
		t.Errorf("old run still present, err = %v", err)
	}
	if _, err := store.GetRun(recent.ID); err != nil {
		t.Errorf("recent run missing: %v", err)
	}
}

func TestSQLiteLastRunEmpty(t *testing.T) {
	store := newTestSQLiteStore(t)

	if _, err := store.LastRun(); err != ErrRunNotFound {
		t.Errorf("LastRun on empty store err = %v, want ErrRunNotFound", err)
	}
}
