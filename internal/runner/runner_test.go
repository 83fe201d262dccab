//go:build unix

package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/proxsoc/hydra-runner/internal/audit"
	"github.com/proxsoc/hydra-runner/internal/config"
	"github.com/proxsoc/hydra-runner/internal/lock"
	"github.com/proxsoc/hydra-runner/pkg/models"
	"github.com/proxsoc/hydra-runner/pkg/store"
)

// fakeOrchestrator stands in for the Python interpreter: it echoes its
// arguments and exits with $HYDRA_TEST_EXIT.
const fakeOrchestrator = `#!/bin/sh
echo "orchestrator invoked: $@"
exit ${HYDRA_TEST_EXIT:-0}
`

// recordingSink captures audit records for assertions
type recordingSink struct {
	records []audit.Record
}

func (s *recordingSink) Emit(rec audit.Record) error { s.records = append(s.records, rec); return nil }
func (s *recordingSink) Close() error                { return nil }

// failLock fails the test if background mode ever reaches the lock
type failLock struct{ t *testing.T }

func (l failLock) TryAcquire() (bool, error) {
	l.t.Error("lock attempted despite startup failure")
	return false, nil
}
func (l failLock) Release() error { return nil }

func newTestRunner(t *testing.T) (*Runner, *recordingSink, *store.MemoryStore, config.Config) {
	t.Helper()

	project := t.TempDir()
	binDir := filepath.Join(project, "venv", "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "python3"), []byte(fakeOrchestrator), 0755); err != nil {
		t.Fatalf("write fake interpreter: %v", err)
	}

	cfg := config.Default()
	cfg.ProjectDir = project
	cfg.LockPath = filepath.Join(project, "pipeline.lock")
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	sink := &recordingSink{}
	history := store.NewMemoryStore()
	r := New(Options{
		Config:  cfg,
		Lock:    lock.NewMemory(),
		Trail:   audit.NewTrail(sink),
		History: history,
	})
	return r, sink, history, cfg
}

func TestBackgroundRunSuccess(t *testing.T) {
	r, sink, history, cfg := newTestRunner(t)

	res, err := r.Execute(context.Background(), []string{"--nmap", "discovery"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.ExitCode != 0 || res.Skipped || res.Interactive {
		t.Errorf("result = %+v, want background success", res)
	}

	if len(sink.records) != 2 {
		t.Fatalf("got %d audit records, want 2", len(sink.records))
	}
	if sink.records[0].Message() != "Starting: --nmap discovery" {
		t.Errorf("first record = %q", sink.records[0].Message())
	}
	if sink.records[1].Message() != "Completed: --nmap discovery" {
		t.Errorf("second record = %q", sink.records[1].Message())
	}

	last, err := history.LastRun()
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if last.Status != models.RunStatusCompleted || last.ExitCode != 0 {
		t.Errorf("history run = %+v, want completed/0", last)
	}

	out, err := os.ReadFile(cfg.PipelineLogPath())
	if err != nil {
		t.Fatalf("pipeline log: %v", err)
	}
	if !strings.Contains(string(out), "orchestrator invoked") {
		t.Errorf("orchestrator output not captured: %q", string(out))
	}
}

func TestBackgroundRunFailurePropagatesExitCode(t *testing.T) {
	r, sink, history, _ := newTestRunner(t)
	t.Setenv("HYDRA_TEST_EXIT", "2")

	res, err := r.Execute(context.Background(), []string{"--ms365"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", res.ExitCode)
	}

	if len(sink.records) != 2 {
		t.Fatalf("got %d audit records, want 2", len(sink.records))
	}
	if sink.records[1].Message() != "Failed (exit 2): --ms365" {
		t.Errorf("failure record = %q", sink.records[1].Message())
	}

	last, err := history.LastRun()
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if last.Status != models.RunStatusFailed || last.ExitCode != 2 {
		t.Errorf("history run = %+v, want failed/2", last)
	}
}

func TestLockHeldSkipsWithoutSideEffects(t *testing.T) {
	r, sink, history, cfg := newTestRunner(t)

	held := lock.NewMemory()
	if ok, _ := held.TryAcquire(); !ok {
		t.Fatal("setup: could not pre-acquire lock")
	}
	r.lock = held

	res, err := r.Execute(context.Background(), []string{"--nmap", "discovery"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Skipped || res.ExitCode != 0 {
		t.Errorf("result = %+v, want skipped with exit 0", res)
	}

	if len(sink.records) != 0 {
		t.Errorf("skipped run wrote %d audit records", len(sink.records))
	}
	if _, err := history.LastRun(); err != store.ErrRunNotFound {
		t.Errorf("skipped run left history row, err = %v", err)
	}
	if _, err := os.Stat(cfg.PipelineLogPath()); !os.IsNotExist(err) {
		t.Error("skipped run touched the pipeline log")
	}
}

func TestLockReleasedAfterEveryRun(t *testing.T) {
	r, _, _, _ := newTestRunner(t)

	// Failed run first, then a successful one: both must release the lock
	t.Setenv("HYDRA_TEST_EXIT", "3")
	res, err := r.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.ExitCode != 3 || res.Skipped {
		t.Fatalf("result = %+v, want failed run with exit 3", res)
	}

	t.Setenv("HYDRA_TEST_EXIT", "0")
	res, err = r.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	if res.Skipped {
		t.Error("second run skipped: lock not released after failure")
	}
	if res.ExitCode != 0 {
		t.Errorf("second run ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestEmptyArgsUsePlaceholder(t *testing.T) {
	r, sink, _, _ := newTestRunner(t)

	if _, err := r.Execute(context.Background(), nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(sink.records) != 2 {
		t.Fatalf("got %d audit records, want 2", len(sink.records))
	}
	if sink.records[0].Message() != "Starting: all" {
		t.Errorf("record = %q, want placeholder", sink.records[0].Message())
	}
}

func TestInteractiveModeBypassesLockAndAudit(t *testing.T) {
	r, sink, history, cfg := newTestRunner(t)

	// Interactive mode must proceed even while the background lock is held
	held := lock.NewMemory()
	held.TryAcquire()
	r.lock = held

	var stdout bytes.Buffer
	r.stdout = &stdout
	r.stderr = &stdout

	res, err := r.Execute(context.Background(), []string{"-i", "--dry-run"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Interactive || res.ExitCode != 0 {
		t.Errorf("result = %+v, want interactive success", res)
	}

	if !strings.Contains(stdout.String(), "--dry-run") {
		t.Errorf("forwarded args missing from terminal output: %q", stdout.String())
	}
	if strings.Contains(stdout.String(), " -i ") {
		t.Errorf("interactive flag forwarded to orchestrator: %q", stdout.String())
	}
	if len(sink.records) != 0 {
		t.Errorf("interactive run wrote %d audit records", len(sink.records))
	}
	if _, err := history.LastRun(); err != store.ErrRunNotFound {
		t.Error("interactive run left history row")
	}
	if _, err := os.Stat(cfg.CronLogPath()); !os.IsNotExist(err) {
		t.Error("interactive run touched the cron log")
	}
}

func TestInteractiveModePropagatesExitCode(t *testing.T) {
	r, _, _, _ := newTestRunner(t)
	t.Setenv("HYDRA_TEST_EXIT", "5")

	var stdout bytes.Buffer
	r.stdout = &stdout
	r.stderr = &stdout

	res, err := r.Execute(context.Background(), []string{"--interactive"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.ExitCode != 5 {
		t.Errorf("ExitCode = %d, want 5", res.ExitCode)
	}
}

func TestMissingInterpreterFailsBeforeLock(t *testing.T) {
	r, _, _, _ := newTestRunner(t)

	// Point at a nonexistent interpreter and guard the lock
	r.cfg.Python = filepath.Join(r.cfg.ProjectDir, "missing", "python3")
	r.lock = failLock{t: t}

	if _, err := r.Execute(context.Background(), []string{"--nmap", "discovery"}); err == nil {
		t.Error("Execute succeeded without an interpreter")
	}
}

func TestMetricsTextfileWritten(t *testing.T) {
	r, _, _, _ := newTestRunner(t)
	metricsPath := filepath.Join(t.TempDir(), "hydra.prom")
	r.cfg.MetricsTextfile = metricsPath

	if _, err := r.Execute(context.Background(), []string{"--nmap", "discovery"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics textfile missing: %v", err)
	}
	if !strings.Contains(string(data), "hydra_pipeline_last_run_success 1") {
		t.Errorf("metrics content:\n%s", string(data))
	}
}
