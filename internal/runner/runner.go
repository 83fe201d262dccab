// Package runner implements the single-instance pipeline runner: it wraps
// one invocation of the external Hydra orchestrator with interpreter
// resolution, a non-blocking advisory lock, dual-sink audit logging and
// run-history persistence.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/proxsoc/hydra-runner/internal/audit"
	"github.com/proxsoc/hydra-runner/internal/config"
	"github.com/proxsoc/hydra-runner/internal/lock"
	"github.com/proxsoc/hydra-runner/internal/metrics"
	"github.com/proxsoc/hydra-runner/internal/pyenv"
	"github.com/proxsoc/hydra-runner/pkg/logging"
	"github.com/proxsoc/hydra-runner/pkg/models"
	"github.com/proxsoc/hydra-runner/pkg/store"
)

// Options assembles a Runner. Lock, Trail and History are injectable so
// tests never touch a shared lock path, syslog or a real database; nil
// fields fall back to the production implementations derived from Config.
type Options struct {
	Config  config.Config
	Logger  *logging.Logger
	Lock    lock.Lock
	Trail   *audit.Trail
	History store.Store

	// Interactive passthrough streams; default to the process's own
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Result describes the outcome of one trigger
type Result struct {
	ExitCode    int
	Skipped     bool        // lock was held by a concurrent run
	Interactive bool        // ran in foreground, no lock, no audit
	Run         *models.Run // nil for interactive and skipped triggers
}

// Runner executes the orchestrator exactly once per trigger
type Runner struct {
	cfg     config.Config
	log     *logging.Logger
	lock    lock.Lock
	trail   *audit.Trail
	history store.Store

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// New creates a Runner from options, filling production defaults
func New(opts Options) *Runner {
	r := &Runner{
		cfg:     opts.Config,
		log:     opts.Logger,
		lock:    opts.Lock,
		trail:   opts.Trail,
		history: opts.History,
		stdin:   opts.Stdin,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
	}
	if r.log == nil {
		r.log = logging.NewLogger(logging.INFO, false)
	}
	if r.lock == nil {
		r.lock = lock.NewFileLock(r.cfg.LockPath)
	}
	if r.stdin == nil {
		r.stdin = os.Stdin
	}
	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.stderr == nil {
		r.stderr = os.Stderr
	}
	return r
}

// Execute runs one trigger. The argument list may contain the interactive
// toggle in any position; everything else is forwarded to the orchestrator.
func (r *Runner) Execute(ctx context.Context, args []string) (*Result, error) {
	forwarded, interactive := ExtractInteractive(args)
	if interactive {
		return r.runInteractive(ctx, forwarded)
	}
	return r.runBackground(ctx, forwarded)
}

// runInteractive executes the orchestrator in the foreground: output goes
// straight to the operator's terminal, no lock is taken and no audit entries
// are written. Overlap is the operator's own responsibility here.
func (r *Runner) runInteractive(ctx context.Context, args []string) (*Result, error) {
	python, err := pyenv.Resolve(r.cfg.ProjectDir, r.cfg.Python)
	if err != nil {
		return nil, err
	}

	cmd := r.orchestratorCmd(ctx, python, args)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	r.log.Debug("running orchestrator interactively",
		map[string]interface{}{"python": python, "args": models.FormatArgs(args)})

	code, err := runAndWait(cmd)
	if err != nil {
		return nil, err
	}
	return &Result{ExitCode: code, Interactive: true}, nil
}

// runAndWait runs a foreground command, converting a non-zero exit into a
// code rather than an error — interactive failures are the orchestrator's
// own, surfaced on the operator's terminal.
func runAndWait(cmd *exec.Cmd) (int, error) {
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			if code < 0 {
				code = 1
			}
			return code, nil
		}
		return 1, fmt.Errorf("failed to run orchestrator: %w", err)
	}
	return 0, nil
}

// runBackground executes the orchestrator under the advisory lock with both
// output streams appended to the pipeline log.
//
// Environment preparation (log dir, interpreter) happens before the lock
// attempt so misconfiguration fails loudly without ever touching the lock.
// The "Starting" audit record is emitted only after the lock is acquired:
// a skipped trigger leaves no audit trace at all.
func (r *Runner) runBackground(ctx context.Context, args []string) (*Result, error) {
	if err := os.MkdirAll(r.cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", r.cfg.LogDir, err)
	}
	python, err := pyenv.Resolve(r.cfg.ProjectDir, r.cfg.Python)
	if err != nil {
		return nil, err
	}

	acquired, err := r.lock.TryAcquire()
	if err != nil {
		return nil, fmt.Errorf("lock acquisition: %w", err)
	}
	if !acquired {
		// A previous scheduled run is still active. Not an error: exit 0
		// with no orchestrator spawned and no audit entries.
		r.log.Info("pipeline lock held, skipping run",
			map[string]interface{}{"lock": r.cfg.LockPath, "args": models.FormatArgs(args)})
		return &Result{ExitCode: 0, Skipped: true}, nil
	}
	defer func() {
		if err := r.lock.Release(); err != nil {
			r.log.Warn("lock release failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	trail, err := r.auditTrail()
	if err != nil {
		return nil, err
	}
	defer trail.Close()

	history := r.history
	if history == nil {
		history, err = store.NewStore(store.Config{Type: r.cfg.DBType, Path: r.cfg.DBPath, DSN: r.cfg.DBDSN})
		if err != nil {
			// History is supporting infrastructure: a broken database must
			// not stop the scheduled pipeline.
			r.log.Warn("run history unavailable", map[string]interface{}{"error": err.Error()})
			history = store.NewMemoryStore()
		} else {
			defer history.Close()
		}
	}

	run := models.NewRun(args)
	if err := history.CreateRun(run); err != nil {
		r.log.Warn("failed to record run", map[string]interface{}{"error": err.Error()})
	}
	if err := trail.Starting(args); err != nil {
		r.log.Warn("audit sink error", map[string]interface{}{"error": err.Error()})
	}

	code, runErr := r.spawnAndWait(ctx, python, args, run, history)

	if runErr != nil {
		r.finishRun(history, run, models.RunStatusFailed, code, runErr.Error())
		if err := trail.Failed(args, code); err != nil {
			r.log.Warn("audit sink error", map[string]interface{}{"error": err.Error()})
		}
		r.writeMetrics(run)
		return &Result{ExitCode: code, Run: run}, nil
	}

	r.finishRun(history, run, models.RunStatusCompleted, 0, "")
	if err := trail.Completed(args); err != nil {
		r.log.Warn("audit sink error", map[string]interface{}{"error": err.Error()})
	}
	r.writeMetrics(run)
	return &Result{ExitCode: 0, Run: run}, nil
}

// spawnAndWait starts the orchestrator with output appended to the pipeline
// log and returns its exit code. A non-nil error means the run failed; the
// code is then the orchestrator's exit code, or 1 if it never started.
func (r *Runner) spawnAndWait(ctx context.Context, python string, args []string, run *models.Run, history store.Store) (int, error) {
	pipelineLog, err := os.OpenFile(r.cfg.PipelineLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 1, fmt.Errorf("failed to open pipeline log: %w", err)
	}
	defer pipelineLog.Close()

	cmd := r.orchestratorCmd(ctx, python, args)
	cmd.Stdout = pipelineLog
	cmd.Stderr = pipelineLog

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("failed to start orchestrator: %w", err)
	}

	run.PID = cmd.Process.Pid
	if err := history.MarkRunning(run.ID, cmd.Process.Pid); err != nil {
		r.log.Warn("failed to update run", map[string]interface{}{"error": err.Error()})
	}
	r.log.Info("orchestrator started",
		map[string]interface{}{"pid": cmd.Process.Pid, "args": models.FormatArgs(args)})

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Killed by signal: no exit code to propagate verbatim
			code = 1
		}
		return code, fmt.Errorf("orchestrator exited with code %d", code)
	}
	return 1, fmt.Errorf("orchestrator wait: %w", err)
}

// orchestratorCmd builds the `python -m <module> <args...>` invocation with
// the project directory as working directory
func (r *Runner) orchestratorCmd(ctx context.Context, python string, args []string) *exec.Cmd {
	cmdArgs := append([]string{"-m", r.cfg.Module}, args...)
	cmd := exec.CommandContext(ctx, python, cmdArgs...)
	cmd.Dir = r.cfg.ProjectDir
	return cmd
}

// auditTrail returns the injected trail or builds the production file+syslog
// pair. Syslog may be unreachable (containers, chroots); the run proceeds
// with the file sink alone.
func (r *Runner) auditTrail() (*audit.Trail, error) {
	if r.trail != nil {
		return r.trail, nil
	}

	fileSink, err := audit.NewFileSink(r.cfg.CronLogPath())
	if err != nil {
		return nil, err
	}

	sinks := []audit.Sink{fileSink}
	if sysSink, err := audit.NewSyslogSink(r.cfg.SyslogTag); err != nil {
		r.log.Warn("syslog unavailable, auditing to file only",
			map[string]interface{}{"error": err.Error()})
	} else {
		sinks = append(sinks, sysSink)
	}
	return audit.NewTrail(sinks...), nil
}

func (r *Runner) finishRun(history store.Store, run *models.Run, status models.RunStatus, code int, msg string) {
	if err := history.FinishRun(run.ID, status, code, msg); err != nil {
		r.log.Warn("failed to finish run record", map[string]interface{}{"error": err.Error()})
	}
	// Mirror into the local copy for metrics and the caller's report
	now := time.Now()
	run.Status = status
	run.ExitCode = code
	run.Error = msg
	run.FinishedAt = &now
}

func (r *Runner) writeMetrics(run *models.Run) {
	if r.cfg.MetricsTextfile == "" {
		return
	}
	if err := metrics.WriteRun(r.cfg.MetricsTextfile, run); err != nil {
		r.log.Warn("failed to write metrics textfile", map[string]interface{}{"error": err.Error()})
	}
}
