package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a pipeline run
type RunStatus string

// Strict run states for the FSM
const (
	RunStatusStarting  RunStatus = "starting"  // Lock acquired, orchestrator not yet spawned
	RunStatusRunning   RunStatus = "running"   // Orchestrator process is executing
	RunStatusCompleted RunStatus = "completed" // Orchestrator exited 0
	RunStatusFailed    RunStatus = "failed"    // Orchestrator exited non-zero or failed to spawn
)

// Run represents one background execution of the pipeline orchestrator.
// Lock-denied triggers are never recorded — a skipped trigger must leave
// no trace attributable to a second run.
type Run struct {
	ID         string     `json:"id"`
	Args       []string   `json:"args"`
	Status     RunStatus  `json:"status"`
	ExitCode   int        `json:"exit_code"`
	PID        int        `json:"pid,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// NewRun creates a run record in the starting state
func NewRun(args []string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Args:      args,
		Status:    RunStatusStarting,
		ExitCode:  -1,
		StartedAt: time.Now(),
	}
}

// ArgsString renders the argument list for logs and audit records.
// An empty list means "run everything" and is rendered as the literal "all".
func (r *Run) ArgsString() string {
	return FormatArgs(r.Args)
}

// Duration returns how long the run took, or time since start if unfinished
func (r *Run) Duration() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// FormatArgs joins an orchestrator argument list for display.
// The placeholder "all" stands in for an empty list.
func FormatArgs(args []string) string {
	if len(args) == 0 {
		return "all"
	}
	return strings.Join(args, " ")
}
