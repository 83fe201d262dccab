// Package audit produces the durable trail of pipeline runs: one "Starting"
// record, then exactly one of "Completed" or "Failed (exit N)", fanned out to
// every configured sink. Formatting lives here, once — sinks only transport.
package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/proxsoc/hydra-runner/pkg/models"
)

// Phase is the audit phase of a record
type Phase string

const (
	PhaseStarting  Phase = "Starting"
	PhaseCompleted Phase = "Completed"
	PhaseFailed    Phase = "Failed"
)

// Record is one audit event for a pipeline run
type Record struct {
	Time     time.Time
	Phase    Phase
	Args     []string // original argument sequence, before interactive-flag stripping
	ExitCode int      // meaningful only for PhaseFailed
}

// Message renders the record body, e.g. "Starting: --nmap discovery" or
// "Failed (exit 2): --ms365". An empty argument list renders as "all".
func (r Record) Message() string {
	args := models.FormatArgs(r.Args)
	if r.Phase == PhaseFailed {
		return fmt.Sprintf("Failed (exit %d): %s", r.ExitCode, args)
	}
	return fmt.Sprintf("%s: %s", r.Phase, args)
}

// Sink receives audit records. Implementations must tolerate concurrent
// appends from an interactive run alongside the lock-protected background run.
type Sink interface {
	Emit(Record) error
	Close() error
}

// Trail fans each record out to all sinks. A failing sink never aborts the
// run — the error is returned for the caller to log and carry on.
type Trail struct {
	sinks []Sink
}

// NewTrail creates a trail over the given sinks
func NewTrail(sinks ...Sink) *Trail {
	return &Trail{sinks: sinks}
}

// Starting emits a "Starting" record for the given arguments
func (t *Trail) Starting(args []string) error {
	return t.emit(Record{Time: time.Now(), Phase: PhaseStarting, Args: args})
}

// Completed emits a "Completed" record for the given arguments
func (t *Trail) Completed(args []string) error {
	return t.emit(Record{Time: time.Now(), Phase: PhaseCompleted, Args: args})
}

// Failed emits a "Failed (exit N)" record for the given arguments
func (t *Trail) Failed(args []string, exitCode int) error {
	return t.emit(Record{Time: time.Now(), Phase: PhaseFailed, Args: args, ExitCode: exitCode})
}

func (t *Trail) emit(rec Record) error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Emit(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks
func (t *Trail) Close() error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
