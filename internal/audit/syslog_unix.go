//go:build unix

package audit

import (
	"fmt"
	"log/syslog"

	"github.com/proxsoc/hydra-runner/pkg/models"
)

// SyslogSink mirrors audit records to the system logger under one fixed tag,
// matching what operators grep for in /var/log. The system-log convention
// uses past-tense "Started" where the cron log says "Starting".
type SyslogSink struct {
	writer *syslog.Writer
}

// NewSyslogSink connects to the local syslog daemon with the given tag
func NewSyslogSink(tag string) (*SyslogSink, error) {
	w, err := syslog.New(syslog.LOG_CRON|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to syslog: %w", err)
	}
	return &SyslogSink{writer: w}, nil
}

// Emit writes one tagged message per record
func (s *SyslogSink) Emit(rec Record) error {
	args := models.FormatArgs(rec.Args)
	switch rec.Phase {
	case PhaseStarting:
		return s.writer.Info(fmt.Sprintf("Started: %s", args))
	case PhaseCompleted:
		return s.writer.Info(fmt.Sprintf("Completed: %s", args))
	case PhaseFailed:
		return s.writer.Err(fmt.Sprintf("Failed (exit %d): %s", rec.ExitCode, args))
	default:
		return s.writer.Info(rec.Message())
	}
}

// Close disconnects from the syslog daemon
func (s *SyslogSink) Close() error {
	return s.writer.Close()
}
