//go:build !unix

package audit

import "errors"

// SyslogSink is unavailable off unix; the trail runs with the file sink only.
type SyslogSink struct{}

// NewSyslogSink always fails on non-unix platforms
func NewSyslogSink(tag string) (*SyslogSink, error) {
	return nil, errors.New("syslog not available on this platform")
}

// Emit is never reachable on non-unix platforms
func (s *SyslogSink) Emit(rec Record) error { return nil }

// Close is never reachable on non-unix platforms
func (s *SyslogSink) Close() error { return nil }
