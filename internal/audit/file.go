package audit

import (
	"fmt"
	"os"
)

// FileSink appends timestamped audit lines to the cron log file.
// O_APPEND keeps concurrent writers (an interactive run next to a background
// run) from interleaving within a line; ordering between them is not
// guaranteed and not required.
type FileSink struct {
	file *os.File
}

// NewFileSink opens (or creates) the cron log for appending
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}
	return &FileSink{file: f}, nil
}

// Emit appends one "[timestamp] Phase: args" line
func (s *FileSink) Emit(rec Record) error {
	_, err := fmt.Fprintf(s.file, "[%s] %s\n",
		rec.Time.Format("2006-01-02 15:04:05"), rec.Message())
	return err
}

// Close closes the log file
func (s *FileSink) Close() error {
	return s.file.Close()
}
