package logging

import "fmt"

// GenerateLogrotateConfig creates a logrotate(8) stanza for the runner's log
// directory. The cron log and the captured pipeline output both grow without
// bound otherwise — the runner itself never truncates them (append-only).
func GenerateLogrotateConfig(logDir string) string {
	return fmt.Sprintf(`# Logrotate configuration for hydra-runner
# Install: sudo cp this file to /etc/logrotate.d/hydra-runner

%s/*.log {
    # Rotate weekly; pipeline runs are scheduled, not chatty
    weekly

    # Keep 8 weeks of logs
    rotate 8

    # Compress old logs
    compress
    delaycompress

    # Don't error if log is missing
    missingok

    # Don't rotate empty logs
    notifempty

    # Append-only writers reopen per run, so no signal is needed
    create 0644 root root
}
`, logDir)
}
