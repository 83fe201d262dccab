// Package metrics publishes last-run metrics in the Prometheus textfile
// collector convention: a short-lived cron process cannot hold a scrape
// endpoint open, so node_exporter picks the file up instead.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/proxsoc/hydra-runner/pkg/models"
)

// WriteRun rewrites the textfile with the outcome of a finished run.
// The write is atomic (tmp + rename) so node_exporter never scrapes a
// half-written file.
func WriteRun(path string, run *models.Run) error {
	reg := prometheus.NewRegistry()

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_pipeline_last_run_timestamp_seconds",
		Help: "Unix timestamp of the last background pipeline run start.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_pipeline_last_run_duration_seconds",
		Help: "Wall-clock duration of the last background pipeline run.",
	})
	exitCode := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_pipeline_last_run_exit_code",
		Help: "Exit code of the last background pipeline run.",
	})
	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_pipeline_last_run_success",
		Help: "Whether the last background pipeline run completed (1) or failed (0).",
	})
	reg.MustRegister(lastRun, duration, exitCode, success)

	lastRun.Set(float64(run.StartedAt.Unix()))
	duration.Set(run.Duration().Seconds())
	exitCode.Set(float64(run.ExitCode))
	if run.Status == models.RunStatusCompleted {
		success.Set(1)
	}

	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".hydra-metrics-*")
	if err != nil {
		return fmt.Errorf("failed to create metrics tempfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
