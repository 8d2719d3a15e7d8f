package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// StatusSuccess labels a format that generated (and emitted) without error
	StatusSuccess = "success"
	// StatusFailure labels a format that failed
	StatusFailure = "failure"
)

// Registry holds the generation metrics
type Registry struct {
	GenerationsTotal        *prometheus.CounterVec
	CapabilityWarningsTotal *prometheus.CounterVec
	RecordsTotal            *prometheus.CounterVec
	GenerationDuration      *prometheus.HistogramVec
	FilesWrittenTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}
	factory := promauto.With(r.registry)

	r.GenerationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackctl_generations_total",
			Help: "Total number of format generations",
		},
		[]string{"format", "status"},
	)

	r.CapabilityWarningsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackctl_capability_warnings_total",
			Help: "Total number of capability warnings",
		},
		[]string{"format"},
	)

	r.RecordsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackctl_records_total",
			Help: "Total number of IR records built",
		},
		[]string{"kind"},
	)

	r.GenerationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stackctl_generation_duration_seconds",
			Help:    "Duration of validating, generating and emitting one format",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"format"},
	)

	r.FilesWrittenTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackctl_files_written_total",
			Help: "Total number of files written to disk",
		},
		[]string{"format"},
	)

	return r
}

// RecordGeneration records the outcome of one format
func (r *Registry) RecordGeneration(format string, err error, duration time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	r.GenerationsTotal.WithLabelValues(format, status).Inc()
	r.GenerationDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordWarnings adds n capability warnings for format
func (r *Registry) RecordWarnings(format string, n int) {
	r.CapabilityWarningsTotal.WithLabelValues(format).Add(float64(n))
}

// RecordRecord counts one IR record of kind
func (r *Registry) RecordRecord(kind string) {
	r.RecordsTotal.WithLabelValues(kind).Inc()
}

// RecordFilesWritten adds n written files for format
func (r *Registry) RecordFilesWritten(format string, n int) {
	r.FilesWrittenTotal.WithLabelValues(format).Add(float64(n))
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the metrics in the text exposition format for the
// node exporter textfile collector
func (r *Registry) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
