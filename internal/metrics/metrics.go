// =============================================================================
// SPED Anonymizer - Run Metrics
// =============================================================================
//
// This module counts what a run anonymized and writes the counters in
// Prometheus text format, for pickup by a node_exporter textfile collector.
//
// =============================================================================

package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the run counters on a private registry.
type Recorder struct {
	registry     *prometheus.Registry
	records      *prometheus.CounterVec
	documentKeys prometheus.Counter
	files        *prometheus.CounterVec
	lines        prometheus.Counter
}

// New registers the counters on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sped_anon_records_total",
			Help: "Records rewritten, by SPED record type.",
		}, []string{"record_type"}),
		documentKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sped_anon_document_keys_total",
			Help: "44-digit document keys replaced.",
		}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sped_anon_files_total",
			Help: "Files processed, by outcome.",
		}, []string{"status"}),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sped_anon_lines_total",
			Help: "Input lines read.",
		}),
	}
	r.registry.MustRegister(r.records, r.documentKeys, r.files, r.lines)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// AddRecords adds per-record-type counts.
func (r *Recorder) AddRecords(byType map[string]int) {
	for code, n := range byType {
		r.records.WithLabelValues(code).Add(float64(n))
	}
}

// AddDocumentKeys adds replaced document keys.
func (r *Recorder) AddDocumentKeys(n int) { r.documentKeys.Add(float64(n)) }

// AddLines adds input lines read.
func (r *Recorder) AddLines(n int) { r.lines.Add(float64(n)) }

// FileDone counts one file with its outcome ("success", "failed", "dry_run").
func (r *Recorder) FileDone(status string) { r.files.WithLabelValues(status).Inc() }

// WriteFile writes every counter to path atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
