// Package metrics exposes Prometheus collectors for the store and the sync
// pipeline.
//
// Collectors are registered on an injected registry rather than the global
// default, so tests and embedders own their own registry. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentlog"

// Metrics holds every collector the module reports.
type Metrics struct {
	recordsSynced    prometheus.Counter
	linesSkipped     prometheus.Counter
	uploadAttempts   *prometheus.CounterVec
	checkpointOffset prometheus.Gauge
	quarantines      *prometheus.CounterVec
	recoveries       *prometheus.CounterVec
	backups          *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		recordsSynced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_synced_total",
			Help:      "Records confirmed written to the remote sink",
		}),
		linesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_skipped_total",
			Help:      "Local log lines skipped because they failed to parse",
		}),
		uploadAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_attempts_total",
			Help:      "Batch upload attempts by outcome",
		}, []string{"status"}),
		checkpointOffset: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_offset_bytes",
			Help:      "Byte offset of the persisted sync checkpoint in the current log file",
		}),
		quarantines: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_quarantines_total",
			Help:      "Memory documents moved to quarantine",
		}, []string{"document"}),
		recoveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_recoveries_total",
			Help:      "Backup recovery attempts by outcome",
		}, []string{"document", "status"}),
		backups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_backups_total",
			Help:      "Backups taken before overwriting a critical document",
		}, []string{"document"}),
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordsSynced adds n confirmed records.
func (m *Metrics) RecordsSynced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsSynced.Add(float64(n))
}

// LinesSkipped adds n malformed lines.
func (m *Metrics) LinesSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.linesSkipped.Add(float64(n))
}

// UploadAttempt counts one upload attempt.
func (m *Metrics) UploadAttempt(ok bool) {
	if m == nil {
		return
	}
	m.uploadAttempts.WithLabelValues(status(ok)).Inc()
}

// CheckpointOffset records the persisted checkpoint offset.
func (m *Metrics) CheckpointOffset(offset int64) {
	if m == nil {
		return
	}
	m.checkpointOffset.Set(float64(offset))
}

// Quarantined counts a document moved to quarantine.
func (m *Metrics) Quarantined(document string) {
	if m == nil {
		return
	}
	m.quarantines.WithLabelValues(document).Inc()
}

// Recovery counts a backup recovery attempt.
func (m *Metrics) Recovery(document string, ok bool) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(document, status(ok)).Inc()
}

// BackupTaken counts a pre-write backup.
func (m *Metrics) BackupTaken(document string) {
	if m == nil {
		return
	}
	m.backups.WithLabelValues(document).Inc()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
