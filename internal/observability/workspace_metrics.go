package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkspaceMetrics tracks the size of the workspace and the changes a
// session made to it. Methods are nil-safe.
type WorkspaceMetrics struct {
	files   *prometheus.GaugeVec
	bytes   *prometheus.GaugeVec
	changes *prometheus.CounterVec
	skipped prometheus.Counter
}

// NewWorkspaceMetrics registers the workspace metrics on reg.
func NewWorkspaceMetrics(reg prometheus.Registerer) *WorkspaceMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &WorkspaceMetrics{
		files: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labagent_workspace_files",
			Help: "Files in the workspace snapshot.",
		}, []string{"phase"}),
		bytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labagent_workspace_bytes",
			Help: "Total bytes in the workspace snapshot.",
		}, []string{"phase"}),
		changes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labagent_workspace_changes_total",
			Help: "Files changed during the session by action.",
		}, []string{"action"}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "labagent_workspace_unreadable_files_total",
			Help: "Files skipped by the snapshot because they could not be read.",
		}),
	}
}

// ObserveSnapshot records the snapshot taken in phase ("before"/"after").
func (w *WorkspaceMetrics) ObserveSnapshot(phase string, files int, bytes int64) {
	if w == nil {
		return
	}
	w.files.WithLabelValues(phase).Set(float64(files))
	w.bytes.WithLabelValues(phase).Set(float64(bytes))
}

// RecordChange counts one changed file.
func (w *WorkspaceMetrics) RecordChange(action string) {
	if w == nil {
		return
	}
	w.changes.WithLabelValues(action).Inc()
}

// RecordUnreadable counts a file the snapshot had to skip.
func (w *WorkspaceMetrics) RecordUnreadable() {
	if w == nil {
		return
	}
	w.skipped.Inc()
}
