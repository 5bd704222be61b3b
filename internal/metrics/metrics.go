// ABOUTME: Prometheus counters and gauges describing ingestion runs
// ABOUTME: Uses a private registry and exports via the node_exporter textfile format

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records what one ingestion run did.
type Metrics struct {
	registry *prometheus.Registry

	Messages        *prometheus.CounterVec
	EntriesAdded    prometheus.Counter
	EntriesDeleted  prometheus.Counter
	DuplicateAdds   prometheus.Counter
	DestroyFailures prometheus.Counter
	Entries         prometheus.Gauge
	LastRunSuccess  prometheus.Gauge
	RunDuration     prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maillog_messages_total",
			Help: "Messages processed, by classification outcome.",
		}, []string{"outcome"}),
		EntriesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maillog_entries_added_total",
			Help: "Entries created by add commands.",
		}),
		EntriesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maillog_entries_deleted_total",
			Help: "Entries removed by delete commands.",
		}),
		DuplicateAdds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maillog_duplicate_adds_total",
			Help: "Add commands suppressed because the message was already applied.",
		}),
		DestroyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maillog_photo_destroy_failures_total",
			Help: "Photo asset deletions that failed during delete commands.",
		}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maillog_entries",
			Help: "Entries in the document after the run.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maillog_last_run_success_timestamp_seconds",
			Help: "Unix time of the last run that completed without error.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maillog_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}
	m.registry.MustRegister(
		m.Messages,
		m.EntriesAdded,
		m.EntriesDeleted,
		m.DuplicateAdds,
		m.DestroyFailures,
		m.Entries,
		m.LastRunSuccess,
		m.RunDuration,
	)
	return m
}

// Registry exposes the underlying registry as a Gatherer.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records the run duration and, on success, the completion time.
func (m *Metrics) ObserveRun(start time.Time, success bool) {
	now := time.Now()
	m.RunDuration.Set(now.Sub(start).Seconds())
	if success {
		m.LastRunSuccess.Set(float64(now.Unix()))
	}
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
