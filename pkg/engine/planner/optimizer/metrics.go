package optimizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
	statusSkipped = "skipped"
)

// metrics is a container of metrics for an optimizer.
type metrics struct {
	// registry to collect metrics as a unit.
	reg *prometheus.Registry

	passesTotal              *prometheus.CounterVec
	passSeconds              *prometheus.HistogramVec
	scanColumnsPruned        prometheus.Counter
	localProjectionsInserted prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()

	return &metrics{
		reg: reg,

		passesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "lazyplan_optimizer_passes_total",
			Help: "Total number of optimizer passes by pass and outcome",
		}, []string{"pass", "status"}),

		passSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name: "lazyplan_optimizer_pass_duration_seconds",
			Help: "Number of seconds an optimizer pass took to complete",

			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: time.Hour,
		}, []string{"pass"}),

		scanColumnsPruned: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "lazyplan_optimizer_scan_columns_pruned_total",
			Help: "Total number of source columns file scans no longer read after optimization",
		}),
		localProjectionsInserted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "lazyplan_optimizer_local_projections_inserted_total",
			Help: "Total number of local projections inserted above scans that share a source",
		}),
	}
}

// Register registers metrics to report to reg.
func (m *metrics) Register(reg prometheus.Registerer) error { return reg.Register(m.reg) }

// Unregister unregisters metrics from the provided Registerer.
func (m *metrics) Unregister(reg prometheus.Registerer) { reg.Unregister(m.reg) }
