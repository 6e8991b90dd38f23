package planning

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	previewSuccess  = "success"
	previewLeftOver = "leftover"
	previewFailed   = "error"
	previewCached   = "cached"

	updatePlans   = "plans"
	updatePreview = "preview"
)

var (
	registerOnce sync.Once

	editsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plansync",
			Subsystem: "planning",
			Name:      "edits_total",
			Help:      "Project edits applied, by operation.",
		},
		[]string{"operation"},
	)
	previewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plansync",
			Subsystem: "planning",
			Name:      "previews_total",
			Help:      "Preview lookups, by outcome.",
		},
		[]string{"outcome"},
	)
	previewDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "plansync",
			Subsystem: "planning",
			Name:      "preview_duration_seconds",
			Help:      "Time spent resolving and calculating a preview.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)
	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plansync",
			Subsystem: "planning",
			Name:      "updates_total",
			Help:      "Updates pushed to observers, by kind.",
		},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(editsTotal, previewsTotal, previewDuration, updatesTotal)
	})
}

func recordEdit(operation string) {
	editsTotal.WithLabelValues(operation).Inc()
}

func recordPreview(outcome string, duration time.Duration) {
	previewsTotal.WithLabelValues(outcome).Inc()
	if outcome != previewCached {
		previewDuration.Observe(duration.Seconds())
	}
}

func recordUpdate(kind string) {
	updatesTotal.WithLabelValues(kind).Inc()
}
