package uisync

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sessionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "plansync",
		Subsystem: "uisync",
		Name:      "sessions",
		Help:      "Observer sessions currently connected.",
	})
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plansync",
		Subsystem: "uisync",
		Name:      "requests_total",
		Help:      "Requests received, by op.",
	}, []string{"op"})
	droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "plansync",
		Subsystem: "uisync",
		Name:      "dropped_messages_total",
		Help:      "Messages dropped because a session outbox was full.",
	})
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessionsOpen, requestsTotal, droppedTotal)
	})
}
