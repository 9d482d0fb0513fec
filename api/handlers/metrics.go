package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts API traffic and leveling changes
type Metrics struct {
	requests    *prometheus.CounterVec
	slotWrites  prometheus.Counter
	slotDeletes prometheus.Counter
	gridChanges prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leveling",
			Name:      "http_requests_total",
			Help:      "API requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		slotWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leveling",
			Name:      "slot_writes_total",
			Help:      "Mesh slots saved.",
		}),
		slotDeletes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leveling",
			Name:      "slot_deletes_total",
			Help:      "Mesh slots deleted through the API.",
		}),
		gridChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leveling",
			Name:      "grid_size_changes_total",
			Help:      "Grid size changes that invalidated the meshes.",
		}),
	}
}
