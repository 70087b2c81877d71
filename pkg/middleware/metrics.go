package middleware

import (
	"sync"

	"github.com/lattice-run/lattice-host/pkg/metrics"
	"github.com/lattice-run/lattice-host/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	invocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lattice_invocations_total",
			Help: "Total number of invocations dispatched by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	invocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lattice_invocation_duration_seconds",
			Help:    "Invocation latency from BeforeInvoke to AfterInvoke",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Collectors returns the Prometheus collectors MetricsMiddleware
// populates, for registration against a prometheus.Registerer.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{invocationsTotal, invocationDuration}
}

// MetricsMiddleware records invocation counts and latency. It never
// returns an error, so it never short-circuits the chain. Every
// Host shares one Chain (and so one MetricsMiddleware) across every
// actor and provider worker goroutine, so start times live in a
// sync.Map rather than a plain map.
type MetricsMiddleware struct {
	start sync.Map // inv.ID -> *metrics.Timer
}

// NewMetricsMiddleware constructs a ready-to-use MetricsMiddleware.
func NewMetricsMiddleware() *MetricsMiddleware {
	return &MetricsMiddleware{}
}

var _ Middleware = (*MetricsMiddleware)(nil)

func (m *MetricsMiddleware) BeforeInvoke(inv types.Invocation) (types.Invocation, error) {
	m.start.Store(inv.ID, metrics.NewTimer())
	return inv, nil
}

func (m *MetricsMiddleware) AfterInvoke(inv types.Invocation, resp types.InvocationResponse) (types.InvocationResponse, error) {
	outcome := "ok"
	if resp.Error != "" {
		outcome = "error"
	}
	invocationsTotal.WithLabelValues(inv.Operation, outcome).Inc()

	if v, ok := m.start.LoadAndDelete(inv.ID); ok {
		v.(*metrics.Timer).ObserveDurationVec(invocationDuration, inv.Operation)
	}
	return resp, nil
}

func (m *MetricsMiddleware) AfterActorInvoke(resp types.InvocationResponse) (types.InvocationResponse, error) {
	return resp, nil
}
