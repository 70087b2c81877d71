package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActorsTotal is the number of actors currently resident in the host.
	ActorsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lattice_actors_total",
			Help: "Total number of actors currently resident in the host",
		},
	)

	// CapabilitiesTotal is the number of registered capability providers,
	// by whether they are native (in-process) or portable (sandboxed).
	CapabilitiesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lattice_capabilities_total",
			Help: "Total number of registered capability providers by kind",
		},
		[]string{"kind"},
	)

	// BindingsTotal is the number of actor-to-capability bindings in force.
	BindingsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lattice_bindings_total",
			Help: "Total number of actor-to-capability bindings currently in force",
		},
	)

	// HotSwapsTotal counts replace_actor operations by outcome.
	HotSwapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lattice_hot_swaps_total",
			Help: "Total number of replace_actor hot swaps by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ActorsTotal)
	prometheus.MustRegister(CapabilitiesTotal)
	prometheus.MustRegister(BindingsTotal)
	prometheus.MustRegister(HotSwapsTotal)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
