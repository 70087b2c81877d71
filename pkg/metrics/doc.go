// Package metrics defines the host's Prometheus gauges and counters
// (actor/capability/binding counts, hot-swap outcomes) and a Collector
// that polls a registry on an interval to keep them current.
package metrics
