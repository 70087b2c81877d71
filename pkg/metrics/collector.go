package metrics

import (
	"time"

	"github.com/lattice-run/lattice-host/pkg/plugin"
	"github.com/lattice-run/lattice-host/pkg/registry"
)

// Collector periodically snapshots a host's registry into the
// package-level gauges, the way a Prometheus exporter would poll an
// in-memory store that isn't itself instrumented at the write site.
type Collector struct {
	reg     *registry.Registry
	plugins *plugin.Manager
	stopCh  chan struct{}
}

// NewCollector builds a collector over reg and plugins.
func NewCollector(reg *registry.Registry, plugins *plugin.Manager) *Collector {
	return &Collector{reg: reg, plugins: plugins, stopCh: make(chan struct{})}
}

// Start begins collecting on a fixed interval, collecting once
// immediately so the gauges aren't empty before the first tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(10 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ActorsTotal.Set(float64(len(c.reg.Actors())))
	BindingsTotal.Set(float64(len(c.reg.Bindings())))

	native, portable := 0, 0
	for _, desc := range c.reg.Capabilities() {
		if _, ok := c.plugins.Lookup(desc.ID, desc.BindingName); ok {
			native++
		} else {
			portable++
		}
	}
	CapabilitiesTotal.WithLabelValues("native").Set(float64(native))
	CapabilitiesTotal.WithLabelValues("portable").Set(float64(portable))
}
