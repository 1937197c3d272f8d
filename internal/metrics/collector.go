package metrics

import (
	"time"
)

// Collector periodically refreshes gauges that aren't updated inline by
// the request path (uptime; memory-pool snapshot gauges would go here
// too once a pool is wired in by the caller).
type Collector struct {
	startTime time.Time
}

// NewCollector creates a collector whose uptime baseline starts now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Collect refreshes the periodic gauges. Called on a ticker by Exporter.
func (c *Collector) Collect() {
	if !Enabled {
		return
	}
	Uptime.Set(time.Since(c.startTime).Seconds())
}
