// Package metrics exposes the request execution pipeline's counters as
// Prometheus metrics. Recording is feature-gated: Enabled starts false
// until Enable is called from server startup, and every recording
// function checks it before touching a collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kvsrv"

var (
	// CommandsTotal counts commands processed by the executor.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of commands processed",
		},
		[]string{"opcode", "status"}, // status: ok/error
	)

	// CommandDuration measures executor latency per opcode.
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution latency in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"opcode"},
	)

	// MemPoolOps counts memory-pool allocs and frees by operation and outcome.
	MemPoolOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mempool_ops_total",
			Help:      "Memory pool alloc/free operations",
		},
		[]string{"op", "outcome"}, // op: alloc/free, outcome: tls_hit/slab_hit/slab_miss/system (alloc), tls_cached/slab_returned/system (free)
	)

	// BufferPoolOps counts buffer-pool acquire/release operations by class.
	BufferPoolOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bufferpool_ops_total",
			Help:      "Buffer pool acquire/release operations",
		},
		[]string{"class", "op"}, // class: small/medium/large, op: acquire/release/new/drop
	)

	// ActiveConnections tracks currently open client connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently open client connections",
		},
	)

	// PipelineDepth observes how many commands were batched per dispatch.
	PipelineDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_depth",
			Help:      "Number of commands dispatched per pipeline batch",
			Buckets:   prometheus.LinearBuckets(1, 10, 10),
		},
	)

	// ParseErrors counts parser failures by kind.
	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Parse errors by kind",
		},
		[]string{"kind"},
	)

	// Uptime tracks server uptime in seconds.
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Server uptime in seconds",
		},
	)

	// Info exposes static build info as a labeled gauge set to 1.
	Info = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "kvsrv build info",
		},
		[]string{"version", "go_version", "os", "arch"},
	)
)

// Enabled gates every recording call in this package. The cost of a
// disabled counter is a single bool check rather than a lock or an
// atomic increment.
var Enabled = false

// Enable turns statistics recording on. Called once at server startup.
func Enable() { Enabled = true }

// InitInfo sets the static info gauge. Safe to call regardless of Enabled.
func InitInfo(version, goVersion, os, arch string) {
	Info.WithLabelValues(version, goVersion, os, arch).Set(1)
}

// RecordCommand records one executor invocation.
func RecordCommand(opcode string, seconds float64, ok bool) {
	if !Enabled {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	CommandsTotal.WithLabelValues(opcode, status).Inc()
	CommandDuration.WithLabelValues(opcode).Observe(seconds)
}

// RecordParseError records one parser failure.
func RecordParseError(kind string) {
	if !Enabled {
		return
	}
	ParseErrors.WithLabelValues(kind).Inc()
}

// RecordMemPoolOp records one memory-pool alloc or free outcome.
func RecordMemPoolOp(op, outcome string) {
	if !Enabled {
		return
	}
	MemPoolOps.WithLabelValues(op, outcome).Inc()
}

// RecordBufferPoolOp records one buffer-pool acquire or release outcome.
func RecordBufferPoolOp(class, op string) {
	if !Enabled {
		return
	}
	BufferPoolOps.WithLabelValues(class, op).Inc()
}

// ConnectionOpened increments the active-connections gauge.
func ConnectionOpened() {
	if !Enabled {
		return
	}
	ActiveConnections.Inc()
}

// ConnectionClosed decrements the active-connections gauge.
func ConnectionClosed() {
	if !Enabled {
		return
	}
	ActiveConnections.Dec()
}

// RecordPipelineDepth observes one dispatched batch's size.
func RecordPipelineDepth(n int) {
	if !Enabled {
		return
	}
	PipelineDepth.Observe(float64(n))
}
