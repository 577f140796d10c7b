package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the ambient Prometheus metrics sink the executor wrapper
// records against. A nil *Metrics is valid everywhere it is used; every
// method on it is a safe no-op, so wiring metrics is opt-in per run.
type Metrics struct {
	inflightNodes  prometheus.Gauge
	stepLatency    *prometheus.HistogramVec
	nodesTotal     *prometheus.CounterVec
	mapFanoutSize  prometheus.Histogram
	failFastTotal  prometheus.Counter
}

// NewMetrics registers the engine's metrics with registry (use
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for test isolation).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowgraph",
			Name:      "inflight_nodes",
			Help:      "Nodes currently executing concurrently in a run.",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowgraph",
			Name:      "step_latency_ms",
			Help:      "Node execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"step_name", "kind", "status"}),
		nodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgraph",
			Name:      "nodes_total",
			Help:      "Total node executions by terminal status.",
		}, []string{"kind", "status"}),
		mapFanoutSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowgraph",
			Name:      "map_fanout_size",
			Help:      "Element count of map-over-list fan-outs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		failFastTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowgraph",
			Name:      "fail_fast_total",
			Help:      "Times a node was skipped by the fail-fast gate.",
		}),
	}
}

func (m *Metrics) nodeStarted() {
	if m == nil {
		return
	}
	m.inflightNodes.Inc()
}

func (m *Metrics) nodeFinished(stepName string, kind StepKind, status Status, durationMs int64) {
	if m == nil {
		return
	}
	m.inflightNodes.Dec()
	m.stepLatency.WithLabelValues(stepName, string(kind), string(status)).Observe(float64(durationMs))
	m.nodesTotal.WithLabelValues(string(kind), string(status)).Inc()
}

func (m *Metrics) mapFanout(n int) {
	if m == nil {
		return
	}
	m.mapFanoutSize.Observe(float64(n))
}

func (m *Metrics) failFastSkip() {
	if m == nil {
		return
	}
	m.failFastTotal.Inc()
}
