package traverse

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rmtree"

// Metrics exposes traversal statistics as Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	expansions     *prometheus.CounterVec
	tagFetches     *prometheus.CounterVec
	nodes          prometheus.Counter
	inFlight       prometheus.Gauge
	maxInFlight    prometheus.Gauge
	maxQueueLength prometheus.Gauge
	duration       prometheus.Histogram
}

// NewMetrics creates the traversal collectors and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		expansions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "traversal",
			Name:      "expansions_total",
			Help:      "number of list-children calls by outcome",
		}, []string{"outcome"}),
		tagFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "traversal",
			Name:      "tag_fetches_total",
			Help:      "number of fetch-tags calls by outcome",
		}, []string{"outcome"}),
		nodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "traversal",
			Name:      "nodes_discovered_total",
			Help:      "number of distinct descendants discovered",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "traversal",
			Name:      "in_flight_requests",
			Help:      "number of expansions currently executed by workers",
		}),
		maxInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "traversal",
			Name:      "max_in_flight_requests",
			Help:      "highest number of concurrent expansions seen in the last run",
		}),
		maxQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "traversal",
			Name:      "max_queue_length",
			Help:      "longest frontier queue seen in the last run",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "traversal",
			Name:      "duration_seconds",
			Help:      "wall time of complete traversals",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	if registerer != nil {
		registerer.MustRegister(
			metrics.expansions,
			metrics.tagFetches,
			metrics.nodes,
			metrics.inFlight,
			metrics.maxInFlight,
			metrics.maxQueueLength,
			metrics.duration,
		)
	}
	return metrics
}

func outcomeLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (metrics *Metrics) observeExpansion(err error) {
	if metrics == nil {
		return
	}
	metrics.expansions.WithLabelValues(outcomeLabel(err)).Inc()
}

func (metrics *Metrics) observeTagFetch(err error) {
	if metrics == nil {
		return
	}
	metrics.tagFetches.WithLabelValues(outcomeLabel(err)).Inc()
}

func (metrics *Metrics) observeInFlight(delta float64) {
	if metrics == nil {
		return
	}
	metrics.inFlight.Add(delta)
}

func (metrics *Metrics) observeRun(result Result) {
	if metrics == nil {
		return
	}
	metrics.nodes.Add(float64(len(result.Nodes)))
	metrics.maxInFlight.Set(float64(result.Stats.MaxInFlight))
	metrics.maxQueueLength.Set(float64(result.Stats.MaxQueueLength))
	metrics.duration.Observe(result.Stats.Duration.Seconds())
}
