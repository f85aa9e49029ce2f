package metrics

import "github.com/prometheus/client_golang/prometheus"

// promInstruments holds the small set of Prometheus counters exposed
// at /metrics/prom alongside the JSON aggregator — grounded on the
// teacher's Collector, but registered against a private
// prometheus.Registry rather than prometheus.DefaultRegisterer so
// constructing more than one Aggregator (every test in this package
// does) doesn't panic on a duplicate registration.
type promInstruments struct {
	registry    *prometheus.Registry
	requestsTot prometheus.Counter
	errorsTot   prometheus.Counter
	execSeconds prometheus.Histogram
}

func newPromInstruments() *promInstruments {
	registry := prometheus.NewRegistry()

	p := &promInstruments{
		registry: registry,
		requestsTot: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compute_requests_total",
			Help: "Total number of dispatcher requests handled.",
		}),
		errorsTot: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compute_errors_total",
			Help: "Total number of dispatcher requests that ended in error.",
		}),
		execSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compute_task_exec_seconds",
			Help:    "Task execution latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(p.requestsTot, p.errorsTot, p.execSeconds)
	return p
}

func (p *promInstruments) incRequests()               { p.requestsTot.Inc() }
func (p *promInstruments) incErrors()                 { p.errorsTot.Inc() }
func (p *promInstruments) recordExec(seconds float64) { p.execSeconds.Observe(seconds) }
