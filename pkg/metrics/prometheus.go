package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records request lifecycle activity on a private registry.
type Collector struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	retries     prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_requests_submitted_total",
			Help: "Requests accepted by kind and type",
		}, []string{"kind", "type"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_request_transitions_total",
			Help: "Committed workflow transitions by kind and action",
		}, []string{"kind", "action"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_request_failures_total",
			Help: "Operations that returned a typed failure, by error code",
		}, []string{"operation", "code"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_conflict_retries_total",
			Help: "Check-then-act sequences rerun after a concurrency conflict",
		}),
	}
}

// The recorders are nil-safe so services can run without metrics.

func (c *Collector) Submitted(kind, requestType string) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(kind, requestType).Inc()
}

func (c *Collector) Transition(kind, action string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(kind, action).Inc()
}

func (c *Collector) Failure(operation, code string) {
	if c == nil {
		return
	}
	c.failures.WithLabelValues(operation, code).Inc()
}

func (c *Collector) Retry() {
	if c == nil {
		return
	}
	c.retries.Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
