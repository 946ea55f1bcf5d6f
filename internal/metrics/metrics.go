// Package metrics exposes client call statistics in the Prometheus format.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpcwire/rpcwire/internal/client"
)

const namespace = "rpcwire"

// Collector records response logs and call failures on its own registry.
type Collector struct {
	registry  *prometheus.Registry
	duration  *prometheus.HistogramVec
	responses *prometheus.CounterVec
	rpcErrors *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Round trip time of JSON-RPC sends by method.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 3, 5, 10, 20},
		}, []string{"method"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Resolved calls by method and outcome.",
		}, []string{"method", "outcome"}),
		rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_errors_total",
			Help:      "JSON-RPC error responses by method and code.",
		}, []string{"method", "code"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed calls by method and error kind.",
		}, []string{"method", "kind"}),
	}
	c.registry.MustRegister(c.duration, c.responses, c.rpcErrors, c.failures)
	return c
}

// Observe is a client.ResponseHook. Batch members other than the first carry
// no duration and are only counted.
func (c *Collector) Observe(l client.ResponseLog) {
	if l.Batch == "" || l.Duration > 0 {
		c.duration.WithLabelValues(l.Method).Observe(l.Duration.Seconds())
	}

	switch {
	case l.Response == nil:
		c.responses.WithLabelValues(l.Method, "empty").Inc()
	case l.Response.Error != nil:
		c.responses.WithLabelValues(l.Method, "error").Inc()
		c.rpcErrors.WithLabelValues(l.Method, strconv.Itoa(l.Response.Error.Code)).Inc()
	default:
		c.responses.WithLabelValues(l.Method, "ok").Inc()
	}
}

// ObserveError counts a failed call. Errors that are not *client.Error are
// counted under kind "other".
func (c *Collector) ObserveError(method string, err error) {
	if err == nil {
		return
	}
	kind := "other"
	var e *client.Error
	if errors.As(err, &e) {
		kind = string(e.Kind)
	}
	c.failures.WithLabelValues(method, kind).Inc()
}

// Registry returns the registry the metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
