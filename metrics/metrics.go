// Package metrics exposes store and HTTP counters through prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace    = "kvgate"
	storeOpsName = namespace + "_store_operations_total"
)

// Recorder owns a private registry so tests and multiple servers never clash
// on the global one.
type Recorder struct {
	registry   *prometheus.Registry
	storeOps   *prometheus.CounterVec
	storeTime  *prometheus.HistogramVec
	httpTiming *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Store operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		storeTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Latency of store operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		httpTiming: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method, route and status",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
	r.registry.MustRegister(
		r.storeOps,
		r.storeTime,
		r.httpTiming,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveStore counts one store operation.
func (r *Recorder) ObserveStore(op, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.storeOps.WithLabelValues(op, outcome).Inc()
	r.storeTime.WithLabelValues(op).Observe(elapsed.Seconds())
}

// StoreCount reads a store operation counter back from the registry. A
// series that was never observed reads as 0 and is not created.
func (r *Recorder) StoreCount(op, outcome string) float64 {
	if r == nil {
		return 0
	}
	families, err := r.registry.Gather()
	if err != nil {
		return 0
	}
	for _, family := range families {
		if family.GetName() != storeOpsName {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, pair := range m.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["op"] == op && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// Middleware times each request, labelled by route pattern. Paths outside
// routes are labelled "unmatched" so keys never become label values.
func (r *Recorder) Middleware(routes ...string) echo.MiddlewareFunc {
	known := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		known[route] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if _, ok := known[route]; !ok {
				route = "unmatched"
			}
			r.httpTiming.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
