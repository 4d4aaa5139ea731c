// Package metrics holds the Prometheus collectors of the MDM server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evalgo.org/mdm/internal/apperror"
)

// Metrics tracks catalog mutations, best-effort side channel failures and
// HTTP latency. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CatalogMutations     *prometheus.CounterVec
	HistoryWriteFailures *prometheus.CounterVec
	FamilySyncFailures   *prometheus.CounterVec
	ClosureFailures      prometheus.Counter
	RegistryCacheErrors  prometheus.Counter
	RequestDuration      *prometheus.HistogramVec
}

// New creates a Metrics instance registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CatalogMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mdm_catalog_mutations_total",
			Help: "Catalog writes by entity type and action",
		}, []string{"entity", "action"}),
		HistoryWriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mdm_history_write_failures_total",
			Help: "History rows that could not be written",
		}, []string{"action"}),
		FamilySyncFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mdm_family_sync_failures_total",
			Help: "Failed steps of the category/family pointer sync",
		}, []string{"step"}),
		ClosureFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mdm_attribute_closure_failures_total",
			Help: "Families or item types whose attribute closure could not be refreshed",
		}),
		RegistryCacheErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mdm_registry_cache_errors_total",
			Help: "Entity registry cache operations that failed",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdm_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncMutation records a catalog write.
func (m *Metrics) IncMutation(entity, action string) {
	if m == nil {
		return
	}
	m.CatalogMutations.WithLabelValues(entity, action).Inc()
}

// IncHistoryFailure records a history row that was dropped.
func (m *Metrics) IncHistoryFailure(action string) {
	if m == nil {
		return
	}
	m.HistoryWriteFailures.WithLabelValues(action).Inc()
}

// IncFamilySyncFailure records a failed sync step.
func (m *Metrics) IncFamilySyncFailure(step string) {
	if m == nil {
		return
	}
	m.FamilySyncFailures.WithLabelValues(step).Inc()
}

// IncClosureFailure records a failed closure refresh.
func (m *Metrics) IncClosureFailure() {
	if m == nil {
		return
	}
	m.ClosureFailures.Inc()
}

// IncRegistryCacheError records a failed cache operation.
func (m *Metrics) IncRegistryCacheError() {
	if m == nil {
		return
	}
	m.RegistryCacheErrors.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware observes request latency by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = apperror.Status(err)
				}
			}
			m.RequestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
