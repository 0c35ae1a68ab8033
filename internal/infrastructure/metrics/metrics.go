package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for document writes, remote pushes and HTTP
// traffic. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	writesTotal     *prometheus.CounterVec
	writeDuration   *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
	usageRatio      prometheus.Gauge
	remotePushes    *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New builds the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whattodo_document_writes_total",
				Help: "Total number of document writes",
			},
			[]string{"area", "action", "result"},
		),
		writeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whattodo_document_write_duration_seconds",
				Help:    "Document write duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"area"},
		),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whattodo_coordinator_queue_depth",
			Help: "Mutations waiting for the in-flight write to finish",
		}),
		usageRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whattodo_storage_usage_ratio",
			Help: "Serialized document size as a fraction of the storage quota",
		}),
		remotePushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whattodo_remote_pushes_total",
				Help: "Total number of documents pushed to the remote store",
			},
			[]string{"result"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.writesTotal,
		m.writeDuration,
		m.queueDepth,
		m.usageRatio,
		m.remotePushes,
		m.requestsTotal,
		m.requestDuration,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveWrite records one committed or failed document write.
func (m *Metrics) ObserveWrite(area, action string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writesTotal.WithLabelValues(area, action, result).Inc()
	m.writeDuration.WithLabelValues(area).Observe(d.Seconds())
}

// SetQueueDepth records the coordinator queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// SetUsageRatio records the last computed storage usage.
func (m *Metrics) SetUsageRatio(r float64) {
	if m == nil {
		return
	}
	m.usageRatio.Set(r)
}

// ObserveRemotePush records one push to the remote store.
func (m *Metrics) ObserveRemotePush(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.remotePushes.WithLabelValues(result).Inc()
}

// Middleware counts and times HTTP requests.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			m.requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			m.requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
