package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the console's prometheus collectors.
type Metrics struct {
	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
	openVisits      *prometheus.GaugeVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		backendRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "console_backend_requests_total",
			Help: "Requests issued to the REST backend",
		}, "resource", "method", "outcome"),
		backendDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "console_backend_request_duration_seconds",
			Help:    "Duration of requests issued to the REST backend",
			Buckets: prometheus.DefBuckets,
		}, "resource", "method"),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "console_store_notifications_total",
			Help: "Error and success notifications raised by stores",
		}, "resource", "kind"),
		openVisits: registerGaugeVec(registerer, prometheus.GaugeOpts{
			Name: "console_open_visits",
			Help: "Page visits currently holding stores",
		}, "page"),
	}
}

func (m *Metrics) ObserveBackend(resource, method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(resource, method, outcome).Inc()
	m.backendDuration.WithLabelValues(resource, method).Observe(d.Seconds())
}

func (m *Metrics) Notification(resource, kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(resource, kind).Inc()
}

func (m *Metrics) VisitOpened(page string) {
	if m == nil {
		return
	}
	m.openVisits.WithLabelValues(page).Inc()
}

func (m *Metrics) VisitClosed(page string) {
	if m == nil {
		return
	}
	m.openVisits.WithLabelValues(page).Dec()
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}

func registerGaugeVec(registerer prometheus.Registerer, opts prometheus.GaugeOpts, labels ...string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(opts, labels)
	if err := registerer.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return g
}
