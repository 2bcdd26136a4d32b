// Package metrics exposes Prometheus collectors for HTTP traffic and the
// clinical workflow (bookings, tickets, indications, results, bills).
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge

	bookings    *prometheus.CounterVec
	visits      *prometheus.CounterVec
	tickets     *prometheus.CounterVec
	indications *prometheus.CounterVec
	results     *prometheus.CounterVec
	bills       *prometheus.CounterVec
}

// New registers all collectors on reg, or on the default registerer when
// reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being processed",
		}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "appointments_booked_total",
			Help:      "Slot booking attempts by outcome",
		}, []string{"outcome"}),
		visits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "visits_created_total",
			Help:      "Visits created by visit type",
		}, []string{"visit_type"}),
		tickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "medical_tickets_total",
			Help:      "Medical ticket requests by outcome (created or existing)",
		}, []string{"outcome"}),
		indications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "indication_tickets_created_total",
			Help:      "Indication tickets created by indication type",
		}, []string{"indication_type"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "results_recorded_total",
			Help:      "Lab and imaging results recorded",
		}, []string{"kind"}),
		bills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "bills_created_total",
			Help:      "Bills created by bill type",
		}, []string{"bill_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.inFlight,
		m.bookings, m.visits, m.tickets, m.indications, m.results, m.bills)
	return m
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by route template,
// so /visit/:id does not explode label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				status = errStatus(err)
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func errStatus(err error) int {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveVisit(visitType string) {
	if m == nil {
		return
	}
	m.visits.WithLabelValues(visitType).Inc()
}

func (m *Metrics) ObserveTicket(created bool) {
	if m == nil {
		return
	}
	outcome := "existing"
	if created {
		outcome = "created"
	}
	m.tickets.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveIndication(indicationType string) {
	if m == nil {
		return
	}
	m.indications.WithLabelValues(indicationType).Inc()
}

func (m *Metrics) ObserveResult(kind string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveBill(billType string) {
	if m == nil {
		return
	}
	m.bills.WithLabelValues(billType).Inc()
}
