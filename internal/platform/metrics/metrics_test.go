package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/platform/apperr"
)

func TestMetrics_WorkflowCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBooking("booked")
	m.ObserveBooking("slot_taken")
	m.ObserveTicket(true)
	m.ObserveTicket(false)
	m.ObserveTicket(false)
	m.ObserveBill("CLINICAL")
	m.ObserveResult("lab")
	m.ObserveVisit("WALK_IN")
	m.ObserveIndication("TEST")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("booked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tickets.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tickets.WithLabelValues("existing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bills.WithLabelValues("CLINICAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.results.WithLabelValues("lab")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveBooking("booked")
	m.ObserveTicket(true)
	m.ObserveBill("SERVICE")
	m.ObserveResult("imaging")
	m.ObserveVisit("BOOKED")
	m.ObserveIndication("IMAGING")
}

func TestMiddleware_RecordsRouteAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/bill/:id", func(c echo.Context) error {
		return apperr.NotFound("bill", c.Param("id"))
	})

	req := httptest.NewRequest(http.MethodGet, "/bill/b-1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/bill/:id", "404")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveBill("MEDICINE")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `clinic_bills_created_total{bill_type="MEDICINE"} 1`))
}
