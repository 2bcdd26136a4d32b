package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := c.Get("request_id").(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	_ = RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/visit/today", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), "u-9", []string{auth.RoleReceptionist}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "rid-1")

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := Logger(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"request_id":"rid-1"`, `"user_id":"u-9"`, `"status":200`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in log line %s", want, out)
		}
	}
}

func TestLogger_UsesErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/bill", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return apperr.NotFound("patient", "p-404")
	}

	err := Logger(logger)(handler)(c)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected error to pass through, got %v", err)
	}
	if !strings.Contains(buf.String(), `"status":404`) {
		t.Errorf("expected status 404 in log line %s", buf.String())
	}
}

func TestStatusOf(t *testing.T) {
	if statusOf(apperr.Validation("x")) != http.StatusBadRequest {
		t.Error("validation should map to 400")
	}
	if statusOf(echo.NewHTTPError(http.StatusTooManyRequests)) != http.StatusTooManyRequests {
		t.Error("echo errors keep their code")
	}
	if statusOf(errors.New("x")) != http.StatusInternalServerError {
		t.Error("unknown errors map to 500")
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	logger := zerolog.Nop()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		panic("test panic")
	}

	err := Recovery(logger)(handler)(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	if apperr.KindOf(err) != apperr.KindInternal {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestRecovery_KeepsErrorCause(t *testing.T) {
	errBoom := errors.New("nil map write")
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/bill", nil), httptest.NewRecorder())
	c.Set("request_id", "rid-1")

	var buf bytes.Buffer
	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error { panic(errBoom) })(c)
	if !errors.Is(err, errBoom) {
		t.Errorf("expected wrapped panic error, got %v", err)
	}
	if !strings.Contains(buf.String(), `"request_id":"rid-1"`) || !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("expected panic log with request id, got %s", buf.String())
	}
}

func TestRecovery_ReraisesAbort(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", r)
		}
	}()
	_ = Recovery(zerolog.Nop())(func(c echo.Context) error { panic(http.ErrAbortHandler) })(c)
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := Recovery(zerolog.Nop())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
