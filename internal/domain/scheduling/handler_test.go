package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo, *mockRepo) {
	svc, repo, patients := newTestService()
	h := NewHandler(svc, patients)
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	return h, e, repo
}

func asUser(req *http.Request, userID string, roles ...string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), userID, roles))
}

func TestHandler_Book(t *testing.T) {
	h, e, repo := newTestHandler()
	slot := addSlot(repo, "d1", testNow.Add(48*time.Hour), false)

	body := `{"doctor_id":"d1","work_schedule_detail_id":"` + slot.ID + `","reason":"fever"}`
	req := httptest.NewRequest(http.MethodPost, "/appointment/book", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asUser(req, "user-p1", auth.RolePatient)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Book(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var appt Appointment
	json.Unmarshal(rec.Body.Bytes(), &appt)
	if appt.PatientID != "p1" {
		t.Errorf("expected patient resolved from caller, got %s", appt.PatientID)
	}
	if appt.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", appt.Status)
	}
}

func TestHandler_Book_PatientIDFromBodyIsIgnoredForPatients(t *testing.T) {
	h, e, repo := newTestHandler()
	slot := addSlot(repo, "d1", testNow.Add(48*time.Hour), false)

	body := `{"doctor_id":"d1","work_schedule_detail_id":"` + slot.ID + `","patient_id":"p2"}`
	req := httptest.NewRequest(http.MethodPost, "/appointment/book", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asUser(req, "user-p1", auth.RolePatient)
	rec := httptest.NewRecorder()

	if err := h.Book(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var appt Appointment
	json.Unmarshal(rec.Body.Bytes(), &appt)
	if appt.PatientID != "p1" {
		t.Errorf("expected caller's own patient id, got %s", appt.PatientID)
	}
}

func TestHandler_Book_BookedSlotReturns400(t *testing.T) {
	h, e, repo := newTestHandler()
	g := e.Group("")
	h.RegisterRoutes(g)
	slot := addSlot(repo, "d1", testNow.Add(48*time.Hour), true)

	body := `{"doctor_id":"d1","work_schedule_detail_id":"` + slot.ID + `"}`
	req := httptest.NewRequest(http.MethodPost, "/appointment/book", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asUser(req, "user-p1", auth.RolePatient)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"kind":"validation"`) {
		t.Errorf("expected validation kind in body, got %s", rec.Body.String())
	}
}

func TestHandler_Book_ForbiddenForDoctor(t *testing.T) {
	h, e, _ := newTestHandler()
	h.RegisterRoutes(e.Group(""))

	req := httptest.NewRequest(http.MethodPost, "/appointment/book", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asUser(req, "user-d1", auth.RoleDoctor)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 before body validation, got %d", rec.Code)
	}
}

func TestHandler_GuestBook(t *testing.T) {
	h, e, repo := newTestHandler()
	slot := addSlot(repo, "d2", testNow.Add(48*time.Hour), false)

	body := `{"doctor_id":"d2","work_schedule_detail_id":"` + slot.ID + `","full_name":"Guest","phone":"0911"}`
	req := httptest.NewRequest(http.MethodPost, "/appointment/guest-book", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.GuestBook(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Cancel(t *testing.T) {
	h, e, repo := newTestHandler()
	appt := bookFor(t, h.svc, repo, "p1", testNow.Add(72*time.Hour))

	req := asUser(httptest.NewRequest(http.MethodPut, "/", nil), "user-p2", auth.RolePatient)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID)
	if err := h.Cancel(c); !apperr.IsForbidden(err) {
		t.Errorf("expected forbidden for another patient, got %v", err)
	}

	req = asUser(httptest.NewRequest(http.MethodPut, "/", nil), "user-p1", auth.RolePatient)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID)
	if err := h.Cancel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_Cancel_PolicyViolation(t *testing.T) {
	h, e, repo := newTestHandler()
	appt := bookFor(t, h.svc, repo, "p1", testNow.Add(2*time.Hour))

	req := asUser(httptest.NewRequest(http.MethodPut, "/", nil), "user-p1", auth.RolePatient)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(appt.ID)
	if err := h.Cancel(c); !apperr.IsValidation(err) {
		t.Errorf("expected policy violation, got %v", err)
	}
}

func TestHandler_Cancel_PatientWithoutRecord(t *testing.T) {
	h, e, repo := newTestHandler()
	appt := bookFor(t, h.svc, repo, "p1", testNow.Add(72*time.Hour))

	req := asUser(httptest.NewRequest(http.MethodPut, "/", nil), "user-unknown", auth.RolePatient)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(appt.ID)
	if err := h.Cancel(c); !apperr.IsForbidden(err) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestHandler_ListMine(t *testing.T) {
	h, e, repo := newTestHandler()
	bookFor(t, h.svc, repo, "p1", testNow.Add(48*time.Hour))

	req := asUser(httptest.NewRequest(http.MethodGet, "/appointment/my", nil), "user-p1", auth.RolePatient)
	rec := httptest.NewRecorder()
	if err := h.ListMine(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var appts []Appointment
	json.Unmarshal(rec.Body.Bytes(), &appts)
	if len(appts) != 1 {
		t.Errorf("expected 1 appointment, got %d", len(appts))
	}
}

func TestHandler_GenerateSchedule(t *testing.T) {
	h, e, _ := newTestHandler()

	body := `{"doctor_id":"d1","work_date":"2026-03-12","start_time":"08:00","end_time":"09:00","slot_minutes":20}`
	req := httptest.NewRequest(http.MethodPost, "/work-schedule", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(context.Background(), "user-r1", []string{auth.RoleReceptionist}))
	rec := httptest.NewRecorder()

	if err := h.GenerateSchedule(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ws WorkSchedule
	json.Unmarshal(rec.Body.Bytes(), &ws)
	if len(ws.Slots) != 3 {
		t.Errorf("expected 3 slots, got %d", len(ws.Slots))
	}
}
