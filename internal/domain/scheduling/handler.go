package scheduling

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/registry"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validation"
)

// PatientResolver maps a logged-in patient account to its patient record.
type PatientResolver interface {
	PatientByUser(ctx context.Context, userID string) (*registry.Patient, error)
}

type Handler struct {
	svc      *Service
	patients PatientResolver
}

func NewHandler(svc *Service, patients PatientResolver) *Handler {
	return &Handler{svc: svc, patients: patients}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	authed := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleReceptionist, auth.RoleDoctor,
		auth.RoleDiagnosticDoctor, auth.RoleLabDoctor))
	authed.GET("/appointment/available-slots/:schedule_id", h.ListAvailableSlots)

	patient := api.Group("", auth.RequireRole(auth.RolePatient))
	patient.POST("/appointment/book", h.Book)
	patient.PUT("/appointment/:id/cancel", h.Cancel)
	patient.GET("/appointment/my", h.ListMine)

	// Public; the auth skipper lets this path through without a token.
	api.POST("/appointment/guest-book", h.GuestBook)

	desk := api.Group("", auth.RequireRole(auth.RoleReceptionist))
	desk.PUT("/appointment/:id/confirm", h.Confirm)
	desk.POST("/work-schedule", h.GenerateSchedule)
}

// callerPatientID returns the patient record id of a patient caller, or ""
// for staff callers let through by the admin bypass.
func (h *Handler) callerPatientID(c echo.Context) (string, error) {
	ctx := c.Request().Context()
	if !auth.HasRole(auth.RolesFromContext(ctx), auth.RolePatient) {
		return "", nil
	}
	p, err := h.patients.PatientByUser(ctx, auth.UserIDFromContext(ctx))
	if apperr.IsNotFound(err) {
		return "", apperr.Forbidden("caller has no patient record")
	}
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

func (h *Handler) ListAvailableSlots(c echo.Context) error {
	slots, err := h.svc.ListAvailableSlots(c.Request().Context(), c.Param("schedule_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	pid, err := h.callerPatientID(c)
	if err != nil {
		return err
	}
	if pid != "" {
		req.PatientID = pid
	}
	appt, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GuestBook(c echo.Context) error {
	var req GuestBookRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	appt, err := h.svc.GuestBook(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) Cancel(c echo.Context) error {
	pid, err := h.callerPatientID(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.Cancel(c.Request().Context(), c.Param("id"), pid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Confirm(c echo.Context) error {
	appt, err := h.svc.Confirm(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListMine(c echo.Context) error {
	pid, err := h.callerPatientID(c)
	if err != nil {
		return err
	}
	if pid == "" {
		pid = c.QueryParam("patient_id")
	}
	appts, err := h.svc.ListForPatient(c.Request().Context(), pid)
	if err != nil {
		return err
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) GenerateSchedule(c echo.Context) error {
	var req GenerateScheduleRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	ws, err := h.svc.GenerateSchedule(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ws)
}
