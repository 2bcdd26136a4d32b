package visit

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	desk := api.Group("", auth.RequireRole(auth.RoleReceptionist))
	desk.POST("/visit/create", h.CreateVisit)

	staff := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleDoctor))
	staff.GET("/visit/today", h.ListToday)
	staff.GET("/visit/:id", h.GetVisit)
	staff.PATCH("/visit/:id/status", h.UpdateStatus)
}

func (h *Handler) CreateVisit(c echo.Context) error {
	var req CreateVisitRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.CreateVisit(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVisit(c echo.Context) error {
	v, err := h.svc.GetVisit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListToday(c echo.Context) error {
	visits, err := h.svc.ListToday(c.Request().Context(), c.QueryParam("doctor_id"))
	if err != nil {
		return err
	}
	if visits == nil {
		visits = []*Visit{}
	}
	return c.JSON(http.StatusOK, visits)
}

type statusRequest struct {
	VisitStatus string `json:"visit_status" validate:"required"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	v, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("id"), req.VisitStatus)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}
