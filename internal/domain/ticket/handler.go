package ticket

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	desk := api.Group("", auth.RequireRole(auth.RoleReceptionist))
	desk.POST("/medical-ticket/:visit_id/create-ticket", h.CreateTicket)

	staff := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleDoctor))
	staff.GET("/medical-ticket/visit/:visit_id", h.GetByVisit)
	staff.GET("/medical-ticket/:id", h.GetTicket)
}

// CreateTicket answers 201 whether the ticket was issued now or earlier.
func (h *Handler) CreateTicket(c echo.Context) error {
	t, _, err := h.svc.CreateTicket(c.Request().Context(), c.Param("visit_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetByVisit(c echo.Context) error {
	t, err := h.svc.GetByVisit(c.Request().Context(), c.Param("visit_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) GetTicket(c echo.Context) error {
	t, err := h.svc.GetTicket(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}
