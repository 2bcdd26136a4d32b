package indication

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
	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/indication-ticket", h.Create)

	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleDiagnosticDoctor, auth.RoleLabDoctor, auth.RoleReceptionist))
	read.GET("/indication-ticket/:id", h.Get)
	read.GET("/medical-ticket/:id/indication-tickets", h.ListByMedicalTicket)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	t, err := h.svc.Create(ctx, auth.UserIDFromContext(ctx), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Get(c echo.Context) error {
	t, err := h.svc.GetIndication(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListByMedicalTicket(c echo.Context) error {
	list, err := h.svc.ListByMedicalTicket(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*IndicationTicket{}
	}
	return c.JSON(http.StatusOK, list)
}
