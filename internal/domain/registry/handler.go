package registry

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
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleDiagnosticDoctor, auth.RoleLabDoctor, auth.RoleReceptionist))
	read.GET("/medical-service", h.ListServices)
	read.GET("/medical-service/:id", h.GetService)
}

func (h *Handler) ListServices(c echo.Context) error {
	services, err := h.svc.ListServices(c.Request().Context(), c.QueryParam("service_type"))
	if err != nil {
		return err
	}
	if services == nil {
		services = []*MedicalService{}
	}
	return c.JSON(http.StatusOK, services)
}

func (h *Handler) GetService(c echo.Context) error {
	services, err := h.svc.GetServices(c.Request().Context(), []string{c.Param("id")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, services[0])
}
