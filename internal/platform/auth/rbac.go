package auth

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

const (
	RolePatient          = "patient"
	RoleReceptionist     = "receptionist"
	RoleDoctor           = "doctor"
	RoleDiagnosticDoctor = "diagnostic_doctor"
	RoleLabDoctor        = "lab_doctor"
	// RoleAdmin is the clinic owner and passes every gate.
	RoleAdmin = "admin"
)

// Authorize allows the caller when it holds at least one required role.
func Authorize(userRoles []string, required ...string) error {
	for _, has := range userRoles {
		if has == RoleAdmin {
			return nil
		}
		for _, r := range required {
			if has == r {
				return nil
			}
		}
	}
	return apperr.Forbidden(fmt.Sprintf("required role: %s", strings.Join(required, " or ")))
}

// HasRole reports whether roles contains role exactly, without the admin bypass.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. It runs before the handler binds the body.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userRoles := RolesFromContext(ctx)
			if UserIDFromContext(ctx) == "" && len(userRoles) == 0 {
				return apperr.Unauthorized("authentication required")
			}
			if err := Authorize(userRoles, roles...); err != nil {
				return err
			}
			return next(c)
		}
	}
}
