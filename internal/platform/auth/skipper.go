package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication. Guests book without an account.
var publicPaths = map[string]bool{
	"/health":                 true,
	"/health/db":              true,
	"/metrics":                true,
	"/appointment/guest-book": true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path bypasses authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
