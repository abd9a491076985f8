package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists endpoints that bypass authentication: health checks
// and the credential endpoints themselves.
var publicPaths = map[string]bool{
	"/health":               true,
	"/health/db":            true,
	"/auth/login":           true,
	"/auth/forgot-password": true,
	"/auth/reset-password":  true,
}

// AuthSkipper reports whether the request path bypasses authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path bypasses auth and tenant
// middleware.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
