package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"streamvault-proxy-go/internal/resolver"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	resolver *resolver.Adapter
	version  Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(res *resolver.Adapter, v Version) *HealthHandler {
	return &HealthHandler{resolver: res, version: v}
}

// Root answers the liveness check browser frontends send to the service root.
func (h *HealthHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "streamvault-proxy",
	})
}

// Healthz returns a simple OK response for liveness checks.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns relay status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":           "ok",
		"version":          string(h.version),
		"resolver_backend": h.resolver.Backend(),
	})
}
