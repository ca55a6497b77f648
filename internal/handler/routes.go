package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, stream *StreamHandler, info *InfoHandler, health *HealthHandler) {
	e.GET("/", health.Root)
	e.GET("/healthz", health.Healthz)
	e.GET("/status", health.Status)

	e.GET("/stream", stream.Handle)
	e.GET("/info", info.Handle)
}
