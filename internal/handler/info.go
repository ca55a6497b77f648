package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"streamvault-proxy-go/internal/config"
	"streamvault-proxy-go/internal/model"
	"streamvault-proxy-go/internal/resolver"
	"streamvault-proxy-go/internal/service"
)

// InfoHandler serves media metadata lookups.
type InfoHandler struct {
	service        *service.InfoService
	defaultQuality model.Quality
	logger         *slog.Logger
}

// NewInfoHandler creates an InfoHandler.
func NewInfoHandler(svc *service.InfoService, cfg *config.Config, logger *slog.Logger) *InfoHandler {
	return &InfoHandler{
		service:        svc,
		defaultQuality: defaultQuality(cfg),
		logger:         logger.With("component", "info_handler"),
	}
}

// Handle serves GET /info?url=...&quality=...&audio_only=...
func (h *InfoHandler) Handle(c echo.Context) error {
	audioOnly, err := parseBool(c.QueryParam("audio_only"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid audio_only parameter: " + err.Error()})
	}
	quality, err := parseQuality(c.QueryParam("quality"), h.defaultQuality)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	info, err := h.service.Info(c.Request().Context(), resolver.Query{
		SourceURL: c.QueryParam("url"),
		Quality:   quality,
		AudioOnly: audioOnly,
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingURL) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing URL parameter"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   sanitizeError(err),
		})
	}

	return c.JSON(http.StatusOK, info)
}
