package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"streamvault-proxy-go/internal/config"
	"streamvault-proxy-go/internal/model"
	"streamvault-proxy-go/internal/service"
)

// urlQueryPattern matches the query part of URLs embedded in error messages.
// Signed media URLs carry their credentials there.
var urlQueryPattern = regexp.MustCompile(`(https?://[^\s?"]+)\?[^\s"]*`)

// StreamHandler relays media to the client.
type StreamHandler struct {
	service        *service.StreamService
	defaultQuality model.Quality
	logger         *slog.Logger
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(svc *service.StreamService, cfg *config.Config, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		service:        svc,
		defaultQuality: defaultQuality(cfg),
		logger:         logger.With("component", "stream_handler"),
	}
}

// Handle serves GET /stream?url=...&download=...&quality=...&audio_only=...
func (h *StreamHandler) Handle(c echo.Context) error {
	req := c.Request()

	sr, err := h.parseRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	st, err := h.service.Open(sr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = st.Close() }()

	resp := c.Response()
	for key, vals := range st.Header {
		resp.Header()[key] = vals
	}
	resp.WriteHeader(st.StatusCode)

	// Headers are committed; from here a failure can only truncate the body.
	for chunk := range st.Chunks() {
		if _, err := resp.Write(chunk); err != nil {
			h.logger.Debug("client write failed", "err", err, "path", req.URL.Path)
			break
		}
		resp.Flush()
	}

	return nil
}

func (h *StreamHandler) parseRequest(c echo.Context) (*model.StreamRequest, error) {
	download, err := parseBool(c.QueryParam("download"))
	if err != nil {
		return nil, fmt.Errorf("invalid download parameter: %w", err)
	}
	audioOnly, err := parseBool(c.QueryParam("audio_only"))
	if err != nil {
		return nil, fmt.Errorf("invalid audio_only parameter: %w", err)
	}

	quality, err := parseQuality(c.QueryParam("quality"), h.defaultQuality)
	if err != nil {
		return nil, err
	}

	return &model.StreamRequest{
		Ctx:       c.Request().Context(),
		SourceURL: c.QueryParam("url"),
		Range:     c.Request().Header.Get("Range"),
		Download:  download,
		Quality:   quality,
		AudioOnly: audioOnly,
	}, nil
}

func (h *StreamHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrMissingURL) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Missing URL parameter",
		})
	}

	if errors.Is(err, context.Canceled) {
		h.logger.Debug("client went away before upstream answered", "path", c.Request().URL.Path)
		return c.NoContent(http.StatusBadGateway)
	}

	h.logger.Error("stream error",
		"err", sanitizeError(err),
		"path", c.Request().URL.Path,
	)
	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "Error connecting to video source",
	})
}

// defaultQuality returns the configured quality used when a request names none.
func defaultQuality(cfg *config.Config) model.Quality {
	q, err := model.ParseQuality(cfg.Resolver.DefaultQuality)
	if err != nil {
		return model.QualityBest
	}
	return q
}

// parseQuality parses a quality query value; empty selects def.
func parseQuality(raw string, def model.Quality) (model.Quality, error) {
	if raw == "" {
		return def, nil
	}
	return model.ParseQuality(raw)
}

// parseBool accepts the usual query-string spellings of a boolean. Empty means false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "f", "no", "n", "off":
		return false, nil
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	default:
		return false, fmt.Errorf("%q is not a boolean", s)
	}
}

// sanitizeError redacts URL query strings from error messages that may contain upstream URLs.
func sanitizeError(err error) string {
	return urlQueryPattern.ReplaceAllString(err.Error(), "${1}?[REDACTED]")
}
