package service

import (
	"context"
	"log/slog"
	"strings"

	"streamvault-proxy-go/internal/model"
	"streamvault-proxy-go/internal/resolver"
)

// InfoService answers metadata lookups without touching the media itself.
type InfoService struct {
	resolver *resolver.Adapter
	logger   *slog.Logger
}

// NewInfoService creates an InfoService.
func NewInfoService(res *resolver.Adapter, logger *slog.Logger) *InfoService {
	return &InfoService{
		resolver: res,
		logger:   logger.With("component", "info_service"),
	}
}

// Info resolves q strictly. Unlike the relay it never falls back to the source URL.
func (s *InfoService) Info(ctx context.Context, q resolver.Query) (*model.InfoResponse, error) {
	if strings.TrimSpace(q.SourceURL) == "" {
		return nil, ErrMissingURL
	}

	target, err := s.resolver.Resolve(ctx, q)
	if err != nil {
		s.logger.Warn("info lookup failed", "err", err)
		return nil, err
	}

	return &model.InfoResponse{
		Success:  true,
		Title:    target.Title,
		Filesize: target.SizeEstimate,
		URL:      target.DirectURL,
	}, nil
}
