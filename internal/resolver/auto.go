package resolver

import (
	"context"
	"log/slog"

	"streamvault-proxy-go/internal/model"
)

// Auto routes YouTube pages to the native backend and everything else, plus
// native failures, to the generic backend.
type Auto struct {
	youtube Resolver
	generic Resolver
	logger  *slog.Logger
}

// NewAuto creates an Auto backend.
func NewAuto(youtube, generic Resolver, logger *slog.Logger) *Auto {
	return &Auto{youtube: youtube, generic: generic, logger: logger}
}

func (a *Auto) Resolve(ctx context.Context, q Query) (*model.ResolvedTarget, error) {
	if !IsYouTubeURL(q.SourceURL) {
		return a.generic.Resolve(ctx, q)
	}

	target, err := a.youtube.Resolve(ctx, q)
	if err == nil {
		return target, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	a.logger.Debug("native youtube resolution failed, trying generic backend", "err", err)
	return a.generic.Resolve(ctx, q)
}
