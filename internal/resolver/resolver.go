// Package resolver turns user-supplied page URLs into direct media URLs.
//
// Backends are interchangeable behind the Resolver interface. The Adapter wraps
// the configured backend with a timeout and, for the streaming path, a fallback
// that treats the input as an already-direct link when resolution fails.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"streamvault-proxy-go/internal/config"
	"streamvault-proxy-go/internal/metrics"
	"streamvault-proxy-go/internal/model"
)

var (
	// ErrNoFormat means the source has no format matching the requested quality.
	ErrNoFormat = errors.New("no playable format")

	// ErrUnsupported means the backend cannot handle the source URL.
	ErrUnsupported = errors.New("unsupported source")
)

// Query is one resolution request.
type Query struct {
	SourceURL string
	Quality   model.Quality
	AudioOnly bool
}

// Resolver resolves a Query to a ResolvedTarget.
type Resolver interface {
	Resolve(ctx context.Context, q Query) (*model.ResolvedTarget, error)
}

// Adapter is the resolver entry point used by the relay and the info endpoint.
type Adapter struct {
	backend Resolver
	name    string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewAdapter builds the backend selected by cfg.Resolver.Backend.
// The metrics parameter is optional.
func NewAdapter(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Adapter, error) {
	timeout := time.Duration(cfg.Resolver.TimeoutSeconds) * time.Second
	logger = logger.With("component", "resolver")

	var backend Resolver
	switch cfg.Resolver.Backend {
	case config.BackendYtDlp, "":
		backend = NewYtDlp(cfg.Resolver.YtDlpPath)
	case config.BackendYouTube:
		backend = NewYouTube(&http.Client{Timeout: timeout})
	case config.BackendAuto:
		backend = NewAuto(NewYouTube(&http.Client{Timeout: timeout}), NewYtDlp(cfg.Resolver.YtDlpPath), logger)
	case config.BackendNone:
		backend = Passthrough{}
	default:
		return nil, fmt.Errorf("unknown resolver backend %q", cfg.Resolver.Backend)
	}

	return NewAdapterWithBackend(backend, cfg.Resolver.Backend, timeout, logger, m), nil
}

// NewAdapterWithBackend wraps an explicit backend. A zero timeout disables the deadline.
func NewAdapterWithBackend(backend Resolver, name string, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Adapter {
	return &Adapter{
		backend: backend,
		name:    name,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// Backend returns the configured backend name.
func (a *Adapter) Backend() string {
	return a.name
}

// Resolve resolves q strictly: any backend failure is returned.
func (a *Adapter) Resolve(ctx context.Context, q Query) (*model.ResolvedTarget, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	target, err := a.backend.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	if target == nil || target.DirectURL == "" {
		return nil, fmt.Errorf("%w: resolver returned no url", ErrNoFormat)
	}
	if target.Filename == "" {
		target.Filename = model.DefaultFilename
	}

	a.logger.Debug("resolved",
		"backend", a.name,
		"quality", string(q.Quality),
		"audio_only", q.AudioOnly,
		"size_estimate", target.SizeEstimate,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return target, nil
}

// ResolveOrFallback never fails. When resolution fails the source URL is used
// as-is with the default filename and an unknown size.
func (a *Adapter) ResolveOrFallback(ctx context.Context, q Query) *model.ResolvedTarget {
	target, err := a.Resolve(ctx, q)
	if err == nil {
		return target
	}

	// A client that went away is not a resolver failure.
	if ctx.Err() == nil {
		a.logger.Warn("resolution failed, using source url",
			"backend", a.name,
			"err", err,
		)
		if a.metrics != nil {
			a.metrics.ResolverFallbacks.Inc()
		}
	}
	return Fallback(q.SourceURL)
}

// Fallback returns the target used when resolution fails.
func Fallback(sourceURL string) *model.ResolvedTarget {
	return &model.ResolvedTarget{
		DirectURL:    sourceURL,
		Filename:     model.DefaultFilename,
		SizeEstimate: 0,
	}
}
