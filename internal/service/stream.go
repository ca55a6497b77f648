// Package service implements the stream relay and the media info lookup.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"streamvault-proxy-go/internal/buffer"
	"streamvault-proxy-go/internal/client"
	"streamvault-proxy-go/internal/config"
	"streamvault-proxy-go/internal/metrics"
	"streamvault-proxy-go/internal/model"
	"streamvault-proxy-go/internal/resolver"
)

var (
	// ErrMissingURL is returned when the request carries no source URL.
	ErrMissingURL = errors.New("url parameter is required")

	// ErrUpstreamUnreachable wraps every failure to obtain upstream response headers.
	ErrUpstreamUnreachable = errors.New("error connecting to video source")
)

// defaultContentType is sent when the upstream response has no Content-Type.
const defaultContentType = "video/mp4"

// forwardableResponseHeaders are the only upstream headers relayed to the client.
var forwardableResponseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
}

// StreamService opens relays from a source URL to the client.
type StreamService struct {
	pool      *client.UpstreamPool
	resolver  *resolver.Adapter
	chunks    *buffer.ChunkPool
	userAgent string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewStreamService creates a StreamService. The metrics parameter is optional.
func NewStreamService(pool *client.UpstreamPool, res *resolver.Adapter, chunks *buffer.ChunkPool, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *StreamService {
	ua := cfg.Upstream.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return &StreamService{
		pool:      pool,
		resolver:  res,
		chunks:    chunks,
		userAgent: ua,
		logger:    logger.With("component", "stream_service"),
		metrics:   m,
	}
}

// Open resolves the source URL and connects to the upstream media server.
// On success the caller owns the returned Stream and must Close it.
func (s *StreamService) Open(sr *model.StreamRequest) (*Stream, error) {
	if strings.TrimSpace(sr.SourceURL) == "" {
		return nil, ErrMissingURL
	}
	ctx := sr.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	target := s.resolver.ResolveOrFallback(ctx, resolver.Query{
		SourceURL: sr.SourceURL,
		Quality:   sr.Quality,
		AudioOnly: sr.AudioOnly,
	})

	header := http.Header{}
	header.Set("User-Agent", s.userAgent)
	if sr.Range != "" {
		header.Set("Range", sr.Range)
	}

	resp, err := s.pool.Get(ctx, target.DirectURL, header)
	if err != nil {
		s.logger.Error("upstream connect failed",
			"target", RedactURL(target.DirectURL),
			"err", err,
		)
		if s.metrics != nil {
			s.metrics.RelayOutcomes.WithLabelValues(model.StateAborted.String()).Inc()
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}

	respHeader := filterResponseHeaders(resp.Header)
	if sr.Download {
		respHeader.Set("Content-Disposition", ContentDisposition(target.Filename))
	}

	st := &Stream{
		StatusCode: resp.StatusCode,
		Header:     respHeader,
		Target:     target,
		ctx:        ctx,
		body:       resp.Body,
		chunks:     s.chunks,
		logger:     s.logger,
		metrics:    s.metrics,
		state:      model.StateConnecting,
		started:    time.Now(),
	}
	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
	}

	s.logger.Debug("upstream connected",
		"target", RedactURL(target.DirectURL),
		"status", resp.StatusCode,
		"range", sr.Range,
		"download", sr.Download,
	)
	return st, nil
}

func filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(forwardableResponseHeaders)+1)
	for _, key := range forwardableResponseHeaders {
		if v := src.Get(key); v != "" {
			dst.Set(key, v)
		}
	}
	if dst.Get("Content-Type") == "" {
		dst.Set("Content-Type", defaultContentType)
	}
	return dst
}

// Stream is one open relay. It is not safe for concurrent use.
type Stream struct {
	StatusCode int
	Header     http.Header
	Target     *model.ResolvedTarget

	ctx     context.Context
	body    io.ReadCloser
	chunks  *buffer.ChunkPool
	logger  *slog.Logger
	metrics *metrics.Metrics

	state     model.RelayState
	bytes     int64
	started   time.Time
	closeOnce sync.Once
}

// Chunks yields the upstream body in order, in chunks of at most the pool's
// chunk size. A yielded slice is only valid until the next iteration.
// The sequence can be ranged over once.
func (st *Stream) Chunks() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if st.state != model.StateConnecting {
			return
		}
		st.state = model.StateStreaming

		buf := st.chunks.Get()
		defer st.chunks.Put(buf)

		for {
			n, err := st.body.Read(buf.B)
			if n > 0 {
				if !yield(buf.B[:n]) {
					st.finish(model.StateAborted, nil)
					return
				}
				st.bytes += int64(n)
			}
			if errors.Is(err, io.EOF) {
				st.finish(model.StateCompleted, nil)
				return
			}
			if err != nil {
				st.finish(model.StateAborted, err)
				return
			}
		}
	}
}

// Close releases the upstream response. It is safe to call more than once.
func (st *Stream) Close() error {
	var err error
	st.closeOnce.Do(func() {
		if !st.state.Terminal() {
			st.finish(model.StateAborted, nil)
		}
		err = st.body.Close()
		if st.metrics != nil {
			st.metrics.ActiveStreams.Dec()
		}
	})
	return err
}

// State returns the relay state.
func (st *Stream) State() model.RelayState {
	return st.state
}

// BytesRelayed returns the number of body bytes handed to the consumer.
func (st *Stream) BytesRelayed() int64 {
	return st.bytes
}

func (st *Stream) finish(state model.RelayState, err error) {
	if st.state.Terminal() {
		return
	}
	st.state = state

	attrs := []any{
		"target", RedactURL(st.Target.DirectURL),
		"outcome", state.String(),
		"bytes", st.bytes,
		"duration_ms", time.Since(st.started).Milliseconds(),
	}
	switch {
	case state == model.StateCompleted:
		st.logger.Debug("relay completed", attrs...)
	case st.ctx.Err() != nil:
		st.logger.Info("client disconnected", attrs...)
	case err != nil:
		st.logger.Error("upstream read failed", append(attrs, "err", err)...)
	default:
		st.logger.Info("relay stopped by consumer", attrs...)
	}

	if st.metrics != nil {
		st.metrics.RelayOutcomes.WithLabelValues(state.String()).Inc()
		st.metrics.BytesRelayed.Add(float64(st.bytes))
	}
}

// RedactURL drops the query string and userinfo from rawURL; signed media
// URLs carry credentials there.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "REDACTED"
	}
	u.Fragment = ""
	return u.String()
}
