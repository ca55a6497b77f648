// Package client provides the shared upstream connection pool.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"streamvault-proxy-go/internal/config"
	"streamvault-proxy-go/internal/metrics"
	"streamvault-proxy-go/internal/model"
)

var (
	// ErrPoolClosed is returned by Send after Close.
	ErrPoolClosed = errors.New("upstream pool closed")

	// ErrReadTimeout is returned by a body read after no data arrived within the read timeout.
	ErrReadTimeout = errors.New("upstream read timeout")
)

// UpstreamPool is the process-wide HTTP client used for every upstream fetch.
// It is safe for concurrent use; the transport enforces the connection limits.
type UpstreamPool struct {
	httpClient  *http.Client
	transport   *http.Transport
	readTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	closed      atomic.Bool
}

// NewUpstreamPool creates an UpstreamPool with connection limits and timeouts from cfg.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamPool(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamPool {
	connectTimeout := time.Duration(cfg.Upstream.ConnectTimeoutSeconds) * time.Second
	readTimeout := time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.Upstream.MaxIdleConnections,
		MaxIdleConnsPerHost:   cfg.Upstream.MaxIdleConnections,
		MaxConnsPerHost:       cfg.Upstream.MaxConnections,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		// Media bytes and Content-Length must reach the client unmodified.
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamPool{
		// No Client.Timeout: it would cap the whole transfer. Body reads are
		// bounded by the idle read timeout instead.
		httpClient:  &http.Client{Transport: transport},
		transport:   transport,
		readTimeout: readTimeout,
		logger:      logger.With("component", "upstream_pool"),
		metrics:     m,
	}
}

// Send executes req in streaming mode and returns as soon as response headers arrive.
// The caller owns the returned body and must close it; closing releases the
// connection back to the pool's keep-alive set.
func (p *UpstreamPool) Send(req *http.Request) (*model.UpstreamResponse, error) {
	if p.Closed() {
		return nil, ErrPoolClosed
	}

	p.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
	)

	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := p.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		cancel()
		if p.metrics != nil {
			p.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if p.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		p.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		p.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       newIdleTimeoutBody(resp.Body, p.readTimeout, cancel),
	}, nil
}

// Get is a convenience wrapper that builds a GET request and sends it.
func (p *UpstreamPool) Get(ctx context.Context, url string, header http.Header) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header
	}
	return p.Send(req)
}

// Close shuts the pool down. Safe to call more than once; in-flight bodies stay
// readable until their owners close them.
func (p *UpstreamPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.transport.CloseIdleConnections()
	p.logger.Info("upstream pool closed")
}

// Closed reports whether Close has been called.
func (p *UpstreamPool) Closed() bool {
	return p.closed.Load()
}

// idleTimeoutBody cancels the upstream request when a single Read waits longer
// than timeout. The timer only runs while a Read is blocked on the upstream, so
// time the consumer spends elsewhere never counts against it.
type idleTimeoutBody struct {
	rc        io.ReadCloser
	timer     *time.Timer
	timeout   time.Duration
	cancel    context.CancelFunc
	timedOut  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newIdleTimeoutBody(rc io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleTimeoutBody {
	return &idleTimeoutBody{rc: rc, timeout: timeout, cancel: cancel}
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	if b.timeout > 0 && !b.timedOut.Load() {
		if b.timer == nil {
			b.timer = time.AfterFunc(b.timeout, func() {
				b.timedOut.Store(true)
				b.cancel()
			})
		} else {
			b.timer.Reset(b.timeout)
		}
	}

	n, err := b.rc.Read(p)

	if b.timer != nil {
		b.timer.Stop()
	}
	if err != nil && err != io.EOF && b.timedOut.Load() {
		return n, fmt.Errorf("%w after %s: %w", ErrReadTimeout, b.timeout, err)
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.closeOnce.Do(func() {
		if b.timer != nil {
			b.timer.Stop()
		}
		b.closeErr = b.rc.Close()
		b.cancel()
	})
	return b.closeErr
}
