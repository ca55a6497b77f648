// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/streamvault-proxy/config.toml",
	"configs/config.toml",
}

// DefaultUserAgent is sent upstream; many media origins reject non-browser clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Resolver backends.
const (
	BackendYtDlp   = "ytdlp"
	BackendYouTube = "youtube"
	BackendAuto    = "auto"
	BackendNone    = "none"
)

// maxChunkSizeBytes caps chunk_size_bytes; each in-flight stream holds one chunk buffer.
const maxChunkSizeBytes = 16 * 1024 * 1024

// reservedRoutes cannot be used as the metrics path.
var reservedRoutes = []string{"/stream", "/info", "/healthz", "/status", "/static"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config          string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host            string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port            int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	ResolverBackend string `kong:"help='Resolver backend: ytdlp|youtube|auto|none (overrides config).',env='RESOLVER_BACKEND'"`
	YtDlpPath       string `kong:"help='Path to the yt-dlp binary (overrides config).',env='YTDLP_PATH'"`
	LogLevel        string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`

	Version kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Resolver ResolverConfig `toml:"resolver"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"` // 0 means "use default" (8000)
	CORSOrigins []string `toml:"cors_origins"`
	StaticDir   string   `toml:"static_dir"`
}

// UpstreamConfig holds the shared connection pool settings.
type UpstreamConfig struct {
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
	TimeoutSeconds        int    `toml:"timeout_seconds"` // response headers and per-read idle limit
	MaxIdleConnections    int    `toml:"max_idle_connections"`
	MaxConnections        int    `toml:"max_connections"`
	UserAgent             string `toml:"user_agent"`
	ChunkSizeBytes        int    `toml:"chunk_size_bytes"`
}

// ResolverConfig selects how page URLs are turned into direct media URLs.
type ResolverConfig struct {
	Backend        string `toml:"backend"`
	YtDlpPath      string `toml:"ytdlp_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DefaultQuality string `toml:"default_quality"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/streamvault-proxy/config.toml then configs/config.toml and falls back
// to built-in defaults if neither exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.ResolverBackend != "" {
		c.Resolver.Backend = cli.ResolverBackend
	}
	if cli.YtDlpPath != "" {
		c.Resolver.YtDlpPath = cli.YtDlpPath
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0-65535; got %d", c.Server.Port)
	}
	if c.Upstream.ConnectTimeoutSeconds < 0 {
		return fmt.Errorf("upstream.connect_timeout_seconds must be non-negative; got %d", c.Upstream.ConnectTimeoutSeconds)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.MaxIdleConnections < 0 {
		return fmt.Errorf("upstream.max_idle_connections must be non-negative; got %d", c.Upstream.MaxIdleConnections)
	}
	if c.Upstream.MaxConnections < 0 {
		return fmt.Errorf("upstream.max_connections must be non-negative; got %d", c.Upstream.MaxConnections)
	}
	if c.Upstream.MaxConnections > 0 && c.Upstream.MaxIdleConnections > c.Upstream.MaxConnections {
		return fmt.Errorf("upstream.max_idle_connections (%d) exceeds upstream.max_connections (%d)",
			c.Upstream.MaxIdleConnections, c.Upstream.MaxConnections)
	}
	if c.Upstream.ChunkSizeBytes < 0 || c.Upstream.ChunkSizeBytes > maxChunkSizeBytes {
		return fmt.Errorf("upstream.chunk_size_bytes must be 0-%d; got %d", maxChunkSizeBytes, c.Upstream.ChunkSizeBytes)
	}
	if c.Resolver.TimeoutSeconds < 0 {
		return fmt.Errorf("resolver.timeout_seconds must be non-negative; got %d", c.Resolver.TimeoutSeconds)
	}

	switch strings.ToLower(c.Resolver.Backend) {
	case BackendYtDlp, BackendYouTube, BackendAuto, BackendNone, "":
		// valid
	default:
		return fmt.Errorf("resolver.backend must be one of: ytdlp, youtube, auto, none; got %q", c.Resolver.Backend)
	}
	switch strings.ToLower(c.Resolver.DefaultQuality) {
	case "best", "720p", "1080p", "":
		// valid
	default:
		return fmt.Errorf("resolver.default_quality must be one of: best, 720p, 1080p; got %q", c.Resolver.DefaultQuality)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		if p == "/" {
			return fmt.Errorf("metrics.path %q conflicts with the liveness route", p)
		}
		for _, reserved := range reservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields zero means "unset" because TOML cannot distinguish between
// an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Upstream.ConnectTimeoutSeconds == 0 {
		c.Upstream.ConnectTimeoutSeconds = 10
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.MaxIdleConnections == 0 {
		c.Upstream.MaxIdleConnections = 20
	}
	if c.Upstream.MaxConnections == 0 {
		c.Upstream.MaxConnections = 100
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = DefaultUserAgent
	}
	if c.Upstream.ChunkSizeBytes == 0 {
		c.Upstream.ChunkSizeBytes = 256 * 1024
	}
	c.Resolver.Backend = strings.ToLower(c.Resolver.Backend)
	if c.Resolver.Backend == "" {
		c.Resolver.Backend = BackendYtDlp
	}
	if c.Resolver.YtDlpPath == "" {
		c.Resolver.YtDlpPath = "yt-dlp"
	}
	if c.Resolver.TimeoutSeconds == 0 {
		c.Resolver.TimeoutSeconds = 60
	}
	c.Resolver.DefaultQuality = strings.ToLower(c.Resolver.DefaultQuality)
	if c.Resolver.DefaultQuality == "" {
		c.Resolver.DefaultQuality = "best"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FilePath returns the config file that was loaded, or empty when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
