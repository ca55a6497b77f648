package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// cliWithPath returns a CLI struct pointing at the given config file.
func cliWithPath(path string) *CLI {
	return &CLI{Config: path}
}

// writeConfig writes data to a config.toml in a fresh temp dir and returns its path.
func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9000
cors_origins = ["https://streamsvault.netlify.app"]

[upstream]
connect_timeout_seconds = 5
timeout_seconds = 45
max_idle_connections = 10
max_connections = 50
user_agent = "test-agent/1.0"
chunk_size_bytes = 65536

[resolver]
backend = "auto"
ytdlp_path = "/usr/local/bin/yt-dlp"
timeout_seconds = 20
default_quality = "720p"

[log]
level = "debug"
format = "text"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://streamsvault.netlify.app" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Upstream.ConnectTimeoutSeconds != 5 {
		t.Errorf("Upstream.ConnectTimeoutSeconds = %d, want %d", cfg.Upstream.ConnectTimeoutSeconds, 5)
	}
	if cfg.Upstream.TimeoutSeconds != 45 {
		t.Errorf("Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 45)
	}
	if cfg.Upstream.MaxIdleConnections != 10 {
		t.Errorf("Upstream.MaxIdleConnections = %d, want %d", cfg.Upstream.MaxIdleConnections, 10)
	}
	if cfg.Upstream.MaxConnections != 50 {
		t.Errorf("Upstream.MaxConnections = %d, want %d", cfg.Upstream.MaxConnections, 50)
	}
	if cfg.Upstream.UserAgent != "test-agent/1.0" {
		t.Errorf("Upstream.UserAgent = %q, want %q", cfg.Upstream.UserAgent, "test-agent/1.0")
	}
	if cfg.Upstream.ChunkSizeBytes != 65536 {
		t.Errorf("Upstream.ChunkSizeBytes = %d, want %d", cfg.Upstream.ChunkSizeBytes, 65536)
	}
	if cfg.Resolver.Backend != BackendAuto {
		t.Errorf("Resolver.Backend = %q, want %q", cfg.Resolver.Backend, BackendAuto)
	}
	if cfg.Resolver.YtDlpPath != "/usr/local/bin/yt-dlp" {
		t.Errorf("Resolver.YtDlpPath = %q", cfg.Resolver.YtDlpPath)
	}
	if cfg.Resolver.TimeoutSeconds != 20 {
		t.Errorf("Resolver.TimeoutSeconds = %d, want %d", cfg.Resolver.TimeoutSeconds, 20)
	}
	if cfg.Resolver.DefaultQuality != "720p" {
		t.Errorf("Resolver.DefaultQuality = %q, want %q", cfg.Resolver.DefaultQuality, "720p")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
	if cfg.FilePath() != path {
		t.Errorf("FilePath() = %q, want %q", cfg.FilePath(), path)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "# empty\n")

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default Server.Port = %d, want %d", cfg.Server.Port, 8000)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("default Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
	if cfg.Upstream.ConnectTimeoutSeconds != 10 {
		t.Errorf("default Upstream.ConnectTimeoutSeconds = %d, want %d", cfg.Upstream.ConnectTimeoutSeconds, 10)
	}
	if cfg.Upstream.TimeoutSeconds != 30 {
		t.Errorf("default Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 30)
	}
	if cfg.Upstream.MaxIdleConnections != 20 {
		t.Errorf("default Upstream.MaxIdleConnections = %d, want %d", cfg.Upstream.MaxIdleConnections, 20)
	}
	if cfg.Upstream.MaxConnections != 100 {
		t.Errorf("default Upstream.MaxConnections = %d, want %d", cfg.Upstream.MaxConnections, 100)
	}
	if cfg.Upstream.UserAgent != DefaultUserAgent {
		t.Errorf("default Upstream.UserAgent = %q", cfg.Upstream.UserAgent)
	}
	if cfg.Upstream.ChunkSizeBytes != 256*1024 {
		t.Errorf("default Upstream.ChunkSizeBytes = %d, want %d", cfg.Upstream.ChunkSizeBytes, 256*1024)
	}
	if cfg.Resolver.Backend != BackendYtDlp {
		t.Errorf("default Resolver.Backend = %q, want %q", cfg.Resolver.Backend, BackendYtDlp)
	}
	if cfg.Resolver.YtDlpPath != "yt-dlp" {
		t.Errorf("default Resolver.YtDlpPath = %q, want %q", cfg.Resolver.YtDlpPath, "yt-dlp")
	}
	if cfg.Resolver.TimeoutSeconds != 60 {
		t.Errorf("default Resolver.TimeoutSeconds = %d, want %d", cfg.Resolver.TimeoutSeconds, 60)
	}
	if cfg.Resolver.DefaultQuality != "best" {
		t.Errorf("default Resolver.DefaultQuality = %q, want %q", cfg.Resolver.DefaultQuality, "best")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("default Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(cliWithPath("/nonexistent/config.toml"))
	if err == nil {
		t.Fatal("Load() expected error for missing explicit file, got nil")
	}
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeConfig(t, "[server\nport = ")

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected parse error, got nil")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want config: parse prefix", err)
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "0.0.0.0"
port = 8000

[resolver]
backend = "ytdlp"
ytdlp_path = "yt-dlp"

[log]
level = "info"
`)

	cli := &CLI{
		Config:          path,
		Host:            "127.0.0.1",
		Port:            3000,
		ResolverBackend: "none",
		YtDlpPath:       "/opt/yt-dlp",
		LogLevel:        "debug",
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q (CLI override)", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want %d (CLI override)", cfg.Server.Port, 3000)
	}
	if cfg.Resolver.Backend != BackendNone {
		t.Errorf("Resolver.Backend = %q, want %q (CLI override)", cfg.Resolver.Backend, BackendNone)
	}
	if cfg.Resolver.YtDlpPath != "/opt/yt-dlp" {
		t.Errorf("Resolver.YtDlpPath = %q, want %q (CLI override)", cfg.Resolver.YtDlpPath, "/opt/yt-dlp")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (CLI override)", cfg.Log.Level, "debug")
	}
}

func TestLoad_CLIOverrideInvalidBackend(t *testing.T) {
	path := writeConfig(t, "# empty\n")

	_, err := Load(&CLI{Config: path, ResolverBackend: "youtube-dl"})
	if err == nil {
		t.Fatal("Load() expected error for invalid backend override, got nil")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantSub string
	}{
		{
			name:    "negative port",
			data:    "[server]\nport = -1\n",
			wantSub: "server.port",
		},
		{
			name:    "port too large",
			data:    "[server]\nport = 70000\n",
			wantSub: "server.port",
		},
		{
			name:    "negative connect timeout",
			data:    "[upstream]\nconnect_timeout_seconds = -1\n",
			wantSub: "connect_timeout_seconds",
		},
		{
			name:    "negative timeout",
			data:    "[upstream]\ntimeout_seconds = -5\n",
			wantSub: "upstream.timeout_seconds",
		},
		{
			name:    "negative idle connections",
			data:    "[upstream]\nmax_idle_connections = -1\n",
			wantSub: "max_idle_connections",
		},
		{
			name:    "idle exceeds total",
			data:    "[upstream]\nmax_idle_connections = 50\nmax_connections = 10\n",
			wantSub: "exceeds",
		},
		{
			name:    "chunk size too large",
			data:    "[upstream]\nchunk_size_bytes = 104857600\n",
			wantSub: "chunk_size_bytes",
		},
		{
			name:    "unknown backend",
			data:    "[resolver]\nbackend = \"youtube-dl\"\n",
			wantSub: "resolver.backend",
		},
		{
			name:    "unknown quality",
			data:    "[resolver]\ndefault_quality = \"4k\"\n",
			wantSub: "resolver.default_quality",
		},
		{
			name:    "negative resolver timeout",
			data:    "[resolver]\ntimeout_seconds = -1\n",
			wantSub: "resolver.timeout_seconds",
		},
		{
			name:    "invalid log level",
			data:    "[log]\nlevel = \"verbose\"\n",
			wantSub: "log.level",
		},
		{
			name:    "invalid log format",
			data:    "[log]\nformat = \"xml\"\n",
			wantSub: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.data)
			_, err := Load(cliWithPath(path))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want mention of %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoad_BackendCaseInsensitive(t *testing.T) {
	path := writeConfig(t, "[resolver]\nbackend = \"YouTube\"\ndefault_quality = \"1080P\"\n")

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Resolver.Backend != BackendYouTube {
		t.Errorf("Resolver.Backend = %q, want %q", cfg.Resolver.Backend, BackendYouTube)
	}
	if cfg.Resolver.DefaultQuality != "1080p" {
		t.Errorf("Resolver.DefaultQuality = %q, want %q", cfg.Resolver.DefaultQuality, "1080p")
	}
}

func TestWarnPermissions_Loose(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	path := writeConfig(t, "# test")

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if !strings.Contains(buf.String(), "readable by group/others") {
		t.Errorf("expected permission warning, got: %q", buf.String())
	}
}

func TestWarnPermissions_Strict(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if buf.Len() != 0 {
		t.Errorf("expected no warning for 0600 file, got: %q", buf.String())
	}
}

func TestWarnPermissions_NoFile(t *testing.T) {
	cfg := &Config{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if buf.Len() != 0 {
		t.Errorf("expected no warning when running on defaults, got: %q", buf.String())
	}
}

func TestFindConfigInPaths_Found(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 8000\n")

	got := findConfigInPaths([]string{path})
	if got != path {
		t.Errorf("findConfigInPaths() = %q, want %q", got, path)
	}
}

func TestFindConfigInPaths_NotFound(t *testing.T) {
	got := findConfigInPaths([]string{"/nonexistent/a.toml", "/nonexistent/b.toml"})
	if got != "" {
		t.Errorf("findConfigInPaths() = %q, want empty", got)
	}
}

func TestFindConfigInPaths_Priority(t *testing.T) {
	path1 := writeConfig(t, "[server]\nport = 8000\n")
	path2 := writeConfig(t, "[server]\nport = 9000\n")

	got := findConfigInPaths([]string{path1, path2})
	if got != path1 {
		t.Errorf("findConfigInPaths() = %q, want first match %q", got, path1)
	}
}

func TestLoad_MetricsPathDefault(t *testing.T) {
	path := writeConfig(t, "[metrics]\nenabled = true\n")

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_MetricsPathNoLeadingSlash(t *testing.T) {
	path := writeConfig(t, "[metrics]\nenabled = true\npath = \"metrics\"\n")

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for metrics path without leading slash, got nil")
	}
	if !strings.Contains(err.Error(), "must start with '/'") {
		t.Errorf("error = %q, want mention of leading slash", err)
	}
}

func TestLoad_MetricsPathConflictsWithRoute(t *testing.T) {
	for _, p := range []string{"/", "/stream", "/info", "/healthz", "/status", "/static/metrics"} {
		t.Run(p, func(t *testing.T) {
			path := writeConfig(t, "[metrics]\nenabled = true\npath = \""+p+"\"\n")
			_, err := Load(cliWithPath(path))
			if err == nil {
				t.Fatalf("Load() expected conflict error for %q, got nil", p)
			}
		})
	}
}

func TestLoad_MetricsPathValid(t *testing.T) {
	path := writeConfig(t, "[metrics]\nenabled = true\npath = \"/internal/metrics\"\n")

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/internal/metrics")
	}
}

func TestLoad_MetricsDisabledSkipsPathValidation(t *testing.T) {
	path := writeConfig(t, "[metrics]\nenabled = false\npath = \"/stream\"\n")

	_, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v; disabled metrics should skip path validation", err)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	sc := &ServerConfig{Host: "127.0.0.1", Port: 3000}
	want := "127.0.0.1:3000"
	if got := sc.Addr(); got != want {
		t.Errorf("Addr() = %q, want %q", got, want)
	}
}
