package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"streamvault-proxy-go/internal/model"
)

// YtDlp resolves URLs by running the yt-dlp binary.
type YtDlp struct {
	binary string
}

// NewYtDlp creates a YtDlp backend; binary is a path or a name looked up in PATH.
func NewYtDlp(binary string) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{binary: binary}
}

// ytDlpInfo is the subset of yt-dlp's --dump-single-json output we use.
type ytDlpInfo struct {
	Title          string   `json:"title"`
	URL            string   `json:"url"`
	Ext            string   `json:"ext"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	Type           string   `json:"_type"`
}

// Resolve runs yt-dlp for q and decodes the selected format.
func (y *YtDlp) Resolve(ctx context.Context, q Query) (*model.ResolvedTarget, error) {
	args := []string{
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		"--skip-download",
		"--format", FormatSelector(q.Quality, q.AudioOnly),
		"--", q.SourceURL,
	}

	cmd := exec.CommandContext(ctx, y.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("yt-dlp: %w", ctx.Err())
		}
		if isNotFound(err) {
			return nil, fmt.Errorf("yt-dlp binary %q: %w", y.binary, err)
		}
		if msg := lastLine(stderr.String()); msg != "" {
			return nil, fmt.Errorf("yt-dlp: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}

	return parseYtDlpInfo(out)
}

func parseYtDlpInfo(out []byte) (*model.ResolvedTarget, error) {
	var info ytDlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("yt-dlp: decode output: %w", err)
	}
	if info.Type == "playlist" {
		return nil, fmt.Errorf("%w: playlists are not relayed", ErrUnsupported)
	}
	if info.URL == "" {
		return nil, fmt.Errorf("yt-dlp: %w", ErrNoFormat)
	}

	var size int64
	switch {
	case info.Filesize != nil:
		size = int64(*info.Filesize)
	case info.FilesizeApprox != nil:
		size = int64(*info.FilesizeApprox)
	}

	return &model.ResolvedTarget{
		DirectURL:    info.URL,
		Filename:     BuildFilename(info.Title, info.Ext),
		Title:        info.Title,
		SizeEstimate: size,
	}, nil
}

// lastLine returns the last non-empty line of s; yt-dlp prints its ERROR line last.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// isNotFound reports whether err means the yt-dlp binary is missing.
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
