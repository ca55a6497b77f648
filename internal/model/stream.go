// Package model defines shared types for the stream relay.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultFilename is used whenever no better download name can be derived.
const DefaultFilename = "video.mp4"

// ErrInvalidQuality is returned by ParseQuality for unknown quality values.
var ErrInvalidQuality = errors.New("invalid quality")

// Quality is the client's preferred video quality.
type Quality string

const (
	QualityBest  Quality = "best"
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
)

// ParseQuality parses a quality query value. The empty string means best.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "", QualityBest:
		return QualityBest, nil
	case Quality720p, Quality1080p:
		return q, nil
	default:
		return "", fmt.Errorf("%w: %q (want best, 720p or 1080p)", ErrInvalidQuality, s)
	}
}

// MaxHeight returns the height cap for q, or 0 when uncapped.
func (q Quality) MaxHeight() int {
	switch q {
	case Quality720p:
		return 720
	case Quality1080p:
		return 1080
	default:
		return 0
	}
}

// StreamRequest is one client request to relay a media URL.
type StreamRequest struct {
	Ctx       context.Context
	SourceURL string
	Range     string // raw client Range header, empty when absent
	Download  bool
	Quality   Quality
	AudioOnly bool
}

// ResolvedTarget is the resolver's answer for a source URL.
// DirectURL is never empty; it falls back to the source URL.
type ResolvedTarget struct {
	DirectURL    string
	Filename     string
	Title        string
	SizeEstimate int64 // bytes, 0 when unknown
}

// UpstreamResponse is an upstream media response whose body has not been read.
// The holder must close Body exactly once.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// InfoResponse is the JSON body of the /info endpoint.
type InfoResponse struct {
	Success  bool   `json:"success"`
	Title    string `json:"title"`
	Filesize int64  `json:"filesize"`
	URL      string `json:"url"`
}
