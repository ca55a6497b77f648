package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kkdai/youtube/v2"

	"streamvault-proxy-go/internal/model"
)

// YouTube resolves YouTube pages natively, without an external binary.
type YouTube struct {
	client *youtube.Client
}

// NewYouTube creates a YouTube backend using httpClient for page and player requests.
func NewYouTube(httpClient *http.Client) *YouTube {
	return &YouTube{
		client: &youtube.Client{HTTPClient: httpClient},
	}
}

// Resolve fetches video metadata and the signed stream URL of the best matching format.
func (y *YouTube) Resolve(ctx context.Context, q Query) (*model.ResolvedTarget, error) {
	if !IsYouTubeURL(q.SourceURL) {
		return nil, fmt.Errorf("youtube: %w: %s", ErrUnsupported, q.SourceURL)
	}

	video, err := y.client.GetVideoContext(ctx, q.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("youtube: %w", classifyYouTubeError(err))
	}

	format := pickFormat(video.Formats, q)
	if format == nil {
		return nil, fmt.Errorf("youtube: %w", ErrNoFormat)
	}

	streamURL, err := y.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("youtube: stream url: %w", err)
	}

	return &model.ResolvedTarget{
		DirectURL:    streamURL,
		Filename:     BuildFilename(video.Title, extFromMime(format.MimeType)),
		Title:        video.Title,
		SizeEstimate: format.ContentLength,
	}, nil
}

// classifyYouTubeError marks videos that can never be played as unsupported.
func classifyYouTubeError(err error) error {
	switch {
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	var statusErr *youtube.ErrPlayabiltyStatus
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	return err
}

// pickFormat selects a single-file format: audio-only formats when requested,
// otherwise progressive audio+video formats capped at the quality's height.
// Highest height wins, then highest bitrate.
func pickFormat(formats youtube.FormatList, q Query) *youtube.Format {
	var best *youtube.Format

	if q.AudioOnly {
		for i := range formats {
			f := &formats[i]
			if f.AudioChannels == 0 || f.Width != 0 || f.Height != 0 {
				continue
			}
			if best == nil || f.Bitrate > best.Bitrate {
				best = f
			}
		}
		return best
	}

	maxHeight := q.Quality.MaxHeight()
	var lowest *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || f.Height == 0 {
			continue
		}
		if lowest == nil || f.Height < lowest.Height {
			lowest = f
		}
		if maxHeight > 0 && f.Height > maxHeight {
			continue
		}
		if best == nil || f.Height > best.Height ||
			(f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = f
		}
	}

	// Nothing under the cap: the smallest available beats nothing.
	if best == nil {
		return lowest
	}
	return best
}
