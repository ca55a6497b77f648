package resolver

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"streamvault-proxy-go/internal/model"
)

// FormatSelector returns the yt-dlp format expression for a quality preference.
// Only single-file formats are selected: the relay forwards exactly one URL.
func FormatSelector(quality model.Quality, audioOnly bool) string {
	if audioOnly {
		return "bestaudio[ext=m4a]/bestaudio/best"
	}
	switch quality {
	case model.Quality1080p:
		return "best[height<=1080][ext=mp4]/best[height<=1080]/best"
	case model.Quality720p:
		return "best[height<=720][ext=mp4]/best[height<=720]/best"
	default:
		return "best[ext=mp4]/best"
	}
}

// BuildFilename joins a media title and extension into a download name.
func BuildFilename(title, ext string) string {
	title = strings.TrimSpace(title)
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if title == "" {
		return model.DefaultFilename
	}
	if ext == "" {
		ext = "mp4"
	}
	return title + "." + ext
}

// FilenameFromURL guesses a download name from the last path segment of rawURL.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.DefaultFilename
	}
	name := path.Base(u.Path)
	switch name {
	case "", ".", "/":
		return model.DefaultFilename
	}
	return name
}

// extFromMime maps a MIME type such as `video/mp4; codecs="avc1"` to "mp4".
func extFromMime(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "video/mp4":
		return "mp4"
	case "audio/mp4":
		return "m4a"
	case "video/webm":
		return "webm"
	case "audio/webm":
		return "weba"
	case "video/3gpp":
		return "3gp"
	}
	if _, sub, ok := strings.Cut(mediaType, "/"); ok {
		return sub
	}
	return ""
}

// youTubeHosts are the hosts handled by the native YouTube backend.
var youTubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

// IsYouTubeURL reports whether rawURL points at a YouTube page.
func IsYouTubeURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return youTubeHosts[strings.ToLower(u.Hostname())]
}
