package service

import (
	"net/url"
	"regexp"
	"strings"

	"streamvault-proxy-go/internal/model"
)

var (
	// unsafeFilenameChars matches everything outside letters, digits, '_', '-', '.' and space.
	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\-. ]`)

	nonASCIIChars = regexp.MustCompile(`[^\x20-\x7e]`)
)

// SanitizeFilename makes name safe to embed in a Content-Disposition value.
// Letters and digits of any script are kept.
// An empty result becomes model.DefaultFilename; a bare extension gets a "video" stem.
func SanitizeFilename(name string) string {
	return normalizeFilename(unsafeFilenameChars.ReplaceAllString(name, ""))
}

func normalizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if strings.Trim(name, ". ") == "" {
		return model.DefaultFilename
	}
	if strings.HasPrefix(name, ".") {
		return "video" + name
	}
	return name
}

// ContentDisposition returns the attachment header value for filename.
// Names outside ASCII get an RFC 5987 filename* parameter next to an ASCII fallback.
func ContentDisposition(filename string) string {
	name := SanitizeFilename(filename)
	ascii := normalizeFilename(nonASCIIChars.ReplaceAllString(name, ""))
	if ascii == name {
		return `attachment; filename="` + name + `"`
	}
	return `attachment; filename="` + ascii + `"; filename*=UTF-8''` + url.PathEscape(name)
}
