package videosource

import (
	"strings"
)

var schemelessHosts = []string{
	"youtube.com/", "www.youtube.com/", "m.youtube.com/", "youtu.be/",
	"vimeo.com/", "player.vimeo.com/", "streamable.com/",
}

// NormalizeURL cleans up a reference typed by a person: surrounding space is
// trimmed, protocol-relative and scheme-less provider URLs get https, and
// youtube/vimeo links are rewritten to their canonical page form. References
// that are not URLs (mock placeholders, data and blob URLs, local paths) are
// returned trimmed but otherwise untouched.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(s, MockPrefix),
		strings.HasPrefix(s, "data:"),
		strings.HasPrefix(s, "blob:"):
		return s
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case strings.HasPrefix(s, "/"):
		return s
	case !strings.Contains(s, "://") && isSchemelessHost(s):
		s = "https://" + s
	}

	d := Classify(s)
	if d.IsValid && (d.Type == TypeYouTube || d.Type == TypeVimeo) {
		return CanonicalURL(d)
	}
	return s
}

func isSchemelessHost(s string) bool {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "www.") {
		return true
	}
	for _, h := range schemelessHosts {
		if strings.HasPrefix(lower, h) {
			return true
		}
	}
	return false
}
