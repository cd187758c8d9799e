package playback

import (
	"path/filepath"
	"strings"
)

const defaultVideoType = "video/mp4"

var videoTypes = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"ogv":  "video/ogg",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
	"flv":  "video/x-flv",
	"m3u8": "application/vnd.apple.mpegurl",
	"ts":   "video/mp2t",
}

// MimeFor returns the content type for a video file path, falling back to
// video/mp4 for anything not in the table.
func MimeFor(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	return defaultVideoType
}
