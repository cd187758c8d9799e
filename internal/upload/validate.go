package upload

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

const bytesPerMB = 1024 * 1024

var (
	allowedTypes = map[string]bool{
		"video/mp4":       true,
		"video/webm":      true,
		"video/ogg":       true,
		"video/quicktime": true,
	}
	allowedExtensions = map[string]bool{
		"mp4": true, "webm": true, "ogv": true, "mov": true, "avi": true, "mkv": true,
	}
)

// File is one binary upload as received from the client.
type File struct {
	Filename    string
	ContentType string
	Size        int64
}

// Validate checks size, declared MIME type and extension, in that order.
func Validate(f File, maxBytes int64) error {
	if f.Size <= 0 {
		return &ValidationError{Message: "No video file provided"}
	}
	if maxBytes > 0 && f.Size > maxBytes {
		return &ValidationError{Message: fmt.Sprintf(
			"File too large: %.2fMB. Maximum allowed size is %dMB",
			float64(f.Size)/bytesPerMB, maxBytes/bytesPerMB,
		)}
	}

	mediaType, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(f.ContentType))
	}
	if !allowedTypes[mediaType] {
		return &ValidationError{Message: fmt.Sprintf(
			"Invalid file type %q. Allowed formats: MP4, WebM, OGG, MOV (video/mp4, video/webm, video/ogg, video/quicktime)",
			f.ContentType,
		)}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Filename), "."))
	if !allowedExtensions[ext] {
		return &ValidationError{Message: fmt.Sprintf(
			"Invalid file extension %q. Allowed extensions: mp4, webm, ogv, mov, avi, mkv",
			ext,
		)}
	}
	return nil
}

// OversizeError rejects a body that ran past maxBytes before its real size was
// known, as with chunked transfer encoding.
func OversizeError(maxBytes int64) error {
	return &ValidationError{Message: fmt.Sprintf(
		"File too large: exceeds %dMB. Maximum allowed size is %dMB",
		maxBytes/bytesPerMB, maxBytes/bytesPerMB,
	)}
}
