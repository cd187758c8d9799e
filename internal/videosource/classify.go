// Package videosource classifies the polymorphic video references stored on a
// lesson. Every function here is pure: no I/O, no logging, never panics.
package videosource

import (
	"strings"
)

// Type is the kind of video reference.
type Type string

const (
	TypeNone       Type = "none"
	TypeMock       Type = "mock"
	TypeDataURL    Type = "data-url"
	TypeYouTube    Type = "youtube"
	TypeVimeo      Type = "vimeo"
	TypeStreamable Type = "streamable"
	TypeBlob       Type = "blob"
	TypeFile       Type = "file"
	TypeUnknown    Type = "unknown"
)

const (
	MockPrefix = "MOCK_PLACEHOLDER:"

	ReasonNoURL          = "No URL provided"
	ReasonInvalidYouTube = "Invalid YouTube URL format"
	ReasonInvalidVimeo   = "Invalid Vimeo URL format"
	ReasonUnrecognized   = "Unrecognized URL format"

	// MinStrictYouTubeIDLen is the id length the validation endpoint insists on.
	MinStrictYouTubeIDLen = 10
)

var fileExtensions = []string{".mp4", ".webm", ".ogg", ".mov", ".m4v"}

// Descriptor is the result of classifying one reference. It is never persisted.
type Descriptor struct {
	Type     Type   `json:"type"`
	IsValid  bool   `json:"isValid"`
	Reason   string `json:"reason,omitempty"`
	Primary  string `json:"primary,omitempty"`
	Embed    string `json:"embed,omitempty"`
	Fallback string `json:"fallback,omitempty"`

	// VideoID is the provider id for youtube and vimeo references.
	VideoID string `json:"videoId,omitempty"`
	// Warning is set for file URLs accepted without a recognisable video extension.
	Warning string `json:"warning,omitempty"`
}

// Classify maps a raw reference to a Descriptor. The checks run in a fixed
// order and the first match wins, because some forms are substrings of others
// (a Cloudinary URL ending in .mp4 is still checked for youtube first).
func Classify(raw string) Descriptor {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Descriptor{Type: TypeNone, Reason: ReasonNoURL}
	}

	switch {
	case strings.HasPrefix(s, MockPrefix):
		primary, fallback := MockSource(strings.TrimPrefix(s, MockPrefix))
		return Descriptor{Type: TypeMock, IsValid: true, Primary: primary, Fallback: fallback}

	case strings.HasPrefix(s, "data:"):
		return Descriptor{Type: TypeDataURL, IsValid: true, Primary: s}

	case strings.Contains(s, "youtube.com") || strings.Contains(s, "youtu.be"):
		id := youTubeID(s)
		if id == "" {
			return Descriptor{Type: TypeYouTube, Reason: ReasonInvalidYouTube}
		}
		return Descriptor{
			Type:    TypeYouTube,
			IsValid: true,
			Primary: s,
			Embed:   youTubeEmbed(id),
			VideoID: id,
		}

	case strings.Contains(s, "vimeo.com"):
		id := vimeoID(s)
		if id == "" || !isDigits(id) {
			return Descriptor{Type: TypeVimeo, Reason: ReasonInvalidVimeo}
		}
		return Descriptor{
			Type:    TypeVimeo,
			IsValid: true,
			Primary: s,
			Embed:   vimeoEmbed(id),
			VideoID: id,
		}

	case strings.Contains(s, "streamable.com"):
		return Descriptor{Type: TypeStreamable, IsValid: true, Primary: s}

	case strings.HasPrefix(s, "blob:"):
		return Descriptor{Type: TypeBlob, IsValid: true, Primary: s}

	case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
		d := Descriptor{Type: TypeFile, IsValid: true, Primary: s}
		if !hasVideoExtension(s) {
			d.Warning = "URL has no recognised video extension"
		}
		return d
	}

	return Descriptor{Type: TypeUnknown, Reason: ReasonUnrecognized}
}

// Validate is Classify with the stricter rules used by the validation endpoint.
func Validate(raw string) Descriptor {
	d := Classify(raw)
	if d.Type == TypeYouTube && d.IsValid && len(d.VideoID) < MinStrictYouTubeIDLen {
		return Descriptor{Type: TypeYouTube, Reason: ReasonInvalidYouTube, VideoID: d.VideoID}
	}
	return d
}

// Alternative suggests a safe replacement for an invalid reference.
// It returns "" when d is valid.
func Alternative(d Descriptor, lessonTitle string) string {
	if d.IsValid {
		return ""
	}
	return MockPrefix + lessonTitle
}

// IsEmbeddable reports whether the reference plays in a provider iframe rather
// than a media element.
func (d Descriptor) IsEmbeddable() bool {
	return d.Embed != ""
}

func youTubeID(s string) string {
	if i := strings.Index(s, "youtu.be/"); i >= 0 {
		return cutAt(s[i+len("youtu.be/"):], "?")
	}
	if i := strings.Index(s, "watch?v="); i >= 0 {
		return cutAt(s[i+len("watch?v="):], "&")
	}
	return ""
}

func vimeoID(s string) string {
	s = cutAt(s, "?")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return ""
}

func hasVideoExtension(s string) bool {
	lower := strings.ToLower(s)
	for _, ext := range fileExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

func cutAt(s, sep string) string {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i]
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
