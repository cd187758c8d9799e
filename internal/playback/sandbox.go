package playback

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/edulearn/lesson-video/internal/videosource"
)

// VideosURLPrefix marks a lesson video_url that points at the local videos directory.
const VideosURLPrefix = videosource.LocalPrefix

var ErrPathEscape = errors.New("path escapes videos root")

// Sandbox confines local video lookups to a single root directory.
type Sandbox struct {
	root string
}

func NewSandbox(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve videos root: %w", err)
	}
	return &Sandbox{root: abs}, nil
}

func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps a stored "/videos/..." reference (or a bare relative name) to an
// absolute file path under the root. Percent-encoded input is decoded before
// the check so "..%2f" gets no further than "../".
func (s *Sandbox) Resolve(videoURL string) (string, error) {
	rel := strings.TrimPrefix(videoURL, VideosURLPrefix)
	if decoded, err := url.PathUnescape(rel); err == nil {
		rel = decoded
	}
	if rel == "" {
		return "", ErrPathEscape
	}

	full, err := filepath.Abs(filepath.Join(s.root, rel))
	if err != nil {
		return "", ErrPathEscape
	}
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return full, nil
}

// URLFor is the inverse of Resolve for a file name directly under the root.
func URLFor(name string) string {
	return VideosURLPrefix + url.PathEscape(name)
}
