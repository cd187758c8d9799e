package lessons

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("lesson not found")

// Lesson is the slice of the course-content lesson row the video subsystem reads and writes.
// VideoURL is a polymorphic reference (local path, provider URL, data URL, mock placeholder);
// an empty string means no video is set.
type Lesson struct {
	ID            string    `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	VideoURL      string    `json:"video_url,omitempty" yaml:"video_url"`
	VideoDuration *int      `json:"video_duration,omitempty" yaml:"video_duration"`
	IsPreview     bool      `json:"is_preview" yaml:"is_preview"`
	IsPublished   bool      `json:"is_published" yaml:"is_published"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"-"`
}

func (l *Lesson) HasVideo() bool {
	return l.VideoURL != ""
}

// Progress is the latest playback report of one user for one lesson.
type Progress struct {
	UserID       string    `json:"user_id"`
	LessonID     string    `json:"lesson_id"`
	LastPosition int       `json:"last_position"`
	WatchTime    int       `json:"watch_time"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IntPtr is a convenience for optional durations.
func IntPtr(v int) *int {
	return &v
}
