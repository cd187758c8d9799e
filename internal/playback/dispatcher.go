package playback

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/edulearn/lesson-video/internal/lessons"
	"github.com/edulearn/lesson-video/internal/logging"
	"github.com/edulearn/lesson-video/internal/videosource"
)

var ErrNoVideo = errors.New("video not available")

type LessonSource interface {
	PublishedLesson(ctx context.Context, id string) (*lessons.Lesson, error)
}

// Dispatcher is the single entry point for GET /lessons/{id}/video. It loads
// the lesson, classifies the stored reference and hands off to the local
// server or the relay.
type Dispatcher struct {
	lessons LessonSource
	local   *LocalServer
	relay   *Relay
	logger  *slog.Logger
}

func NewDispatcher(lessonSource LessonSource, local *LocalServer, relay *Relay, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		lessons: lessonSource,
		local:   local,
		relay:   relay,
		logger:  logging.OrDiscard(logger),
	}
}

// ServeLesson returns lessons.ErrNotFound, ErrNoVideo, ErrPathEscape,
// ErrFileNotFound, ErrUpstreamUnavailable or *UpstreamError before anything is
// written to w. Preview gating is the caller's concern.
func (d *Dispatcher) ServeLesson(w http.ResponseWriter, r *http.Request, lessonID string) error {
	lesson, err := d.lessons.PublishedLesson(r.Context(), lessonID)
	if err != nil {
		return err
	}
	if !lesson.HasVideo() {
		return ErrNoVideo
	}

	logger := logging.WithLessonID(d.logger, lessonID)

	if strings.HasPrefix(lesson.VideoURL, VideosURLPrefix) {
		return d.local.Serve(w, r, lesson.VideoURL)
	}

	desc := videosource.Classify(lesson.VideoURL)
	if !desc.IsValid {
		logger.Warn("lesson has unplayable video reference", "type", desc.Type, "reason", desc.Reason)
		return ErrNoVideo
	}
	if desc.Warning != "" {
		logger.Warn("serving file url without video extension", "url", logging.SanitizeURL(desc.Primary))
	}

	switch desc.Type {
	case videosource.TypeFile:
		return d.relay.Serve(w, r, desc.Primary)
	case videosource.TypeYouTube, videosource.TypeVimeo, videosource.TypeStreamable, videosource.TypeMock:
		http.Redirect(w, r, videosource.CanonicalURL(desc), http.StatusFound)
		return nil
	default:
		// data and blob references only make sense inside the browser that made them.
		return ErrNoVideo
	}
}
