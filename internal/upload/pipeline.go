// Package upload accepts lesson videos, stores them through the configured
// storage backend and points the lesson at the result.
package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/edulearn/lesson-video/internal/config"
	"github.com/edulearn/lesson-video/internal/lessons"
	"github.com/edulearn/lesson-video/internal/logging"
	"github.com/edulearn/lesson-video/internal/storage"
	"github.com/edulearn/lesson-video/internal/videosource"
)

// Result is the lesson's video after a successful upload or registration.
type Result struct {
	LessonID      string
	VideoURL      string
	VideoDuration *int
	// State is the final state of the upload attempt; registrations leave it idle.
	State State
}

type Pipeline struct {
	backend  storage.Backend
	lessons  lessons.Repository
	maxBytes int64
	timeout  time.Duration
	logger   *slog.Logger
}

func NewPipeline(backend storage.Backend, repo lessons.Repository, cfg config.StorageConfig, logger *slog.Logger) *Pipeline {
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxUploadBytes
	}
	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = config.DefaultUploadTimeout
	}
	return &Pipeline{
		backend:  backend,
		lessons:  repo,
		maxBytes: maxBytes,
		timeout:  timeout,
		logger:   logging.WithComponent(logging.OrDiscard(logger), "upload"),
	}
}

func (p *Pipeline) MaxBytes() int64 {
	return p.maxBytes
}

func (p *Pipeline) Backend() config.StorageBackend {
	return p.backend.Name()
}

// UploadFile validates f, writes r to the backend and updates the lesson. It
// returns *ValidationError, lessons.ErrNotFound, *Failure or a repository error.
// Concurrent uploads for one lesson are not serialised; the last update wins.
func (p *Pipeline) UploadFile(ctx context.Context, lessonID string, f File, r io.Reader) (*Result, error) {
	logger := logging.WithLessonID(p.logger, lessonID)
	attempt := newAttempt(lessonID)

	ctx, span := otel.Tracer("lesson-video/upload").Start(ctx, "upload.file")
	defer span.End()
	span.SetAttributes(
		attribute.String("lesson.id", lessonID),
		attribute.String("storage.backend", string(p.backend.Name())),
		attribute.Int64("upload.bytes", f.Size),
	)

	transition(logger, attempt, StateValidating)
	if err := Validate(f, p.maxBytes); err != nil {
		transition(logger, attempt, StateRejected)
		logger.Warn("upload rejected", "state", attempt.State, "filename", f.Filename, "content_type", f.ContentType, "size", f.Size, "error", err)
		return nil, err
	}

	lesson, err := p.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		transition(logger, attempt, StateRejected)
		return nil, err
	}
	if lesson == nil {
		transition(logger, attempt, StateRejected)
		return nil, lessons.ErrNotFound
	}

	transition(logger, attempt, StateUploading)
	start := time.Now()
	stored, err := p.backend.Upload(ctx, r, f.Size, lessonID, f.Filename)
	if err != nil {
		failure := Categorize(err, p.timeout)
		failAttempt(logger, attempt, failure.Reason)
		failure.State = attempt.State
		span.RecordError(err)
		span.SetStatus(codes.Error, string(failure.Reason))
		logger.Error("upload failed",
			"state", attempt.State,
			"backend", p.backend.Name(),
			"reason", failure.Reason,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, failure
	}

	duration := roundDuration(stored.Duration)
	if err := p.lessons.UpdateLessonVideo(ctx, lessonID, stored.URL, duration); err != nil {
		failAttempt(logger, attempt, ReasonUnknown)
		span.RecordError(err)
		span.SetStatus(codes.Error, "lesson update failed")
		logger.Error("failed to update lesson after upload", "video_url", logging.SanitizeURL(stored.URL), "error", err)
		p.discard(ctx, logger, stored.URL)
		return nil, err
	}

	transition(logger, attempt, StateSucceeded)
	logger.Info("video uploaded",
		"state", attempt.State,
		"backend", p.backend.Name(),
		"video_url", logging.SanitizeURL(stored.URL),
		"bytes", f.Size,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Result{LessonID: lessonID, VideoURL: stored.URL, VideoDuration: duration, State: attempt.State}, nil
}

// RegisterExternal points the lesson at an already hosted video. Apart from
// presence nothing is checked; the reference is only tidied up.
func (p *Pipeline) RegisterExternal(ctx context.Context, lessonID, videoURL string, duration *float64) (*Result, error) {
	videoURL = videosource.NormalizeURL(videoURL)
	if videoURL == "" {
		return nil, &ValidationError{Message: "videoUrl is required"}
	}

	logger := logging.WithLessonID(p.logger, lessonID)
	if d := videosource.Classify(videoURL); !d.IsValid {
		logger.Warn("registering unplayable video reference", "type", d.Type, "reason", d.Reason)
	}

	rounded := roundDuration(duration)
	if err := p.lessons.UpdateLessonVideo(ctx, lessonID, videoURL, rounded); err != nil {
		return nil, err
	}

	logger.Info("external video registered", "video_url", logging.SanitizeURL(videoURL))
	return &Result{LessonID: lessonID, VideoURL: videoURL, VideoDuration: rounded}, nil
}

// DeleteVideo removes the stored object when this backend owns it and clears
// the lesson's video fields. Backend failures are logged, not returned.
func (p *Pipeline) DeleteVideo(ctx context.Context, lessonID string) error {
	lesson, err := p.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if lesson == nil {
		return lessons.ErrNotFound
	}
	if !lesson.HasVideo() {
		return ErrNoVideo
	}

	logger := logging.WithLessonID(p.logger, lessonID)
	p.discard(ctx, logger, lesson.VideoURL)

	if err := p.lessons.ClearLessonVideo(ctx, lessonID); err != nil {
		return err
	}
	logger.Info("video removed from lesson")
	return nil
}

func (p *Pipeline) discard(ctx context.Context, logger *slog.Logger, videoURL string) {
	err := p.backend.Delete(ctx, videoURL)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrForeignURL):
		logger.Debug("video not owned by storage backend, skipping delete", "video_url", logging.SanitizeURL(videoURL))
	default:
		logger.Warn("failed to delete stored video", "video_url", logging.SanitizeURL(videoURL), "error", err)
	}
}

func roundDuration(d *float64) *int {
	if d == nil || math.IsNaN(*d) || math.IsInf(*d, 0) || *d < 0 {
		return nil
	}
	v := int(math.Round(*d))
	return &v
}
