// Package progress records the latest playback position of a user in a lesson.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/edulearn/lesson-video/internal/lessons"
	"github.com/edulearn/lesson-video/internal/logging"
)

// MaxSeconds bounds reported positions and durations so they fit the stored integers.
const MaxSeconds = math.MaxInt32

var (
	ErrInvalidReport = errors.New("invalid progress report")
	ErrNoProgress    = errors.New("no progress recorded")
)

// Report is one playback report. Both values are seconds.
type Report struct {
	Timestamp float64
	Duration  float64
}

type Tracker struct {
	repo   lessons.Repository
	logger *slog.Logger
}

func NewTracker(repo lessons.Repository, logger *slog.Logger) *Tracker {
	return &Tracker{
		repo:   repo,
		logger: logging.WithComponent(logging.OrDiscard(logger), "progress"),
	}
}

// Record upserts the (user, lesson) row with the report's values. Only the
// latest report is kept.
func (t *Tracker) Record(ctx context.Context, userID, lessonID string, rep Report) (*lessons.Progress, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidReport)
	}
	if err := checkSeconds("timestamp", rep.Timestamp); err != nil {
		return nil, err
	}
	if err := checkSeconds("duration", rep.Duration); err != nil {
		return nil, err
	}

	lesson, err := t.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, lessons.ErrNotFound
	}

	p := &lessons.Progress{
		UserID:       userID,
		LessonID:     lessonID,
		LastPosition: int(math.Round(rep.Timestamp)),
		WatchTime:    int(math.Round(rep.Duration)),
	}
	if err := t.repo.UpsertProgress(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}

	t.logger.Debug("progress recorded",
		"lesson_id", lessonID,
		"user_id", userID,
		"last_position", p.LastPosition,
		"watch_time", p.WatchTime,
	)
	return p, nil
}

// Latest returns ErrNoProgress when the user never reported on the lesson.
func (t *Tracker) Latest(ctx context.Context, userID, lessonID string) (*lessons.Progress, error) {
	p, err := t.repo.GetProgress(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoProgress
	}
	return p, nil
}

func checkSeconds(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidReport, field)
	}
	if v > MaxSeconds {
		return fmt.Errorf("%w: %s exceeds %d seconds", ErrInvalidReport, field, MaxSeconds)
	}
	return nil
}
