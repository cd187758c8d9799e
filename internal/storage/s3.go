package storage

import (
	"context"
	"io"
	"log/slog"

	"github.com/edulearn/lesson-video/internal/config"
	"github.com/edulearn/lesson-video/internal/logging"
)

// S3Backend is selectable but has no implementation: every call fails with
// ErrNotConfigured instead of silently dropping the video.
type S3Backend struct {
	cfg    config.S3Config
	logger *slog.Logger
}

func NewS3Backend(cfg config.S3Config, logger *slog.Logger) *S3Backend {
	logger = logging.WithComponent(logging.OrDiscard(logger), "storage.s3")
	logger.Warn("S3 storage selected but not implemented; uploads will fail",
		"region", cfg.Region,
		"bucket", cfg.Bucket,
	)
	return &S3Backend{cfg: cfg, logger: logger}
}

func (b *S3Backend) Name() config.StorageBackend {
	return config.StorageS3
}

func (b *S3Backend) Upload(ctx context.Context, r io.Reader, size int64, lessonID, filename string) (*UploadResult, error) {
	b.logger.Error("rejected upload to unconfigured S3 backend", "lesson_id", lessonID)
	return nil, ErrNotConfigured
}

func (b *S3Backend) Delete(ctx context.Context, videoURL string) error {
	return ErrNotConfigured
}

func (b *S3Backend) Close() error {
	return nil
}
