// Package storage holds the video storage backends. Exactly one backend is
// built at start from config.StorageConfig.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/edulearn/lesson-video/internal/config"
)

var (
	ErrNotConfigured = errors.New("S3 storage is not configured")
	ErrUploadTimeout = errors.New("upload timed out")
	// ErrForeignURL is returned by Delete for a video URL the backend did not produce.
	ErrForeignURL = errors.New("video url does not belong to this storage backend")
)

// UploadResult is what a backend reports after persisting a video. Duration is
// nil when the backend cannot measure it.
type UploadResult struct {
	URL      string
	Duration *float64
}

// Backend persists uploaded lesson videos.
type Backend interface {
	Name() config.StorageBackend
	Upload(ctx context.Context, r io.Reader, size int64, lessonID, filename string) (*UploadResult, error)
	Delete(ctx context.Context, videoURL string) error
	Close() error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case config.StorageLocal, "":
		return NewLocalBackend(cfg.VideosDir, logger)
	case config.StorageCloudinary:
		return NewCloudinaryBackend(cfg, logger)
	case config.StorageS3:
		return NewS3Backend(cfg.S3, logger), nil
	case config.StorageGCS:
		return NewGCSBackend(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
