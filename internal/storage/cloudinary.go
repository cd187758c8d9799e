package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/edulearn/lesson-video/internal/cloud"
	"github.com/edulearn/lesson-video/internal/config"
	"github.com/edulearn/lesson-video/internal/logging"
)

type cloudinaryAPI interface {
	UploadVideo(ctx context.Context, r io.Reader, size int64, p cloud.UploadParams) (*cloud.VideoAsset, error)
	Destroy(ctx context.Context, publicID string) error
}

// CloudinaryBackend uploads to the Cloudinary media library. Ranges on the
// resulting res.cloudinary.com URL are served by the CDN itself.
type CloudinaryBackend struct {
	api      cloudinaryAPI
	folder   string
	maxBytes int64
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewCloudinaryBackend(cfg config.StorageConfig, logger *slog.Logger) (*CloudinaryBackend, error) {
	logger = logging.WithComponent(logging.OrDiscard(logger), "storage.cloudinary")
	client, err := cloud.NewCloudinaryClient(cfg.Cloudinary, cfg.UploadTimeout, logger)
	if err != nil {
		return nil, err
	}
	return newCloudinaryBackend(client, cfg, logger), nil
}

func newCloudinaryBackend(api cloudinaryAPI, cfg config.StorageConfig, logger *slog.Logger) *CloudinaryBackend {
	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = config.DefaultUploadTimeout
	}
	folder := cfg.Cloudinary.Folder
	if folder == "" {
		folder = config.DefaultFolder
	}
	return &CloudinaryBackend{
		api:      api,
		folder:   folder,
		maxBytes: cfg.MaxUploadBytes,
		timeout:  timeout,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
}

func (b *CloudinaryBackend) Name() config.StorageBackend {
	return config.StorageCloudinary
}

// Upload races the upload against the configured timeout. Expiry of that
// timer is reported as ErrUploadTimeout, distinct from any provider error.
func (b *CloudinaryBackend) Upload(ctx context.Context, r io.Reader, size int64, lessonID, filename string) (*UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	asset, err := b.api.UploadVideo(ctx, r, size, cloud.UploadParams{
		Folder:   b.folder,
		PublicID: BaseName(lessonID, b.now()),
		MaxBytes: b.maxBytes,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			b.logger.Error("cloudinary upload timed out", "lesson_id", lessonID, "filename", filename, "timeout", b.timeout)
			return nil, fmt.Errorf("%w after %s: %v", ErrUploadTimeout, b.timeout, err)
		}
		return nil, err
	}

	res := &UploadResult{URL: asset.SecureURL}
	if asset.Duration > 0 {
		d := asset.Duration
		res.Duration = &d
	}
	return res, nil
}

func (b *CloudinaryBackend) Delete(ctx context.Context, videoURL string) error {
	u, err := url.Parse(videoURL)
	if err != nil || !strings.HasSuffix(strings.ToLower(u.Hostname()), "cloudinary.com") {
		return ErrForeignURL
	}
	publicID, ok := cloud.PublicIDFromURL(videoURL)
	if !ok {
		return ErrForeignURL
	}
	return b.api.Destroy(ctx, publicID)
}

func (b *CloudinaryBackend) Close() error {
	return nil
}
