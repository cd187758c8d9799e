package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/edulearn/lesson-video/internal/config"
	"github.com/edulearn/lesson-video/internal/logging"
	"github.com/edulearn/lesson-video/internal/playback"
)

const gcsPrefix = "videos/"

// GCSBackend stores videos in a Cloud Storage bucket. GCS answers range
// requests itself, so the relay redirects to it.
type GCSBackend struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
	timeout       time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func NewGCSBackend(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*GCSBackend, error) {
	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.GCS.EmulatorHost), "/"); host != "" {
		// the client library reads the emulator address from the environment only
		_ = os.Setenv(config.EnvGCSEmulatorHost, host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	b := newGCSBackend(client, cfg, logger)
	b.logger.Info("object storage initialized",
		"bucket", b.bucket,
		"public_base_url", b.publicBaseURL,
		"emulator_host", cfg.GCS.EmulatorHost,
	)
	return b, nil
}

func newGCSBackend(client *storage.Client, cfg config.StorageConfig, logger *slog.Logger) *GCSBackend {
	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = config.DefaultUploadTimeout
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.GCS.PublicBaseURL), "/")
	if base == "" && cfg.GCS.EmulatorHost != "" {
		base = strings.TrimRight(strings.TrimSpace(cfg.GCS.EmulatorHost), "/")
	}
	if base == "" {
		base = "https://storage.googleapis.com"
	}
	return &GCSBackend{
		client:        client,
		bucket:        cfg.GCS.Bucket,
		publicBaseURL: base,
		timeout:       timeout,
		logger:        logging.WithComponent(logging.OrDiscard(logger), "storage.gcs"),
		now:           time.Now,
	}
}

func (b *GCSBackend) Name() config.StorageBackend {
	return config.StorageGCS
}

func (b *GCSBackend) Upload(ctx context.Context, r io.Reader, size int64, lessonID, filename string) (*UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	key := gcsPrefix + ObjectName(lessonID, filename, b.now())
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = playback.MimeFor(key)
	w.CacheControl = "public, max-age=3600"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", ErrUploadTimeout, b.timeout, err)
		}
		return nil, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", ErrUploadTimeout, b.timeout, err)
		}
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	b.logger.Info("stored video", "lesson_id", lessonID, "object", key, "bytes", size)
	return &UploadResult{URL: b.PublicURL(key)}, nil
}

func (b *GCSBackend) Delete(ctx context.Context, videoURL string) error {
	key, ok := b.keyFromURL(videoURL)
	if !ok {
		return ErrForeignURL
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := b.client.Bucket(b.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			b.logger.Warn("object already removed", "object", key)
			return nil
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, b.bucket, err)
	}
	return nil
}

func (b *GCSBackend) Close() error {
	return b.client.Close()
}

func (b *GCSBackend) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, b.bucket, strings.TrimLeft(key, "/"))
}

func (b *GCSBackend) keyFromURL(videoURL string) (string, bool) {
	prefix := b.publicBaseURL + "/" + b.bucket + "/"
	if !strings.HasPrefix(videoURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(videoURL, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if !strings.HasPrefix(key, gcsPrefix) || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
