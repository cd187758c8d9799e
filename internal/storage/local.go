package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edulearn/lesson-video/internal/config"
	"github.com/edulearn/lesson-video/internal/logging"
	"github.com/edulearn/lesson-video/internal/playback"
)

// LocalBackend writes videos into the public videos directory served by the
// local range server.
type LocalBackend struct {
	dir     string
	sandbox *playback.Sandbox
	logger  *slog.Logger
	now     func() time.Time
}

func NewLocalBackend(dir string, logger *slog.Logger) (*LocalBackend, error) {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(config.DefaultPublicDir, config.VideosSubdir)
	}
	sandbox, err := playback.NewSandbox(dir)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{
		dir:     sandbox.Root(),
		sandbox: sandbox,
		logger:  logging.WithComponent(logging.OrDiscard(logger), "storage.local"),
		now:     time.Now,
	}, nil
}

func (b *LocalBackend) Name() config.StorageBackend {
	return config.StorageLocal
}

func (b *LocalBackend) Dir() string {
	return b.dir
}

// Upload leaves Duration nil; the player reads it from media metadata.
func (b *LocalBackend) Upload(ctx context.Context, r io.Reader, size int64, lessonID, filename string) (*UploadResult, error) {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create videos directory: %w", err)
	}

	name := ObjectName(lessonID, filename, b.now())
	path := filepath.Join(b.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create video file: %w", err)
	}

	written, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && size > 0 && written != size {
		err = fmt.Errorf("short write: got %d of %d bytes", written, size)
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write video file: %w", err)
	}

	b.logger.Info("stored video", "lesson_id", lessonID, "file", name, "bytes", written)
	return &UploadResult{URL: playback.URLFor(name)}, nil
}

func (b *LocalBackend) Delete(ctx context.Context, videoURL string) error {
	if !strings.HasPrefix(videoURL, playback.VideosURLPrefix) {
		return ErrForeignURL
	}
	path, err := b.sandbox.Resolve(videoURL)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("video file already removed", "path", path)
			return nil
		}
		return fmt.Errorf("failed to remove video file: %w", err)
	}
	b.logger.Info("removed video", "path", path)
	return nil
}

func (b *LocalBackend) Close() error {
	return nil
}

// ctxReader stops a long local copy once the request is gone.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
