package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultChunkSize is the smallest chunk Cloudinary accepts for chunked uploads,
	// except for the final chunk.
	DefaultChunkSize = 6 * 1024 * 1024

	ThumbnailEager = "c_pad,h_300,w_300/jpg"
	QualityAuto    = "q_auto"
)

var ErrEmptyUpload = errors.New("upload is empty")

// UploadParams describes where a video goes in the Cloudinary media library.
type UploadParams struct {
	Folder   string
	PublicID string
	// MaxBytes rejects larger uploads before any byte is sent. Zero disables the check.
	MaxBytes int64
}

// VideoAsset is the subset of the Cloudinary upload response the service uses.
type VideoAsset struct {
	PublicID  string
	SecureURL string
	Duration  float64
	Bytes     int64
	Format    string
}

// UploadVideo sends r to Cloudinary as a chunked upload. When r can seek, the
// whole upload is retried on server and network errors; ctx bounds all attempts.
func (c *CloudinaryClient) UploadVideo(ctx context.Context, r io.Reader, size int64, p UploadParams) (*VideoAsset, error) {
	if size <= 0 {
		return nil, ErrEmptyUpload
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return nil, &UploadError{
			StatusCode: http.StatusBadRequest,
			Body:       fmt.Sprintf("File size too large. Got %d. Maximum is %d.", size, p.MaxBytes),
		}
	}

	ctx, span := otel.Tracer("lesson-video/cloud").Start(ctx, "cloudinary.upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("cloudinary.public_id", p.PublicID),
		attribute.Int64("upload.bytes", size),
	)

	params := uploader.UploadParams{
		PublicID:       p.PublicID,
		Folder:         p.Folder,
		ResourceType:   "video",
		Eager:          ThumbnailEager,
		EagerAsync:     api.Bool(true),
		Transformation: QualityAuto,
	}

	rc := c.retry
	seeker, rewindable := r.(io.Seeker)
	if !rewindable {
		rc.MaxRetries = 0
	}

	c.logger.Info("uploading video to cloudinary",
		"public_id", p.PublicID,
		"folder", p.Folder,
		"bytes", size,
	)

	start := time.Now()
	attempts := 0
	var res *uploader.UploadResult
	err := withRetry(ctx, rc, func() error {
		if attempts > 0 {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewind upload: %w", err)
			}
		}
		attempts++

		var err error
		res, err = c.cld.Upload.UploadLarge(ctx, io.LimitReader(r, size), params)
		if err != nil {
			return fmt.Errorf("cloudinary upload: %w", err)
		}
		return errorFromResponse(res.Error)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		c.logger.Error("cloudinary upload failed",
			"public_id", p.PublicID,
			"attempts", attempts,
			"error", err,
		)
		return nil, err
	}

	if res.SecureURL == "" {
		err := errors.New("cloudinary response has no secure_url")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	asset := &VideoAsset{
		PublicID:  res.PublicID,
		SecureURL: res.SecureURL,
		Duration:  rawDuration(res.Response),
		Bytes:     int64(res.Bytes),
		Format:    res.Format,
	}
	c.logger.Info("cloudinary upload complete",
		"public_id", asset.PublicID,
		"duration", asset.Duration,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return asset, nil
}

// Destroy removes a video by public id. A "not found" answer is not an error.
func (c *CloudinaryClient) Destroy(ctx context.Context, publicID string) error {
	ctx, span := otel.Tracer("lesson-video/cloud").Start(ctx, "cloudinary.destroy")
	defer span.End()
	span.SetAttributes(attribute.String("cloudinary.public_id", publicID))

	var res *uploader.DestroyResult
	err := withRetry(ctx, c.retry, func() error {
		var err error
		res, err = c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
			PublicID:     publicID,
			ResourceType: "video",
			Invalidate:   api.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("cloudinary destroy: %w", err)
		}
		return errorFromResponse(res.Error)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "destroy failed")
		return err
	}

	switch res.Result {
	case "ok":
		c.logger.Info("cloudinary video destroyed", "public_id", publicID)
		return nil
	case "not found":
		c.logger.Warn("cloudinary video already gone", "public_id", publicID)
		return nil
	default:
		return fmt.Errorf("cloudinary destroy %s: unexpected result %q", publicID, res.Result)
	}
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL extracts "folder/id" from a delivery URL such as
// https://res.cloudinary.com/demo/video/upload/v1700000000/lesson-videos/l1-1700000000000.mp4.
func PublicIDFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	_, rest, ok := strings.Cut(u.Path, "/upload/")
	if !ok || rest == "" {
		return "", false
	}

	segments := strings.Split(rest, "/")
	for i, s := range segments {
		if versionSegment.MatchString(s) {
			segments = segments[i+1:]
			break
		}
	}
	if len(segments) == 0 {
		return "", false
	}

	id := strings.Join(segments, "/")
	id = strings.TrimSuffix(id, path.Ext(id))
	if id == "" {
		return "", false
	}
	return id, true
}
