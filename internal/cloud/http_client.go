package cloud

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"

	"github.com/edulearn/lesson-video/internal/config"
	"github.com/edulearn/lesson-video/internal/logging"
)

// UploadError represents an error answer from the Cloudinary API. The SDK
// surfaces only the message, so StatusCode is the status Cloudinary documents
// for that message.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("cloudinary request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *UploadError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// CloudinaryClient wraps the Cloudinary SDK with retries, tracing and the
// error mapping the upload pipeline categorises on.
type CloudinaryClient struct {
	cld    *cloudinary.Cloudinary
	retry  RetryConfig
	logger *slog.Logger
}

// NewCloudinaryClient builds a client for cfg. timeout bounds a single upload
// request inside the SDK; zero keeps the SDK default.
func NewCloudinaryClient(cfg config.CloudinaryConfig, timeout time.Duration, logger *slog.Logger) (*CloudinaryClient, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("create cloudinary client: %w", err)
	}
	cld.Config.API.ChunkSize = DefaultChunkSize
	if secs := int64(timeout / time.Second); secs > 0 {
		cld.Config.API.Timeout = secs
		cld.Config.API.UploadTimeout = secs
	}

	return &CloudinaryClient{
		cld:    cld,
		retry:  DefaultRetryConfig(),
		logger: logging.OrDiscard(logger),
	}, nil
}

// SetUploadPrefix points the client at another API host, e.g. a test server.
func (c *CloudinaryClient) SetUploadPrefix(prefix string) {
	c.cld.Config.API.UploadPrefix = strings.TrimRight(prefix, "/")
}

func (c *CloudinaryClient) SetRetryConfig(rc RetryConfig) {
	c.retry = rc.withDefaults()
}

// errorFromResponse turns the SDK's error payload into an UploadError, or nil
// when the call succeeded.
func errorFromResponse(e api.ErrorResp) error {
	if e.Message == "" {
		return nil
	}
	return &UploadError{StatusCode: statusForMessage(e.Message), Body: e.Message}
}

func statusForMessage(msg string) int {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "invalid signature"),
		strings.Contains(m, "api key"),
		strings.Contains(m, "api_key"),
		strings.Contains(m, "api_secret"),
		strings.Contains(m, "invalid cloud_name"):
		return http.StatusUnauthorized
	case strings.Contains(m, "not allowed"), strings.Contains(m, "account is disabled"):
		return http.StatusForbidden
	case strings.Contains(m, "rate limit"):
		return 420
	case strings.Contains(m, "internal server error"), strings.Contains(m, "service unavailable"):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// rawDuration reads "duration" from the raw upload response. The typed SDK
// result has no field for it.
func rawDuration(raw any) float64 {
	if raw == nil {
		return 0
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return 0
	}
	var v struct {
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return 0
	}
	return v.Duration
}
