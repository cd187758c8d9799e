package upload

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/edulearn/lesson-video/internal/cloud"
	"github.com/edulearn/lesson-video/internal/storage"
)

var ErrNoVideo = errors.New("lesson has no video")

// ValidationError is a rejected upload request. Message is safe to show users.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// FailureReason categorises a failed backend write.
type FailureReason string

const (
	ReasonSize          FailureReason = "size"
	ReasonFormat        FailureReason = "format"
	ReasonNetwork       FailureReason = "network"
	ReasonTimeout       FailureReason = "timeout"
	ReasonProviderAuth  FailureReason = "provider-auth"
	ReasonRateLimit     FailureReason = "provider-rate-limit"
	ReasonNotConfigured FailureReason = "not-configured"
	ReasonUnknown       FailureReason = "unknown"
)

// HTTPStatus is the response status for a failure of this kind.
func (r FailureReason) HTTPStatus() int {
	switch r {
	case ReasonSize, ReasonFormat:
		return http.StatusBadRequest
	case ReasonProviderAuth, ReasonNetwork:
		return http.StatusBadGateway
	case ReasonRateLimit:
		return http.StatusTooManyRequests
	case ReasonTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

var reasonMessages = map[FailureReason]string{
	ReasonSize:          "Tệp video quá lớn so với giới hạn của dịch vụ lưu trữ. Dung lượng tối đa là 500MB.",
	ReasonFormat:        "Định dạng video không được hỗ trợ hoặc tệp bị lỗi. Vui lòng dùng MP4, WebM, OGG hoặc MOV.",
	ReasonNetwork:       "Lỗi kết nối mạng khi tải video lên. Vui lòng kiểm tra kết nối và thử lại.",
	ReasonProviderAuth:  "Lỗi xác thực với dịch vụ lưu trữ video. Vui lòng liên hệ quản trị viên.",
	ReasonRateLimit:     "Dịch vụ lưu trữ video đang quá tải. Vui lòng thử lại sau ít phút.",
	ReasonNotConfigured: storage.ErrNotConfigured.Error(),
	ReasonUnknown:       "Không thể tải video lên. Vui lòng thử lại sau.",
}

func timeoutMessage(limit time.Duration) string {
	return fmt.Sprintf("Tải video lên quá thời gian cho phép (%d phút). Vui lòng thử lại với tệp nhỏ hơn hoặc kiểm tra kết nối mạng.",
		int(limit.Round(time.Minute).Minutes()))
}

// Failure is a categorised backend failure.
type Failure struct {
	Reason  FailureReason
	Message string
	Err     error
	// State is the attempt state when the failure was reported.
	State State
}

func (f *Failure) Error() string {
	return fmt.Sprintf("upload failed (%s): %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Categorize maps a backend error onto a FailureReason. timeout is the upload
// limit quoted in the timeout message.
func Categorize(err error, timeout time.Duration) *Failure {
	reason := classify(err)
	msg := reasonMessages[reason]
	if reason == ReasonTimeout {
		msg = timeoutMessage(timeout)
	}
	return &Failure{Reason: reason, Message: msg, Err: err}
}

var formatHints = []string{"format", "codec", "invalid video", "unsupported", "corrupt"}

func classify(err error) FailureReason {
	if errors.Is(err, storage.ErrUploadTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, storage.ErrNotConfigured) {
		return ReasonNotConfigured
	}

	var uploadErr *cloud.UploadError
	if errors.As(err, &uploadErr) {
		body := strings.ToLower(uploadErr.Body)
		switch {
		case uploadErr.StatusCode == http.StatusUnauthorized || uploadErr.StatusCode == http.StatusForbidden:
			return ReasonProviderAuth
		case uploadErr.StatusCode == 420 || uploadErr.StatusCode == http.StatusTooManyRequests:
			return ReasonRateLimit
		case uploadErr.StatusCode == http.StatusRequestEntityTooLarge || strings.Contains(body, "file size too large"):
			return ReasonSize
		case uploadErr.StatusCode == http.StatusBadRequest && containsAny(body, formatHints):
			return ReasonFormat
		}
		return ReasonUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ReasonNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonNetwork
	}
	return ReasonUnknown
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
