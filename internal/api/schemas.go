package api

import (
	"time"

	"github.com/edulearn/lesson-video/internal/lessons"
	"github.com/edulearn/lesson-video/internal/upload"
	"github.com/edulearn/lesson-video/internal/videosource"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	Storage string `json:"storage"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// ProgressRequest fields are pointers so a missing value is told apart from zero.
type ProgressRequest struct {
	Timestamp *float64 `json:"timestamp"`
	Duration  *float64 `json:"duration"`
}

type ProgressResponse struct {
	LessonID     string `json:"lessonId"`
	LastPosition int    `json:"lastPosition"`
	WatchTime    int    `json:"watchTime"`
	UpdatedAt    string `json:"updatedAt"`
}

type RegisterVideoRequest struct {
	VideoURL string   `json:"videoUrl"`
	Duration *float64 `json:"duration"`
}

type UploadResponse struct {
	Success       bool   `json:"success"`
	VideoURL      string `json:"videoUrl"`
	VideoDuration *int   `json:"videoDuration"`
	LessonID      string `json:"lessonId"`
}

type UploadFailureResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Reason  upload.FailureReason `json:"reason,omitempty"`
}

type ValidateVideoResponse struct {
	Validation   videosource.Descriptor `json:"validation"`
	ProcessedURL string                 `json:"processedUrl"`
	Alternative  *string                `json:"alternative"`
}

func ProgressToResponse(p *lessons.Progress) ProgressResponse {
	return ProgressResponse{
		LessonID:     p.LessonID,
		LastPosition: p.LastPosition,
		WatchTime:    p.WatchTime,
		UpdatedAt:    p.UpdatedAt.Format(time.RFC3339),
	}
}

func ResultToResponse(r *upload.Result) UploadResponse {
	return UploadResponse{
		Success:       true,
		VideoURL:      r.VideoURL,
		VideoDuration: r.VideoDuration,
		LessonID:      r.LessonID,
	}
}
