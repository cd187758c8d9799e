package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edulearn/lesson-video/internal/lessons"
	"github.com/edulearn/lesson-video/internal/logging"
	"github.com/edulearn/lesson-video/internal/playback"
	"github.com/edulearn/lesson-video/internal/progress"
	"github.com/edulearn/lesson-video/internal/upload"
	"github.com/edulearn/lesson-video/internal/videosource"
)

const (
	// multipartOverhead covers boundaries and form headers around the file part.
	multipartOverhead = 1 << 20
	multipartMemory   = 32 << 20
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware(cfg.CORSOrigins))
	r.Use(IdentityMiddleware(cfg.JWTSecret, cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/lessons/{id}", func(r chi.Router) {
		r.Get("/video", streamHandler(cfg))
		r.Head("/video", streamHandler(cfg))
		r.Get("/video-sources", videoSourcesHandler(cfg))
		r.Get("/validate-video", validateVideoHandler(cfg))

		r.Post("/video/upload", uploadHandler(cfg))
		r.Delete("/video/upload", deleteVideoHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(RequireIdentity())

			r.Get("/video/progress", getProgressHandler(cfg))
			r.Post("/video/progress", recordProgressHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storage := ""
		if cfg.Uploads != nil {
			storage = string(cfg.Uploads.Backend())
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
			Storage: storage,
		})
	}
}

func streamHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := cfg.Dispatcher.ServeLesson(w, r, id)
		if err == nil {
			return
		}

		var upstream *playback.UpstreamError
		switch {
		case errors.Is(err, lessons.ErrNotFound):
			WriteError(w, http.StatusNotFound, "Lesson not found", "NOT_FOUND")
		case errors.Is(err, playback.ErrNoVideo):
			WriteError(w, http.StatusNotFound, "Video not available", "NOT_FOUND")
		case errors.Is(err, playback.ErrFileNotFound):
			WriteError(w, http.StatusNotFound, "Video file not found", "NOT_FOUND")
		case errors.Is(err, playback.ErrPathEscape):
			WriteError(w, http.StatusForbidden, "Invalid video path", "FORBIDDEN")
		case errors.As(err, &upstream):
			WriteError(w, upstream.StatusCode, "Failed to fetch video", "UPSTREAM_ERROR")
		case errors.Is(err, playback.ErrUpstreamUnavailable):
			WriteError(w, http.StatusBadGateway, "Failed to fetch video", "UPSTREAM_ERROR")
		default:
			cfg.Logger.Error("stream error", "error", err, "lesson_id", id)
			WriteError(w, http.StatusInternalServerError, "Failed to stream video", "INTERNAL_ERROR")
		}
	}
}

func videoSourcesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lesson, ok := loadLesson(w, r, cfg)
		if !ok {
			return
		}
		stream := "/lessons/" + url.PathEscape(lesson.ID) + "/video"
		WriteJSON(w, http.StatusOK, videosource.ResolveSources(lesson.VideoURL, lesson.Title, stream))
	}
}

func validateVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lesson, ok := loadLesson(w, r, cfg)
		if !ok {
			return
		}

		processed := videosource.NormalizeURL(lesson.VideoURL)
		validation := videosource.Validate(processed)
		if validation.Warning != "" {
			cfg.Logger.Warn("lesson video url has no recognised extension",
				"lesson_id", lesson.ID, "url", logging.SanitizeURL(processed))
		}

		resp := ValidateVideoResponse{Validation: validation, ProcessedURL: processed}
		if alt := videosource.Alternative(validation, lesson.Title); alt != "" {
			resp.Alternative = &alt
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func loadLesson(w http.ResponseWriter, r *http.Request, cfg ServerConfig) (*lessons.Lesson, bool) {
	id := chi.URLParam(r, "id")
	lesson, err := cfg.Lessons.Lesson(r.Context(), id)
	if errors.Is(err, lessons.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Lesson not found", "NOT_FOUND")
		return nil, false
	}
	if err != nil {
		cfg.Logger.Error("failed to load lesson", "error", err, "lesson_id", id)
		WriteError(w, http.StatusInternalServerError, "failed to load lesson", "INTERNAL_ERROR")
		return nil, false
	}
	return lesson, true
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "multipart/form-data":
			uploadFile(w, r, cfg)
		case "application/json":
			registerVideo(w, r, cfg)
		default:
			writeUploadFailure(w, http.StatusBadRequest,
				"Expected multipart/form-data with a video file or JSON with videoUrl", "")
		}
	}
}

func uploadFile(w http.ResponseWriter, r *http.Request, cfg ServerConfig) {
	id := chi.URLParam(r, "id")
	maxBytes := cfg.Uploads.MaxBytes()

	if r.ContentLength > maxBytes+multipartOverhead {
		err := upload.Validate(upload.File{Size: r.ContentLength}, maxBytes)
		writeUploadFailure(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeUploadFailure(w, http.StatusBadRequest, upload.OversizeError(maxBytes).Error(), "")
			return
		}
		writeUploadFailure(w, http.StatusBadRequest, "invalid multipart body", "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		writeUploadFailure(w, http.StatusBadRequest, "No video file provided", "")
		return
	}
	defer file.Close()

	res, err := cfg.Uploads.UploadFile(r.Context(), id, upload.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}, file)
	if err != nil {
		writeUploadError(w, cfg, id, err)
		return
	}
	WriteJSON(w, http.StatusOK, ResultToResponse(res))
}

func registerVideo(w http.ResponseWriter, r *http.Request, cfg ServerConfig) {
	id := chi.URLParam(r, "id")

	var req RegisterVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeUploadFailure(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	res, err := cfg.Uploads.RegisterExternal(r.Context(), id, req.VideoURL, req.Duration)
	if err != nil {
		writeUploadError(w, cfg, id, err)
		return
	}
	WriteJSON(w, http.StatusOK, ResultToResponse(res))
}

func writeUploadError(w http.ResponseWriter, cfg ServerConfig, lessonID string, err error) {
	var validation *upload.ValidationError
	var failure *upload.Failure
	switch {
	case errors.As(err, &validation):
		writeUploadFailure(w, http.StatusBadRequest, validation.Message, "")
	case errors.Is(err, lessons.ErrNotFound):
		writeUploadFailure(w, http.StatusNotFound, "Lesson not found", "")
	case errors.As(err, &failure):
		writeUploadFailure(w, failure.Reason.HTTPStatus(), failure.Message, failure.Reason)
	default:
		cfg.Logger.Error("upload error", "error", err, "lesson_id", lessonID)
		writeUploadFailure(w, http.StatusInternalServerError, "Failed to save video", upload.ReasonUnknown)
	}
}

func writeUploadFailure(w http.ResponseWriter, status int, message string, reason upload.FailureReason) {
	WriteJSON(w, status, UploadFailureResponse{Success: false, Message: message, Reason: reason})
}

func deleteVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := cfg.Uploads.DeleteVideo(r.Context(), id)
		switch {
		case err == nil:
			WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
		case errors.Is(err, lessons.ErrNotFound):
			WriteError(w, http.StatusNotFound, "Lesson not found", "NOT_FOUND")
		case errors.Is(err, upload.ErrNoVideo):
			WriteError(w, http.StatusNotFound, "No video to delete", "NOT_FOUND")
		default:
			cfg.Logger.Error("delete video error", "error", err, "lesson_id", id)
			WriteError(w, http.StatusInternalServerError, "failed to delete video", "INTERNAL_ERROR")
		}
	}
}

func recordProgressHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req ProgressRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Timestamp == nil || req.Duration == nil {
			WriteError(w, http.StatusBadRequest, "timestamp and duration must be numbers", "BAD_REQUEST")
			return
		}

		_, err := cfg.Progress.Record(r.Context(), UserIDFromContext(r.Context()), id, progress.Report{
			Timestamp: *req.Timestamp,
			Duration:  *req.Duration,
		})
		switch {
		case err == nil:
			WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
		case errors.Is(err, progress.ErrInvalidReport):
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		case errors.Is(err, lessons.ErrNotFound):
			WriteError(w, http.StatusNotFound, "Lesson not found", "NOT_FOUND")
		default:
			cfg.Logger.Error("progress error", "error", err, "lesson_id", id)
			WriteError(w, http.StatusInternalServerError, "failed to save progress", "INTERNAL_ERROR")
		}
	}
}

func getProgressHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		p, err := cfg.Progress.Latest(r.Context(), UserIDFromContext(r.Context()), id)
		if errors.Is(err, progress.ErrNoProgress) {
			WriteError(w, http.StatusNotFound, "no progress recorded", "NOT_FOUND")
			return
		}
		if err != nil {
			cfg.Logger.Error("progress error", "error", err, "lesson_id", id)
			WriteError(w, http.StatusInternalServerError, "failed to load progress", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, ProgressToResponse(p))
	}
}
