package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/edulearn/lesson-video/internal/config"
	"github.com/edulearn/lesson-video/internal/db"
	"github.com/edulearn/lesson-video/internal/lessons"
	"github.com/edulearn/lesson-video/internal/playback"
	"github.com/edulearn/lesson-video/internal/progress"
	"github.com/edulearn/lesson-video/internal/storage"
	"github.com/edulearn/lesson-video/internal/upload"
)

type testEnv struct {
	handler   http.Handler
	repo      *lessons.SQLiteRepository
	videosDir string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWithLimit(t, config.DefaultMaxUploadBytes)
}

func setupTestEnvWithLimit(t *testing.T, maxUploadBytes int64) *testEnv {
	t.Helper()
	logger := discardLogger()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := lessons.NewRepository(database.Conn())
	service := lessons.NewService(repo, logger)

	videosDir := filepath.Join(t.TempDir(), "videos")
	backend, err := storage.NewLocalBackend(videosDir, logger)
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}
	sandbox, err := playback.NewSandbox(videosDir)
	if err != nil {
		t.Fatalf("NewSandbox() error = %v", err)
	}

	dispatcher := playback.NewDispatcher(service,
		playback.NewLocalServer(sandbox, logger),
		playback.NewRelay(config.RelayConfig{RedirectHosts: config.DefaultRelayRedirectHosts}, logger),
		logger)

	pipeline := upload.NewPipeline(backend, repo, config.StorageConfig{
		MaxUploadBytes: maxUploadBytes,
		UploadTimeout:  config.DefaultUploadTimeout,
	}, logger)

	router := NewRouter(ServerConfig{
		Lessons:     service,
		Dispatcher:  dispatcher,
		Uploads:     pipeline,
		Progress:    progress.NewTracker(repo, logger),
		JWTSecret:   testSecret,
		CORSOrigins: []string{"*"},
		Logger:      logger,
		StartTime:   time.Now(),
		Version:     "test",
	})

	return &testEnv{handler: router, repo: repo, videosDir: videosDir}
}

func (e *testEnv) addLesson(t *testing.T, l *lessons.Lesson) {
	t.Helper()
	if err := e.repo.UpsertLesson(context.Background(), l); err != nil {
		t.Fatalf("UpsertLesson() error = %v", err)
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHealthHandler(t *testing.T) {
	env := setupTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["storage"] != "local" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestStreamHandler_LocalRanges(t *testing.T) {
	env := setupTestEnv(t)

	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.MkdirAll(env.videosDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.videosDir, "l1-1.mp4"), content, 0644); err != nil {
		t.Fatal(err)
	}
	env.addLesson(t, &lessons.Lesson{ID: "l1", Title: "Intro", VideoURL: "/videos/l1-1.mp4", IsPublished: true})

	t.Run("partial", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/lessons/l1/video", nil)
		req.Header.Set("Range", "bytes=0-99")
		rr := env.do(req)

		if rr.Code != http.StatusPartialContent {
			t.Fatalf("status = %d, want 206", rr.Code)
		}
		if got := rr.Header().Get("Content-Range"); got != "bytes 0-99/1000" {
			t.Errorf("Content-Range = %q", got)
		}
		if rr.Body.Len() != 100 || !bytes.Equal(rr.Body.Bytes(), content[:100]) {
			t.Errorf("body length = %d", rr.Body.Len())
		}
	})

	t.Run("past end", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/lessons/l1/video", nil)
		req.Header.Set("Range", "bytes=900-1099")
		rr := env.do(req)

		if rr.Code != http.StatusRequestedRangeNotSatisfiable {
			t.Fatalf("status = %d, want 416", rr.Code)
		}
		if got := rr.Header().Get("Content-Range"); got != "bytes */1000" {
			t.Errorf("Content-Range = %q", got)
		}
		if rr.Body.Len() != 0 {
			t.Errorf("body length = %d, want 0", rr.Body.Len())
		}
	})

	t.Run("full", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/lessons/l1/video", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		if got := rr.Header().Get("Content-Length"); got != "1000" {
			t.Errorf("Content-Length = %q", got)
		}
		if !bytes.Equal(rr.Body.Bytes(), content) {
			t.Error("body differs from file")
		}
	})
}

func TestStreamHandler_Errors(t *testing.T) {
	env := setupTestEnv(t)
	env.addLesson(t, &lessons.Lesson{ID: "novideo", Title: "Empty", IsPublished: true})
	env.addLesson(t, &lessons.Lesson{ID: "draft", Title: "Draft", VideoURL: "/videos/x.mp4"})
	env.addLesson(t, &lessons.Lesson{ID: "escape", Title: "Escape", VideoURL: "/videos/../../etc/passwd", IsPublished: true})
	env.addLesson(t, &lessons.Lesson{ID: "gone", Title: "Gone", VideoURL: "/videos/missing.mp4", IsPublished: true})
	env.addLesson(t, &lessons.Lesson{ID: "junk", Title: "Junk", VideoURL: "ftp://example.com/a", IsPublished: true})

	tests := []struct {
		id      string
		status  int
		message string
	}{
		{"missing", http.StatusNotFound, "Lesson not found"},
		{"draft", http.StatusNotFound, "Lesson not found"},
		{"novideo", http.StatusNotFound, "Video not available"},
		{"junk", http.StatusNotFound, "Video not available"},
		{"escape", http.StatusForbidden, "Invalid video path"},
		{"gone", http.StatusNotFound, "Video file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, "/lessons/"+tt.id+"/video", nil))
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if body := decodeJSONBody(t, rr); body["error"] != tt.message {
				t.Errorf("error = %v, want %q", body["error"], tt.message)
			}
		})
	}
}

func TestStreamHandler_Redirects(t *testing.T) {
	env := setupTestEnv(t)
	env.addLesson(t, &lessons.Lesson{ID: "yt", Title: "YT", VideoURL: "https://youtu.be/dQw4w9WgXcQ", IsPublished: true})
	env.addLesson(t, &lessons.Lesson{ID: "cdn", Title: "CDN", VideoURL: "https://res.cloudinary.com/demo/video/upload/v1/a.mp4", IsPublished: true})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/lessons/yt/video", nil))
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("youtube: status = %d, Location = %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/lessons/cdn/video", nil))
	if rr.Code != http.StatusFound || !strings.HasPrefix(rr.Header().Get("Location"), "https://res.cloudinary.com/") {
		t.Errorf("cdn: status = %d, Location = %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestStreamHandler_RelayUpstreamStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer upstream.Close()

	env := setupTestEnv(t)
	env.addLesson(t, &lessons.Lesson{ID: "ext", Title: "Ext", VideoURL: upstream.URL + "/clip.mp4", IsPublished: true})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/lessons/ext/video", nil))
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want upstream 403", rr.Code)
	}
}

func TestVideoSourcesHandler(t *testing.T) {
	env := setupTestEnv(t)
	env.addLesson(t, &lessons.Lesson{ID: "l1", Title: "Intro"})
	env.addLesson(t, &lessons.Lesson{ID: "l2", Title: "Vimeo", VideoURL: "https://vimeo.com/123456"})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/lessons/l1/video-sources", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["isMock"] != true || body["type"] != "mock" || body["primary"] == "" {
		t.Errorf("body = %v", body)
	}

	body = decodeJSONBody(t, env.do(httptest.NewRequest(http.MethodGet, "/lessons/l2/video-sources", nil)))
	if body["type"] != "vimeo" || body["embed"] != "https://player.vimeo.com/video/123456?autoplay=1" {
		t.Errorf("body = %v", body)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/lessons/missing/video-sources", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing lesson status = %d, want 404", rr.Code)
	}
}

func TestValidateVideoHandler(t *testing.T) {
	env := setupTestEnv(t)
	env.addLesson(t, &lessons.Lesson{ID: "short", Title: "Intro", VideoURL: " youtube.com/watch?v=abc "})
	env.addLesson(t, &lessons.Lesson{ID: "ok", Title: "Intro", VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})

	body := decodeJSONBody(t, env.do(httptest.NewRequest(http.MethodGet, "/lessons/short/validate-video", nil)))
	if body["processedUrl"] != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("processedUrl = %v", body["processedUrl"])
	}
	validation := body["validation"].(map[string]interface{})
	if validation["isValid"] != false || validation["type"] != "youtube" {
		t.Errorf("validation = %v", validation)
	}
	if body["alternative"] != "MOCK_PLACEHOLDER:Intro" {
		t.Errorf("alternative = %v", body["alternative"])
	}

	body = decodeJSONBody(t, env.do(httptest.NewRequest(http.MethodGet, "/lessons/ok/validate-video", nil)))
	if body["alternative"] != nil {
		t.Errorf("alternative = %v, want null", body["alternative"])
	}
}

func multipartRequest(t *testing.T, lessonID, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/lessons/"+lessonID+"/video/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler_Multipart(t *testing.T) {
	env := setupTestEnv(t)
	env.addLesson(t, &lessons.Lesson{ID: "l1", Title: "Intro", IsPublished: true})

	data := bytes.Repeat([]byte("v"), 4096)
	rr := env.do(multipartRequest(t, "l1", "clip.mp4", "video/mp4", data))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	videoURL, _ := body["videoUrl"].(string)
	if body["success"] != true || body["lessonId"] != "l1" || !strings.HasPrefix(videoURL, "/videos/l1-") {
		t.Fatalf("body = %v", body)
	}
	if body["videoDuration"] != nil {
		t.Errorf("videoDuration = %v, want null for local storage", body["videoDuration"])
	}

	req := httptest.NewRequest(http.MethodGet, "/lessons/l1/video", nil)
	req.Header.Set("Range", "bytes=0-9")
	rr = env.do(req)
	if rr.Code != http.StatusPartialContent || rr.Body.Len() != 10 {
		t.Errorf("stream after upload: status = %d, len = %d", rr.Code, rr.Body.Len())
	}
}

func TestVideoSourcesHandler_AfterLocalUpload(t *testing.T) {
	env := setupTestEnv(t)
	env.addLesson(t, &lessons.Lesson{ID: "l1", Title: "Intro", IsPublished: true})

	rr := env.do(multipartRequest(t, "l1", "clip.mp4", "video/mp4", bytes.Repeat([]byte("v"), 2048)))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/lessons/l1/video-sources", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["isMock"] != false || body["type"] != "file" {
		t.Errorf("body = %v, want non-mock file source", body)
	}
	if body["primary"] != "/lessons/l1/video" {
		t.Errorf("primary = %v, want stream endpoint", body["primary"])
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, body["primary"].(string), nil))
	if rr.Code != http.StatusOK || rr.Body.Len() != 2048 {
		t.Errorf("primary source: status = %d, len = %d", rr.Code, rr.Body.Len())
	}
}

func TestUploadHandler_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	env.addLesson(t, &lessons.Lesson{ID: "l1", Title: "Intro"})

	rr := env.do(multipartRequest(t, "l1", "pic.png", "image/png", []byte("png")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("png status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["success"] != false || !strings.Contains(body["message"].(string), "Allowed formats") {
		t.Errorf("png body = %v", body)
	}

	rr = env.do(multipartRequest(t, "missing", "clip.mp4", "video/mp4", []byte("x")))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing lesson status = %d, want 404", rr.Code)
	}

	req := multipartRequest(t, "l1", "clip.mp4", "video/mp4", []byte("x"))
	req.ContentLength = 600 * 1024 * 1024
	rr = env.do(req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("oversize status = %d", rr.Code)
	}
	msg := decodeJSONBody(t, rr)["message"].(string)
	if !strings.Contains(msg, "500MB") || !strings.Contains(msg, "600.00MB") {
		t.Errorf("oversize message = %q", msg)
	}

	req = httptest.NewRequest(http.MethodPost, "/lessons/l1/video/upload", strings.NewReader("raw"))
	req.Header.Set("Content-Type", "application/octet-stream")
	if rr := env.do(req); rr.Code != http.StatusBadRequest {
		t.Errorf("octet-stream status = %d, want 400", rr.Code)
	}
}

func TestUploadHandler_OversizeChunkedBody(t *testing.T) {
	env := setupTestEnvWithLimit(t, 1024*1024)
	env.addLesson(t, &lessons.Lesson{ID: "l1", Title: "Intro"})

	req := multipartRequest(t, "l1", "clip.mp4", "video/mp4", bytes.Repeat([]byte("v"), 3*1024*1024))
	req.ContentLength = -1

	rr := env.do(req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	msg := decodeJSONBody(t, rr)["message"].(string)
	if !strings.Contains(msg, "exceeds 1MB") {
		t.Errorf("message = %q, want limit without a measured size", msg)
	}
	if strings.Contains(msg, "2.00MB") {
		t.Errorf("message = %q quotes the byte limit as the file size", msg)
	}

	entries, _ := os.ReadDir(env.videosDir)
	if len(entries) != 0 {
		t.Errorf("videos dir has %d entries, want none", len(entries))
	}
}

func TestUploadHandler_JSONAndDelete(t *testing.T) {
	env := setupTestEnv(t)
	env.addLesson(t, &lessons.Lesson{ID: "l1", Title: "Intro"})

	req := httptest.NewRequest(http.MethodPost, "/lessons/l1/video/upload",
		strings.NewReader(`{"videoUrl":"https://cdn.example.com/lesson.mp4","duration":59.6}`))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["videoUrl"] != "https://cdn.example.com/lesson.mp4" || body["videoDuration"] != float64(60) {
		t.Errorf("body = %v", body)
	}

	req = httptest.NewRequest(http.MethodPost, "/lessons/l1/video/upload", strings.NewReader(`{"duration":10}`))
	req.Header.Set("Content-Type", "application/json")
	if rr := env.do(req); rr.Code != http.StatusBadRequest {
		t.Errorf("missing videoUrl status = %d, want 400", rr.Code)
	}

	rr = env.do(httptest.NewRequest(http.MethodDelete, "/lessons/l1/video/upload", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	l, _ := env.repo.GetLesson(context.Background(), "l1")
	if l.HasVideo() || l.VideoDuration != nil {
		t.Errorf("lesson = %+v, want video cleared", l)
	}

	rr = env.do(httptest.NewRequest(http.MethodDelete, "/lessons/l1/video/upload", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestProgressHandlers(t *testing.T) {
	env := setupTestEnv(t)
	env.addLesson(t, &lessons.Lesson{ID: "l1", Title: "Intro", IsPublished: true})
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{Subject: "student-1"})

	post := func(body string, auth bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/lessons/l1/video/progress", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if auth {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return env.do(req)
	}

	if rr := post(`{"timestamp":10,"duration":20}`, false); rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rr.Code)
	}
	if rr := post(`{"timestamp":"10","duration":20}`, true); rr.Code != http.StatusBadRequest {
		t.Errorf("string timestamp status = %d, want 400", rr.Code)
	}
	if rr := post(`{"timestamp":10}`, true); rr.Code != http.StatusBadRequest {
		t.Errorf("missing duration status = %d, want 400", rr.Code)
	}
	if rr := post(`not json`, true); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid json status = %d, want 400", rr.Code)
	}

	rr := post(`{"timestamp":10,"duration":20}`, true)
	if rr.Code != http.StatusOK || decodeJSONBody(t, rr)["success"] != true {
		t.Fatalf("first report status = %d", rr.Code)
	}
	if rr := post(`{"timestamp":95.2,"duration":120}`, true); rr.Code != http.StatusOK {
		t.Fatalf("second report status = %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/lessons/l1/video/progress", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["lastPosition"] != float64(95) || body["watchTime"] != float64(120) || body["lessonId"] != "l1" {
		t.Errorf("body = %v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/lessons/other/video/progress", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if rr := env.do(req); rr.Code != http.StatusNotFound {
		t.Errorf("no progress status = %d, want 404", rr.Code)
	}
}
