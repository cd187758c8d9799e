package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/edulearn/lesson-video/internal/lessons"
	"github.com/edulearn/lesson-video/internal/logging"
	"github.com/edulearn/lesson-video/internal/playback"
	"github.com/edulearn/lesson-video/internal/progress"
	"github.com/edulearn/lesson-video/internal/upload"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port        int
	Lessons     *lessons.Service
	Dispatcher  *playback.Dispatcher
	Uploads     *upload.Pipeline
	Progress    *progress.Tracker
	JWTSecret   string
	CORSOrigins []string
	Logger      *slog.Logger
	StartTime   time.Time
	Version     string
}

func NewServer(cfg ServerConfig) *Server {
	cfg.Logger = logging.OrDiscard(cfg.Logger)
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           otelhttp.NewHandler(router, "lesson-video"),
			ReadHeaderTimeout: 15 * time.Second,
			// Video responses and uploads stream for as long as they take.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
