package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edulearn/lesson-video/internal/api"
	"github.com/edulearn/lesson-video/internal/config"
	"github.com/edulearn/lesson-video/internal/db"
	"github.com/edulearn/lesson-video/internal/lessons"
	"github.com/edulearn/lesson-video/internal/logging"
	"github.com/edulearn/lesson-video/internal/observability"
	"github.com/edulearn/lesson-video/internal/playback"
	"github.com/edulearn/lesson-video/internal/progress"
	"github.com/edulearn/lesson-video/internal/storage"
	"github.com/edulearn/lesson-video/internal/upload"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.VideosDir(), 0755); err != nil {
		return fmt.Errorf("failed to create videos dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting lesson video service",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", cfg.DataDir(),
		"storage", cfg.Storage().Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Init(ctx, logger, observability.Options{
		Enabled: cfg.TracingEnabled(),
		Version: config.Version,
	})
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := lessons.NewRepository(database.Conn())
	lessonSvc := lessons.NewService(repo, logger)

	if seed := cfg.SeedFile(); seed != "" {
		if _, err := lessonSvc.Seed(ctx, seed); err != nil {
			return fmt.Errorf("failed to seed lessons: %w", err)
		}
	}

	backend, err := storage.New(ctx, cfg.Storage(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer backend.Close()

	sandbox, err := playback.NewSandbox(cfg.VideosDir())
	if err != nil {
		return fmt.Errorf("failed to initialize videos root: %w", err)
	}
	dispatcher := playback.NewDispatcher(
		lessonSvc,
		playback.NewLocalServer(sandbox, logger),
		playback.NewRelay(cfg.Relay(), logger),
		logger,
	)

	if cfg.JWTSecret() == "" {
		logger.Warn("no JWT secret configured, progress endpoints will reject every caller")
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:        cfg.Port(),
		Lessons:     lessonSvc,
		Dispatcher:  dispatcher,
		Uploads:     upload.NewPipeline(backend, repo, cfg.Storage(), logger),
		Progress:    progress.NewTracker(repo, logger),
		JWTSecret:   cfg.JWTSecret(),
		CORSOrigins: cfg.CORSOrigins(),
		Logger:      logger,
		StartTime:   startTime,
		Version:     config.Version,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(apiServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
