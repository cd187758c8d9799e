package lessons

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edulearn/lesson-video/internal/logging"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logging.OrDiscard(logger)}
}

func (s *Service) Repository() Repository {
	return s.repo
}

// Lesson returns ErrNotFound when the lesson does not exist.
func (s *Service) Lesson(ctx context.Context, id string) (*Lesson, error) {
	l, err := s.repo.GetLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrNotFound
	}
	return l, nil
}

// PublishedLesson hides unpublished lessons behind ErrNotFound so playback never
// reveals draft content.
func (s *Service) PublishedLesson(ctx context.Context, id string) (*Lesson, error) {
	l, err := s.Lesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.IsPublished {
		return nil, ErrNotFound
	}
	return l, nil
}

type seedFile struct {
	Lessons []*Lesson `yaml:"lessons"`
}

// LoadSeed reads a YAML lesson fixture file.
func LoadSeed(path string) ([]*Lesson, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for i, l := range sf.Lessons {
		if l == nil || l.ID == "" {
			return nil, fmt.Errorf("seed lesson #%d has no id", i+1)
		}
	}
	return sf.Lessons, nil
}

// Seed upserts every lesson in the fixture file and returns how many were written.
func (s *Service) Seed(ctx context.Context, path string) (int, error) {
	items, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}

	for _, l := range items {
		if err := s.repo.UpsertLesson(ctx, l); err != nil {
			return 0, fmt.Errorf("failed to seed lesson %s: %w", l.ID, err)
		}
	}

	s.logger.Info("seeded lessons", "count", len(items), "file", path)
	return len(items), nil
}
