package lessons

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestService_PublishedLesson(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(repo, nil)

	repo.UpsertLesson(ctx, &Lesson{ID: "pub", Title: "Published", IsPublished: true})
	repo.UpsertLesson(ctx, &Lesson{ID: "draft", Title: "Draft"})

	if _, err := svc.PublishedLesson(ctx, "pub"); err != nil {
		t.Errorf("PublishedLesson(pub) error = %v", err)
	}
	if _, err := svc.PublishedLesson(ctx, "draft"); !errors.Is(err, ErrNotFound) {
		t.Errorf("PublishedLesson(draft) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.PublishedLesson(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("PublishedLesson(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Lesson(ctx, "draft"); err != nil {
		t.Errorf("Lesson(draft) error = %v", err)
	}
}

func TestService_Seed(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(repo, nil)

	path := filepath.Join(t.TempDir(), "lessons.yaml")
	yml := `
lessons:
  - id: intro
    title: Introduction
    video_url: https://www.youtube.com/watch?v=dQw4w9WgXcQ
    is_published: true
  - id: local
    title: Local upload
    video_url: /videos/local.mp4
    video_duration: 61
    is_published: true
    is_preview: true
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	n, err := svc.Seed(ctx, path)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Seed() = %d, want 2", n)
	}

	got, err := svc.PublishedLesson(ctx, "local")
	if err != nil {
		t.Fatalf("PublishedLesson() error = %v", err)
	}
	if !got.IsPreview || got.VideoDuration == nil || *got.VideoDuration != 61 {
		t.Errorf("seeded lesson = %+v", got)
	}

	// seeding twice is an update, not a duplicate
	if _, err := svc.Seed(ctx, path); err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}
}

func TestLoadSeed_MissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("lessons:\n  - title: no id\n"), 0o644)

	if _, err := LoadSeed(path); err == nil {
		t.Error("LoadSeed() should reject lessons without id")
	}
}
