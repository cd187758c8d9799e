package lessons

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	UpsertLesson(ctx context.Context, lesson *Lesson) error
	GetLesson(ctx context.Context, id string) (*Lesson, error)
	UpdateLessonVideo(ctx context.Context, id, videoURL string, duration *int) error
	ClearLessonVideo(ctx context.Context, id string) error

	UpsertProgress(ctx context.Context, p *Progress) error
	GetProgress(ctx context.Context, userID, lessonID string) (*Progress, error)
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) UpsertLesson(ctx context.Context, l *Lesson) error {
	now := r.now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lessons (id, title, video_url, video_duration, is_preview, is_published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			video_url = excluded.video_url,
			video_duration = excluded.video_duration,
			is_preview = excluded.is_preview,
			is_published = excluded.is_published,
			updated_at = excluded.updated_at
	`, l.ID, l.Title, nullString(l.VideoURL), nullInt(l.VideoDuration),
		boolToInt(l.IsPreview), boolToInt(l.IsPublished),
		l.CreatedAt.Format(time.RFC3339), l.UpdatedAt.Format(time.RFC3339))
	return err
}

// GetLesson returns nil, nil when the lesson does not exist.
func (r *SQLiteRepository) GetLesson(ctx context.Context, id string) (*Lesson, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, video_url, video_duration, is_preview, is_published, created_at, updated_at
		FROM lessons WHERE id = ?
	`, id)

	var l Lesson
	var videoURL sql.NullString
	var duration sql.NullInt64
	var preview, published int
	var createdAt, updatedAt string

	err := row.Scan(&l.ID, &l.Title, &videoURL, &duration, &preview, &published, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	l.VideoURL = videoURL.String
	if duration.Valid {
		l.VideoDuration = IntPtr(int(duration.Int64))
	}
	l.IsPreview = preview == 1
	l.IsPublished = published == 1
	l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	l.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &l, nil
}

// UpdateLessonVideo points the lesson at a new video. No version check is made:
// concurrent uploads for one lesson resolve as last write wins.
func (r *SQLiteRepository) UpdateLessonVideo(ctx context.Context, id, videoURL string, duration *int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lessons SET video_url = ?, video_duration = ?, updated_at = ? WHERE id = ?
	`, nullString(videoURL), nullInt(duration), r.now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (r *SQLiteRepository) ClearLessonVideo(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lessons SET video_url = NULL, video_duration = NULL, updated_at = ? WHERE id = ?
	`, r.now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// UpsertProgress keeps one row per (user, lesson). An existing row keeps its
// created_at, which is read back into p.
func (r *SQLiteRepository) UpsertProgress(ctx context.Context, p *Progress) error {
	now := r.now().UTC()
	p.UpdatedAt = now
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	var createdAt string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_id, last_position, watch_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, lesson_id) DO UPDATE SET
			last_position = excluded.last_position,
			watch_time = excluded.watch_time,
			updated_at = excluded.updated_at
		RETURNING created_at
	`, p.UserID, p.LessonID, p.LastPosition, p.WatchTime,
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339)).Scan(&createdAt)
	if err != nil {
		return err
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		p.CreatedAt = t
	}
	return nil
}

// GetProgress returns nil, nil when the user has not reported progress for the lesson.
func (r *SQLiteRepository) GetProgress(ctx context.Context, userID, lessonID string) (*Progress, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, lesson_id, last_position, watch_time, created_at, updated_at
		FROM lesson_progress WHERE user_id = ? AND lesson_id = ?
	`, userID, lessonID)

	var p Progress
	var createdAt, updatedAt string
	err := row.Scan(&p.UserID, &p.LessonID, &p.LastPosition, &p.WatchTime, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
