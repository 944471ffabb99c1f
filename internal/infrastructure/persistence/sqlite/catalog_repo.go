package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// CatalogRepository implements catalog.Catalog and catalog.Writer on SQLite.
type CatalogRepository struct {
	db *sql.DB
}

var (
	_ catalog.Catalog = (*CatalogRepository)(nil)
	_ catalog.Writer  = (*CatalogRepository)(nil)
)

const (
	courseColumns = `id, title, description, is_free, price, display_order, published`
	lessonColumns = `id, course_id, title, description, video_url, video_duration,
	experience_reward, display_order`
)

func scanCourse(row rowScanner) (*catalog.Course, error) {
	var (
		c               catalog.Course
		id              int64
		free, published int
	)
	if err := row.Scan(&id, &c.Title, &c.Description, &free, &c.Price, &c.DisplayOrder, &published); err != nil {
		return nil, err
	}
	c.ID = shared.CourseID(id)
	c.IsFree = free != 0
	c.Published = published != 0
	return &c, nil
}

func scanLesson(row rowScanner) (*catalog.Lesson, error) {
	var (
		l            catalog.Lesson
		id, courseID int64
	)
	if err := row.Scan(
		&id, &courseID, &l.Title, &l.Description, &l.VideoURL, &l.VideoDuration,
		&l.ExperienceReward, &l.DisplayOrder,
	); err != nil {
		return nil, err
	}
	l.ID = shared.LessonID(id)
	l.CourseID = shared.CourseID(courseID)
	return &l, nil
}

// GetCourse returns the course or ErrCourseNotFound.
func (r *CatalogRepository) GetCourse(ctx context.Context, id shared.CourseID) (*catalog.Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ?`, id.Int64()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrCourseNotFound
	}
	if err != nil {
		return nil, storageErr("catalog", "GetCourse", err)
	}
	return c, nil
}

// ListCourses returns published courses in display order.
func (r *CatalogRepository) ListCourses(ctx context.Context) ([]*catalog.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE published = 1 ORDER BY display_order, id`)
	if err != nil {
		return nil, storageErr("catalog", "ListCourses", err)
	}
	defer rows.Close()

	result := make([]*catalog.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, storageErr("catalog", "ListCourses", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("catalog", "ListCourses", err)
	}
	return result, nil
}

// GetLesson returns the lesson or ErrLessonNotFound.
func (r *CatalogRepository) GetLesson(ctx context.Context, id shared.LessonID) (*catalog.Lesson, error) {
	l, err := scanLesson(r.db.QueryRowContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, id.Int64()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrLessonNotFound
	}
	if err != nil {
		return nil, storageErr("catalog", "GetLesson", err)
	}
	return l, nil
}

// ListLessons returns the course lessons in display order.
func (r *CatalogRepository) ListLessons(ctx context.Context, courseID shared.CourseID) ([]*catalog.Lesson, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE course_id = ? ORDER BY display_order, id`,
		courseID.Int64())
	if err != nil {
		return nil, storageErr("catalog", "ListLessons", err)
	}
	defer rows.Close()

	result := make([]*catalog.Lesson, 0)
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, storageErr("catalog", "ListLessons", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("catalog", "ListLessons", err)
	}
	return result, nil
}

// UpsertCourse inserts or replaces a course by ID.
func (r *CatalogRepository) UpsertCourse(ctx context.Context, c *catalog.Course) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			is_free = excluded.is_free,
			price = excluded.price,
			display_order = excluded.display_order,
			published = excluded.published`,
		c.ID.Int64(), c.Title, c.Description, boolToInt(c.IsFree), c.Price,
		c.DisplayOrder, boolToInt(c.Published),
	)
	return storageErr("catalog", "UpsertCourse", err)
}

// UpsertLesson inserts or replaces a lesson by ID.
func (r *CatalogRepository) UpsertLesson(ctx context.Context, l *catalog.Lesson) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lessons (`+lessonColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			course_id = excluded.course_id,
			title = excluded.title,
			description = excluded.description,
			video_url = excluded.video_url,
			video_duration = excluded.video_duration,
			experience_reward = excluded.experience_reward,
			display_order = excluded.display_order`,
		l.ID.Int64(), l.CourseID.Int64(), l.Title, l.Description, l.VideoURL,
		l.VideoDuration, l.ExperienceReward, l.DisplayOrder,
	)
	return storageErr("catalog", "UpsertLesson", err)
}
