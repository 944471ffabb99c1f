package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// CatalogRepository implements catalog.Catalog and catalog.Writer using PostgreSQL.
type CatalogRepository struct {
	conn *Connection
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

func scanCourse(row pgx.Row) (*catalog.Course, error) {
	var (
		c  catalog.Course
		id int64
	)
	if err := row.Scan(&id, &c.Title, &c.Description, &c.IsFree, &c.Price, &c.DisplayOrder, &c.Published); err != nil {
		return nil, err
	}
	c.ID = shared.CourseID(id)
	return &c, nil
}

func scanLesson(row pgx.Row) (*catalog.Lesson, error) {
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
	c, err := scanCourse(r.conn.Pool().QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id.Int64()))
	if IsNoRows(err) {
		return nil, shared.ErrCourseNotFound
	}
	if err != nil {
		return nil, storageErr("catalog", "GetCourse", err)
	}
	return c, nil
}

// ListCourses returns published courses in display order.
func (r *CatalogRepository) ListCourses(ctx context.Context) ([]*catalog.Course, error) {
	rows, err := r.conn.Pool().Query(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE published ORDER BY display_order, id`)
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
	l, err := scanLesson(r.conn.Pool().QueryRow(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id.Int64()))
	if IsNoRows(err) {
		return nil, shared.ErrLessonNotFound
	}
	if err != nil {
		return nil, storageErr("catalog", "GetLesson", err)
	}
	return l, nil
}

// ListLessons returns the course lessons in display order.
func (r *CatalogRepository) ListLessons(ctx context.Context, courseID shared.CourseID) ([]*catalog.Lesson, error) {
	rows, err := r.conn.Pool().Query(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE course_id = $1 ORDER BY display_order, id`,
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
	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			is_free = EXCLUDED.is_free,
			price = EXCLUDED.price,
			display_order = EXCLUDED.display_order,
			published = EXCLUDED.published`,
		c.ID.Int64(), c.Title, c.Description, c.IsFree, c.Price, c.DisplayOrder, c.Published,
	)
	return storageErr("catalog", "UpsertCourse", err)
}

// UpsertLesson inserts or replaces a lesson by ID.
func (r *CatalogRepository) UpsertLesson(ctx context.Context, l *catalog.Lesson) error {
	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO lessons (`+lessonColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			video_url = EXCLUDED.video_url,
			video_duration = EXCLUDED.video_duration,
			experience_reward = EXCLUDED.experience_reward,
			display_order = EXCLUDED.display_order`,
		l.ID.Int64(), l.CourseID.Int64(), l.Title, l.Description, l.VideoURL,
		l.VideoDuration, l.ExperienceReward, l.DisplayOrder,
	)
	return storageErr("catalog", "UpsertLesson", err)
}
