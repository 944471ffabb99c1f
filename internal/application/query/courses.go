package query

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/progress"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG VIEWS
// Каталог открыт для просмотра всем. Для пользователя без доступа к курсу
// ссылка на видео не отдаётся. userID может быть пустым (анонимный запрос),
// тогда прогресс не загружается.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogViews собирает представления курсов и уроков.
type CatalogViews struct {
	catalog  catalog.Catalog
	progress progress.Repository
	access   *AccessResolver

	// defaultReward подставляется, если у урока нет своей награды.
	defaultReward int64
}

// NewCatalogViews создаёт обработчик представлений каталога.
func NewCatalogViews(cat catalog.Catalog, repo progress.Repository, access *AccessResolver, defaultReward int64) *CatalogViews {
	if defaultReward <= 0 {
		defaultReward = progress.DefaultExperienceReward
	}
	return &CatalogViews{
		catalog:       cat,
		progress:      repo,
		access:        access,
		defaultReward: defaultReward,
	}
}

// ListCourses возвращает опубликованные курсы с признаком доступа.
func (v *CatalogViews) ListCourses(ctx context.Context, userID shared.UserID) (result []CourseDTO, err error) {
	ctx, span := tracer.Start(ctx, "query.ListCourses")
	defer func() { finishSpan(span, err) }()

	courses, err := v.catalog.ListCourses(ctx)
	if err != nil {
		return nil, err
	}

	result = make([]CourseDTO, 0, len(courses))
	for _, c := range courses {
		ok, err := v.access.courseAccess(ctx, userID, c)
		if err != nil {
			return nil, err
		}
		result = append(result, newCourseDTO(c, ok))
	}
	return result, nil
}

// GetCourse возвращает курс с признаком доступа.
func (v *CatalogViews) GetCourse(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (result *CourseDTO, err error) {
	ctx, span := tracer.Start(ctx, "query.GetCourse")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Int64("course.id", courseID.Int64()))

	course, err := v.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ok, err := v.access.courseAccess(ctx, userID, course)
	if err != nil {
		return nil, err
	}
	dto := newCourseDTO(course, ok)
	return &dto, nil
}

// ListLessons возвращает уроки курса вместе с прогрессом пользователя.
func (v *CatalogViews) ListLessons(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (result []LessonDTO, err error) {
	ctx, span := tracer.Start(ctx, "query.ListLessons")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Int64("course.id", courseID.Int64()))

	course, err := v.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	hasAccess, err := v.access.courseAccess(ctx, userID, course)
	if err != nil {
		return nil, err
	}

	lessons, err := v.catalog.ListLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}

	byLesson := make(map[shared.LessonID]*progress.LessonProgress)
	if !userID.IsEmpty() {
		records, err := v.progress.ListByCourse(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		for _, p := range records {
			byLesson[p.LessonID] = p
		}
	}

	result = make([]LessonDTO, 0, len(lessons))
	for _, l := range lessons {
		result = append(result, v.lessonView(l, hasAccess, byLesson[l.ID]))
	}
	return result, nil
}

// GetLesson возвращает урок с прогрессом пользователя - точку возобновления.
func (v *CatalogViews) GetLesson(ctx context.Context, userID shared.UserID, lessonID shared.LessonID) (result *LessonDTO, err error) {
	ctx, span := tracer.Start(ctx, "query.GetLesson")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Int64("lesson.id", lessonID.Int64()))

	lesson, err := v.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	course, err := v.catalog.GetCourse(ctx, lesson.CourseID)
	if err != nil {
		return nil, err
	}
	hasAccess, err := v.access.courseAccess(ctx, userID, course)
	if err != nil {
		return nil, err
	}

	var p *progress.LessonProgress
	if !userID.IsEmpty() {
		if p, err = v.progress.Get(ctx, userID, lessonID); err != nil {
			return nil, err
		}
	}

	dto := v.lessonView(lesson, hasAccess, p)
	return &dto, nil
}

// GetLessonProgress возвращает сырую запись прогресса или значения NOT_STARTED.
func (v *CatalogViews) GetLessonProgress(ctx context.Context, userID shared.UserID, lessonID shared.LessonID) (result *ProgressDTO, err error) {
	ctx, span := tracer.Start(ctx, "query.GetLessonProgress")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Int64("lesson.id", lessonID.Int64()))

	lesson, err := v.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	p, err := v.progress.Get(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}
	dto := NewProgressDTO(lesson.ID, lesson.CourseID, p)
	return &dto, nil
}

func (v *CatalogViews) lessonView(l *catalog.Lesson, hasAccess bool, p *progress.LessonProgress) LessonDTO {
	dto := newLessonDTO(l, l.RewardOr(v.defaultReward), p)
	if !hasAccess {
		dto.VideoURL = ""
	}
	return dto
}
