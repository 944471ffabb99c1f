package query

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/purchase"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCESS CONTROL
// Доступ к курсу: бесплатный курс открыт всем, платный - только при наличии
// покупки в журнале. Роль и премиум-флаг не учитываются.
// ══════════════════════════════════════════════════════════════════════════════

// AccessResolver решает, может ли пользователь пользоваться курсом.
// Покупки читаются напрямую из журнала, поэтому только что сделанная
// покупка видна следующему запросу.
type AccessResolver struct {
	catalog   catalog.Catalog
	purchases purchase.Repository
}

// NewAccessResolver создаёт резолвер.
func NewAccessResolver(cat catalog.Catalog, purchases purchase.Repository) *AccessResolver {
	return &AccessResolver{catalog: cat, purchases: purchases}
}

// HasAccess возвращает ErrCourseNotFound для неизвестного курса.
func (r *AccessResolver) HasAccess(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (ok bool, err error) {
	ctx, span := tracer.Start(ctx, "query.HasAccess")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Int64("course.id", courseID.Int64()))

	if !courseID.IsValid() {
		return false, shared.Invalid("access", "HasAccess", shared.ErrInvalidID, "courseId must be a positive integer")
	}

	course, err := r.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return false, err
	}
	return r.courseAccess(ctx, userID, course)
}

// courseAccess решает доступ для уже загруженного курса.
// Пустой userID - анонимный посетитель.
func (r *AccessResolver) courseAccess(ctx context.Context, userID shared.UserID, course *catalog.Course) (bool, error) {
	if course.IsFree {
		return true, nil
	}
	if userID.IsEmpty() {
		return false, nil
	}
	return r.purchases.Exists(ctx, userID, course.ID)
}
