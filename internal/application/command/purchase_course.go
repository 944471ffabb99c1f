package command

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/purchase"
	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/pkg/logger"
	"github.com/alem-hub/learnhub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// PURCHASE COURSE COMMAND
// Записывает покупку платного курса в журнал. Оплата синхронная (mock),
// поэтому запись сразу получает статус COMPLETED.
// Роль и премиум-флаг пользователя покупкой не затрагиваются.
// ══════════════════════════════════════════════════════════════════════════════

// PurchaseCourseCommand - запрос на покупку курса.
type PurchaseCourseCommand struct {
	UserID   shared.UserID
	CourseID shared.CourseID
}

// Validate проверяет команду.
func (c PurchaseCourseCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.Invalid("purchase", "Create", shared.ErrInvalidID, "invalid user ID")
	}
	if !c.CourseID.IsValid() {
		return shared.Invalid("purchase", "Create", shared.ErrInvalidID, "courseId must be a positive integer")
	}
	return nil
}

// PurchaseCourseHandler обрабатывает PurchaseCourseCommand.
type PurchaseCourseHandler struct {
	catalog   catalog.Catalog
	purchases purchase.Repository
	retrier   *retry.Retrier
	log       *logger.Logger
}

// NewPurchaseCourseHandler создаёт обработчик.
func NewPurchaseCourseHandler(cat catalog.Catalog, purchases purchase.Repository, log *logger.Logger) *PurchaseCourseHandler {
	if log == nil {
		log = logger.Default()
	}
	return &PurchaseCourseHandler{
		catalog:   cat,
		purchases: purchases,
		retrier:   storageRetrier(),
		log:       log.With(logger.Component("purchase_course")),
	}
}

// Handle выполняет команду. Дубликат отклоняется ограничением
// уникальности хранилища, а не предварительной проверкой.
func (h *PurchaseCourseHandler) Handle(ctx context.Context, cmd PurchaseCourseCommand) (result *purchase.Purchase, err error) {
	ctx, span := tracer.Start(ctx, "command.PurchaseCourse")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Int64("course.id", cmd.CourseID.Int64()))

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	course, err := h.catalog.GetCourse(ctx, cmd.CourseID)
	if err != nil {
		return nil, err
	}

	p, err := purchase.New(cmd.UserID, course, time.Now())
	if err != nil {
		return nil, err
	}

	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.purchases.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	h.log.WithTrace(ctx).Info("purchase created",
		logger.UserID(cmd.UserID.String()),
		logger.CourseID(cmd.CourseID.Int64()),
		logger.Int64("price", p.PurchasePrice),
		logger.String("transaction_id", p.TransactionID),
	)

	return p, nil
}
