package query

import (
	"context"

	"github.com/alem-hub/learnhub/internal/domain/purchase"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ListPurchasesHandler возвращает покупки пользователя, новые первыми.
type ListPurchasesHandler struct {
	purchases purchase.Repository
}

// NewListPurchasesHandler создаёт обработчик.
func NewListPurchasesHandler(purchases purchase.Repository) *ListPurchasesHandler {
	return &ListPurchasesHandler{purchases: purchases}
}

// Handle выполняет запрос. Пустой журнал даёт пустой (не nil) список.
func (h *ListPurchasesHandler) Handle(ctx context.Context, userID shared.UserID) (result []PurchaseDTO, err error) {
	ctx, span := tracer.Start(ctx, "query.ListPurchases")
	defer func() { finishSpan(span, err) }()

	list, err := h.purchases.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result = make([]PurchaseDTO, 0, len(list))
	for _, p := range list {
		result = append(result, NewPurchaseDTO(p))
	}
	return result, nil
}

// CheckPurchaseHandler проверяет наличие покупки курса.
type CheckPurchaseHandler struct {
	purchases purchase.Repository
}

// NewCheckPurchaseHandler создаёт обработчик.
func NewCheckPurchaseHandler(purchases purchase.Repository) *CheckPurchaseHandler {
	return &CheckPurchaseHandler{purchases: purchases}
}

// Handle возвращает true, если курс куплен. Неизвестный курс - просто false.
func (h *CheckPurchaseHandler) Handle(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (ok bool, err error) {
	ctx, span := tracer.Start(ctx, "query.CheckPurchase")
	defer func() { finishSpan(span, err) }()

	if !courseID.IsValid() {
		return false, shared.Invalid("purchase", "Check", shared.ErrInvalidID, "courseId must be a positive integer")
	}
	return h.purchases.Exists(ctx, userID, courseID)
}
