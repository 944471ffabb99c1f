// Package purchase содержит доменную модель журнала покупок курсов.
// Журнал только дописывается: покупки не изменяются и не удаляются.
package purchase

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// PaymentStatus - статус оплаты. Оплата синхронная (mock), поэтому
// единственное допустимое значение - COMPLETED.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "COMPLETED"
)

// TransactionPrefix - префикс идентификатора mock-транзакции.
const TransactionPrefix = "MOCK-"

var transactionIDRegex = regexp.MustCompile(`(?i)^MOCK-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// NewTransactionID генерирует идентификатор вида MOCK-<uuid>.
func NewTransactionID() string {
	return TransactionPrefix + uuid.NewString()
}

// IsValidTransactionID проверяет формат идентификатора без учёта регистра.
func IsValidTransactionID(id string) bool {
	return transactionIDRegex.MatchString(strings.TrimSpace(id))
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Purchase - запись журнала о покупке курса.
// Цена фиксируется в момент покупки и далее не меняется.
type Purchase struct {
	ID            string
	UserID        shared.UserID
	CourseID      shared.CourseID
	CourseTitle   string
	PurchasePrice int64
	PurchaseDate  time.Time
	PaymentStatus PaymentStatus
	TransactionID string
}

// Validate проверяет запись перед сохранением в журнал.
func (p *Purchase) Validate() error {
	switch {
	case !p.UserID.IsValid():
		return shared.Invalid("purchase", "Validate", shared.ErrInvalidID, "invalid user ID")
	case p.CourseID <= 0:
		return shared.Invalid("purchase", "Validate", shared.ErrInvalidID, "invalid course ID")
	case p.PurchasePrice < 0:
		return shared.Invalid("purchase", "Validate", shared.ErrNegativeValue, "purchase price must not be negative")
	case !IsValidTransactionID(p.TransactionID):
		return shared.Invalid("purchase", "Validate", shared.ErrInvalidInput, "invalid transaction ID")
	}
	return nil
}

// New создаёт покупку платного курса.
// Возвращает ErrCannotPurchaseFree для бесплатного курса.
func New(userID shared.UserID, course *catalog.Course, now time.Time) (*Purchase, error) {
	if !userID.IsValid() {
		return nil, shared.Invalid("purchase", "New", shared.ErrInvalidID, "invalid user ID")
	}
	if course == nil {
		return nil, shared.ErrCourseNotFound
	}
	if course.IsFree {
		return nil, shared.ErrCannotPurchaseFree
	}

	return &Purchase{
		ID:            uuid.NewString(),
		UserID:        userID,
		CourseID:      course.ID,
		CourseTitle:   course.Title,
		PurchasePrice: course.Price,
		PurchaseDate:  now.UTC(),
		PaymentStatus: PaymentCompleted,
		TransactionID: NewTransactionID(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции журнала покупок.
type Repository interface {
	// Create добавляет покупку одной вставкой под ограничением
	// UNIQUE(user_id, course_id). При нарушении уникальности возвращает
	// ErrCourseAlreadyPurchased.
	Create(ctx context.Context, p *Purchase) error

	// ListByUser возвращает покупки пользователя, новые первыми.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*Purchase, error)

	// Exists проверяет наличие завершённой покупки.
	Exists(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (bool, error)
}
