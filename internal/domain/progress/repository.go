package progress

import (
	"context"

	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Контракт хранилища прогресса. Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// RecordResult - результат записи сэмпла.
type RecordResult struct {
	Progress      *LessonProgress
	JustCompleted bool
}

// SubmitOutcome - результат атомарной сдачи урока.
type SubmitOutcome struct {
	// Progress - запись после сдачи.
	Progress *LessonProgress

	// Awarded - true только для того вызова, который реально начислил опыт.
	Awarded bool

	// ExperienceGained - начисленный опыт (0 для повторных вызовов).
	ExperienceGained int64

	// ExperienceAfter - накопленный опыт пользователя после операции.
	ExperienceAfter int64
}

// Repository определяет операции хранилища прогресса.
type Repository interface {
	// Get возвращает прогресс по ключу (userID, lessonID).
	// Возвращает (nil, nil), если записи нет.
	Get(ctx context.Context, userID shared.UserID, lessonID shared.LessonID) (*LessonProgress, error)

	// ListByCourse возвращает прогресс пользователя по всем урокам курса.
	ListByCourse(ctx context.Context, userID shared.UserID, courseID shared.CourseID) ([]*LessonProgress, error)

	// Record атомарно объединяет сэмпл с сохранённым состоянием через Merge.
	// Запись для одного ключа сериализуется хранилищем.
	Record(ctx context.Context, sample Sample, threshold float64) (*RecordResult, error)

	// Submit в одной транзакции переводит CAN_SUBMIT → SUBMITTED и увеличивает
	// опыт пользователя на reward. Повторный вызов возвращает Awarded=false.
	// Возвращает ErrLessonNotCompleted для NOT_STARTED/IN_PROGRESS.
	Submit(ctx context.Context, userID shared.UserID, lessonID shared.LessonID, reward int64) (*SubmitOutcome, error)
}
