// Package progress содержит доменную модель прогресса просмотра урока
// и машину состояний сдачи урока.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package progress

import (
	"math"
	"time"

	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultCompletionThreshold - процент просмотра, начиная с которого урок
	// считается завершённым (хвостовые титры не обязательны).
	DefaultCompletionThreshold = 95.0

	// DefaultExperienceReward - награда за сдачу урока, если у урока не задана своя.
	DefaultExperienceReward int64 = 200
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// State - состояние урока для пользователя.
// Переходы линейные: NOT_STARTED → IN_PROGRESS → CAN_SUBMIT → SUBMITTED.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateCanSubmit  State = "CAN_SUBMIT"
	StateSubmitted  State = "SUBMITTED"
)

// rank задаёт порядок состояний для проверки отсутствия обратных переходов.
func (s State) rank() int {
	switch s {
	case StateInProgress:
		return 1
	case StateCanSubmit:
		return 2
	case StateSubmitted:
		return 3
	default:
		return 0
	}
}

// CanTransitionTo проверяет, что переход не идёт назад.
func (s State) CanTransitionTo(next State) bool {
	return next.rank() >= s.rank()
}

// StateOf выводит состояние из записи прогресса (nil - урок не начат).
func StateOf(p *LessonProgress) State {
	switch {
	case p == nil:
		return StateNotStarted
	case p.Submitted:
		return StateSubmitted
	case p.Completed:
		return StateCanSubmit
	default:
		return StateInProgress
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// LessonProgress - прогресс пользователя по одному уроку.
// Ключ: (UserID, LessonID). Completed и Submitted монотонны,
// Submitted всегда влечёт Completed.
type LessonProgress struct {
	UserID   shared.UserID
	LessonID shared.LessonID
	CourseID shared.CourseID

	LastPosition float64 // секунды, >= 0
	Duration     float64 // секунды, >= 0
	Percentage   int     // 0..100

	Completed        bool
	Submitted        bool
	ExperienceGained int64

	LastReportedAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// State возвращает текущее состояние урока.
func (p *LessonProgress) State() State {
	return StateOf(p)
}

// ══════════════════════════════════════════════════════════════════════════════
// SAMPLE & MERGE
// ══════════════════════════════════════════════════════════════════════════════

// Sample - одно сообщение о позиции воспроизведения от клиента.
type Sample struct {
	UserID     shared.UserID
	LessonID   shared.LessonID
	CourseID   shared.CourseID
	Position   float64
	Duration   float64
	ReportedAt time.Time
}

// Validate проверяет сэмпл.
func (s Sample) Validate() error {
	if !s.UserID.IsValid() {
		return shared.Invalid("progress", "Validate", shared.ErrInvalidID, "invalid user ID")
	}
	if !s.LessonID.IsValid() {
		return shared.Invalid("progress", "Validate", shared.ErrInvalidID, "lessonId must be a positive integer")
	}
	if math.IsNaN(s.Position) || math.IsInf(s.Position, 0) {
		return shared.Invalid("progress", "Validate", shared.ErrInvalidInput, "position must be a finite number")
	}
	if math.IsNaN(s.Duration) || math.IsInf(s.Duration, 0) {
		return shared.Invalid("progress", "Validate", shared.ErrInvalidInput, "duration must be a finite number")
	}
	if s.Position < 0 {
		return shared.Invalid("progress", "Validate", shared.ErrNegativeValue, "position cannot be negative")
	}
	if s.Duration < 0 {
		return shared.Invalid("progress", "Validate", shared.ErrNegativeValue, "duration cannot be negative")
	}
	return nil
}

// Percentage вычисляет процент просмотра: round(100*pos/dur) в пределах [0,100].
func Percentage(position, duration float64) int {
	if duration <= 0 || position <= 0 {
		return 0
	}
	pct := math.Round(100 * position / duration)
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// Merge объединяет предыдущее состояние с новым сэмплом.
//
// Правила:
//   - Completed = prev.Completed OR (percentage >= threshold); однажды
//     выставленный флаг не сбрасывается даже при переупорядоченных записях.
//   - Submitted переносится из prev без изменений.
//   - Сэмпл старше сохранённого LastReportedAt не двигает позицию,
//     но всё ещё может выставить Completed.
//   - Положительная длительность заменяет сохранённую, нулевая - нет.
func Merge(prev *LessonProgress, s Sample, threshold float64, now time.Time) LessonProgress {
	next := LessonProgress{
		UserID:         s.UserID,
		LessonID:       s.LessonID,
		CourseID:       s.CourseID,
		LastPosition:   s.Position,
		Duration:       s.Duration,
		LastReportedAt: s.ReportedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if prev != nil {
		next.CreatedAt = prev.CreatedAt
		next.Submitted = prev.Submitted
		next.ExperienceGained = prev.ExperienceGained
		if next.CourseID == 0 {
			next.CourseID = prev.CourseID
		}
		if s.Duration <= 0 {
			next.Duration = prev.Duration
		}
		if s.ReportedAt.Before(prev.LastReportedAt) {
			next.LastPosition = prev.LastPosition
			next.LastReportedAt = prev.LastReportedAt
		}
	}

	next.Percentage = Percentage(next.LastPosition, next.Duration)

	// Сэмпл проверяется на порог сам по себе, чтобы устаревший, но
	// досмотренный до конца отчёт всё равно засчитал завершение.
	sampleDone := float64(Percentage(s.Position, next.Duration)) >= threshold
	next.Completed = (prev != nil && prev.Completed) || sampleDone ||
		float64(next.Percentage) >= threshold

	return next
}

// JustCompleted сообщает о переходе "не завершён" → "завершён".
func JustCompleted(prev *LessonProgress, next LessonProgress) bool {
	wasCompleted := prev != nil && prev.Completed
	return !wasCompleted && next.Completed
}
