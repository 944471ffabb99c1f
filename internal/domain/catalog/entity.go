// Package catalog содержит модель каталога курсов и уроков.
// Для ядра прогресса и покупок каталог доступен только на чтение.
package catalog

import (
	"context"

	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// Course - курс каталога.
// Согласованность IsFree и Price - ответственность каталога.
type Course struct {
	ID           shared.CourseID
	Title        string
	Description  string
	IsFree       bool
	Price        int64
	DisplayOrder int
	Published    bool
}

// Lesson - видеоурок курса.
type Lesson struct {
	ID               shared.LessonID
	CourseID         shared.CourseID
	Title            string
	Description      string
	VideoURL         string
	VideoDuration    int // секунды
	ExperienceReward int64
	DisplayOrder     int
}

// RewardOr возвращает награду урока или значение по умолчанию, если она не задана.
func (l *Lesson) RewardOr(fallback int64) int64 {
	if l.ExperienceReward > 0 {
		return l.ExperienceReward
	}
	return fallback
}

// Catalog - порт чтения каталога.
type Catalog interface {
	// GetCourse возвращает курс или ErrCourseNotFound.
	GetCourse(ctx context.Context, id shared.CourseID) (*Course, error)

	// ListCourses возвращает опубликованные курсы в порядке отображения.
	ListCourses(ctx context.Context) ([]*Course, error)

	// GetLesson возвращает урок или ErrLessonNotFound.
	GetLesson(ctx context.Context, id shared.LessonID) (*Lesson, error)

	// ListLessons возвращает уроки курса в порядке отображения.
	ListLessons(ctx context.Context, courseID shared.CourseID) ([]*Lesson, error)
}

// Writer - порт наполнения каталога (используется командой seed).
type Writer interface {
	UpsertCourse(ctx context.Context, c *Course) error
	UpsertLesson(ctx context.Context, l *Lesson) error
}
