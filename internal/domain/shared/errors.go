// Package shared содержит типы и ошибки, общие для всех доменных пакетов.
// Внешних зависимостей у пакета нет.
package shared

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// ВИДЫ ОШИБОК
// Слой HTTP выбирает статус ответа по виду, поэтому каждая доменная ошибка
// несёт ровно один из них.
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// Нарушения правил процесса обучения и покупки.
	ErrNotCompleted     = errors.New("lesson not completed")
	ErrAlreadyPurchased = errors.New("course already purchased")
	ErrFreeCourse       = errors.New("cannot purchase free course")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrStorageUnavailable оборачивает ErrStorage: временный сбой
	// совпадает и с общим видом.
	ErrStorage            = errors.New("storage error")
	ErrStorageUnavailable = fmt.Errorf("storage unavailable: %w", ErrStorage)
)

// validationKinds отображаются в 400 validation_error.
var validationKinds = []error{
	ErrValidation, ErrInvalidID, ErrInvalidInput,
	ErrEmptyValue, ErrNegativeValue, ErrValueOutOfRange,
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERROR
// ══════════════════════════════════════════════════════════════════════════════

// DomainError - ошибка с местом возникновения (домен и операция), видом и
// текстом для клиента. errors.Is находит и вид, и причину.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(e.Domain)
	b.WriteByte('.')
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DomainError) Unwrap() []error {
	out := make([]error, 0, 2)
	for _, err := range []error{e.Kind, e.Err} {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

func newError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// Invalid - ошибка входных данных операции.
func Invalid(domain, op string, kind error, message string) error {
	return newError(domain, op, kind, message)
}

// Storage оборачивает сбой хранилища. Временные сбои (блокировки, обрыв
// соединения) получают вид ErrStorageUnavailable и повторяются с backoff.
func Storage(domain, op string, err error, transient bool) error {
	e := newError(domain, op, ErrStorage, "storage failure")
	if transient {
		e.Kind = ErrStorageUnavailable
	}
	e.Err = err
	return e
}

// ══════════════════════════════════════════════════════════════════════════════
// ИЗВЕСТНЫЕ ОШИБКИ
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrCourseNotFound = newError("catalog", "FindCourse", ErrNotFound, "course not found")
	ErrLessonNotFound = newError("catalog", "FindLesson", ErrNotFound, "lesson not found")

	ErrLessonNotCompleted = newError("progress", "Submit", ErrNotCompleted, "lesson not completed yet, keep watching")
	ErrCourseNotOwned     = newError("progress", "CheckAccess", ErrForbidden, "course not purchased")

	ErrCourseAlreadyPurchased = newError("purchase", "Create", ErrAlreadyPurchased, "course already purchased")
	ErrCannotPurchaseFree     = newError("purchase", "Create", ErrFreeCourse, "cannot purchase free course")

	ErrUserNotFound       = newError("account", "Find", ErrNotFound, "user not found")
	ErrEmailTaken         = newError("account", "Create", ErrAlreadyExists, "email already registered")
	ErrInvalidCredentials = newError("account", "Login", ErrUnauthorized, "invalid email or password")
	ErrInvalidToken       = newError("account", "Authenticate", ErrUnauthorized, "invalid or expired token")
)

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }
func IsRetryable(err error) bool     { return errors.Is(err, ErrStorageUnavailable) }

func IsValidation(err error) bool {
	return slices.ContainsFunc(validationKinds, func(kind error) bool { return errors.Is(err, kind) })
}
