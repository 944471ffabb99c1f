// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique user identifier (UUID format).
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", Invalid("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// CourseID identifies a course in the catalog.
type CourseID int64

// IsValid checks if the course ID is positive.
func (c CourseID) IsValid() bool {
	return c > 0
}

// Int64 returns the underlying int64 value.
func (c CourseID) Int64() int64 {
	return int64(c)
}

// String returns the decimal representation.
func (c CourseID) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// ParseCourseID parses a path or body value into a CourseID.
func ParseCourseID(raw string) (CourseID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, Invalid("shared", "ParseCourseID", ErrInvalidID, "invalid course ID")
	}
	return CourseID(id), nil
}

// LessonID identifies a lesson in the catalog.
type LessonID int64

// IsValid checks if the lesson ID is positive.
func (l LessonID) IsValid() bool {
	return l > 0
}

// Int64 returns the underlying int64 value.
func (l LessonID) Int64() int64 {
	return int64(l)
}

// String returns the decimal representation.
func (l LessonID) String() string {
	return strconv.FormatInt(int64(l), 10)
}

// ParseLessonID parses a path or body value into a LessonID.
func ParseLessonID(raw string) (LessonID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, Invalid("shared", "ParseLessonID", ErrInvalidID, "invalid lesson ID")
	}
	return LessonID(id), nil
}
