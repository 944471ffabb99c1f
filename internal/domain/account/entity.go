// Package account содержит модель учётной записи пользователя.
// Уровень не хранится: он всегда выводится из накопленного опыта.
package account

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/alem-hub/learnhub/internal/domain/leveling"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Role - роль учётной записи. Ортогональна покупкам: покупка курса
// никогда не меняет роль или премиум-флаг.
type Role string

const (
	RoleFree    Role = "FREE"
	RolePaid    Role = "PAID"
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
)

// IsValid проверяет, что роль известна.
func (r Role) IsValid() bool {
	switch r {
	case RoleFree, RolePaid, RoleAdmin, RoleTeacher:
		return true
	}
	return false
}

// Границы пароля. Верхняя задаётся в байтах: bcrypt не принимает
// пароли длиннее 72 байт.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// NormalizeEmail приводит email к каноническому виду и проверяет формат.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", shared.Invalid("account", "Validate", shared.ErrEmptyValue, "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", shared.Invalid("account", "Validate", shared.ErrInvalidInput, "invalid email format")
	}
	return email, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// User - учётная запись пользователя.
type User struct {
	ID           shared.UserID
	Email        string
	PasswordHash string
	DisplayName  string
	AvatarURL    string
	Experience   int64
	IsPremium    bool
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New создаёт нового пользователя с нулевым опытом и ролью FREE.
func New(id shared.UserID, email, passwordHash, displayName string, now time.Time) *User {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	return &User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  name,
		Role:         RoleFree,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
}

// Snapshot - публичное представление пользователя с разбивкой по уровню.
type Snapshot struct {
	ID          shared.UserID
	Email       string
	DisplayName string
	AvatarURL   string
	Role        Role
	IsPremium   bool
	Experience  int64
	Level       leveling.Info
}

// Snapshot строит представление пользователя по таблице уровней.
func (u *User) Snapshot(table *leveling.Table) Snapshot {
	return Snapshot{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Role:        u.Role,
		IsPremium:   u.IsPremium,
		Experience:  u.Experience,
		Level:       table.Of(u.Experience),
	}
}

// ProfileUpdate - изменяемые пользователем поля профиля.
// nil означает "не менять".
type ProfileUpdate struct {
	DisplayName *string
	AvatarURL   *string
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища учётных записей.
// Опыт увеличивается только внутри транзакции сдачи урока (progress.Repository.Submit).
type Repository interface {
	// Create создаёт пользователя. Возвращает ErrEmailTaken при дубликате email.
	Create(ctx context.Context, u *User) error

	// GetByID возвращает пользователя или ErrUserNotFound.
	GetByID(ctx context.Context, id shared.UserID) (*User, error)

	// GetByEmail возвращает пользователя или ErrUserNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateProfile меняет отображаемое имя и аватар.
	UpdateProfile(ctx context.Context, id shared.UserID, upd ProfileUpdate) (*User, error)

	// SetRole задаёт роль и премиум-флаг (фикстуры и администрирование).
	SetRole(ctx context.Context, id shared.UserID, role Role, premium bool) error
}
