package command

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/alem-hub/learnhub/internal/domain/account"
	"github.com/alem-hub/learnhub/internal/domain/leveling"
	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER / LOGIN COMMANDS
// Регистрация и вход по email и паролю. Оба возвращают токен доступа
// и профиль пользователя.
// ══════════════════════════════════════════════════════════════════════════════

// AuthResult - выданный токен вместе с профилем.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      account.Snapshot
}

// RegisterCommand - данные регистрации.
type RegisterCommand struct {
	Email       string
	Password    string
	DisplayName string
}

// LoginCommand - данные входа.
type LoginCommand struct {
	Email    string
	Password string
}

// AuthHandler обрабатывает RegisterCommand и LoginCommand.
type AuthHandler struct {
	accounts account.Repository
	hasher   PasswordHasher
	tokens   TokenIssuer
	levels   *leveling.Table
	log      *logger.Logger
}

// NewAuthHandler создаёт обработчик.
func NewAuthHandler(
	accounts account.Repository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	levels *leveling.Table,
	log *logger.Logger,
) *AuthHandler {
	if levels == nil {
		levels = leveling.Default()
	}
	if log == nil {
		log = logger.Default()
	}
	return &AuthHandler{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		levels:   levels,
		log:      log.With(logger.Component("auth")),
	}
}

// Register создаёт учётную запись с нулевым опытом и ролью FREE.
func (h *AuthHandler) Register(ctx context.Context, cmd RegisterCommand) (result *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "command.Register")
	defer func() { finishSpan(span, err) }()

	email, err := account.NormalizeEmail(cmd.Email)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(cmd.Password) < account.MinPasswordLength {
		return nil, shared.Invalid("account", "Register", shared.ErrInvalidInput,
			"password must be at least 8 characters")
	}
	if len(cmd.Password) > account.MaxPasswordBytes {
		return nil, shared.Invalid("account", "Register", shared.ErrValueOutOfRange,
			"password must be at most 72 bytes")
	}
	if utf8.RuneCountInString(strings.TrimSpace(cmd.DisplayName)) > 100 {
		return nil, shared.Invalid("account", "Register", shared.ErrValueOutOfRange,
			"displayName must be at most 100 characters")
	}

	hash, err := h.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, err
	}

	user := account.New(shared.UserID(uuid.NewString()), email, hash, cmd.DisplayName, time.Now())
	if err := h.accounts.Create(ctx, user); err != nil {
		return nil, err
	}

	h.log.WithTrace(ctx).Info("user registered",
		logger.UserID(user.ID.String()),
		logger.Email(user.Email),
	)

	return h.issue(user)
}

// Login проверяет пароль и выдаёт токен. Неизвестный email и неверный
// пароль неразличимы для клиента.
func (h *AuthHandler) Login(ctx context.Context, cmd LoginCommand) (result *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "command.Login")
	defer func() { finishSpan(span, err) }()

	email, err := account.NormalizeEmail(cmd.Email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	user, err := h.accounts.GetByEmail(ctx, email)
	if errors.Is(err, shared.ErrUserNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := h.hasher.Compare(user.PasswordHash, cmd.Password)
	if err != nil || !ok {
		return nil, shared.ErrInvalidCredentials
	}

	return h.issue(user)
}

func (h *AuthHandler) issue(user *account.User) (*AuthResult, error) {
	token, expiresAt, err := h.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Snapshot(h.levels),
	}, nil
}
