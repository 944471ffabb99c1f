package command

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/alem-hub/learnhub/internal/domain/account"
	"github.com/alem-hub/learnhub/internal/domain/leveling"
	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/pkg/logger"
)

// UpdateProfileCommand - изменение профиля. nil-поля не меняются.
type UpdateProfileCommand struct {
	UserID      shared.UserID
	DisplayName *string
	AvatarURL   *string
}

// Validate проверяет и нормализует поля команды.
func (c *UpdateProfileCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.Invalid("account", "UpdateProfile", shared.ErrInvalidID, "invalid user ID")
	}
	if c.DisplayName != nil {
		name := strings.TrimSpace(*c.DisplayName)
		if name == "" {
			return shared.Invalid("account", "UpdateProfile", shared.ErrEmptyValue, "displayName cannot be empty")
		}
		if utf8.RuneCountInString(name) > 100 {
			return shared.Invalid("account", "UpdateProfile", shared.ErrValueOutOfRange,
				"displayName must be at most 100 characters")
		}
		c.DisplayName = &name
	}
	if c.AvatarURL != nil {
		raw := strings.TrimSpace(*c.AvatarURL)
		if raw != "" {
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return shared.Invalid("account", "UpdateProfile", shared.ErrInvalidInput,
					"avatarUrl must be an http(s) URL")
			}
		}
		c.AvatarURL = &raw
	}
	return nil
}

// UpdateProfileHandler обрабатывает UpdateProfileCommand.
type UpdateProfileHandler struct {
	accounts account.Repository
	levels   *leveling.Table
	log      *logger.Logger
}

// NewUpdateProfileHandler создаёт обработчик.
func NewUpdateProfileHandler(accounts account.Repository, levels *leveling.Table, log *logger.Logger) *UpdateProfileHandler {
	if levels == nil {
		levels = leveling.Default()
	}
	if log == nil {
		log = logger.Default()
	}
	return &UpdateProfileHandler{
		accounts: accounts,
		levels:   levels,
		log:      log.With(logger.Component("update_profile")),
	}
}

// Handle выполняет команду и возвращает обновлённый профиль.
func (h *UpdateProfileHandler) Handle(ctx context.Context, cmd UpdateProfileCommand) (result *account.Snapshot, err error) {
	ctx, span := tracer.Start(ctx, "command.UpdateProfile")
	defer func() { finishSpan(span, err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	user, err := h.accounts.UpdateProfile(ctx, cmd.UserID, account.ProfileUpdate{
		DisplayName: cmd.DisplayName,
		AvatarURL:   cmd.AvatarURL,
	})
	if err != nil {
		return nil, err
	}

	h.log.WithTrace(ctx).Debug("profile updated", logger.UserID(cmd.UserID.String()))

	snapshot := user.Snapshot(h.levels)
	return &snapshot, nil
}
