package query

import (
	"context"

	"github.com/alem-hub/learnhub/internal/domain/account"
	"github.com/alem-hub/learnhub/internal/domain/leveling"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// GetProfileHandler возвращает профиль пользователя с уровнем.
type GetProfileHandler struct {
	accounts account.Repository
	levels   *leveling.Table
}

// NewGetProfileHandler создаёт обработчик.
func NewGetProfileHandler(accounts account.Repository, levels *leveling.Table) *GetProfileHandler {
	if levels == nil {
		levels = leveling.Default()
	}
	return &GetProfileHandler{accounts: accounts, levels: levels}
}

// Handle выполняет запрос.
func (h *GetProfileHandler) Handle(ctx context.Context, userID shared.UserID) (result *UserDTO, err error) {
	ctx, span := tracer.Start(ctx, "query.GetProfile")
	defer func() { finishSpan(span, err) }()

	user, err := h.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := NewUserDTO(user.Snapshot(h.levels))
	return &dto, nil
}
