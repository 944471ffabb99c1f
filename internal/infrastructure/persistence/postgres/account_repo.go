package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/learnhub/internal/domain/account"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	conn *Connection
}

var _ account.Repository = (*AccountRepository)(nil)

const userColumns = `id::text, email, password_hash, display_name, avatar_url,
	experience, is_premium, role, created_at, updated_at`

func scanUser(row pgx.Row) (*account.User, error) {
	var (
		u        account.User
		id, role string
	)
	if err := row.Scan(
		&id, &u.Email, &u.PasswordHash, &u.DisplayName, &u.AvatarURL,
		&u.Experience, &u.IsPremium, &role, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.ID = shared.UserID(id)
	u.Role = account.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// Create inserts a new user. A duplicate email yields ErrEmailTaken.
func (r *AccountRepository) Create(ctx context.Context, u *account.User) error {
	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO users (
			id, email, password_hash, display_name, avatar_url,
			experience, is_premium, role, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID.String(), u.Email, u.PasswordHash, u.DisplayName, u.AvatarURL,
		u.Experience, u.IsPremium, string(u.Role), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEmailTaken
		}
		return storageErr("account", "Create", err)
	}
	return nil
}

// GetByID returns the user or ErrUserNotFound.
func (r *AccountRepository) GetByID(ctx context.Context, id shared.UserID) (*account.User, error) {
	return r.getOne(ctx, "GetByID", `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
}

// GetByEmail returns the user or ErrUserNotFound.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	return r.getOne(ctx, "GetByEmail", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *AccountRepository) getOne(ctx context.Context, op, query string, arg any) (*account.User, error) {
	u, err := scanUser(r.conn.Pool().QueryRow(ctx, query, arg))
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("account", op, err)
	}
	return u, nil
}

// UpdateProfile changes the display name and avatar. Nil fields are kept.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id shared.UserID, upd account.ProfileUpdate) (*account.User, error) {
	u, err := scanUser(r.conn.Pool().QueryRow(ctx, `
		UPDATE users SET
			display_name = COALESCE($2, display_name),
			avatar_url = COALESCE($3, avatar_url),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id.String(), upd.DisplayName, upd.AvatarURL,
	))
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("account", "UpdateProfile", err)
	}
	return u, nil
}

// SetRole sets the role and premium flag.
func (r *AccountRepository) SetRole(ctx context.Context, id shared.UserID, role account.Role, premium bool) error {
	tag, err := r.conn.Pool().Exec(ctx, `
		UPDATE users SET role = $2, is_premium = $3, updated_at = NOW() WHERE id = $1`,
		id.String(), string(role), premium,
	)
	if err != nil {
		return storageErr("account", "SetRole", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}
