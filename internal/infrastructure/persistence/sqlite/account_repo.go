package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alem-hub/learnhub/internal/domain/account"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// AccountRepository implements account.Repository on SQLite.
type AccountRepository struct {
	db *sql.DB
}

var _ account.Repository = (*AccountRepository)(nil)

const userColumns = `id, email, password_hash, display_name, avatar_url,
	experience, is_premium, role, created_at, updated_at`

func scanUser(row rowScanner) (*account.User, error) {
	var (
		u                  account.User
		id, role           string
		premium            int
		createdAt, updated int64
	)
	if err := row.Scan(
		&id, &u.Email, &u.PasswordHash, &u.DisplayName, &u.AvatarURL,
		&u.Experience, &premium, &role, &createdAt, &updated,
	); err != nil {
		return nil, err
	}
	u.ID = shared.UserID(id)
	u.IsPremium = premium != 0
	u.Role = account.Role(role)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

// Create inserts a new user. A duplicate email yields ErrEmailTaken.
func (r *AccountRepository) Create(ctx context.Context, u *account.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), u.Email, u.PasswordHash, u.DisplayName, u.AvatarURL,
		u.Experience, boolToInt(u.IsPremium), string(u.Role),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrEmailTaken
		}
		return storageErr("account", "Create", err)
	}
	return nil
}

// GetByID returns the user or ErrUserNotFound.
func (r *AccountRepository) GetByID(ctx context.Context, id shared.UserID) (*account.User, error) {
	return r.getOne(ctx, "GetByID", `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
}

// GetByEmail returns the user or ErrUserNotFound.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	return r.getOne(ctx, "GetByEmail", `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *AccountRepository) getOne(ctx context.Context, op, query string, arg any) (*account.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("account", op, err)
	}
	return u, nil
}

// UpdateProfile changes the display name and avatar. Nil fields are kept.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id shared.UserID, upd account.ProfileUpdate) (*account.User, error) {
	var updated *account.User

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String()))
		if errors.Is(err, sql.ErrNoRows) {
			return shared.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		if upd.DisplayName != nil {
			u.DisplayName = *upd.DisplayName
		}
		if upd.AvatarURL != nil {
			u.AvatarURL = *upd.AvatarURL
		}
		u.UpdatedAt = time.Now().UTC()

		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET display_name = ?, avatar_url = ?, updated_at = ?
			WHERE id = ?`,
			u.DisplayName, u.AvatarURL, toMillis(u.UpdatedAt), id.String(),
		); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, storageErr("account", "UpdateProfile", err)
	}
	return updated, nil
}

// SetRole sets the role and premium flag.
func (r *AccountRepository) SetRole(ctx context.Context, id shared.UserID, role account.Role, premium bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = ?, is_premium = ?, updated_at = ? WHERE id = ?`,
		string(role), boolToInt(premium), toMillis(time.Now()), id.String(),
	)
	if err != nil {
		return storageErr("account", "SetRole", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}
