package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-desk/internal/connections/database"
	"order-desk/internal/domain"
)

type UserRepositoryInterface interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByVerificationToken(ctx context.Context, token string) (domain.User, error)
	// GetByResetToken only finds tokens that expire after now.
	GetByResetToken(ctx context.Context, token string, now time.Time) (domain.User, error)
	MarkVerified(ctx context.Context, id int64) error
	SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error
	SetPassword(ctx context.Context, id int64, hash string) error
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, u domain.User) (domain.User, error)
	Delete(ctx context.Context, id int64) error
	ListVerifiedManagers(ctx context.Context) ([]domain.User, error)
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, is_verified, verification_token, reset_token, reset_token_expires, created_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsVerified,
		&u.VerificationToken, &u.ResetToken, &u.ResetTokenExpires, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, err
}

func mapWriteErr(err error) error {
	switch {
	case database.IsUniqueViolation(err):
		return domain.ErrDuplicateEmail
	case database.IsForeignKeyViolation(err):
		return domain.ErrUserReferenced
	}
	return err
}

func (r *UserRepository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, role, is_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		u.Name, u.Email, u.PasswordHash, u.Role, u.IsVerified, u.VerificationToken)
	saved, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", mapWriteErr(err))
	}
	return saved, nil
}

func (r *UserRepository) one(ctx context.Context, where string, args ...any) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, args...))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	return r.one(ctx, `id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.one(ctx, `email = $1`, email)
}

func (r *UserRepository) GetByVerificationToken(ctx context.Context, token string) (domain.User, error) {
	return r.one(ctx, `verification_token = $1`, token)
}

func (r *UserRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (domain.User, error) {
	return r.one(ctx, `reset_token = $1 AND reset_token_expires > $2`, token, now)
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) MarkVerified(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET is_verified = TRUE, verification_token = NULL WHERE id = $1`, id)
}

func (r *UserRepository) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	return r.exec(ctx, `UPDATE users SET reset_token = $2, reset_token_expires = $3 WHERE id = $1`, id, token, expires)
}

// SetPassword also clears any pending reset token.
func (r *UserRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	return r.exec(ctx, `
		UPDATE users SET password_hash = $2, reset_token = NULL, reset_token_expires = NULL
		WHERE id = $1`, id, hash)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (r *UserRepository) ListVerifiedManagers(ctx context.Context) ([]domain.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 AND is_verified ORDER BY id`, domain.RoleManager)
}

func (r *UserRepository) Update(ctx context.Context, u domain.User) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET name = $2, email = $3, role = $4
		WHERE id = $1
		RETURNING `+userColumns,
		u.ID, u.Name, u.Email, u.Role)
	saved, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapWriteErr(err)
	}
	return saved, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}
