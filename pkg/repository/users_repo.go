package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// UsersRepository handles account persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

const userColumns = `id, email, username, is_active, failed_attempts, locked_until, last_login_at, created_at, updated_at`

// CreateWithDigest creates an account and its password digest atomically.
func (r *UsersRepository) CreateWithDigest(ctx context.Context, user *domain.User, passwordDigest string) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		return r.CreateWithDigestTx(ctx, tx, user, passwordDigest)
	})
}

// CreateWithDigestTx runs the account and digest inserts on the caller's
// Querier so they can compose into a larger transaction.
func (r *UsersRepository) CreateWithDigestTx(ctx context.Context, q Querier, user *domain.User, passwordDigest string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, email, username, is_active, failed_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
	`, user.ID, user.Email, user.Username, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrUserAlreadyExists
	}
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO user_password (user_id, password_digest, password_updated_at)
		VALUES ($1, $2, $3)
	`, user.ID, passwordDigest, user.CreatedAt)
	return err
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByIdentifier retrieves a user by email or username.
func (r *UsersRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 OR username = $1`, identifier)
}

// ExistsByEmail checks if a user exists by email.
func (r *UsersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

// ExistsByUsername checks if a user exists by username.
func (r *UsersRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// PasswordDigest retrieves the stored password digest for a user.
func (r *UsersRepository) PasswordDigest(ctx context.Context, userID uuid.UUID) (string, error) {
	var digest string
	err := r.db.QueryRowContext(ctx,
		`SELECT password_digest FROM user_password WHERE user_id = $1`, userID).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return digest, nil
}

// UpdatePasswordDigest replaces the stored password digest.
func (r *UsersRepository) UpdatePasswordDigest(ctx context.Context, userID uuid.UUID, digest string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE user_password
		SET password_digest = $2, password_updated_at = NOW()
		WHERE user_id = $1
	`, userID, digest)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RecordFailure atomically increments the failed-attempt counter, locking
// the account once the counter reaches ceiling, and returns the new value.
// The single conditional UPDATE serializes concurrent failures per account:
// no two attempts can observe the same prior count.
func (r *UsersRepository) RecordFailure(ctx context.Context, userID uuid.UUID, lockFor time.Duration, ceiling int) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE
		        WHEN failed_attempts + 1 >= $2 THEN NOW() + $3::interval
		        ELSE locked_until
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failed_attempts
	`, userID, ceiling, lockFor.String()).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

// RecordSuccess resets the failure counter, clears the lockout, and stamps
// the last login time.
func (r *UsersRepository) RecordSuccess(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts = 0,
		    locked_until = NULL,
		    last_login_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
	`, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Deactivate soft-deactivates an account.
func (r *UsersRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UsersRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Username, &user.IsActive,
		&user.FailedAttempts, &user.LockedUntil, &user.LastLoginAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
