package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// TOTPSecretsRepository handles encrypted TOTP seed persistence.
type TOTPSecretsRepository struct {
	db *sql.DB
}

// NewTOTPSecretsRepository creates a new TOTP secrets repository.
func NewTOTPSecretsRepository(db *sql.DB) *TOTPSecretsRepository {
	return &TOTPSecretsRepository{db: db}
}

// Upsert stores or replaces the secret for a user. Re-enrolling overwrites
// the previous seed.
func (r *TOTPSecretsRepository) Upsert(ctx context.Context, s *domain.TOTPSecret) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO totp_secrets (id, user_id, secret_encrypted, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET secret_encrypted = EXCLUDED.secret_encrypted,
		    created_at = EXCLUDED.created_at,
		    last_used_at = NULL
	`, s.ID, s.UserID, s.SecretEncrypted, s.CreatedAt)
	return err
}

// GetByUserID retrieves the secret for a user.
func (r *TOTPSecretsRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.TOTPSecret, error) {
	s := &domain.TOTPSecret{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, secret_encrypted, created_at, last_used_at
		FROM totp_secrets
		WHERE user_id = $1
	`, userID).Scan(&s.ID, &s.UserID, &s.SecretEncrypted, &s.CreatedAt, &s.LastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTOTPNotEnrolled
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateLastUsed stamps last_used_at on a secret.
func (r *TOTPSecretsRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE totp_secrets
		SET last_used_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// DeleteByUserID removes a user's enrollment.
func (r *TOTPSecretsRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM totp_secrets WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTOTPNotEnrolled
	}
	return nil
}
