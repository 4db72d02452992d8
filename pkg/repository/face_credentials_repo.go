package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// FaceCredentialsRepository handles face signature persistence.
type FaceCredentialsRepository struct {
	db *sql.DB
}

// NewFaceCredentialsRepository creates a new face credentials repository.
func NewFaceCredentialsRepository(db *sql.DB) *FaceCredentialsRepository {
	return &FaceCredentialsRepository{db: db}
}

// Create stores a new face credential.
func (r *FaceCredentialsRepository) Create(ctx context.Context, c *domain.FaceCredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO face_credentials (id, user_id, signature, model_version, threshold, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.UserID, c.Signature, c.ModelVersion, c.Threshold, c.IsActive, c.CreatedAt)
	return err
}

// ListActive returns all active face credentials for a user.
func (r *FaceCredentialsRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.FaceCredential, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, signature, model_version, threshold, is_active, last_used_at, created_at
		FROM face_credentials
		WHERE user_id = $1 AND is_active
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*domain.FaceCredential
	for rows.Next() {
		c := &domain.FaceCredential{}
		err := rows.Scan(
			&c.ID, &c.UserID, &c.Signature, &c.ModelVersion, &c.Threshold,
			&c.IsActive, &c.LastUsedAt, &c.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// HasActive reports whether the user has an active face credential.
func (r *FaceCredentialsRepository) HasActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM face_credentials WHERE user_id = $1 AND is_active)`,
		userID).Scan(&exists)
	return exists, err
}

// RecordUse stamps last_used_at on a matched credential.
func (r *FaceCredentialsRepository) RecordUse(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE face_credentials
		SET last_used_at = NOW()
		WHERE id = $1 AND is_active
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}

// Deactivate soft-deactivates all active face credentials for a user.
func (r *FaceCredentialsRepository) Deactivate(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE face_credentials
		SET is_active = FALSE
		WHERE user_id = $1 AND is_active
	`, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}
