package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// WebAuthnCredentialsRepository handles public-key credential persistence.
type WebAuthnCredentialsRepository struct {
	db *sql.DB
}

// NewWebAuthnCredentialsRepository creates a new credentials repository.
func NewWebAuthnCredentialsRepository(db *sql.DB) *WebAuthnCredentialsRepository {
	return &WebAuthnCredentialsRepository{db: db}
}

const webauthnColumns = `id, user_id, credential_id, public_key, sign_count, transports, is_active, last_used_at, created_at`

// Create stores a new credential.
func (r *WebAuthnCredentialsRepository) Create(ctx context.Context, c *domain.WebAuthnCredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webauthn_credentials (id, user_id, credential_id, public_key, sign_count, transports, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.UserID, c.CredentialID, c.PublicKey, c.SignCount, pq.Array(c.Transports), c.IsActive, c.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateCredential
	}
	return err
}

// ListActive returns all active credentials for a user.
func (r *WebAuthnCredentialsRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.WebAuthnCredential, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+webauthnColumns+`
		FROM webauthn_credentials
		WHERE user_id = $1 AND is_active
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*domain.WebAuthnCredential
	for rows.Next() {
		c := &domain.WebAuthnCredential{}
		err := rows.Scan(
			&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &c.SignCount,
			pq.Array(&c.Transports), &c.IsActive, &c.LastUsedAt, &c.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// HasActive reports whether the user has at least one active credential.
func (r *WebAuthnCredentialsRepository) HasActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM webauthn_credentials WHERE user_id = $1 AND is_active)`,
		userID).Scan(&exists)
	return exists, err
}

// GetActive retrieves an active credential by its credential ID.
func (r *WebAuthnCredentialsRepository) GetActive(ctx context.Context, userID uuid.UUID, credentialID string) (*domain.WebAuthnCredential, error) {
	c := &domain.WebAuthnCredential{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+webauthnColumns+`
		FROM webauthn_credentials
		WHERE user_id = $1 AND credential_id = $2 AND is_active
	`, userID, credentialID).Scan(
		&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &c.SignCount,
		pq.Array(&c.Transports), &c.IsActive, &c.LastUsedAt, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ExistsActive checks if an active credential with the given credential ID
// is already registered for the user.
func (r *WebAuthnCredentialsRepository) ExistsActive(ctx context.Context, userID uuid.UUID, credentialID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM webauthn_credentials WHERE user_id = $1 AND credential_id = $2 AND is_active)`,
		userID, credentialID).Scan(&exists)
	return exists, err
}

// RecordUse persists a new sign count. The update only matches when the
// presented count is strictly greater than the stored one, so a replayed or
// cloned authenticator is distinguished from an unknown credential.
func (r *WebAuthnCredentialsRepository) RecordUse(ctx context.Context, credentialID string, signCount uint32) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE webauthn_credentials
		SET sign_count = $2, last_used_at = NOW()
		WHERE credential_id = $1 AND is_active AND sign_count < $2
	`, credentialID, signCount)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	exists, err := r.existsActiveByCredentialID(ctx, credentialID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrCredentialNotFound
	}
	return domain.ErrCloneDetected
}

// Deactivate soft-deactivates a credential.
func (r *WebAuthnCredentialsRepository) Deactivate(ctx context.Context, userID uuid.UUID, credentialID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE webauthn_credentials
		SET is_active = FALSE
		WHERE user_id = $1 AND credential_id = $2 AND is_active
	`, userID, credentialID)
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

func (r *WebAuthnCredentialsRepository) existsActiveByCredentialID(ctx context.Context, credentialID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM webauthn_credentials WHERE credential_id = $1 AND is_active)`,
		credentialID).Scan(&exists)
	return exists, err
}
