package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// ChallengesRepository handles ceremony challenge persistence.
type ChallengesRepository struct {
	db *sql.DB
}

// NewChallengesRepository creates a new challenges repository.
func NewChallengesRepository(db *sql.DB) *ChallengesRepository {
	return &ChallengesRepository{db: db}
}

// Create stores a new challenge.
func (r *ChallengesRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO challenges (id, user_id, value, kind, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`, c.ID, c.UserID, c.Value, c.Kind, c.CreatedAt, c.ExpiresAt)
	return err
}

// LatestUnused returns the most recently created unused challenge of the
// given kind, expired or not.
func (r *ChallengesRepository) LatestUnused(ctx context.Context, userID uuid.UUID, kind domain.ChallengeKind) (*domain.Challenge, error) {
	c := &domain.Challenge{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, value, kind, created_at, expires_at, used
		FROM challenges
		WHERE user_id = $1 AND kind = $2 AND NOT used
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, kind).Scan(
		&c.ID, &c.UserID, &c.Value, &c.Kind, &c.CreatedAt, &c.ExpiresAt, &c.Used,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrChallengeInvalid
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// MarkUsed consumes a challenge. The conditional update makes consumption a
// test-and-set: a challenge already consumed by a concurrent request reports
// domain.ErrChallengeInvalid here.
func (r *ChallengesRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE challenges
		SET used = TRUE
		WHERE id = $1 AND NOT used
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrChallengeInvalid
	}
	return nil
}

// DeleteExpired removes expired challenges and returns the number deleted.
func (r *ChallengesRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
