package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// Store interfaces accepted by the services in this package. The Postgres
// implementations live in pkg/repository; tests substitute in-memory fakes.

// UserStore persists accounts and their password digests.
type UserStore interface {
	CreateWithDigest(ctx context.Context, user *domain.User, passwordDigest string) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	PasswordDigest(ctx context.Context, userID uuid.UUID) (string, error)
	UpdatePasswordDigest(ctx context.Context, userID uuid.UUID, digest string) error

	// RecordFailure atomically increments the failed-attempt counter,
	// locking the account for lockFor once the counter reaches ceiling,
	// and returns the new counter value. The increment must be a single
	// conditional update so concurrent failures never lose an increment.
	RecordFailure(ctx context.Context, userID uuid.UUID, lockFor time.Duration, ceiling int) (int, error)

	// RecordSuccess resets the counter, clears the lockout, and stamps
	// last_login_at.
	RecordSuccess(ctx context.Context, userID uuid.UUID) error
}

// ChallengeStore persists ceremony challenges.
type ChallengeStore interface {
	Create(ctx context.Context, c *domain.Challenge) error

	// LatestUnused returns the most recently created unused challenge of
	// the given kind, expired or not; domain.ErrChallengeInvalid when none
	// exists.
	LatestUnused(ctx context.Context, userID uuid.UUID, kind domain.ChallengeKind) (*domain.Challenge, error)

	// MarkUsed flips used to true. It must be an atomic test-and-set:
	// domain.ErrChallengeInvalid when the challenge was already consumed.
	MarkUsed(ctx context.Context, id uuid.UUID) error
}

// WebAuthnCredentialStore persists registered public-key credentials.
type WebAuthnCredentialStore interface {
	Create(ctx context.Context, c *domain.WebAuthnCredential) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.WebAuthnCredential, error)
	HasActive(ctx context.Context, userID uuid.UUID) (bool, error)
	GetActive(ctx context.Context, userID uuid.UUID, credentialID string) (*domain.WebAuthnCredential, error)
	ExistsActive(ctx context.Context, userID uuid.UUID, credentialID string) (bool, error)

	// RecordUse persists a new sign count and stamps last_used_at. The
	// update is conditional on the presented count being strictly greater
	// than the stored one; domain.ErrCloneDetected otherwise.
	RecordUse(ctx context.Context, credentialID string, signCount uint32) error

	// Deactivate soft-deactivates a credential; the row is never deleted.
	Deactivate(ctx context.Context, userID uuid.UUID, credentialID string) error
}

// FaceCredentialStore persists enrolled face signatures.
type FaceCredentialStore interface {
	Create(ctx context.Context, c *domain.FaceCredential) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.FaceCredential, error)
	HasActive(ctx context.Context, userID uuid.UUID) (bool, error)
	RecordUse(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, userID uuid.UUID) error
}

// SessionStore persists sessions keyed by token hash.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error
	UpdateLastSeen(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// TOTPSecretStore persists encrypted TOTP seeds.
type TOTPSecretStore interface {
	Upsert(ctx context.Context, s *domain.TOTPSecret) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.TOTPSecret, error)
	UpdateLastUsed(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
