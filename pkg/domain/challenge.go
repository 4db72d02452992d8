package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeKind distinguishes registration from authentication ceremonies.
type ChallengeKind string

const (
	ChallengeRegistration   ChallengeKind = "registration"
	ChallengeAuthentication ChallengeKind = "authentication"
)

// Challenge is a single-use random value proving freshness of a WebAuthn
// ceremony response. Superseded challenges are never deleted; lookup always
// selects the most recent unused one of the requested kind.
type Challenge struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Value     string
	Kind      ChallengeKind
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// IsExpired reports whether the challenge has passed its expiry.
func (c *Challenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
