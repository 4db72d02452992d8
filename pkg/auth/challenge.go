package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// DefaultChallengeTTL matches the ceremony timeout handed to authenticators.
const DefaultChallengeTTL = 5 * time.Minute

// ChallengeService issues and consumes single-use ceremony challenges.
type ChallengeService struct {
	store ChallengeStore
	ttl   time.Duration
	now   func() time.Time
}

// NewChallengeService creates a challenge service. A zero ttl falls back to
// DefaultChallengeTTL.
func NewChallengeService(store ChallengeStore, ttl time.Duration) *ChallengeService {
	if ttl == 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeService{store: store, ttl: ttl, now: time.Now}
}

// Issue generates and persists a fresh challenge for the account. Previously
// issued unused challenges are not touched: they remain consumable until they
// expire, but lookup prefers the newest one (last-issued-wins).
func (s *ChallengeService) Issue(ctx context.Context, userID uuid.UUID, kind domain.ChallengeKind) (*domain.Challenge, error) {
	value, err := GenerateChallenge()
	if err != nil {
		return nil, err
	}

	now := s.now()
	challenge := &domain.Challenge{
		ID:        uuid.New(),
		UserID:    userID,
		Value:     value,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, challenge); err != nil {
		return nil, fmt.Errorf("storing challenge: %w", err)
	}
	return challenge, nil
}

// Consume validates the presented value against the most recent unused
// challenge of the given kind and marks it used.
//
// Failure modes: no unused challenge or a value mismatch yield
// domain.ErrChallengeInvalid; an expired challenge yields
// domain.ErrChallengeExpired even when the value matches. The mark-used step
// is an atomic test-and-set, so of two concurrent consumers exactly one
// succeeds; the loser sees domain.ErrChallengeInvalid.
func (s *ChallengeService) Consume(ctx context.Context, userID uuid.UUID, kind domain.ChallengeKind, presented string) error {
	challenge, err := s.store.LatestUnused(ctx, userID, kind)
	if err != nil {
		return err
	}

	if challenge.IsExpired(s.now()) {
		return domain.ErrChallengeExpired
	}
	if subtle.ConstantTimeCompare([]byte(challenge.Value), []byte(presented)) != 1 {
		return domain.ErrChallengeInvalid
	}

	return s.store.MarkUsed(ctx, challenge.ID)
}
