package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// In-memory store fakes mirroring the Postgres repositories' atomic
// semantics (conditional updates under one mutex).

type memUserStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*domain.User
	digests map[uuid.UUID]string

	failRecordFailure bool
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:   make(map[uuid.UUID]*domain.User),
		digests: make(map[uuid.UUID]string),
	}
}

func (s *memUserStore) CreateWithDigest(_ context.Context, user *domain.User, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	s.digests[user.ID] = digest
	return nil
}

func (s *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memUserStore) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == identifier || (u.Username != nil && *u.Username == identifier) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUserStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username != nil && *u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUserStore) PasswordDigest(_ context.Context, userID uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.digests[userID]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return d, nil
}

func (s *memUserStore) UpdatePasswordDigest(_ context.Context, userID uuid.UUID, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.digests[userID]; !ok {
		return domain.ErrUserNotFound
	}
	s.digests[userID] = digest
	return nil
}

func (s *memUserStore) RecordFailure(_ context.Context, userID uuid.UUID, lockFor time.Duration, ceiling int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecordFailure {
		return 0, errStoreDown
	}
	u, ok := s.users[userID]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	u.RecordFailure(time.Now(), ceiling, lockFor)
	return u.FailedAttempts, nil
}

func (s *memUserStore) RecordSuccess(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.RecordSuccess(time.Now())
	return nil
}

type memChallengeStore struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]*domain.Challenge
}

func newMemChallengeStore() *memChallengeStore {
	return &memChallengeStore{challenges: make(map[uuid.UUID]*domain.Challenge)}
}

func (s *memChallengeStore) Create(_ context.Context, c *domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.challenges[c.ID] = &cp
	return nil
}

func (s *memChallengeStore) LatestUnused(_ context.Context, userID uuid.UUID, kind domain.ChallengeKind) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []*domain.Challenge
	for _, c := range s.challenges {
		if c.UserID == userID && c.Kind == kind && !c.Used {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, domain.ErrChallengeInvalid
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	cp := *candidates[0]
	return &cp, nil
}

func (s *memChallengeStore) MarkUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok || c.Used {
		return domain.ErrChallengeInvalid
	}
	c.Used = true
	return nil
}

type memWebAuthnStore struct {
	mu    sync.Mutex
	creds map[uuid.UUID]*domain.WebAuthnCredential
}

func newMemWebAuthnStore() *memWebAuthnStore {
	return &memWebAuthnStore{creds: make(map[uuid.UUID]*domain.WebAuthnCredential)}
}

func (s *memWebAuthnStore) Create(_ context.Context, c *domain.WebAuthnCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.creds {
		if existing.UserID == c.UserID && existing.CredentialID == c.CredentialID && existing.IsActive {
			return domain.ErrDuplicateCredential
		}
	}
	cp := *c
	s.creds[c.ID] = &cp
	return nil
}

func (s *memWebAuthnStore) ListActive(_ context.Context, userID uuid.UUID) ([]*domain.WebAuthnCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.WebAuthnCredential
	for _, c := range s.creds {
		if c.UserID == userID && c.IsActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memWebAuthnStore) HasActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	creds, err := s.ListActive(ctx, userID)
	return len(creds) > 0, err
}

func (s *memWebAuthnStore) GetActive(_ context.Context, userID uuid.UUID, credentialID string) (*domain.WebAuthnCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.creds {
		if c.UserID == userID && c.CredentialID == credentialID && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrCredentialNotFound
}

func (s *memWebAuthnStore) ExistsActive(ctx context.Context, userID uuid.UUID, credentialID string) (bool, error) {
	_, err := s.GetActive(ctx, userID, credentialID)
	if err == nil {
		return true, nil
	}
	if err == domain.ErrCredentialNotFound {
		return false, nil
	}
	return false, err
}

func (s *memWebAuthnStore) RecordUse(_ context.Context, credentialID string, signCount uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.creds {
		if c.CredentialID == credentialID && c.IsActive {
			if signCount <= c.SignCount {
				return domain.ErrCloneDetected
			}
			c.SignCount = signCount
			now := time.Now()
			c.LastUsedAt = &now
			return nil
		}
	}
	return domain.ErrCredentialNotFound
}

func (s *memWebAuthnStore) Deactivate(_ context.Context, userID uuid.UUID, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.creds {
		if c.UserID == userID && c.CredentialID == credentialID && c.IsActive {
			c.IsActive = false
			return nil
		}
	}
	return domain.ErrCredentialNotFound
}

type memFaceStore struct {
	mu    sync.Mutex
	creds map[uuid.UUID]*domain.FaceCredential
}

func newMemFaceStore() *memFaceStore {
	return &memFaceStore{creds: make(map[uuid.UUID]*domain.FaceCredential)}
}

func (s *memFaceStore) Create(_ context.Context, c *domain.FaceCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.creds[c.ID] = &cp
	return nil
}

func (s *memFaceStore) ListActive(_ context.Context, userID uuid.UUID) ([]*domain.FaceCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.FaceCredential
	for _, c := range s.creds {
		if c.UserID == userID && c.IsActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memFaceStore) HasActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	creds, err := s.ListActive(ctx, userID)
	return len(creds) > 0, err
}

func (s *memFaceStore) RecordUse(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok || !c.IsActive {
		return domain.ErrCredentialNotFound
	}
	now := time.Now()
	c.LastUsedAt = &now
	return nil
}

func (s *memFaceStore) Deactivate(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, c := range s.creds {
		if c.UserID == userID && c.IsActive {
			c.IsActive = false
			found = true
		}
	}
	if !found {
		return domain.ErrCredentialNotFound
	}
	return nil
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *memSessionStore) Create(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.TokenHash] = &cp
	return nil
}

func (s *memSessionStore) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *memSessionStore) RevokeByTokenHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if sess.RevokedAt == nil {
		now := time.Now()
		sess.RevokedAt = &now
	}
	return nil
}

func (s *memSessionStore) RevokeAllByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.RevokedAt == nil {
			sess.RevokedAt = &now
		}
	}
	return nil
}

func (s *memSessionStore) UpdateLastSeen(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			now := time.Now()
			sess.LastSeenAt = &now
			return nil
		}
	}
	return nil
}

func (s *memSessionStore) DeleteExpired(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var n int64
	for hash, sess := range s.sessions {
		if sess.ExpiresAt.Before(cutoff) || (sess.RevokedAt != nil && sess.RevokedAt.Before(cutoff)) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

type memTOTPStore struct {
	mu      sync.Mutex
	secrets map[uuid.UUID]*domain.TOTPSecret
}

func newMemTOTPStore() *memTOTPStore {
	return &memTOTPStore{secrets: make(map[uuid.UUID]*domain.TOTPSecret)}
}

func (s *memTOTPStore) Upsert(_ context.Context, sec *domain.TOTPSecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sec
	s.secrets[sec.UserID] = &cp
	return nil
}

func (s *memTOTPStore) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.TOTPSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[userID]
	if !ok {
		return nil, domain.ErrTOTPNotEnrolled
	}
	cp := *sec
	return &cp, nil
}

func (s *memTOTPStore) UpdateLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sec := range s.secrets {
		if sec.ID == id {
			now := time.Now()
			sec.LastUsedAt = &now
			return nil
		}
	}
	return nil
}

func (s *memTOTPStore) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.secrets[userID]; !ok {
		return domain.ErrTOTPNotEnrolled
	}
	delete(s.secrets, userID)
	return nil
}
