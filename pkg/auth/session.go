package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
)

const (
	sessionTokenLen = 32

	// Default token lifetimes
	DefaultAccessTokenTTL = 15 * time.Minute
	DefaultSessionTTL     = 24 * time.Hour
)

// SessionConfig holds session configuration.
type SessionConfig struct {
	AccessTokenTTL time.Duration
	SessionTTL     time.Duration
	JWTSecret      []byte
	Issuer         string
}

// SessionService issues, validates, and revokes sessions. A session is an
// opaque unguessable token, stored hashed with a 24-hour expiry; a short
// lived JWT access token is minted alongside it for stateless request
// authentication.
type SessionService struct {
	config   SessionConfig
	sessions SessionStore
	users    UserStore
	now      func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, sessions SessionStore, users UserStore) *SessionService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	return &SessionService{
		config:   config,
		sessions: sessions,
		users:    users,
		now:      time.Now,
	}
}

// AccessTokenTTL returns the access token TTL.
func (s *SessionService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// SessionTTL returns the session TTL.
func (s *SessionService) SessionTTL() time.Duration {
	return s.config.SessionTTL
}

// IssueSessionOpts holds options for session issuance.
type IssueSessionOpts struct {
	IP        string
	UserAgent string
	Method    domain.AuthMethod
}

// AccessTokenClaims represents the claims in an access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Method   string `json:"amr,omitempty"`
}

// Issue creates a new session and returns the token pair. This is the single
// entry point for session creation - all authentication methods use it.
func (s *SessionService) Issue(ctx context.Context, userID uuid.UUID, opts IssueSessionOpts) (*domain.TokenPair, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	sessionToken, err := GenerateToken(sessionTokenLen)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	session := &domain.Session{
		ID:        sessionID,
		UserID:    userID,
		TokenHash: HashToken(sessionToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.SessionTTL),
	}

	if opts.IP != "" || opts.UserAgent != "" || opts.Method != "" {
		metadata, _ := json.Marshal(domain.SessionMetadata{
			IP:        opts.IP,
			UserAgent: opts.UserAgent,
			Method:    string(opts.Method),
		})
		session.Metadata = metadata
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	accessToken, expiresAt, err := s.mintAccessToken(user, sessionID, opts.Method, now)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		SessionToken: sessionToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.AccessTokenTTL.Seconds()),
		ExpiresAt:    expiresAt,
	}, nil
}

// Validate resolves a session token to its owning account. Invalid, expired,
// or revoked sessions yield a typed error, never a panic.
func (s *SessionService) Validate(ctx context.Context, sessionToken string) (*domain.User, error) {
	session, err := s.lookup(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	_ = s.sessions.UpdateLastSeen(ctx, session.ID)

	return s.users.GetByID(ctx, session.UserID)
}

// Refresh mints a new access token for a still-valid session.
func (s *SessionService) Refresh(ctx context.Context, sessionToken string) (*domain.TokenPair, error) {
	session, err := s.lookup(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	_ = s.sessions.UpdateLastSeen(ctx, session.ID)

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := s.mintAccessToken(user, session.ID, "", s.now())
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		SessionToken: sessionToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.AccessTokenTTL.Seconds()),
		ExpiresAt:    expiresAt,
	}, nil
}

// Revoke revokes a session by token. Revoking an already revoked session is
// a no-op; an unknown token reports domain.ErrSessionNotFound.
func (s *SessionService) Revoke(ctx context.Context, sessionToken string) error {
	return s.sessions.RevokeByTokenHash(ctx, HashToken(sessionToken))
}

// RevokeAll revokes all sessions for a user.
func (s *SessionService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAllByUserID(ctx, userID)
}

// ValidateAccessToken validates an access token and returns the claims.
func (s *SessionService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *SessionService) lookup(ctx context.Context, sessionToken string) (*domain.Session, error) {
	session, err := s.sessions.GetByTokenHash(ctx, HashToken(sessionToken))
	if err != nil {
		return nil, err
	}
	if !session.IsValid(s.now()) {
		if session.RevokedAt != nil {
			return nil, domain.ErrSessionRevoked
		}
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func (s *SessionService) mintAccessToken(user *domain.User, sessionID uuid.UUID, method domain.AuthMethod, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.config.AccessTokenTTL)
	username := ""
	if user.Username != nil {
		username = *user.Username
	}
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    s.config.Issuer,
			ID:        sessionID.String(),
		},
		Email:    user.Email,
		Username: username,
		Method:   string(method),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.config.JWTSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}
