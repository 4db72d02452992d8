package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Session represents an authentication session. Only a hash of the opaque
// token is stored. Logout stamps RevokedAt; the row stays for the audit trail.
type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	LastSeenAt *time.Time
	Metadata   json.RawMessage
}

// SessionMetadata holds optional session context.
type SessionMetadata struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Method    string `json:"method,omitempty"`
}

// IsValid checks if the session is valid (not expired and not revoked).
func (s *Session) IsValid(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// TokenPair represents the access and session token pair returned on login.
// SessionToken is the opaque 24-hour token; AccessToken is a short-lived JWT
// derived from it for stateless request authentication.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	SessionToken string    `json:"session_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthMethod identifies an authentication method.
type AuthMethod string

const (
	MethodPassword AuthMethod = "password"
	MethodWebAuthn AuthMethod = "webauthn"
	MethodFace     AuthMethod = "face"
	MethodTOTP     AuthMethod = "totp"
)
