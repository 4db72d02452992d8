package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebAuthnCredential is a registered public-key credential. The credential ID
// and public key are opaque to this service; only sign_count and transports
// are interpreted. Revocation soft-deactivates, it never deletes.
type WebAuthnCredential struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	CredentialID string
	PublicKey    string
	SignCount    uint32
	Transports   []string
	IsActive     bool
	LastUsedAt   *time.Time
	CreatedAt    time.Time
}

// FaceCredential is an enrolled face signature. The signature is a lowercase
// hex average-hash; Threshold is the maximum Hamming distance accepted for
// this enrollment and travels with the credential, not the matcher.
type FaceCredential struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Signature    string
	ModelVersion string
	Threshold    int
	IsActive     bool
	LastUsedAt   *time.Time
	CreatedAt    time.Time
}

// TOTPSecret stores an AES-GCM-encrypted TOTP seed for the supplementary
// one-time-code factor.
type TOTPSecret struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	SecretEncrypted string
	CreatedAt       time.Time
	LastUsedAt      *time.Time
}
