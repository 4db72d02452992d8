package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
	"github.com/secureauthai/secureauth/pkg/facehash"
)

// UseDefaultThreshold selects the service-configured matching threshold at
// enrollment. Zero is a real threshold (exact match only), so "unset" needs
// its own value.
const UseDefaultThreshold = -1

// FaceOptions tells the client sensor how to produce a candidate signature.
type FaceOptions struct {
	Method    string `json:"method"`
	Threshold int    `json:"threshold"`
}

// FaceConfig holds enrollment parameters.
type FaceConfig struct {
	ModelVersion string
	Threshold    int
	HashSize     int
}

func (c *FaceConfig) applyDefaults() {
	if c.ModelVersion == "" {
		c.ModelVersion = facehash.ModelVersion
	}
	if c.Threshold == 0 {
		c.Threshold = facehash.DefaultThreshold
	}
	if c.HashSize == 0 {
		c.HashSize = facehash.DefaultHashSize
	}
}

// FaceService enrolls and matches face-signature credentials. Signatures are
// produced by the external capture collaborator; this service only stores and
// compares them.
type FaceService struct {
	config   FaceConfig
	users    UserStore
	creds    FaceCredentialStore
	attempts int
}

// NewFaceService creates a face credential service.
func NewFaceService(config FaceConfig, users UserStore, creds FaceCredentialStore, maxAttempts int) *FaceService {
	config.applyDefaults()
	if maxAttempts == 0 {
		maxAttempts = DefaultBiometricMaxAttempts
	}
	return &FaceService{config: config, users: users, creds: creds, attempts: maxAttempts}
}

// RegistrationOptions returns the capture parameters for enrollment.
func (s *FaceService) RegistrationOptions() FaceOptions {
	return FaceOptions{Method: s.config.ModelVersion, Threshold: s.config.Threshold}
}

// AuthenticationOptions returns the capture parameters for a login attempt,
// carrying the enrolled credential's own threshold.
func (s *FaceService) AuthenticationOptions(ctx context.Context, identifier string) (*FaceOptions, error) {
	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	creds, err := s.creds.ListActive(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, domain.ErrCredentialNotFound
	}
	return &FaceOptions{Method: creds[0].ModelVersion, Threshold: creds[0].Threshold}, nil
}

// Register enrolls a face signature for the account. At most one active face
// credential per account: a second enrollment is rejected until the first is
// revoked. Pass UseDefaultThreshold to enroll with the configured threshold;
// 0 enrolls an exact-match-only credential.
func (s *FaceService) Register(ctx context.Context, userID uuid.UUID, signature, modelVersion string, threshold int) (*domain.FaceCredential, error) {
	if modelVersion == "" {
		modelVersion = s.config.ModelVersion
	}
	if threshold == UseDefaultThreshold {
		threshold = s.config.Threshold
	}

	if !facehash.ValidSignature(signature, s.config.HashSize) {
		return nil, domain.ErrInvalidSignature
	}
	bitLen := s.config.HashSize * s.config.HashSize
	if threshold < 0 || threshold > bitLen {
		return nil, fmt.Errorf("%w: threshold %d out of range [0, %d]", domain.ErrInvalidSignature, threshold, bitLen)
	}

	exists, err := s.creds.HasActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrFaceAlreadyRegistered
	}

	cred := &domain.FaceCredential{
		ID:           uuid.New(),
		UserID:       userID,
		Signature:    signature,
		ModelVersion: modelVersion,
		Threshold:    threshold,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("storing face credential: %w", err)
	}
	return cred, nil
}

// HasCredentials reports whether the account has an active face credential.
func (s *FaceService) HasCredentials(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.creds.HasActive(ctx, userID)
}

// Revoke soft-deactivates the account's face credentials, freeing the slot
// for re-enrollment.
func (s *FaceService) Revoke(ctx context.Context, userID uuid.UUID) error {
	return s.creds.Deactivate(ctx, userID)
}

func (s *FaceService) maxAttempts() int { return s.attempts }

// verify implements the face leg of the login flow: the candidate matches if
// any active credential accepts it under that credential's own threshold.
func (s *FaceService) verify(ctx context.Context, user *domain.User, cred Credential) error {
	sample, ok := cred.(FaceSample)
	if !ok {
		return domain.ErrInvalidCredentials
	}

	creds, err := s.creds.ListActive(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		return domain.ErrCredentialNotFound
	}

	for _, c := range creds {
		if facehash.Matches(c.Signature, sample.Signature, c.Threshold) {
			if err := s.creds.RecordUse(ctx, c.ID); err != nil {
				return err
			}
			return nil
		}
	}
	return domain.ErrFaceNotRecognized
}
