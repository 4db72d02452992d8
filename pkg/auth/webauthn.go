package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// ceremonyTimeoutMS is the timeout handed to authenticators, matching the
// challenge expiry.
const ceremonyTimeoutMS = 300000

// RelyingParty identifies this service to authenticators.
type RelyingParty struct {
	ID   string
	Name string
}

// CredentialDescriptor references a registered credential in ceremony
// options (exclude- and allow-lists).
type CredentialDescriptor struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	Transports []string `json:"transports,omitempty"`
}

// PublicKeyCredentialParam names an accepted signature algorithm.
type PublicKeyCredentialParam struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

// AuthenticatorSelection constrains which authenticators may respond.
type AuthenticatorSelection struct {
	AuthenticatorAttachment string `json:"authenticatorAttachment"`
	ResidentKey             string `json:"residentKey"`
	UserVerification        string `json:"userVerification"`
}

// RegistrationOptions is handed to the platform authenticator to begin a
// registration ceremony.
type RegistrationOptions struct {
	Challenge string `json:"challenge"`
	RP        struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"rp"`
	User struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
	PubKeyCredParams       []PublicKeyCredentialParam `json:"pubKeyCredParams"`
	Timeout                int                        `json:"timeout"`
	Attestation            string                     `json:"attestation"`
	AuthenticatorSelection AuthenticatorSelection     `json:"authenticatorSelection"`
	ExcludeCredentials     []CredentialDescriptor     `json:"excludeCredentials"`
}

// RequestOptions is handed to the platform authenticator to begin an
// authentication ceremony.
type RequestOptions struct {
	Challenge        string                 `json:"challenge"`
	RPID             string                 `json:"rpId"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials"`
	UserVerification string                 `json:"userVerification"`
	Timeout          int                    `json:"timeout"`
}

// AttestationResponse carries the fields this core reads from a completed
// registration ceremony. PublicKey stays opaque.
type AttestationResponse struct {
	Challenge    string
	CredentialID string
	PublicKey    string
	Transports   []string
}

// CeremonyVerifier is the external collaborator performing the cryptographic
// verification of an assertion against a stored credential. This core only
// sequences the ceremony around it.
type CeremonyVerifier interface {
	VerifyAssertion(ctx context.Context, cred *domain.WebAuthnCredential, assertion WebAuthnAssertion) error
}

// acceptAllVerifier is the demo-mode collaborator: the opaque payload is
// passed through untouched and accepted.
type acceptAllVerifier struct{}

func (acceptAllVerifier) VerifyAssertion(context.Context, *domain.WebAuthnCredential, WebAuthnAssertion) error {
	return nil
}

// WebAuthnService runs the registration and authentication ceremonies for
// platform public-key credentials.
type WebAuthnService struct {
	rp         RelyingParty
	users      UserStore
	creds      WebAuthnCredentialStore
	challenges *ChallengeService
	ceremony   CeremonyVerifier
	attempts   int
}

// NewWebAuthnService creates a WebAuthn service. A nil ceremony verifier
// selects the demo-mode pass-through.
func NewWebAuthnService(rp RelyingParty, users UserStore, creds WebAuthnCredentialStore, challenges *ChallengeService, ceremony CeremonyVerifier, maxAttempts int) *WebAuthnService {
	if ceremony == nil {
		ceremony = acceptAllVerifier{}
	}
	if maxAttempts == 0 {
		maxAttempts = DefaultBiometricMaxAttempts
	}
	return &WebAuthnService{
		rp:         rp,
		users:      users,
		creds:      creds,
		challenges: challenges,
		ceremony:   ceremony,
		attempts:   maxAttempts,
	}
}

// BeginRegistration issues a registration challenge and builds the ceremony
// options. Multiple authenticators per account are allowed; already
// registered credentials go on the exclude-list so the platform does not
// re-enroll them.
func (s *WebAuthnService) BeginRegistration(ctx context.Context, userID uuid.UUID) (*RegistrationOptions, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	challenge, err := s.challenges.Issue(ctx, userID, domain.ChallengeRegistration)
	if err != nil {
		return nil, err
	}

	existing, err := s.creds.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	opts := &RegistrationOptions{
		Challenge: challenge.Value,
		PubKeyCredParams: []PublicKeyCredentialParam{
			{Type: "public-key", Alg: -7},   // ES256
			{Type: "public-key", Alg: -257}, // RS256
		},
		Timeout:     ceremonyTimeoutMS,
		Attestation: "none",
		AuthenticatorSelection: AuthenticatorSelection{
			AuthenticatorAttachment: "platform",
			ResidentKey:             "preferred",
			UserVerification:        "preferred",
		},
		ExcludeCredentials: descriptors(existing),
	}
	opts.RP.ID = s.rp.ID
	opts.RP.Name = s.rp.Name
	opts.User.ID = user.ID.String()
	opts.User.Name = user.Email
	if user.Username != nil {
		opts.User.DisplayName = *user.Username
	} else {
		opts.User.DisplayName = user.Email
	}
	return opts, nil
}

// FinishRegistration consumes the registration challenge and stores the new
// credential with a zero sign count.
func (s *WebAuthnService) FinishRegistration(ctx context.Context, userID uuid.UUID, att AttestationResponse) (*domain.WebAuthnCredential, error) {
	if err := s.challenges.Consume(ctx, userID, domain.ChallengeRegistration, att.Challenge); err != nil {
		return nil, err
	}

	exists, err := s.creds.ExistsActive(ctx, userID, att.CredentialID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrDuplicateCredential
	}

	transports := att.Transports
	if len(transports) == 0 {
		transports = []string{"internal"}
	}

	cred := &domain.WebAuthnCredential{
		ID:           uuid.New(),
		UserID:       userID,
		CredentialID: att.CredentialID,
		PublicKey:    att.PublicKey,
		SignCount:    0,
		Transports:   transports,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("storing credential: %w", err)
	}
	return cred, nil
}

// BeginLogin issues an authentication challenge with the allow-list of the
// account's active credentials.
func (s *WebAuthnService) BeginLogin(ctx context.Context, identifier string) (*RequestOptions, error) {
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

	challenge, err := s.challenges.Issue(ctx, user.ID, domain.ChallengeAuthentication)
	if err != nil {
		return nil, err
	}

	return &RequestOptions{
		Challenge:        challenge.Value,
		RPID:             s.rp.ID,
		AllowCredentials: descriptors(creds),
		UserVerification: "preferred",
		Timeout:          ceremonyTimeoutMS,
	}, nil
}

// HasCredentials reports whether the account has any active credential.
func (s *WebAuthnService) HasCredentials(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.creds.HasActive(ctx, userID)
}

// Revoke soft-deactivates a credential.
func (s *WebAuthnService) Revoke(ctx context.Context, userID uuid.UUID, credentialID string) error {
	return s.creds.Deactivate(ctx, userID, credentialID)
}

func (s *WebAuthnService) maxAttempts() int { return s.attempts }

// verify implements the WebAuthn leg of the login flow: consume the
// challenge, check the credential, delegate assertion cryptography to the
// ceremony collaborator, then persist the sign count under the clone check.
func (s *WebAuthnService) verify(ctx context.Context, user *domain.User, cred Credential) error {
	assertion, ok := cred.(WebAuthnAssertion)
	if !ok {
		return domain.ErrInvalidCredentials
	}

	if err := s.challenges.Consume(ctx, user.ID, domain.ChallengeAuthentication, assertion.Challenge); err != nil {
		return err
	}

	stored, err := s.creds.GetActive(ctx, user.ID, assertion.CredentialID)
	if err != nil {
		return err
	}

	if err := s.ceremony.VerifyAssertion(ctx, stored, assertion); err != nil {
		return fmt.Errorf("%w: assertion rejected", domain.ErrInvalidCredentials)
	}

	// Sign count must strictly increase; the store enforces the comparison
	// atomically against the persisted value.
	if err := s.creds.RecordUse(ctx, assertion.CredentialID, assertion.SignCount); err != nil {
		if errors.Is(err, domain.ErrCloneDetected) {
			return domain.ErrCloneDetected
		}
		return err
	}
	return nil
}

func descriptors(creds []*domain.WebAuthnCredential) []CredentialDescriptor {
	out := make([]CredentialDescriptor, 0, len(creds))
	for _, c := range creds {
		out = append(out, CredentialDescriptor{
			Type:       "public-key",
			ID:         c.CredentialID,
			Transports: c.Transports,
		})
	}
	return out
}
