package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/secureauthai/secureauth/pkg/domain"
)

// Lockout policy defaults. The password ceiling and the lighter biometric
// ceiling are deliberately separate, configurable per method.
const (
	DefaultPasswordMaxAttempts  = 5
	DefaultBiometricMaxAttempts = 3
	DefaultLockoutDuration      = 15 * time.Minute
)

// Credential is the tagged union of login credentials. Each variant carries
// exactly what its verification step reads; the orchestrator dispatches on
// the variant and owns the shared account/lockout/session substrate.
type Credential interface {
	method() domain.AuthMethod
}

// PasswordCredential is a plain password presented for the password flow.
type PasswordCredential struct {
	Password string
}

func (PasswordCredential) method() domain.AuthMethod { return domain.MethodPassword }

// WebAuthnAssertion carries the fields this core reads from an authenticator
// assertion; Raw passes through untouched to the external ceremony verifier.
type WebAuthnAssertion struct {
	Challenge    string
	CredentialID string
	SignCount    uint32
	Raw          []byte
}

func (WebAuthnAssertion) method() domain.AuthMethod { return domain.MethodWebAuthn }

// FaceSample is a candidate face signature captured by the client sensor.
type FaceSample struct {
	Signature string
}

func (FaceSample) method() domain.AuthMethod { return domain.MethodFace }

// TOTPCode is a one-time code for the supplementary TOTP factor.
type TOTPCode struct {
	Code string
}

func (TOTPCode) method() domain.AuthMethod { return domain.MethodTOTP }

// verifier is implemented by each method service. verify reports credential
// failures with the domain sentinels; any other error is treated as a
// backend fault and recorded nowhere.
type verifier interface {
	verify(ctx context.Context, user *domain.User, cred Credential) error
	maxAttempts() int
}

// LockoutConfig holds the failure-counting policy shared by all flows.
type LockoutConfig struct {
	PasswordMaxAttempts  int
	BiometricMaxAttempts int
	LockoutDuration      time.Duration
}

func (c *LockoutConfig) applyDefaults() {
	if c.PasswordMaxAttempts == 0 {
		c.PasswordMaxAttempts = DefaultPasswordMaxAttempts
	}
	if c.BiometricMaxAttempts == 0 {
		c.BiometricMaxAttempts = DefaultBiometricMaxAttempts
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = DefaultLockoutDuration
	}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User   *domain.User
	Tokens *domain.TokenPair
}

// Flow composes the per-method verifiers with the account, lockout, and
// session substrate. It is stateless: every call operates purely on the
// request and persisted state.
type Flow struct {
	users     UserStore
	sessions  *SessionService
	verifiers map[domain.AuthMethod]verifier
	lockout   LockoutConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewFlow creates the authentication orchestrator.
func NewFlow(users UserStore, sessions *SessionService, lockout LockoutConfig, logger *slog.Logger) *Flow {
	lockout.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		users:     users,
		sessions:  sessions,
		verifiers: make(map[domain.AuthMethod]verifier),
		lockout:   lockout,
		logger:    logger,
		now:       time.Now,
	}
}

// Register adds a method verifier to the flow.
func (f *Flow) Register(method domain.AuthMethod, v verifier) {
	f.verifiers[method] = v
}

// Lockout returns the flow's lockout policy.
func (f *Flow) Lockout() LockoutConfig {
	return f.lockout
}

// Login runs one authentication attempt for the given identifier (email or
// username) with the presented credential.
//
// Sequencing: locked accounts fail fast with domain.ErrAccountLocked and the
// attempt is not counted. A credential failure records exactly one failure
// against the account; crossing the method's ceiling converts the error to
// domain.ErrAccountLocked. Challenge protocol errors and backend faults never
// touch the counter. Success resets the counter, stamps last_login, and
// issues a session.
func (f *Flow) Login(ctx context.Context, identifier string, cred Credential, opts IssueSessionOpts) (*LoginResult, error) {
	v, ok := f.verifiers[cred.method()]
	if !ok {
		return nil, fmt.Errorf("no verifier registered for method %q", cred.method())
	}

	user, err := f.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Same error as a bad credential so callers cannot probe
			// for account existence.
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, domain.ErrAccountInactive
	}
	if user.IsLocked(f.now()) {
		return nil, domain.ErrAccountLocked
	}

	if verr := v.verify(ctx, user, cred); verr != nil {
		if !isCredentialFailure(verr) {
			return nil, verr
		}
		attempts, rerr := f.users.RecordFailure(ctx, user.ID, f.lockout.LockoutDuration, v.maxAttempts())
		if rerr != nil {
			// The counter write failed: surface the fault, do not
			// pretend the attempt was recorded.
			return nil, fmt.Errorf("recording failed attempt: %w", rerr)
		}
		f.logger.Warn("authentication failed",
			"user_id", user.ID,
			"method", cred.method(),
			"failed_attempts", attempts,
		)
		if attempts >= v.maxAttempts() {
			return nil, domain.ErrAccountLocked
		}
		return nil, verr
	}

	if err := f.users.RecordSuccess(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("recording successful attempt: %w", err)
	}

	opts.Method = cred.method()
	tokens, err := f.sessions.Issue(ctx, user.ID, opts)
	if err != nil {
		return nil, err
	}

	f.logger.Info("authentication succeeded", "user_id", user.ID, "method", cred.method())

	// Reflect the reset in the returned snapshot.
	user.RecordSuccess(f.now())

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// isCredentialFailure reports whether err is a verification mismatch that
// counts against the lockout ceiling. Challenge lifecycle errors are protocol
// failures, not evidence of a guessing attempt.
func isCredentialFailure(err error) bool {
	return errors.Is(err, domain.ErrInvalidCredentials) ||
		errors.Is(err, domain.ErrFaceNotRecognized) ||
		errors.Is(err, domain.ErrCloneDetected) ||
		errors.Is(err, domain.ErrInvalidTOTPCode)
}
