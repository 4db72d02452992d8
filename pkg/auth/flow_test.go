package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/secureauthai/secureauth/pkg/domain"
)

var errStoreDown = errors.New("store down")

type flowFixture struct {
	users      *memUserStore
	sessions   *memSessionStore
	challenges *memChallengeStore
	webauthn   *memWebAuthnStore
	faces      *memFaceStore

	flow        *Flow
	password    *PasswordService
	webauthnSvc *WebAuthnService
	faceSvc     *FaceService
	user        *domain.User
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	users := newMemUserStore()
	sessions := newMemSessionStore()
	challenges := newMemChallengeStore()
	webauthn := newMemWebAuthnStore()
	faces := newMemFaceStore()

	sessionSvc := NewSessionService(SessionConfig{
		JWTSecret: []byte("test-secret"),
		Issuer:    "secureauth-test",
	}, sessions, users)

	password := NewPasswordService(users, DefaultPasswordPolicy(), 0)
	challengeSvc := NewChallengeService(challenges, 0)
	webauthnSvc := NewWebAuthnService(RelyingParty{ID: "localhost", Name: "SecureAuth"},
		users, webauthn, challengeSvc, nil, 0)
	faceSvc := NewFaceService(FaceConfig{}, users, faces, 0)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	flow := NewFlow(users, sessionSvc, LockoutConfig{}, logger)
	flow.Register(domain.MethodPassword, password)
	flow.Register(domain.MethodWebAuthn, webauthnSvc)
	flow.Register(domain.MethodFace, faceSvc)

	user, err := password.Register(context.Background(), "alice@example.com", "alice", "s3cret-Passw0rd")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	return &flowFixture{
		users:       users,
		sessions:    sessions,
		challenges:  challenges,
		webauthn:    webauthn,
		faces:       faces,
		flow:        flow,
		password:    password,
		webauthnSvc: webauthnSvc,
		faceSvc:     faceSvc,
		user:        user,
	}
}

func TestLoginPassword(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	result, err := f.flow.Login(ctx, "alice@example.com", PasswordCredential{Password: "s3cret-Passw0rd"}, IssueSessionOpts{})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Tokens.SessionToken == "" || result.Tokens.AccessToken == "" {
		t.Fatal("login returned empty tokens")
	}
	if result.User.LastLoginAt == nil {
		t.Error("successful login did not stamp last login")
	}

	// Username works as identifier too.
	if _, err := f.flow.Login(ctx, "alice", PasswordCredential{Password: "s3cret-Passw0rd"}, IssueSessionOpts{}); err != nil {
		t.Errorf("Login() by username error = %v", err)
	}
}

func TestLoginUnknownIdentifier(t *testing.T) {
	f := newFlowFixture(t)

	// Same error as a bad password so account existence cannot be probed.
	_, err := f.flow.Login(context.Background(), "nobody@example.com", PasswordCredential{Password: "whatever"}, IssueSessionOpts{})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newFlowFixture(t)
	f.users.users[f.user.ID].IsActive = false

	_, err := f.flow.Login(context.Background(), "alice@example.com", PasswordCredential{Password: "s3cret-Passw0rd"}, IssueSessionOpts{})
	if !errors.Is(err, domain.ErrAccountInactive) {
		t.Errorf("Login() error = %v, want ErrAccountInactive", err)
	}
}

func TestLoginLockout(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	bad := PasswordCredential{Password: "wrong-password"}

	for i := 1; i <= DefaultPasswordMaxAttempts-1; i++ {
		_, err := f.flow.Login(ctx, "alice@example.com", bad, IssueSessionOpts{})
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: error = %v, want ErrInvalidCredentials", i, err)
		}
	}

	// The fifth failure crosses the ceiling and reports the lock.
	_, err := f.flow.Login(ctx, "alice@example.com", bad, IssueSessionOpts{})
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("ceiling attempt: error = %v, want ErrAccountLocked", err)
	}

	u, _ := f.users.GetByID(ctx, f.user.ID)
	if u.LockedUntil == nil {
		t.Fatal("account not locked after crossing the ceiling")
	}
	until := time.Until(*u.LockedUntil)
	if until < 14*time.Minute || until > 16*time.Minute {
		t.Errorf("lockout expires in %v, want about 15m", until)
	}

	// While locked even the correct password fails fast without counting.
	_, err = f.flow.Login(ctx, "alice@example.com", PasswordCredential{Password: "s3cret-Passw0rd"}, IssueSessionOpts{})
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("locked login: error = %v, want ErrAccountLocked", err)
	}
	u, _ = f.users.GetByID(ctx, f.user.ID)
	if u.FailedAttempts != DefaultPasswordMaxAttempts {
		t.Errorf("locked login incremented counter to %d", u.FailedAttempts)
	}

	// After the lockout window the correct password succeeds and resets.
	f.flow.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	if _, err := f.flow.Login(ctx, "alice@example.com", PasswordCredential{Password: "s3cret-Passw0rd"}, IssueSessionOpts{}); err != nil {
		t.Fatalf("login after lockout expiry: error = %v", err)
	}
	u, _ = f.users.GetByID(ctx, f.user.ID)
	if u.FailedAttempts != 0 || u.LockedUntil != nil {
		t.Errorf("success did not reset lockout state: attempts=%d locked=%v", u.FailedAttempts, u.LockedUntil)
	}
}

func TestLoginSuccessResetsCounter(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.flow.Login(ctx, "alice@example.com", PasswordCredential{Password: "wrong"}, IssueSessionOpts{})
	}
	if _, err := f.flow.Login(ctx, "alice@example.com", PasswordCredential{Password: "s3cret-Passw0rd"}, IssueSessionOpts{}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	u, _ := f.users.GetByID(ctx, f.user.ID)
	if u.FailedAttempts != 0 {
		t.Errorf("failed attempts = %d after success, want 0", u.FailedAttempts)
	}
}

func TestLoginCounterWriteFailure(t *testing.T) {
	f := newFlowFixture(t)
	f.users.failRecordFailure = true

	// When the counter write fails the fault surfaces; the attempt is not
	// silently reported as a credential failure.
	_, err := f.flow.Login(context.Background(), "alice@example.com", PasswordCredential{Password: "wrong"}, IssueSessionOpts{})
	if !errors.Is(err, errStoreDown) {
		t.Errorf("Login() error = %v, want wrapped store failure", err)
	}
	if errors.Is(err, domain.ErrInvalidCredentials) {
		t.Error("store failure reported as ErrInvalidCredentials")
	}
}

func TestLoginUnregisteredMethod(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.flow.Login(context.Background(), "alice@example.com", TOTPCode{Code: "123456"}, IssueSessionOpts{})
	if err == nil {
		t.Fatal("Login() with unregistered method succeeded")
	}
}

func TestLoginWebAuthn(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	// Enroll a credential through the registration ceremony.
	regOpts, err := f.webauthnSvc.BeginRegistration(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("BeginRegistration() error = %v", err)
	}
	if regOpts.Attestation != "none" || regOpts.AuthenticatorSelection.AuthenticatorAttachment != "platform" {
		t.Errorf("unexpected ceremony options: %+v", regOpts)
	}
	if _, err := f.webauthnSvc.FinishRegistration(ctx, f.user.ID, AttestationResponse{
		Challenge:    regOpts.Challenge,
		CredentialID: "cred-1",
		PublicKey:    "pk-1",
	}); err != nil {
		t.Fatalf("FinishRegistration() error = %v", err)
	}

	login := func(signCount uint32) error {
		reqOpts, err := f.webauthnSvc.BeginLogin(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("BeginLogin() error = %v", err)
		}
		_, err = f.flow.Login(ctx, "alice@example.com", WebAuthnAssertion{
			Challenge:    reqOpts.Challenge,
			CredentialID: "cred-1",
			SignCount:    signCount,
		}, IssueSessionOpts{})
		return err
	}

	if err := login(1); err != nil {
		t.Fatalf("first assertion: error = %v", err)
	}

	// A non-increasing sign count means a cloned authenticator.
	err = login(1)
	if !errors.Is(err, domain.ErrCloneDetected) {
		t.Fatalf("replayed sign count: error = %v, want ErrCloneDetected", err)
	}

	// The clone counts toward the biometric ceiling.
	u, _ := f.users.GetByID(ctx, f.user.ID)
	if u.FailedAttempts != 1 {
		t.Errorf("failed attempts = %d after clone, want 1", u.FailedAttempts)
	}

	if err := login(5); err != nil {
		t.Fatalf("recovery assertion: error = %v", err)
	}
}

func TestLoginWebAuthnChallengeErrorsNotCounted(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	regOpts, _ := f.webauthnSvc.BeginRegistration(ctx, f.user.ID)
	f.webauthnSvc.FinishRegistration(ctx, f.user.ID, AttestationResponse{
		Challenge:    regOpts.Challenge,
		CredentialID: "cred-1",
		PublicKey:    "pk-1",
	})

	// No authentication challenge outstanding: a protocol error, not a
	// guessing attempt.
	_, err := f.flow.Login(ctx, "alice@example.com", WebAuthnAssertion{
		Challenge:    "stale",
		CredentialID: "cred-1",
		SignCount:    1,
	}, IssueSessionOpts{})
	if !errors.Is(err, domain.ErrChallengeInvalid) {
		t.Fatalf("Login() error = %v, want ErrChallengeInvalid", err)
	}

	u, _ := f.users.GetByID(ctx, f.user.ID)
	if u.FailedAttempts != 0 {
		t.Errorf("challenge error counted: failed attempts = %d", u.FailedAttempts)
	}
}

func TestLoginWebAuthnBiometricCeiling(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	regOpts, _ := f.webauthnSvc.BeginRegistration(ctx, f.user.ID)
	f.webauthnSvc.FinishRegistration(ctx, f.user.ID, AttestationResponse{
		Challenge:    regOpts.Challenge,
		CredentialID: "cred-1",
		PublicKey:    "pk-1",
	})

	cloneLogin := func() error {
		reqOpts, err := f.webauthnSvc.BeginLogin(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("BeginLogin() error = %v", err)
		}
		_, err = f.flow.Login(ctx, "alice@example.com", WebAuthnAssertion{
			Challenge:    reqOpts.Challenge,
			CredentialID: "cred-1",
			SignCount:    0, // never increases
		}, IssueSessionOpts{})
		return err
	}

	for i := 1; i <= DefaultBiometricMaxAttempts-1; i++ {
		if err := cloneLogin(); !errors.Is(err, domain.ErrCloneDetected) {
			t.Fatalf("attempt %d: error = %v, want ErrCloneDetected", i, err)
		}
	}

	// The biometric ceiling is lower than the password one.
	if err := cloneLogin(); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("ceiling attempt: error = %v, want ErrAccountLocked", err)
	}
}

func TestLoginFace(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	enrolled := "00ff00ff00ff00ff"
	if _, err := f.faceSvc.Register(ctx, f.user.ID, enrolled, "", UseDefaultThreshold); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name      string
		signature string
		wantErr   error
	}{
		{"exact match", "00ff00ff00ff00ff", nil},
		{"within threshold", "00ff00ff00ff00f0", nil},  // distance 4
		{"beyond threshold", "ff00ff00ff00ff00", domain.ErrFaceNotRecognized}, // distance 64
		{"non-comparable length", "00ff", domain.ErrFaceNotRecognized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.flow.Login(ctx, "alice@example.com", FaceSample{Signature: tt.signature}, IssueSessionOpts{})
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Login() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Login() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoginFaceNotEnrolled(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.flow.Login(context.Background(), "alice@example.com", FaceSample{Signature: "0000000000000000"}, IssueSessionOpts{})
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Errorf("Login() error = %v, want ErrCredentialNotFound", err)
	}
}

func TestLoginSessionMetadata(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	result, err := f.flow.Login(ctx, "alice@example.com", PasswordCredential{Password: "s3cret-Passw0rd"}, IssueSessionOpts{
		IP:        "203.0.113.7",
		UserAgent: "test-agent",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	sess, err := f.sessions.GetByTokenHash(ctx, HashToken(result.Tokens.SessionToken))
	if err != nil {
		t.Fatalf("GetByTokenHash() error = %v", err)
	}
	if sess.Metadata == nil {
		t.Fatal("session stored without metadata")
	}
}
