package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/secureauthai/secureauth/pkg/domain"
)

func newTOTPFixture(t *testing.T) (*TOTPService, *memTOTPStore, *domain.User) {
	t.Helper()

	users := newMemUserStore()
	secrets := newMemTOTPStore()
	svc := NewTOTPService(TOTPConfig{
		Issuer:        "SecureAuth",
		EncryptionKey: bytes.Repeat([]byte{0x42}, 32),
	}, users, secrets, 0)

	password := NewPasswordService(users, DefaultPasswordPolicy(), 0)
	user, err := password.Register(context.Background(), "judy@example.com", "judy", "long-enough-pw")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return svc, secrets, user
}

func TestTOTPSetupAndVerify(t *testing.T) {
	svc, secrets, user := newTOTPFixture(t)
	ctx := context.Background()

	setup, err := svc.Setup(ctx, user.ID)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if setup.Secret == "" || !strings.Contains(setup.OTPAuthURL, "otpauth://") {
		t.Fatalf("setup = %+v", setup)
	}

	// The stored seed is encrypted, never the raw secret.
	stored, err := secrets.GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByUserID() error = %v", err)
	}
	if strings.Contains(stored.SecretEncrypted, setup.Secret) {
		t.Error("secret stored in the clear")
	}

	code, err := totp.GenerateCodeCustom(setup.Secret, time.Now(), totp.ValidateOpts{
		Period: totpPeriod, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom() error = %v", err)
	}

	if err := svc.verify(ctx, user, TOTPCode{Code: code}); err != nil {
		t.Errorf("verify() error = %v", err)
	}
	if err := svc.verify(ctx, user, TOTPCode{Code: "000000"}); !errors.Is(err, domain.ErrInvalidTOTPCode) {
		t.Errorf("verify(bad code) error = %v, want ErrInvalidTOTPCode", err)
	}
}

func TestTOTPEnrollmentLifecycle(t *testing.T) {
	svc, _, user := newTOTPFixture(t)
	ctx := context.Background()

	enrolled, err := svc.Enrolled(ctx, user.ID)
	if err != nil {
		t.Fatalf("Enrolled() error = %v", err)
	}
	if enrolled {
		t.Fatal("enrolled before setup")
	}

	if err := svc.verify(ctx, user, TOTPCode{Code: "123456"}); !errors.Is(err, domain.ErrTOTPNotEnrolled) {
		t.Errorf("verify() before setup error = %v, want ErrTOTPNotEnrolled", err)
	}

	if _, err := svc.Setup(ctx, user.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	enrolled, _ = svc.Enrolled(ctx, user.ID)
	if !enrolled {
		t.Fatal("not enrolled after setup")
	}

	if err := svc.Disable(ctx, user.ID); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	enrolled, _ = svc.Enrolled(ctx, user.ID)
	if enrolled {
		t.Error("still enrolled after disable")
	}
	if err := svc.Disable(ctx, user.ID); !errors.Is(err, domain.ErrTOTPNotEnrolled) {
		t.Errorf("second Disable() error = %v, want ErrTOTPNotEnrolled", err)
	}
}

func TestTOTPSecretRoundTrip(t *testing.T) {
	svc, _, _ := newTOTPFixture(t)

	encrypted, err := svc.encryptSecret("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("encryptSecret() error = %v", err)
	}
	decrypted, err := svc.decryptSecret(encrypted)
	if err != nil {
		t.Fatalf("decryptSecret() error = %v", err)
	}
	if decrypted != "JBSWY3DPEHPK3PXP" {
		t.Errorf("decrypted = %q", decrypted)
	}

	if _, err := svc.decryptSecret("not-base64!"); err == nil {
		t.Error("decryptSecret accepted garbage")
	}
}
