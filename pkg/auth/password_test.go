package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/secureauthai/secureauth/pkg/domain"
)

func TestPasswordRegister(t *testing.T) {
	users := newMemUserStore()
	svc := NewPasswordService(users, DefaultPasswordPolicy(), 0)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Carol@Example.com", "carol", "long-enough-pw")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "carol@example.com" {
		t.Errorf("email = %q, want normalized lowercase", user.Email)
	}
	if !user.IsActive {
		t.Error("new account is not active")
	}

	digest, err := users.PasswordDigest(ctx, user.ID)
	if err != nil {
		t.Fatalf("PasswordDigest() error = %v", err)
	}
	if !VerifyPassword("long-enough-pw", digest) {
		t.Error("stored digest does not verify the password")
	}
}

func TestPasswordRegisterValidation(t *testing.T) {
	users := newMemUserStore()
	svc := NewPasswordService(users, DefaultPasswordPolicy(), 0)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dave@example.com", "dave", "long-enough-pw"); err != nil {
		t.Fatalf("seed Register() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		username string
		password string
		wantErr  error
	}{
		{"invalid email", "not-an-email", "eve", "long-enough-pw", domain.ErrInvalidEmail},
		{"short username", "eve@example.com", "ev", "long-enough-pw", domain.ErrInvalidUsername},
		{"username bad chars", "eve@example.com", "eve!", "long-enough-pw", domain.ErrInvalidUsername},
		{"weak password", "eve@example.com", "eve", "short", domain.ErrWeakPassword},
		{"duplicate email", "dave@example.com", "dave2", "long-enough-pw", domain.ErrUserAlreadyExists},
		{"duplicate username", "dave2@example.com", "dave", "long-enough-pw", domain.ErrUsernameAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChangePassword(t *testing.T) {
	users := newMemUserStore()
	svc := NewPasswordService(users, DefaultPasswordPolicy(), 0)
	ctx := context.Background()

	user, err := svc.Register(ctx, "frank@example.com", "frank", "original-pw-123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "short"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Errorf("ChangePassword(weak) error = %v, want ErrWeakPassword", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "replacement-pw-456"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	digest, _ := users.PasswordDigest(ctx, user.ID)
	if VerifyPassword("original-pw-123", digest) {
		t.Error("old password still verifies")
	}
	if !VerifyPassword("replacement-pw-456", digest) {
		t.Error("new password does not verify")
	}
}
