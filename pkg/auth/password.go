package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// PasswordService handles registration and the password login flow.
type PasswordService struct {
	users    UserStore
	policy   *PasswordPolicy
	attempts int
}

// NewPasswordService creates a new password service. maxAttempts is the
// lockout ceiling for the password flow.
func NewPasswordService(users UserStore, policy *PasswordPolicy, maxAttempts int) *PasswordService {
	if maxAttempts == 0 {
		maxAttempts = DefaultPasswordMaxAttempts
	}
	return &PasswordService{users: users, policy: policy, attempts: maxAttempts}
}

// Register creates a new account with password credentials.
func (s *PasswordService) Register(ctx context.Context, email, username, password string) (*domain.User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	if s.policy != nil {
		if err := s.policy.ValidatePassword(password); err != nil {
			return nil, err
		}
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	exists, err = s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUsernameAlreadyExists
	}

	digest, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Username:  &username,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.CreateWithDigest(ctx, user, digest); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces a user's password digest.
func (s *PasswordService) ChangePassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	if s.policy != nil {
		if err := s.policy.ValidatePassword(newPassword); err != nil {
			return err
		}
	}

	digest, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordDigest(ctx, userID, digest)
}

func (s *PasswordService) maxAttempts() int { return s.attempts }

// verify implements the password leg of the login flow.
func (s *PasswordService) verify(ctx context.Context, user *domain.User, cred Credential) error {
	pc, ok := cred.(PasswordCredential)
	if !ok {
		return domain.ErrInvalidCredentials
	}

	digest, err := s.users.PasswordDigest(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidCredentials
		}
		return err
	}

	if !VerifyPassword(pc.Password, digest) {
		return domain.ErrInvalidCredentials
	}
	return nil
}
