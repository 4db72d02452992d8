package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/secureauthai/secureauth/pkg/domain"
)

const (
	totpPeriod = 30
	totpWindow = 1 // allow one period of clock drift
)

// TOTPConfig contains configuration for the supplementary TOTP factor.
type TOTPConfig struct {
	Issuer        string
	EncryptionKey []byte // 32 bytes for AES-256-GCM
}

// TOTPSetup is returned once at enrollment; the secret is stored encrypted
// and never surfaced again.
type TOTPSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// TOTPService enrolls and verifies time-based one-time codes.
type TOTPService struct {
	config   TOTPConfig
	users    UserStore
	secrets  TOTPSecretStore
	attempts int
}

// NewTOTPService creates a TOTP service.
func NewTOTPService(config TOTPConfig, users UserStore, secrets TOTPSecretStore, maxAttempts int) *TOTPService {
	if maxAttempts == 0 {
		maxAttempts = DefaultPasswordMaxAttempts
	}
	return &TOTPService{config: config, users: users, secrets: secrets, attempts: maxAttempts}
}

// Setup generates a fresh TOTP seed for the account, replacing any previous
// enrollment, and returns the provisioning material.
func (s *TOTPService) Setup(ctx context.Context, userID uuid.UUID) (*TOTPSetup, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: user.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return nil, fmt.Errorf("generating TOTP key: %w", err)
	}

	encrypted, err := s.encryptSecret(key.Secret())
	if err != nil {
		return nil, fmt.Errorf("encrypting TOTP secret: %w", err)
	}

	if err := s.secrets.Upsert(ctx, &domain.TOTPSecret{
		ID:              uuid.New(),
		UserID:          userID,
		SecretEncrypted: encrypted,
		CreatedAt:       time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("storing TOTP secret: %w", err)
	}

	return &TOTPSetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// Enrolled reports whether the account has a TOTP seed.
func (s *TOTPService) Enrolled(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, err := s.secrets.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrTOTPNotEnrolled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Disable removes the account's TOTP enrollment.
func (s *TOTPService) Disable(ctx context.Context, userID uuid.UUID) error {
	return s.secrets.DeleteByUserID(ctx, userID)
}

func (s *TOTPService) maxAttempts() int { return s.attempts }

// verify implements the TOTP leg of the login flow.
func (s *TOTPService) verify(ctx context.Context, user *domain.User, cred Credential) error {
	code, ok := cred.(TOTPCode)
	if !ok {
		return domain.ErrInvalidCredentials
	}

	secret, err := s.secrets.GetByUserID(ctx, user.ID)
	if err != nil {
		return err
	}

	decrypted, err := s.decryptSecret(secret.SecretEncrypted)
	if err != nil {
		return fmt.Errorf("decrypting TOTP secret: %w", err)
	}

	valid, err := totp.ValidateCustom(code.Code, decrypted, time.Now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpWindow,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("validating TOTP code: %w", err)
	}
	if !valid {
		return domain.ErrInvalidTOTPCode
	}

	_ = s.secrets.UpdateLastUsed(ctx, secret.ID)
	return nil
}

// encryptSecret encrypts a seed with AES-256-GCM, nonce prepended.
func (s *TOTPService) encryptSecret(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *TOTPService) decryptSecret(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
