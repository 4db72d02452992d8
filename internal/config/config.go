package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Tokens
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	SessionTTL     time.Duration

	// WebAuthn relying party
	RPID   string
	RPName string

	// Lockout policy
	PasswordMaxAttempts  int
	BiometricMaxAttempts int
	LockoutDuration      time.Duration

	// Ceremony challenges
	ChallengeTTL time.Duration

	// Face matching
	FaceThreshold int

	// TOTP (optional; 64-char hex key enables it)
	TOTPEncryptionKey string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Password policy
	PasswordMinLength int

	// Request limits
	MaxRequestBodySize int64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "secureauth"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Token defaults
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "secureauth"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),

		// Relying party defaults
		RPID:   getEnv("RP_ID", "localhost"),
		RPName: getEnv("RP_NAME", "SecureAuth"),

		// Lockout defaults
		PasswordMaxAttempts:  getEnvInt("PASSWORD_MAX_ATTEMPTS", 5),
		BiometricMaxAttempts: getEnvInt("BIOMETRIC_MAX_ATTEMPTS", 3),
		LockoutDuration:      getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),

		ChallengeTTL: getEnvDuration("CHALLENGE_TTL", 5*time.Minute),

		FaceThreshold: getEnvInt("FACE_THRESHOLD", 10),

		TOTPEncryptionKey: getEnv("TOTP_ENCRYPTION_KEY", ""),

		// Rate limiting defaults
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		PasswordMinLength: getEnvInt("PASSWORD_MIN_LENGTH", 8),

		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.FaceThreshold < 0 || cfg.FaceThreshold > 64 {
		return nil, fmt.Errorf("FACE_THRESHOLD must be in [0, 64]")
	}

	return cfg, nil
}

// HasTOTP returns true if the TOTP factor is configured.
func (c *Config) HasTOTP() bool {
	return c.TOTPEncryptionKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
