// Package authn provides a multi-factor authentication library with
// password, WebAuthn platform biometric, and face-signature login.
//
// Setup:
//
//  1. Apply the migrations in pkg/repository/migrations (repository.NewDB
//     applies them automatically)
//  2. Create an Authn instance and mount its routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	a, err := authn.New(authn.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	    RPID:      "example.com",
//	    RPName:    "Example",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", a.Router())
//	http.ListenAndServe(":8080", r)
package authn

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	httpserver "github.com/secureauthai/secureauth/internal/http"
	"github.com/secureauthai/secureauth/internal/http/middleware"
	"github.com/secureauthai/secureauth/pkg/auth"
	"github.com/secureauthai/secureauth/pkg/domain"
	"github.com/secureauthai/secureauth/pkg/repository"
)

// Config holds the configuration for the authentication library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret is the secret key for signing JWT tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in JWT tokens (default: "secureauth").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 15 minutes).
	AccessTokenTTL time.Duration

	// SessionTTL is the lifetime of sessions (default: 24 hours).
	SessionTTL time.Duration

	// RPID and RPName identify this service to WebAuthn authenticators
	// (defaults: "localhost", "SecureAuth").
	RPID   string
	RPName string

	// Lockout is the failure-counting policy (defaults: 5 password
	// attempts, 3 biometric attempts, 15 minute lock).
	Lockout auth.LockoutConfig

	// ChallengeTTL is the ceremony challenge lifetime (default: 5 minutes).
	ChallengeTTL time.Duration

	// Face holds face-matching parameters (defaults: ahash-8x8, threshold 10).
	Face auth.FaceConfig

	// Ceremony performs assertion cryptography. Nil selects the demo-mode
	// pass-through verifier.
	Ceremony auth.CeremonyVerifier

	// TOTPEncryptionKey enables the supplementary TOTP factor when set
	// (64-char hex, 32 bytes).
	TOTPEncryptionKey string

	// RateLimitRequests/RateLimitWindow bound unauthenticated endpoints
	// per client IP. Zero requests disables limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// MaxRequestBodySize caps request bodies in bytes (default: 1 MB).
	MaxRequestBodySize int64

	// Logger is the structured logger (default: slog.Default()).
	Logger *slog.Logger
}

// Authn is the main authentication instance.
type Authn struct {
	config Config
	db     *sql.DB

	usersRepo    *repository.UsersRepository
	sessionsRepo *repository.SessionsRepository

	passwordService *auth.PasswordService
	webauthnService *auth.WebAuthnService
	faceService     *auth.FaceService
	totpService     *auth.TOTPService
	sessionService  *auth.SessionService
	flow            *auth.Flow
}

// New creates a new Authn instance with the given configuration.
func New(cfg Config) (*Authn, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	usersRepo := repository.NewUsersRepository(cfg.DB)
	challengesRepo := repository.NewChallengesRepository(cfg.DB)
	webauthnRepo := repository.NewWebAuthnCredentialsRepository(cfg.DB)
	facesRepo := repository.NewFaceCredentialsRepository(cfg.DB)
	sessionsRepo := repository.NewSessionsRepository(cfg.DB)

	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL: cfg.AccessTokenTTL,
		SessionTTL:     cfg.SessionTTL,
		JWTSecret:      []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
	}, sessionsRepo, usersRepo)

	passwordService := auth.NewPasswordService(usersRepo, auth.DefaultPasswordPolicy(), cfg.Lockout.PasswordMaxAttempts)
	challengeService := auth.NewChallengeService(challengesRepo, cfg.ChallengeTTL)
	webauthnService := auth.NewWebAuthnService(auth.RelyingParty{ID: cfg.RPID, Name: cfg.RPName},
		usersRepo, webauthnRepo, challengeService, cfg.Ceremony, cfg.Lockout.BiometricMaxAttempts)
	faceService := auth.NewFaceService(cfg.Face, usersRepo, facesRepo, cfg.Lockout.BiometricMaxAttempts)

	var totpService *auth.TOTPService
	if cfg.TOTPEncryptionKey != "" {
		key, err := hex.DecodeString(cfg.TOTPEncryptionKey)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("TOTPEncryptionKey must be 64-char hex (32 bytes)")
		}
		totpService = auth.NewTOTPService(auth.TOTPConfig{
			Issuer:        cfg.JWTIssuer,
			EncryptionKey: key,
		}, usersRepo, repository.NewTOTPSecretsRepository(cfg.DB), cfg.Lockout.PasswordMaxAttempts)
	}

	flow := auth.NewFlow(usersRepo, sessionService, cfg.Lockout, cfg.Logger)
	flow.Register(domain.MethodPassword, passwordService)
	flow.Register(domain.MethodWebAuthn, webauthnService)
	flow.Register(domain.MethodFace, faceService)
	if totpService != nil {
		flow.Register(domain.MethodTOTP, totpService)
	}

	return &Authn{
		config:          cfg,
		db:              cfg.DB,
		usersRepo:       usersRepo,
		sessionsRepo:    sessionsRepo,
		passwordService: passwordService,
		webauthnService: webauthnService,
		faceService:     faceService,
		totpService:     totpService,
		sessionService:  sessionService,
		flow:            flow,
	}, nil
}

// Router returns an http.Handler with all auth routes registered.
func (a *Authn) Router() http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:            a.config.Logger,
		PasswordService:   a.passwordService,
		WebAuthnService:   a.webauthnService,
		FaceService:       a.faceService,
		TOTPService:       a.totpService,
		SessionService:    a.sessionService,
		Flow:              a.flow,
		Users:             a.usersRepo,
		RateLimitRequests: a.config.RateLimitRequests,
		RateLimitWindow:   a.config.RateLimitWindow,

		MaxRequestBodySize: a.config.MaxRequestBodySize,
	})
}

// SessionService returns the session service for advanced usage.
func (a *Authn) SessionService() *auth.SessionService {
	return a.sessionService
}

// Flow returns the login orchestrator for advanced usage.
func (a *Authn) Flow() *auth.Flow {
	return a.flow
}

// AuthMiddleware returns middleware that validates JWT access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(a.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (a *Authn) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(a.sessionService)
}

// GetUserID extracts the authenticated user ID from a request context.
// Use after AuthMiddleware.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetUserID(ctx)
}

// DeleteExpiredSessions removes sessions expired or revoked more than
// olderThan ago. Call it periodically from a background task.
func (a *Authn) DeleteExpiredSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	return a.sessionsRepo.DeleteExpired(ctx, olderThan)
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return fmt.Errorf("DB is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("JWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "secureauth"
	}
	if cfg.RPID == "" {
		cfg.RPID = "localhost"
	}
	if cfg.RPName == "" {
		cfg.RPName = "SecureAuth"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}
