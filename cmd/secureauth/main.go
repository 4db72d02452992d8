package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/secureauthai/secureauth/internal/config"
	httpserver "github.com/secureauthai/secureauth/internal/http"
	"github.com/secureauthai/secureauth/pkg/auth"
	"github.com/secureauthai/secureauth/pkg/domain"
	"github.com/secureauthai/secureauth/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(db)
	challengesRepo := repository.NewChallengesRepository(db)
	webauthnRepo := repository.NewWebAuthnCredentialsRepository(db)
	facesRepo := repository.NewFaceCredentialsRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)

	// Initialize services
	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL: cfg.AccessTokenTTL,
		SessionTTL:     cfg.SessionTTL,
		JWTSecret:      []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
	}, sessionsRepo, usersRepo)

	passwordPolicy := &auth.PasswordPolicy{MinLength: cfg.PasswordMinLength}
	passwordService := auth.NewPasswordService(usersRepo, passwordPolicy, cfg.PasswordMaxAttempts)

	challengeService := auth.NewChallengeService(challengesRepo, cfg.ChallengeTTL)
	webauthnService := auth.NewWebAuthnService(
		auth.RelyingParty{ID: cfg.RPID, Name: cfg.RPName},
		usersRepo, webauthnRepo, challengeService, nil, cfg.BiometricMaxAttempts,
	)
	faceService := auth.NewFaceService(auth.FaceConfig{
		Threshold: cfg.FaceThreshold,
	}, usersRepo, facesRepo, cfg.BiometricMaxAttempts)

	// Initialize TOTP service if configured
	var totpService *auth.TOTPService
	if cfg.HasTOTP() {
		encryptionKey, err := hex.DecodeString(cfg.TOTPEncryptionKey)
		if err != nil || len(encryptionKey) != 32 {
			logger.Error("TOTP_ENCRYPTION_KEY must be 64-char hex (32 bytes)")
			os.Exit(1)
		}
		totpService = auth.NewTOTPService(auth.TOTPConfig{
			Issuer:        cfg.JWTIssuer,
			EncryptionKey: encryptionKey,
		}, usersRepo, repository.NewTOTPSecretsRepository(db), cfg.PasswordMaxAttempts)
		logger.Info("TOTP factor enabled")
	}

	// Wire the login orchestrator
	flow := auth.NewFlow(usersRepo, sessionService, auth.LockoutConfig{
		PasswordMaxAttempts:  cfg.PasswordMaxAttempts,
		BiometricMaxAttempts: cfg.BiometricMaxAttempts,
		LockoutDuration:      cfg.LockoutDuration,
	}, logger)
	flow.Register(domain.MethodPassword, passwordService)
	flow.Register(domain.MethodWebAuthn, webauthnService)
	flow.Register(domain.MethodFace, faceService)
	if totpService != nil {
		flow.Register(domain.MethodTOTP, totpService)
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:            logger,
		PasswordService:   passwordService,
		WebAuthnService:   webauthnService,
		FaceService:       faceService,
		TOTPService:       totpService,
		SessionService:    sessionService,
		Flow:              flow,
		Users:             usersRepo,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,

		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	// Background session cleanup
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				n, err := sessionsRepo.DeleteExpired(cleanupCtx, 24*time.Hour)
				if err != nil {
					logger.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("deleted expired sessions", "count", n)
				}
				n, err = challengesRepo.DeleteExpired(cleanupCtx)
				if err != nil {
					logger.Error("challenge cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("deleted expired challenges", "count", n)
				}
			}
		}
	}()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
