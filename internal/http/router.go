package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secureauthai/secureauth/internal/http/features/face"
	"github.com/secureauthai/secureauth/internal/http/features/password"
	"github.com/secureauthai/secureauth/internal/http/features/session"
	"github.com/secureauthai/secureauth/internal/http/features/totp"
	"github.com/secureauthai/secureauth/internal/http/features/users"
	"github.com/secureauthai/secureauth/internal/http/features/webauthn"
	"github.com/secureauthai/secureauth/internal/http/middleware"
	"github.com/secureauthai/secureauth/internal/httputil"
	"github.com/secureauthai/secureauth/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	PasswordService *auth.PasswordService
	WebAuthnService *auth.WebAuthnService
	FaceService     *auth.FaceService
	TOTPService     *auth.TOTPService // nil disables TOTP routes
	SessionService  *auth.SessionService
	Flow            *auth.Flow
	Users           auth.UserStore

	RateLimitRequests  int
	RateLimitWindow    time.Duration
	MaxRequestBodySize int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeaders()))

	maxBody := cfg.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB
	}
	r.Use(middleware.RequestSizeLimit(maxBody))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authLimit := middleware.NoRateLimit()
	if cfg.RateLimitRequests > 0 {
		authLimit = middleware.RateLimit(middleware.RateLimitConfig{
			Requests: cfg.RateLimitRequests,
			Window:   cfg.RateLimitWindow,
			Logger:   cfg.Logger,
		})
	}
	requireAuth := middleware.Auth(cfg.SessionService)

	// Password routes
	passwordHandler := password.NewHandler(cfg.Logger, cfg.PasswordService, cfg.SessionService, cfg.Flow)
	r.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/v1/auth/password/register", passwordHandler.Register)
		r.Post("/v1/auth/password/login", passwordHandler.Login)
	})
	r.With(requireAuth).Post("/v1/me/password", passwordHandler.ChangePassword)

	// WebAuthn ceremony routes
	webauthnHandler := webauthn.NewHandler(cfg.Logger, cfg.WebAuthnService, cfg.SessionService, cfg.Flow)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/v1/auth/webauthn/register/begin", webauthnHandler.BeginRegistration)
		r.Post("/v1/auth/webauthn/register/finish", webauthnHandler.FinishRegistration)
		r.Get("/v1/me/webauthn/status", webauthnHandler.Status)
		r.Delete("/v1/me/webauthn", webauthnHandler.Revoke)
	})
	r.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/v1/auth/webauthn/login/begin", webauthnHandler.BeginLogin)
		r.Post("/v1/auth/webauthn/login/finish", webauthnHandler.FinishLogin)
	})

	// Face signature routes
	faceHandler := face.NewHandler(cfg.Logger, cfg.FaceService, cfg.SessionService, cfg.Flow)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/v1/auth/face/register", faceHandler.Register)
		r.Get("/v1/me/face/status", faceHandler.Status)
		r.Delete("/v1/me/face", faceHandler.Revoke)
	})
	r.Get("/v1/auth/face/register/options", faceHandler.RegistrationOptions)
	r.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/v1/auth/face/login/options", faceHandler.AuthenticationOptions)
		r.Post("/v1/auth/face/login", faceHandler.Login)
	})

	// TOTP routes (if configured)
	if cfg.TOTPService != nil {
		totpHandler := totp.NewHandler(cfg.Logger, cfg.TOTPService, cfg.SessionService, cfg.Flow)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/v1/me/totp/setup", totpHandler.Setup)
			r.Get("/v1/me/totp/status", totpHandler.Status)
			r.Delete("/v1/me/totp", totpHandler.Disable)
		})
		r.With(authLimit).Post("/v1/auth/totp/login", totpHandler.Login)
	}

	// Session routes
	sessionHandler := session.NewHandler(cfg.SessionService)
	r.With(authLimit).Post("/v1/auth/refresh", sessionHandler.Refresh)
	r.Post("/v1/auth/logout", sessionHandler.Logout)
	r.With(requireAuth).Post("/v1/auth/logout/all", sessionHandler.LogoutAll)

	// Account routes
	usersHandler := users.NewHandler(cfg.Logger, cfg.Users, cfg.WebAuthnService, cfg.FaceService, cfg.TOTPService)
	r.With(authLimit).Post("/v1/auth/methods", usersHandler.Methods)
	r.With(requireAuth).Get("/v1/me", usersHandler.Me)
	r.With(requireAuth).Get("/v1/users/by-username", usersHandler.ByUsername)

	return r
}
