package password

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/secureauthai/secureauth/internal/http/features/common"
	"github.com/secureauthai/secureauth/internal/http/middleware"
	"github.com/secureauthai/secureauth/internal/httputil"
	"github.com/secureauthai/secureauth/pkg/auth"
)

// Handler handles password authentication endpoints.
type Handler struct {
	logger          *slog.Logger
	passwordService *auth.PasswordService
	sessionService  *auth.SessionService
	flow            *auth.Flow
	cookieConfig    httputil.CookieConfig
}

// NewHandler creates a new password handler.
func NewHandler(logger *slog.Logger, passwordService *auth.PasswordService, sessionService *auth.SessionService, flow *auth.Flow) *Handler {
	return &Handler{
		logger:          logger,
		passwordService: passwordService,
		sessionService:  sessionService,
		flow:            flow,
		cookieConfig:    httputil.DefaultCookieConfig(),
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Identifier string `json:"identifier"` // email or username
	Password   string `json:"password"`
}

// ChangePasswordRequest represents a password change request.
type ChangePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// Register handles user registration.
// POST /v1/auth/password/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Username == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email, username and password are required")
		return
	}

	user, err := h.passwordService.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	tokens, err := h.sessionService.Issue(r.Context(), user.ID, common.SessionOpts(r))
	if err != nil {
		h.logger.Error("failed to issue session", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	common.WriteTokens(w, r, tokens, http.StatusCreated, h.cookieConfig,
		h.sessionService.AccessTokenTTL(), h.sessionService.SessionTTL())
}

// Login handles password login.
// POST /v1/auth/password/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Identifier == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	result, err := h.flow.Login(r.Context(), req.Identifier,
		auth.PasswordCredential{Password: req.Password}, common.SessionOpts(r))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	common.WriteTokens(w, r, result.Tokens, http.StatusOK, h.cookieConfig,
		h.sessionService.AccessTokenTTL(), h.sessionService.SessionTTL())
}

// ChangePassword replaces the authenticated user's password.
// POST /v1/me/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NewPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "new_password is required")
		return
	}

	if err := h.passwordService.ChangePassword(r.Context(), userID, req.NewPassword); err != nil {
		httputil.Fail(w, err)
		return
	}

	// Other sessions no longer trust the old password; end them.
	if err := h.sessionService.RevokeAll(r.Context(), userID); err != nil {
		h.logger.Error("failed to revoke sessions after password change", "error", err, "user_id", userID)
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}
