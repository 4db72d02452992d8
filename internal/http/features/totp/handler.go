package totp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/secureauthai/secureauth/internal/http/features/common"
	"github.com/secureauthai/secureauth/internal/http/middleware"
	"github.com/secureauthai/secureauth/internal/httputil"
	"github.com/secureauthai/secureauth/pkg/auth"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// Handler handles TOTP enrollment and login endpoints.
type Handler struct {
	logger         *slog.Logger
	totpService    *auth.TOTPService
	sessionService *auth.SessionService
	flow           *auth.Flow
	cookieConfig   httputil.CookieConfig
}

// NewHandler creates a new TOTP handler.
func NewHandler(logger *slog.Logger, totpService *auth.TOTPService, sessionService *auth.SessionService, flow *auth.Flow) *Handler {
	return &Handler{
		logger:         logger,
		totpService:    totpService,
		sessionService: sessionService,
		flow:           flow,
		cookieConfig:   httputil.DefaultCookieConfig(),
	}
}

// LoginRequest carries a one-time code.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

// Setup enrolls the authenticated user, returning provisioning material once.
// POST /v1/me/totp/setup
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	setup, err := h.totpService.Setup(r.Context(), userID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	h.logger.Info("totp enrolled", "user_id", userID)
	httputil.JSON(w, http.StatusCreated, setup)
}

// Status reports whether the authenticated user is enrolled.
// GET /v1/me/totp/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	enrolled, err := h.totpService.Enrolled(r.Context(), userID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"method":   domain.MethodTOTP,
		"enrolled": enrolled,
	})
}

// Disable removes the authenticated user's enrollment.
// DELETE /v1/me/totp
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.totpService.Disable(r.Context(), userID); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "totp disabled"})
}

// Login authenticates with a one-time code.
// POST /v1/auth/totp/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier and code are required")
		return
	}

	result, err := h.flow.Login(r.Context(), req.Identifier,
		auth.TOTPCode{Code: req.Code}, common.SessionOpts(r))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	common.WriteTokens(w, r, result.Tokens, http.StatusOK, h.cookieConfig,
		h.sessionService.AccessTokenTTL(), h.sessionService.SessionTTL())
}
