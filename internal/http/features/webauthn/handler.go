package webauthn

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

// Handler handles WebAuthn ceremony endpoints.
type Handler struct {
	logger          *slog.Logger
	webauthnService *auth.WebAuthnService
	sessionService  *auth.SessionService
	flow            *auth.Flow
	cookieConfig    httputil.CookieConfig
}

// NewHandler creates a new WebAuthn handler.
func NewHandler(logger *slog.Logger, webauthnService *auth.WebAuthnService, sessionService *auth.SessionService, flow *auth.Flow) *Handler {
	return &Handler{
		logger:          logger,
		webauthnService: webauthnService,
		sessionService:  sessionService,
		flow:            flow,
		cookieConfig:    httputil.DefaultCookieConfig(),
	}
}

// FinishRegistrationRequest carries the attestation result back from the
// platform authenticator.
type FinishRegistrationRequest struct {
	Challenge    string   `json:"challenge"`
	CredentialID string   `json:"credential_id"`
	PublicKey    string   `json:"public_key"`
	Transports   []string `json:"transports,omitempty"`
}

// BeginLoginRequest identifies the account starting a ceremony.
type BeginLoginRequest struct {
	Identifier string `json:"identifier"`
}

// FinishLoginRequest carries the assertion result.
type FinishLoginRequest struct {
	Identifier   string `json:"identifier"`
	Challenge    string `json:"challenge"`
	CredentialID string `json:"credential_id"`
	SignCount    uint32 `json:"sign_count"`
	Raw          []byte `json:"raw,omitempty"`
}

// RevokeRequest names the credential to deactivate.
type RevokeRequest struct {
	CredentialID string `json:"credential_id"`
}

// BeginRegistration starts an enrollment ceremony.
// POST /v1/auth/webauthn/register/begin
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	opts, err := h.webauthnService.BeginRegistration(r.Context(), userID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, opts)
}

// FinishRegistration completes an enrollment ceremony.
// POST /v1/auth/webauthn/register/finish
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req FinishRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Challenge == "" || req.CredentialID == "" || req.PublicKey == "" {
		httputil.Error(w, http.StatusBadRequest, "challenge, credential_id and public_key are required")
		return
	}

	cred, err := h.webauthnService.FinishRegistration(r.Context(), userID, auth.AttestationResponse{
		Challenge:    req.Challenge,
		CredentialID: req.CredentialID,
		PublicKey:    req.PublicKey,
		Transports:   req.Transports,
	})
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	h.logger.Info("webauthn credential enrolled", "user_id", userID, "credential_id", cred.CredentialID)
	httputil.JSON(w, http.StatusCreated, map[string]interface{}{
		"credential_id": cred.CredentialID,
		"transports":    cred.Transports,
		"created_at":    cred.CreatedAt,
	})
}

// BeginLogin starts an authentication ceremony.
// POST /v1/auth/webauthn/login/begin
func (h *Handler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	var req BeginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier is required")
		return
	}

	opts, err := h.webauthnService.BeginLogin(r.Context(), req.Identifier)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, opts)
}

// FinishLogin completes an authentication ceremony and issues a session.
// POST /v1/auth/webauthn/login/finish
func (h *Handler) FinishLogin(w http.ResponseWriter, r *http.Request) {
	var req FinishLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" || req.Challenge == "" || req.CredentialID == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier, challenge and credential_id are required")
		return
	}

	result, err := h.flow.Login(r.Context(), req.Identifier, auth.WebAuthnAssertion{
		Challenge:    req.Challenge,
		CredentialID: req.CredentialID,
		SignCount:    req.SignCount,
		Raw:          req.Raw,
	}, common.SessionOpts(r))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	common.WriteTokens(w, r, result.Tokens, http.StatusOK, h.cookieConfig,
		h.sessionService.AccessTokenTTL(), h.sessionService.SessionTTL())
}

// Status reports whether the authenticated user has enrolled credentials.
// GET /v1/me/webauthn/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	enrolled, err := h.webauthnService.HasCredentials(r.Context(), userID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"method":   domain.MethodWebAuthn,
		"enrolled": enrolled,
	})
}

// Revoke deactivates one of the authenticated user's credentials.
// DELETE /v1/me/webauthn
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CredentialID == "" {
		httputil.Error(w, http.StatusBadRequest, "credential_id is required")
		return
	}

	if err := h.webauthnService.Revoke(r.Context(), userID, req.CredentialID); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "credential revoked"})
}
