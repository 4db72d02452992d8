package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/secureauthai/secureauth/internal/http/middleware"
	"github.com/secureauthai/secureauth/internal/httputil"
	"github.com/secureauthai/secureauth/pkg/auth"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// Handler handles session endpoints.
type Handler struct {
	sessionService *auth.SessionService
	cookieConfig   httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(sessionService *auth.SessionService) *Handler {
	return &Handler{
		sessionService: sessionService,
		cookieConfig:   httputil.DefaultCookieConfig(),
	}
}

// RefreshRequest represents a token refresh request (for mobile clients).
type RefreshRequest struct {
	SessionToken string `json:"session_token"`
}

// TokenResponse represents a token response.
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// LogoutRequest represents a logout request (for mobile clients).
type LogoutRequest struct {
	SessionToken string `json:"session_token"`
}

// Refresh mints a new access token from a still-valid session.
// POST /v1/auth/refresh
//
// For web clients: Reads the session token from cookie, sets new cookies.
// For mobile clients: Reads/returns tokens in request/response body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var sessionToken string

	if httputil.IsMobileClient(r) {
		// Mobile: read from request body
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sessionToken = req.SessionToken
	} else {
		// Web: read from cookie
		var ok bool
		sessionToken, ok = httputil.GetSessionTokenFromCookie(r)
		if !ok {
			httputil.Error(w, http.StatusUnauthorized, "session token not found")
			return
		}
	}

	if sessionToken == "" {
		httputil.Error(w, http.StatusBadRequest, "session_token is required")
		return
	}

	tokens, err := h.sessionService.Refresh(r.Context(), sessionToken)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) ||
			errors.Is(err, domain.ErrSessionExpired) ||
			errors.Is(err, domain.ErrSessionRevoked) {
			// Clear cookies on invalid token for web clients
			if !httputil.IsMobileClient(r) {
				httputil.ClearAuthCookies(w, h.cookieConfig)
			}
			httputil.ErrorKind(w, http.StatusUnauthorized, "invalid_session", "invalid or expired session token")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	h.writeTokenResponse(w, r, tokens)
}

// Logout revokes a session.
// POST /v1/auth/logout
//
// For web clients: Reads the session token from cookie, clears cookies.
// For mobile clients: Reads token from request body.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var sessionToken string

	if httputil.IsMobileClient(r) {
		// Mobile: read from request body
		var req LogoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sessionToken = req.SessionToken
	} else {
		// Web: read from cookie
		sessionToken, _ = httputil.GetSessionTokenFromCookie(r)
	}

	if sessionToken != "" {
		// Revoke session (ignore errors to prevent enumeration attacks)
		_ = h.sessionService.Revoke(r.Context(), sessionToken)
	}

	// Clear cookies for web clients
	if !httputil.IsMobileClient(r) {
		httputil.ClearAuthCookies(w, h.cookieConfig)
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes all sessions for the current user.
// POST /v1/auth/logout/all
// Requires authentication
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.sessionService.RevokeAll(r.Context(), userID); err != nil {
		httputil.Error(w, http.StatusInternalServerError, "failed to logout all sessions")
		return
	}

	// Clear cookies for web clients
	if !httputil.IsMobileClient(r) {
		httputil.ClearAuthCookies(w, h.cookieConfig)
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeTokenResponse writes tokens as cookies (web) or JSON (mobile).
func (h *Handler) writeTokenResponse(w http.ResponseWriter, r *http.Request, tokens *domain.TokenPair) {
	if httputil.IsMobileClient(r) {
		httputil.JSON(w, http.StatusOK, TokenResponse{
			AccessToken:  tokens.AccessToken,
			SessionToken: tokens.SessionToken,
			TokenType:    tokens.TokenType,
			ExpiresIn:    tokens.ExpiresIn,
		})
		return
	}

	// Web: set HttpOnly cookies
	httputil.SetAuthCookies(
		w,
		tokens.AccessToken,
		tokens.SessionToken,
		h.sessionService.AccessTokenTTL(),
		h.sessionService.SessionTTL(),
		h.cookieConfig,
	)

	httputil.JSON(w, http.StatusOK, TokenResponse{
		TokenType: tokens.TokenType,
		ExpiresIn: tokens.ExpiresIn,
	})
}
