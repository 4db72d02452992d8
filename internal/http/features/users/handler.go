package users

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/secureauthai/secureauth/internal/http/middleware"
	"github.com/secureauthai/secureauth/internal/httputil"
	"github.com/secureauthai/secureauth/pkg/auth"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// Handler handles account lookup and profile endpoints.
type Handler struct {
	logger          *slog.Logger
	users           auth.UserStore
	webauthnService *auth.WebAuthnService
	faceService     *auth.FaceService
	totpService     *auth.TOTPService
}

// NewHandler creates a new users handler. totpService may be nil when the
// factor is not configured.
func NewHandler(logger *slog.Logger, users auth.UserStore, webauthnService *auth.WebAuthnService, faceService *auth.FaceService, totpService *auth.TOTPService) *Handler {
	return &Handler{
		logger:          logger,
		users:           users,
		webauthnService: webauthnService,
		faceService:     faceService,
		totpService:     totpService,
	}
}

// MethodsRequest identifies the account whose login methods are requested.
type MethodsRequest struct {
	Identifier string `json:"identifier"`
}

// MethodsResponse lists the authentication methods available to an account.
type MethodsResponse struct {
	Methods []domain.AuthMethod `json:"methods"`
}

// Profile is the authenticated user's own view of the account.
type Profile struct {
	ID          string              `json:"id"`
	Email       string              `json:"email"`
	Username    *string             `json:"username,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	LastLoginAt *time.Time          `json:"last_login_at,omitempty"`
	Methods     []domain.AuthMethod `json:"methods"`
}

// Methods returns the login methods enrolled for an identifier, so the login
// screen can offer only what the account can use. Password is always listed;
// an unknown identifier gets the same answer so accounts cannot be probed.
// POST /v1/auth/methods
func (h *Handler) Methods(w http.ResponseWriter, r *http.Request) {
	var req MethodsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier is required")
		return
	}

	methods := []domain.AuthMethod{domain.MethodPassword}

	user, err := h.users.GetByIdentifier(r.Context(), req.Identifier)
	if err == nil {
		enrolled, merr := h.enrolledMethods(r, user.ID)
		if merr != nil {
			httputil.Fail(w, merr)
			return
		}
		methods = append(methods, enrolled...)
	}

	httputil.JSON(w, http.StatusOK, MethodsResponse{Methods: methods})
}

// Me returns the authenticated user's profile and enrolled methods.
// GET /v1/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	enrolled, err := h.enrolledMethods(r, user.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, Profile{
		ID:          user.ID.String(),
		Email:       user.Email,
		Username:    user.Username,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
		Methods:     append([]domain.AuthMethod{domain.MethodPassword}, enrolled...),
	})
}

// ByUsername looks up an account's public profile by username.
// GET /v1/users/by-username?username=...
// Requires authentication
func (h *Handler) ByUsername(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserID(r.Context()); !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		httputil.Error(w, http.StatusBadRequest, "username is required")
		return
	}

	user, err := h.users.GetByIdentifier(r.Context(), username)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"id":         user.ID.String(),
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}

func (h *Handler) enrolledMethods(r *http.Request, userID uuid.UUID) ([]domain.AuthMethod, error) {
	var methods []domain.AuthMethod

	hasWebAuthn, err := h.webauthnService.HasCredentials(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	if hasWebAuthn {
		methods = append(methods, domain.MethodWebAuthn)
	}

	hasFace, err := h.faceService.HasCredentials(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	if hasFace {
		methods = append(methods, domain.MethodFace)
	}

	if h.totpService != nil {
		enrolled, err := h.totpService.Enrolled(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		if enrolled {
			methods = append(methods, domain.MethodTOTP)
		}
	}
	return methods, nil
}
