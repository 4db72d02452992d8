package face

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

// Handler handles face-signature authentication endpoints.
type Handler struct {
	logger         *slog.Logger
	faceService    *auth.FaceService
	sessionService *auth.SessionService
	flow           *auth.Flow
	cookieConfig   httputil.CookieConfig
}

// NewHandler creates a new face handler.
func NewHandler(logger *slog.Logger, faceService *auth.FaceService, sessionService *auth.SessionService, flow *auth.Flow) *Handler {
	return &Handler{
		logger:         logger,
		faceService:    faceService,
		sessionService: sessionService,
		flow:           flow,
		cookieConfig:   httputil.DefaultCookieConfig(),
	}
}

// RegisterRequest enrolls a captured face signature. A nil Threshold selects
// the server default; 0 demands an exact match.
type RegisterRequest struct {
	Signature    string `json:"signature"`
	ModelVersion string `json:"model_version,omitempty"`
	Threshold    *int   `json:"threshold,omitempty"`
}

// OptionsRequest identifies the account starting a face login.
type OptionsRequest struct {
	Identifier string `json:"identifier"`
}

// LoginRequest carries a candidate face signature.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Signature  string `json:"signature"`
}

// Register enrolls a face signature for the authenticated user.
// POST /v1/auth/face/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Signature == "" {
		httputil.Error(w, http.StatusBadRequest, "signature is required")
		return
	}

	threshold := auth.UseDefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	cred, err := h.faceService.Register(r.Context(), userID, req.Signature, req.ModelVersion, threshold)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	h.logger.Info("face credential enrolled", "user_id", userID, "model_version", cred.ModelVersion)
	httputil.JSON(w, http.StatusCreated, map[string]interface{}{
		"model_version": cred.ModelVersion,
		"threshold":     cred.Threshold,
		"created_at":    cred.CreatedAt,
	})
}

// RegistrationOptions returns the capture parameters for enrollment.
// GET /v1/auth/face/register/options
func (h *Handler) RegistrationOptions(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.faceService.RegistrationOptions())
}

// AuthenticationOptions returns the capture parameters for a login attempt.
// POST /v1/auth/face/login/options
func (h *Handler) AuthenticationOptions(w http.ResponseWriter, r *http.Request) {
	var req OptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier is required")
		return
	}

	opts, err := h.faceService.AuthenticationOptions(r.Context(), req.Identifier)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, opts)
}

// Login authenticates with a candidate face signature.
// POST /v1/auth/face/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" || req.Signature == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier and signature are required")
		return
	}

	result, err := h.flow.Login(r.Context(), req.Identifier,
		auth.FaceSample{Signature: req.Signature}, common.SessionOpts(r))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	common.WriteTokens(w, r, result.Tokens, http.StatusOK, h.cookieConfig,
		h.sessionService.AccessTokenTTL(), h.sessionService.SessionTTL())
}

// Status reports whether the authenticated user has an enrolled face.
// GET /v1/me/face/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	enrolled, err := h.faceService.HasCredentials(r.Context(), userID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"method":   domain.MethodFace,
		"enrolled": enrolled,
	})
}

// Revoke deactivates the authenticated user's face credentials.
// DELETE /v1/me/face
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.faceService.Revoke(r.Context(), userID); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "face credential revoked"})
}
