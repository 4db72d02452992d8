package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/secureauthai/secureauth/pkg/domain"
)

// ErrorBody is the JSON error envelope returned by every endpoint.
type ErrorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// JSON writes a JSON response.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	ErrorKind(w, status, kindForStatus(status), message)
}

// ErrorKind writes a JSON error response with an explicit kind.
func ErrorKind(w http.ResponseWriter, status int, kind, message string) {
	var body ErrorBody
	body.Error.Kind = kind
	body.Error.Message = message
	JSON(w, status, body)
}

// Fail maps a domain error to its HTTP rendering. Unknown errors render as an
// opaque 500 so internals never leak to clients.
func Fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		ErrorKind(w, http.StatusUnauthorized, "invalid_credentials", "invalid identifier or credential")
	case errors.Is(err, domain.ErrAccountLocked):
		ErrorKind(w, http.StatusLocked, "account_locked", "account temporarily locked due to too many failed attempts")
	case errors.Is(err, domain.ErrAccountInactive):
		ErrorKind(w, http.StatusForbidden, "account_inactive", "account is deactivated")
	case errors.Is(err, domain.ErrChallengeExpired):
		ErrorKind(w, http.StatusUnauthorized, "challenge_expired", "challenge expired, restart the ceremony")
	case errors.Is(err, domain.ErrChallengeInvalid):
		ErrorKind(w, http.StatusUnauthorized, "challenge_invalid", "challenge missing or already used")
	case errors.Is(err, domain.ErrDuplicateCredential):
		ErrorKind(w, http.StatusConflict, "duplicate_credential", "credential already registered")
	case errors.Is(err, domain.ErrFaceAlreadyRegistered):
		ErrorKind(w, http.StatusConflict, "already_registered", "a face credential is already enrolled")
	case errors.Is(err, domain.ErrCloneDetected):
		ErrorKind(w, http.StatusUnauthorized, "clone_detected", "authenticator state conflict")
	case errors.Is(err, domain.ErrFaceNotRecognized):
		ErrorKind(w, http.StatusUnauthorized, "face_not_recognized", "face not recognized")
	case errors.Is(err, domain.ErrInvalidSignature):
		ErrorKind(w, http.StatusBadRequest, "invalid_signature", "malformed face signature")
	case errors.Is(err, domain.ErrInvalidEmail):
		ErrorKind(w, http.StatusBadRequest, "invalid_email", "invalid email address")
	case errors.Is(err, domain.ErrInvalidUsername):
		ErrorKind(w, http.StatusBadRequest, "invalid_username", "invalid username format: must be 3-30 characters, alphanumeric/underscore/hyphen, start with alphanumeric")
	case errors.Is(err, domain.ErrWeakPassword):
		ErrorKind(w, http.StatusBadRequest, "weak_password", err.Error())
	case errors.Is(err, domain.ErrUserAlreadyExists):
		ErrorKind(w, http.StatusConflict, "already_registered", "user already exists")
	case errors.Is(err, domain.ErrUsernameAlreadyExists):
		ErrorKind(w, http.StatusConflict, "already_registered", "username already taken")
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrCredentialNotFound),
		errors.Is(err, domain.ErrTOTPNotEnrolled):
		ErrorKind(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionRevoked),
		errors.Is(err, domain.ErrInvalidToken):
		ErrorKind(w, http.StatusUnauthorized, "invalid_session", "session invalid or expired")
	case errors.Is(err, domain.ErrInvalidTOTPCode):
		ErrorKind(w, http.StatusUnauthorized, "invalid_credentials", "invalid one-time code")
	default:
		ErrorKind(w, http.StatusInternalServerError, "backend_unavailable", "internal error")
	}
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal"
	}
}
