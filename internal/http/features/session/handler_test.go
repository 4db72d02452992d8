package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/secureauthai/secureauth/internal/httputil"
)

func TestRefreshRequest_Validation_Mobile(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "empty body",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "session_token is required",
		},
		{
			name:           "empty session_token",
			body:           `{"session_token": ""}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "session_token is required",
		},
		{
			name:           "invalid json",
			body:           `{invalid}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
	}

	handler := &Handler{
		sessionService: nil,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Client-Type", "mobile") // Mobile client sends tokens in body
			rec := httptest.NewRecorder()

			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Validation should have failed before reaching service")
				}
			}()

			handler.Refresh(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.expectedStatus)
			}

			var response httputil.ErrorBody
			json.NewDecoder(rec.Body).Decode(&response)
			if response.Error.Message != tt.expectedError {
				t.Errorf("Error = %q, want %q", response.Error.Message, tt.expectedError)
			}
		})
	}
}

func TestRefreshRequest_WebClient_NoCookie(t *testing.T) {
	handler := &Handler{
		sessionService: nil,
	}

	// Web client without cookie should get 401
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	var response httputil.ErrorBody
	json.NewDecoder(rec.Body).Decode(&response)
	if response.Error.Message != "session token not found" {
		t.Errorf("Error = %q, want %q", response.Error.Message, "session token not found")
	}
}

func TestLogoutRequest_Validation_Mobile(t *testing.T) {
	handler := &Handler{
		sessionService: nil,
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", bytes.NewBufferString(`{invalid}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Type", "mobile")
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var response httputil.ErrorBody
	json.NewDecoder(rec.Body).Decode(&response)
	if response.Error.Message != "invalid request body" {
		t.Errorf("Error = %q, want %q", response.Error.Message, "invalid request body")
	}
}

func TestLogout_WebClient_NoCookie_Succeeds(t *testing.T) {
	handler := &Handler{
		sessionService: nil,
		cookieConfig:   httputil.DefaultCookieConfig(),
	}

	// Logout without a session is a no-op, not an error
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestLogoutAll_Unauthenticated(t *testing.T) {
	handler := &Handler{
		sessionService: nil,
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout/all", nil)
	rec := httptest.NewRecorder()

	handler.LogoutAll(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
