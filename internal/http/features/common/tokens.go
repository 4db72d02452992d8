package common

import (
	"net/http"
	"time"

	"github.com/secureauthai/secureauth/internal/httputil"
	"github.com/secureauthai/secureauth/pkg/auth"
	"github.com/secureauthai/secureauth/pkg/domain"
)

// SessionOpts builds session issuance options from the request.
func SessionOpts(r *http.Request) auth.IssueSessionOpts {
	return auth.IssueSessionOpts{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

// WriteTokens renders a token pair.
//
// Web clients get HttpOnly cookies and a minimal body; mobile clients
// (X-Client-Type: mobile) get the tokens in the response body.
func WriteTokens(w http.ResponseWriter, r *http.Request, tokens *domain.TokenPair, status int, cfg httputil.CookieConfig, accessTTL, sessionTTL time.Duration) {
	if httputil.IsMobileClient(r) {
		httputil.JSON(w, status, tokens)
		return
	}

	httputil.SetAuthCookies(w, tokens.AccessToken, tokens.SessionToken, accessTTL, sessionTTL, cfg)
	httputil.JSON(w, status, map[string]interface{}{
		"token_type": tokens.TokenType,
		"expires_in": tokens.ExpiresIn,
		"expires_at": tokens.ExpiresAt,
	})
}
