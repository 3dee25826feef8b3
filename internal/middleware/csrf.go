package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"inkpress/internal/apperr"
	"inkpress/internal/session"
)

const (
	// csrfTokenLength is the byte length of CSRF tokens (32 bytes = 64 hex chars).
	csrfTokenLength = 32

	// CSRFCookieName is the cookie that holds the CSRF token.
	CSRFCookieName = "ip_csrf"

	// CSRFHeaderName is the header browser clients echo the token in.
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRF provides double-submit cookie CSRF protection for cookie-session
// requests. Every response makes sure a readable token cookie exists;
// state-changing requests that carry the session cookie must echo it in
// the X-CSRF-Token header. Bearer-token requests and requests without a
// session cookie cannot ride on ambient credentials and pass through.
func CSRF(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := GetCSRFToken(r)
			if token == "" {
				var err error
				if token, err = generateCSRFToken(); err != nil {
					apperr.Write(w, r, apperr.Internal("Internal server error", err))
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false, // the client reads it to fill the header
					Secure:   secure,
					SameSite: http.SameSiteStrictMode,
				})
			}

			if !needsCSRF(r) {
				next.ServeHTTP(w, r)
				return
			}

			submitted := r.Header.Get(CSRFHeaderName)
			if submitted == "" || subtle.ConstantTimeCompare([]byte(token), []byte(submitted)) != 1 {
				apperr.WriteBody(w, http.StatusForbidden, apperr.Body{
					Error: "CSRF token mismatch",
					Kind:  apperr.KindForbidden,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func needsCSRF(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	if session.IsBearer(r) {
		return false
	}
	_, err := r.Cookie(session.CookieName)
	return err == nil
}

// GetCSRFToken extracts the current CSRF token from the request cookie.
func GetCSRFToken(r *http.Request) string {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// generateCSRFToken creates a cryptographically random token.
func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
