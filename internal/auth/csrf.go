package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
)

const (
	// CSRFCookieName is the name of the CSRF cookie
	CSRFCookieName = "_csrf"

	// CSRFHeaderName is the request header carrying the double-submit token
	CSRFHeaderName = "X-CSRF-Token"

	// CSRFTokenBytes is the number of random bytes for CSRF tokens
	CSRFTokenBytes = 32
)

// GenerateCSRFToken generates a cryptographically secure CSRF token
// Returns a base64url-encoded 32-byte random token
func GenerateCSRFToken() (string, error) {
	bytes := make([]byte, CSRFTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// SetCSRFCookie sets the CSRF token in a cookie
// Uses double-submit cookie pattern for CSRF protection
func SetCSRFCookie(w http.ResponseWriter, token string, isProduction bool) {
	cookie := &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false, // Must be readable by the frontend for request headers
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
}

// GetCSRFCookie reads the CSRF token from the cookie
func GetCSRFCookie(r *http.Request) string {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// HandleCSRFToken issues a fresh CSRF token. Clients call this once before
// their first mutating request and echo the token in the X-CSRF-Token header.
func HandleCSRFToken(isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := GenerateCSRFToken()
		if err != nil {
			http.Error(w, "failed to generate token", http.StatusInternalServerError)
			return
		}
		SetCSRFCookie(w, token, isProduction)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"csrf_token":%q}`, token)
	}
}

// ValidateCSRF validates the CSRF token using double-submit pattern
// Compares the token from the header with the token from the cookie
func ValidateCSRF(r *http.Request) error {
	cookieToken := GetCSRFCookie(r)
	if cookieToken == "" {
		return fmt.Errorf("missing CSRF cookie")
	}

	headerToken := r.Header.Get(CSRFHeaderName)
	if headerToken == "" {
		return fmt.Errorf("missing CSRF token in request")
	}

	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
		return fmt.Errorf("CSRF token mismatch")
	}

	return nil
}
