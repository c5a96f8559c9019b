package jwt

import (
	"net/http"
	"strings"
)

// DefaultCookieName is the cookie consulted when no Authorization header is present.
const DefaultCookieName = "auth_token"

// ExtractToken reads a bearer token from the request, checking the
// "Authorization: Bearer" header first and falling back to the named cookie.
// Absence is not an error, just no token.
func ExtractToken(r *http.Request, cookieName string) (string, bool) {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		// Auth scheme names are case-insensitive per RFC 7235.
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return parts[1], true
		}
	}

	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	return "", false
}
