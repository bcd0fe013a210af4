package auth

import (
	"net/http"
	"strings"
)

// CookieName is the cookie set at login and read back on every request.
const CookieName = "token"

// ExtractToken looks for a token in the Authorization header, then the
// "token" query parameter used by browser WebSocket clients, then the cookie.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
			return strings.TrimSpace(token)
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}
