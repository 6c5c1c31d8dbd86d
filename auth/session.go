package auth

import (
	"net/http"
	"strings"
)

// SessionToken extracts the session credential of an HTTP request: the
// named cookie first, then a "Bearer" Authorization header. It returns ""
// when the request carries neither.
func SessionToken(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
