package auth

import (
	"net/http"
	"strings"
)

// CredentialFromRequest is the one place a credential is read from an
// incoming request: the Authorization bearer header first, then the
// "token" query parameter used by browser WebSocket clients.
func CredentialFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
