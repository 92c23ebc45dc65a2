package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/btouchard/boardsync/internal/auth"
)

// BearerAuth returns middleware that accepts only requests carrying the
// local API token as a Bearer credential.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				challenge(w, "missing Authorization header")
				return
			}

			scheme, presented, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				challenge(w, "invalid Authorization header format")
				return
			}

			if !auth.Matches(token, strings.TrimSpace(presented)) {
				slog.Debug("api token rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
				invalidToken(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func challenge(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="boardsync"`)
	http.Error(w, msg, http.StatusUnauthorized)
}

func invalidToken(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	http.Error(w, msg, http.StatusUnauthorized)
}
