package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/traindeck/traindeck/internal/metrics"
)

const bearerPrefix = "Bearer "

// BearerAuth guards the command surface with the token the CLI and the
// front-end read from the secret store. Rejections are logged with the
// request id and counted by reason ("missing" or "invalid").
func BearerAuth(token string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reason := checkBearer(r.Header.Get("Authorization"), token)
			if reason == "" {
				next.ServeHTTP(w, r)
				return
			}

			metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
			log.WarnContext(r.Context(), "rejected command request",
				"reason", reason,
				"path", r.URL.Path,
				"request_id", chimw.GetReqID(r.Context()),
			)
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
		})
	}
}

// checkBearer returns "" when header carries token, otherwise the
// rejection reason.
func checkBearer(header, token string) string {
	if !strings.HasPrefix(header, bearerPrefix) || strings.TrimSpace(header[len(bearerPrefix):]) == "" {
		return "missing"
	}
	if subtle.ConstantTimeCompare([]byte(header[len(bearerPrefix):]), []byte(token)) != 1 {
		return "invalid"
	}
	return ""
}
