package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/raterudder/azzurro/pkg/log"
)

// authMiddleware requires a valid bearer ID token when a verifier is
// configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		if s.oidcVerifier != nil {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Ctx(ctx).WarnContext(ctx, "missing authorization header")
				writeJSONError(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
				writeJSONError(w, "invalid auth header", http.StatusBadRequest)
				return
			}
			idToken, err := s.oidcVerifier(ctx, token)
			if err != nil {
				log.Ctx(ctx).WarnContext(ctx, "token validation failed", slog.Any("error", err))
				writeJSONError(w, "invalid auth token", http.StatusUnauthorized)
				return
			}
			ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("subject", idToken.Subject)))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
