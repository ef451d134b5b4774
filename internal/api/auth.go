// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/qbridge/qbridge/internal/log"
)

// requireToken enforces API token authentication on mutating routes. With
// no token configured the routes fail closed.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponentFromContext(r.Context(), "auth")

		if s.cfg.APIToken == "" {
			logger.Error().
				Str(log.FieldEvent, "auth.fail_closed").
				Msg("QBRIDGE_API_TOKEN not set, denying mutating request")
			writeError(w, http.StatusUnauthorized, "unauthorized", "api token not configured")
			return
		}

		reqToken := extractToken(r)
		if reqToken == "" {
			logger.Warn().
				Str(log.FieldEvent, "auth.missing_header").
				Msg("authorization header missing")
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing api token")
			return
		}

		// Constant-time comparison against timing attacks.
		if subtle.ConstantTimeCompare([]byte(reqToken), []byte(s.cfg.APIToken)) != 1 {
			logger.Warn().
				Str(log.FieldEvent, "auth.invalid_token").
				Str("remote", s.clientIP(r)).
				Msg("invalid api token")
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid api token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken reads the token from the Authorization header (Bearer
// scheme) or the X-API-Token header.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.Header.Get("X-API-Token")
}
