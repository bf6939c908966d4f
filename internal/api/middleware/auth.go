package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/veldtman/grind-api/internal/api/shared"
	"github.com/veldtman/grind-api/internal/security"
)

// SessionAuth validates session tokens and checks operation scopes.
type SessionAuth struct {
	tokens *security.TokenManager
}

// NewSessionAuth creates the session-token middleware.
func NewSessionAuth(tokens *security.TokenManager) *SessionAuth {
	return &SessionAuth{tokens: tokens}
}

// Require returns middleware that rejects requests without a live token
// covering the given permission and stores the token's player ID in the
// request context.
func (m *SessionAuth) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			result := m.tokens.Validate(token, permission)
			if !result.Valid {
				status := http.StatusUnauthorized
				if result.Reason == security.ReasonInsufficient {
					status = http.StatusForbidden
				}
				shared.RespondWithError(w, r, status, "Invalid token: "+result.Reason)
				return
			}

			ctx := context.WithValue(r.Context(), shared.PlayerIDContextKey, result.PlayerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetPlayerID extracts the authenticated player ID from the request.
func GetPlayerID(r *http.Request) (string, bool) {
	return shared.PlayerID(r.Context())
}
