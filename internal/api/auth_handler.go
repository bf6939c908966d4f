package api

import (
	"log/slog"
	"net/http"

	"github.com/veldtman/grind-api/internal/api/shared"
	"github.com/veldtman/grind-api/internal/platform/logger"
	"github.com/veldtman/grind-api/internal/security"
)

// AuthHandler issues and revokes session tokens. Player identity is
// established by the game platform upstream; this service only scopes and
// time-boxes access to the queue API.
type AuthHandler struct {
	tokens *security.TokenManager
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(tokens *security.TokenManager, log *slog.Logger) *AuthHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AuthHandler")
	}

	return &AuthHandler{
		tokens: tokens,
		logger: log.With(slog.String("component", "auth_handler")),
	}
}

// IssueToken handles POST /auth/token.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req TokenRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid token request")
		return
	}

	permissions := req.Permissions
	if len(permissions) == 0 {
		permissions = []string{security.PermQueueRead, security.PermQueueWrite}
	}

	token, err := h.tokens.Issue(req.PlayerID, permissions)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	log.Info("session token issued",
		slog.String("player_id", req.PlayerID),
		slog.Any("permissions", permissions))

	shared.RespondWithJSON(w, r, http.StatusCreated, TokenResponse{Token: token})
}

// RevokeToken handles POST /auth/revoke. The caller may revoke one token or
// every token they hold.
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	playerID, ok := shared.PlayerID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req RevokeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch {
	case req.All:
		h.tokens.RevokeAll(playerID)
		log.Info("all session tokens revoked", slog.String("player_id", playerID))
	case req.Token != "":
		h.tokens.Revoke(req.Token)
		log.Info("session token revoked", slog.String("player_id", playerID))
	default:
		shared.RespondWithError(w, r, http.StatusBadRequest, "Provide a token or set all=true")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
