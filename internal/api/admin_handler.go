package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/veldtman/grind-api/internal/api/shared"
	"github.com/veldtman/grind-api/internal/platform/logger"
	"github.com/veldtman/grind-api/internal/service"
)

// AdminLevelHeader carries the acting admin's privilege level.
const AdminLevelHeader = "X-Admin-Level"

// AdminHandler exposes privileged queue operations. Every call is audited
// distinctly from player-initiated operations.
type AdminHandler struct {
	svc    *service.QueueService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc *service.QueueService, log *slog.Logger) *AdminHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AdminHandler")
	}

	return &AdminHandler{
		svc:    svc,
		logger: log.With(slog.String("component", "admin_handler")),
	}
}

// ModifyQueue handles POST /admin/queue/{playerID}.
func (h *AdminHandler) ModifyQueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	adminID, ok := shared.PlayerID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	adminLevel, err := strconv.Atoi(r.Header.Get(AdminLevelHeader))
	if err != nil || adminLevel <= 0 {
		shared.RespondWithError(w, r, http.StatusForbidden, "Valid "+AdminLevelHeader+" header required")
		return
	}

	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Player ID required")
		return
	}

	var req BatchRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Batch must contain between 1 and 20 operations")
		return
	}

	log.Info("admin queue modification",
		slog.String("admin_id", adminID),
		slog.String("player_id", playerID),
		slog.Int("admin_level", adminLevel),
		slog.Int("operations", len(req.Operations)))

	doc, err := h.svc.AdminModifyQueue(r.Context(), adminID, adminLevel, playerID, req.Operations)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, queueToResponse(doc))
}
