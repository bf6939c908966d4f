package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/veldtman/grind-api/internal/api/shared"
	"github.com/veldtman/grind-api/internal/platform/logger"
	"github.com/veldtman/grind-api/internal/service"
)

// QueueHandler handles queue-related HTTP requests.
type QueueHandler struct {
	svc    *service.QueueService
	logger *slog.Logger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(svc *service.QueueService, log *slog.Logger) *QueueHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for QueueHandler")
	}

	return &QueueHandler{
		svc:    svc,
		logger: log.With(slog.String("component", "queue_handler")),
	}
}

// AddTask handles POST /queue/{playerID}/tasks.
func (h *QueueHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.authorizedPlayer(w, r)
	if !ok {
		return
	}

	var req AddTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	doc, err := h.svc.AddTask(r.Context(), playerID, req.Task)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, queueToResponse(doc))
}

// RemoveTask handles DELETE /queue/{playerID}/tasks/{taskID}.
func (h *QueueHandler) RemoveTask(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.authorizedPlayer(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "taskID")

	doc, err := h.svc.RemoveTask(r.Context(), playerID, taskID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, queueToResponse(doc))
}

// UpdateProgress handles POST /queue/{playerID}/tasks/{taskID}/progress.
func (h *QueueHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.authorizedPlayer(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "taskID")

	var req ProgressRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Progress must be within [0,1]")
		return
	}

	doc, err := h.svc.UpdateProgress(r.Context(), playerID, taskID, req.Progress)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, queueToResponse(doc))
}

// CompleteTask handles POST /queue/{playerID}/tasks/{taskID}/complete.
func (h *QueueHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.authorizedPlayer(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "taskID")

	doc, err := h.svc.CompleteTask(r.Context(), playerID, taskID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, queueToResponse(doc))
}

// StopAll handles POST /queue/{playerID}/stop.
func (h *QueueHandler) StopAll(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.authorizedPlayer(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.StopAllTasks(r.Context(), playerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, queueToResponse(doc))
}

// Batch handles POST /queue/{playerID}/batch.
func (h *QueueHandler) Batch(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.authorizedPlayer(w, r)
	if !ok {
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

	doc, err := h.svc.BatchOperations(r.Context(), playerID, req.Operations)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, queueToResponse(doc))
}

// Status handles GET /queue/{playerID}.
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.authorizedPlayer(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.QueueStatus(r.Context(), playerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, queueToResponse(doc))
}

// authorizedPlayer resolves the path's player ID and rejects requests whose
// session token belongs to a different player.
func (h *QueueHandler) authorizedPlayer(w http.ResponseWriter, r *http.Request) (string, bool) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Player ID required")
		return "", false
	}

	authenticated, ok := shared.PlayerID(r.Context())
	if !ok {
		log.Warn("player ID missing from authenticated request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	if authenticated != playerID {
		shared.RespondWithError(w, r, http.StatusForbidden, "Token does not grant access to this player's queue")
		return "", false
	}

	return playerID, true
}

// respondServiceError maps service errors onto HTTP responses, attaching a
// Retry-After hint when the caller was rate limited.
func (h *QueueHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rateErr *service.RateLimitError
	if errors.As(err, &rateErr) {
		seconds := int(rateErr.RetryAfter.Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
