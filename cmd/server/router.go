package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/veldtman/grind-api/internal/api"
	"github.com/veldtman/grind-api/internal/api/middleware"
	"github.com/veldtman/grind-api/internal/security"
)

// setupRouter builds the full route tree. Routes are grouped by the token
// permission they require; the auth middleware on each group is the only
// thing standing between a request and a handler.
func (app *application) setupRouter() http.Handler {
	queueHandler := api.NewQueueHandler(app.svc, app.logger)
	authHandler := api.NewAuthHandler(app.tokens, app.logger)
	adminHandler := api.NewAdminHandler(app.svc, app.logger)
	wsHandler := api.NewWSHandler(app.hub, app.tokens, app.logger)
	auth := middleware.NewSessionAuth(app.tokens)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Trace)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Get("/ws", wsHandler.Serve)

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/token", authHandler.IssueToken)

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(security.PermQueueRead))
			r.Post("/auth/revoke", authHandler.RevokeToken)
			r.Get("/queue/{playerID}", queueHandler.Status)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(security.PermQueueWrite))
			r.Post("/queue/{playerID}/tasks", queueHandler.AddTask)
			r.Delete("/queue/{playerID}/tasks/{taskID}", queueHandler.RemoveTask)
			r.Post("/queue/{playerID}/tasks/{taskID}/progress", queueHandler.UpdateProgress)
			r.Post("/queue/{playerID}/tasks/{taskID}/complete", queueHandler.CompleteTask)
			r.Post("/queue/{playerID}/stop", queueHandler.StopAll)
			r.Post("/queue/{playerID}/batch", queueHandler.Batch)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(security.PermQueueAdmin))
			r.Post("/admin/queue/{playerID}", adminHandler.ModifyQueue)
		})
	})

	return router
}
