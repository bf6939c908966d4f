// Package main implements the entry point for the grind API server,
// which manages durable per-player work queues and synchronizes queue
// state with live game clients.
package main

import (
	"context"
	"log"

	"github.com/veldtman/grind-api/internal/config"
	"github.com/veldtman/grind-api/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)
	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_configured", cfg.Database.URL != "")

	app, err := newApplication(cfg, appLogger)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := app.run(context.Background()); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}
