package main

import (
	"fmt"
	"log/slog"

	"fabline/internal/config"
	"fabline/internal/daemon"
	"fabline/internal/notifications"
	"fabline/internal/orders"
	"fabline/internal/workflow"
)

// bootstrap opens the store, builds the engine, and assembles the daemon.
func bootstrap(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := orders.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open order store: %w", err)
	}

	engine := workflow.NewEngine(cfg, store, logger, notifications.NewService(cfg))
	d, err := daemon.New(cfg, store, logger, engine)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}
