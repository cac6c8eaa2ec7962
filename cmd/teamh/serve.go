package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/teamh-ai/teamh"
	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/observability"
	"github.com/teamh-ai/teamh/pkg/server"
	"github.com/teamh-ai/teamh/pkg/team"
)

// ServeCmd starts the HTTP gateway.
type ServeCmd struct {
	Host string `help:"Listen host (overrides config)."`
	Port int    `help:"Listen port (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Observability != nil {
		obs := observability.NewManager(*cfg.Observability)
		if err := obs.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize observability: %w", err)
		}
		defer func() {
			if err := obs.Shutdown(context.Background()); err != nil {
				slog.Warn("Observability shutdown failed", "error", err)
			}
		}()
	}

	tm, err := team.New(cfg)
	if err != nil {
		return err
	}
	defer tm.Close()

	srv := server.NewServer(cfg, tm, teamh.Version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("Shutting down", "signal", sig.String())
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
		cancel()
	}()

	return srv.Start()
}
