package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"permitpulse/internal/app"
	"permitpulse/internal/platform/config"
	"permitpulse/internal/platform/httpserver"
	"permitpulse/internal/platform/logger"
)

// main wires the service graph, serves HTTP and flushes the change feed until
// the process is signalled.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New(true, "info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.IsLocal(), cfg.Server.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("shutdown cleanup failed", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Server.Addr, application.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, log, 30*time.Second)
	})
	g.Go(func() error {
		return application.RunBackground(gctx)
	})
	return g.Wait()
}
