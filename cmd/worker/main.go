package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/reviewflow/config"
	"github.com/spacesedan/reviewflow/internal/app"
	"github.com/spacesedan/reviewflow/internal/logging"
	"golang.org/x/sync/errgroup"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	config.LoadEnv(env)
	cfg := config.Load()
	logging.InitLogger(cfg.LogLevel)

	if cfg.Queue.Backend != app.QueueKafka {
		slog.Error("[Main] Cannot start worker", slog.String("error", app.ErrNoSharedQueue.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, true)
	if err != nil {
		slog.Error("[Main] Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Worker().Start(gctx) })
	g.Go(func() error { return a.Maintenance().Run(gctx) })
	g.Go(func() error { return a.Health.Run(gctx) })

	slog.Info("[Main] Worker started", slog.String("topic", cfg.Queue.Topic))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("[Main] Worker stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("[Main] Worker shut down")
}
