package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/reviewflow/config"
	"github.com/spacesedan/reviewflow/internal/app"
	"github.com/spacesedan/reviewflow/internal/logging"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 10 * time.Second

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	config.LoadEnv(env)
	cfg := config.Load()
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, false)
	if err != nil {
		slog.Error("[Main] Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	e := a.HTTP()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("[Main] HTTP server listening", slog.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return e.Shutdown(sctx)
	})
	g.Go(func() error { return a.Health.Run(gctx) })

	if a.InProcessWorkers() {
		slog.Info("[Main] Memory queue selected, running workers in-process",
			slog.Int("concurrency", cfg.Jobs.Concurrency))
		g.Go(func() error { return a.Worker().Start(gctx) })
		g.Go(func() error { return a.Maintenance().Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("[Main] Stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("[Main] Shutdown complete")
}
