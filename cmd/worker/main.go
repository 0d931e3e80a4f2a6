package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"genstudio/internal/bootstrap"
	httpapi "genstudio/internal/http"
	"genstudio/internal/infra"
	"genstudio/internal/jobs"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: bootstrap failed")
	}
	// Close waits for dispatched executions so a shutdown does not strand
	// locks until their lease expires.
	defer components.Close()

	sweeper := jobs.NewSweeper(components.Scanner, cfg.RecoveryInterval, logger)
	metricsServer := infra.NewHTTPServer(cfg, cfg.MetricsPort, httpapi.NewMetricsRouter())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Dur("interval", cfg.RecoveryInterval).Str("trigger", cfg.TriggerMode).Msg("worker: started")
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("addr", metricsServer.Addr()).Msg("worker: metrics listening")
		return metricsServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
