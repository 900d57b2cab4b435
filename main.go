package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/perpdash/config"
	"github.com/vadiminshakov/perpdash/dashboard"
	"github.com/vadiminshakov/perpdash/internal"
	"github.com/vadiminshakov/perpdash/internal/setup"
	"github.com/vadiminshakov/perpdash/internal/storage/snapshots"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// PRIVATE_KEY and friends may live in a local .env
	_ = godotenv.Load()

	runSetup := flag.Bool("setup", false, "run the interactive configuration wizard")

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	if *runSetup {
		if err := setup.RunTUI(); err != nil {
			logger.Fatal("setup wizard failed", zap.Error(err))
		}
		cfg, err = config.Load("config.gen.yaml")
		if err != nil {
			logger.Fatal("failed to load generated configuration", zap.Error(err))
		}
	}

	store, err := snapshots.NewWALStore(cfg.SnapshotDir)
	if err != nil {
		logger.Fatal("failed to open snapshot journal", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := internal.NewApp(cfg, store, logger)
	server := dashboard.NewServer(cfg.DashboardAddr, store)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Run(ctx)
	})
	g.Go(func() error {
		if len(cfg.TLSDomains) > 0 {
			logger.Info("dashboard with automatic TLS", zap.Strings("domains", cfg.TLSDomains))
			return server.StartWithAutoTLS(ctx, cfg.TLSDomains, cfg.CertCacheDir)
		}
		logger.Info("dashboard listening", zap.String("addr", cfg.DashboardAddr))
		return server.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(err.Error())
	}
}
