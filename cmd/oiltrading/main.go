package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/cache"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/config"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/contracts"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/database"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/jobs"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/marketdata"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/risk"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/server"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/tradegroups"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/pkg/logger"
)

func main() {
	// .env is a local-development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("service exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := database.NewPostgresDB(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	contractRepo := contracts.NewRepository(db)
	groupRepo := tradegroups.NewRepository(db)
	prices := marketdata.NewPriceSource(db)
	catalog := marketdata.DefaultCatalog()

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	groupSvc, err := tradegroups.NewService(bootCtx, log, groupRepo, contractRepo)
	cancelBoot()
	if err != nil {
		return fmt.Errorf("init trade group service: %w", err)
	}

	riskSvc := risk.NewService(
		log,
		risk.NewExtractor(contractRepo),
		risk.NewValuer(prices, catalog, cfg.Risk.LookbackWindowDays, log),
		prices,
		catalog,
		groupSvc,
		cfg.Risk,
	)

	snapshots := cache.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Risk.SnapshotTTL)
	scheduler := jobs.NewSnapshotScheduler(log, riskSvc, snapshots)
	if err := scheduler.Start(cfg.Risk.SnapshotSchedule); err != nil {
		return fmt.Errorf("start snapshot scheduler: %w", err)
	}

	srv := server.NewServer(log, riskSvc, groupSvc, snapshots, time.Now)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	scheduler.Stop()
	snapshots.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
