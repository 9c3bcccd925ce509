package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgermatch/reconcile-backend/internal/api"
	"github.com/ledgermatch/reconcile-backend/internal/application/engine"
	"github.com/ledgermatch/reconcile-backend/internal/application/review"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/config"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/logging"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
)

// RunServe runs the API server.
func RunServe(cfg *config.Config, flags *ServeFlags) error {
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng := engine.New(store, cfg.Engine, cfg.Consistency, logging.NewLoggerWithSystem(loggingCfg, "engine"))
	rev := review.NewService(store, cfg.Engine.Rules, cfg.Engine.FeeAccountCode, logging.NewLoggerWithSystem(loggingCfg, "review"))

	port := cfg.Server.Port
	if flags.Port > 0 {
		port = flags.Port
	}
	apiCfg := api.Config{
		Port:           port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if len(apiCfg.AllowedOrigins) == 0 {
		apiCfg.AllowedOrigins = api.DefaultConfig().AllowedOrigins
	}

	server := api.NewServer(apiCfg, store, eng, rev, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
