package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ledgermatch/reconcile-backend/internal/application/engine"
	"github.com/ledgermatch/reconcile-backend/internal/cli"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/config"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/logging"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
)

func main() {
	flags := cli.ParseRunFlags()
	if flags.UserID == "" {
		fmt.Fprintln(os.Stderr, "error: -user is required")
		fmt.Fprintln(os.Stderr, "usage: reconcile -user <id> [-config file] [-dry-run] [-verbose]")
		os.Exit(2)
	}

	cfg := config.LoadOrEnvWithPath(flags.ConfigFile)

	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "reconcile")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	cli.PrintHeader(flags.UserID, flags.DryRun)

	eng := engine.New(store, cfg.Engine, cfg.Consistency, logger)
	summary, err := eng.Run(context.Background(), engine.Options{
		UserID: flags.UserID,
		DryRun: flags.DryRun,
	})
	if err != nil {
		logger.Error("matching run failed", "error", err)
		os.Exit(1)
	}

	cli.PrintRunSummary(summary)

	if summary.Errored > 0 {
		os.Exit(1)
	}
}
