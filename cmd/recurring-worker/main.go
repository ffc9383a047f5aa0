package main

import (
	"context"
	"log/slog"
	"time"

	"tally/internal/cli"
	applog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting recurring worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	materializer := services.NewMaterializer(repo)

	workerLogger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentRecurring,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// First run happens immediately so a worker restart does not delay
	// overdue occurrences by a full interval.
	materializeAll(ctx, repo, materializer, workerLogger)

	ticker := time.NewTicker(cfg.MaterializeInterval)
	defer ticker.Stop()

	logger.Info("Recurring worker running", "interval", cfg.MaterializeInterval.String())

	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.Info("Recurring worker stopped gracefully")
			return
		case <-ticker.C:
			materializeAll(ctx, repo, materializer, workerLogger)
		}
	}
}

func materializeAll(ctx context.Context, repo *storage.SQLiteRepository, materializer *services.Materializer, logger *applog.Logger) {
	accounts, err := repo.ListAccounts(ctx)
	if err != nil {
		logger.Error("Failed to list accounts", "error", err)
		return
	}

	now := time.Now()
	total := 0
	for _, account := range accounts {
		created, err := materializer.MaterializeMissedOccurrences(ctx, account.ID, now)
		if err != nil {
			logger.Error("Materialization failed",
				applog.FieldAccountID, account.ID,
				"error", err)
			continue
		}
		total += created
	}

	if total > 0 {
		logger.Info("Materialized recurring occurrences", applog.FieldCount, total)
	}
}
