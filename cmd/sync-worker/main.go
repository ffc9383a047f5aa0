package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/cli"
	"tally/internal/sheets"
	sheetsgoogle "tally/internal/sheets/google"
	sheetsmemory "tally/internal/sheets/memory"
	"tally/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting sync worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var appender sheets.TransactionAppender
	var remover sheets.TransactionRemover
	if cfg.GoogleSpreadsheetID != "" {
		gc, err := sheetsgoogle.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			logger.Warn("Falling back to in-memory mirror - synced transactions will not persist")
			mem := sheetsmemory.New()
			appender, remover = mem, mem
		} else {
			appender, remover = gc, gc
			logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		}
	} else {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, using in-memory mirror")
		mem := sheetsmemory.New()
		appender, remover = mem, mem
	}

	// AMQP is optional: without it the worker runs on the pending-scan
	// ticker alone and still mirrors everything, just with more latency.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, running in scan-only mode", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, running in scan-only mode")
	}

	syncWorker := worker.NewSyncWorker(repo, appender, remover, cfg.SyncBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", "error", err)
	}

	var consume func(context.Context) error
	if amqpClient != nil {
		consume = func(cctx context.Context) error {
			logger.Info("Starting AMQP consumer")
			return amqpClient.ConsumeMessages(cctx, syncWorker.HandleSyncMessage, syncWorker.HandleDeleteMessage)
		}
	}

	logger.Info("Sync worker running",
		"batch_size", cfg.SyncBatchSize,
		"scan_interval", cfg.SyncInterval.String())

	if err := run(ctx, consume, syncWorker.ProcessPendingTransactions, cfg.SyncInterval, logger); err != nil {
		// A dead consumer would leave the worker mirroring nothing;
		// exit so a supervisor restarts it.
		logger.Error("Sync worker failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Sync worker stopped gracefully")
}

// run coordinates the AMQP consume loop and the periodic pending scan
// until the context is cancelled. Either goroutine failing cancels the
// other and the failure is returned; a plain shutdown returns nil.
func run(ctx context.Context, consume func(context.Context) error, scan func(context.Context) error, interval time.Duration, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	if consume != nil {
		g.Go(func() error {
			return consume(gctx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := scan(gctx); err != nil {
					logger.Error("Pending transaction scan failed", "error", err)
				}
			}
		}
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
