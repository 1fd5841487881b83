package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/export"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting fintrack-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sheets mirror is optional; without it rows stay pending until an
	// exporter is configured.
	var appender worker.RowAppender
	if cfg.SheetsExportEnabled() {
		sheet, err := export.NewSheetAppender(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsSheetName)
		if err != nil {
			logger.Error("Failed to initialize Sheets exporter", log.FieldError, err)
			os.Exit(1)
		}
		appender = sheet
		logger.Info("Sheets exporter initialized", "spreadsheet_id", cfg.SheetsSpreadsheetID)
	} else {
		logger.Info("Sheets export disabled, no SHEETS_SPREADSHEET_ID provided")
	}

	events := worker.New(repo, appender, logger, cfg.ExportBatchSize)

	// catch rows that accumulated while the worker was down
	if err := events.StartupCheck(ctx); err != nil {
		logger.Error("Startup pending check failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.PublishingEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			for {
				err := client.Consume(ctx, func(msg *amqp.Message) error {
					return events.HandleMessage(ctx, msg)
				})
				if err == nil || errors.Is(err, context.Canceled) {
					return nil
				}
				logger.Error("Consume loop failed, reconnecting", log.FieldError, err)
				if err := client.Reconnect(ctx); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
			}
		})
	} else {
		logger.Info("AMQP disabled, relying on the periodic pending scan only")
	}

	g.Go(func() error {
		if err := events.RunPendingScan(ctx, cfg.ExportInterval); err != nil &&
			!errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
