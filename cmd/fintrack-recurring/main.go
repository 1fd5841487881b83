package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentRecurring})
	log.SetDefault(logger)

	logger.Info("Starting fintrack-recurring")

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

	// materialized transactions publish the same events as interactive
	// ones, so the sheet mirror and alerts keep working
	var publisher services.EventPublisher
	if cfg.PublishingEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without event publishing", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	txs := services.NewTransactionService(repo, publisher, logger)
	processor := services.NewRecurringProcessor(repo, txs, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval, "db", cfg.SQLiteDBPath)

	runOnce := func(now time.Time) {
		asOf := core.NewDate(now.UTC().Year(), int(now.UTC().Month()), now.UTC().Day())
		count, err := processor.ProcessDue(ctx, asOf)
		if err != nil {
			logger.Error("Recurring processing failed", log.FieldError, err)
			return
		}
		if count > 0 {
			logger.Info("Recurring templates materialized", "transactions_created", count)
		}
	}

	runOnce(time.Now())

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Recurring processor stopped gracefully")
			return
		case now := <-ticker.C:
			runOnce(now)
		}
	}
}
