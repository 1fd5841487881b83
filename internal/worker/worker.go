// Package worker consumes the event queue: it mirrors transactions to the
// spreadsheet and turns budget alerts into stored notifications.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// RowAppender is the slice of the sheet exporter the worker needs. A nil
// appender disables the mirror; sync messages are then acked untouched so
// rows stay pending until an exporter is configured.
type RowAppender interface {
	AppendRow(ctx context.Context, row storage.ExportRow) error
}

// EventWorker dispatches queue messages and runs the pending-row scan that
// backs up lost deliveries.
type EventWorker struct {
	repo      *storage.Repository
	appender  RowAppender
	logger    *log.Logger
	batchSize int
}

func New(repo *storage.Repository, appender RowAppender, logger *log.Logger, batchSize int) *EventWorker {
	return &EventWorker{
		repo:      repo,
		appender:  appender,
		logger:    logger.WithComponent(log.ComponentWorker),
		batchSize: batchSize,
	}
}

// HandleMessage dispatches one queue message. Errors bubble up to the
// consumer, which nacks with requeue.
func (w *EventWorker) HandleMessage(ctx context.Context, msg *amqp.Message) error {
	switch msg.Kind {
	case amqp.KindTransactionSync:
		return w.handleSync(ctx, msg.TransactionSync)
	case amqp.KindBudgetAlert:
		return w.handleAlert(ctx, msg.BudgetAlert)
	default:
		// Validate() upstream makes this unreachable; drop rather than requeue
		w.logger.WarnContext(ctx, "Dropping message of unknown kind", "kind", msg.Kind)
		return nil
	}
}

func (w *EventWorker) handleSync(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	if w.appender == nil {
		return nil
	}

	row, err := w.repo.GetExportRow(ctx, msg.TransactionID)
	if errors.Is(err, storage.ErrNotFound) {
		// deleted before the worker got to it; nothing to mirror
		w.logger.InfoContext(ctx, "Transaction gone before sync",
			log.FieldTxID, msg.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load export row: %w", err)
	}

	return w.mirrorRow(ctx, row)
}

func (w *EventWorker) handleAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	text := services.FormatAlertMessage(*msg)
	if _, err := w.repo.CreateNotification(ctx, msg.UserID, msg.BudgetID, core.BudgetState(msg.State), text); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	w.logger.InfoContext(ctx, "Stored budget alert notification",
		log.FieldUserID, msg.UserID,
		log.FieldBudgetID, msg.BudgetID,
		log.FieldBudgetState, msg.State)
	return nil
}

// ProcessPending mirrors rows the queue missed. It is the backup path for
// lost deliveries and broker downtime.
func (w *EventWorker) ProcessPending(ctx context.Context) error {
	return w.processPendingBatch(ctx, w.batchSize)
}

// StartupCheck drains a larger pending backlog once at boot, recovering
// from worker downtime.
func (w *EventWorker) StartupCheck(ctx context.Context) error {
	return w.processPendingBatch(ctx, w.batchSize*5)
}

func (w *EventWorker) processPendingBatch(ctx context.Context, limit int) error {
	if w.appender == nil {
		return nil
	}

	pending, err := w.repo.GetPendingSyncTransactions(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	synced, failed := 0, 0
	for _, p := range pending {
		row, err := w.repo.GetExportRow(ctx, p.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to load pending row",
				log.FieldTxID, p.ID, log.FieldError, err)
			if markErr := w.repo.MarkTransactionSyncError(ctx, p.ID); markErr != nil {
				w.logger.ErrorContext(ctx, "Failed to mark sync error",
					log.FieldTxID, p.ID, log.FieldError, markErr)
			}
			failed++
			continue
		}
		if err := w.mirrorRow(ctx, row); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror pending row",
				log.FieldTxID, p.ID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Pending scan complete",
		"total", len(pending), "synced", synced, "errors", failed)
	return nil
}

// RunPendingScan loops ProcessPending on the given interval until ctx is
// cancelled.
func (w *EventWorker) RunPendingScan(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Pending scan failed", log.FieldError, err)
			}
		}
	}
}

func (w *EventWorker) mirrorRow(ctx context.Context, row storage.ExportRow) error {
	if err := w.appender.AppendRow(ctx, row); err != nil {
		if markErr := w.repo.MarkTransactionSyncError(ctx, row.ID); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error",
				log.FieldTxID, row.ID, log.FieldError, markErr)
		}
		return fmt.Errorf("append row: %w", err)
	}

	if err := w.repo.MarkTransactionSynced(ctx, row.ID); err != nil {
		// the append worked; log and move on
		w.logger.ErrorContext(ctx, "Failed to mark transaction synced",
			log.FieldTxID, row.ID, log.FieldError, err)
		return nil
	}

	w.logger.InfoContext(ctx, "Mirrored transaction",
		log.FieldTxID, row.ID,
		log.FieldUserID, row.UserID,
		log.FieldAmountCents, row.Amount.Cents)
	return nil
}
