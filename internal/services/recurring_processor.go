package services

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// RecurringProcessor materializes due recurring templates into real
// transactions through the transaction service, so budget upkeep and
// sync publishing apply to generated rows too.
type RecurringProcessor struct {
	repo    *storage.Repository
	txs     *TransactionService
	logger  *log.Logger
	maxRuns int // catch-up ceiling per template per pass
}

func NewRecurringProcessor(repo *storage.Repository, txs *TransactionService, logger *log.Logger) *RecurringProcessor {
	return &RecurringProcessor{
		repo:    repo,
		txs:     txs,
		logger:  logger.WithComponent(log.ComponentRecurring),
		maxRuns: 100,
	}
}

// ProcessDue materializes every run scheduled on or before asOf, catching
// up missed occurrences, and returns how many transactions were created.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, asOf core.Date) (int, error) {
	if p.repo == nil || p.txs == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.repo.ListDueRecurring(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("list due recurring transactions: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing recurring transactions",
		"due", len(due),
		"as_of", asOf.String())

	processed := 0
	for _, rec := range due {
		n, err := p.processTemplate(ctx, rec, asOf)
		processed += n
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to process recurring template",
				"recurring_id", rec.ID,
				log.FieldUserID, rec.UserID,
				log.FieldError, err)
		}
	}

	p.logger.InfoContext(ctx, "Recurring processing complete",
		"processed", processed,
		"templates", len(due))
	return processed, nil
}

func (p *RecurringProcessor) processTemplate(ctx context.Context, rec storage.RecurringRecord, asOf core.Date) (int, error) {
	advancer, err := GetScheduleAdvancer(rec.Every)
	if err != nil {
		return 0, err
	}

	created := 0
	next := rec.NextRun
	for runs := 0; !next.After(asOf.Time) && runs < p.maxRuns; runs++ {
		if !rec.EndDate.IsZero() && next.After(rec.EndDate.Time) {
			if err := p.repo.DeactivateRecurring(ctx, rec.ID); err != nil {
				return created, fmt.Errorf("deactivate finished template: %w", err)
			}
			p.logger.InfoContext(ctx, "Recurring template finished",
				"recurring_id", rec.ID, log.FieldUserID, rec.UserID)
			return created, nil
		}

		tx := core.Transaction{
			Type:        rec.Type,
			Amount:      rec.Amount,
			Description: rec.Description,
			CategoryID:  rec.CategoryID,
			Date:        next,
		}
		if _, err := p.txs.Create(ctx, rec.UserID, tx); err != nil {
			return created, fmt.Errorf("materialize run on %s: %w", next, err)
		}
		created++

		next = advancer.Next(next, rec.StartDate)
		if err := p.repo.AdvanceRecurring(ctx, rec.ID, next); err != nil {
			return created, fmt.Errorf("advance schedule: %w", err)
		}

		p.logger.InfoContext(ctx, "Created transaction from recurring template",
			"recurring_id", rec.ID,
			log.FieldUserID, rec.UserID,
			log.FieldAmountCents, rec.Amount.Cents,
			"frequency", rec.Every)
	}

	// a template whose whole window is behind us stops here
	if !rec.EndDate.IsZero() && next.After(rec.EndDate.Time) {
		if err := p.repo.DeactivateRecurring(ctx, rec.ID); err != nil {
			return created, fmt.Errorf("deactivate finished template: %w", err)
		}
	}
	return created, nil
}
