package services

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

var ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")

// EventPublisher is the slice of the AMQP client the service needs.
// A nil publisher means events are handled inline.
type EventPublisher interface {
	PublishTransactionSync(ctx context.Context, transactionID, userID int64) error
	PublishBudgetAlert(ctx context.Context, alert amqp.BudgetAlertMessage) error
}

// TransactionService orchestrates transaction writes: category contract,
// persistence, budget upkeep and event publishing.
type TransactionService struct {
	repo      *storage.Repository
	publisher EventPublisher
	logger    *log.Logger
}

func NewTransactionService(repo *storage.Repository, publisher EventPublisher, logger *log.Logger) *TransactionService {
	return &TransactionService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentService),
	}
}

// Create validates and persists a transaction, then refreshes affected
// budgets and publishes a sync request. Broker trouble never fails the
// write; the periodic scan picks the row up later.
func (s *TransactionService) Create(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	cat, err := s.checkCategoryContract(ctx, userID, t)
	if err != nil {
		return core.Transaction{}, err
	}

	created, err := s.repo.CreateTransaction(ctx, userID, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldUserID, userID,
		log.FieldTxID, created.ID,
		log.FieldTxType, created.Type,
		log.FieldAmountCents, created.Amount.Cents)

	s.afterWrite(ctx, userID, created, cat)
	return created, nil
}

// Update replaces a transaction and refreshes budgets around both the old
// and the new placement.
func (s *TransactionService) Update(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	cat, err := s.checkCategoryContract(ctx, userID, t)
	if err != nil {
		return core.Transaction{}, err
	}

	old, err := s.repo.GetTransaction(ctx, userID, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.repo.UpdateTransaction(ctx, userID, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	if old.CategoryID != updated.CategoryID || old.Date != updated.Date {
		s.refreshBudgets(ctx, userID, old.CategoryID, old.Date)
	}
	s.afterWrite(ctx, userID, updated, cat)
	return updated, nil
}

// Delete removes a transaction and walks affected budgets back.
func (s *TransactionService) Delete(ctx context.Context, userID, id int64) error {
	old, err := s.repo.GetTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldUserID, userID, log.FieldTxID, id)

	s.refreshBudgets(ctx, userID, old.CategoryID, old.Date)
	return nil
}

// checkCategoryContract enforces that the referenced category exists, is
// active and records the same flow direction as the transaction.
func (s *TransactionService) checkCategoryContract(ctx context.Context, userID int64, t core.Transaction) (core.Category, error) {
	cat, err := s.repo.GetCategory(ctx, userID, t.CategoryID)
	if err != nil {
		return core.Category{}, err
	}
	if !cat.Active {
		return core.Category{}, storage.ErrCategoryInactive
	}
	if cat.Type != t.Type {
		return core.Category{}, ErrCategoryTypeMismatch
	}
	return cat, nil
}

func (s *TransactionService) afterWrite(ctx context.Context, userID int64, t core.Transaction, cat core.Category) {
	if t.Type == core.Expense {
		s.refreshBudgetsWithAlerts(ctx, userID, cat, t.Date)
	}
	s.publishSync(ctx, userID, t.ID)
}

// refreshBudgets recomputes spent totals without alerting; used for the
// vacated side of moves and for deletes, where spending only drops.
func (s *TransactionService) refreshBudgets(ctx context.Context, userID, categoryID int64, date core.Date) {
	budgets, err := s.repo.ListBudgetsCovering(ctx, userID, categoryID, date)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list budgets for refresh",
			log.FieldUserID, userID, log.FieldCategoryID, categoryID, log.FieldError, err)
		return
	}
	for _, b := range budgets {
		if err := s.repo.RefreshBudgetSpent(ctx, userID, b.ID); err != nil {
			s.logger.ErrorContext(ctx, "Failed to refresh budget spent",
				log.FieldBudgetID, b.ID, log.FieldError, err)
			continue
		}
		s.reconcileAlertFlags(ctx, userID, b.ID)
	}
}

func (s *TransactionService) refreshBudgetsWithAlerts(ctx context.Context, userID int64, cat core.Category, date core.Date) {
	budgets, err := s.repo.ListBudgetsCovering(ctx, userID, cat.ID, date)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list budgets for refresh",
			log.FieldUserID, userID, log.FieldCategoryID, cat.ID, log.FieldError, err)
		return
	}
	for _, b := range budgets {
		if err := s.repo.RefreshBudgetSpent(ctx, userID, b.ID); err != nil {
			s.logger.ErrorContext(ctx, "Failed to refresh budget spent",
				log.FieldBudgetID, b.ID, log.FieldError, err)
			continue
		}
		fresh, err := s.repo.GetBudget(ctx, userID, b.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to reload budget",
				log.FieldBudgetID, b.ID, log.FieldError, err)
			continue
		}
		s.evaluateAlert(ctx, userID, fresh, cat.Name)
	}
}

// evaluateAlert fires at most one notification per threshold per budget
// window. Crossing back under all thresholds re-arms the alerts.
func (s *TransactionService) evaluateAlert(ctx context.Context, userID int64, b core.Budget, categoryName string) {
	status := core.StatusFromSpent(b, b.Spent)

	flags, err := s.repo.GetAlertFlags(ctx, userID, b.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read alert flags",
			log.FieldBudgetID, b.ID, log.FieldError, err)
		return
	}

	var already bool
	switch status.State {
	case core.BudgetGood:
		if flags.Warning || flags.Critical || flags.Exceeded {
			if err := s.repo.ClearAlertFlags(ctx, userID, b.ID); err != nil {
				s.logger.ErrorContext(ctx, "Failed to clear alert flags",
					log.FieldBudgetID, b.ID, log.FieldError, err)
			}
		}
		return
	case core.BudgetWarning:
		already = flags.Warning
	case core.BudgetCritical:
		already = flags.Critical
	case core.BudgetExceeded:
		already = flags.Exceeded
	}
	if already {
		return
	}

	alert := amqp.BudgetAlertMessage{
		UserID:         userID,
		BudgetID:       b.ID,
		CategoryName:   categoryName,
		State:          string(status.State),
		PercentageUsed: status.PercentageUsed,
		SpentCents:     status.Spent.Cents,
		AmountCents:    b.Amount.Cents,
	}

	if s.publisher != nil {
		if err := s.publisher.PublishBudgetAlert(ctx, alert); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish budget alert",
				log.FieldBudgetID, b.ID, log.FieldBudgetState, status.State, log.FieldError, err)
			// fall through to inline notification so the alert is not lost
			s.storeNotification(ctx, alert)
		}
	} else {
		s.storeNotification(ctx, alert)
	}

	if err := s.repo.MarkAlertNotified(ctx, userID, b.ID, status.State); err != nil {
		s.logger.ErrorContext(ctx, "Failed to mark alert notified",
			log.FieldBudgetID, b.ID, log.FieldError, err)
	}

	s.logger.InfoContext(ctx, "Budget alert raised",
		log.FieldUserID, userID,
		log.FieldBudgetID, b.ID,
		log.FieldBudgetState, status.State,
		"percentage_used", status.PercentageUsed)
}

// reconcileAlertFlags re-arms alerts after spending dropped.
func (s *TransactionService) reconcileAlertFlags(ctx context.Context, userID, budgetID int64) {
	b, err := s.repo.GetBudget(ctx, userID, budgetID)
	if err != nil {
		return
	}
	if core.StatusFromSpent(b, b.Spent).State == core.BudgetGood {
		if err := s.repo.ClearAlertFlags(ctx, userID, budgetID); err != nil {
			s.logger.ErrorContext(ctx, "Failed to clear alert flags",
				log.FieldBudgetID, budgetID, log.FieldError, err)
		}
	}
}

func (s *TransactionService) storeNotification(ctx context.Context, alert amqp.BudgetAlertMessage) {
	msg := FormatAlertMessage(alert)
	if _, err := s.repo.CreateNotification(ctx, alert.UserID, alert.BudgetID, core.BudgetState(alert.State), msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to store notification",
			log.FieldBudgetID, alert.BudgetID, log.FieldError, err)
	}
}

func (s *TransactionService) publishSync(ctx context.Context, userID, transactionID int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, transactionID, userID); err != nil {
		// non-fatal: the pending scan re-enqueues the row
		s.logger.WarnContext(ctx, "Failed to publish sync message",
			log.FieldTxID, transactionID, log.FieldError, err)
	}
}

// FormatAlertMessage renders the human-readable notification text for a
// budget alert. Shared by the service fallback and the worker.
func FormatAlertMessage(alert amqp.BudgetAlertMessage) string {
	spent := core.Money{Cents: alert.SpentCents}
	amount := core.Money{Cents: alert.AmountCents}
	switch core.BudgetState(alert.State) {
	case core.BudgetExceeded:
		return fmt.Sprintf("%s budget exceeded: %.2f of %.2f spent (%.0f%%)",
			alert.CategoryName, spent.Float64(), amount.Float64(), alert.PercentageUsed)
	case core.BudgetCritical:
		return fmt.Sprintf("%s budget critical: %.2f of %.2f spent (%.0f%%)",
			alert.CategoryName, spent.Float64(), amount.Float64(), alert.PercentageUsed)
	default:
		return fmt.Sprintf("%s budget at %.0f%%: %.2f of %.2f spent",
			alert.CategoryName, alert.PercentageUsed, spent.Float64(), amount.Float64())
	}
}
