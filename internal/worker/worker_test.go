package worker

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

type fakeAppender struct {
	rows    []storage.ExportRow
	failAll bool
}

func (f *fakeAppender) AppendRow(_ context.Context, row storage.ExportRow) error {
	if f.failAll {
		return errors.New("sheets unavailable")
	}
	f.rows = append(f.rows, row)
	return nil
}

type workerFixture struct {
	repo     *storage.Repository
	appender *fakeAppender
	worker   *EventWorker
	userID   int64
	catID    int64
	budgetID int64
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	u, err := repo.CreateUser(ctx, "worker@example.com", "W", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	cat, err := repo.CreateCategory(ctx, u.ID, core.Category{Name: "Food", Type: core.Expense})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	b, err := repo.CreateBudget(ctx, u.ID, core.Budget{
		CategoryID: cat.ID, Amount: core.Money{Cents: 12000}, Period: core.PeriodMonthly,
		StartDate: core.NewDate(2024, 3, 1), EndDate: core.NewDate(2024, 3, 31),
		Thresholds: core.DefaultThresholds(),
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}

	appender := &fakeAppender{}
	logger := log.New(log.Config{Level: slog.LevelError, Component: log.ComponentWorker})
	return &workerFixture{
		repo:     repo,
		appender: appender,
		worker:   New(repo, appender, logger, 10),
		userID:   u.ID,
		catID:    cat.ID,
		budgetID: b.ID,
	}
}

func (f *workerFixture) seedTx(t *testing.T, cents int64) core.Transaction {
	t.Helper()
	tx, err := f.repo.CreateTransaction(context.Background(), f.userID, core.Transaction{
		Type: core.Expense, Amount: core.Money{Cents: cents}, Description: "spend",
		CategoryID: f.catID, Date: core.NewDate(2024, 3, 10),
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return tx
}

func TestHandleSyncMirrorsAndMarks(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	tx := f.seedTx(t, 5000)

	err := f.worker.HandleMessage(ctx, amqp.NewTransactionSyncMessage(tx.ID, f.userID))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(f.appender.rows) != 1 {
		t.Fatalf("expected 1 mirrored row, got %d", len(f.appender.rows))
	}
	row := f.appender.rows[0]
	if row.CategoryName != "Food" || row.Amount.Cents != 5000 || row.Date.String() != "2024-03-10" {
		t.Fatalf("mirrored row wrong: %+v", row)
	}

	pending, err := f.repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("row should be marked synced, still pending: %+v", pending)
	}
}

func TestHandleSyncDeletedTransaction(t *testing.T) {
	f := newWorkerFixture(t)
	// message for a row that no longer exists: ack, don't requeue
	err := f.worker.HandleMessage(context.Background(), amqp.NewTransactionSyncMessage(9999, f.userID))
	if err != nil {
		t.Fatalf("deleted transaction should not error, got %v", err)
	}
}

func TestHandleSyncAppendFailure(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	tx := f.seedTx(t, 5000)
	f.appender.failAll = true

	err := f.worker.HandleMessage(ctx, amqp.NewTransactionSyncMessage(tx.ID, f.userID))
	if err == nil {
		t.Fatalf("append failure must propagate for requeue")
	}
	// row is flagged so the pending scan can retry it after the error state
	pending, _ := f.repo.GetPendingSyncTransactions(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("errored row should leave pending state, got %+v", pending)
	}
}

func TestHandleAlertStoresNotification(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	msg := amqp.NewBudgetAlertMessage(amqp.BudgetAlertMessage{
		UserID: f.userID, BudgetID: f.budgetID, CategoryName: "Food",
		State: string(core.BudgetExceeded), PercentageUsed: 125,
		SpentCents: 15000, AmountCents: 12000,
	})
	if err := f.worker.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	notifs, err := f.repo.ListNotifications(ctx, f.userID, true)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifs))
	}
	if notifs[0].State != core.BudgetExceeded || notifs[0].BudgetID != f.budgetID {
		t.Fatalf("notification wrong: %+v", notifs[0])
	}
	if notifs[0].Message == "" {
		t.Fatalf("notification should carry rendered text")
	}
}

func TestProcessPendingBackfill(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	f.seedTx(t, 1000)
	f.seedTx(t, 2000)

	if err := f.worker.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if len(f.appender.rows) != 2 {
		t.Fatalf("expected 2 mirrored rows, got %d", len(f.appender.rows))
	}

	// second pass is a no-op
	if err := f.worker.ProcessPending(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(f.appender.rows) != 2 {
		t.Fatalf("already-synced rows must not repeat, got %d", len(f.appender.rows))
	}
}

func TestNilAppenderSkipsMirror(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	tx := f.seedTx(t, 1000)

	logger := log.New(log.Config{Level: slog.LevelError, Component: log.ComponentWorker})
	w := New(f.repo, nil, logger, 10)

	if err := w.HandleMessage(ctx, amqp.NewTransactionSyncMessage(tx.ID, f.userID)); err != nil {
		t.Fatalf("nil appender should ack quietly, got %v", err)
	}
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("nil appender pending scan should no-op, got %v", err)
	}
	// row stays pending for when an exporter appears
	pending, _ := f.repo.GetPendingSyncTransactions(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("row should stay pending, got %d", len(pending))
	}
}
