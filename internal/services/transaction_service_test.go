package services

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

type fakePublisher struct {
	mu      sync.Mutex
	syncs   []int64
	alerts  []amqp.BudgetAlertMessage
	failAll bool
}

func (f *fakePublisher) PublishTransactionSync(_ context.Context, transactionID, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("broker down")
	}
	f.syncs = append(f.syncs, transactionID)
	return nil
}

func (f *fakePublisher) PublishBudgetAlert(_ context.Context, alert amqp.BudgetAlertMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("broker down")
	}
	f.alerts = append(f.alerts, alert)
	return nil
}

func testLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Component: log.ComponentService})
}

type fixture struct {
	repo   *storage.Repository
	pub    *fakePublisher
	svc    *TransactionService
	userID int64
	food   core.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	u, err := repo.CreateUser(ctx, "svc@example.com", "Svc", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	food, err := repo.CreateCategory(ctx, u.ID, core.Category{Name: "Food", Type: core.Expense, Color: "#f44336"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	pub := &fakePublisher{}
	return &fixture{
		repo:   repo,
		pub:    pub,
		svc:    NewTransactionService(repo, pub, testLogger()),
		userID: u.ID,
		food:   food,
	}
}

func (f *fixture) expense(cents int64, y, m, d int) core.Transaction {
	return core.Transaction{
		Type:        core.Expense,
		Amount:      core.Money{Cents: cents},
		Description: "spend",
		CategoryID:  f.food.ID,
		Date:        core.NewDate(y, m, d),
	}
}

func (f *fixture) marchBudget(t *testing.T, cents int64) core.Budget {
	t.Helper()
	b, err := f.repo.CreateBudget(context.Background(), f.userID, core.Budget{
		CategoryID: f.food.ID, Amount: core.Money{Cents: cents}, Period: core.PeriodMonthly,
		StartDate: core.NewDate(2024, 3, 1), EndDate: core.NewDate(2024, 3, 31),
		Thresholds: core.DefaultThresholds(),
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	return b
}

func TestCreatePublishesSyncAndRefreshesBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.marchBudget(t, 100000)

	created, err := f.svc.Create(ctx, f.userID, f.expense(5000, 2024, 3, 10))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(f.pub.syncs) != 1 || f.pub.syncs[0] != created.ID {
		t.Fatalf("expected sync publish for %d, got %v", created.ID, f.pub.syncs)
	}

	got, err := f.repo.GetBudget(ctx, f.userID, b.ID)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if got.Spent.Cents != 5000 {
		t.Fatalf("budget spent expected 5000, got %d", got.Spent.Cents)
	}
	if len(f.pub.alerts) != 0 {
		t.Fatalf("5%% usage must not alert, got %v", f.pub.alerts)
	}
}

func TestCreateCategoryContract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// income transaction against an expense category
	tx := f.expense(100, 2024, 3, 1)
	tx.Type = core.Income
	if _, err := f.svc.Create(ctx, f.userID, tx); !errors.Is(err, ErrCategoryTypeMismatch) {
		t.Fatalf("expected ErrCategoryTypeMismatch, got %v", err)
	}

	// unknown category
	tx = f.expense(100, 2024, 3, 1)
	tx.CategoryID = 9999
	if _, err := f.svc.Create(ctx, f.userID, tx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// deactivated category: reference it from a row, then soft-delete
	if _, err := f.svc.Create(ctx, f.userID, f.expense(100, 2024, 3, 1)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.repo.DeleteCategory(ctx, f.userID, f.food.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.userID, f.expense(100, 2024, 3, 2)); !errors.Is(err, storage.ErrCategoryInactive) {
		t.Fatalf("expected ErrCategoryInactive, got %v", err)
	}
}

func TestCreateSurvivesBrokerOutage(t *testing.T) {
	f := newFixture(t)
	f.pub.failAll = true
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.userID, f.expense(5000, 2024, 3, 10))
	if err != nil {
		t.Fatalf("create must succeed with broker down, got %v", err)
	}
	if _, err := f.repo.GetTransaction(ctx, f.userID, created.ID); err != nil {
		t.Fatalf("transaction should be persisted: %v", err)
	}
}

func TestAlertFiresOncePerThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.marchBudget(t, 12000) // warning at 80%, critical at 95%

	// 85% -> warning
	if _, err := f.svc.Create(ctx, f.userID, f.expense(10200, 2024, 3, 5)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(f.pub.alerts) != 1 || f.pub.alerts[0].State != string(core.BudgetWarning) {
		t.Fatalf("expected one warning alert, got %+v", f.pub.alerts)
	}
	if f.pub.alerts[0].BudgetID != b.ID || f.pub.alerts[0].CategoryName != "Food" {
		t.Fatalf("alert payload wrong: %+v", f.pub.alerts[0])
	}

	// still warning band: no repeat
	if _, err := f.svc.Create(ctx, f.userID, f.expense(100, 2024, 3, 6)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(f.pub.alerts) != 1 {
		t.Fatalf("warning must not repeat, got %d alerts", len(f.pub.alerts))
	}

	// push over 100%: exceeded fires
	if _, err := f.svc.Create(ctx, f.userID, f.expense(5000, 2024, 3, 7)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(f.pub.alerts) != 2 || f.pub.alerts[1].State != string(core.BudgetExceeded) {
		t.Fatalf("expected exceeded alert, got %+v", f.pub.alerts)
	}
}

func TestAlertRearmsAfterSpendingDrops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.marchBudget(t, 12000)

	big, err := f.svc.Create(ctx, f.userID, f.expense(11000, 2024, 3, 5)) // ~92%: warning
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(f.pub.alerts) != 1 {
		t.Fatalf("expected warning alert, got %d", len(f.pub.alerts))
	}

	// deleting the expense drops usage to 0 and re-arms the alert
	if err := f.svc.Delete(ctx, f.userID, big.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.userID, f.expense(11000, 2024, 3, 6)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(f.pub.alerts) != 2 {
		t.Fatalf("warning should fire again after re-arm, got %d alerts", len(f.pub.alerts))
	}
}

func TestAlertStoredInlineWithoutPublisher(t *testing.T) {
	f := newFixture(t)
	svc := NewTransactionService(f.repo, nil, testLogger())
	ctx := context.Background()
	f.marchBudget(t, 12000)

	if _, err := svc.Create(ctx, f.userID, f.expense(15000, 2024, 3, 5)); err != nil {
		t.Fatalf("create: %v", err)
	}

	notifs, err := f.repo.ListNotifications(ctx, f.userID, true)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifs) != 1 || notifs[0].State != core.BudgetExceeded {
		t.Fatalf("expected one exceeded notification, got %+v", notifs)
	}
}

func TestUpdateMovesSpendBetweenBudgets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	march := f.marchBudget(t, 100000)
	april, err := f.repo.CreateBudget(ctx, f.userID, core.Budget{
		CategoryID: f.food.ID, Amount: core.Money{Cents: 100000}, Period: core.PeriodMonthly,
		StartDate: core.NewDate(2024, 4, 1), EndDate: core.NewDate(2024, 4, 30),
		Thresholds: core.DefaultThresholds(),
	})
	if err != nil {
		t.Fatalf("create april budget: %v", err)
	}

	tx, err := f.svc.Create(ctx, f.userID, f.expense(5000, 2024, 3, 10))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tx.Date = core.NewDate(2024, 4, 10)
	if _, err := f.svc.Update(ctx, f.userID, tx); err != nil {
		t.Fatalf("update: %v", err)
	}

	m, _ := f.repo.GetBudget(ctx, f.userID, march.ID)
	a, _ := f.repo.GetBudget(ctx, f.userID, april.ID)
	if m.Spent.Cents != 0 {
		t.Fatalf("march budget should be vacated, got %d", m.Spent.Cents)
	}
	if a.Spent.Cents != 5000 {
		t.Fatalf("april budget should carry the spend, got %d", a.Spent.Cents)
	}
}

func TestFormatAlertMessage(t *testing.T) {
	msg := FormatAlertMessage(amqp.BudgetAlertMessage{
		CategoryName: "Food", State: string(core.BudgetExceeded),
		PercentageUsed: 125, SpentCents: 15000, AmountCents: 12000,
	})
	if msg != "Food budget exceeded: 150.00 of 120.00 spent (125%)" {
		t.Fatalf("unexpected message: %q", msg)
	}
}
