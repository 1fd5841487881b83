package services

import (
	"context"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func newProcessorFixture(t *testing.T) (*fixture, *RecurringProcessor) {
	t.Helper()
	f := newFixture(t)
	return f, NewRecurringProcessor(f.repo, f.svc, testLogger())
}

func (f *fixture) seedRecurring(t *testing.T, every core.Frequency, start, nextRun core.Date, end core.Date) storage.RecurringRecord {
	t.Helper()
	rec, err := f.repo.CreateRecurring(context.Background(), f.userID, core.RecurringTransaction{
		Type:        core.Expense,
		Amount:      core.Money{Cents: 90000},
		Description: "rent",
		CategoryID:  f.food.ID,
		Every:       every,
		StartDate:   start,
		EndDate:     end,
	}, nextRun)
	if err != nil {
		t.Fatalf("create recurring: %v", err)
	}
	return rec
}

func TestProcessDueMaterializesTransaction(t *testing.T) {
	f, p := newProcessorFixture(t)
	ctx := context.Background()
	rec := f.seedRecurring(t, core.FreqMonthly, core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 1), core.Date{})

	n, err := p.ProcessDue(ctx, core.NewDate(2024, 3, 1))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 created, got %d", n)
	}

	txs, total, err := f.repo.ListTransactions(ctx, f.userID, storage.TransactionFilter{})
	if err != nil || total != 1 {
		t.Fatalf("expected 1 transaction, got %d (%v)", total, err)
	}
	if txs[0].Date.String() != "2024-03-01" || txs[0].Amount.Cents != 90000 {
		t.Fatalf("materialized transaction wrong: %+v", txs[0])
	}

	got, err := f.repo.GetRecurring(ctx, f.userID, rec.ID)
	if err != nil {
		t.Fatalf("get recurring: %v", err)
	}
	if got.NextRun.String() != "2024-04-01" {
		t.Fatalf("next run expected 2024-04-01, got %s", got.NextRun)
	}

	// same day again: nothing due
	n, err = p.ProcessDue(ctx, core.NewDate(2024, 3, 1))
	if err != nil || n != 0 {
		t.Fatalf("second pass expected 0, got %d (%v)", n, err)
	}
}

func TestProcessDueCatchesUpMissedRuns(t *testing.T) {
	f, p := newProcessorFixture(t)
	ctx := context.Background()
	f.seedRecurring(t, core.FreqMonthly, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 1), core.Date{})

	// three months behind: one pass creates all three
	n, err := p.ProcessDue(ctx, core.NewDate(2024, 3, 15))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 catch-up runs, got %d", n)
	}

	_, total, err := f.repo.ListTransactions(ctx, f.userID, storage.TransactionFilter{})
	if err != nil || total != 3 {
		t.Fatalf("expected 3 transactions, got %d (%v)", total, err)
	}
}

func TestProcessDueDeactivatesFinishedTemplate(t *testing.T) {
	f, p := newProcessorFixture(t)
	ctx := context.Background()
	rec := f.seedRecurring(t, core.FreqMonthly,
		core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 28))

	n, err := p.ProcessDue(ctx, core.NewDate(2024, 6, 1))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the february run, got %d", n)
	}

	got, err := f.repo.GetRecurring(ctx, f.userID, rec.ID)
	if err != nil {
		t.Fatalf("get recurring: %v", err)
	}
	if got.Active {
		t.Fatalf("template past its end date should be deactivated")
	}
}

func TestProcessDueFeedsBudgets(t *testing.T) {
	f, p := newProcessorFixture(t)
	ctx := context.Background()
	b := f.marchBudget(t, 100000)
	f.seedRecurring(t, core.FreqMonthly, core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 1), core.Date{})

	if _, err := p.ProcessDue(ctx, core.NewDate(2024, 3, 1)); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := f.repo.GetBudget(ctx, f.userID, b.ID)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if got.Spent.Cents != 90000 {
		t.Fatalf("materialized spend should hit the budget, got %d", got.Spent.Cents)
	}
	// 90% of 100000 crosses the 80% warning threshold
	if len(f.pub.alerts) != 1 {
		t.Fatalf("expected a warning alert from materialized run, got %d", len(f.pub.alerts))
	}
}
