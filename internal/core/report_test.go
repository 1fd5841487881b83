package core

import (
	"testing"
	"time"
)

func tx(typ TransactionType, cents int64, catID int64, y, m, d int) Transaction {
	return Transaction{
		Type:        typ,
		Amount:      Money{Cents: cents},
		Description: "t",
		CategoryID:  catID,
		Date:        NewDate(y, m, d),
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.IncomeTotal.Cents != 0 || s.ExpenseTotal.Cents != 0 || s.Balance.Cents != 0 ||
		s.IncomeCount != 0 || s.ExpenseCount != 0 {
		t.Fatalf("expected all-zero summary, got %+v", s)
	}
}

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		tx(Expense, 10000, 1, 2024, 3, 1),
		tx(Expense, 5000, 1, 2024, 3, 15),
		tx(Income, 50000, 2, 2024, 3, 10),
	}
	s := Summarize(txs)
	if s.IncomeTotal.Cents != 50000 {
		t.Fatalf("income expected 50000, got %d", s.IncomeTotal.Cents)
	}
	if s.ExpenseTotal.Cents != 15000 {
		t.Fatalf("expense expected 15000, got %d", s.ExpenseTotal.Cents)
	}
	if s.Balance.Cents != 35000 {
		t.Fatalf("balance expected 35000, got %d", s.Balance.Cents)
	}
	if s.IncomeCount != 1 || s.ExpenseCount != 2 {
		t.Fatalf("counts expected 1/2, got %d/%d", s.IncomeCount, s.ExpenseCount)
	}
}

func TestSummarizeBalanceProperty(t *testing.T) {
	lists := [][]Transaction{
		nil,
		{tx(Income, 1, 1, 2024, 1, 1)},
		{tx(Expense, 99999, 1, 2024, 6, 30), tx(Income, 1, 2, 2024, 6, 30)},
		{tx(Expense, 100, 1, 2024, 1, 1), tx(Expense, 200, 2, 2024, 2, 2), tx(Income, 50, 3, 2024, 3, 3)},
	}
	for i, txs := range lists {
		s := Summarize(txs)
		if s.Balance.Cents != s.IncomeTotal.Cents-s.ExpenseTotal.Cents {
			t.Fatalf("case %d: balance %d != income %d - expense %d",
				i, s.Balance.Cents, s.IncomeTotal.Cents, s.ExpenseTotal.Cents)
		}
	}
}

func TestBreakdownByCategory(t *testing.T) {
	cats := []Category{
		{ID: 1, Name: "Food", Type: Expense, Color: "#ff0000", Active: true},
		{ID: 2, Name: "Rent", Type: Expense, Color: "#00ff00", Active: false}, // deactivated, still resolvable
	}
	txs := []Transaction{
		tx(Expense, 3000, 1, 2024, 3, 1),
		tx(Expense, 1000, 1, 2024, 3, 2),
		tx(Expense, 90000, 2, 2024, 3, 3),
		tx(Expense, 500, 42, 2024, 3, 4), // unresolvable reference
		tx(Income, 7000, 1, 2024, 3, 5),  // wrong type, excluded
	}

	out := BreakdownByCategory(txs, cats, Expense)
	if len(out) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(out))
	}
	if out[0].Name != "Rent" || out[0].Total.Cents != 90000 || out[0].Count != 1 {
		t.Fatalf("group 0 unexpected: %+v", out[0])
	}
	if out[0].Color != "#00ff00" {
		t.Fatalf("deactivated category should keep last known color, got %s", out[0].Color)
	}
	if out[1].Name != "Food" || out[1].Total.Cents != 4000 || out[1].Count != 2 || out[1].Avg.Cents != 2000 {
		t.Fatalf("group 1 unexpected: %+v", out[1])
	}
	if out[2].Name != UncategorizedName || out[2].CategoryID != 0 || out[2].Total.Cents != 500 {
		t.Fatalf("group 2 should be the uncategorized bucket: %+v", out[2])
	}

	// Group totals must sum to the typed summary total.
	var sum int64
	for _, g := range out {
		sum += g.Total.Cents
	}
	if want := Summarize(txs).ExpenseTotal.Cents; sum != want {
		t.Fatalf("breakdown sum %d != summary expense total %d", sum, want)
	}
}

func TestBreakdownEmpty(t *testing.T) {
	if out := BreakdownByCategory(nil, nil, Expense); len(out) != 0 {
		t.Fatalf("expected empty breakdown, got %d groups", len(out))
	}
}

func TestMonthlyTrendAlwaysTwelveBuckets(t *testing.T) {
	cases := [][]Transaction{
		nil,
		{tx(Income, 100, 1, 2024, 7, 4)},
		{tx(Expense, 100, 1, 2024, 1, 1), tx(Expense, 100, 1, 2024, 12, 31)},
	}
	for i, txs := range cases {
		buckets := MonthlyTrend(txs, 2024)
		if len(buckets) != 12 {
			t.Fatalf("case %d: expected 12 buckets, got %d", i, len(buckets))
		}
		for m := 0; m < 12; m++ {
			if buckets[m].Month != time.Month(m+1) {
				t.Fatalf("case %d: bucket %d out of calendar order: %v", i, m, buckets[m].Month)
			}
		}
	}
}

func TestMonthlyTrend(t *testing.T) {
	txs := []Transaction{
		tx(Income, 50000, 2, 2024, 3, 10),
		tx(Expense, 10000, 1, 2024, 3, 1),
		tx(Expense, 5000, 1, 2024, 3, 15),
		tx(Expense, 123, 1, 2023, 3, 15), // other year, ignored
		tx(Expense, 700, 1, 2024, 11, 2),
	}
	buckets := MonthlyTrend(txs, 2024)

	march := buckets[2]
	if march.Income.Cents != 50000 || march.Expense.Cents != 15000 || march.Balance.Cents != 35000 {
		t.Fatalf("march unexpected: %+v", march)
	}
	if march.IncomeCount != 1 || march.ExpenseCount != 2 {
		t.Fatalf("march counts unexpected: %+v", march)
	}
	if buckets[10].Expense.Cents != 700 {
		t.Fatalf("november expected 700, got %d", buckets[10].Expense.Cents)
	}
	if b := buckets[0]; b.Income.Cents != 0 || b.Expense.Cents != 0 || b.Balance.Cents != 0 {
		t.Fatalf("empty month should be zero-filled: %+v", b)
	}
}

func marchBudget(amountCents int64, thr AlertThresholds) Budget {
	return Budget{
		ID:         1,
		CategoryID: 1,
		Amount:     Money{Cents: amountCents},
		Period:     PeriodMonthly,
		StartDate:  NewDate(2024, 3, 1),
		EndDate:    NewDate(2024, 3, 31),
		Thresholds: thr,
	}
}

func TestEvaluateBudgetExceeded(t *testing.T) {
	// The worked example: 150 spent against a 120 cap.
	b := marchBudget(12000, AlertThresholds{Warning: 80, Critical: 95})
	txs := []Transaction{
		tx(Expense, 10000, 1, 2024, 3, 1),
		tx(Expense, 5000, 1, 2024, 3, 15),
		tx(Income, 50000, 2, 2024, 3, 10), // income never counts as spend
	}
	st := EvaluateBudget(b, txs)
	if st.Spent.Cents != 15000 {
		t.Fatalf("spent expected 15000, got %d", st.Spent.Cents)
	}
	if st.Remaining.Cents != 0 {
		t.Fatalf("remaining must clamp at 0, got %d", st.Remaining.Cents)
	}
	if st.PercentageUsed != 125 {
		t.Fatalf("percentage expected 125, got %v", st.PercentageUsed)
	}
	if st.State != BudgetExceeded {
		t.Fatalf("state expected exceeded, got %s", st.State)
	}
}

func TestEvaluateBudgetWindowInclusive(t *testing.T) {
	b := marchBudget(100000, DefaultThresholds())
	txs := []Transaction{
		tx(Expense, 100, 1, 2024, 2, 29), // before window
		tx(Expense, 200, 1, 2024, 3, 1),  // first day, counts
		tx(Expense, 300, 1, 2024, 3, 31), // last day, counts
		tx(Expense, 400, 1, 2024, 4, 1),  // after window
		tx(Expense, 500, 9, 2024, 3, 10), // other category
	}
	st := EvaluateBudget(b, txs)
	if st.Spent.Cents != 500 {
		t.Fatalf("spent expected 500, got %d", st.Spent.Cents)
	}
}

func TestEvaluateBudgetEmptyTransactions(t *testing.T) {
	st := EvaluateBudget(marchBudget(12000, DefaultThresholds()), nil)
	if st.Spent.Cents != 0 || st.PercentageUsed != 0 || st.State != BudgetGood {
		t.Fatalf("empty input should yield zeroed status, got %+v", st)
	}
	if st.Remaining.Cents != 12000 {
		t.Fatalf("remaining expected full amount, got %d", st.Remaining.Cents)
	}
}

func TestEvaluateBudgetZeroAmount(t *testing.T) {
	b := marchBudget(0, DefaultThresholds())
	st := EvaluateBudget(b, []Transaction{tx(Expense, 5000, 1, 2024, 3, 2)})
	if st.PercentageUsed != 0 {
		t.Fatalf("zero amount must not divide, got %v", st.PercentageUsed)
	}
	if st.State != BudgetGood {
		t.Fatalf("zero amount budget state expected good, got %s", st.State)
	}
}

func TestClassifyUsageThresholdOrdering(t *testing.T) {
	cases := []struct {
		pct  float64
		thr  AlertThresholds
		want BudgetState
	}{
		{0, DefaultThresholds(), BudgetGood},
		{79.99, DefaultThresholds(), BudgetGood},
		{80, DefaultThresholds(), BudgetWarning},
		{94.99, DefaultThresholds(), BudgetWarning},
		{95, DefaultThresholds(), BudgetCritical},
		{99.99, DefaultThresholds(), BudgetCritical},
		{100, DefaultThresholds(), BudgetExceeded},
		{125, DefaultThresholds(), BudgetExceeded},
		// exactly 100% is exceeded even when critical is also 100
		{100, AlertThresholds{Warning: 80, Critical: 100}, BudgetExceeded},
	}
	for i, tc := range cases {
		if got := ClassifyUsage(tc.pct, tc.thr); got != tc.want {
			t.Fatalf("case %d: pct=%v expected %s, got %s", i, tc.pct, tc.want, got)
		}
	}
}

func TestStatusFromSpentMatchesEvaluate(t *testing.T) {
	b := marchBudget(12000, DefaultThresholds())
	txs := []Transaction{tx(Expense, 11000, 1, 2024, 3, 20)}
	fromTxs := EvaluateBudget(b, txs)
	fromSpent := StatusFromSpent(b, Money{Cents: 11000})
	if fromTxs != fromSpent {
		t.Fatalf("derivations disagree: %+v vs %+v", fromTxs, fromSpent)
	}
	if fromSpent.State != BudgetWarning {
		t.Fatalf("91.7%% expected warning, got %s", fromSpent.State)
	}
}
