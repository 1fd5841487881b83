package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2024 || d.Time.Month() != time.March || d.Day() != 15 {
		t.Fatalf("unexpected date %v", d)
	}
	if d.String() != "2024-03-15" {
		t.Fatalf("round trip expected 2024-03-15, got %s", d.String())
	}
	if _, err := ParseDate("15/03/2024"); err == nil {
		t.Fatalf("expected error for wrong format")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:        Expense,
		Amount:      Money{Cents: 100},
		Description: "groceries",
		CategoryID:  1,
		Date:        NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Type: "transfer", Amount: Money{Cents: 1}, Description: "a", CategoryID: 1, Date: NewDate(2025, 1, 1)},
		{Type: Expense, Amount: Money{Cents: 0}, Description: "a", CategoryID: 1, Date: NewDate(2025, 1, 1)},
		{Type: Expense, Amount: Money{Cents: 1}, Description: "  ", CategoryID: 1, Date: NewDate(2025, 1, 1)},
		{Type: Expense, Amount: Money{Cents: 1}, Description: "a", CategoryID: 0, Date: NewDate(2025, 1, 1)},
		{Type: Expense, Amount: Money{Cents: 1}, Description: "a", CategoryID: 1},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCategoryValidate(t *testing.T) {
	good := Category{Name: "Food", Type: Expense, Color: "#ff8800"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Name: "Food", Type: Expense}).Validate(); err != nil {
		t.Fatalf("empty color should be allowed, got %v", err)
	}

	bads := []Category{
		{Name: "", Type: Expense},
		{Name: "x", Type: "other"},
		{Name: "x", Type: Income, Color: "red"},
		{Name: "x", Type: Income, Color: "#12345g"},
		{Name: string(make([]byte, 51)), Type: Income},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{
		CategoryID: 1,
		Amount:     Money{Cents: 12000},
		Period:     PeriodMonthly,
		StartDate:  NewDate(2024, 3, 1),
		EndDate:    NewDate(2024, 3, 31),
		Thresholds: DefaultThresholds(),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Budget{
		func() Budget { b := good; b.CategoryID = 0; return b }(),
		func() Budget { b := good; b.Amount.Cents = 0; return b }(),
		func() Budget { b := good; b.Period = "daily"; return b }(),
		func() Budget { b := good; b.EndDate = NewDate(2024, 2, 1); return b }(),
		func() Budget { b := good; b.Thresholds = AlertThresholds{Warning: 90, Critical: 80}; return b }(),
		func() Budget { b := good; b.Thresholds = AlertThresholds{Warning: 50, Critical: 120}; return b }(),
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestRecurringTransactionValidate(t *testing.T) {
	good := RecurringTransaction{
		Type:        Expense,
		Amount:      Money{Cents: 999},
		Description: "rent",
		CategoryID:  2,
		Every:       FreqMonthly,
		StartDate:   NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Every = "biweekly"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for unknown frequency")
	}
	bad = good
	bad.EndDate = NewDate(2024, 1, 1)
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for end before start")
	}
}
