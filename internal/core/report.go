package core

import (
	"sort"
	"time"
)

const (
	BudgetGood     BudgetState = "good"
	BudgetWarning  BudgetState = "warning"
	BudgetCritical BudgetState = "critical"
	BudgetExceeded BudgetState = "exceeded"
)

// BudgetState classifies a budget's consumption level.
type BudgetState string

// Summary is the income/expense overview for a set of transactions.
type Summary struct {
	IncomeTotal  Money
	ExpenseTotal Money
	Balance      Money
	IncomeCount  int
	ExpenseCount int
}

// CategoryTotal is one group of the per-category breakdown. Name and
// Color carry the category's last known presentation even when the
// category has since been deactivated.
type CategoryTotal struct {
	CategoryID int64
	Name       string
	Color      string
	Total      Money
	Count      int
	Avg        Money
}

// MonthBucket is one calendar month of the yearly trend series.
type MonthBucket struct {
	Month        time.Month
	Income       Money
	Expense      Money
	Balance      Money
	IncomeCount  int
	ExpenseCount int
}

// BudgetStatus is the derived view of a budget: never stored, always
// computed at the read boundary from the authoritative spent value.
type BudgetStatus struct {
	Spent          Money
	Remaining      Money
	PercentageUsed float64
	State          BudgetState
}

// Uncategorized is the fallback bucket for transactions whose category
// reference cannot be resolved.
const (
	UncategorizedName  = "Uncategorized"
	UncategorizedColor = "#9e9e9e"
)

// Summarize partitions transactions by type and totals each partition.
// An empty input yields the zero Summary.
func Summarize(txs []Transaction) Summary {
	var s Summary
	for _, t := range txs {
		switch t.Type {
		case Income:
			s.IncomeTotal.Cents += t.Amount.Cents
			s.IncomeCount++
		case Expense:
			s.ExpenseTotal.Cents += t.Amount.Cents
			s.ExpenseCount++
		}
	}
	s.Balance = s.IncomeTotal.Sub(s.ExpenseTotal)
	return s
}

// BreakdownByCategory groups transactions of the given type by category
// and returns per-group totals sorted descending by total (name ascending
// on ties, for stable output). Categories are resolved by ID regardless
// of their active flag so that deactivated categories keep their last
// known name and color in historical reports; unresolvable references
// fall into the Uncategorized bucket.
func BreakdownByCategory(txs []Transaction, cats []Category, typ TransactionType) []CategoryTotal {
	byID := make(map[int64]Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	groups := make(map[int64]*CategoryTotal)
	for _, t := range txs {
		if t.Type != typ {
			continue
		}
		key := t.CategoryID
		if _, ok := byID[key]; !ok {
			key = 0
		}
		g, ok := groups[key]
		if !ok {
			g = &CategoryTotal{CategoryID: key, Name: UncategorizedName, Color: UncategorizedColor}
			if c, resolved := byID[key]; resolved {
				g.Name = c.Name
				g.Color = c.Color
			}
			groups[key] = g
		}
		g.Total.Cents += t.Amount.Cents
		g.Count++
	}

	out := make([]CategoryTotal, 0, len(groups))
	for _, g := range groups {
		if g.Count > 0 {
			// half-up rounding on the cent
			g.Avg = Money{Cents: (g.Total.Cents + int64(g.Count)/2) / int64(g.Count)}
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MonthlyTrend buckets the year's transactions by calendar month. The
// result always has exactly 12 entries, January through December, with
// explicit zero buckets for empty months.
func MonthlyTrend(txs []Transaction, year int) []MonthBucket {
	buckets := make([]MonthBucket, 12)
	for i := range buckets {
		buckets[i].Month = time.Month(i + 1)
	}
	for _, t := range txs {
		if t.Date.Year() != year {
			continue
		}
		b := &buckets[int(t.Date.Time.Month())-1]
		switch t.Type {
		case Income:
			b.Income.Cents += t.Amount.Cents
			b.IncomeCount++
		case Expense:
			b.Expense.Cents += t.Amount.Cents
			b.ExpenseCount++
		}
	}
	for i := range buckets {
		buckets[i].Balance = buckets[i].Income.Sub(buckets[i].Expense)
	}
	return buckets
}

// EvaluateBudget computes a budget's spent total from the given
// transactions and derives its status. Spent counts expense transactions
// in the budget's category whose date falls inside [StartDate, EndDate],
// bounds inclusive.
func EvaluateBudget(b Budget, txs []Transaction) BudgetStatus {
	var spent int64
	for _, t := range txs {
		if t.Type != Expense || t.CategoryID != b.CategoryID {
			continue
		}
		if t.Date.Before(b.StartDate.Time) || t.Date.After(b.EndDate.Time) {
			continue
		}
		spent += t.Amount.Cents
	}
	return StatusFromSpent(b, Money{Cents: spent})
}

// StatusFromSpent derives remaining/percentage/state from a known spent
// total. Remaining is clamped at zero; a zero budget amount yields zero
// percentage (and thus the good state) rather than a division fault.
func StatusFromSpent(b Budget, spent Money) BudgetStatus {
	st := BudgetStatus{Spent: spent}
	if b.Amount.Cents > 0 {
		st.PercentageUsed = float64(spent.Cents) / float64(b.Amount.Cents) * 100
	}
	if remaining := b.Amount.Cents - spent.Cents; remaining > 0 {
		st.Remaining = Money{Cents: remaining}
	}
	st.State = ClassifyUsage(st.PercentageUsed, b.Thresholds)
	return st
}

// ClassifyUsage maps a consumption percentage onto a budget state.
// The highest crossed threshold wins: a budget at exactly 100% is
// exceeded even when the critical threshold is also 100.
func ClassifyUsage(pct float64, t AlertThresholds) BudgetState {
	switch {
	case pct >= 100:
		return BudgetExceeded
	case t.Critical > 0 && pct >= t.Critical:
		return BudgetCritical
	case t.Warning > 0 && pct >= t.Warning:
		return BudgetWarning
	default:
		return BudgetGood
	}
}
