package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// AlertFlags records which alert levels have already produced a
// notification for the current budget window, so repeat crossings of the
// same threshold stay silent.
type AlertFlags struct {
	Warning  bool
	Critical bool
	Exceeded bool
}

func (r *Repository) CreateBudget(ctx context.Context, userID int64, b core.Budget) (core.Budget, error) {
	overlap, err := r.budgetOverlaps(ctx, userID, b, 0)
	if err != nil {
		return core.Budget{}, err
	}
	if overlap {
		return core.Budget{}, ErrBudgetOverlap
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount_cents, period, start_date, end_date, warning_pct, critical_pct)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, b.CategoryID, b.Amount.Cents, string(b.Period),
		b.StartDate.String(), b.EndDate.String(), b.Thresholds.Warning, b.Thresholds.Critical)
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("budget id: %w", err)
	}
	return r.GetBudget(ctx, userID, id)
}

func (r *Repository) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, category_id, amount_cents, period, start_date, end_date, spent_cents, warning_pct, critical_pct
		 FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanBudget(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	return b, nil
}

func (r *Repository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, amount_cents, period, start_date, end_date, spent_cents, warning_pct, critical_pct
		 FROM budgets WHERE user_id = ? ORDER BY start_date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBudgetsCovering returns the user's budgets for a category whose
// window includes the given date.
func (r *Repository) ListBudgetsCovering(ctx context.Context, userID, categoryID int64, date core.Date) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, amount_cents, period, start_date, end_date, spent_cents, warning_pct, critical_pct
		 FROM budgets WHERE user_id = ? AND category_id = ? AND start_date <= ? AND end_date >= ?`,
		userID, categoryID, date.String(), date.String())
	if err != nil {
		return nil, fmt.Errorf("list budgets covering date: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateBudget(ctx context.Context, userID int64, b core.Budget) (core.Budget, error) {
	overlap, err := r.budgetOverlaps(ctx, userID, b, b.ID)
	if err != nil {
		return core.Budget{}, err
	}
	if overlap {
		return core.Budget{}, ErrBudgetOverlap
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets
		 SET category_id = ?, amount_cents = ?, period = ?, start_date = ?, end_date = ?,
		     warning_pct = ?, critical_pct = ?,
		     warning_notified_at = NULL, critical_notified_at = NULL, exceeded_notified_at = NULL
		 WHERE id = ? AND user_id = ?`,
		b.CategoryID, b.Amount.Cents, string(b.Period), b.StartDate.String(), b.EndDate.String(),
		b.Thresholds.Warning, b.Thresholds.Critical, b.ID, userID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Budget{}, ErrNotFound
	}
	if err := r.RefreshBudgetSpent(ctx, userID, b.ID); err != nil {
		return core.Budget{}, err
	}
	return r.GetBudget(ctx, userID, b.ID)
}

func (r *Repository) DeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RefreshBudgetSpent recomputes the running total from the transactions in
// the budget window. The stored figure is authoritative for reads; this is
// the only place it is written.
func (r *Repository) RefreshBudgetSpent(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET spent_cents = (
		     SELECT COALESCE(SUM(t.amount_cents), 0) FROM transactions t
		     WHERE t.user_id = budgets.user_id
		       AND t.category_id = budgets.category_id
		       AND t.type = 'expense'
		       AND t.date >= budgets.start_date
		       AND t.date <= budgets.end_date
		 )
		 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("refresh budget spent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetAlertFlags(ctx context.Context, userID, id int64) (AlertFlags, error) {
	var w, c, e sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT warning_notified_at, critical_notified_at, exceeded_notified_at
		 FROM budgets WHERE id = ? AND user_id = ?`, id, userID).Scan(&w, &c, &e)
	if errors.Is(err, sql.ErrNoRows) {
		return AlertFlags{}, ErrNotFound
	}
	if err != nil {
		return AlertFlags{}, fmt.Errorf("scan alert flags: %w", err)
	}
	return AlertFlags{Warning: w.Valid, Critical: c.Valid, Exceeded: e.Valid}, nil
}

func (r *Repository) MarkAlertNotified(ctx context.Context, userID, id int64, state core.BudgetState) error {
	var column string
	switch state {
	case core.BudgetWarning:
		column = "warning_notified_at"
	case core.BudgetCritical:
		column = "critical_notified_at"
	case core.BudgetExceeded:
		column = "exceeded_notified_at"
	default:
		return fmt.Errorf("state %q does not notify", state)
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET `+column+` = ? WHERE id = ? AND user_id = ?`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("mark alert notified: %w", err)
	}
	return nil
}

// ClearAlertFlags resets the notification stamps, re-arming alerts after
// spending drops back under the thresholds.
func (r *Repository) ClearAlertFlags(ctx context.Context, userID, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE budgets
		 SET warning_notified_at = NULL, critical_notified_at = NULL, exceeded_notified_at = NULL
		 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("clear alert flags: %w", err)
	}
	return nil
}

// budgetOverlaps checks the inclusive-window overlap rule: two budgets for
// the same category and period may not share any day. Budgets of different
// periods may nest, a weekly cap inside a monthly one is fine.
func (r *Repository) budgetOverlaps(ctx context.Context, userID int64, b core.Budget, excludeID int64) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM budgets
		 WHERE user_id = ? AND category_id = ? AND period = ? AND id != ?
		   AND start_date <= ? AND end_date >= ?`,
		userID, b.CategoryID, string(b.Period), excludeID, b.EndDate.String(), b.StartDate.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check budget overlap: %w", err)
	}
	return n > 0, nil
}

func scanBudget(scan func(dest ...any) error) (core.Budget, error) {
	var b core.Budget
	var period, start, end string
	var amount, spent int64
	if err := scan(&b.ID, &b.CategoryID, &amount, &period, &start, &end, &spent,
		&b.Thresholds.Warning, &b.Thresholds.Critical); err != nil {
		return core.Budget{}, err
	}
	b.Amount = core.Money{Cents: amount}
	b.Spent = core.Money{Cents: spent}
	b.Period = core.Period(period)
	var err error
	if b.StartDate, err = core.ParseDate(start); err != nil {
		return core.Budget{}, fmt.Errorf("parse stored start date %q: %w", start, err)
	}
	if b.EndDate, err = core.ParseDate(end); err != nil {
		return core.Budget{}, fmt.Errorf("parse stored end date %q: %w", end, err)
	}
	return b, nil
}
