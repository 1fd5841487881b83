package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

// RecurringRecord pairs a recurring template with its schedule state.
type RecurringRecord struct {
	core.RecurringTransaction
	UserID  int64
	NextRun core.Date
	Active  bool
}

func (r *Repository) CreateRecurring(ctx context.Context, userID int64, rt core.RecurringTransaction, nextRun core.Date) (RecurringRecord, error) {
	var end any
	if !rt.EndDate.IsZero() {
		end = rt.EndDate.String()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_transactions
		     (user_id, type, amount_cents, description, category_id, frequency, start_date, end_date, next_run)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, string(rt.Type), rt.Amount.Cents, rt.Description, rt.CategoryID,
		string(rt.Every), rt.StartDate.String(), end, nextRun.String())
	if err != nil {
		return RecurringRecord{}, fmt.Errorf("insert recurring transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return RecurringRecord{}, fmt.Errorf("recurring transaction id: %w", err)
	}
	return r.GetRecurring(ctx, userID, id)
}

func (r *Repository) GetRecurring(ctx context.Context, userID, id int64) (RecurringRecord, error) {
	row := r.db.QueryRowContext(ctx, selectRecurring+` WHERE id = ? AND user_id = ?`, id, userID)
	rec, err := scanRecurring(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return RecurringRecord{}, ErrNotFound
	}
	if err != nil {
		return RecurringRecord{}, fmt.Errorf("scan recurring transaction: %w", err)
	}
	return rec, nil
}

func (r *Repository) ListRecurring(ctx context.Context, userID int64) ([]RecurringRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		selectRecurring+` WHERE user_id = ? ORDER BY next_run, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	defer rows.Close()
	return collectRecurring(rows)
}

// ListDueRecurring returns active templates across all users whose next run
// date is on or before asOf.
func (r *Repository) ListDueRecurring(ctx context.Context, asOf core.Date) ([]RecurringRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		selectRecurring+` WHERE is_active = 1 AND next_run <= ? ORDER BY next_run, id`,
		asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list due recurring transactions: %w", err)
	}
	defer rows.Close()
	return collectRecurring(rows)
}

// AdvanceRecurring stores the next scheduled run after a materialization.
func (r *Repository) AdvanceRecurring(ctx context.Context, id int64, nextRun core.Date) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET next_run = ? WHERE id = ?`, nextRun.String(), id)
	if err != nil {
		return fmt.Errorf("advance recurring transaction: %w", err)
	}
	return nil
}

// DeactivateRecurring stops future runs, keeping the template for history.
func (r *Repository) DeactivateRecurring(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate recurring transaction: %w", err)
	}
	return nil
}

func (r *Repository) DeleteRecurring(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recurring_transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectRecurring = `SELECT id, user_id, type, amount_cents, description, category_id,
	frequency, start_date, end_date, next_run, is_active
	FROM recurring_transactions`

func collectRecurring(rows *sql.Rows) ([]RecurringRecord, error) {
	var out []RecurringRecord
	for rows.Next() {
		rec, err := scanRecurring(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecurring(scan func(dest ...any) error) (RecurringRecord, error) {
	var rec RecurringRecord
	var typ, freq, start, next string
	var end sql.NullString
	var cents int64
	if err := scan(&rec.ID, &rec.UserID, &typ, &cents, &rec.Description, &rec.CategoryID,
		&freq, &start, &end, &next, &rec.Active); err != nil {
		return RecurringRecord{}, err
	}
	rec.Type = core.TransactionType(typ)
	rec.Amount = core.Money{Cents: cents}
	rec.Every = core.Frequency(freq)
	var err error
	if rec.StartDate, err = core.ParseDate(start); err != nil {
		return RecurringRecord{}, fmt.Errorf("parse stored start date %q: %w", start, err)
	}
	if end.Valid {
		if rec.EndDate, err = core.ParseDate(end.String); err != nil {
			return RecurringRecord{}, fmt.Errorf("parse stored end date %q: %w", end.String, err)
		}
	}
	if rec.NextRun, err = core.ParseDate(next); err != nil {
		return RecurringRecord{}, fmt.Errorf("parse stored next run %q: %w", next, err)
	}
	return rec, nil
}
