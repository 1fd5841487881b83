package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fintrack/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	Type       core.TransactionType
	CategoryID int64
	From       core.Date
	To         core.Date
	Search     string // matched against description and notes
	Page       int    // 1-based
	Limit      int
}

// PendingSync identifies a transaction awaiting export to the sheet mirror.
type PendingSync struct {
	ID     int64
	UserID int64
}

// ExportRow is the flattened transaction shape both export targets consume.
type ExportRow struct {
	ID           int64
	UserID       int64
	Date         core.Date
	Type         core.TransactionType
	CategoryName string
	Description  string
	Amount       core.Money
}

func (r *Repository) CreateTransaction(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, amount_cents, description, category_id, date, tags, payment_method, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, string(t.Type), t.Amount.Cents, t.Description, t.CategoryID,
		t.Date.String(), joinTags(t.Tags), t.PaymentMethod, t.Notes)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	return r.GetTransaction(ctx, userID, id)
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, type, amount_cents, description, category_id, date, tags, payment_method, notes
		 FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET type = ?, amount_cents = ?, description = ?, category_id = ?, date = ?,
		     tags = ?, payment_method = ?, notes = ?, sync_status = 'pending',
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		string(t.Type), t.Amount.Cents, t.Description, t.CategoryID, t.Date.String(),
		joinTags(t.Tags), t.PaymentMethod, t.Notes, t.ID, userID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, ErrNotFound
	}
	return r.GetTransaction(ctx, userID, t.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTransactions returns a page of matching transactions, newest first,
// plus the total match count for pagination.
func (r *Repository) ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]core.Transaction, int64, error) {
	where, args := buildTransactionWhere(userID, f)

	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT id, type, amount_cents, description, category_id, date, tags, payment_method, notes
	          FROM transactions ` + where + ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, (page-1)*f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// ListTransactionsBetween returns every transaction in the inclusive date
// window, unpaginated. The report endpoints aggregate over this.
func (r *Repository) ListTransactionsBetween(ctx context.Context, userID int64, from, to core.Date) ([]core.Transaction, error) {
	txs, _, err := r.ListTransactions(ctx, userID, TransactionFilter{From: from, To: to})
	return txs, err
}

// SumExpensesInWindow totals expense cents for one category over an
// inclusive date window. Budgets refresh their spent figure from this.
func (r *Repository) SumExpensesInWindow(ctx context.Context, userID, categoryID int64, from, to core.Date) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = ? AND category_id = ? AND type = 'expense' AND date >= ? AND date <= ?`,
		userID, categoryID, from.String(), to.String()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (r *Repository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id FROM transactions WHERE sync_status = 'pending' ORDER BY id LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var p PendingSync
		if err := rows.Scan(&p.ID, &p.UserID); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) MarkTransactionSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'synced' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	return nil
}

func (r *Repository) MarkTransactionSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	return nil
}

// GetExportRow joins a transaction with its category name for export.
func (r *Repository) GetExportRow(ctx context.Context, id int64) (ExportRow, error) {
	var row ExportRow
	var typ, date string
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.user_id, t.date, t.type, c.name, t.description, t.amount_cents
		 FROM transactions t JOIN categories c ON c.id = t.category_id
		 WHERE t.id = ?`, id).
		Scan(&row.ID, &row.UserID, &date, &typ, &row.CategoryName, &row.Description, &cents)
	if errors.Is(err, sql.ErrNoRows) {
		return ExportRow{}, ErrNotFound
	}
	if err != nil {
		return ExportRow{}, fmt.Errorf("scan export row: %w", err)
	}
	row.Type = core.TransactionType(typ)
	row.Amount = core.Money{Cents: cents}
	if row.Date, err = core.ParseDate(date); err != nil {
		return ExportRow{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	return row, nil
}

func buildTransactionWhere(userID int64, f TransactionFilter) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{userID}

	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.CategoryID > 0 {
		conds = append(conds, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.To.String())
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "(description LIKE ? OR notes LIKE ?)")
		pattern := "%" + s + "%"
		args = append(args, pattern, pattern)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanTransaction(scan func(dest ...any) error) (core.Transaction, error) {
	var t core.Transaction
	var typ, date, tags string
	var cents int64
	if err := scan(&t.ID, &typ, &cents, &t.Description, &t.CategoryID, &date, &tags, &t.PaymentMethod, &t.Notes); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Amount = core.Money{Cents: cents}
	t.Tags = splitTags(tags)
	var err error
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	return t, nil
}
