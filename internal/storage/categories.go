package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

func (r *Repository) CreateCategory(ctx context.Context, userID int64, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, color) VALUES (?, ?, ?, ?)`,
		userID, c.Name, string(c.Type), c.Color)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, ErrDuplicateCategory
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return r.GetCategory(ctx, userID, id)
}

// GetCategory returns the category regardless of active state: existing
// transactions keep resolving to deactivated categories.
func (r *Repository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx,
		`SELECT id, name, type, color, is_active FROM categories WHERE id = ? AND user_id = ?`,
		id, userID))
}

func (r *Repository) ListCategories(ctx context.Context, userID int64, includeInactive bool) ([]core.Category, error) {
	query := `SELECT id, name, type, color, is_active FROM categories WHERE user_id = ?`
	if !includeInactive {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY type, lower(name)`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.Color, &c.Active); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCategory changes name and color. Type is immutable once created;
// transactions recorded under it would change meaning otherwise.
func (r *Repository) UpdateCategory(ctx context.Context, userID int64, id int64, name, color string) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ? WHERE id = ? AND user_id = ?`,
		name, color, id, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, ErrDuplicateCategory
		}
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Category{}, ErrNotFound
	}
	return r.GetCategory(ctx, userID, id)
}

// DeleteCategory removes the category if nothing references it, otherwise
// deactivates it so history stays intact. The bool reports whether the
// category was soft-deleted.
func (r *Repository) DeleteCategory(ctx context.Context, userID, id int64) (bool, error) {
	if _, err := r.GetCategory(ctx, userID, id); err != nil {
		return false, err
	}

	var refs int64
	err := r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM transactions WHERE category_id = ? AND user_id = ?)
		      + (SELECT COUNT(*) FROM budgets WHERE category_id = ? AND user_id = ?)
		      + (SELECT COUNT(*) FROM recurring_transactions WHERE category_id = ? AND user_id = ?)`,
		id, userID, id, userID, id, userID).Scan(&refs)
	if err != nil {
		return false, fmt.Errorf("count category references: %w", err)
	}

	if refs > 0 {
		_, err = r.db.ExecContext(ctx,
			`UPDATE categories SET is_active = 0 WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return false, fmt.Errorf("deactivate category: %w", err)
		}
		return true, nil
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	return false, nil
}

// ReactivateCategory undoes a soft delete.
func (r *Repository) ReactivateCategory(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET is_active = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCategory
		}
		return fmt.Errorf("reactivate category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCategory(row *sql.Row) (core.Category, error) {
	var c core.Category
	var typ string
	err := row.Scan(&c.ID, &c.Name, &typ, &c.Color, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	c.Type = core.TransactionType(typ)
	return c, nil
}
