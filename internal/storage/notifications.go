package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Notification is a stored budget alert for in-app display. ReadAt is nil
// until the notification is marked read.
type Notification struct {
	ID        int64
	BudgetID  int64
	State     core.BudgetState
	Message   string
	Read      bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

func (r *Repository) CreateNotification(ctx context.Context, userID, budgetID int64, state core.BudgetState, message string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, budget_id, state, message) VALUES (?, ?, ?, ?)`,
		userID, budgetID, string(state), message)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("notification id: %w", err)
	}
	return id, nil
}

func (r *Repository) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	query := `SELECT id, budget_id, state, message, is_read, read_at, created_at
	          FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var state string
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.BudgetID, &state, &n.Message, &n.Read, &readAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.State = core.BudgetState(state)
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flips the flag and stamps the read time. The first
// stamp wins; marking an already-read notification keeps its original time.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = COALESCE(read_at, ?)
		 WHERE id = ? AND user_id = ?`, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ?
		 WHERE user_id = ? AND is_read = 0`, time.Now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
