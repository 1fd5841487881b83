package services

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// DefaultCategories returns the starter set seeded for every new account.
func DefaultCategories() []core.Category {
	return []core.Category{
		{Name: "Salary", Type: core.Income, Color: "#4caf50"},
		{Name: "Other Income", Type: core.Income, Color: "#8bc34a"},
		{Name: "Food", Type: core.Expense, Color: "#f44336"},
		{Name: "Transport", Type: core.Expense, Color: "#2196f3"},
		{Name: "Housing", Type: core.Expense, Color: "#795548"},
		{Name: "Utilities", Type: core.Expense, Color: "#607d8b"},
		{Name: "Health", Type: core.Expense, Color: "#e91e63"},
		{Name: "Entertainment", Type: core.Expense, Color: "#9c27b0"},
		{Name: "Shopping", Type: core.Expense, Color: "#ff9800"},
		{Name: "Other", Type: core.Expense, Color: "#9e9e9e"},
	}
}

// SeedDefaultCategories creates the starter categories for a new user.
// Individual failures are logged and skipped; registration never fails
// over seeding.
func SeedDefaultCategories(ctx context.Context, repo *storage.Repository, userID int64, logger *log.Logger) {
	for _, c := range DefaultCategories() {
		if _, err := repo.CreateCategory(ctx, userID, c); err != nil {
			logger.WarnContext(ctx, "Failed to seed default category",
				log.FieldUserID, userID,
				"name", c.Name,
				log.FieldError, err)
		}
	}
}
