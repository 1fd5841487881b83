package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Report response shapes are part of the external contract; existing
// consumers depend on these exact field names.

type summarySide struct {
	Total     float64 `json:"total"`
	Count     int     `json:"count"`
	AvgAmount float64 `json:"avgAmount"`
}

type summaryResponse struct {
	Income            summarySide `json:"income"`
	Expense           summarySide `json:"expense"`
	Balance           float64     `json:"balance"`
	TotalTransactions int         `json:"totalTransactions"`
}

type breakdownEntry struct {
	ID        int64   `json:"_id"`
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	Total     float64 `json:"total"`
	Count     int     `json:"count"`
	AvgAmount float64 `json:"avgAmount"`
}

type trendEntry struct {
	Month        string  `json:"month"`
	Income       float64 `json:"income"`
	Expense      float64 `json:"expense"`
	Balance      float64 `json:"balance"`
	IncomeCount  int     `json:"incomeCount"`
	ExpenseCount int     `json:"expenseCount"`
}

type budgetStatusEntry struct {
	BudgetID       int64   `json:"budgetId"`
	CategoryID     int64   `json:"categoryId"`
	Amount         float64 `json:"amount"`
	Spent          float64 `json:"spent"`
	Remaining      float64 `json:"remaining"`
	PercentageUsed float64 `json:"percentageUsed"`
	Status         string  `json:"status"`
}

func reportKey(userID int64, parts ...string) string {
	return fmt.Sprintf("user:%d:report:%s", userID, strings.Join(parts, ":"))
}

// invalidateReports drops every cached report for the user after any of
// their data changed.
func (s *Server) invalidateReports(userID int64) {
	if n := s.reportCache.DeletePrefix(fmt.Sprintf("user:%d:", userID)); n > 0 {
		s.logger.Debug("Report cache invalidated", log.FieldUserID, userID, "entries", n)
	}
}

// serveCachedReport answers from the report cache or builds, caches and
// serves the marshaled response.
func (s *Server) serveCachedReport(w http.ResponseWriter, r *http.Request, key string, build func() (any, error)) {
	if data, ok := s.reportCache.Get(key); ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	v, err := build()
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.reportCache.Set(key, data)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func avgAmount(total core.Money, count int) float64 {
	if count == 0 {
		return 0
	}
	// half-up rounding on the cent, matching the breakdown averages
	cents := (total.Cents + int64(count)/2) / int64(count)
	return core.Money{Cents: cents}.Float64()
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)

	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := reportKey(userID, "summary", from.String(), to.String())
	s.serveCachedReport(w, r, key, func() (any, error) {
		txs, err := s.repo.ListTransactionsBetween(r.Context(), userID, from, to)
		if err != nil {
			return nil, err
		}
		sum := core.Summarize(txs)
		return summaryResponse{
			Income: summarySide{
				Total:     sum.IncomeTotal.Float64(),
				Count:     sum.IncomeCount,
				AvgAmount: avgAmount(sum.IncomeTotal, sum.IncomeCount),
			},
			Expense: summarySide{
				Total:     sum.ExpenseTotal.Float64(),
				Count:     sum.ExpenseCount,
				AvgAmount: avgAmount(sum.ExpenseTotal, sum.ExpenseCount),
			},
			Balance:           sum.Balance.Float64(),
			TotalTransactions: sum.IncomeCount + sum.ExpenseCount,
		}, nil
	})
}

func (s *Server) handleReportBreakdown(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)

	typ := core.Expense
	if v := strings.TrimSpace(r.URL.Query().Get("type")); v != "" {
		typ = core.TransactionType(v)
		if !typ.Valid() {
			writeError(w, http.StatusBadRequest, "invalid type: must be 'income' or 'expense'")
			return
		}
	}
	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := reportKey(userID, "breakdown", string(typ), from.String(), to.String())
	s.serveCachedReport(w, r, key, func() (any, error) {
		txs, err := s.repo.ListTransactionsBetween(r.Context(), userID, from, to)
		if err != nil {
			return nil, err
		}
		// inactive categories included: historical rows keep their last
		// known name and color
		cats, err := s.repo.ListCategories(r.Context(), userID, true)
		if err != nil {
			return nil, err
		}

		groups := core.BreakdownByCategory(txs, cats, typ)
		out := make([]breakdownEntry, 0, len(groups))
		for _, g := range groups {
			out = append(out, breakdownEntry{
				ID:        g.CategoryID,
				Name:      g.Name,
				Color:     g.Color,
				Total:     g.Total.Float64(),
				Count:     g.Count,
				AvgAmount: g.Avg.Float64(),
			})
		}
		return out, nil
	})
}

func (s *Server) handleReportTrends(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)

	year, err := parseIntParam(r, "year", time.Now().UTC().Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := reportKey(userID, "trends", fmt.Sprintf("%d", year))
	s.serveCachedReport(w, r, key, func() (any, error) {
		txs, err := s.repo.ListTransactionsBetween(r.Context(), userID,
			core.NewDate(year, 1, 1), core.NewDate(year, 12, 31))
		if err != nil {
			return nil, err
		}

		buckets := core.MonthlyTrend(txs, year)
		out := make([]trendEntry, 0, len(buckets))
		for _, b := range buckets {
			out = append(out, trendEntry{
				Month:        b.Month.String()[:3],
				Income:       b.Income.Float64(),
				Expense:      b.Expense.Float64(),
				Balance:      b.Balance.Float64(),
				IncomeCount:  b.IncomeCount,
				ExpenseCount: b.ExpenseCount,
			})
		}
		return out, nil
	})
}

func (s *Server) handleReportBudgetStatus(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)

	key := reportKey(userID, "budget-status")
	s.serveCachedReport(w, r, key, func() (any, error) {
		budgets, err := s.repo.ListBudgets(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		out := make([]budgetStatusEntry, 0, len(budgets))
		for _, b := range budgets {
			status := core.StatusFromSpent(b, b.Spent)
			out = append(out, budgetStatusEntry{
				BudgetID:       b.ID,
				CategoryID:     b.CategoryID,
				Amount:         b.Amount.Float64(),
				Spent:          status.Spent.Float64(),
				Remaining:      status.Remaining.Float64(),
				PercentageUsed: status.PercentageUsed,
				Status:         string(status.State),
			})
		}
		return out, nil
	})
}
