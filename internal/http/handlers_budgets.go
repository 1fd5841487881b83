package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
)

type budgetRequest struct {
	CategoryID int64    `json:"categoryId"`
	Amount     *float64 `json:"amount"`
	Period     string   `json:"period"`
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Thresholds *struct {
		Warning  float64 `json:"warning"`
		Critical float64 `json:"critical"`
	} `json:"alertThresholds"`
}

type budgetResponse struct {
	ID         int64   `json:"id"`
	CategoryID int64   `json:"categoryId"`
	Amount     float64 `json:"amount"`
	Period     string  `json:"period"`
	StartDate  string  `json:"startDate"`
	EndDate    string  `json:"endDate"`
	Thresholds struct {
		Warning  float64 `json:"warning"`
		Critical float64 `json:"critical"`
	} `json:"alertThresholds"`

	// derived, never stored
	Spent          float64 `json:"spent"`
	Remaining      float64 `json:"remaining"`
	PercentageUsed float64 `json:"percentageUsed"`
	Status         string  `json:"status"`
}

func budgetToResponse(b core.Budget) budgetResponse {
	status := core.StatusFromSpent(b, b.Spent)
	resp := budgetResponse{
		ID:             b.ID,
		CategoryID:     b.CategoryID,
		Amount:         b.Amount.Float64(),
		Period:         string(b.Period),
		StartDate:      b.StartDate.String(),
		EndDate:        b.EndDate.String(),
		Spent:          status.Spent.Float64(),
		Remaining:      status.Remaining.Float64(),
		PercentageUsed: status.PercentageUsed,
		Status:         string(status.State),
	}
	resp.Thresholds.Warning = b.Thresholds.Warning
	resp.Thresholds.Critical = b.Thresholds.Critical
	return resp
}

func (req budgetRequest) toBudget() (core.Budget, map[string]string) {
	errs := map[string]string{}

	b := core.Budget{
		CategoryID: req.CategoryID,
		Period:     core.Period(req.Period),
		Thresholds: core.DefaultThresholds(),
	}
	if req.Thresholds != nil {
		b.Thresholds = core.AlertThresholds{
			Warning:  req.Thresholds.Warning,
			Critical: req.Thresholds.Critical,
		}
	}

	if b.CategoryID <= 0 {
		errs["categoryId"] = "must reference an expense category"
	}
	if req.Amount == nil || *req.Amount <= 0 {
		errs["amount"] = "must be a positive amount"
	} else {
		b.Amount = core.Money{Cents: core.CentsFromFloat(*req.Amount)}
	}
	if !b.Period.Valid() {
		errs["period"] = "must be 'weekly', 'monthly' or 'yearly'"
	}

	var err error
	if b.StartDate, err = core.ParseDate(strings.TrimSpace(req.StartDate)); err != nil {
		errs["startDate"] = "must be YYYY-MM-DD"
	}
	if b.EndDate, err = core.ParseDate(strings.TrimSpace(req.EndDate)); err != nil {
		errs["endDate"] = "must be YYYY-MM-DD"
	} else if !b.StartDate.IsZero() && b.EndDate.Before(b.StartDate.Time) {
		errs["endDate"] = "must not precede startDate"
	}

	if t := b.Thresholds; t.Warning <= 0 || t.Critical < t.Warning || t.Critical > 100 {
		errs["alertThresholds"] = "warning must be positive and at most critical, critical at most 100"
	}

	return b, errs
}

// checkBudgetCategory enforces that the cap points at the caller's own
// expense category.
func (s *Server) checkBudgetCategory(w http.ResponseWriter, r *http.Request, userID, categoryID int64) bool {
	cat, err := s.repo.GetCategory(r.Context(), userID, categoryID)
	if err != nil {
		writeFieldErrors(w, map[string]string{"categoryId": "unknown category"})
		return false
	}
	if cat.Type != core.Expense {
		writeFieldErrors(w, map[string]string{"categoryId": "budgets apply to expense categories only"})
		return false
	}
	return true
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	budgets, err := s.repo.ListBudgets(r.Context(), userID)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, budgetToResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.repo.GetBudget(r.Context(), userID, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetToResponse(b))
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)

	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, errs := req.toBudget()
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	if !s.checkBudgetCategory(w, r, userID, b.CategoryID) {
		return
	}

	created, err := s.repo.CreateBudget(r.Context(), userID, b)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	// pick up expenses already recorded inside the new window
	if err := s.repo.RefreshBudgetSpent(r.Context(), userID, created.ID); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	created, err = s.repo.GetBudget(r.Context(), userID, created.ID)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	s.invalidateReports(userID)
	writeJSON(w, http.StatusCreated, budgetToResponse(created))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, errs := req.toBudget()
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	b.ID = id

	if _, err := s.repo.GetBudget(r.Context(), userID, id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if !s.checkBudgetCategory(w, r, userID, b.CategoryID) {
		return
	}

	updated, err := s.repo.UpdateBudget(r.Context(), userID, b)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.invalidateReports(userID)
	writeJSON(w, http.StatusOK, budgetToResponse(updated))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.DeleteBudget(r.Context(), userID, id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.invalidateReports(userID)
	w.WriteHeader(http.StatusNoContent)
}
