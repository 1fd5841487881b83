package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type recurringRequest struct {
	Type        string   `json:"type"`
	Amount      *float64 `json:"amount"`
	Description string   `json:"description"`
	CategoryID  int64    `json:"categoryId"`
	Frequency   string   `json:"frequency"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"` // optional, empty means open-ended
}

type recurringResponse struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	CategoryID  int64   `json:"categoryId"`
	Frequency   string  `json:"frequency"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate,omitempty"`
	NextRun     string  `json:"nextRun"`
	Active      bool    `json:"active"`
}

func recurringToResponse(rec storage.RecurringRecord) recurringResponse {
	resp := recurringResponse{
		ID:          rec.ID,
		Type:        string(rec.Type),
		Amount:      rec.Amount.Float64(),
		Description: rec.Description,
		CategoryID:  rec.CategoryID,
		Frequency:   string(rec.Every),
		StartDate:   rec.StartDate.String(),
		NextRun:     rec.NextRun.String(),
		Active:      rec.Active,
	}
	if !rec.EndDate.IsZero() {
		resp.EndDate = rec.EndDate.String()
	}
	return resp
}

func (req recurringRequest) toTemplate() (core.RecurringTransaction, map[string]string) {
	errs := map[string]string{}

	rt := core.RecurringTransaction{
		Type:        core.TransactionType(req.Type),
		Description: strings.TrimSpace(req.Description),
		CategoryID:  req.CategoryID,
		Every:       core.Frequency(req.Frequency),
	}

	if !rt.Type.Valid() {
		errs["type"] = "must be 'income' or 'expense'"
	}
	if req.Amount == nil || *req.Amount <= 0 {
		errs["amount"] = "must be a positive amount"
	} else {
		rt.Amount = core.Money{Cents: core.CentsFromFloat(*req.Amount)}
	}
	if rt.Description == "" {
		errs["description"] = "must not be empty"
	}
	if rt.CategoryID <= 0 {
		errs["categoryId"] = "must reference a category"
	}
	if !rt.Every.Valid() {
		errs["frequency"] = "must be 'daily', 'weekly', 'monthly' or 'yearly'"
	}

	var err error
	if rt.StartDate, err = core.ParseDate(strings.TrimSpace(req.StartDate)); err != nil {
		errs["startDate"] = "must be YYYY-MM-DD"
	}
	if v := strings.TrimSpace(req.EndDate); v != "" {
		if rt.EndDate, err = core.ParseDate(v); err != nil {
			errs["endDate"] = "must be YYYY-MM-DD"
		} else if !rt.StartDate.IsZero() && rt.EndDate.Before(rt.StartDate.Time) {
			errs["endDate"] = "must not precede startDate"
		}
	}

	return rt, errs
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	recs, err := s.repo.ListRecurring(r.Context(), userID)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	out := make([]recurringResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recurringToResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)

	var req recurringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rt, errs := req.toTemplate()
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	// same category contract as direct transactions
	cat, err := s.repo.GetCategory(r.Context(), userID, rt.CategoryID)
	if err != nil {
		writeFieldErrors(w, map[string]string{"categoryId": "unknown category"})
		return
	}
	if !cat.Active {
		writeFieldErrors(w, map[string]string{"categoryId": "category is deactivated"})
		return
	}
	if cat.Type != rt.Type {
		writeFieldErrors(w, map[string]string{"categoryId": "category type does not match template type"})
		return
	}

	// first materialization happens on the start date
	created, err := s.repo.CreateRecurring(r.Context(), userID, rt, rt.StartDate)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recurringToResponse(created))
}

func (s *Server) handleDeactivateRecurring(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// ownership check before the unscoped state flip
	if _, err := s.repo.GetRecurring(r.Context(), userID, id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if err := s.repo.DeactivateRecurring(r.Context(), id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	rec, err := s.repo.GetRecurring(r.Context(), userID, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recurringToResponse(rec))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.DeleteRecurring(r.Context(), userID, id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
