package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

type transactionRequest struct {
	Type          string   `json:"type"`
	Amount        *float64 `json:"amount"`
	Description   string   `json:"description"`
	CategoryID    int64    `json:"categoryId"`
	Date          string   `json:"date"`
	Tags          []string `json:"tags"`
	PaymentMethod string   `json:"paymentMethod"`
	Notes         string   `json:"notes"`
}

type transactionResponse struct {
	ID            int64    `json:"id"`
	Type          string   `json:"type"`
	Amount        float64  `json:"amount"`
	Description   string   `json:"description"`
	CategoryID    int64    `json:"categoryId"`
	Date          string   `json:"date"`
	Tags          []string `json:"tags,omitempty"`
	PaymentMethod string   `json:"paymentMethod,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

type transactionListResponse struct {
	Items []transactionResponse `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// toTransaction validates the request field by field so the response can
// name every invalid field at once.
func (req transactionRequest) toTransaction() (core.Transaction, map[string]string) {
	errs := map[string]string{}

	t := core.Transaction{
		Type:          core.TransactionType(req.Type),
		Description:   strings.TrimSpace(req.Description),
		CategoryID:    req.CategoryID,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Notes:         strings.TrimSpace(req.Notes),
	}

	if !t.Type.Valid() {
		errs["type"] = "must be 'income' or 'expense'"
	}
	if req.Amount == nil || *req.Amount <= 0 {
		errs["amount"] = "must be a positive amount"
	} else {
		t.Amount = core.Money{Cents: core.CentsFromFloat(*req.Amount)}
	}
	if t.Description == "" {
		errs["description"] = "must not be empty"
	} else if len(t.Description) > 200 {
		errs["description"] = "must be at most 200 characters"
	}
	if t.CategoryID <= 0 {
		errs["categoryId"] = "must reference a category"
	}
	if d, err := core.ParseDate(strings.TrimSpace(req.Date)); err != nil {
		errs["date"] = "must be YYYY-MM-DD"
	} else {
		t.Date = d
	}
	if tags, err := cleanTags(req.Tags); err != nil {
		errs["tags"] = err.Error()
	} else {
		t.Tags = tags
	}

	return t, errs
}

// cleanTags trims each tag and rejects commas, which the storage form
// cannot represent.
func cleanTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, errors.New("tags must not be empty")
		}
		if strings.Contains(tag, ",") {
			return nil, errors.New("tags must not contain commas")
		}
		out = append(out, tag)
	}
	return out, nil
}

func transactionToResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		Type:          string(t.Type),
		Amount:        t.Amount.Float64(),
		Description:   t.Description,
		CategoryID:    t.CategoryID,
		Date:          t.Date.String(),
		Tags:          t.Tags,
		PaymentMethod: t.PaymentMethod,
		Notes:         t.Notes,
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, errs := req.toTransaction()
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	created, err := s.txs.Create(r.Context(), userID, t)
	if err != nil {
		s.respondCategoryContractError(w, r, err)
		return
	}

	s.invalidateReports(userID)
	writeJSON(w, http.StatusCreated, transactionToResponse(created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.repo.GetTransaction(r.Context(), userID, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionToResponse(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, errs := req.toTransaction()
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	t.ID = id

	// existence first, so a bad category reference on a missing row is
	// still a 404 rather than a validation error
	if _, err := s.repo.GetTransaction(r.Context(), userID, id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	updated, err := s.txs.Update(r.Context(), userID, t)
	if err != nil {
		s.respondCategoryContractError(w, r, err)
		return
	}

	s.invalidateReports(userID)
	writeJSON(w, http.StatusOK, transactionToResponse(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.txs.Delete(r.Context(), userID, id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.invalidateReports(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)

	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, total, err := s.repo.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	items := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		items = append(items, transactionToResponse(t))
	}
	writeJSON(w, http.StatusOK, transactionListResponse{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

// handleExportTransactions streams the filtered transaction list as a CSV
// download, category names resolved through their last known record.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)

	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Page, filter.Limit = 0, 0 // exports are never paginated

	txs, _, err := s.repo.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	cats, err := s.repo.ListCategories(r.Context(), userID, true)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	rows := make([]storage.ExportRow, 0, len(txs))
	for _, t := range txs {
		name, ok := names[t.CategoryID]
		if !ok {
			name = core.UncategorizedName
		}
		rows = append(rows, storage.ExportRow{
			ID:           t.ID,
			UserID:       userID,
			Date:         t.Date,
			Type:         t.Type,
			CategoryName: name,
			Description:  t.Description,
			Amount:       t.Amount,
		})
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	if err := export.WriteCSV(w, rows); err != nil {
		s.logger.ErrorContext(r.Context(), "CSV export write failed", "error", err)
	}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func parseTransactionFilter(r *http.Request) (storage.TransactionFilter, error) {
	var f storage.TransactionFilter

	if v := strings.TrimSpace(r.URL.Query().Get("type")); v != "" {
		t := core.TransactionType(v)
		if !t.Valid() {
			return f, errors.New("invalid type: must be 'income' or 'expense'")
		}
		f.Type = t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("categoryId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, errors.New("invalid categoryId")
		}
		f.CategoryID = id
	}

	var err error
	if f.From, err = parseDateParam(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseDateParam(r, "to"); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return f, errors.New("invalid range: 'to' precedes 'from'")
	}

	f.Search = strings.TrimSpace(r.URL.Query().Get("q"))

	if f.Page, err = parseIntParam(r, "page", 1); err != nil {
		return f, err
	}
	if f.Limit, err = parseIntParam(r, "limit", defaultPageSize); err != nil {
		return f, err
	}
	if f.Limit > maxPageSize {
		return f, fmt.Errorf("invalid limit: at most %d", maxPageSize)
	}
	return f, nil
}

// respondCategoryContractError maps category precondition failures from
// the transaction service onto per-field validation responses.
func (s *Server) respondCategoryContractError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeFieldErrors(w, map[string]string{"categoryId": "unknown category"})
	case errors.Is(err, storage.ErrCategoryInactive):
		writeFieldErrors(w, map[string]string{"categoryId": "category is deactivated"})
	case errors.Is(err, services.ErrCategoryTypeMismatch):
		writeFieldErrors(w, map[string]string{"categoryId": "category type does not match transaction type"})
	default:
		s.respondStoreError(w, r, err)
	}
}
