package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
)

type categoryRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

type categoryResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Color  string `json:"color,omitempty"`
	Active bool   `json:"active"`
}

func categoryToResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:     c.ID,
		Name:   c.Name,
		Type:   string(c.Type),
		Color:  c.Color,
		Active: c.Active,
	}
}

func (req categoryRequest) validate(requireType bool) (core.Category, map[string]string) {
	errs := map[string]string{}
	c := core.Category{
		Name:  strings.TrimSpace(req.Name),
		Type:  core.TransactionType(req.Type),
		Color: strings.TrimSpace(req.Color),
	}
	if c.Name == "" {
		errs["name"] = "must not be empty"
	} else if len(c.Name) > 50 {
		errs["name"] = "must be at most 50 characters"
	}
	if requireType && !c.Type.Valid() {
		errs["type"] = "must be 'income' or 'expense'"
	}
	if c.Color != "" {
		probe := core.Category{Name: "probe", Type: core.Expense, Color: c.Color}
		if probe.Validate() != nil {
			errs["color"] = "must be a #rrggbb hex color"
		}
	}
	return c, errs
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	cats, err := s.repo.ListCategories(r.Context(), userID, includeInactive)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryToResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)

	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, errs := req.validate(true)
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	created, err := s.repo.CreateCategory(r.Context(), userID, c)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.invalidateReports(userID)
	writeJSON(w, http.StatusCreated, categoryToResponse(created))
}

// handleUpdateCategory renames or recolors a category. Type is immutable:
// historical transactions already committed to the flow direction.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, errs := req.validate(false)
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	updated, err := s.repo.UpdateCategory(r.Context(), userID, id, c.Name, c.Color)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.invalidateReports(userID)
	writeJSON(w, http.StatusOK, categoryToResponse(updated))
}

// handleDeleteCategory hard-deletes an unreferenced category and
// deactivates a referenced one, reporting which branch was taken.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deactivated, err := s.repo.DeleteCategory(r.Context(), userID, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.invalidateReports(userID)
	writeJSON(w, http.StatusOK, map[string]bool{"deactivated": deactivated})
}

func (s *Server) handleReactivateCategory(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.ReactivateCategory(r.Context(), userID, id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	cat, err := s.repo.GetCategory(r.Context(), userID, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.invalidateReports(userID)
	writeJSON(w, http.StatusOK, categoryToResponse(cat))
}
