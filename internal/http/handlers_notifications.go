package http

import (
	"net/http"
	"time"

	"fintrack/internal/storage"
)

type notificationResponse struct {
	ID        int64      `json:"id"`
	BudgetID  int64      `json:"budgetId"`
	State     string     `json:"state"`
	Message   string     `json:"message"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func notificationToResponse(n storage.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		BudgetID:  n.BudgetID,
		State:     string(n.State),
		Message:   n.Message,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifs, err := s.repo.ListNotifications(r.Context(), userID, unreadOnly)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	out := make([]notificationResponse, 0, len(notifs))
	for _, n := range notifs {
		out = append(out, notificationToResponse(n))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.MarkNotificationRead(r.Context(), userID, id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	userID := authedUser(r)
	n, err := s.repo.MarkAllNotificationsRead(r.Context(), userID)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}
