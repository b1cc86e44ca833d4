package http

import (
	"fmt"
	"net/http"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/log"
)

type notificationListResponse struct {
	Notifications []core.Notification `json:"notifications"`
	UnreadCount   int                 `json:"unread_count"`
	Total         int                 `json:"total"`
}

// Notifications are per user, so these handlers do not require a family.

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, user core.User) {
	q := newQueryParams(r)
	unreadOnly := q.Bool("unread_only")
	limit := q.Int("limit", 0)
	if err := q.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	items, err := s.svc.Notifications.List(r.Context(), user.ID, unreadOnly, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	unread, err := s.svc.Notifications.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Notification{}
	}
	writeJSON(w, http.StatusOK, notificationListResponse{
		Notifications: items,
		UnreadCount:   unread,
		Total:         len(items),
	})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request, user core.User) {
	n, err := s.svc.Notifications.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": n})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, user core.User) {
	if err := s.svc.Notifications.MarkRead(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "Notification marked as read")
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request, user core.User) {
	n, err := s.svc.Notifications.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Notifications marked read",
		log.FieldOperation, log.OpMarkRead,
		log.FieldCount, n)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Marked %d notifications as read", n),
		"count":   n,
	})
}
