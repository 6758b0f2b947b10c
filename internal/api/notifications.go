package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

const defaultNotificationLimit = 50

// handleListNotifications returns the caller's newest notifications and the
// unread count.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unreadOnly := q.Get("unread") == "true"
	limit := defaultNotificationLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			s.errorJSON(w, errors.New("limit must be between 1 and 500"), http.StatusBadRequest)
			return
		}
		limit = n
	}

	userID := s.userID(r)
	list, err := s.db.ListNotifications(s.db.GetDB(), userID, unreadOnly, limit)
	if err != nil {
		s.serverError(w, r, "list notifications", err)
		return
	}
	unread, err := s.db.CountUnreadNotifications(s.db.GetDB(), userID)
	if err != nil {
		s.serverError(w, r, "count unread notifications", err)
		return
	}

	out := make([]NotificationResponse, len(list))
	for i, n := range list {
		out[i] = toNotificationResponse(n)
	}
	s.writeJSON(w, http.StatusOK, envelope{"notifications": out, "unreadCount": unread})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, userID := chi.URLParam(r, "notificationID"), s.userID(r)
	err := s.db.Write(func(tx *sql.Tx) error {
		return s.db.MarkNotificationRead(tx, id, userID)
	})
	s.respondNotificationMutation(w, r, "mark notification read", err)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, userID := chi.URLParam(r, "notificationID"), s.userID(r)
	err := s.db.Write(func(tx *sql.Tx) error {
		return s.db.DeleteNotification(tx, id, userID)
	})
	s.respondNotificationMutation(w, r, "delete notification", err)
}

// respondNotificationMutation maps the result of a single-notification write.
func (s *Server) respondNotificationMutation(w http.ResponseWriter, r *http.Request, step string, err error) {
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("notification not found"), http.StatusNotFound)
			return
		}
		s.serverError(w, r, step, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true})
}

// handleMarkAllNotificationsRead marks every unread notification of the caller as read.
func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	var changed int64
	err := s.db.Write(func(tx *sql.Tx) error {
		var err error
		changed, err = s.db.MarkAllNotificationsRead(tx, userID)
		return err
	})
	if err != nil {
		s.serverError(w, r, "mark all notifications read", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true, "updated": changed})
}
