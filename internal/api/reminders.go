package api

import (
	"crypto/subtle"
	"net/http"
)

// handleSendReminders runs one reminder pass for an external scheduler.
func (s *Server) handleSendReminders(w http.ResponseWriter, r *http.Request) {
	if secret := s.config.ReminderSecret; secret != "" {
		if subtle.ConstantTimeCompare([]byte(bearerToken(r)), []byte(secret)) != 1 {
			s.writeJSON(w, http.StatusUnauthorized, envelope{"error": "unauthorized"})
			return
		}
	}

	summary, err := s.reminders.Run(r.Context())
	if err != nil {
		s.serverError(w, r, "dispatch reminders", err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}
