package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

var errSessionCancelled = errors.New("session is cancelled")

// handleBookSession books the caller onto a session that has not started yet.
// Capacity is checked inside the write so two last-seat requests cannot both win.
func (s *Server) handleBookSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	start, err := s.sessionStart(sess)
	if err != nil {
		s.serverError(w, r, "parse session start", err)
		return
	}
	if !s.now().Before(start) {
		s.errorJSON(w, errors.New("session has already started"), http.StatusBadRequest)
		return
	}

	userID := s.userID(r)
	var booking *database.Booking
	err = s.db.Write(func(tx *sql.Tx) error {
		// Re-read inside the transaction so capacity is checked against
		// committed state.
		fresh, err := s.db.GetSessionByID(tx, sess.ID)
		if err != nil {
			return err
		}
		if fresh.Cancelled {
			return errSessionCancelled
		}
		booking, err = s.db.BookSession(tx, fresh, userID)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			s.errorJSON(w, errors.New("session not found"), http.StatusNotFound)
		case errors.Is(err, errSessionCancelled), errors.Is(err, database.ErrAlreadyBooked), errors.Is(err, database.ErrSessionFull):
			s.errorJSON(w, err, http.StatusConflict)
		default:
			s.serverError(w, r, "book session", err)
		}
		return
	}

	actor, err := s.db.GetProfile(s.db.GetDB(), userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("booking stored but actor profile missing")
	} else {
		s.notifier.BookingCreated(actor, sess)
	}
	s.writeJSON(w, http.StatusCreated, envelope{"booking": toBookingResponse(booking, "")})
}

// handleCancelBooking removes the caller's booking and tells the organizer.
func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	userID := s.userID(r)
	err := s.db.Write(func(tx *sql.Tx) error {
		return s.db.CancelBooking(tx, sess.ID, userID)
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("booking not found"), http.StatusNotFound)
			return
		}
		s.serverError(w, r, "cancel booking", err)
		return
	}

	actor, err := s.db.GetProfile(s.db.GetDB(), userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("booking cancelled but actor profile missing")
	} else {
		s.notifier.BookingCancelled(actor, sess)
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true})
}

// handleListSessionBookings lists who is booked on a session.
func (s *Server) handleListSessionBookings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	bookings, err := s.db.ListBookingsBySession(s.db.GetDB(), sess.ID)
	if err != nil {
		s.serverError(w, r, "list bookings", err)
		return
	}
	ids := make([]string, len(bookings))
	for i, b := range bookings {
		ids[i] = b.UserID
	}
	profiles, err := s.db.GetProfilesByIDs(s.db.GetDB(), ids)
	if err != nil {
		s.serverError(w, r, "load booker profiles", err)
		return
	}

	out := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		name := ""
		if p, ok := profiles[b.UserID]; ok {
			name = p.Name()
		}
		out[i] = toBookingResponse(b, name)
	}
	s.writeJSON(w, http.StatusOK, envelope{"bookings": out})
}

// handleListMyBookings returns the upcoming sessions the caller booked.
func (s *Server) handleListMyBookings(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.db.SessionsBookedBy(s.db.GetDB(), s.userID(r), s.today())
	if err != nil {
		s.serverError(w, r, "list own bookings", err)
		return
	}
	booked := make(map[string]bool, len(sessions))
	for _, sess := range sessions {
		booked[sess.ID] = true
	}
	s.writeJSON(w, http.StatusOK, envelope{"sessions": toSessionResponseList(sessions, booked)})
}
