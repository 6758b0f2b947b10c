package database

import "github.com/google/uuid"

const bookingColumns = `id, session_id, user_id, reminder_sent, created_at`

func scanBooking(row rowScanner) (*Booking, error) {
	b := &Booking{}
	if err := row.Scan(&b.ID, &b.SessionID, &b.UserID, &b.ReminderSent, &b.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func queryBookings(db DBorTx, query string, args ...any) ([]*Booking, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// BookSession books userID onto sess, enforcing capacity. Run it inside a
// Write transaction: the count and the insert then form one atomic step, so
// two concurrent bookings cannot both take the last seat.
func (s *Service) BookSession(db DBorTx, sess *Session, userID string) (*Booking, error) {
	var taken, mine int
	err := db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(user_id = ?), 0) FROM bookings WHERE session_id = ?;`,
		userID, sess.ID).Scan(&taken, &mine)
	if err != nil {
		return nil, err
	}
	if mine > 0 {
		return nil, ErrAlreadyBooked
	}
	if taken >= sess.Capacity {
		return nil, ErrSessionFull
	}

	id := uuid.NewString()
	if _, err := db.Exec(`INSERT INTO bookings (id, session_id, user_id) VALUES (?, ?, ?);`, id, sess.ID, userID); err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrAlreadyBooked
		}
		return nil, err
	}
	return scanBooking(db.QueryRow(`SELECT `+bookingColumns+` FROM bookings WHERE id = ?;`, id))
}

// CancelBooking removes the booking of userID on sessionID.
func (s *Service) CancelBooking(db DBorTx, sessionID, userID string) error {
	return expectAffected(db.Exec(`DELETE FROM bookings WHERE session_id = ? AND user_id = ?;`, sessionID, userID))
}

// ListBookingsBySession returns the bookings on sessionID in booking order.
func (s *Service) ListBookingsBySession(db DBorTx, sessionID string) ([]*Booking, error) {
	return queryBookings(db, `SELECT `+bookingColumns+` FROM bookings WHERE session_id = ? ORDER BY created_at, rowid;`, sessionID)
}

// BookedUserIDs returns the users holding a booking on sessionID.
func (s *Service) BookedUserIDs(db DBorTx, sessionID string) ([]string, error) {
	return collectStrings(db, `SELECT user_id FROM bookings WHERE session_id = ? ORDER BY created_at, rowid;`, sessionID)
}

// HasBooking reports whether userID booked sessionID.
func (s *Service) HasBooking(db DBorTx, sessionID, userID string) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM bookings WHERE session_id = ? AND user_id = ?);`, sessionID, userID).Scan(&exists)
	return exists, err
}

// SessionsBookedBy returns the sessions userID holds a booking on, from the
// given date onwards.
func (s *Service) SessionsBookedBy(db DBorTx, userID, from string) ([]*Session, error) {
	return querySessions(db, `SELECT `+sessionColumns+` FROM sessions s
		JOIN bookings bk ON bk.session_id = s.id
		WHERE bk.user_id = ? AND s.session_date >= ?
		ORDER BY s.session_date, s.start_time;`, userID, from)
}

// UnremindedBookings returns the bookings on sessionID that have not had a
// reminder yet.
func (s *Service) UnremindedBookings(db DBorTx, sessionID string) ([]*Booking, error) {
	return queryBookings(db, `SELECT `+bookingColumns+` FROM bookings
		WHERE session_id = ? AND reminder_sent = 0 ORDER BY created_at, rowid;`, sessionID)
}

// ClaimBookingReminder sets the reminder flag on one booking if it is still
// clear and reports whether this call flipped it. Only the caller that wins
// the claim may send the reminder, so overlapping dispatch runs, in this
// process or another one, remind a booking at most once.
func (s *Service) ClaimBookingReminder(db DBorTx, bookingID string) (bool, error) {
	res, err := db.Exec(`UPDATE bookings SET reminder_sent = 1 WHERE id = ? AND reminder_sent = 0;`, bookingID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReleaseBookingReminder clears a claimed flag again after the reminder
// could not be stored, so the next run retries it.
func (s *Service) ReleaseBookingReminder(db DBorTx, bookingID string) error {
	_, err := db.Exec(`UPDATE bookings SET reminder_sent = 0 WHERE id = ?;`, bookingID)
	return err
}

// ResetSessionReminders clears the reminder flag on every booking of
// sessionID. It is called when the session moves to a new date or start
// time.
func (s *Service) ResetSessionReminders(db DBorTx, sessionID string) error {
	_, err := db.Exec(`UPDATE bookings SET reminder_sent = 0 WHERE session_id = ?;`, sessionID)
	return err
}
