package database

import (
	"strings"

	"github.com/google/uuid"
)

const sessionColumns = `s.id, s.title, s.description, s.sport, s.location, s.session_date, s.start_time, s.end_time,
	s.capacity, s.creator_id, s.cancelled, s.recurrence_type, s.recurrence_days, s.recurrence_end_date,
	s.parent_session_id, s.is_instance, s.created_at,
	(SELECT COUNT(*) FROM bookings b WHERE b.session_id = s.id)`

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var days string
	err := row.Scan(&sess.ID, &sess.Title, &sess.Description, &sess.Sport, &sess.Location,
		&sess.Date, &sess.StartTime, &sess.EndTime, &sess.Capacity, &sess.CreatorID, &sess.Cancelled,
		&sess.RecurrenceType, &days, &sess.RecurrenceEndDate, &sess.ParentSessionID, &sess.IsInstance,
		&sess.CreatedAt, &sess.BookingCount)
	if err != nil {
		return nil, notFound(err)
	}
	sess.RecurrenceDays = decodeDays(days)
	return sess, nil
}

func querySessions(db DBorTx, query string, args ...any) ([]*Session, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// CreateSession inserts sess with a fresh ID and returns the stored row.
func (s *Service) CreateSession(db DBorTx, sess *Session) (*Session, error) {
	id := uuid.NewString()
	recurrenceType := sess.RecurrenceType
	if recurrenceType == "" {
		recurrenceType = "none"
	}
	_, err := db.Exec(`
		INSERT INTO sessions (id, title, description, sport, location, session_date, start_time, end_time,
			capacity, creator_id, cancelled, recurrence_type, recurrence_days, recurrence_end_date,
			parent_session_id, is_instance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		id, sess.Title, sess.Description, sess.Sport, sess.Location, sess.Date, sess.StartTime, sess.EndTime,
		sess.Capacity, sess.CreatorID, sess.Cancelled, recurrenceType, encodeDays(sess.RecurrenceDays),
		sess.RecurrenceEndDate, sess.ParentSessionID, sess.IsInstance)
	if err != nil {
		return nil, err
	}
	return s.GetSessionByID(db, id)
}

// GetSessionByID returns one session with its booking count, or ErrNotFound.
func (s *Service) GetSessionByID(db DBorTx, id string) (*Session, error) {
	return scanSession(db.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?;`, id))
}

// SessionFilter narrows ListSessions. Empty fields do not filter.
type SessionFilter struct {
	From             string
	To               string
	Sport            string
	IncludeCancelled bool
}

// ListSessions returns sessions in chronological order.
func (s *Service) ListSessions(db DBorTx, f SessionFilter) ([]*Session, error) {
	var where []string
	var args []any
	if f.From != "" {
		where = append(where, "s.session_date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, "s.session_date <= ?")
		args = append(args, f.To)
	}
	if f.Sport != "" {
		where = append(where, "s.sport = ? COLLATE NOCASE")
		args = append(args, f.Sport)
	}
	if !f.IncludeCancelled {
		where = append(where, "s.cancelled = 0")
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions s`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY s.session_date, s.start_time, s.title;`
	return querySessions(db, query, args...)
}

// UpdateSession writes the editable fields of sess. Recurrence fields,
// creator and parent linkage are not touched.
func (s *Service) UpdateSession(db DBorTx, sess *Session) error {
	return expectAffected(db.Exec(`
		UPDATE sessions SET title = ?, description = ?, sport = ?, location = ?, session_date = ?,
			start_time = ?, end_time = ?, capacity = ?
		WHERE id = ?;`,
		sess.Title, sess.Description, sess.Sport, sess.Location, sess.Date,
		sess.StartTime, sess.EndTime, sess.Capacity, sess.ID))
}

// SetRecurrence stores the declared recurrence rule on a parent session.
func (s *Service) SetRecurrence(db DBorTx, id, recurrenceType string, days []int, endDate string) error {
	return expectAffected(db.Exec(
		`UPDATE sessions SET recurrence_type = ?, recurrence_days = ?, recurrence_end_date = ? WHERE id = ?;`,
		recurrenceType, encodeDays(days), nullString(endDate), id))
}

// SetSessionCancelled flips the cancelled flag. A cancelled session stays in
// place so its bookers keep a link to it; it is hidden from listings and
// from the reminder window.
func (s *Service) SetSessionCancelled(db DBorTx, id string, cancelled bool) error {
	return expectAffected(db.Exec(`UPDATE sessions SET cancelled = ? WHERE id = ?;`, cancelled, id))
}

// DeleteSession removes a session. Bookings, comments and generated
// instances are removed by cascade.
func (s *Service) DeleteSession(db DBorTx, id string) error {
	return expectAffected(db.Exec(`DELETE FROM sessions WHERE id = ?;`, id))
}

// ListInstances returns the generated instances of a parent session.
func (s *Service) ListInstances(db DBorTx, parentID string) ([]*Session, error) {
	return querySessions(db, `SELECT `+sessionColumns+` FROM sessions s
		WHERE s.parent_session_id = ? ORDER BY s.session_date;`, parentID)
}

// DeleteFutureInstances deletes the instances of parentID dated strictly
// after today and returns how many were removed. Past and current instances
// are left alone.
func (s *Service) DeleteFutureInstances(db DBorTx, parentID, today string) (int64, error) {
	res, err := db.Exec(`DELETE FROM sessions WHERE parent_session_id = ? AND is_instance = 1 AND session_date > ?;`,
		parentID, today)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SessionsStartingBetween returns the non-cancelled sessions on date whose
// start time lies in [from, to].
func (s *Service) SessionsStartingBetween(db DBorTx, date, from, to string) ([]*Session, error) {
	return querySessions(db, `SELECT `+sessionColumns+` FROM sessions s
		WHERE s.session_date = ? AND s.start_time >= ? AND s.start_time <= ? AND s.cancelled = 0
		ORDER BY s.start_time;`, date, from, to)
}

// SessionsCreatedBy returns every session userID created, instances included.
func (s *Service) SessionsCreatedBy(db DBorTx, userID string) ([]*Session, error) {
	return querySessions(db, `SELECT `+sessionColumns+` FROM sessions s
		WHERE s.creator_id = ? ORDER BY s.session_date, s.start_time;`, userID)
}
