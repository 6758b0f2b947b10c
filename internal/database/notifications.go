package database

import "github.com/google/uuid"

const notificationColumns = `id, user_id, type, session_id, actor_id, message, read, created_at`

func scanNotification(row rowScanner) (*Notification, error) {
	n := &Notification{}
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.SessionID, &n.ActorID, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

// CreateNotification stores n for n.UserID and returns the stored row.
func (s *Service) CreateNotification(db DBorTx, n *Notification) (*Notification, error) {
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO notifications (id, user_id, type, session_id, actor_id, message) VALUES (?, ?, ?, ?, ?, ?);`,
		id, n.UserID, n.Type, n.SessionID, n.ActorID, n.Message)
	if err != nil {
		return nil, err
	}
	return scanNotification(db.QueryRow(`SELECT `+notificationColumns+` FROM notifications WHERE id = ?;`, id))
}

// ListNotifications returns the newest notifications of userID first. A
// limit of zero or less means no limit.
func (s *Service) ListNotifications(db DBorTx, userID string, unreadOnly bool, limit int) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query+`;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnreadNotifications returns how many notifications userID has not read.
func (s *Service) CountUnreadNotifications(db DBorTx, userID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0;`, userID).Scan(&n)
	return n, err
}

// MarkNotificationRead marks one notification read. Notifications of other
// users are reported as not found.
func (s *Service) MarkNotificationRead(db DBorTx, id, userID string) error {
	return expectAffected(db.Exec(`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?;`, id, userID))
}

// MarkAllNotificationsRead returns how many notifications changed state.
func (s *Service) MarkAllNotificationsRead(db DBorTx, userID string) (int64, error) {
	res, err := db.Exec(`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0;`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteNotification removes one notification owned by userID.
func (s *Service) DeleteNotification(db DBorTx, id, userID string) error {
	return expectAffected(db.Exec(`DELETE FROM notifications WHERE id = ? AND user_id = ?;`, id, userID))
}
