package database

import "github.com/google/uuid"

const commentColumns = `c.id, c.session_id, c.user_id, c.content, c.created_at, c.updated_at,
	COALESCE(NULLIF(p.display_name, ''), p.email, '')`

func scanComment(row rowScanner) (*Comment, error) {
	c := &Comment{}
	if err := row.Scan(&c.ID, &c.SessionID, &c.UserID, &c.Content, &c.CreatedAt, &c.UpdatedAt, &c.AuthorName); err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// CreateComment stores a comment and returns it with its author name.
func (s *Service) CreateComment(db DBorTx, sessionID, userID, content string) (*Comment, error) {
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO session_comments (id, session_id, user_id, content) VALUES (?, ?, ?, ?);`,
		id, sessionID, userID, content)
	if err != nil {
		return nil, err
	}
	return s.GetComment(db, id)
}

// GetComment returns one comment, or ErrNotFound.
func (s *Service) GetComment(db DBorTx, id string) (*Comment, error) {
	return scanComment(db.QueryRow(`SELECT `+commentColumns+` FROM session_comments c
		LEFT JOIN profiles p ON p.id = c.user_id WHERE c.id = ?;`, id))
}

// ListComments returns the comments on sessionID, oldest first.
func (s *Service) ListComments(db DBorTx, sessionID string) ([]*Comment, error) {
	rows, err := db.Query(`SELECT `+commentColumns+` FROM session_comments c
		LEFT JOIN profiles p ON p.id = c.user_id
		WHERE c.session_id = ? ORDER BY c.created_at, c.rowid;`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UpdateComment replaces the content and bumps updated_at.
func (s *Service) UpdateComment(db DBorTx, id, content string) error {
	return expectAffected(db.Exec(`UPDATE session_comments SET content = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;`,
		content, id))
}

// DeleteComment removes a comment by id.
func (s *Service) DeleteComment(db DBorTx, id string) error {
	return expectAffected(db.Exec(`DELETE FROM session_comments WHERE id = ?;`, id))
}
