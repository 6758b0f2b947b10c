package database

import "fmt"

// HasRole reports whether userID currently holds role. It is the
// authorization predicate behind every privileged operation and has no side
// effects.
func (s *Service) HasRole(db DBorTx, userID string, role Role) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM user_roles WHERE user_id = ? AND role = ?);`, userID, role).Scan(&exists)
	return exists, err
}

// GetRoles returns the roles held by userID.
func (s *Service) GetRoles(db DBorTx, userID string) ([]Role, error) {
	values, err := collectStrings(db, `SELECT role FROM user_roles WHERE user_id = ? ORDER BY role;`, userID)
	if err != nil {
		return nil, err
	}
	roles := make([]Role, len(values))
	for i, v := range values {
		roles[i] = Role(v)
	}
	return roles, nil
}

// AddRole grants role to userID. Granting a held role is a no-op.
func (s *Service) AddRole(db DBorTx, userID string, role Role) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?);`, userID, role)
	return err
}

// SetRoles replaces the full role set of userID. Run it inside a transaction.
func (s *Service) SetRoles(db DBorTx, userID string, roles []Role) error {
	if _, err := db.Exec(`DELETE FROM user_roles WHERE user_id = ?;`, userID); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	for _, role := range roles {
		if err := s.AddRole(db, userID, role); err != nil {
			return fmt.Errorf("add role %s: %w", role, err)
		}
	}
	return nil
}

// UserIDsWithRole returns every user holding role.
func (s *Service) UserIDsWithRole(db DBorTx, role Role) ([]string, error) {
	return collectStrings(db, `SELECT user_id FROM user_roles WHERE role = ? ORDER BY user_id;`, role)
}

func (s *Service) rolesByUser(db DBorTx) (map[string][]Role, error) {
	rows, err := db.Query(`SELECT user_id, role FROM user_roles ORDER BY user_id, role;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]Role)
	for rows.Next() {
		var userID, role string
		if err := rows.Scan(&userID, &role); err != nil {
			return nil, err
		}
		out[userID] = append(out[userID], Role(role))
	}
	return out, rows.Err()
}
