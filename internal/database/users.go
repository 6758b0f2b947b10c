package database

import (
	"time"

	"github.com/google/uuid"
)

// --- Identity records ('users') ---

// CreateUser inserts an identity record. An empty passwordHash is stored as
// NULL for Google-only accounts.
func (s *Service) CreateUser(db DBorTx, email, passwordHash string) (*User, error) {
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?);`,
		id, email, nullString(passwordHash))
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(db, id)
}

const userColumns = `id, email, password_hash, created_at`

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// GetUserByID returns the identity record, or ErrNotFound.
func (s *Service) GetUserByID(db DBorTx, id string) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?;`, id))
}

// GetUserByEmail looks up an identity by its normalized email.
func (s *Service) GetUserByEmail(db DBorTx, email string) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?;`, email))
}

// UpdateUserPassword replaces the stored argon2id hash.
func (s *Service) UpdateUserPassword(db DBorTx, userID, passwordHash string) error {
	return expectAffected(db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?;`, passwordHash, userID))
}

// UpdateEmail changes the identity email and the profile's cached copy. It
// must run inside a transaction so both rows change together.
func (s *Service) UpdateEmail(db DBorTx, userID, email string) error {
	if err := expectAffected(db.Exec(`UPDATE users SET email = ? WHERE id = ?;`, email, userID)); err != nil {
		return err
	}
	return expectAffected(db.Exec(`UPDATE profiles SET email = ? WHERE id = ?;`, email, userID))
}

// DeleteUser removes the identity record. Profile, roles, bookings,
// comments, notifications and created sessions go with it through cascades.
func (s *Service) DeleteUser(db DBorTx, userID string) error {
	return expectAffected(db.Exec(`DELETE FROM users WHERE id = ?;`, userID))
}

// --- Profiles ---

// CreateProfile inserts the public profile that goes with a user account.
func (s *Service) CreateProfile(db DBorTx, userID, displayName, email string, status ApprovalStatus) (*Profile, error) {
	_, err := db.Exec(`INSERT INTO profiles (id, display_name, email, approval_status) VALUES (?, ?, ?, ?);`,
		userID, displayName, email, status)
	if err != nil {
		return nil, err
	}
	return s.GetProfile(db, userID)
}

const profileColumns = `id, display_name, email, avatar_url, approval_status, approval_actor_id, approval_at, created_at`

func scanProfile(row rowScanner) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(&p.ID, &p.DisplayName, &p.Email, &p.AvatarURL,
		&p.ApprovalStatus, &p.ApprovalActorID, &p.ApprovalAt, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// GetProfile returns the profile of userID without roles.
func (s *Service) GetProfile(db DBorTx, userID string) (*Profile, error) {
	return scanProfile(db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?;`, userID))
}

// GetProfilesByIDs returns the profiles for ids keyed by user ID. Unknown
// IDs are simply absent from the map.
func (s *Service) GetProfilesByIDs(db DBorTx, ids []string) (map[string]*Profile, error) {
	out := make(map[string]*Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.Query(`SELECT `+profileColumns+` FROM profiles WHERE id IN (`+placeholders(len(ids))+`);`, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// ListProfiles returns every profile ordered by display name.
func (s *Service) ListProfiles(db DBorTx) ([]*Profile, error) {
	rows, err := db.Query(`SELECT ` + profileColumns + ` FROM profiles ORDER BY display_name COLLATE NOCASE, email;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ListProfilesWithRoles is ListProfiles with each profile's role set filled in.
func (s *Service) ListProfilesWithRoles(db DBorTx) ([]*Profile, error) {
	profiles, err := s.ListProfiles(db)
	if err != nil {
		return nil, err
	}
	roles, err := s.rolesByUser(db)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		p.Roles = roles[p.ID]
	}
	return profiles, nil
}

func (s *Service) UpdateProfileName(db DBorTx, userID, displayName string) error {
	return expectAffected(db.Exec(`UPDATE profiles SET display_name = ? WHERE id = ?;`, displayName, userID))
}

func (s *Service) UpdateProfileAvatar(db DBorTx, userID, avatarURL string) error {
	return expectAffected(db.Exec(`UPDATE profiles SET avatar_url = ? WHERE id = ?;`, nullString(avatarURL), userID))
}

// SetApproval records an admin decision on a profile together with the
// deciding admin and the time of the decision.
func (s *Service) SetApproval(db DBorTx, userID string, status ApprovalStatus, actorID string, at time.Time) error {
	return expectAffected(db.Exec(
		`UPDATE profiles SET approval_status = ?, approval_actor_id = ?, approval_at = ? WHERE id = ?;`,
		status, actorID, at.UTC(), userID))
}
