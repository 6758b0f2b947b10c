package database

import "github.com/google/uuid"

const inviteColumns = `id, email, code, used, invited_by, created_at`

func scanInvite(row rowScanner) (*Invite, error) {
	inv := &Invite{}
	if err := row.Scan(&inv.ID, &inv.Email, &inv.Code, &inv.Used, &inv.InvitedBy, &inv.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return inv, nil
}

// CreateInvite inserts a pending invite. A second invite for the same email
// fails with a unique violation; callers use that as the signal to fetch
// the existing row.
func (s *Service) CreateInvite(db DBorTx, email, code, invitedBy string) (*Invite, error) {
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO invites (id, email, code, invited_by) VALUES (?, ?, ?, ?);`,
		id, email, code, nullString(invitedBy))
	if err != nil {
		return nil, err
	}
	return s.GetInviteByID(db, id)
}

// GetInviteByID returns the invite with the given ID or ErrNotFound.
func (s *Service) GetInviteByID(db DBorTx, id string) (*Invite, error) {
	return scanInvite(db.QueryRow(`SELECT `+inviteColumns+` FROM invites WHERE id = ?;`, id))
}

// GetInviteByEmail returns the single invite issued to email. Emails are
// stored normalized, so callers must lower-case before looking up.
func (s *Service) GetInviteByEmail(db DBorTx, email string) (*Invite, error) {
	return scanInvite(db.QueryRow(`SELECT `+inviteColumns+` FROM invites WHERE email = ?;`, email))
}

// GetInviteByCode resolves the code a new user types in at signup.
func (s *Service) GetInviteByCode(db DBorTx, code string) (*Invite, error) {
	return scanInvite(db.QueryRow(`SELECT `+inviteColumns+` FROM invites WHERE code = ?;`, code))
}

// ListInvites returns every invite, newest first.
func (s *Service) ListInvites(db DBorTx) ([]*Invite, error) {
	rows, err := db.Query(`SELECT ` + inviteColumns + ` FROM invites ORDER BY created_at DESC, rowid DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []*Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// ConsumeInvite flips the used flag. It fails with ErrInviteUsed if the
// invite was consumed already, so a code can only ever admit one signup.
func (s *Service) ConsumeInvite(db DBorTx, id string) error {
	err := expectAffected(db.Exec(`UPDATE invites SET used = 1 WHERE id = ? AND used = 0;`, id))
	if err == ErrNotFound {
		return ErrInviteUsed
	}
	return err
}

// ReissueInvite gives a consumed invite a fresh code and marks it pending
// again. It is used when the account created from it no longer exists.
func (s *Service) ReissueInvite(db DBorTx, id, code, invitedBy string) (*Invite, error) {
	err := expectAffected(db.Exec(`UPDATE invites SET code = ?, used = 0, invited_by = ? WHERE id = ?;`,
		code, nullString(invitedBy), id))
	if err != nil {
		return nil, err
	}
	return s.GetInviteByID(db, id)
}
