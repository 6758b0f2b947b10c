package database

import (
	"errors"
	"time"
)

// ErrRecoveryInvalid covers unknown, expired and already used recovery tokens.
var ErrRecoveryInvalid = errors.New("recovery token is invalid or expired")

// CreateRecovery stores the hash of a recovery token for userID. The plain
// token only ever exists in the mail sent to the user.
func (s *Service) CreateRecovery(db DBorTx, tokenHash, userID string, expiresAt time.Time) error {
	_, err := db.Exec(`INSERT INTO credential_recoveries (token_hash, user_id, expires_at) VALUES (?, ?, ?);`,
		tokenHash, userID, expiresAt.UTC().Truncate(time.Second))
	return err
}

// ConsumeRecovery validates and burns a recovery token in one step and
// returns the user it belongs to.
func (s *Service) ConsumeRecovery(db DBorTx, tokenHash string, now time.Time) (string, error) {
	r := &CredentialRecovery{}
	err := db.QueryRow(`SELECT token_hash, user_id, expires_at, used FROM credential_recoveries WHERE token_hash = ?;`,
		tokenHash).Scan(&r.TokenHash, &r.UserID, &r.ExpiresAt, &r.Used)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return "", ErrRecoveryInvalid
		}
		return "", err
	}
	if r.Used || !now.Before(r.ExpiresAt) {
		return "", ErrRecoveryInvalid
	}
	if err := expectAffected(db.Exec(`UPDATE credential_recoveries SET used = 1 WHERE token_hash = ? AND used = 0;`, tokenHash)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrRecoveryInvalid
		}
		return "", err
	}
	return r.UserID, nil
}

// PurgeRecoveries drops tokens that expired before now or were used.
func (s *Service) PurgeRecoveries(db DBorTx, now time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM credential_recoveries WHERE expires_at < ? OR used = 1;`, now.UTC().Truncate(time.Second))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
