package database

import (
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY REFERENCES users (id) ON DELETE CASCADE,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		avatar_url TEXT,
		approval_status TEXT NOT NULL DEFAULT 'pending'
			CHECK (approval_status IN ('pending', 'approved', 'rejected')),
		approval_actor_id TEXT REFERENCES users (id) ON DELETE SET NULL,
		approval_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		role TEXT NOT NULL CHECK (role IN ('admin', 'member')),
		PRIMARY KEY (user_id, role)
	);`,
	`CREATE TABLE IF NOT EXISTS invites (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		code TEXT UNIQUE NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		invited_by TEXT REFERENCES users (id) ON DELETE SET NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		sport TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		session_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		creator_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		cancelled INTEGER NOT NULL DEFAULT 0,
		recurrence_type TEXT NOT NULL DEFAULT 'none'
			CHECK (recurrence_type IN ('none', 'daily', 'weekly', 'custom')),
		recurrence_days TEXT NOT NULL DEFAULT '',
		recurrence_end_date TEXT,
		parent_session_id TEXT REFERENCES sessions (id) ON DELETE CASCADE,
		is_instance INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions (session_date, start_time);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_parent ON sessions (parent_session_id);`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		reminder_sent INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (session_id, user_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings (user_id);`,
	`CREATE TABLE IF NOT EXISTS session_comments (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		content TEXT NOT NULL CHECK (length(content) BETWEEN 1 AND 2000),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_comments_session ON session_comments (session_id);`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		session_id TEXT REFERENCES sessions (id) ON DELETE SET NULL,
		actor_id TEXT REFERENCES users (id) ON DELETE SET NULL,
		message TEXT NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, read);`,
	`CREATE TABLE IF NOT EXISTS credential_recoveries (
		token_hash TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		expires_at DATETIME NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
}

// InitSchema creates every table and index that does not exist yet. It is
// idempotent and safe to run on every start.
func (s *Service) InitSchema() error {
	return s.Write(func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("exec schema statement: %w", err)
			}
		}
		return nil
	})
}
