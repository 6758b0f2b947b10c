package database

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Role is a named capability grant. The set is closed.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleMember:
		return Role(s), true
	}
	return "", false
}

// ApprovalStatus is the admin review state of a profile.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// User is the identity record in the 'users' table. PasswordHash is NULL for
// accounts that only sign in with Google.
type User struct {
	ID           string
	Email        string
	PasswordHash sql.NullString
	CreatedAt    time.Time
}

// Profile is a record in the 'profiles' table. Email is a cached copy of
// users.email and is updated together with it.
type Profile struct {
	ID              string
	DisplayName     string
	Email           string
	AvatarURL       sql.NullString
	ApprovalStatus  ApprovalStatus
	ApprovalActorID sql.NullString
	ApprovalAt      sql.NullTime
	CreatedAt       time.Time

	// Roles is not a column; it is filled by ListProfilesWithRoles.
	Roles []Role
}

// Name returns the human-readable name used in notification messages: the
// display name when set, the email address otherwise.
func (p *Profile) Name() string {
	if strings.TrimSpace(p.DisplayName) != "" {
		return p.DisplayName
	}
	return p.Email
}

// Invite is a record in the 'invites' table. There is at most one per email.
type Invite struct {
	ID        string
	Email     string
	Code      string
	Used      bool
	InvitedBy sql.NullString
	CreatedAt time.Time
}

// Session is a record in the 'sessions' table. Date is 'YYYY-MM-DD' and the
// times are 'HH:MM' wall-clock values in the configured time zone, so they
// compare correctly as strings.
type Session struct {
	ID                string
	Title             string
	Description       string
	Sport             string
	Location          string
	Date              string
	StartTime         string
	EndTime           string
	Capacity          int
	CreatorID         string
	Cancelled         bool
	RecurrenceType    string
	RecurrenceDays    []int
	RecurrenceEndDate sql.NullString
	ParentSessionID   sql.NullString
	IsInstance        bool
	CreatedAt         time.Time

	// BookingCount is not a column; list and get queries fill it.
	BookingCount int
}

// Booking is a record in the 'bookings' table.
type Booking struct {
	ID           string
	SessionID    string
	UserID       string
	ReminderSent bool
	CreatedAt    time.Time
}

// Comment is a record in the 'session_comments' table.
type Comment struct {
	ID        string
	SessionID string
	UserID    string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time

	// AuthorName is joined from profiles.
	AuthorName string
}

// Notification is a record in the 'notifications' table.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	SessionID sql.NullString
	ActorID   sql.NullString
	Message   string
	Read      bool
	CreatedAt time.Time
}

// CredentialRecovery is a single-use password reset grant. Only the SHA-256
// of the token is stored.
type CredentialRecovery struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	Used      bool
}

func encodeDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func decodeDays(s string) []int {
	if s == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	return days
}

// nullString converts an empty string to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
