// Package notify derives notification records from committed mutations and
// stores them for the affected users. Handlers call it after their write
// transaction commits; a failed insert for one recipient never affects the
// others or the mutation itself.
package notify

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/realtime"
)

// Notification types.
const (
	TypeBookingCreated      = "booking_created"
	TypeBookingCancelled    = "booking_cancelled"
	TypeSessionModified     = "session_modified"
	TypeSessionCancelled    = "session_cancelled"
	TypeUserPendingApproval = "user_pending_approval"
	TypeSessionReminder     = "session_reminder"
	TypeAccountApproved     = "account_approved"
	TypeAccountRejected     = "account_rejected"
)

// Store is the persistence the notifier needs. *database.Service satisfies it.
type Store interface {
	Write(fn func(tx *sql.Tx) error) error
	GetDB() *sql.DB
	CreateNotification(db database.DBorTx, n *database.Notification) (*database.Notification, error)
	UserIDsWithRole(db database.DBorTx, role database.Role) ([]string, error)
}

// Publisher pushes stored notifications to live clients.
type Publisher interface {
	NotifyUser(userID string, msg realtime.Message)
}

// Result counts the outcome of one fan-out.
type Result struct {
	Sent   int
	Failed int
}

type Notifier struct {
	store Store
	pub   Publisher
	log   zerolog.Logger
}

// New returns a Notifier. pub may be nil when nothing listens live.
func New(store Store, pub Publisher, log zerolog.Logger) *Notifier {
	return &Notifier{store: store, pub: pub, log: log.With().Str("component", "notify").Logger()}
}

// Payload is the realtime representation of a stored notification.
type Payload struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SessionID *string   `json:"session_id"`
	ActorID   *string   `json:"actor_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func toPayload(n *database.Notification) Payload {
	p := Payload{ID: n.ID, Type: n.Type, Message: n.Message, Read: n.Read, CreatedAt: n.CreatedAt}
	if n.SessionID.Valid {
		p.SessionID = &n.SessionID.String
	}
	if n.ActorID.Valid {
		p.ActorID = &n.ActorID.String
	}
	return p
}

// BookingCreated tells the session creator that actor booked their session.
// Nothing is sent when the creator booked their own session.
func (n *Notifier) BookingCreated(actor *database.Profile, sess *database.Session) Result {
	if actor.ID == sess.CreatorID {
		return Result{}
	}
	msg := fmt.Sprintf("%s booked your session %s", actor.Name(), sess.Title)
	return n.fanOut([]string{sess.CreatorID}, TypeBookingCreated, sess.ID, actor.ID, msg)
}

// BookingCancelled tells the session creator that actor cancelled.
func (n *Notifier) BookingCancelled(actor *database.Profile, sess *database.Session) Result {
	if actor.ID == sess.CreatorID {
		return Result{}
	}
	msg := fmt.Sprintf("%s cancelled their booking for %s", actor.Name(), sess.Title)
	return n.fanOut([]string{sess.CreatorID}, TypeBookingCancelled, sess.ID, actor.ID, msg)
}

// TrackedFieldsChanged reports whether an update touched a field bookers
// care about.
func TrackedFieldsChanged(before, after *database.Session) bool {
	return before.Title != after.Title ||
		before.Date != after.Date ||
		before.StartTime != after.StartTime ||
		before.EndTime != after.EndTime ||
		before.Location != after.Location
}

// SessionModified tells every booked user other than the actor that the
// session changed. It is a no-op unless a tracked field changed.
func (n *Notifier) SessionModified(actorID string, before, after *database.Session, bookers []string) Result {
	if !TrackedFieldsChanged(before, after) {
		return Result{}
	}
	msg := fmt.Sprintf("%s was modified by its organizer", after.Title)
	return n.fanOut(without(bookers, actorID), TypeSessionModified, after.ID, actorID, msg)
}

// SessionCancelled tells every booked user other than the actor that the
// session was cancelled. The session still exists and is linked.
func (n *Notifier) SessionCancelled(actorID string, sess *database.Session, bookers []string) Result {
	msg := fmt.Sprintf("%s was cancelled by its organizer", sess.Title)
	return n.fanOut(without(bookers, actorID), TypeSessionCancelled, sess.ID, actorID, msg)
}

// SessionDeleted is SessionCancelled for a session whose row is gone; the
// notification carries no session link.
func (n *Notifier) SessionDeleted(actorID string, sess *database.Session, bookers []string) Result {
	msg := fmt.Sprintf("%s was cancelled by its organizer", sess.Title)
	return n.fanOut(without(bookers, actorID), TypeSessionCancelled, "", actorID, msg)
}

// UserPendingApproval tells every admin that a new profile awaits review.
func (n *Notifier) UserPendingApproval(p *database.Profile) Result {
	admins, err := n.store.UserIDsWithRole(n.store.GetDB(), database.RoleAdmin)
	if err != nil {
		n.log.Error().Err(err).Str("step", "list admins").Str("user_id", p.ID).Msg("pending approval fan-out failed")
		return Result{Failed: 1}
	}
	msg := fmt.Sprintf("%s is awaiting approval", p.Name())
	return n.fanOut(without(admins, p.ID), TypeUserPendingApproval, "", p.ID, msg)
}

// AccountReviewed tells a user the outcome of their approval review.
func (n *Notifier) AccountReviewed(userID, actorID string, approved bool) Result {
	typ, msg := TypeAccountRejected, "Your account request was declined"
	if approved {
		typ, msg = TypeAccountApproved, "Your account has been approved"
	}
	return n.fanOut([]string{userID}, typ, "", actorID, msg)
}

// Reminder stores the reminder for one booking. Unlike the fan-out methods
// it returns the error so the caller can leave the booking unmarked.
func (n *Notifier) Reminder(userID string, sess *database.Session) error {
	msg := fmt.Sprintf("Reminder: %s starts at %s", sess.Title, sess.StartTime)
	return n.send(userID, TypeSessionReminder, sess.ID, "", msg)
}

func (n *Notifier) fanOut(recipients []string, typ, sessionID, actorID, msg string) Result {
	var res Result
	for _, userID := range recipients {
		if err := n.send(userID, typ, sessionID, actorID, msg); err != nil {
			res.Failed++
			n.log.Error().Err(err).
				Str("step", "insert notification").
				Str("type", typ).
				Str("user_id", userID).
				Str("session_id", sessionID).
				Msg("notification not stored")
			continue
		}
		res.Sent++
	}
	return res
}

func (n *Notifier) send(userID, typ, sessionID, actorID, msg string) error {
	var stored *database.Notification
	err := n.store.Write(func(tx *sql.Tx) error {
		var err error
		stored, err = n.store.CreateNotification(tx, &database.Notification{
			UserID:    userID,
			Type:      typ,
			SessionID: sql.NullString{String: sessionID, Valid: sessionID != ""},
			ActorID:   sql.NullString{String: actorID, Valid: actorID != ""},
			Message:   msg,
		})
		return err
	})
	if err != nil {
		return err
	}
	if n.pub != nil {
		n.pub.NotifyUser(userID, realtime.Message{Type: "notification", Payload: toPayload(stored)})
	}
	return nil
}

// without returns ids minus every occurrence of exclude, deduplicated.
func without(ids []string, exclude string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
