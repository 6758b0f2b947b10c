package notify

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/realtime"
)

type recordingPublisher struct {
	sent map[string][]realtime.Message
}

func (p *recordingPublisher) NotifyUser(userID string, msg realtime.Message) {
	if p.sent == nil {
		p.sent = make(map[string][]realtime.Message)
	}
	p.sent[userID] = append(p.sent[userID], msg)
}

type fixture struct {
	db       *database.Service
	notifier *Notifier
	pub      *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewService(filepath.Join(t.TempDir(), "notify.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatal(err)
	}
	pub := &recordingPublisher{}
	return &fixture{db: db, notifier: New(db, pub, zerolog.Nop()), pub: pub}
}

func (f *fixture) user(t *testing.T, email, name string) *database.Profile {
	t.Helper()
	var p *database.Profile
	err := f.db.Write(func(tx *sql.Tx) error {
		u, err := f.db.CreateUser(tx, email, "")
		if err != nil {
			return err
		}
		p, err = f.db.CreateProfile(tx, u.ID, name, email, database.ApprovalApproved)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) session(t *testing.T, creatorID string) *database.Session {
	t.Helper()
	sess, err := f.db.CreateSession(f.db.GetDB(), &database.Session{
		Title: "Padel", Date: "2030-01-01", StartTime: "10:00", EndTime: "11:00", Capacity: 4, CreatorID: creatorID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return sess
}

func (f *fixture) inbox(t *testing.T, userID string) []*database.Notification {
	t.Helper()
	list, err := f.db.ListNotifications(f.db.GetDB(), userID, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	return list
}

func TestBookingCreated(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com", "Alice")
	bob := f.user(t, "bob@example.com", "")
	sess := f.session(t, alice.ID)

	if res := f.notifier.BookingCreated(alice, sess); res.Sent != 0 {
		t.Errorf("self booking sent %d notifications", res.Sent)
	}
	if res := f.notifier.BookingCreated(bob, sess); res.Sent != 1 {
		t.Fatalf("Sent = %d, want 1", res.Sent)
	}

	inbox := f.inbox(t, alice.ID)
	if len(inbox) != 1 {
		t.Fatalf("inbox = %d, want 1", len(inbox))
	}
	if want := "bob@example.com booked your session Padel"; inbox[0].Message != want {
		t.Errorf("Message = %q, want %q", inbox[0].Message, want)
	}
	if inbox[0].Type != TypeBookingCreated || inbox[0].ActorID.String != bob.ID {
		t.Errorf("notification = %+v", inbox[0])
	}
	if len(f.pub.sent[alice.ID]) != 1 {
		t.Errorf("published %d messages, want 1", len(f.pub.sent[alice.ID]))
	}
}

func TestBookingCancelled(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com", "Alice")
	bob := f.user(t, "bob@example.com", "Bob")
	sess := f.session(t, alice.ID)

	f.notifier.BookingCancelled(bob, sess)
	inbox := f.inbox(t, alice.ID)
	if len(inbox) != 1 || inbox[0].Message != "Bob cancelled their booking for Padel" {
		t.Fatalf("inbox = %+v", inbox)
	}
}

func TestSessionDeletedExcludesActor(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com", "Alice")
	bob := f.user(t, "bob@example.com", "Bob")
	carol := f.user(t, "carol@example.com", "Carol")
	sess := f.session(t, alice.ID)

	if res := f.notifier.SessionDeleted(alice.ID, sess, nil); res.Sent != 0 {
		t.Errorf("no bookers: Sent = %d", res.Sent)
	}
	res := f.notifier.SessionDeleted(alice.ID, sess, []string{alice.ID, bob.ID, carol.ID})
	if res.Sent != 2 {
		t.Errorf("Sent = %d, want 2", res.Sent)
	}
	if len(f.inbox(t, alice.ID)) != 0 {
		t.Error("actor notified about their own deletion")
	}
	inbox := f.inbox(t, bob.ID)
	if len(inbox) != 1 || inbox[0].SessionID.Valid {
		t.Errorf("bob inbox = %+v", inbox)
	}
}

func TestSessionModifiedOnlyOnTrackedChange(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com", "Alice")
	bob := f.user(t, "bob@example.com", "Bob")
	before := f.session(t, alice.ID)

	after := *before
	after.Capacity = 10
	after.Description = "bring water"
	if res := f.notifier.SessionModified(alice.ID, before, &after, []string{bob.ID}); res.Sent != 0 {
		t.Errorf("untracked change sent %d", res.Sent)
	}

	after.Location = "Court 2"
	if res := f.notifier.SessionModified(alice.ID, before, &after, []string{bob.ID}); res.Sent != 1 {
		t.Errorf("tracked change Sent = %d, want 1", res.Sent)
	}
	inbox := f.inbox(t, bob.ID)
	if len(inbox) != 1 || inbox[0].Message != "Padel was modified by its organizer" {
		t.Errorf("inbox = %+v", inbox)
	}
}

func TestUserPendingApprovalGoesToAdmins(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin@example.com", "Admin")
	member := f.user(t, "member@example.com", "")
	newcomer := f.user(t, "new@example.com", "Newcomer")
	if err := f.db.AddRole(f.db.GetDB(), admin.ID, database.RoleAdmin); err != nil {
		t.Fatal(err)
	}

	res := f.notifier.UserPendingApproval(newcomer)
	if res.Sent != 1 {
		t.Fatalf("Sent = %d, want 1", res.Sent)
	}
	inbox := f.inbox(t, admin.ID)
	if len(inbox) != 1 || inbox[0].Message != "Newcomer is awaiting approval" {
		t.Errorf("admin inbox = %+v", inbox)
	}
	if len(f.inbox(t, member.ID)) != 0 {
		t.Error("member received an approval notification")
	}
}

func TestFanOutIsPerRecipient(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com", "Alice")
	bob := f.user(t, "bob@example.com", "Bob")
	sess := f.session(t, alice.ID)

	res := f.notifier.SessionCancelled(alice.ID, sess, []string{"missing-user", bob.ID})
	if res.Sent != 1 || res.Failed != 1 {
		t.Errorf("Result = %+v, want 1 sent 1 failed", res)
	}
	if len(f.inbox(t, bob.ID)) != 1 {
		t.Error("valid recipient skipped after a failure")
	}
}

func TestAccountReviewed(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin@example.com", "Admin")
	bob := f.user(t, "bob@example.com", "Bob")

	f.notifier.AccountReviewed(bob.ID, admin.ID, true)
	inbox := f.inbox(t, bob.ID)
	if len(inbox) != 1 || inbox[0].Type != TypeAccountApproved {
		t.Errorf("inbox = %+v", inbox)
	}
}
