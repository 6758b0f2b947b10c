// Package reminder sends the one-hour-ahead reminder for booked sessions.
package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

const (
	windowStart = 55 * time.Minute
	windowEnd   = 65 * time.Minute
)

// Store is the persistence the dispatcher needs. *database.Service
// satisfies it.
type Store interface {
	Write(fn func(tx *sql.Tx) error) error
	GetDB() *sql.DB
	SessionsStartingBetween(db database.DBorTx, date, from, to string) ([]*database.Session, error)
	UnremindedBookings(db database.DBorTx, sessionID string) ([]*database.Booking, error)
	ClaimBookingReminder(db database.DBorTx, bookingID string) (bool, error)
	ReleaseBookingReminder(db database.DBorTx, bookingID string) error
}

// Notifier stores a single reminder notification.
type Notifier interface {
	Reminder(userID string, sess *database.Session) error
}

// Summary is the outcome of one dispatch run.
type Summary struct {
	RemindersSent   int `json:"reminders_sent"`
	SessionsChecked int `json:"sessions_checked"`
}

type Dispatcher struct {
	store    Store
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// New returns a Dispatcher that reads session times in loc.
func New(store Store, notifier Notifier, loc *time.Location, log zerolog.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		log:      log.With().Str("component", "reminder").Logger(),
	}
}

// span is one calendar date and an inclusive 'HH:MM' range on it.
type span struct {
	date, from, to string
}

// window returns the ranges covering now+55m .. now+65m. A window that
// crosses midnight is split at the date boundary.
func window(now time.Time, loc *time.Location) []span {
	start := now.In(loc).Add(windowStart)
	end := now.In(loc).Add(windowEnd)

	startDate := start.Format("2006-01-02")
	endDate := end.Format("2006-01-02")
	if startDate == endDate {
		return []span{{startDate, start.Format("15:04"), end.Format("15:04")}}
	}
	return []span{
		{startDate, start.Format("15:04"), "23:59"},
		{endDate, "00:00", end.Format("15:04")},
	}
}

// Run does one dispatch pass. A failure listing sessions fails the run;
// failures for a single session are logged and the pass moves on.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	var sessions []*database.Session
	for _, sp := range window(d.now(), d.loc) {
		found, err := d.store.SessionsStartingBetween(d.store.GetDB(), sp.date, sp.from, sp.to)
		if err != nil {
			return sum, fmt.Errorf("list sessions on %s between %s and %s: %w", sp.date, sp.from, sp.to, err)
		}
		sessions = append(sessions, found...)
	}

	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.SessionsChecked++
		sent, err := d.remindSession(sess)
		sum.RemindersSent += sent
		if err != nil {
			d.log.Error().Err(err).Str("session_id", sess.ID).Msg("reminders for session failed")
		}
	}

	d.log.Info().Int("reminders_sent", sum.RemindersSent).Int("sessions_checked", sum.SessionsChecked).Msg("reminder run finished")
	return sum, nil
}

// remindSession reminds every booker of sess that has not been reminded.
// Each booking is claimed by flipping its flag before the notification is
// stored; a run that loses the claim to a concurrent run skips the booking.
// When storing the notification fails the claim is released so the next
// run retries.
func (d *Dispatcher) remindSession(sess *database.Session) (int, error) {
	bookings, err := d.store.UnremindedBookings(d.store.GetDB(), sess.ID)
	if err != nil {
		return 0, fmt.Errorf("fetch bookings: %w", err)
	}

	sent := 0
	for _, b := range bookings {
		var claimed bool
		err := d.store.Write(func(tx *sql.Tx) error {
			var err error
			claimed, err = d.store.ClaimBookingReminder(tx, b.ID)
			return err
		})
		if err != nil {
			return sent, fmt.Errorf("claim booking %s: %w", b.ID, err)
		}
		if !claimed {
			continue
		}

		if err := d.notifier.Reminder(b.UserID, sess); err != nil {
			d.log.Error().Err(err).Str("session_id", sess.ID).Str("booking_id", b.ID).Msg("reminder not stored")
			release := d.store.Write(func(tx *sql.Tx) error {
				return d.store.ReleaseBookingReminder(tx, b.ID)
			})
			if release != nil {
				d.log.Error().Err(release).Str("booking_id", b.ID).Msg("could not release reminder claim")
			}
			continue
		}
		sent++
	}
	return sent, nil
}

// Start runs a pass immediately and then every interval until ctx is done.
func (d *Dispatcher) Start(ctx context.Context, interval time.Duration) {
	d.log.Info().Dur("interval", interval).Msg("reminder scheduler started")
	if _, err := d.Run(ctx); err != nil {
		d.log.Error().Err(err).Msg("initial reminder run failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			if _, err := d.Run(ctx); err != nil {
				d.log.Error().Err(err).Msg("reminder run failed")
			}
		}
	}
}
