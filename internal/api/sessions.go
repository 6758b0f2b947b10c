package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/recurrence"
)

type sessionPayload struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Sport       string             `json:"sport"`
	Location    string             `json:"location"`
	Date        string             `json:"date"`
	StartTime   string             `json:"startTime"`
	EndTime     string             `json:"endTime"`
	Capacity    int                `json:"capacity"`
	Recurrence  *recurrencePayload `json:"recurrence"`
}

type sessionUpdatePayload struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Sport       *string `json:"sport"`
	Location    *string `json:"location"`
	Date        *string `json:"date"`
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	Capacity    *int    `json:"capacity"`
}

const maxTitleLength = 200

func validClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

func validateSession(sess *database.Session) error {
	switch {
	case sess.Title == "":
		return errors.New("title is required")
	case utf8.RuneCountInString(sess.Title) > maxTitleLength:
		return errors.New("title is too long")
	case sess.Capacity < 1:
		return errors.New("capacity must be at least 1")
	case !validClock(sess.StartTime) || !validClock(sess.EndTime):
		return errors.New("startTime and endTime must be HH:MM")
	case sess.EndTime <= sess.StartTime:
		return errors.New("endTime must be after startTime")
	}
	if _, err := recurrence.ParseDate(sess.Date); err != nil {
		return err
	}
	return nil
}

// sessionStart is the moment the session begins in the configured zone.
func (s *Server) sessionStart(sess *database.Session) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", sess.Date+" "+sess.StartTime, s.config.Location)
}

// loadSession resolves {sessionID} and writes a 404 if it does not exist.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*database.Session, bool) {
	sess, err := s.db.GetSessionByID(s.db.GetDB(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("session not found"), http.StatusNotFound)
			return nil, false
		}
		s.serverError(w, r, "load session", err)
		return nil, false
	}
	return sess, true
}

// requireManage writes a 403 unless the caller may manage sess.
func (s *Server) requireManage(w http.ResponseWriter, r *http.Request, sess *database.Session) bool {
	ok, err := s.authz.CanManageSession(s.userID(r), sess)
	if err != nil {
		s.serverError(w, r, "check session permission", err)
		return false
	}
	if !ok {
		s.errorJSON(w, errors.New("only the organizer or an admin can do this"), http.StatusForbidden)
		return false
	}
	return true
}

// handleListSessions lists sessions filtered by date range and sport, with
// the caller's own bookings flagged.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.SessionFilter{
		From:  q.Get("from"),
		To:    q.Get("to"),
		Sport: strings.TrimSpace(q.Get("sport")),
	}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := recurrence.ParseDate(d); err != nil {
			s.errorJSON(w, err, http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("includeCancelled"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			s.errorJSON(w, errors.New("includeCancelled must be a boolean"), http.StatusBadRequest)
			return
		}
		filter.IncludeCancelled = include
	}

	sessions, err := s.db.ListSessions(s.db.GetDB(), filter)
	if err != nil {
		s.serverError(w, r, "list sessions", err)
		return
	}
	mine, err := s.db.SessionsBookedBy(s.db.GetDB(), s.userID(r), filter.From)
	if err != nil {
		s.serverError(w, r, "list own bookings", err)
		return
	}
	booked := make(map[string]bool, len(mine))
	for _, sess := range mine {
		booked[sess.ID] = true
	}
	s.writeJSON(w, http.StatusOK, envelope{"sessions": toSessionResponseList(sessions, booked)})
}

// handleGetSession fetches the details for a single session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	booked, err := s.db.HasBooking(s.db.GetDB(), sess.ID, s.userID(r))
	if err != nil {
		s.serverError(w, r, "check booking", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"session": toSessionResponse(sess, booked)})
}

// insertInstances materializes one instance per date. Instances copy the
// parent's details and carry no recurrence of their own.
func (s *Server) insertInstances(tx *sql.Tx, parent *database.Session, dates []time.Time) error {
	for _, d := range dates {
		_, err := s.db.CreateSession(tx, &database.Session{
			Title:           parent.Title,
			Description:     parent.Description,
			Sport:           parent.Sport,
			Location:        parent.Location,
			Date:            d.Format(recurrence.DateLayout),
			StartTime:       parent.StartTime,
			EndTime:         parent.EndTime,
			Capacity:        parent.Capacity,
			CreatorID:       parent.CreatorID,
			RecurrenceType:  string(recurrence.TypeNone),
			ParentSessionID: sql.NullString{String: parent.ID, Valid: true},
			IsInstance:      true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// expandRecurrence validates the payload against the parent's date and
// returns the instance dates. Nothing has been written when it fails.
func expandRecurrence(p recurrencePayload, parentDate string) (recurrence.Rule, []time.Time, bool, error) {
	rule, err := p.rule()
	if err != nil {
		return rule, nil, false, err
	}
	parent, err := recurrence.ParseDate(parentDate)
	if err != nil {
		return rule, nil, false, err
	}
	dates, truncated, err := rule.Expand(parent)
	return rule, dates, truncated, err
}

// handleCreateSession creates a session and, when a recurrence is given, its
// generated instances.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload sessionPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	userID := s.userID(r)
	sess := &database.Session{
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		Sport:       strings.TrimSpace(payload.Sport),
		Location:    strings.TrimSpace(payload.Location),
		Date:        payload.Date,
		StartTime:   payload.StartTime,
		EndTime:     payload.EndTime,
		Capacity:    payload.Capacity,
		CreatorID:   userID,
	}
	if err := validateSession(sess); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if sess.Date < s.today() {
		s.errorJSON(w, errors.New("session date must not be in the past"), http.StatusBadRequest)
		return
	}

	var rule recurrence.Rule
	var dates []time.Time
	var truncated bool
	recurring := payload.Recurrence != nil && payload.Recurrence.Type != "" && payload.Recurrence.Type != string(recurrence.TypeNone)
	if recurring {
		var err error
		if rule, dates, truncated, err = expandRecurrence(*payload.Recurrence, sess.Date); err != nil {
			s.errorJSON(w, err, http.StatusBadRequest)
			return
		}
	}

	var created *database.Session
	err := s.db.Write(func(tx *sql.Tx) error {
		var err error
		if created, err = s.db.CreateSession(tx, sess); err != nil {
			return err
		}
		if !recurring {
			return nil
		}
		if err := s.db.SetRecurrence(tx, created.ID, string(rule.Type), recurrence.Indices(rule.Days), rule.EndDate.Format(recurrence.DateLayout)); err != nil {
			return err
		}
		return s.insertInstances(tx, created, dates)
	})
	if err != nil {
		s.serverError(w, r, "create session", err)
		return
	}
	if truncated {
		s.log.Warn().Str("session_id", created.ID).Int("instances", len(dates)).Msg("recurrence capped before its end date")
	}

	if created, err = s.db.GetSessionByID(s.db.GetDB(), created.ID); err != nil {
		s.serverError(w, r, "reload session", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, envelope{
		"session":          toSessionResponse(created, false),
		"instancesCreated": len(dates),
	})
}

// handleUpdateSession applies a partial edit. Bookers are told when a tracked
// field changes.
func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok || !s.requireManage(w, r, sess) {
		return
	}
	var payload sessionUpdatePayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	before := *sess
	after := *sess
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&after.Title, payload.Title)
	set(&after.Description, payload.Description)
	set(&after.Sport, payload.Sport)
	set(&after.Location, payload.Location)
	set(&after.Date, payload.Date)
	set(&after.StartTime, payload.StartTime)
	set(&after.EndTime, payload.EndTime)
	if payload.Capacity != nil {
		after.Capacity = *payload.Capacity
	}
	if err := validateSession(&after); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if after.Capacity < sess.BookingCount {
		s.errorJSON(w, errors.New("capacity cannot be lower than the current number of bookings"), http.StatusBadRequest)
		return
	}

	var bookers []string
	err := s.db.Write(func(tx *sql.Tx) error {
		if err := s.db.UpdateSession(tx, &after); err != nil {
			return err
		}
		// A moved session gets a fresh reminder at its new time.
		if before.Date != after.Date || before.StartTime != after.StartTime {
			if err := s.db.ResetSessionReminders(tx, after.ID); err != nil {
				return err
			}
		}
		var err error
		bookers, err = s.db.BookedUserIDs(tx, after.ID)
		return err
	})
	if err != nil {
		s.serverError(w, r, "update session", err)
		return
	}
	s.notifier.SessionModified(s.userID(r), &before, &after, bookers)

	updated, err := s.db.GetSessionByID(s.db.GetDB(), sess.ID)
	if err != nil {
		s.serverError(w, r, "reload session", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"session": toSessionResponse(updated, false)})
}

// handleCancelSession marks a session cancelled and notifies its bookers.
func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok || !s.requireManage(w, r, sess) {
		return
	}
	if sess.Cancelled {
		s.writeJSON(w, http.StatusOK, envelope{"session": toSessionResponse(sess, false)})
		return
	}

	var bookers []string
	err := s.db.Write(func(tx *sql.Tx) error {
		if err := s.db.SetSessionCancelled(tx, sess.ID, true); err != nil {
			return err
		}
		var err error
		bookers, err = s.db.BookedUserIDs(tx, sess.ID)
		return err
	})
	if err != nil {
		s.serverError(w, r, "cancel session", err)
		return
	}
	s.notifier.SessionCancelled(s.userID(r), sess, bookers)

	sess.Cancelled = true
	s.writeJSON(w, http.StatusOK, envelope{"session": toSessionResponse(sess, false)})
}

type removedSession struct {
	session *database.Session
	bookers []string
}

// collectRemoved records each session with its bookers before deletion so
// they can be notified once the rows are gone.
func (s *Server) collectRemoved(tx *sql.Tx, sessions []*database.Session) ([]removedSession, error) {
	out := make([]removedSession, 0, len(sessions))
	for _, sess := range sessions {
		bookers, err := s.db.BookedUserIDs(tx, sess.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, removedSession{sess, bookers})
	}
	return out, nil
}

// handleDeleteSession deletes a session. Deleting a recurring parent takes its
// instances with it. Bookers other than the caller are told.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok || !s.requireManage(w, r, sess) {
		return
	}

	var removed []removedSession
	err := s.db.Write(func(tx *sql.Tx) error {
		targets := []*database.Session{sess}
		if !sess.IsInstance {
			instances, err := s.db.ListInstances(tx, sess.ID)
			if err != nil {
				return err
			}
			targets = append(targets, instances...)
		}
		var err error
		if removed, err = s.collectRemoved(tx, targets); err != nil {
			return err
		}
		return s.db.DeleteSession(tx, sess.ID)
	})
	if err != nil {
		s.serverError(w, r, "delete session", err)
		return
	}

	actorID := s.userID(r)
	for _, rm := range removed {
		s.notifier.SessionDeleted(actorID, rm.session, rm.bookers)
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true, "sessionsDeleted": len(removed)})
}

// handleGenerateRecurrence expands a parent session into instances. Only
// the parent's creator may call it. Calling it twice duplicates instances.
func (s *Server) handleGenerateRecurrence(w http.ResponseWriter, r *http.Request) {
	parent, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if !s.authz.CanGenerateRecurrence(s.userID(r), parent) {
		s.errorJSON(w, errors.New("only the session creator can generate recurring sessions"), http.StatusForbidden)
		return
	}
	if parent.IsInstance {
		s.errorJSON(w, errors.New("recurring sessions can only be generated from a parent session"), http.StatusBadRequest)
		return
	}

	var payload recurrencePayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	rule, dates, truncated, err := expandRecurrence(payload, parent.Date)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	err = s.db.Write(func(tx *sql.Tx) error {
		if err := s.db.SetRecurrence(tx, parent.ID, string(rule.Type), recurrence.Indices(rule.Days), rule.EndDate.Format(recurrence.DateLayout)); err != nil {
			return err
		}
		return s.insertInstances(tx, parent, dates)
	})
	if err != nil {
		s.serverError(w, r, "generate recurring sessions", err)
		return
	}
	if truncated {
		s.log.Warn().Str("session_id", parent.ID).Int("instances", len(dates)).Msg("recurrence capped before its end date")
	}
	s.writeJSON(w, http.StatusOK, envelope{"instancesCreated": len(dates), "truncated": truncated})
}

// handleDeleteFutureInstances removes the instances of a parent dated after
// today. Past and today's instances stay.
func (s *Server) handleDeleteFutureInstances(w http.ResponseWriter, r *http.Request) {
	parent, ok := s.loadSession(w, r)
	if !ok || !s.requireManage(w, r, parent) {
		return
	}
	if parent.IsInstance {
		s.errorJSON(w, errors.New("session is not a recurring parent"), http.StatusBadRequest)
		return
	}

	today := s.today()
	var removed []removedSession
	var deleted int64
	err := s.db.Write(func(tx *sql.Tx) error {
		instances, err := s.db.ListInstances(tx, parent.ID)
		if err != nil {
			return err
		}
		var future []*database.Session
		for _, inst := range instances {
			if inst.Date > today {
				future = append(future, inst)
			}
		}
		if removed, err = s.collectRemoved(tx, future); err != nil {
			return err
		}
		deleted, err = s.db.DeleteFutureInstances(tx, parent.ID, today)
		return err
	})
	if err != nil {
		s.serverError(w, r, "delete future instances", err)
		return
	}

	actorID := s.userID(r)
	for _, rm := range removed {
		s.notifier.SessionDeleted(actorID, rm.session, rm.bookers)
	}
	s.writeJSON(w, http.StatusOK, envelope{"deleted": deleted})
}
