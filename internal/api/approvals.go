package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

// requireAdmin answers 403 and returns false unless the caller is an admin.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	isAdmin, err := s.authz.IsAdmin(s.userID(r))
	if err != nil {
		s.serverError(w, r, "check admin role", err)
		return false
	}
	if !isAdmin {
		s.errorJSON(w, errors.New("admin role required"), http.StatusForbidden)
		return false
	}
	return true
}

// handleApproveUser lets an admin accept a pending registration.
func (s *Server) handleApproveUser(w http.ResponseWriter, r *http.Request) {
	s.reviewUser(w, r, database.ApprovalApproved)
}

// handleRejectUser lets an admin turn a pending registration down.
func (s *Server) handleRejectUser(w http.ResponseWriter, r *http.Request) {
	s.reviewUser(w, r, database.ApprovalRejected)
}

func (s *Server) reviewUser(w http.ResponseWriter, r *http.Request, status database.ApprovalStatus) {
	if !s.requireAdmin(w, r) {
		return
	}
	actorID, userID := s.userID(r), chi.URLParam(r, "userID")

	err := s.db.Write(func(tx *sql.Tx) error {
		return s.db.SetApproval(tx, userID, status, actorID, s.now())
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("user not found"), http.StatusNotFound)
			return
		}
		s.serverError(w, r, "set approval of "+userID, err)
		return
	}

	s.notifier.AccountReviewed(userID, actorID, status == database.ApprovalApproved)
	s.log.Info().Str("actor_id", actorID).Str("user_id", userID).Str("status", string(status)).Msg("account reviewed")

	profile, err := s.db.GetProfile(s.db.GetDB(), userID)
	if err != nil {
		s.serverError(w, r, "reload profile", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"profile": toProfileResponse(profile, true)})
}

// handleListInvites returns the invitation codes an admin has issued.
func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	invites, err := s.db.ListInvites(s.db.GetDB())
	if err != nil {
		s.serverError(w, r, "list invites", err)
		return
	}
	out := make([]InviteResponse, len(invites))
	for i, inv := range invites {
		out[i] = toInviteResponse(inv)
	}
	s.writeJSON(w, http.StatusOK, envelope{"invites": out})
}
