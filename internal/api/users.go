package api

import (
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/auth"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

const maxDisplayNameLength = 100

// handleGetMyProfile returns the caller's own profile including email.
func (s *Server) handleGetMyProfile(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	profile, err := s.db.GetProfile(s.db.GetDB(), userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("user not found"), http.StatusNotFound)
			return
		}
		s.serverError(w, r, "load profile", err)
		return
	}
	if profile.Roles, err = s.db.GetRoles(s.db.GetDB(), userID); err != nil {
		s.serverError(w, r, "load roles", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"user": toProfileResponse(profile, true)})
}

// handleUpdateMyProfile changes the caller's display name.
func (s *Server) handleUpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DisplayName *string `json:"displayName"`
	}
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if payload.DisplayName == nil {
		s.errorJSON(w, errors.New("no changes provided"), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(*payload.DisplayName)
	if len([]rune(name)) > maxDisplayNameLength {
		s.errorJSON(w, errors.New("display name is too long"), http.StatusBadRequest)
		return
	}

	userID := s.userID(r)
	err := s.db.Write(func(tx *sql.Tx) error {
		return s.db.UpdateProfileName(tx, userID, name)
	})
	if err != nil {
		s.serverError(w, r, "update display name", err)
		return
	}
	s.handleGetMyProfile(w, r)
}

// handleUpdateMyAvatar stores the public URL of an already uploaded avatar.
func (s *Server) handleUpdateMyAvatar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AvatarURL string `json:"avatarUrl"`
	}
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if payload.AvatarURL != "" {
		u, err := url.Parse(payload.AvatarURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			s.errorJSON(w, errors.New("avatarUrl must be an http(s) URL"), http.StatusBadRequest)
			return
		}
	}

	userID := s.userID(r)
	err := s.db.Write(func(tx *sql.Tx) error {
		return s.db.UpdateProfileAvatar(tx, userID, payload.AvatarURL)
	})
	if err != nil {
		s.serverError(w, r, "update avatar", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"message": "Avatar updated successfully"})
}

// handleChangePassword replaces the caller's password after checking the
// current one.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	userID := s.userID(r)
	user, err := s.db.GetUserByID(s.db.GetDB(), userID)
	if err != nil {
		s.serverError(w, r, "load user", err)
		return
	}
	if !user.PasswordHash.Valid {
		s.errorJSON(w, errors.New("cannot change password for a Google account"), http.StatusBadRequest)
		return
	}
	if !auth.CheckPasswordHash(payload.OldPassword, user.PasswordHash.String) {
		s.errorJSON(w, errors.New("incorrect old password"), http.StatusUnauthorized)
		return
	}
	if err := auth.ValidatePassword(payload.NewPassword); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	hash, err := auth.HashPassword(payload.NewPassword)
	if err != nil {
		s.serverError(w, r, "hash password", err)
		return
	}

	err = s.db.Write(func(tx *sql.Tx) error {
		return s.db.UpdateUserPassword(tx, userID, hash)
	})
	if err != nil {
		s.serverError(w, r, "update password", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true})
}

// handleDeleteMyAccount deletes the caller's account and tells the bookers
// of sessions they organized.
func (s *Server) handleDeleteMyAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteAccount(s.userID(r)); err != nil {
		s.serverError(w, r, "delete own account", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true})
}

// deleteAccount removes a user and everything they own. Bookers of the
// sessions that disappear with the account are told the session was
// cancelled.
func (s *Server) deleteAccount(userID string) error {
	type removed struct {
		session *database.Session
		bookers []string
	}
	var gone []removed

	err := s.db.Write(func(tx *sql.Tx) error {
		sessions, err := s.db.SessionsCreatedBy(tx, userID)
		if err != nil {
			return err
		}
		for _, sess := range sessions {
			bookers, err := s.db.BookedUserIDs(tx, sess.ID)
			if err != nil {
				return err
			}
			gone = append(gone, removed{sess, bookers})
		}
		return s.db.DeleteUser(tx, userID)
	})
	if err != nil {
		return err
	}

	for _, g := range gone {
		// The organizer no longer exists, so the notification has no actor.
		s.notifier.SessionDeleted("", g.session, without(g.bookers, userID))
	}
	return nil
}

// handleListProfiles is the redacted profile directory: emails are only
// shown to their owner and to admins.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	callerID := s.userID(r)
	isAdmin, err := s.authz.IsAdmin(callerID)
	if err != nil {
		s.serverError(w, r, "check admin role", err)
		return
	}
	profiles, err := s.db.ListProfiles(s.db.GetDB())
	if err != nil {
		s.serverError(w, r, "list profiles", err)
		return
	}

	out := make([]ProfileResponse, len(profiles))
	for i, p := range profiles {
		out[i] = toProfileResponse(p, isAdmin || p.ID == callerID)
	}
	s.writeJSON(w, http.StatusOK, envelope{"profiles": out})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "userID")
	profile, err := s.db.GetProfile(s.db.GetDB(), profileID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("user not found"), http.StatusNotFound)
			return
		}
		s.serverError(w, r, "load profile", err)
		return
	}
	showEmail, err := s.authz.CanReadEmail(s.userID(r), profileID)
	if err != nil {
		s.serverError(w, r, "check email visibility", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"profile": toProfileResponse(profile, showEmail)})
}

// without returns ids minus exclude.
func without(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
