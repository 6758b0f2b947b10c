package api

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/auth"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

const recoveryTTL = 24 * time.Hour

type adminPayload struct {
	Action string   `json:"action"`
	UserID string   `json:"userId"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

// legacyAdminActions maps the older method-based dispatch onto actions.
var legacyAdminActions = map[string]string{
	http.MethodGet:    "list",
	http.MethodDelete: "delete",
	http.MethodPatch:  "updateEmail",
	http.MethodPut:    "updateRoles",
}

// handleAdminUsers is the single admin user-management entry point. The
// action comes from the body of a POST, or from the method for legacy
// clients.
func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	callerID := s.userID(r)
	isAdmin, err := s.authz.IsAdmin(callerID)
	if err != nil {
		s.serverError(w, r, "check admin role", err)
		return
	}
	if !isAdmin {
		s.errorJSON(w, errors.New("admin role required"), http.StatusForbidden)
		return
	}

	var payload adminPayload
	action, legacy := legacyAdminActions[r.Method]
	switch {
	case r.Method == http.MethodGet:
	case legacy || r.Method == http.MethodPost:
		if err := s.readJSON(w, r, &payload); err != nil && !errors.Is(err, errEmptyBody) {
			s.errorJSON(w, err, http.StatusBadRequest)
			return
		}
	default:
		s.errorJSON(w, errors.New("method not allowed"), http.StatusMethodNotAllowed)
		return
	}
	if payload.UserID == "" {
		payload.UserID = r.URL.Query().Get("userId")
	}

	if r.Method == http.MethodPost {
		action = payload.Action
		if action == "" {
			if payload.Email == "" {
				s.errorJSON(w, errors.New("action is required"), http.StatusBadRequest)
				return
			}
			// Older clients posted a bare {email} to invite.
			action = "invite"
		}
	}

	switch action {
	case "list":
		s.adminListUsers(w, r)
	case "delete":
		s.adminDeleteUser(w, r, callerID, payload)
	case "updateEmail":
		s.adminUpdateEmail(w, r, payload)
	case "updateRoles":
		s.adminUpdateRoles(w, r, callerID, payload)
	case "invite":
		s.adminInvite(w, r, callerID, payload)
	default:
		s.errorJSON(w, errors.New("unknown action"), http.StatusNotFound)
	}
}

// adminListUsers returns every account with its roles and approval state.
func (s *Server) adminListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.db.ListProfilesWithRoles(s.db.GetDB())
	if err != nil {
		s.serverError(w, r, "list users", err)
		return
	}
	out := make([]ProfileResponse, len(profiles))
	for i, p := range profiles {
		out[i] = toProfileResponse(p, true)
	}
	s.writeJSON(w, http.StatusOK, envelope{"users": out})
}

// adminDeleteUser removes another account. Admins cannot delete themselves here.
func (s *Server) adminDeleteUser(w http.ResponseWriter, r *http.Request, callerID string, p adminPayload) {
	if p.UserID == "" {
		s.errorJSON(w, errors.New("userId is required"), http.StatusBadRequest)
		return
	}
	if p.UserID == callerID {
		s.errorJSON(w, errors.New("you cannot delete your own account here"), http.StatusBadRequest)
		return
	}
	if err := s.deleteAccount(p.UserID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("user not found"), http.StatusNotFound)
			return
		}
		s.serverError(w, r, "delete user "+p.UserID, err)
		return
	}
	s.log.Info().Str("actor_id", callerID).Str("user_id", p.UserID).Msg("user deleted by admin")
	s.writeJSON(w, http.StatusOK, envelope{"success": true})
}

// adminUpdateEmail changes the login email of an account and keeps the
// profile copy in step.
func (s *Server) adminUpdateEmail(w http.ResponseWriter, r *http.Request, p adminPayload) {
	email := normalizeEmail(p.Email)
	if p.UserID == "" || email == "" {
		s.errorJSON(w, errors.New("userId and email are required"), http.StatusBadRequest)
		return
	}
	if !validEmail(email) {
		s.errorJSON(w, errors.New("email is invalid"), http.StatusBadRequest)
		return
	}

	err := s.db.Write(func(tx *sql.Tx) error {
		return s.db.UpdateEmail(tx, p.UserID, email)
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			s.errorJSON(w, errors.New("user not found"), http.StatusNotFound)
		case database.IsUniqueViolation(err):
			s.errorJSON(w, errors.New("email is already in use"), http.StatusConflict)
		default:
			s.serverError(w, r, "update email of "+p.UserID, err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true})
}

// adminUpdateRoles replaces the role set of an account. An admin cannot drop
// their own admin role.
func (s *Server) adminUpdateRoles(w http.ResponseWriter, r *http.Request, callerID string, p adminPayload) {
	if p.UserID == "" || p.Roles == nil {
		s.errorJSON(w, errors.New("userId and roles are required"), http.StatusBadRequest)
		return
	}
	roles := make([]database.Role, 0, len(p.Roles))
	keepsAdmin := false
	for _, name := range p.Roles {
		role, ok := database.ParseRole(name)
		if !ok {
			s.errorJSON(w, errors.New("unknown role: "+name), http.StatusBadRequest)
			return
		}
		keepsAdmin = keepsAdmin || role == database.RoleAdmin
		roles = append(roles, role)
	}
	if p.UserID == callerID && !keepsAdmin {
		s.errorJSON(w, errors.New("you cannot remove your own admin role"), http.StatusBadRequest)
		return
	}

	err := s.db.Write(func(tx *sql.Tx) error {
		if _, err := s.db.GetUserByID(tx, p.UserID); err != nil {
			return err
		}
		return s.db.SetRoles(tx, p.UserID, roles)
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("user not found"), http.StatusNotFound)
			return
		}
		s.serverError(w, r, "update roles of "+p.UserID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true, "roles": roleNames(roles)})
}

// adminInvite starts credential recovery for a known email and issues an
// invite otherwise.
func (s *Server) adminInvite(w http.ResponseWriter, r *http.Request, callerID string, p adminPayload) {
	email := normalizeEmail(p.Email)
	if email == "" {
		s.errorJSON(w, errors.New("email is required"), http.StatusBadRequest)
		return
	}
	if !validEmail(email) {
		s.errorJSON(w, errors.New("email is invalid"), http.StatusBadRequest)
		return
	}

	user, err := s.db.GetUserByEmail(s.db.GetDB(), email)
	switch {
	case err == nil:
		s.adminStartRecovery(w, r, user)
		return
	case !errors.Is(err, database.ErrNotFound):
		s.serverError(w, r, "look up invited email", err)
		return
	}

	code, err := auth.NewInviteCode()
	if err != nil {
		s.serverError(w, r, "generate invite code", err)
		return
	}

	var invite *database.Invite
	existing := false
	err = s.db.Write(func(tx *sql.Tx) error {
		var err error
		invite, err = s.db.CreateInvite(tx, email, code, callerID)
		if err == nil || !database.IsUniqueViolation(err) {
			return err
		}
		// The email was invited before.
		prior, err := s.db.GetInviteByEmail(tx, email)
		if err != nil {
			return err
		}
		if !prior.Used {
			invite, existing = prior, true
			return nil
		}
		invite, err = s.db.ReissueInvite(tx, prior.ID, code, callerID)
		return err
	})
	if err != nil {
		s.serverError(w, r, "create invite for "+email, err)
		return
	}

	if !existing {
		inviter := ""
		if profile, err := s.db.GetProfile(s.db.GetDB(), callerID); err == nil {
			inviter = profile.Name()
		}
		if err := s.mailer.SendInvite(email, invite.Code, inviter); err != nil {
			s.log.Warn().Err(err).Str("email", email).Msg("invite stored but email not sent")
		}
	}
	s.writeJSON(w, http.StatusOK, envelope{
		"success":  true,
		"existing": existing,
		"code":     invite.Code,
		"invite":   toInviteResponse(invite),
	})
}

// adminStartRecovery mails a one-time credential recovery link to an
// existing account. Expired and used tokens are dropped in the same write.
func (s *Server) adminStartRecovery(w http.ResponseWriter, r *http.Request, user *database.User) {
	token, hash, err := auth.NewRecoveryToken()
	if err != nil {
		s.serverError(w, r, "generate recovery token", err)
		return
	}
	err = s.db.Write(func(tx *sql.Tx) error {
		purged, err := s.db.PurgeRecoveries(tx, s.now())
		if err != nil {
			return err
		}
		if purged > 0 {
			s.log.Debug().Int64("purged", purged).Msg("dropped stale recovery tokens")
		}
		return s.db.CreateRecovery(tx, hash, user.ID, s.now().Add(recoveryTTL))
	})
	if err != nil {
		s.serverError(w, r, "store recovery token for "+user.ID, err)
		return
	}
	if err := s.mailer.SendRecovery(user.Email, token); err != nil {
		s.serverError(w, r, "send recovery email to "+user.ID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true, "recovery": true})
}
