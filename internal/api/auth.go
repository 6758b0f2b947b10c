package api

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	googleOauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/auth"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

type registerPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	InviteCode  string `json:"inviteCode"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// normalizeEmail lower-cases and trims an address before lookups.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

var errInvalidInvite = errors.New("invite code is invalid or has already been used")

// signup creates the identity, profile and member role of a new account and
// consumes its invite, all in one transaction. The bootstrap admin signs up
// without an invite and is approved on the spot.
func (s *Server) signup(email, passwordHash, displayName string, invite *database.Invite) (*database.Profile, error) {
	bootstrap := invite == nil
	status := database.ApprovalPending
	if bootstrap {
		status = database.ApprovalApproved
	}

	var profile *database.Profile
	err := s.db.Write(func(tx *sql.Tx) error {
		user, err := s.db.CreateUser(tx, email, passwordHash)
		if err != nil {
			return err
		}
		if profile, err = s.db.CreateProfile(tx, user.ID, displayName, email, status); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		if err := s.db.AddRole(tx, user.ID, database.RoleMember); err != nil {
			return fmt.Errorf("grant member role: %w", err)
		}
		if bootstrap {
			if err := s.db.AddRole(tx, user.ID, database.RoleAdmin); err != nil {
				return fmt.Errorf("grant admin role: %w", err)
			}
			return nil
		}
		return s.db.ConsumeInvite(tx, invite.ID)
	})
	if err != nil {
		return nil, err
	}

	if profile.ApprovalStatus == database.ApprovalPending {
		s.notifier.UserPendingApproval(profile)
	}
	return profile, nil
}

// inviteFor resolves the invite that allows email to sign up. It returns
// nil, nil for the bootstrap admin.
func (s *Server) inviteFor(email, code string) (*database.Invite, error) {
	if code == "" {
		if s.config.BootstrapAdminEmail != "" && email == s.config.BootstrapAdminEmail {
			return nil, nil
		}
		return nil, errInvalidInvite
	}
	inv, err := s.db.GetInviteByCode(s.db.GetDB(), code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, errInvalidInvite
		}
		return nil, err
	}
	if inv.Used || !strings.EqualFold(inv.Email, email) {
		return nil, errInvalidInvite
	}
	return inv, nil
}

// handleRegister creates an email/password account from a valid invite code.
// The new profile waits for admin approval.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	email := normalizeEmail(payload.Email)
	if !validEmail(email) || payload.Password == "" {
		s.errorJSON(w, errors.New("a valid email and a password are required"), http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePassword(payload.Password); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	invite, err := s.inviteFor(email, strings.TrimSpace(payload.InviteCode))
	if err != nil {
		if errors.Is(err, errInvalidInvite) {
			s.errorJSON(w, err, http.StatusForbidden)
			return
		}
		s.serverError(w, r, "look up invite", err)
		return
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		s.serverError(w, r, "hash password", err)
		return
	}

	profile, err := s.signup(email, hash, strings.TrimSpace(payload.DisplayName), invite)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			s.errorJSON(w, errors.New("a user with this email address already exists"), http.StatusConflict)
		case errors.Is(err, database.ErrInviteUsed):
			s.errorJSON(w, errInvalidInvite, http.StatusConflict)
		default:
			s.serverError(w, r, "register user", err)
		}
		return
	}

	s.respondWithToken(w, r, http.StatusCreated, profile)
}

// respondWithToken issues a JWT for profile and writes it with the profile.
func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, status int, profile *database.Profile) {
	token, expires, err := s.tokens.Generate(profile.ID, profile.Email)
	if err != nil {
		s.serverError(w, r, "generate token", err)
		return
	}
	roles, err := s.db.GetRoles(s.db.GetDB(), profile.ID)
	if err != nil {
		s.serverError(w, r, "load roles", err)
		return
	}
	profile.Roles = roles
	s.writeJSON(w, status, envelope{
		"token":     token,
		"expiresAt": expires,
		"user":      toProfileResponse(profile, true),
	})
}

// handleLogin handles authentication for an existing user via email/password.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	email := normalizeEmail(payload.Email)
	if email == "" || payload.Password == "" {
		s.errorJSON(w, errors.New("email and password are required"), http.StatusBadRequest)
		return
	}

	user, err := s.db.GetUserByEmail(s.db.GetDB(), email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("invalid email or password"), http.StatusUnauthorized)
			return
		}
		s.serverError(w, r, "load user by email", err)
		return
	}
	if !user.PasswordHash.Valid || user.PasswordHash.String == "" {
		s.errorJSON(w, errors.New("please log in using the method you signed up with"), http.StatusUnauthorized)
		return
	}
	if !auth.CheckPasswordHash(payload.Password, user.PasswordHash.String) {
		s.errorJSON(w, errors.New("invalid email or password"), http.StatusUnauthorized)
		return
	}

	profile, err := s.db.GetProfile(s.db.GetDB(), user.ID)
	if err != nil {
		s.serverError(w, r, "load profile", err)
		return
	}
	s.respondWithToken(w, r, http.StatusOK, profile)
}

// handleRecover completes the credential recovery started by an admin
// invite of an existing user.
func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if payload.Token == "" {
		s.errorJSON(w, errors.New("token is required"), http.StatusBadRequest)
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
		userID, err := s.db.ConsumeRecovery(tx, auth.HashToken(payload.Token), s.now())
		if err != nil {
			return err
		}
		return s.db.UpdateUserPassword(tx, userID, hash)
	})
	if err != nil {
		if errors.Is(err, database.ErrRecoveryInvalid) {
			s.errorJSON(w, err, http.StatusBadRequest)
			return
		}
		s.serverError(w, r, "reset password", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true})
}

// handleCheckInvite lets the signup page validate a code before asking for
// a password.
func (s *Server) handleCheckInvite(w http.ResponseWriter, r *http.Request) {
	inv, err := s.db.GetInviteByCode(s.db.GetDB(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("invite not found"), http.StatusNotFound)
			return
		}
		s.serverError(w, r, "load invite", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"email": inv.Email, "valid": !inv.Used})
}

// --- Google sign-in ---

func generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// handleGoogleLogin is the entry point for the OAuth flow. It redirects the user to Google's consent page.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		s.errorJSON(w, errors.New("google sign-in is not configured"), http.StatusNotFound)
		return
	}
	state, err := generateStateOauthCookie(w)
	if err != nil {
		s.serverError(w, r, "generate oauth state", err)
		return
	}
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// redirectLoginError sends the browser back to the frontend login page.
func (s *Server) redirectLoginError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, fmt.Sprintf("%s/login?error=%s", s.config.FrontendURL, url.QueryEscape(reason)), http.StatusTemporaryRedirect)
}

// handleGoogleCallback signs in an existing user or signs up an email that
// holds a pending invite. Anyone else is turned away.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		s.errorJSON(w, errors.New("google sign-in is not configured"), http.StatusNotFound)
		return
	}
	oauthState, err := r.Cookie("oauthstate")
	if err != nil || r.FormValue("state") != oauthState.Value {
		s.errorJSON(w, errors.New("invalid oauth state"), http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	token, err := s.oauth.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		s.log.Warn().Err(err).Msg("google code exchange failed")
		s.redirectLoginError(w, r, "google_exchange_failed")
		return
	}
	userInfo, err := s.fetchGoogleUser(ctx, token)
	if err != nil {
		s.serverError(w, r, "fetch google user info", err)
		return
	}
	email := normalizeEmail(userInfo.Email)

	user, err := s.db.GetUserByEmail(s.db.GetDB(), email)
	switch {
	case err == nil:
	case errors.Is(err, database.ErrNotFound):
		inv, invErr := s.db.GetInviteByEmail(s.db.GetDB(), email)
		if s.config.BootstrapAdminEmail != "" && email == s.config.BootstrapAdminEmail {
			inv = nil
		} else if invErr != nil || inv.Used {
			s.redirectLoginError(w, r, "not_invited")
			return
		}
		profile, signupErr := s.signup(email, "", userInfo.Name, inv)
		if signupErr != nil {
			s.serverError(w, r, "google signup", signupErr)
			return
		}
		user = &database.User{ID: profile.ID, Email: profile.Email}
	default:
		s.serverError(w, r, "load user by email", err)
		return
	}

	appToken, _, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		s.serverError(w, r, "generate token", err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("%s/auth/callback?token=%s", s.config.FrontendURL, url.QueryEscape(appToken)), http.StatusTemporaryRedirect)
}

func (s *Server) fetchGoogleUser(ctx context.Context, token *oauth2.Token) (*googleOauth2.Userinfo, error) {
	svc, err := googleOauth2.NewService(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, token)))
	if err != nil {
		return nil, err
	}
	return svc.Userinfo.Get().Context(ctx).Do()
}
