package auth

import (
	"fmt"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

// RoleChecker is the role predicate the policies are built on.
type RoleChecker interface {
	HasRole(db database.DBorTx, userID string, role database.Role) (bool, error)
}

// Authorizer holds the policy checks handlers run before any mutation. The
// role lookup itself is not subject to any policy.
type Authorizer struct {
	roles RoleChecker
	db    database.DBorTx
}

// NewAuthorizer returns an Authorizer that looks roles up through db.
func NewAuthorizer(roles RoleChecker, db database.DBorTx) *Authorizer {
	return &Authorizer{roles: roles, db: db}
}

// IsAdmin reports whether userID holds the admin role.
func (a *Authorizer) IsAdmin(userID string) (bool, error) {
	ok, err := a.roles.HasRole(a.db, userID, database.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("check admin role for %s: %w", userID, err)
	}
	return ok, nil
}

// CanManageSession allows the creator and admins to edit, cancel or delete.
func (a *Authorizer) CanManageSession(userID string, sess *database.Session) (bool, error) {
	if sess.CreatorID == userID {
		return true, nil
	}
	return a.IsAdmin(userID)
}

// CanGenerateRecurrence is reserved to the parent's creator. Admins do not
// get an override here.
func (a *Authorizer) CanGenerateRecurrence(userID string, parent *database.Session) bool {
	return parent.CreatorID == userID
}

// CanEditComment is reserved to the author.
func (a *Authorizer) CanEditComment(userID string, c *database.Comment) bool {
	return c.UserID == userID
}

// CanDeleteComment allows the author, the session creator and admins.
func (a *Authorizer) CanDeleteComment(userID string, c *database.Comment, sess *database.Session) (bool, error) {
	if c.UserID == userID || sess.CreatorID == userID {
		return true, nil
	}
	return a.IsAdmin(userID)
}

// CanReadEmail allows a caller to see their own email; admins see everyone's.
func (a *Authorizer) CanReadEmail(callerID, profileID string) (bool, error) {
	if callerID == profileID {
		return true, nil
	}
	return a.IsAdmin(callerID)
}
