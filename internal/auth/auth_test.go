package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("hash = %q, want argon2id PHC string", hash)
	}
	if !CheckPasswordHash("correct horse", hash) {
		t.Error("matching password rejected")
	}
	if CheckPasswordHash("wrong horse", hash) {
		t.Error("wrong password accepted")
	}
	if CheckPasswordHash("correct horse", "$argon2id$garbage") {
		t.Error("malformed hash accepted")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("err = %v, want ErrPasswordTooShort", err)
	}
	if err := ValidatePassword("long enough"); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}

func TestTokenIssuer(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	ti := NewTokenIssuer("secret", time.Hour)
	ti.now = func() time.Time { return now }

	token, expires, err := ti.Generate("user-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !expires.Equal(now.Add(time.Hour)) {
		t.Errorf("expires = %v", expires)
	}

	claims, err := ti.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@example.com" {
		t.Errorf("claims = %+v", claims)
	}

	other := NewTokenIssuer("other-secret", time.Hour)
	other.now = ti.now
	if _, err := other.Validate(token); err == nil {
		t.Error("token verified with the wrong secret")
	}

	ti.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := ti.Validate(token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestCodes(t *testing.T) {
	a, _ := NewInviteCode()
	b, _ := NewInviteCode()
	if len(a) != 32 || a == b {
		t.Errorf("invite codes %q and %q", a, b)
	}

	token, hash, err := NewRecoveryToken()
	if err != nil {
		t.Fatal(err)
	}
	if HashToken(token) != hash || token == hash {
		t.Error("recovery hash does not match token")
	}
}

type fakeRoles map[string]bool

func (f fakeRoles) HasRole(_ database.DBorTx, userID string, role database.Role) (bool, error) {
	return role == database.RoleAdmin && f[userID], nil
}

func TestAuthorizer(t *testing.T) {
	a := NewAuthorizer(fakeRoles{"admin": true}, nil)
	sess := &database.Session{ID: "s1", CreatorID: "creator"}
	comment := &database.Comment{ID: "c1", UserID: "author"}

	tests := []struct {
		name string
		got  func() (bool, error)
		want bool
	}{
		{"creator manages session", func() (bool, error) { return a.CanManageSession("creator", sess) }, true},
		{"admin manages session", func() (bool, error) { return a.CanManageSession("admin", sess) }, true},
		{"member cannot manage session", func() (bool, error) { return a.CanManageSession("member", sess) }, false},
		{"creator generates recurrence", func() (bool, error) { return a.CanGenerateRecurrence("creator", sess), nil }, true},
		{"admin cannot generate recurrence", func() (bool, error) { return a.CanGenerateRecurrence("admin", sess), nil }, false},
		{"author edits comment", func() (bool, error) { return a.CanEditComment("author", comment), nil }, true},
		{"creator cannot edit comment", func() (bool, error) { return a.CanEditComment("creator", comment), nil }, false},
		{"author deletes comment", func() (bool, error) { return a.CanDeleteComment("author", comment, sess) }, true},
		{"creator deletes comment", func() (bool, error) { return a.CanDeleteComment("creator", comment, sess) }, true},
		{"admin deletes comment", func() (bool, error) { return a.CanDeleteComment("admin", comment, sess) }, true},
		{"member cannot delete comment", func() (bool, error) { return a.CanDeleteComment("member", comment, sess) }, false},
		{"own email visible", func() (bool, error) { return a.CanReadEmail("member", "member") }, true},
		{"admin reads any email", func() (bool, error) { return a.CanReadEmail("admin", "member") }, true},
		{"other email hidden", func() (bool, error) { return a.CanReadEmail("member", "admin") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.got()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
