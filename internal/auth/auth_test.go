package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	token, err := issuer.IssueAccess("user-1", []string{"admin", "editor"})
	if err != nil {
		t.Fatal(err)
	}

	ident, err := issuer.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if ident.ID != "user-1" {
		t.Errorf("id = %q", ident.ID)
	}
	if len(ident.Roles) != 2 || ident.Roles[0] != "admin" {
		t.Errorf("roles = %v", ident.Roles)
	}
	if !ident.IsAdmin() {
		t.Error("admin role not recognized")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a").IssueAccess("user-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenIssuer("secret-b").Verify(token); err == nil {
		t.Fatal("expected signature validation to fail")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !checkPassword("changeme", string(hash)) {
		t.Error("correct password rejected")
	}
	if checkPassword("wrong", string(hash)) {
		t.Error("wrong password accepted")
	}
}

func TestRefreshExpiry(t *testing.T) {
	exp := NewTokenIssuer("s").RefreshExpiry()
	if !exp.After(time.Now().UTC().Add(6 * 24 * time.Hour)) {
		t.Errorf("refresh expiry too soon: %v", exp)
	}
}

func TestAsTime(t *testing.T) {
	if _, ok := asTime("2026-01-02 15:04:05"); !ok {
		t.Error("datetime string should parse")
	}
	if _, ok := asTime(time.Now()); !ok {
		t.Error("time.Time should pass through")
	}
	if _, ok := asTime(42); ok {
		t.Error("int should not parse")
	}
}
