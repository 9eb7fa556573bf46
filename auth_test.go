package main

import (
	"strings"
	"testing"
)

func newTestAuth(t *testing.T) (*Auth, *DB) {
	t.Helper()
	db := openTestDB(t)
	return NewAuth(db), db
}

func TestRegisterAndLogin(t *testing.T) {
	auth, _ := newTestAuth(t)

	id, token, err := auth.Register("alice", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == 0 || token == "" {
		t.Fatal("register should return an ID and token")
	}

	loginID, loginToken, err := auth.Login("alice", "secret1", "1.2.3.4")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginID != id || loginToken == "" {
		t.Error("login should return the same player ID and a token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	auth, _ := newTestAuth(t)
	auth.Register("bob", "rightpw")

	if _, _, err := auth.Login("bob", "wrongpw", "1.2.3.4"); err == nil {
		t.Error("wrong password should fail")
	}
	if _, _, err := auth.Login("nobody", "whatever", "1.2.3.4"); err == nil {
		t.Error("unknown user should fail")
	}
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newTestAuth(t)

	if _, _, err := auth.Register("x", "secret1"); err == nil {
		t.Error("too-short username should be rejected")
	}
	if _, _, err := auth.Register(strings.Repeat("a", 30), "secret1"); err == nil {
		t.Error("too-long username should be rejected")
	}
	if _, _, err := auth.Register("carol", "abc"); err == nil {
		t.Error("too-short password should be rejected")
	}

	auth.Register("dave", "secret1")
	if _, _, err := auth.Register("dave", "secret2"); err == nil {
		t.Error("duplicate username should be rejected")
	}
}

func TestVerifyToken(t *testing.T) {
	auth, _ := newTestAuth(t)
	id, token, err := auth.Register("eve", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	gotID, gotName, err := auth.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if gotID != id || gotName != "eve" {
		t.Errorf("expected (%d, eve), got (%d, %s)", id, gotID, gotName)
	}

	if _, _, err := auth.VerifyToken("garbage.token.here"); err == nil {
		t.Error("garbage token should fail verification")
	}
	// A token signed with a different secret must not verify
	other, _ := newTestAuth(t)
	if _, _, err := other.VerifyToken(token); err == nil {
		t.Error("token from another server secret should fail")
	}
}

func TestLoginRateLimit(t *testing.T) {
	auth, _ := newTestAuth(t)
	auth.Register("frank", "secret1")

	ip := "10.0.0.1"
	for i := 0; i < maxLoginAttempts; i++ {
		auth.Login("frank", "wrongpw", ip)
	}
	if _, _, err := auth.Login("frank", "secret1", ip); err == nil {
		t.Error("exceeding login attempts should be rejected even with the right password")
	}
	// A different IP is unaffected
	if _, _, err := auth.Login("frank", "secret1", "10.0.0.2"); err != nil {
		t.Errorf("other IP should still log in: %v", err)
	}
}

func TestJWTSecretPersistence(t *testing.T) {
	db := openTestDB(t)
	a1 := NewAuth(db)
	_, token, err := a1.Register("grace", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	// A second Auth over the same DB loads the same secret
	a2 := NewAuth(db)
	if _, _, err := a2.VerifyToken(token); err != nil {
		t.Errorf("token should survive an auth restart: %v", err)
	}
}
