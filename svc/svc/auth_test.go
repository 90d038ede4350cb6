package svc

import (
	"context"
	"testing"
	"time"

	"pastrio/pkg/domain"
	"pastrio/svc/auth"
	"pastrio/svc/session"
)

func testAuth(t *testing.T) *Auth {
	t.Helper()
	store, _ := testDeps(t)
	sessions, err := session.NewMemoryStore(64)
	if err != nil {
		t.Fatalf("session store failed: %v", err)
	}
	hasher, err := auth.NewHasher(1, 8*1024, 1, 32, nil)
	if err != nil {
		t.Fatalf("hasher failed: %v", err)
	}
	return NewAuth(store, sessions, hasher, time.Hour)
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	a := testAuth(t)
	ctx := context.Background()

	token, user, err := a.Register(ctx, "alice", "a strong password")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if token == "" {
		t.Error("Register issued no session token")
	}
	if user.Username != "alice" || user.ID == 0 {
		t.Errorf("unexpected user record: %+v", user)
	}

	// Registration alone authenticates.
	data, err := a.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if data.UserID != user.ID {
		t.Errorf("session maps to user %d, want %d", data.UserID, user.ID)
	}

	if err := a.Logout(ctx, token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := a.Authenticate(ctx, token); err != domain.ErrAuthRequired {
		t.Errorf("token survives logout: %v", err)
	}

	// A fresh login issues a new, working session.
	token2, _, err := a.Login(ctx, "alice", "a strong password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token2 == token {
		t.Error("login reissued the logged-out token")
	}
	current, err := a.CurrentUser(ctx, token2)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if current.Username != "alice" {
		t.Errorf("CurrentUser returned %q", current.Username)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	a := testAuth(t)
	ctx := context.Background()
	if _, _, err := a.Register(ctx, "bob", "password-one"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, _, err := a.Register(ctx, "bob", "password-two")
	if err != domain.ErrDuplicateUsername {
		t.Errorf("expected ErrDuplicateUsername, got %v", err)
	}
	// Trimmed and NFC-equal spellings collide too.
	_, _, err = a.Register(ctx, "  bob ", "password-two")
	if err != domain.ErrDuplicateUsername {
		t.Errorf("whitespace variant registered: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	a := testAuth(t)
	ctx := context.Background()
	cases := []struct {
		name               string
		username, password string
	}{
		{"empty username", "", "long enough pw"},
		{"whitespace username", "   ", "long enough pw"},
		{"empty password", "carol", ""},
		{"short password", "carol", "seven77"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, _, err := a.Register(ctx, c.username, c.password); err != domain.ErrInvalidRequest {
				t.Errorf("Register(%q, %q) = %v, want ErrInvalidRequest", c.username, c.password, err)
			}
		})
	}
}

func TestLoginFailuresCollapse(t *testing.T) {
	a := testAuth(t)
	ctx := context.Background()
	if _, _, err := a.Register(ctx, "dave", "correct password"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Unknown user and wrong password are indistinguishable to the caller.
	_, _, err := a.Login(ctx, "mallory", "anything at all")
	if err != domain.ErrInvalidCredentials {
		t.Errorf("unknown user: got %v", err)
	}
	_, _, err = a.Login(ctx, "dave", "wrong password")
	if err != domain.ErrInvalidCredentials {
		t.Errorf("wrong password: got %v", err)
	}
}

func TestAuthenticateRejectsEmptyAndBogusTokens(t *testing.T) {
	a := testAuth(t)
	ctx := context.Background()
	if _, err := a.Authenticate(ctx, ""); err != domain.ErrAuthRequired {
		t.Errorf("empty token: got %v", err)
	}
	if _, err := a.Authenticate(ctx, "never-issued-token"); err != domain.ErrAuthRequired {
		t.Errorf("bogus token: got %v", err)
	}
}

func TestLogoutUnknownTokenIsNoOp(t *testing.T) {
	a := testAuth(t)
	if err := a.Logout(context.Background(), "never-issued"); err != nil {
		t.Errorf("Logout of unknown token errored: %v", err)
	}
	if err := a.Logout(context.Background(), ""); err != nil {
		t.Errorf("Logout of empty token errored: %v", err)
	}
}
