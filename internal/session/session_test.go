package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"chiefkit/internal/types"
)

func adminLogin() *types.LoginResult {
	return &types.LoginResult{
		Token: "admin-token",
		User:  types.User{ID: "u1", Email: "admin@example.com", Role: types.RoleAdmin},
	}
}

func playerLogin() *types.LoginResult {
	return &types.LoginResult{
		Token: "player-token",
		User:  types.User{ID: "u2", Email: "player@example.com", Role: types.RolePlayer},
	}
}

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return signed
}

func TestEstablishAndToken(t *testing.T) {
	s := New()
	if s.Authenticated() {
		t.Error("Expected fresh session to be unauthenticated")
	}

	s.Establish(adminLogin())
	if !s.Authenticated() {
		t.Error("Expected session to be authenticated after Establish")
	}
	if s.Token() != "admin-token" {
		t.Errorf("Expected admin-token, got %q", s.Token())
	}
	if !s.IsAdmin() {
		t.Error("Expected admin session")
	}

	user := s.User()
	if user == nil || user.Email != "admin@example.com" {
		t.Errorf("Unexpected user: %+v", user)
	}
}

func TestUserReturnsCopy(t *testing.T) {
	s := New()
	s.Establish(adminLogin())

	user := s.User()
	user.Email = "mutated@example.com"

	if s.User().Email != "admin@example.com" {
		t.Error("Mutating the returned user leaked into the session")
	}
}

func TestImpersonationStack(t *testing.T) {
	s := New()
	s.Establish(adminLogin())

	if err := s.Impersonate(playerLogin()); err != nil {
		t.Fatalf("Impersonate failed: %v", err)
	}
	if s.Token() != "player-token" {
		t.Errorf("Expected player token while impersonating, got %q", s.Token())
	}
	if s.IsAdmin() {
		t.Error("Expected admin powers to drop while impersonating a player")
	}
	if !s.Impersonating() {
		t.Error("Expected Impersonating to report true")
	}
	if s.Depth() != 1 {
		t.Errorf("Expected depth 1, got %d", s.Depth())
	}
	if s.ActorEmail() != "admin@example.com" {
		t.Errorf("Expected real actor to stay the admin, got %q", s.ActorEmail())
	}

	restored, err := s.StopImpersonation()
	if err != nil {
		t.Fatalf("StopImpersonation failed: %v", err)
	}
	if restored.Email != "admin@example.com" {
		t.Errorf("Expected to restore the admin, got %q", restored.Email)
	}
	if s.Token() != "admin-token" {
		t.Errorf("Expected admin token back, got %q", s.Token())
	}
	if s.Impersonating() {
		t.Error("Expected impersonation to be over")
	}
}

func TestNestedImpersonationKeepsRealActor(t *testing.T) {
	s := New()
	s.Establish(adminLogin())

	mod := &types.LoginResult{
		Token: "mod-token",
		User:  types.User{ID: "u3", Email: "mod@example.com", Role: types.RoleModerator},
	}
	if err := s.Impersonate(mod); err != nil {
		t.Fatalf("First impersonation failed: %v", err)
	}
	if err := s.Impersonate(playerLogin()); err != nil {
		t.Fatalf("Second impersonation failed: %v", err)
	}

	if s.Depth() != 2 {
		t.Errorf("Expected depth 2, got %d", s.Depth())
	}
	if s.ActorEmail() != "admin@example.com" {
		t.Errorf("Expected the original admin as actor, got %q", s.ActorEmail())
	}
}

func TestImpersonateRequiresAuth(t *testing.T) {
	s := New()
	err := s.Impersonate(playerLogin())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
}

func TestStopImpersonationWithoutStack(t *testing.T) {
	s := New()
	s.Establish(adminLogin())
	_, err := s.StopImpersonation()
	if !errors.Is(err, ErrNotImpersonating) {
		t.Errorf("Expected ErrNotImpersonating, got %v", err)
	}
}

func TestClear(t *testing.T) {
	s := New()
	s.Establish(adminLogin())
	s.Impersonate(playerLogin())

	s.Clear()
	if s.Authenticated() {
		t.Error("Expected sign-out to drop the token")
	}
	if s.Impersonating() {
		t.Error("Expected sign-out to drop the impersonation stack")
	}
	if s.User() != nil {
		t.Error("Expected no user after Clear")
	}
}

func TestTokenExpiry(t *testing.T) {
	s := New()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	s.Establish(&types.LoginResult{
		Token: mintToken(t, exp),
		User:  types.User{ID: "u1", Email: "admin@example.com", Role: types.RoleAdmin},
	})

	got, ok := s.TokenExpiry()
	if !ok {
		t.Fatal("Expected expiry to be readable")
	}
	if !got.Equal(exp) {
		t.Errorf("Expected expiry %v, got %v", exp, got)
	}
	if s.Expired(time.Now()) {
		t.Error("Expected token with future exp to be live")
	}
	if !s.Expired(exp.Add(time.Minute)) {
		t.Error("Expected token to read as expired past its exp")
	}
}

func TestTokenExpiryOpaqueToken(t *testing.T) {
	s := New()
	s.Establish(&types.LoginResult{
		Token: "not-a-jwt",
		User:  types.User{ID: "u1", Email: "admin@example.com", Role: types.RoleAdmin},
	})

	if _, ok := s.TokenExpiry(); ok {
		t.Error("Expected no expiry from an opaque token")
	}
	if s.Expired(time.Now().Add(24 * time.Hour)) {
		t.Error("Expected opaque tokens to be treated as live")
	}
}

func TestDevAutoLogin(t *testing.T) {
	t.Setenv("CHIEF_DEV_EMAIL", "dev@example.com")
	t.Setenv("CHIEF_DEV_PASSWORD", "hunter2")

	creds, ok := DevAutoLogin()
	if !ok {
		t.Fatal("Expected credentials from environment")
	}
	if creds.Email != "dev@example.com" || creds.Password != "hunter2" {
		t.Errorf("Unexpected credentials: %+v", creds)
	}
}

func TestDevAutoLoginMissing(t *testing.T) {
	t.Setenv("CHIEF_DEV_EMAIL", "dev@example.com")
	t.Setenv("CHIEF_DEV_PASSWORD", "")

	if _, ok := DevAutoLogin(); ok {
		t.Error("Expected no credentials when the password is unset")
	}
}
