// Package session tracks the signed-in account for the lifetime of the
// process. It holds the bearer token the API client reads on every
// request and an impersonation stack so an admin can act as another
// user and switch back without re-authenticating.
package session

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/joho/godotenv"

	"chiefkit/internal/logging"
	"chiefkit/internal/types"
)

var (
	// ErrNotAuthenticated is returned by operations that require a
	// signed-in account.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotImpersonating is returned by StopImpersonation when no
	// impersonated session is active.
	ErrNotImpersonating = errors.New("not impersonating")
)

// frame is one suspended identity on the impersonation stack.
type frame struct {
	token string
	user  *types.User
}

// Session is safe for concurrent use. The UI goroutine mutates it and
// API requests read the token from arbitrary goroutines.
type Session struct {
	mu    sync.RWMutex
	token string
	user  *types.User
	stack []frame
}

func New() *Session {
	return &Session{}
}

// =============================================================================
// IDENTITY
// =============================================================================

// Establish replaces the session with a fresh login. Any impersonation
// stack from a previous identity is discarded.
func (s *Session) Establish(result *types.LoginResult) {
	s.mu.Lock()
	s.token = result.Token
	user := result.User
	s.user = &user
	s.stack = nil
	s.mu.Unlock()

	logging.Session("Session established for %s (role=%s)", result.User.Email, result.User.Role)
	logging.Audit().Login(result.User.Email, true, "")
}

// Token returns the bearer token for the active identity. Implements
// the API client's token source. Empty when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the active account, or nil when signed out.
func (s *Session) User() *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

// Authenticated reports whether a login has been established.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// IsAdmin reports whether the ACTIVE identity is an admin. During
// impersonation this is the impersonated user's role, so admin-only
// pages disappear while acting as a player.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsAdmin()
}

// IsModerator reports whether the active identity is a moderator or
// admin.
func (s *Session) IsModerator() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsModerator()
}

// Clear signs out, dropping the token and any impersonation stack.
func (s *Session) Clear() {
	s.mu.Lock()
	email := ""
	if s.user != nil {
		email = s.user.Email
	}
	s.token = ""
	s.user = nil
	s.stack = nil
	s.mu.Unlock()

	if email != "" {
		logging.Session("Session cleared for %s", email)
		logging.Audit().Logout(email)
	}
}

// =============================================================================
// IMPERSONATION
// =============================================================================

// Impersonate suspends the current identity and adopts the one in
// result. The suspended token stays on a stack for StopImpersonation.
func (s *Session) Impersonate(result *types.LoginResult) error {
	s.mu.Lock()
	if s.token == "" || s.user == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	actor := s.actorEmailLocked()
	s.stack = append(s.stack, frame{token: s.token, user: s.user})
	s.token = result.Token
	user := result.User
	s.user = &user
	s.mu.Unlock()

	logging.Session("Impersonating %s (actor=%s)", result.User.Email, actor)
	logging.AuditAsActor(actor, result.User.Email).Impersonation(result.User.Email, true)
	return nil
}

// StopImpersonation restores the most recently suspended identity and
// returns its account.
func (s *Session) StopImpersonation() (*types.User, error) {
	s.mu.Lock()
	if len(s.stack) == 0 {
		s.mu.Unlock()
		return nil, ErrNotImpersonating
	}
	dropped := ""
	if s.user != nil {
		dropped = s.user.Email
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.token = top.token
	s.user = top.user
	actor := s.actorEmailLocked()
	restored := *top.user
	s.mu.Unlock()

	logging.Session("Impersonation ended, back to %s", restored.Email)
	logging.AuditAsActor(actor, "").Impersonation(dropped, false)
	return &restored, nil
}

// Impersonating reports whether the active identity was adopted via
// Impersonate.
func (s *Session) Impersonating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stack) > 0
}

// Depth returns how many identities are suspended under the active
// one. Zero when not impersonating.
func (s *Session) Depth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stack)
}

// ActorEmail returns the email of the REAL account: the bottom of the
// impersonation stack, or the active user outside impersonation. Audit
// entries for mutating calls should carry this.
func (s *Session) ActorEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actorEmailLocked()
}

func (s *Session) actorEmailLocked() string {
	if len(s.stack) > 0 {
		return s.stack[0].user.Email
	}
	if s.user != nil {
		return s.user.Email
	}
	return ""
}

// =============================================================================
// TOKEN EXPIRY
// =============================================================================

// TokenExpiry reads the exp claim out of the active token without
// verifying the signature. The backend is the authority on validity;
// this only feeds the status display and the pre-emptive login prompt.
func (s *Session) TokenExpiry() (time.Time, bool) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		logging.SessionDebug("Token expiry parse failed: %v", err)
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the token's exp claim has passed. Tokens
// without a readable exp claim are treated as live and left to the
// backend to reject.
func (s *Session) Expired(now time.Time) bool {
	expiry, ok := s.TokenExpiry()
	if !ok {
		return false
	}
	return now.After(expiry)
}

// =============================================================================
// DEV AUTO-LOGIN
// =============================================================================

// DevCredentials are development login credentials sourced from the
// environment.
type DevCredentials struct {
	Email    string
	Password string
}

// DevAutoLogin looks for CHIEF_DEV_EMAIL and CHIEF_DEV_PASSWORD,
// loading a .env file from the working directory first when present.
// Returns false unless both are set.
func DevAutoLogin() (DevCredentials, bool) {
	_ = godotenv.Load()

	creds := DevCredentials{
		Email:    os.Getenv("CHIEF_DEV_EMAIL"),
		Password: os.Getenv("CHIEF_DEV_PASSWORD"),
	}
	if creds.Email == "" || creds.Password == "" {
		return DevCredentials{}, false
	}
	logging.Session("Dev auto-login credentials found for %s", creds.Email)
	return creds, true
}
