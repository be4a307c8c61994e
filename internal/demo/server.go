// Package demo hosts an in-process stand-in for the backing service.
// It binds a loopback port, seeds a small in-memory world, and serves
// the same routes and error envelope the real service does, so the
// tool can run with no network and no credentials.
package demo

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"

	"chiefkit/internal/logging"
	"chiefkit/internal/types"
)

const tokenTTL = 24 * time.Hour

// Server hosts the demo API on a loopback listener.
type Server struct {
	db         *database
	secret     []byte
	httpServer *http.Server
	listener   net.Listener
	baseURL    string
}

// NewServer seeds a fresh in-memory world. Nothing persists across
// runs.
func NewServer() *Server {
	return &Server{
		db:     seedDatabase(),
		secret: []byte("chiefkit-demo-signing-key"),
	}
}

// Start binds an ephemeral loopback port and serves until Close. It
// returns the base URL to point the API client at.
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("demo listener: %w", err)
	}
	s.listener = listener
	s.baseURL = "http://" + listener.Addr().String()
	s.httpServer = &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.DemoDebug("demo server stopped: %v", err)
		}
	}()

	logging.Demo("Demo service listening at %s", s.baseURL)
	return s.baseURL, nil
}

// BaseURL returns the address Start bound, or "" before Start.
func (s *Server) BaseURL() string { return s.baseURL }

// Close shuts the listener down.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Router builds the full route table. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(logRequests)

	r.Get("/health", s.handleHealth)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(pr chi.Router) {
		pr.Use(s.withAuth)

		pr.Get("/auth/me", s.handleMe)

		pr.Get("/catalog/heroes", s.handleHeroes)
		pr.Get("/catalog/gear", s.handleGear)

		pr.Get("/roster", s.handleRoster)
		pr.Put("/roster/{heroID}", s.handleSaveRosterEntry)
		pr.Delete("/roster/{heroID}", s.handleDeleteRosterEntry)

		pr.Post("/advisor/ask", s.handleAdvisorAsk)
		pr.Get("/advisor/history", s.handleAdvisorHistory)
		pr.Post("/advisor/history/{id}/rate", s.handleRateConversation)

		pr.Get("/announcements", s.handleAnnouncements)
		pr.Get("/guides", s.handleGuides)
		pr.Get("/guides/{slug}", s.handleGuide)

		// Stopping impersonation only needs a live token: the caller
		// holds the impersonated identity, not the admin one.
		pr.Post("/admin/impersonate/stop", s.handleStopImpersonation)

		pr.Group(func(mr chi.Router) {
			mr.Use(s.requireModerator)

			mr.Get("/admin/dashboard", s.handleDashboard)

			mr.Get("/admin/conversations", s.handleConversations)
			mr.Get("/admin/conversations/export", s.handleExportCurated)
			mr.Post("/admin/conversations/{id}/curation", s.handleSetCuration)

			mr.Get("/admin/announcements", s.handleAllAnnouncements)
			mr.Post("/admin/announcements", s.handleCreateAnnouncement)
			mr.Put("/admin/announcements/{id}", s.handleUpdateAnnouncement)
			mr.Delete("/admin/announcements/{id}", s.handleDeleteAnnouncement)

			mr.Get("/admin/feedback", s.handleFeedback)
			mr.Patch("/admin/feedback/{id}", s.handleUpdateFeedback)

			mr.Get("/admin/errors", s.handleErrorReports)
			mr.Patch("/admin/errors/{id}", s.handleUpdateErrorReport)

			mr.Get("/admin/threads", s.handleThreads)
			mr.Get("/admin/threads/{threadID}/messages", s.handleThreadMessages)
			mr.Post("/admin/threads/{threadID}/messages", s.handleReplyThread)
			mr.Post("/admin/threads/{threadID}/close", s.handleCloseThread)

			mr.Get("/admin/gamedata", s.handleGameFiles)
			mr.Get("/admin/gamedata/{name}", s.handleGameFile)

			// Account control, impersonation, provider config, and
			// game-data writes stay admin-only.
			mr.Group(func(ar chi.Router) {
				ar.Use(s.requireAdmin)

				ar.Post("/admin/impersonate/{id}", s.handleImpersonate)

				ar.Get("/admin/users", s.handleUsers)
				ar.Post("/admin/users", s.handleCreateUser)
				ar.Put("/admin/users/{id}", s.handleUpdateUser)
				ar.Delete("/admin/users/{id}", s.handleDeleteUser)
				ar.Post("/admin/users/{id}/cycle-access", s.handleCycleAccess)

				ar.Put("/admin/gamedata/{name}", s.handleSaveGameFile)

				ar.Get("/admin/providers", s.handleProviders)
				ar.Put("/admin/providers/{id}", s.handleSaveProvider)
			})
		})
	})

	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.DemoDebug("%s %s -> %d in %v", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// ========== Tokens ==========

type demoClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (s *Server) mintToken(user types.User) (string, error) {
	now := time.Now()
	claims := demoClaims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(tokenString string) (*demoClaims, error) {
	claims := &demoClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

// ========== Auth middleware ==========

type contextKey string

const userContextKey contextKey = "demoUser"

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "authorization header required")
			return
		}
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "bad_authorization", "expected a bearer token")
			return
		}
		claims, err := s.parseToken(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
			return
		}
		user, err := s.db.getUser(claims.UserID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown_account", "account no longer exists")
			return
		}
		if !user.Active {
			writeError(w, http.StatusForbidden, "account_disabled", "account is deactivated")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !userFrom(r.Context()).IsModerator() {
			writeError(w, http.StatusForbidden, "moderator_only", "this operation requires a moderator account")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !userFrom(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "admin_only", "this operation requires an admin account")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(ctx context.Context) types.User {
	user, _ := ctx.Value(userContextKey).(types.User)
	return user
}
