package demo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"chiefkit/internal/logging"
	"chiefkit/internal/types"
)

var validate = validator.New()

// ========== Response helpers ==========

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.DemoDebug("encode response: %v", err)
	}
}

type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorDetail{Code: code, Message: message}})
}

func writeValidationError(w http.ResponseWriter, errs validator.ValidationErrors) {
	msgs := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		field := strings.ToLower(fieldErr.Field())
		switch fieldErr.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of: %s", field, fieldErr.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", field))
		}
	}
	writeError(w, http.StatusBadRequest, "validation_failed", strings.Join(msgs, "; "))
}

// decodeBody decodes and validates a JSON request body. It writes the
// error response itself and reports whether the handler should
// continue.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty_body", "request body is required")
		} else {
			writeError(w, http.StatusBadRequest, "bad_json", "request body is not valid JSON")
		}
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			writeValidationError(w, validateErrs)
		} else {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		}
		return false
	}
	return true
}

// ========== Request payloads ==========

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=player moderator admin"`
	Active   bool   `json:"active"`
	AIAccess string `json:"ai_access" validate:"omitempty,oneof=none basic full"`
	Password string `json:"password"`
}

type rosterPayload struct {
	Level int                            `json:"level" validate:"required,min=1,max=80"`
	Stars int                            `json:"stars" validate:"min=0,max=5"`
	Gear  map[string]types.GearSelection `json:"gear"`
}

type askPayload struct {
	Question string              `json:"question" validate:"required"`
	Roster   []types.RosterEntry `json:"roster"`
}

type ratePayload struct {
	Rating int `json:"rating" validate:"oneof=-1 0 1"`
}

type curationPayload struct {
	Curated     bool `json:"curated"`
	GoodExample bool `json:"good_example"`
}

type announcementPayload struct {
	Title     string  `json:"title" validate:"required"`
	Body      string  `json:"body" validate:"required"`
	Display   string  `json:"display_type" validate:"required,oneof=banner modal feed"`
	Priority  int     `json:"priority" validate:"min=0"`
	Active    bool    `json:"active"`
	ExpiresAt *string `json:"expires_at"`
}

func (p announcementPayload) expiry() (*time.Time, error) {
	if p.ExpiresAt == nil || *p.ExpiresAt == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, *p.ExpiresAt)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return &utc, nil
}

type feedbackPayload struct {
	Status     string `json:"status" validate:"required,oneof=new reviewing resolved dismissed"`
	AdminNotes string `json:"admin_notes"`
}

type errorReportPayload struct {
	Status string `json:"status" validate:"required,oneof=new investigating fixed ignored"`
}

type replyPayload struct {
	Body string `json:"body" validate:"required"`
}

type gameFilePayload struct {
	Content json.RawMessage `json:"content" validate:"required"`
	Version int             `json:"version" validate:"min=0"`
}

type providerPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Model       string `json:"model" validate:"required"`
	Endpoint    string `json:"endpoint" validate:"omitempty,url"`
	Enabled     bool   `json:"enabled"`
	Priority    int    `json:"priority" validate:"min=0"`
	DailyBudget int    `json:"daily_token_budget" validate:"min=0"`
}

// ========== Health and auth ==========

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "chiefkit-demo"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	user, hash, found := s.db.findUserByEmail(payload.Email)
	if !found {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is wrong")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(payload.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is wrong")
		return
	}
	if !user.Active {
		writeError(w, http.StatusForbidden, "account_disabled", "account is deactivated")
		return
	}

	token, err := s.mintToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_mint_failed", "could not issue a session token")
		return
	}
	writeJSON(w, http.StatusOK, types.LoginResult{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()))
}

func (s *Server) handleImpersonate(w http.ResponseWriter, r *http.Request) {
	target, err := s.db.getUser(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "user_not_found", "no such user")
		return
	}
	// A token for a deactivated account would be rejected on every
	// call, so refuse up front.
	if !target.Active {
		writeError(w, http.StatusConflict, "account_disabled", "cannot impersonate a deactivated account")
		return
	}
	token, err := s.mintToken(target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_mint_failed", "could not issue a session token")
		return
	}
	writeJSON(w, http.StatusOK, types.LoginResult{Token: token, User: target})
}

func (s *Server) handleStopImpersonation(w http.ResponseWriter, r *http.Request) {
	// The caller discards the impersonated token locally; the route
	// just acknowledges.
	w.WriteHeader(http.StatusNoContent)
}

// ========== Catalog and roster ==========

func (s *Server) handleHeroes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listHeroes())
}

func (s *Server) handleGear(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listGear())
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	writeJSON(w, http.StatusOK, s.db.rosterFor(user.ID))
}

func (s *Server) handleSaveRosterEntry(w http.ResponseWriter, r *http.Request) {
	heroID := chi.URLParam(r, "heroID")
	if !s.db.hasHero(heroID) {
		writeError(w, http.StatusNotFound, "hero_not_found", "no such hero in the catalog")
		return
	}

	var payload rosterPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	user := userFrom(r.Context())
	saved := s.db.saveRosterEntry(user.ID, types.RosterEntry{
		HeroID: heroID,
		Level:  payload.Level,
		Stars:  payload.Stars,
		Gear:   payload.Gear,
	})
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteRosterEntry(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if err := s.db.deleteRosterEntry(user.ID, chi.URLParam(r, "heroID")); err != nil {
		writeError(w, http.StatusNotFound, "roster_entry_not_found", "hero is not on your roster")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ========== Advisor ==========

func (s *Server) handleAdvisorAsk(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user.AIAccess == types.AIAccessNone {
		writeError(w, http.StatusForbidden, "advisor_locked", "your account has no advisor access")
		return
	}

	var payload askPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	provider, ok := s.db.activeProvider()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no_provider", "no AI provider is enabled")
		return
	}

	answer := cannedAnswer(payload.Question)
	tokens := (len(payload.Question)+len(answer))/4 + len(payload.Roster)*12
	conv := s.db.addConversation(types.Conversation{
		UserID:   user.ID,
		Question: payload.Question,
		Answer:   answer,
		Provider: strings.ToLower(provider.Name),
		Model:    provider.Model,
		Tokens:   tokens,
	})
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleAdvisorHistory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	writeJSON(w, http.StatusOK, s.db.conversationsFor(user.ID))
}

func (s *Server) handleRateConversation(w http.ResponseWriter, r *http.Request) {
	var payload ratePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	user := userFrom(r.Context())
	conv, err := s.db.rateConversation(chi.URLParam(r, "id"), user.ID, user.IsAdmin(), payload.Rating)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation_not_found", "no such conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ========== Announcements and guides (player view) ==========

func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.activeAnnouncements(time.Now().UTC()))
}

func (s *Server) handleGuides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listGuides())
}

func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	guide, err := s.db.getGuide(chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, http.StatusNotFound, "guide_not_found", "no such guide")
		return
	}
	writeJSON(w, http.StatusOK, guide)
}

// ========== Dashboard ==========

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.dashboardStats())
}

// ========== User management ==========

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listUsers())
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload userPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	access := types.AIAccess(payload.AIAccess)
	if payload.AIAccess == "" {
		access = types.AIAccessNone
	}
	var hash string
	if payload.Password != "" {
		hash = hashPassword(payload.Password)
	}

	created, err := s.db.createUser(types.User{
		Email:    payload.Email,
		Name:     payload.Name,
		Role:     types.Role(payload.Role),
		Active:   payload.Active,
		AIAccess: access,
	}, hash)
	if err != nil {
		writeError(w, http.StatusConflict, "email_taken", "another account already uses that email")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var payload userPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	access := types.AIAccess(payload.AIAccess)
	if payload.AIAccess == "" {
		access = types.AIAccessNone
	}

	id := chi.URLParam(r, "id")
	updated, err := s.db.updateUser(id, types.User{
		Email:    payload.Email,
		Name:     payload.Name,
		Role:     types.Role(payload.Role),
		Active:   payload.Active,
		AIAccess: access,
	})
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", "no such user")
		return
	case errors.Is(err, ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", "another account already uses that email")
		return
	}

	if payload.Password != "" {
		s.db.setPassword(id, hashPassword(payload.Password))
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := userFrom(r.Context())
	err := s.db.deleteUser(chi.URLParam(r, "id"), actor.ID)
	switch {
	case errors.Is(err, ErrSelfDelete):
		writeError(w, http.StatusConflict, "self_delete", "you cannot delete your own account")
		return
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", "no such user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCycleAccess(w http.ResponseWriter, r *http.Request) {
	user, err := s.db.cycleAccess(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "user_not_found", "no such user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ========== Conversation curation ==========

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.conversationsAll())
}

func (s *Server) handleExportCurated(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.curatedConversations())
}

func (s *Server) handleSetCuration(w http.ResponseWriter, r *http.Request) {
	var payload curationPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	conv, err := s.db.setCuration(chi.URLParam(r, "id"), payload.Curated, payload.GoodExample)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation_not_found", "no such conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ========== Announcement management ==========

func (s *Server) handleAllAnnouncements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.allAnnouncements())
}

func (s *Server) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var payload announcementPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	expiresAt, err := payload.expiry()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_expiry", "expires_at must be RFC 3339")
		return
	}

	created := s.db.createAnnouncement(types.Announcement{
		Title:     payload.Title,
		Body:      payload.Body,
		Display:   types.DisplayType(payload.Display),
		Priority:  payload.Priority,
		Active:    payload.Active,
		ExpiresAt: expiresAt,
		Author:    userFrom(r.Context()).Name,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var payload announcementPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	expiresAt, err := payload.expiry()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_expiry", "expires_at must be RFC 3339")
		return
	}

	updated, err := s.db.updateAnnouncement(chi.URLParam(r, "id"), types.Announcement{
		Title:     payload.Title,
		Body:      payload.Body,
		Display:   types.DisplayType(payload.Display),
		Priority:  payload.Priority,
		Active:    payload.Active,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		writeError(w, http.StatusNotFound, "announcement_not_found", "no such announcement")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := s.db.deleteAnnouncement(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "announcement_not_found", "no such announcement")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ========== Feedback and error triage ==========

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listFeedback())
}

func (s *Server) handleUpdateFeedback(w http.ResponseWriter, r *http.Request) {
	var payload feedbackPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	item, err := s.db.updateFeedback(chi.URLParam(r, "id"), types.FeedbackStatus(payload.Status), payload.AdminNotes)
	if err != nil {
		writeError(w, http.StatusNotFound, "feedback_not_found", "no such feedback item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleErrorReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listErrorReports())
}

func (s *Server) handleUpdateErrorReport(w http.ResponseWriter, r *http.Request) {
	var payload errorReportPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	item, err := s.db.updateErrorReport(chi.URLParam(r, "id"), types.ErrorStatus(payload.Status))
	if err != nil {
		writeError(w, http.StatusNotFound, "error_not_found", "no such error report")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ========== Support threads ==========

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listThreads())
}

func (s *Server) handleThreadMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.db.threadMessagesFor(chi.URLParam(r, "threadID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "thread_not_found", "no such thread")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleReplyThread(w http.ResponseWriter, r *http.Request) {
	var payload replyPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	sender := string(userFrom(r.Context()).Role)
	msg, err := s.db.replyThread(chi.URLParam(r, "threadID"), sender, payload.Body)
	if err != nil {
		writeError(w, http.StatusNotFound, "thread_not_found", "no such thread")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleCloseThread(w http.ResponseWriter, r *http.Request) {
	thread, err := s.db.closeThread(chi.URLParam(r, "threadID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "thread_not_found", "no such thread")
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

// ========== Game data ==========

func (s *Server) handleGameFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listGameFiles())
}

func (s *Server) handleGameFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.db.getGameFile(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "file_not_found", "no such game data file")
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleSaveGameFile(w http.ResponseWriter, r *http.Request) {
	var payload gameFilePayload
	if !decodeBody(w, r, &payload) {
		return
	}
	if !json.Valid(payload.Content) {
		writeError(w, http.StatusBadRequest, "invalid_json", "content must be valid JSON")
		return
	}

	file, err := s.db.saveGameFile(chi.URLParam(r, "name"), payload.Content, payload.Version)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "file_not_found", "no such game data file")
		return
	case errors.Is(err, ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", fmt.Sprintf("file changed since version %d", payload.Version))
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// ========== Providers ==========

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listProviders())
}

func (s *Server) handleSaveProvider(w http.ResponseWriter, r *http.Request) {
	var payload providerPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	saved, err := s.db.saveProvider(types.AIProvider{
		ID:          chi.URLParam(r, "id"),
		Name:        payload.Name,
		Model:       payload.Model,
		Endpoint:    payload.Endpoint,
		Enabled:     payload.Enabled,
		Priority:    payload.Priority,
		DailyBudget: payload.DailyBudget,
	})
	if err != nil {
		writeError(w, http.StatusNotFound, "provider_not_found", "no such provider")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
