// Audit trail for mutating admin actions. Events are written as JSON
// lines to .chief/audit.log regardless of debug_mode, so impersonation
// and content changes stay reconstructable after the fact.

package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies what kind of action an audit event records.
type AuditEventType string

const (
	// Session events
	AuditLogin            AuditEventType = "login"
	AuditLogout           AuditEventType = "logout"
	AuditImpersonateStart AuditEventType = "impersonate_start"
	AuditImpersonateStop  AuditEventType = "impersonate_stop"

	// User management events
	AuditUserCreate  AuditEventType = "user_create"
	AuditUserUpdate  AuditEventType = "user_update"
	AuditUserDelete  AuditEventType = "user_delete"
	AuditAccessCycle AuditEventType = "access_cycle"

	// Content events
	AuditCurationSet        AuditEventType = "curation_set"
	AuditAnnouncementCreate AuditEventType = "announcement_create"
	AuditAnnouncementUpdate AuditEventType = "announcement_update"
	AuditAnnouncementDelete AuditEventType = "announcement_delete"

	// Inbox triage events
	AuditFeedbackUpdate AuditEventType = "feedback_update"
	AuditErrorUpdate    AuditEventType = "error_update"
	AuditThreadReply    AuditEventType = "thread_reply"
	AuditThreadClose    AuditEventType = "thread_close"

	// Game data and export events
	AuditGameFileSave AuditEventType = "gamefile_save"
	AuditExportRun    AuditEventType = "export_run"
)

// AuditEvent is one JSON line in the audit log.
type AuditEvent struct {
	Timestamp int64                  `json:"ts"` // Unix milliseconds
	EventType AuditEventType         `json:"event"`
	Actor     string                 `json:"actor,omitempty"`    // acting account (the real one during impersonation)
	OnBehalf  string                 `json:"onbehalf,omitempty"` // impersonated account, when applicable
	Target    string                 `json:"target,omitempty"`   // resource the action touched
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes audit events, optionally pre-scoped to an actor.
type AuditLogger struct {
	actor    string
	onBehalf string
}

// InitAudit opens the audit log. Initialize must have been called first
// so the workspace is known.
func InitAudit() error {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}
	if workspace == "" {
		return fmt.Errorf("logging not initialized")
	}

	dir := filepath.Join(workspace, ".chief")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	auditPath := filepath.Join(dir, "audit.log")
	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global (unscoped) audit logger
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditAsActor creates an audit logger scoped to an acting account.
// During impersonation pass the real account as actor and the
// impersonated one as onBehalf.
func AuditAsActor(actor, onBehalf string) *AuditLogger {
	return &AuditLogger{actor: actor, onBehalf: onBehalf}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.Actor == "" {
		event.Actor = a.actor
	}
	if event.OnBehalf == "" {
		event.OnBehalf = a.onBehalf
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// Login records a login attempt
func (a *AuditLogger) Login(email string, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditLogin,
		Actor:     email,
		Success:   success,
		Error:     errMsg,
		Message:   fmt.Sprintf("Login: %s (success=%v)", email, success),
	})
}

// Logout records the end of a session
func (a *AuditLogger) Logout(email string) {
	a.Log(AuditEvent{
		EventType: AuditLogout,
		Actor:     email,
		Success:   true,
		Message:   fmt.Sprintf("Logout: %s", email),
	})
}

// Impersonation records the start or end of an impersonated session
func (a *AuditLogger) Impersonation(targetEmail string, started bool) {
	eventType := AuditImpersonateStart
	verb := "started"
	if !started {
		eventType = AuditImpersonateStop
		verb = "stopped"
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    targetEmail,
		Success:   true,
		Message:   fmt.Sprintf("Impersonation %s: %s", verb, targetEmail),
	})
}

// ResourceChange records a mutating call against a backend resource
func (a *AuditLogger) ResourceChange(event AuditEventType, target string, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: event,
		Target:    target,
		Success:   success,
		Error:     errMsg,
		Message:   fmt.Sprintf("%s: %s (success=%v)", event, target, success),
	})
}

// GameFileSave records a game-data write with the version it targeted
func (a *AuditLogger) GameFileSave(name string, version int, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditGameFileSave,
		Target:    name,
		Success:   success,
		Error:     errMsg,
		Fields:    map[string]interface{}{"version": version},
		Message:   fmt.Sprintf("Game file save: %s v%d (success=%v)", name, version, success),
	})
}

// ExportRun records a curated-conversation export
func (a *AuditLogger) ExportRun(path string, count int, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditExportRun,
		Target:    path,
		Success:   success,
		Error:     errMsg,
		Fields:    map[string]interface{}{"count": count},
		Message:   fmt.Sprintf("Export: %d conversations -> %s (success=%v)", count, path, success),
	})
}
