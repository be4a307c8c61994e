package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestAuditWritesWithoutDebugMode verifies the audit trail is independent
// of the debug_mode gate.
func TestAuditWritesWithoutDebugMode(t *testing.T) {
	tempDir := t.TempDir()
	writeTestConfig(t, tempDir, `{"logging": {"debug_mode": false}}`)

	resetLoggingState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("Failed to init audit: %v", err)
	}

	Audit().Login("admin@example.com", true, "")
	AuditAsActor("admin@example.com", "player@example.com").ResourceChange(AuditUserUpdate, "user-42", true, "")
	CloseAudit()

	data, err := os.ReadFile(filepath.Join(tempDir, ".chief", "audit.log"))
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 audit lines, got %d", len(lines))
	}

	var first AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("First line is not valid JSON: %v", err)
	}
	if first.EventType != AuditLogin || first.Actor != "admin@example.com" {
		t.Errorf("Unexpected first event: %+v", first)
	}
	if first.Timestamp == 0 {
		t.Error("Timestamp should be filled in automatically")
	}

	var second AuditEvent
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("Second line is not valid JSON: %v", err)
	}
	if second.OnBehalf != "player@example.com" {
		t.Errorf("Expected onbehalf to carry the impersonated account, got %q", second.OnBehalf)
	}
	if second.Target != "user-42" {
		t.Errorf("Unexpected target: %q", second.Target)
	}
}

// TestAuditBeforeInitIsNoop verifies logging before InitAudit does not panic
func TestAuditBeforeInitIsNoop(t *testing.T) {
	resetLoggingState()
	Audit().Login("nobody@example.com", false, "no backend")
	Audit().Impersonation("someone@example.com", true)
	Audit().ExportRun("/tmp/out.jsonl", 0, false, "not logged in")
}

// TestAuditRequiresWorkspace verifies InitAudit fails before Initialize
func TestAuditRequiresWorkspace(t *testing.T) {
	resetLoggingState()
	if err := InitAudit(); err == nil {
		CloseAudit()
		t.Fatal("InitAudit should fail when logging is not initialized")
	}
}
