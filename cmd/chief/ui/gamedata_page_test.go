package ui

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/internal/types"
)

func testGameFile() types.GameFile {
	return types.GameFile{
		Name:       "heroes",
		Version:    7,
		Size:       120,
		ModifiedAt: time.Now(),
		Content:    json.RawMessage("{\n  \"generation\": 1\n}"),
	}
}

func TestGameDataPageBrowserOpensFile(t *testing.T) {
	model := NewGameDataPageModel(DefaultStyles())
	model.UpdateContent([]types.GameFile{
		{Name: "heroes", Version: 7},
		{Name: "gear", Version: 12},
	}, map[string]bool{"gear": true})

	view := model.View()
	if !strings.Contains(view, "heroes") || !strings.Contains(view, "gear") {
		t.Fatalf("expected file rows in browser")
	}
	if !strings.Contains(view, "v12") {
		t.Errorf("expected version column")
	}

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected open command")
	}
	openMsg, ok := cmd().(OpenGameFileMsg)
	if !ok || openMsg.Name != "heroes" {
		t.Fatalf("expected OpenGameFileMsg for heroes, got %#v", cmd())
	}
}

func TestGameDataPageDiscardDraftOnlyWhenPresent(t *testing.T) {
	model := NewGameDataPageModel(DefaultStyles())
	model.UpdateContent([]types.GameFile{
		{Name: "heroes", Version: 7},
		{Name: "gear", Version: 12},
	}, map[string]bool{"gear": true})

	// heroes has no draft
	model, cmd := model.Update(keyRune("x"))
	if cmd != nil {
		t.Fatalf("discard should be a no-op without a draft")
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, cmd = model.Update(keyRune("x"))
	if cmd == nil {
		t.Fatalf("expected discard command")
	}
	discardMsg := cmd().(DiscardDraftMsg)
	if discardMsg.Name != "gear" {
		t.Errorf("expected discard for gear, got %s", discardMsg.Name)
	}
}

func TestGameDataPageValidateJSON(t *testing.T) {
	model := NewGameDataPageModel(DefaultStyles())
	model.OpenEditor(testGameFile(), nil)

	model.editor.SetValue("{broken")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlV})
	if !strings.Contains(model.View(), "Invalid JSON") {
		t.Errorf("expected validation failure message")
	}

	model.editor.SetValue("{\"ok\": true}")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlV})
	if !strings.Contains(model.View(), "JSON looks good") {
		t.Errorf("expected validation success message")
	}
}

func TestGameDataPageSaveBlockedOnBadJSON(t *testing.T) {
	model := NewGameDataPageModel(DefaultStyles())
	model.OpenEditor(testGameFile(), nil)

	model.editor.SetValue("not json")
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd != nil {
		t.Fatalf("expected invalid JSON to block the save")
	}
	if !strings.Contains(model.View(), "Cannot save") {
		t.Errorf("expected save error message")
	}
}

func TestGameDataPageSaveCarriesBaseVersion(t *testing.T) {
	model := NewGameDataPageModel(DefaultStyles())
	model.OpenEditor(testGameFile(), nil)

	model.editor.SetValue("{\"generation\": 2}")
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatalf("expected save command")
	}
	saveMsg, ok := cmd().(SaveGameFileMsg)
	if !ok {
		t.Fatalf("expected SaveGameFileMsg, got %T", cmd())
	}
	if saveMsg.Name != "heroes" || saveMsg.BaseVersion != 7 {
		t.Errorf("expected base version 7 for heroes, got %#v", saveMsg)
	}

	model.SetSaved(8)
	if !strings.Contains(model.View(), "Saved as v8") {
		t.Errorf("expected save acknowledgement")
	}
}

func TestGameDataPageDraftResume(t *testing.T) {
	model := NewGameDataPageModel(DefaultStyles())
	draft := &DraftInfo{
		Content:     json.RawMessage("{\"generation\": 3}"),
		BaseVersion: 6,
		UpdatedAt:   time.Now(),
	}
	model.OpenEditor(testGameFile(), draft)

	if model.editor.Value() != "{\"generation\": 3}" {
		t.Fatalf("expected draft content to win over the server copy")
	}
	if !strings.Contains(model.View(), "Resumed draft") {
		t.Errorf("expected draft resume notice")
	}

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	if cmd == nil {
		t.Fatalf("expected draft save command")
	}
	draftMsg := cmd().(SaveDraftMsg)
	if draftMsg.Name != "heroes" || draftMsg.BaseVersion != 7 {
		t.Errorf("draft should pin against the opened server version, got %#v", draftMsg)
	}
}

func TestGameDataPageDiffView(t *testing.T) {
	model := NewGameDataPageModel(DefaultStyles())
	model.SetSize(100, 30)
	model.OpenEditor(testGameFile(), nil)

	model.editor.SetValue("{\n  \"generation\": 2\n}")
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	if model.mode != gamedataModeDiff {
		t.Fatalf("expected diff mode")
	}
	view := model.View()
	if !strings.Contains(view, "@@") {
		t.Errorf("expected hunk header in diff view")
	}
	if !strings.Contains(view, "+1 -1") {
		t.Errorf("expected change counts, got view without them")
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if model.mode != gamedataModeEditor {
		t.Errorf("expected esc to return to the editor")
	}
}

func TestGameDataPageConflict(t *testing.T) {
	model := NewGameDataPageModel(DefaultStyles())
	model.OpenEditor(testGameFile(), nil)

	model.SetConflict(9)
	view := model.View()
	if !strings.Contains(view, "v9") || !strings.Contains(view, "Re-open") {
		t.Errorf("expected conflict notice naming the server version")
	}
}
