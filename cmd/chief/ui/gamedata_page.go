package ui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/internal/diff"
	"chiefkit/internal/types"
)

type gamedataPageMode int

const (
	gamedataModeBrowser gamedataPageMode = iota
	gamedataModeEditor
	gamedataModeDiff
)

// DraftInfo is a locally saved edit of a game-data file, carried
// alongside the server copy when the editor opens.
type DraftInfo struct {
	Content     json.RawMessage
	BaseVersion int
	UpdatedAt   time.Time
}

// GameDataPageModel is the admin game-data editor: a file browser, a
// JSON editor with local drafts, and a draft-vs-server diff pane.
// Saves are version-guarded; a stale save comes back through
// SetConflict.
type GameDataPageModel struct {
	width  int
	height int

	files      []types.GameFile
	draftNames map[string]bool
	browser    table.Model

	open      *types.GameFile
	fromDraft bool
	editor    textarea.Model
	statusMsg string
	statusErr bool

	diffView viewport.Model

	mode   gamedataPageMode
	styles Styles
}

func NewGameDataPageModel(styles Styles) GameDataPageModel {
	browser := table.New(
		table.WithColumns([]table.Column{
			{Title: "File", Width: 16},
			{Title: "Version", Width: 8},
			{Title: "Size", Width: 8},
			{Title: "Modified", Width: 14},
			{Title: "Draft", Width: 6},
			{Title: "Description", Width: 28},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	editor := textarea.New()
	editor.Placeholder = "{}"
	editor.CharLimit = 0
	editor.SetWidth(80)
	editor.SetHeight(16)

	return GameDataPageModel{
		browser:  browser,
		editor:   editor,
		diffView: viewport.New(80, 16),
		styles:   styles,
	}
}

func (m *GameDataPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.browser.SetWidth(width - 4)
	if height > 10 {
		m.browser.SetHeight(height - 8)
	}
	if width > 8 {
		m.editor.SetWidth(width - 8)
	}
	if height > 10 {
		m.editor.SetHeight(height - 8)
	}
	m.diffView.Width = width - 4
	if height > 8 {
		m.diffView.Height = height - 6
	}
}

// UpdateContent refreshes the browser listing. draftNames flags files
// with a locally saved draft.
func (m *GameDataPageModel) UpdateContent(files []types.GameFile, draftNames map[string]bool) {
	m.files = files
	m.draftNames = draftNames
	rows := make([]table.Row, 0, len(files))
	for _, file := range files {
		draft := ""
		if draftNames[file.Name] {
			draft = "yes"
		}
		rows = append(rows, table.Row{
			file.Name,
			fmt.Sprintf("v%d", file.Version),
			fmt.Sprintf("%dB", file.Size),
			file.ModifiedAt.Format("Jan 2 15:04"),
			draft,
			Truncate(file.Description, 28),
		})
	}
	m.browser.SetRows(rows)
}

// OpenEditor loads a fetched file into the editor. A non-nil draft
// wins over the server content so local work resumes.
func (m *GameDataPageModel) OpenEditor(file types.GameFile, draft *DraftInfo) {
	m.mode = gamedataModeEditor
	m.open = &file
	m.fromDraft = draft != nil
	content := string(file.Content)
	if draft != nil {
		content = string(draft.Content)
	}
	m.editor.SetValue(content)
	m.editor.Focus()
	m.statusMsg = ""
	m.statusErr = false
	if draft != nil {
		m.statusMsg = fmt.Sprintf("Resumed draft from %s (server at v%d)", draft.UpdatedAt.Format("Jan 2 15:04"), file.Version)
	}
}

// SetConflict reports a version-guarded save rejection.
func (m *GameDataPageModel) SetConflict(serverVersion int) {
	m.statusErr = true
	m.statusMsg = fmt.Sprintf("Save rejected: file changed on the server (now v%d). Re-open to pick up the latest copy.", serverVersion)
}

// SetSaved acknowledges a successful server save.
func (m *GameDataPageModel) SetSaved(version int) {
	if m.open != nil {
		m.open.Version = version
		m.open.Content = json.RawMessage(m.editor.Value())
	}
	m.fromDraft = false
	m.statusErr = false
	m.statusMsg = fmt.Sprintf("Saved as v%d", version)
}

// SetStatus shows a one-line note in the editor footer.
func (m *GameDataPageModel) SetStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusErr = isErr
}

func (m GameDataPageModel) selected() (types.GameFile, bool) {
	idx := m.browser.Cursor()
	if idx < 0 || idx >= len(m.files) {
		return types.GameFile{}, false
	}
	return m.files[idx], true
}

func (m GameDataPageModel) Update(msg tea.Msg) (GameDataPageModel, tea.Cmd) {
	switch m.mode {
	case gamedataModeEditor:
		return m.updateEditor(msg)
	case gamedataModeDiff:
		return m.updateDiff(msg)
	}
	return m.updateBrowser(msg)
}

func (m GameDataPageModel) updateBrowser(msg tea.Msg) (GameDataPageModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter", "e":
			if file, ok := m.selected(); ok {
				return m, emit(OpenGameFileMsg{Name: file.Name})
			}
			return m, nil
		case "x":
			if file, ok := m.selected(); ok && m.draftNames[file.Name] {
				return m, emit(DiscardDraftMsg{Name: file.Name})
			}
			return m, nil
		case "r":
			return m, emit(RefreshRequestMsg{})
		}
	}
	var cmd tea.Cmd
	m.browser, cmd = m.browser.Update(msg)
	return m, cmd
}

func (m GameDataPageModel) updateEditor(msg tea.Msg) (GameDataPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "esc":
		m.mode = gamedataModeBrowser
		m.open = nil
		m.editor.Blur()
		return m, nil
	case "ctrl+v":
		if err := validateJSON(m.editor.Value()); err != nil {
			m.statusErr = true
			m.statusMsg = "Invalid JSON: " + err.Error()
		} else {
			m.statusErr = false
			m.statusMsg = "JSON looks good"
		}
		return m, nil
	case "ctrl+d":
		if m.open == nil {
			return m, nil
		}
		m.statusErr = false
		m.statusMsg = "Draft saved locally"
		return m, emit(SaveDraftMsg{
			Name:        m.open.Name,
			Content:     json.RawMessage(m.editor.Value()),
			BaseVersion: m.open.Version,
		})
	case "ctrl+f":
		if m.open == nil {
			return m, nil
		}
		m.mode = gamedataModeDiff
		result := diff.Compare(m.open.Name, string(m.open.Content), m.editor.Value())
		m.diffView.SetContent(m.renderDiff(result))
		m.diffView.GotoTop()
		return m, nil
	case "ctrl+s":
		if m.open == nil {
			return m, nil
		}
		if err := validateJSON(m.editor.Value()); err != nil {
			m.statusErr = true
			m.statusMsg = "Cannot save: " + err.Error()
			return m, nil
		}
		m.statusErr = false
		m.statusMsg = "Saving..."
		return m, emit(SaveGameFileMsg{
			Name:        m.open.Name,
			Content:     json.RawMessage(m.editor.Value()),
			BaseVersion: m.open.Version,
		})
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m GameDataPageModel) updateDiff(msg tea.Msg) (GameDataPageModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "q", "ctrl+f":
			m.mode = gamedataModeEditor
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.diffView, cmd = m.diffView.Update(msg)
	return m, cmd
}

func (m GameDataPageModel) renderDiff(result *diff.Result) string {
	if result.Identical() {
		return m.styles.Muted.Render("No changes against the server copy.")
	}
	var sb strings.Builder
	sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("+%d -%d", result.Added, result.Removed)))
	sb.WriteString("\n\n")
	for _, hunk := range result.Hunks {
		header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount)
		sb.WriteString(m.styles.Info.Render(header))
		sb.WriteString("\n")
		for _, line := range hunk.Lines {
			switch line.Type {
			case diff.LineAdded:
				sb.WriteString(m.styles.Success.Render("+" + line.Content))
			case diff.LineRemoved:
				sb.WriteString(m.styles.Error.Render("-" + line.Content))
			default:
				sb.WriteString(m.styles.Muted.Render(" " + line.Content))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func validateJSON(content string) error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(content), &js); err != nil {
		return err
	}
	return nil
}

// AtRest reports whether the file browser is showing rather than the
// editor or the diff.
func (m GameDataPageModel) AtRest() bool { return m.mode == gamedataModeBrowser }

func (m GameDataPageModel) View() string {
	switch m.mode {
	case gamedataModeEditor:
		return m.viewEditor()
	case gamedataModeDiff:
		return m.viewDiff()
	}
	return m.viewBrowser()
}

func (m GameDataPageModel) viewBrowser() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Game data"))
	sb.WriteString("\n\n")
	if len(m.files) == 0 {
		sb.WriteString(m.styles.Muted.Render("No game-data files on the server."))
		return sb.String()
	}
	sb.WriteString(m.styles.Content.Render(m.browser.View()))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("[Enter] Edit  [x] Discard draft  [r] Refresh"))
	return sb.String()
}

func (m GameDataPageModel) viewEditor() string {
	var sb strings.Builder
	name := ""
	version := 0
	if m.open != nil {
		name = m.open.Name
		version = m.open.Version
	}
	title := fmt.Sprintf("%s  %s", name, m.styles.Muted.Render(fmt.Sprintf("v%d", version)))
	if m.fromDraft {
		title += " " + m.styles.Warning.Render("draft")
	}
	sb.WriteString(m.styles.Title.Render("Edit ") + title)
	sb.WriteString("\n\n")
	sb.WriteString(m.editor.View())
	sb.WriteString("\n")
	if m.statusMsg != "" {
		if m.statusErr {
			sb.WriteString(m.styles.Error.Render(m.statusMsg))
		} else {
			sb.WriteString(m.styles.Success.Render(m.statusMsg))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(m.styles.Muted.Render("[Ctrl+S] Save to server  [Ctrl+D] Save draft  [Ctrl+F] Diff  [Ctrl+V] Validate  [Esc] Back"))
	return sb.String()
}

func (m GameDataPageModel) viewDiff() string {
	var sb strings.Builder
	name := ""
	if m.open != nil {
		name = m.open.Name
	}
	sb.WriteString(m.styles.Title.Render("Draft changes ") + m.styles.Muted.Render(name))
	sb.WriteString("\n\n")
	sb.WriteString(m.diffView.View())
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("[↑/↓] Scroll  [Esc] Back to editor"))
	return sb.String()
}
