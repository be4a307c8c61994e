package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chiefkit/internal/types"
)

// ConversationFilterMode narrows the curation table.
type ConversationFilterMode int

const (
	ConversationFilterAll ConversationFilterMode = iota
	ConversationFilterCurated
	ConversationFilterGood
	ConversationFilterRatedUp
	ConversationFilterRatedDown
)

// ConversationsPageModel is the moderator curation queue over advisor
// history. Flag flips leave as SetCurationMsg, exports as
// ExportCuratedMsg.
type ConversationsPageModel struct {
	width  int
	height int
	table  table.Model

	conversations []types.Conversation
	visible       []types.Conversation

	filterInput   textinput.Model
	filterMode    ConversationFilterMode
	filterFocused bool

	detailOpen bool
	detail     viewport.Model

	exportNote string

	styles Styles
}

func NewConversationsPageModel(styles Styles) ConversationsPageModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "When", Width: 12},
			{Title: "User", Width: 8},
			{Title: "Question", Width: 40},
			{Title: "Rating", Width: 7},
			{Title: "Curated", Width: 8},
			{Title: "Good", Width: 5},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	fi := textinput.New()
	fi.Placeholder = "Filter by question text..."
	fi.CharLimit = 60
	fi.Width = 36

	return ConversationsPageModel{
		table:       t,
		filterInput: fi,
		detail:      viewport.New(80, 14),
		styles:      styles,
	}
}

func (m *ConversationsPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetWidth(width - 4)
	if height > 10 {
		m.table.SetHeight(height - 8)
	}
	m.detail.Width = width - 4
	if height > 8 {
		m.detail.Height = height - 6
	}
}

func (m *ConversationsPageModel) UpdateContent(conversations []types.Conversation) {
	m.conversations = conversations
	m.applyFilter()
}

// SetExportNote reports the outcome of the last export.
func (m *ConversationsPageModel) SetExportNote(note string) { m.exportNote = note }

func (m ConversationsPageModel) selected() (types.Conversation, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.visible) {
		return types.Conversation{}, false
	}
	return m.visible[idx], true
}

func (m ConversationsPageModel) Update(msg tea.Msg) (ConversationsPageModel, tea.Cmd) {
	var cmd tea.Cmd

	if m.detailOpen {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "esc", "q":
				m.detailOpen = false
				return m, nil
			}
		}
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "/":
			m.filterFocused = !m.filterFocused
			if m.filterFocused {
				m.filterInput.Focus()
			} else {
				m.filterInput.Blur()
			}
			return m, nil
		case "tab":
			if !m.filterFocused {
				m.filterMode = (m.filterMode + 1) % 5
				m.applyFilter()
				return m, nil
			}
		case "esc":
			if m.filterFocused {
				m.filterFocused = false
				m.filterInput.Blur()
				m.filterInput.SetValue("")
				m.applyFilter()
				return m, nil
			}
		case "enter":
			if m.filterFocused {
				m.filterFocused = false
				m.filterInput.Blur()
				m.applyFilter()
				return m, nil
			}
			if conv, ok := m.selected(); ok {
				m.openDetail(conv)
			}
			return m, nil
		case "c":
			if !m.filterFocused {
				if conv, ok := m.selected(); ok {
					curated := !conv.Curated
					good := conv.GoodExample && curated
					return m, emit(SetCurationMsg{ID: conv.ID, Curated: curated, GoodExample: good})
				}
				return m, nil
			}
		case "g":
			if !m.filterFocused {
				if conv, ok := m.selected(); ok {
					good := !conv.GoodExample
					curated := conv.Curated || good
					return m, emit(SetCurationMsg{ID: conv.ID, Curated: curated, GoodExample: good})
				}
				return m, nil
			}
		case "x":
			if !m.filterFocused {
				return m, emit(ExportCuratedMsg{})
			}
		case "r":
			if !m.filterFocused {
				return m, emit(RefreshRequestMsg{})
			}
		}
	}

	if m.filterFocused {
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.applyFilter()
	} else {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

func (m *ConversationsPageModel) openDetail(conv types.Conversation) {
	m.detailOpen = true
	var sb strings.Builder
	sb.WriteString(m.styles.Bold.Render("Q: " + conv.Question))
	sb.WriteString("\n\n")
	sb.WriteString(conv.Answer)
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("%s/%s · %d tokens · %s · by %s",
		conv.Provider, conv.Model, conv.Tokens, conv.CreatedAt.Format("Jan 2 15:04"), conv.UserID)))
	m.detail.SetContent(sb.String())
	m.detail.GotoTop()
}

func (m *ConversationsPageModel) applyFilter() {
	text := strings.ToLower(m.filterInput.Value())

	m.visible = m.visible[:0]
	for _, conv := range m.conversations {
		switch m.filterMode {
		case ConversationFilterCurated:
			if !conv.Curated {
				continue
			}
		case ConversationFilterGood:
			if !conv.GoodExample {
				continue
			}
		case ConversationFilterRatedUp:
			if conv.Rating <= 0 {
				continue
			}
		case ConversationFilterRatedDown:
			if conv.Rating >= 0 {
				continue
			}
		}
		if text != "" && !strings.Contains(strings.ToLower(conv.Question), text) {
			continue
		}
		m.visible = append(m.visible, conv)
	}

	rows := make([]table.Row, 0, len(m.visible))
	for _, conv := range m.visible {
		rating := ""
		if conv.Rating > 0 {
			rating = "+1"
		} else if conv.Rating < 0 {
			rating = "-1"
		}
		curated := ""
		if conv.Curated {
			curated = "yes"
		}
		good := ""
		if conv.GoodExample {
			good = "yes"
		}
		rows = append(rows, table.Row{
			conv.CreatedAt.Format("Jan 2 15:04"),
			conv.UserID,
			Truncate(conv.Question, 40),
			rating,
			curated,
			good,
		})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// AtRest reports whether the table is showing with no detail overlay
// and nothing focused.
func (m ConversationsPageModel) AtRest() bool {
	return !m.detailOpen && !m.filterFocused
}

func (m ConversationsPageModel) View() string {
	if m.detailOpen {
		var sb strings.Builder
		sb.WriteString(m.styles.Title.Render("Conversation"))
		sb.WriteString("\n\n")
		sb.WriteString(m.detail.View())
		sb.WriteString("\n")
		sb.WriteString(m.styles.Muted.Render("[↑/↓] Scroll  [Esc] Back"))
		return sb.String()
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Conversations"))
	sb.WriteString("\n\n")
	sb.WriteString(m.renderFilterBar())
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Content.Render(m.table.View()))
	sb.WriteString("\n")
	if m.exportNote != "" {
		sb.WriteString(m.styles.Success.Render(m.exportNote))
		sb.WriteString("\n")
	}
	if len(m.visible) != len(m.conversations) {
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("Showing %d of %d conversations\n", len(m.visible), len(m.conversations))))
	}
	sb.WriteString(m.styles.Muted.Render("[Enter] Read  [c] Toggle curated  [g] Toggle good example  [x] Export curated  [r] Refresh"))
	return sb.String()
}

func (m ConversationsPageModel) renderFilterBar() string {
	var sb strings.Builder

	filterStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Border).
		Padding(0, 1)
	if m.filterFocused {
		filterStyle = filterStyle.BorderForeground(m.styles.Theme.Primary)
	}
	sb.WriteString(filterStyle.Render(m.filterInput.View()))
	sb.WriteString("  ")

	modes := []struct {
		mode  ConversationFilterMode
		label string
	}{
		{ConversationFilterAll, "All"},
		{ConversationFilterCurated, "Curated"},
		{ConversationFilterGood, "Good"},
		{ConversationFilterRatedUp, "Rated +"},
		{ConversationFilterRatedDown, "Rated -"},
	}
	for _, mode := range modes {
		style := m.styles.Muted
		if m.filterMode == mode.mode {
			style = lipgloss.NewStyle().
				Foreground(m.styles.Theme.Primary).
				Bold(true).
				Underline(true)
		}
		sb.WriteString(style.Render(mode.label))
		sb.WriteString("  ")
	}

	sb.WriteString("  ")
	sb.WriteString(m.styles.Muted.Render("[/] Filter  [Tab] Mode"))
	return sb.String()
}
