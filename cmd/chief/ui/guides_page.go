package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/internal/richtext"
	"chiefkit/internal/types"
)

// GuidesPageModel is the strategy guide browser: a title list, and a
// reader for the opened guide. Guide bodies arrive as CMS HTML and go
// through richtext for terminal rendering.
type GuidesPageModel struct {
	width  int
	height int

	guides   []types.Guide
	cursor   int
	reading  bool
	open     *types.Guide
	reader   viewport.Model
	renderer *richtext.Renderer

	styles Styles
}

func NewGuidesPageModel(styles Styles) GuidesPageModel {
	return GuidesPageModel{
		reader:   viewport.New(80, 18),
		renderer: richtext.NewRenderer(76),
		styles:   styles,
	}
}

func (m *GuidesPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.reader.Width = width - 4
	if height > 8 {
		m.reader.Height = height - 6
	}
	m.renderer.SetWidth(width - 8)
	if m.reading && m.open != nil {
		m.renderOpen()
	}
}

func (m *GuidesPageModel) UpdateContent(guides []types.Guide) {
	m.guides = guides
	if m.cursor >= len(guides) {
		m.cursor = 0
	}
}

func (m GuidesPageModel) Update(msg tea.Msg) (GuidesPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.reading {
			var cmd tea.Cmd
			m.reader, cmd = m.reader.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.reading {
		switch key.String() {
		case "esc", "q", "backspace":
			m.reading = false
			m.open = nil
			return m, nil
		}
		var cmd tea.Cmd
		m.reader, cmd = m.reader.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.guides)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(m.guides) {
			guide := m.guides[m.cursor]
			m.reading = true
			m.open = &guide
			m.renderOpen()
			m.reader.GotoTop()
		}
	case "r":
		return m, emit(RefreshRequestMsg{})
	}
	return m, nil
}

func (m *GuidesPageModel) renderOpen() {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render(m.open.Title))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("Updated " + m.open.UpdatedAt.Format("Jan 2, 2006")))
	sb.WriteString("\n\n")
	sb.WriteString(m.renderer.RenderHTML(m.open.Body))
	m.reader.SetContent(sb.String())
}

// AtRest reports whether the list is showing rather than an open guide.
func (m GuidesPageModel) AtRest() bool { return !m.reading }

func (m GuidesPageModel) View() string {
	if m.reading {
		var sb strings.Builder
		sb.WriteString(m.reader.View())
		sb.WriteString("\n")
		sb.WriteString(m.styles.Muted.Render("[↑/↓] Scroll  [Esc] Back to list"))
		return sb.String()
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Guides"))
	sb.WriteString("\n\n")
	if len(m.guides) == 0 {
		sb.WriteString(m.styles.Muted.Render("No guides published."))
		return sb.String()
	}
	for i, guide := range m.guides {
		line := fmt.Sprintf("%s  %s", guide.Title, m.styles.Muted.Render(guide.UpdatedAt.Format("Jan 2")))
		if i == m.cursor {
			sb.WriteString(m.styles.Selected.Render("› " + line))
		} else {
			sb.WriteString("  " + line)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("[Enter] Read  [r] Refresh"))
	return sb.String()
}
