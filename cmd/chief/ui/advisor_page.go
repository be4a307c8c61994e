package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/internal/richtext"
	"chiefkit/internal/types"
)

// AdvisorPageModel is the strategy Q&A transcript. Questions leave as
// AskAdvisorMsg; history and the busy flag come back from the root
// model once the backend answers.
type AdvisorPageModel struct {
	width  int
	height int

	viewport      viewport.Model
	input         textinput.Model
	inputFocused  bool
	conversations []types.Conversation
	busy          bool
	locked        bool
	errLine       string

	renderer *richtext.Renderer
	styles   Styles
}

func NewAdvisorPageModel(styles Styles) AdvisorPageModel {
	input := textinput.New()
	input.Placeholder = "Ask about heroes, gear, events..."
	input.CharLimit = 400
	input.Width = 60
	input.Focus()

	return AdvisorPageModel{
		viewport:     viewport.New(80, 16),
		input:        input,
		inputFocused: true,
		renderer:     richtext.NewRenderer(76),
		styles:       styles,
	}
}

func (m *AdvisorPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 4
	if height > 10 {
		m.viewport.Height = height - 8
	}
	m.input.Width = width - 12
	m.renderer.SetWidth(width - 8)
	m.rebuildTranscript()
}

// SetLocked switches the page to the access-gate notice for accounts
// without advisor access.
func (m *AdvisorPageModel) SetLocked(locked bool) { m.locked = locked }

// SetBusy toggles the thinking indicator while a question is in flight.
func (m *AdvisorPageModel) SetBusy(busy bool) {
	m.busy = busy
	if !busy {
		m.input.SetValue("")
	}
}

// SetError shows a request failure above the input line.
func (m *AdvisorPageModel) SetError(msg string) {
	m.errLine = msg
	m.busy = false
}

func (m *AdvisorPageModel) UpdateContent(conversations []types.Conversation) {
	m.conversations = conversations
	m.busy = false
	m.errLine = ""
	m.rebuildTranscript()
	m.viewport.GotoBottom()
}

// Latest returns the newest conversation, the target of rating keys.
func (m AdvisorPageModel) Latest() (types.Conversation, bool) {
	if len(m.conversations) == 0 {
		return types.Conversation{}, false
	}
	return m.conversations[0], true
}

func (m AdvisorPageModel) Update(msg tea.Msg) (AdvisorPageModel, tea.Cmd) {
	if m.locked {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			if m.inputFocused {
				m.inputFocused = false
				m.input.Blur()
				return m, nil
			}
		case "/", "i":
			if !m.inputFocused {
				m.inputFocused = true
				m.input.Focus()
				return m, nil
			}
		case "enter":
			if m.inputFocused && !m.busy {
				question := strings.TrimSpace(m.input.Value())
				if question == "" {
					return m, nil
				}
				m.busy = true
				m.errLine = ""
				return m, emit(AskAdvisorMsg{Question: question})
			}
		case "+", "=":
			if !m.inputFocused {
				if conv, ok := m.Latest(); ok {
					return m, emit(RateConversationMsg{ID: conv.ID, Rating: 1})
				}
			}
		case "-", "_":
			if !m.inputFocused {
				if conv, ok := m.Latest(); ok {
					return m, emit(RateConversationMsg{ID: conv.ID, Rating: -1})
				}
			}
		case "0":
			if !m.inputFocused {
				if conv, ok := m.Latest(); ok {
					return m, emit(RateConversationMsg{ID: conv.ID, Rating: 0})
				}
			}
		}
	}

	var cmd tea.Cmd
	if m.inputFocused {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// rebuildTranscript renders history oldest-first so the newest answer
// sits at the bottom of the viewport.
func (m *AdvisorPageModel) rebuildTranscript() {
	var sb strings.Builder
	for i := len(m.conversations) - 1; i >= 0; i-- {
		conv := m.conversations[i]
		sb.WriteString(m.styles.Bold.Render("You: " + conv.Question))
		sb.WriteString("\n")
		sb.WriteString(m.renderer.Render(conv.Answer))
		sb.WriteString("\n")
		meta := fmt.Sprintf("%s · %d tokens · %s", conv.Provider, conv.Tokens, conv.CreatedAt.Format("Jan 2 15:04"))
		if conv.Rating > 0 {
			meta += " · rated up"
		} else if conv.Rating < 0 {
			meta += " · rated down"
		}
		sb.WriteString(m.styles.Muted.Render(meta))
		sb.WriteString("\n\n")
	}
	m.viewport.SetContent(sb.String())
}

// AtRest reports whether the question input is unfocused, so Esc can
// leave the page.
func (m AdvisorPageModel) AtRest() bool { return !m.inputFocused }

func (m AdvisorPageModel) View() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Advisor"))
	sb.WriteString("\n\n")

	if m.locked {
		sb.WriteString(m.styles.Warning.Render("The advisor is not enabled for your account."))
		sb.WriteString("\n")
		sb.WriteString(m.styles.Muted.Render("Ask an admin to grant advisor access."))
		return sb.String()
	}

	if len(m.conversations) == 0 && !m.busy {
		sb.WriteString(m.styles.Muted.Render("No questions yet. Ask one below."))
		sb.WriteString("\n")
	} else {
		sb.WriteString(m.viewport.View())
		sb.WriteString("\n")
	}

	if m.busy {
		sb.WriteString(m.styles.Info.Render("Thinking..."))
		sb.WriteString("\n")
	}
	if m.errLine != "" {
		sb.WriteString(m.styles.Error.Render(m.errLine))
		sb.WriteString("\n")
	}

	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	if m.inputFocused {
		sb.WriteString(m.styles.Muted.Render("[Enter] Ask  [Esc] Scroll history"))
	} else {
		sb.WriteString(m.styles.Muted.Render("[/] Ask  [+/-] Rate latest  [0] Clear rating  [↑/↓] Scroll"))
	}
	return sb.String()
}
