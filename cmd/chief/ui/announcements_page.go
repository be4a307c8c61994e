package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/internal/richtext"
	"chiefkit/internal/types"
)

type announcementsPageMode int

const (
	announcementsModeList announcementsPageMode = iota
	announcementsModeForm
	announcementsModeConfirmDelete
)

var displayOrder = []types.DisplayType{types.DisplayBanner, types.DisplayModal, types.DisplayFeed}

// AnnouncementsPageModel serves two audiences: players see the active
// feed, moderators manage the full list. The managing flag switches
// between the two.
type AnnouncementsPageModel struct {
	width  int
	height int

	announcements []types.Announcement
	cursor        int
	managing      bool

	mode        announcementsPageMode
	formID      string
	titleInput  textinput.Model
	bodyInput   textarea.Model
	expiryInput textinput.Model
	prioInput   textinput.Model
	formDisplay int
	formActive  bool
	formFocus   int
	formErr     string
	preview     bool

	renderer *richtext.Renderer
	styles   Styles
}

func NewAnnouncementsPageModel(styles Styles) AnnouncementsPageModel {
	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = 120
	title.Width = 50

	body := textarea.New()
	body.Placeholder = "Body text..."
	body.CharLimit = 2000
	body.SetWidth(60)
	body.SetHeight(5)

	expiry := textinput.New()
	expiry.Placeholder = "2026-01-31 (empty = never)"
	expiry.CharLimit = 10
	expiry.Width = 28

	prio := textinput.New()
	prio.Placeholder = "0"
	prio.CharLimit = 3
	prio.Width = 6

	return AnnouncementsPageModel{
		titleInput:  title,
		bodyInput:   body,
		expiryInput: expiry,
		prioInput:   prio,
		renderer:    richtext.NewRenderer(72),
		styles:      styles,
	}
}

func (m *AnnouncementsPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	if width > 20 {
		m.bodyInput.SetWidth(width - 20)
	}
	m.renderer.SetWidth(width - 12)
}

// SetManaging switches between the player feed and the moderator list.
func (m *AnnouncementsPageModel) SetManaging(managing bool) { m.managing = managing }

func (m *AnnouncementsPageModel) UpdateContent(announcements []types.Announcement) {
	m.announcements = announcements
	if m.cursor >= len(announcements) {
		m.cursor = 0
	}
}

func (m AnnouncementsPageModel) selected() (types.Announcement, bool) {
	if m.cursor < 0 || m.cursor >= len(m.announcements) {
		return types.Announcement{}, false
	}
	return m.announcements[m.cursor], true
}

func (m AnnouncementsPageModel) Update(msg tea.Msg) (AnnouncementsPageModel, tea.Cmd) {
	switch m.mode {
	case announcementsModeForm:
		return m.updateForm(msg)
	case announcementsModeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m.updateList(msg)
}

func (m AnnouncementsPageModel) updateList(msg tea.Msg) (AnnouncementsPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.announcements)-1 {
			m.cursor++
		}
	case "r":
		return m, emit(RefreshRequestMsg{})
	}
	if !m.managing {
		return m, nil
	}
	switch key.String() {
	case "a":
		m.openForm(types.Announcement{Active: true})
	case "e", "enter":
		if ann, ok := m.selected(); ok {
			m.openForm(ann)
		}
	case "d":
		if _, ok := m.selected(); ok {
			m.mode = announcementsModeConfirmDelete
		}
	}
	return m, nil
}

func (m AnnouncementsPageModel) updateConfirm(msg tea.Msg) (AnnouncementsPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y":
		m.mode = announcementsModeList
		if ann, ok := m.selected(); ok {
			return m, emit(DeleteAnnouncementMsg{ID: ann.ID})
		}
	case "n", "esc":
		m.mode = announcementsModeList
	}
	return m, nil
}

func (m *AnnouncementsPageModel) openForm(ann types.Announcement) {
	m.mode = announcementsModeForm
	m.formID = ann.ID
	m.titleInput.SetValue(ann.Title)
	m.bodyInput.SetValue(ann.Body)
	m.prioInput.SetValue(strconv.Itoa(ann.Priority))
	if ann.ExpiresAt != nil {
		m.expiryInput.SetValue(ann.ExpiresAt.Format("2006-01-02"))
	} else {
		m.expiryInput.SetValue("")
	}
	m.formDisplay = 0
	for i, d := range displayOrder {
		if d == ann.Display {
			m.formDisplay = i
		}
	}
	m.formActive = ann.Active
	m.formErr = ""
	m.preview = false
	m.setFormFocus(0)
}

// Form field layout: 0 title, 1 body, 2 display, 3 priority,
// 4 active, 5 expiry.
const announcementFormFields = 6

func (m *AnnouncementsPageModel) setFormFocus(idx int) {
	m.formFocus = idx
	m.titleInput.Blur()
	m.bodyInput.Blur()
	m.prioInput.Blur()
	m.expiryInput.Blur()
	switch idx {
	case 0:
		m.titleInput.Focus()
	case 1:
		m.bodyInput.Focus()
	case 3:
		m.prioInput.Focus()
	case 5:
		m.expiryInput.Focus()
	}
}

func (m AnnouncementsPageModel) updateForm(msg tea.Msg) (AnnouncementsPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "esc":
		if m.preview {
			m.preview = false
			return m, nil
		}
		m.mode = announcementsModeList
		return m, nil
	case "tab":
		m.setFormFocus(wrap(m.formFocus+1, announcementFormFields))
		return m, nil
	case "shift+tab":
		m.setFormFocus(wrap(m.formFocus-1, announcementFormFields))
		return m, nil
	case "left", "right":
		delta := 1
		if key.String() == "left" {
			delta = -1
		}
		switch m.formFocus {
		case 2:
			m.formDisplay = wrap(m.formDisplay+delta, len(displayOrder))
			return m, nil
		case 4:
			m.formActive = !m.formActive
			return m, nil
		}
		// Text fields keep arrows for cursor movement.
	case "ctrl+p":
		m.preview = !m.preview
		return m, nil
	case "ctrl+s":
		return m.submitForm()
	case "enter":
		// The body textarea needs enter for newlines.
		if m.formFocus != 1 {
			return m.submitForm()
		}
	case " ":
		if m.formFocus == 4 {
			m.formActive = !m.formActive
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.formFocus {
	case 0:
		m.titleInput, cmd = m.titleInput.Update(msg)
	case 1:
		m.bodyInput, cmd = m.bodyInput.Update(msg)
	case 3:
		m.prioInput, cmd = m.prioInput.Update(msg)
	case 5:
		m.expiryInput, cmd = m.expiryInput.Update(msg)
	}
	return m, cmd
}

func (m AnnouncementsPageModel) submitForm() (AnnouncementsPageModel, tea.Cmd) {
	title := strings.TrimSpace(m.titleInput.Value())
	body := strings.TrimSpace(m.bodyInput.Value())
	if title == "" || body == "" {
		m.formErr = "title and body are required"
		return m, nil
	}
	priority := 0
	if raw := strings.TrimSpace(m.prioInput.Value()); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			m.formErr = "priority must be a non-negative number"
			return m, nil
		}
		priority = parsed
	}
	expiresAt := ""
	if raw := strings.TrimSpace(m.expiryInput.Value()); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			m.formErr = "expiry must look like 2026-01-31"
			return m, nil
		}
		expiresAt = day.UTC().Format(time.RFC3339)
	}

	m.mode = announcementsModeList
	m.formErr = ""
	return m, emit(SaveAnnouncementMsg{
		ID:        m.formID,
		Title:     title,
		Body:      body,
		Display:   displayOrder[m.formDisplay],
		Priority:  priority,
		Active:    m.formActive,
		ExpiresAt: expiresAt,
	})
}

// AtRest reports whether the list is showing rather than the form or a
// delete confirmation.
func (m AnnouncementsPageModel) AtRest() bool { return m.mode == announcementsModeList }

func (m AnnouncementsPageModel) View() string {
	switch m.mode {
	case announcementsModeForm:
		return m.viewForm()
	case announcementsModeConfirmDelete:
		return m.viewConfirm()
	}
	return m.viewList()
}

func (m AnnouncementsPageModel) viewList() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Announcements"))
	sb.WriteString("\n\n")

	if len(m.announcements) == 0 {
		sb.WriteString(m.styles.Muted.Render("Nothing posted right now."))
		sb.WriteString("\n")
	}

	now := time.Now()
	for i, ann := range m.announcements {
		badge := m.styles.Badge.Render(string(ann.Display))
		title := m.styles.Bold.Render(ann.Title)
		var flags []string
		if m.managing {
			if !ann.Active {
				flags = append(flags, m.styles.Muted.Render("inactive"))
			}
			if ann.Expired(now) {
				flags = append(flags, m.styles.Warning.Render("expired"))
			}
		}
		line := fmt.Sprintf("%s %s  %s", badge, title, strings.Join(flags, " "))
		if m.managing && i == m.cursor {
			sb.WriteString(m.styles.Selected.Render("› " + line))
		} else {
			sb.WriteString("  " + line)
		}
		sb.WriteString("\n")
		sb.WriteString("    " + Truncate(ann.Body, 76))
		sb.WriteString("\n")
		meta := ann.CreatedAt.Format("Jan 2")
		if ann.Author != "" {
			meta += " · " + ann.Author
		}
		if ann.ExpiresAt != nil {
			meta += " · expires " + ann.ExpiresAt.Format("Jan 2")
		}
		sb.WriteString("    " + m.styles.Muted.Render(meta))
		sb.WriteString("\n\n")
	}

	if m.managing {
		sb.WriteString(m.styles.Muted.Render("[a] New  [e] Edit  [d] Delete  [r] Refresh"))
	} else {
		sb.WriteString(m.styles.Muted.Render("[r] Refresh"))
	}
	return sb.String()
}

func (m AnnouncementsPageModel) viewForm() string {
	if m.preview {
		var sb strings.Builder
		sb.WriteString(m.styles.Title.Render("Preview"))
		sb.WriteString("\n\n")
		sb.WriteString(m.styles.Card.Render(
			m.styles.Badge.Render(string(displayOrder[m.formDisplay])) + " " +
				m.styles.Bold.Render(m.titleInput.Value()) + "\n\n" +
				strings.TrimRight(m.renderer.Render(m.bodyInput.Value()), "\n")))
		sb.WriteString("\n\n")
		sb.WriteString(m.styles.Muted.Render("[Ctrl+P] Back to form"))
		return sb.String()
	}

	var sb strings.Builder
	if m.formID == "" {
		sb.WriteString(m.styles.Title.Render("New announcement"))
	} else {
		sb.WriteString(m.styles.Title.Render("Edit announcement"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.formLine(0, "Title", m.titleInput.View()))
	sb.WriteString(m.formLine(1, "Body", "\n"+m.bodyInput.View()))
	sb.WriteString(m.formLine(2, "Display", "< "+string(displayOrder[m.formDisplay])+" >"))
	sb.WriteString(m.formLine(3, "Priority", m.prioInput.View()))
	active := "[ ] inactive"
	if m.formActive {
		active = "[x] active"
	}
	sb.WriteString(m.formLine(4, "Active", active))
	sb.WriteString(m.formLine(5, "Expires", m.expiryInput.View()))

	if m.formErr != "" {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Error.Render(m.formErr))
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("[Tab] Next  [Ctrl+S] Save  [Ctrl+P] Preview  [Esc] Cancel"))
	return sb.String()
}

func (m AnnouncementsPageModel) formLine(idx int, label, value string) string {
	rendered := m.styles.FormLabel.Render(label)
	if idx == m.formFocus {
		rendered = m.styles.FormLabel.Foreground(m.styles.Theme.Accent).Render(label)
	}
	return rendered + value + "\n"
}

func (m AnnouncementsPageModel) viewConfirm() string {
	ann, ok := m.selected()
	if !ok {
		return m.viewList()
	}
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Delete announcement"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Delete %s?", m.styles.Bold.Render(ann.Title)))
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("[y] Delete  [n] Keep"))
	return sb.String()
}
