package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chiefkit/internal/types"
)

// UserFilterMode narrows the account table by role.
type UserFilterMode int

const (
	UserFilterAll UserFilterMode = iota
	UserFilterPlayers
	UserFilterModerators
	UserFilterAdmins
)

type usersPageMode int

const (
	usersModeList usersPageMode = iota
	usersModeForm
	usersModeConfirmDelete
)

var (
	roleOrder   = []types.Role{types.RolePlayer, types.RoleModerator, types.RoleAdmin}
	accessOrder = []types.AIAccess{types.AIAccessNone, types.AIAccessBasic, types.AIAccessFull}
)

// UsersPageModel is the admin account manager. Mutations leave as
// SaveUserMsg / DeleteUserMsg / ImpersonateMsg / CycleAccessMsg.
type UsersPageModel struct {
	width  int
	height int
	table  table.Model

	users   []types.User
	visible []types.User
	selfID  string

	filterInput   textinput.Model
	filterMode    UserFilterMode
	filterFocused bool

	mode       usersPageMode
	formID     string
	emailInput textinput.Model
	nameInput  textinput.Model
	passInput  textinput.Model
	formRole   int
	formAccess int
	formActive bool
	formFocus  int
	formErr    string

	styles Styles
}

func NewUsersPageModel(styles Styles) UsersPageModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: 18},
			{Title: "Email", Width: 28},
			{Title: "Role", Width: 10},
			{Title: "Advisor", Width: 8},
			{Title: "Active", Width: 7},
			{Title: "Joined", Width: 11},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	fi := textinput.New()
	fi.Placeholder = "Filter by name or email..."
	fi.CharLimit = 60
	fi.Width = 36

	email := textinput.New()
	email.Placeholder = "user@example.com"
	email.CharLimit = 120
	email.Width = 42

	name := textinput.New()
	name.Placeholder = "Display name"
	name.CharLimit = 80
	name.Width = 42

	pass := textinput.New()
	pass.Placeholder = "min 8 characters"
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'
	pass.CharLimit = 120
	pass.Width = 42

	return UsersPageModel{
		table:       t,
		filterInput: fi,
		emailInput:  email,
		nameInput:   name,
		passInput:   pass,
		styles:      styles,
	}
}

func (m *UsersPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetWidth(width - 4)
	if height > 10 {
		m.table.SetHeight(height - 8)
	}
}

// SetSelf marks the signed-in account so the list can flag it and the
// delete shortcut can refuse it client-side.
func (m *UsersPageModel) SetSelf(id string) { m.selfID = id }

func (m *UsersPageModel) UpdateContent(users []types.User) {
	m.users = users
	m.applyFilter()
}

func (m UsersPageModel) selected() (types.User, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.visible) {
		return types.User{}, false
	}
	return m.visible[idx], true
}

func (m UsersPageModel) Update(msg tea.Msg) (UsersPageModel, tea.Cmd) {
	switch m.mode {
	case usersModeForm:
		return m.updateForm(msg)
	case usersModeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m.updateList(msg)
}

func (m UsersPageModel) updateList(msg tea.Msg) (UsersPageModel, tea.Cmd) {
	var cmd tea.Cmd

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
				m.filterMode = (m.filterMode + 1) % 4
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
			if user, ok := m.selected(); ok {
				m.openForm(user)
			}
			return m, nil
		case "a":
			if !m.filterFocused {
				m.openForm(types.User{Role: types.RolePlayer, Active: true, AIAccess: types.AIAccessNone})
				return m, nil
			}
		case "e":
			if !m.filterFocused {
				if user, ok := m.selected(); ok {
					m.openForm(user)
				}
				return m, nil
			}
		case "d":
			if !m.filterFocused {
				if user, ok := m.selected(); ok && user.ID != m.selfID {
					m.mode = usersModeConfirmDelete
				}
				return m, nil
			}
		case "i":
			if !m.filterFocused {
				if user, ok := m.selected(); ok && user.ID != m.selfID {
					return m, emit(ImpersonateMsg{UserID: user.ID})
				}
				return m, nil
			}
		case "c":
			if !m.filterFocused {
				if user, ok := m.selected(); ok {
					return m, emit(CycleAccessMsg{UserID: user.ID})
				}
				return m, nil
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

func (m UsersPageModel) updateConfirm(msg tea.Msg) (UsersPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y":
		m.mode = usersModeList
		if user, ok := m.selected(); ok {
			return m, emit(DeleteUserMsg{ID: user.ID})
		}
	case "n", "esc":
		m.mode = usersModeList
	}
	return m, nil
}

func (m *UsersPageModel) openForm(user types.User) {
	m.mode = usersModeForm
	m.formID = user.ID
	m.emailInput.SetValue(user.Email)
	m.nameInput.SetValue(user.Name)
	m.passInput.SetValue("")
	m.formRole = 0
	for i, role := range roleOrder {
		if role == user.Role {
			m.formRole = i
		}
	}
	m.formAccess = 0
	for i, access := range accessOrder {
		if access == user.AIAccess {
			m.formAccess = i
		}
	}
	m.formActive = user.Active
	m.formErr = ""
	m.setFormFocus(0)
}

// Form field layout: 0 email, 1 name, 2 role, 3 advisor access,
// 4 active, 5 password.
const userFormFields = 6

func (m *UsersPageModel) setFormFocus(idx int) {
	m.formFocus = idx
	m.emailInput.Blur()
	m.nameInput.Blur()
	m.passInput.Blur()
	switch idx {
	case 0:
		m.emailInput.Focus()
	case 1:
		m.nameInput.Focus()
	case 5:
		m.passInput.Focus()
	}
}

func (m UsersPageModel) updateForm(msg tea.Msg) (UsersPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "esc":
		m.mode = usersModeList
		return m, nil
	case "tab", "down":
		m.setFormFocus(wrap(m.formFocus+1, userFormFields))
		return m, nil
	case "shift+tab", "up":
		m.setFormFocus(wrap(m.formFocus-1, userFormFields))
		return m, nil
	case "left", "right":
		delta := 1
		if key.String() == "left" {
			delta = -1
		}
		switch m.formFocus {
		case 2:
			m.formRole = wrap(m.formRole+delta, len(roleOrder))
			return m, nil
		case 3:
			m.formAccess = wrap(m.formAccess+delta, len(accessOrder))
			return m, nil
		case 4:
			m.formActive = !m.formActive
			return m, nil
		}
		// Text fields keep arrows for cursor movement.
	case " ":
		if m.formFocus == 4 {
			m.formActive = !m.formActive
			return m, nil
		}
	case "enter":
		return m.submitForm()
	}

	var cmd tea.Cmd
	switch m.formFocus {
	case 0:
		m.emailInput, cmd = m.emailInput.Update(msg)
	case 1:
		m.nameInput, cmd = m.nameInput.Update(msg)
	case 5:
		m.passInput, cmd = m.passInput.Update(msg)
	}
	return m, cmd
}

func (m UsersPageModel) submitForm() (UsersPageModel, tea.Cmd) {
	email := strings.TrimSpace(m.emailInput.Value())
	name := strings.TrimSpace(m.nameInput.Value())
	password := m.passInput.Value()

	if email == "" || !strings.Contains(email, "@") {
		m.formErr = "enter a valid email address"
		return m, nil
	}
	if name == "" {
		m.formErr = "name is required"
		return m, nil
	}
	creating := m.formID == ""
	if creating && len(password) < 8 {
		m.formErr = "new accounts need a password of at least 8 characters"
		return m, nil
	}
	if !creating && password != "" && len(password) < 8 {
		m.formErr = "password must be at least 8 characters"
		return m, nil
	}

	m.mode = usersModeList
	m.formErr = ""
	return m, emit(SaveUserMsg{
		ID:       m.formID,
		Email:    email,
		Name:     name,
		Role:     roleOrder[m.formRole],
		Active:   m.formActive,
		AIAccess: accessOrder[m.formAccess],
		Password: password,
	})
}

func (m *UsersPageModel) applyFilter() {
	text := strings.ToLower(m.filterInput.Value())

	m.visible = m.visible[:0]
	for _, user := range m.users {
		switch m.filterMode {
		case UserFilterPlayers:
			if user.Role != types.RolePlayer {
				continue
			}
		case UserFilterModerators:
			if user.Role != types.RoleModerator {
				continue
			}
		case UserFilterAdmins:
			if user.Role != types.RoleAdmin {
				continue
			}
		}
		if text != "" && !strings.Contains(strings.ToLower(user.Name), text) &&
			!strings.Contains(strings.ToLower(user.Email), text) {
			continue
		}
		m.visible = append(m.visible, user)
	}

	rows := make([]table.Row, 0, len(m.visible))
	for _, user := range m.visible {
		name := user.Name
		if user.ID == m.selfID {
			name += " (you)"
		}
		active := "yes"
		if !user.Active {
			active = "no"
		}
		rows = append(rows, table.Row{
			Truncate(name, 18),
			Truncate(user.Email, 28),
			string(user.Role),
			string(user.AIAccess),
			active,
			user.CreatedAt.Format("2006-01-02"),
		})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// AtRest reports whether the account table is showing with nothing
// focused, so Esc can leave the page.
func (m UsersPageModel) AtRest() bool {
	return m.mode == usersModeList && !m.filterFocused
}

func (m UsersPageModel) View() string {
	switch m.mode {
	case usersModeForm:
		return m.viewForm()
	case usersModeConfirmDelete:
		return m.viewConfirm()
	}
	return m.viewList()
}

func (m UsersPageModel) viewList() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Users"))
	sb.WriteString("\n\n")
	sb.WriteString(m.renderFilterBar())
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Content.Render(m.table.View()))
	if len(m.visible) != len(m.users) {
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("\nShowing %d of %d accounts", len(m.visible), len(m.users))))
	}
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("[a] New  [e] Edit  [d] Delete  [i] Impersonate  [c] Cycle advisor  [r] Refresh"))
	return sb.String()
}

func (m UsersPageModel) renderFilterBar() string {
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
		mode  UserFilterMode
		label string
	}{
		{UserFilterAll, "All"},
		{UserFilterPlayers, "Players"},
		{UserFilterModerators, "Moderators"},
		{UserFilterAdmins, "Admins"},
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
	sb.WriteString(m.styles.Muted.Render("[/] Filter  [Tab] Role"))
	return sb.String()
}

func (m UsersPageModel) viewForm() string {
	var sb strings.Builder
	if m.formID == "" {
		sb.WriteString(m.styles.Title.Render("New account"))
	} else {
		sb.WriteString(m.styles.Title.Render("Edit account"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.formLine(0, "Email", m.emailInput.View()))
	sb.WriteString(m.formLine(1, "Name", m.nameInput.View()))
	sb.WriteString(m.formLine(2, "Role", "< "+string(roleOrder[m.formRole])+" >"))
	sb.WriteString(m.formLine(3, "Advisor", "< "+string(accessOrder[m.formAccess])+" >"))
	active := "[ ] inactive"
	if m.formActive {
		active = "[x] active"
	}
	sb.WriteString(m.formLine(4, "Active", active))
	passLabel := "Password"
	if m.formID != "" {
		passLabel = "New password"
	}
	sb.WriteString(m.formLine(5, passLabel, m.passInput.View()))

	if m.formErr != "" {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Error.Render(m.formErr))
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("[Tab] Next field  [←/→] Change  [Enter] Save  [Esc] Cancel"))
	return sb.String()
}

func (m UsersPageModel) formLine(idx int, label, value string) string {
	rendered := m.styles.FormLabel.Render(label)
	if idx == m.formFocus {
		rendered = m.styles.FormLabel.Foreground(m.styles.Theme.Accent).Render(label)
	}
	return rendered + value + "\n"
}

func (m UsersPageModel) viewConfirm() string {
	user, ok := m.selected()
	if !ok {
		return m.viewList()
	}
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Delete account"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Delete %s (%s)? This cannot be undone.", m.styles.Bold.Render(user.Name), user.Email))
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("[y] Delete  [n] Keep"))
	return sb.String()
}
