package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/internal/store"
	"chiefkit/internal/types"
)

type providersPageMode int

const (
	providersModeList providersPageMode = iota
	providersModeForm
)

// ProvidersPageModel is the admin advisor-backend manager. The server
// never exposes keys; KeyHint is shown as-is. Local advisor usage
// kept by the store renders in a side panel.
type ProvidersPageModel struct {
	width  int
	height int
	table  table.Model

	providers []types.AIProvider
	usage     []store.UsageRow

	mode          providersPageMode
	formID        string
	nameInput     textinput.Model
	modelInput    textinput.Model
	endpointInput textinput.Model
	prioInput     textinput.Model
	budgetInput   textinput.Model
	formEnabled   bool
	formFocus     int
	formErr       string

	styles Styles
}

func NewProvidersPageModel(styles Styles) ProvidersPageModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Provider", Width: 12},
			{Title: "Model", Width: 18},
			{Title: "Priority", Width: 9},
			{Title: "Enabled", Width: 8},
			{Title: "Budget/day", Width: 11},
			{Title: "Key", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	name := textinput.New()
	name.Placeholder = "openai"
	name.CharLimit = 60
	name.Width = 32

	model := textinput.New()
	model.Placeholder = "gpt-4o-mini"
	model.CharLimit = 60
	model.Width = 32

	endpoint := textinput.New()
	endpoint.Placeholder = "https://... (empty = provider default)"
	endpoint.CharLimit = 200
	endpoint.Width = 48

	prio := textinput.New()
	prio.Placeholder = "1"
	prio.CharLimit = 3
	prio.Width = 6

	budget := textinput.New()
	budget.Placeholder = "0 = unlimited"
	budget.CharLimit = 9
	budget.Width = 14

	return ProvidersPageModel{
		table:         t,
		nameInput:     name,
		modelInput:    model,
		endpointInput: endpoint,
		prioInput:     prio,
		budgetInput:   budget,
		styles:        styles,
	}
}

func (m *ProvidersPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetWidth(width - 4)
}

func (m *ProvidersPageModel) UpdateContent(providers []types.AIProvider, usage []store.UsageRow) {
	m.providers = providers
	m.usage = usage
	rows := make([]table.Row, 0, len(providers))
	for _, provider := range providers {
		enabled := "no"
		if provider.Enabled {
			enabled = "yes"
		}
		budget := "unlimited"
		if provider.DailyBudget > 0 {
			budget = strconv.Itoa(provider.DailyBudget)
		}
		rows = append(rows, table.Row{
			provider.Name,
			provider.Model,
			strconv.Itoa(provider.Priority),
			enabled,
			budget,
			provider.KeyHint,
		})
	}
	m.table.SetRows(rows)
}

func (m ProvidersPageModel) selected() (types.AIProvider, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.providers) {
		return types.AIProvider{}, false
	}
	return m.providers[idx], true
}

func (m ProvidersPageModel) Update(msg tea.Msg) (ProvidersPageModel, tea.Cmd) {
	if m.mode == providersModeForm {
		return m.updateForm(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter", "e":
			if provider, ok := m.selected(); ok {
				m.openForm(provider)
			}
			return m, nil
		case "t":
			if provider, ok := m.selected(); ok {
				provider.Enabled = !provider.Enabled
				return m, emit(SaveProviderMsg{Provider: provider})
			}
			return m, nil
		case "r":
			return m, emit(RefreshRequestMsg{})
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *ProvidersPageModel) openForm(provider types.AIProvider) {
	m.mode = providersModeForm
	m.formID = provider.ID
	m.nameInput.SetValue(provider.Name)
	m.modelInput.SetValue(provider.Model)
	m.endpointInput.SetValue(provider.Endpoint)
	m.prioInput.SetValue(strconv.Itoa(provider.Priority))
	m.budgetInput.SetValue(strconv.Itoa(provider.DailyBudget))
	m.formEnabled = provider.Enabled
	m.formErr = ""
	m.setFormFocus(0)
}

// Form field layout: 0 name, 1 model, 2 endpoint, 3 priority,
// 4 budget, 5 enabled.
const providerFormFields = 6

func (m *ProvidersPageModel) setFormFocus(idx int) {
	m.formFocus = idx
	m.nameInput.Blur()
	m.modelInput.Blur()
	m.endpointInput.Blur()
	m.prioInput.Blur()
	m.budgetInput.Blur()
	switch idx {
	case 0:
		m.nameInput.Focus()
	case 1:
		m.modelInput.Focus()
	case 2:
		m.endpointInput.Focus()
	case 3:
		m.prioInput.Focus()
	case 4:
		m.budgetInput.Focus()
	}
}

func (m ProvidersPageModel) updateForm(msg tea.Msg) (ProvidersPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "esc":
		m.mode = providersModeList
		return m, nil
	case "tab", "down":
		m.setFormFocus(wrap(m.formFocus+1, providerFormFields))
		return m, nil
	case "shift+tab", "up":
		m.setFormFocus(wrap(m.formFocus-1, providerFormFields))
		return m, nil
	case "left", "right", " ":
		// Text fields keep these for cursor movement and typing.
		if m.formFocus == 5 {
			m.formEnabled = !m.formEnabled
			return m, nil
		}
	case "enter":
		return m.submitForm()
	}

	var cmd tea.Cmd
	switch m.formFocus {
	case 0:
		m.nameInput, cmd = m.nameInput.Update(msg)
	case 1:
		m.modelInput, cmd = m.modelInput.Update(msg)
	case 2:
		m.endpointInput, cmd = m.endpointInput.Update(msg)
	case 3:
		m.prioInput, cmd = m.prioInput.Update(msg)
	case 4:
		m.budgetInput, cmd = m.budgetInput.Update(msg)
	}
	return m, cmd
}

func (m ProvidersPageModel) submitForm() (ProvidersPageModel, tea.Cmd) {
	name := strings.TrimSpace(m.nameInput.Value())
	modelName := strings.TrimSpace(m.modelInput.Value())
	if name == "" || modelName == "" {
		m.formErr = "name and model are required"
		return m, nil
	}
	priority, err := strconv.Atoi(strings.TrimSpace(m.prioInput.Value()))
	if err != nil || priority < 0 {
		m.formErr = "priority must be a non-negative number"
		return m, nil
	}
	budget := 0
	if raw := strings.TrimSpace(m.budgetInput.Value()); raw != "" {
		budget, err = strconv.Atoi(raw)
		if err != nil || budget < 0 {
			m.formErr = "budget must be a non-negative number"
			return m, nil
		}
	}

	m.mode = providersModeList
	m.formErr = ""
	return m, emit(SaveProviderMsg{Provider: types.AIProvider{
		ID:          m.formID,
		Name:        name,
		Model:       modelName,
		Endpoint:    strings.TrimSpace(m.endpointInput.Value()),
		Enabled:     m.formEnabled,
		Priority:    priority,
		DailyBudget: budget,
	}})
}

// AtRest reports whether the table is showing rather than the form.
func (m ProvidersPageModel) AtRest() bool { return m.mode == providersModeList }

func (m ProvidersPageModel) View() string {
	if m.mode == providersModeForm {
		return m.viewForm()
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Providers"))
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Content.Render(m.table.View()))
	sb.WriteString("\n")

	if len(m.usage) > 0 {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Subtitle.Render("Local advisor usage"))
		sb.WriteString("\n")
		for _, row := range m.usage {
			sb.WriteString(fmt.Sprintf("  %-12s %-10s %3d questions  %6d tokens\n",
				row.Day, row.Provider, row.Questions, row.Tokens))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("[Enter] Edit  [t] Toggle enabled  [r] Refresh"))
	return sb.String()
}

func (m ProvidersPageModel) viewForm() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Edit provider"))
	sb.WriteString("\n\n")

	sb.WriteString(m.formLine(0, "Name", m.nameInput.View()))
	sb.WriteString(m.formLine(1, "Model", m.modelInput.View()))
	sb.WriteString(m.formLine(2, "Endpoint", m.endpointInput.View()))
	sb.WriteString(m.formLine(3, "Priority", m.prioInput.View()))
	sb.WriteString(m.formLine(4, "Budget", m.budgetInput.View()))
	enabled := "[ ] disabled"
	if m.formEnabled {
		enabled = "[x] enabled"
	}
	sb.WriteString(m.formLine(5, "Enabled", enabled))

	if m.formErr != "" {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Error.Render(m.formErr))
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("[Tab] Next field  [Enter] Save  [Esc] Cancel"))
	return sb.String()
}

func (m ProvidersPageModel) formLine(idx int, label, value string) string {
	rendered := m.styles.FormLabel.Render(label)
	if idx == m.formFocus {
		rendered = m.styles.FormLabel.Foreground(m.styles.Theme.Accent).Render(label)
	}
	return rendered + value + "\n"
}
