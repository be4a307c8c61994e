package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-playground/validator/v10"

	"chiefkit/internal/demo"
)

var loginValidate = validator.New()

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

// LoginPageModel is the credential form shown whenever no session
// exists. Submission is validated locally before the page emits a
// SubmitLoginMsg; server rejections come back through SetError.
type LoginPageModel struct {
	email    textinput.Model
	password textinput.Model
	focus    int
	errLine  string
	demoHint bool
	busy     bool
	styles   Styles
	width    int
	height   int
}

func NewLoginPageModel(styles Styles) LoginPageModel {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 120
	email.Width = 42
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 120
	password.Width = 42

	return LoginPageModel{email: email, password: password, styles: styles}
}

func (m *LoginPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// ShowDemoHint lists the built-in demo accounts under the form.
func (m *LoginPageModel) ShowDemoHint(show bool) { m.demoHint = show }

// SetError surfaces a server-side failure and re-enables the form.
func (m *LoginPageModel) SetError(msg string) {
	m.errLine = msg
	m.busy = false
}

// SetBusy marks the form as submitting; input is ignored while set.
func (m *LoginPageModel) SetBusy(busy bool) { m.busy = busy }

// Reset clears both fields, typically after a logout.
func (m *LoginPageModel) Reset() {
	m.email.SetValue("")
	m.password.SetValue("")
	m.errLine = ""
	m.busy = false
	m.focus = 0
	m.email.Focus()
	m.password.Blur()
}

func (m LoginPageModel) Update(msg tea.Msg) (LoginPageModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "shift+tab", "up", "down":
			m.setFocus((m.focus + 1) % 2)
			return m, nil
		case "enter":
			if m.busy {
				return m, nil
			}
			if m.focus == 0 {
				m.setFocus(1)
				return m, nil
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *LoginPageModel) setFocus(idx int) {
	m.focus = idx
	if idx == 0 {
		m.email.Focus()
		m.password.Blur()
	} else {
		m.password.Focus()
		m.email.Blur()
	}
}

func (m LoginPageModel) submit() (LoginPageModel, tea.Cmd) {
	form := loginForm{
		Email:    strings.TrimSpace(m.email.Value()),
		Password: m.password.Value(),
	}
	if err := loginValidate.Struct(form); err != nil {
		m.errLine = loginFormError(err)
		return m, nil
	}
	m.errLine = ""
	m.busy = true
	return m, emit(SubmitLoginMsg{Email: form.Email, Password: form.Password})
}

func loginFormError(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "check your credentials"
	}
	for _, fieldErr := range fieldErrs {
		switch fieldErr.Field() {
		case "Email":
			return "enter a valid email address"
		case "Password":
			if fieldErr.ActualTag() == "min" {
				return "password must be at least 8 characters"
			}
			return "enter your password"
		}
	}
	return "check your credentials"
}

func (m LoginPageModel) View() string {
	var sb strings.Builder
	sb.WriteString(Logo(m.styles))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Subtitle.Render("Sign in to manage your state"))
	sb.WriteString("\n\n")

	labels := []string{"Email", "Password"}
	fields := []string{m.email.View(), m.password.View()}
	for i := range labels {
		label := m.styles.FormLabel.Render(labels[i])
		if i == m.focus {
			label = m.styles.FormLabel.Foreground(m.styles.Theme.Accent).Render(labels[i])
		}
		sb.WriteString(label)
		sb.WriteString(fields[i])
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	switch {
	case m.busy:
		sb.WriteString(m.styles.Info.Render("Signing in..."))
		sb.WriteString("\n")
	case m.errLine != "":
		sb.WriteString(m.styles.Error.Render(m.errLine))
		sb.WriteString("\n")
	}

	if m.demoHint {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Muted.Render("Demo accounts:"))
		sb.WriteString("\n")
		accounts := []string{
			fmt.Sprintf("  %s / %s (admin)", demo.DemoAdminEmail, demo.DemoAdminPassword),
			fmt.Sprintf("  %s / %s (moderator)", demo.DemoModeratorEmail, demo.DemoModeratorPassword),
			fmt.Sprintf("  %s / %s (player)", demo.DemoPlayerEmail, demo.DemoPlayerPassword),
		}
		for _, line := range accounts {
			sb.WriteString(m.styles.Muted.Render(line))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("[Tab] Switch field  [Enter] Sign in  [Ctrl+C] Quit"))
	return sb.String()
}
