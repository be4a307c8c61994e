package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestLoginPageRejectsBadEmail(t *testing.T) {
	model := NewLoginPageModel(DefaultStyles())
	model.email.SetValue("not-an-email")
	model.password.SetValue("longenough")
	model.setFocus(1)

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("expected no submit command for an invalid email")
	}
	if !strings.Contains(model.View(), "valid email") {
		t.Errorf("expected email validation message in view")
	}
}

func TestLoginPageRejectsShortPassword(t *testing.T) {
	model := NewLoginPageModel(DefaultStyles())
	model.email.SetValue("chief@demo.chiefkit.app")
	model.password.SetValue("short")
	model.setFocus(1)

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("expected no submit command for a short password")
	}
	if !strings.Contains(model.View(), "at least 8 characters") {
		t.Errorf("expected password validation message in view")
	}
}

func TestLoginPageSubmits(t *testing.T) {
	model := NewLoginPageModel(DefaultStyles())
	model.email.SetValue("  chief@demo.chiefkit.app ")
	model.password.SetValue("survivor")
	model.setFocus(1)

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a submit command")
	}
	msg, ok := cmd().(SubmitLoginMsg)
	if !ok {
		t.Fatalf("expected SubmitLoginMsg, got %T", cmd())
	}
	if msg.Email != "chief@demo.chiefkit.app" {
		t.Errorf("expected trimmed email, got %q", msg.Email)
	}
	if msg.Password != "survivor" {
		t.Errorf("unexpected password %q", msg.Password)
	}
	if !strings.Contains(model.View(), "Signing in") {
		t.Errorf("expected busy indicator after submit")
	}
}

func TestLoginPageEnterOnEmailMovesToPassword(t *testing.T) {
	model := NewLoginPageModel(DefaultStyles())
	model.email.SetValue("chief@demo.chiefkit.app")

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("enter on the email field should not submit")
	}
	if model.focus != 1 {
		t.Errorf("expected focus to move to the password field, got %d", model.focus)
	}
}

func TestLoginPageServerError(t *testing.T) {
	model := NewLoginPageModel(DefaultStyles())
	model.SetBusy(true)
	model.SetError("invalid email or password")

	view := model.View()
	if !strings.Contains(view, "invalid email or password") {
		t.Errorf("expected server error in view")
	}
	if strings.Contains(view, "Signing in") {
		t.Errorf("error should clear the busy indicator")
	}
}

func TestLoginPageDemoHint(t *testing.T) {
	model := NewLoginPageModel(DefaultStyles())
	if strings.Contains(model.View(), "Demo accounts") {
		t.Fatalf("demo hint should be hidden by default")
	}
	model.ShowDemoHint(true)
	view := model.View()
	if !strings.Contains(view, "Demo accounts") {
		t.Errorf("expected demo hint after enabling it")
	}
	if !strings.Contains(view, "admin@demo.chiefkit.app") {
		t.Errorf("expected demo admin email in hint")
	}
}

func TestLoginPageReset(t *testing.T) {
	model := NewLoginPageModel(DefaultStyles())
	model.email.SetValue("chief@demo.chiefkit.app")
	model.password.SetValue("survivor")
	model.SetError("boom")

	model.Reset()
	if model.email.Value() != "" || model.password.Value() != "" {
		t.Errorf("expected fields cleared on reset")
	}
	if strings.Contains(model.View(), "boom") {
		t.Errorf("expected error cleared on reset")
	}
}
