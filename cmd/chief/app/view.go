package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chiefkit/cmd/chief/ui"
)

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.booting || m.bootErr != nil {
		return m.renderSplash()
	}
	if m.view == ViewLogin {
		return m.renderLoginScreen()
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	var content string
	switch m.view {
	case ViewHub:
		content = m.styles.Content.Render(m.renderHub())
	case ViewDashboard:
		content = m.styles.Content.Render(m.dashboard.View())
	case ViewRoster:
		content = m.styles.Content.Render(m.roster.View())
	case ViewAdvisor:
		content = m.styles.Content.Render(m.advisor.View())
	case ViewGuides:
		content = m.styles.Content.Render(m.guides.View())
	case ViewAnnouncements:
		content = m.styles.Content.Render(m.announcements.View())
	case ViewInbox:
		content = m.styles.Content.Render(m.inbox.View())
	case ViewUsers:
		content = m.styles.Content.Render(m.users.View())
	case ViewConversations:
		content = m.styles.Content.Render(m.conversations.View())
	case ViewGameData:
		content = m.styles.Content.Render(m.gamedata.View())
	case ViewProviders:
		content = m.styles.Content.Render(m.providers.View())
	}

	sections := []string{header}
	if banner := m.renderBanner(); banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections, content, footer)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderSplash() string {
	var body string
	if m.bootErr != nil {
		body = lipgloss.JoinVertical(
			lipgloss.Center,
			ui.Logo(m.styles),
			"",
			m.styles.Error.Render("Start-up failed"),
			m.styles.Muted.Render(m.bootErr.Error()),
			"",
			m.styles.Muted.Render("Press any key to exit."),
		)
	} else {
		stage := m.bootText
		if stage == "" {
			stage = "Starting..."
		}
		body = lipgloss.JoinVertical(
			lipgloss.Center,
			ui.Logo(m.styles),
			"",
			m.spinner.View(),
			"",
			m.styles.Badge.Render("Starting up"),
			m.styles.Muted.Render(stage),
		)
	}
	return m.place(body)
}

func (m Model) renderLoginScreen() string {
	body := m.login.View()
	if banner := m.renderBanner(); banner != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, banner, "", body)
	}
	return m.place(body)
}

// place centers content on the full terminal, with a sane fallback
// before the first size message lands.
func (m Model) place(content string) string {
	width, height := m.width, m.height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" chief ")
	version := m.styles.Badge.Render("v" + m.cfg.Version)

	var status string
	if m.pendingLoads > 0 {
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ", m.styles.Info.Render("Loading"))
	} else {
		status = m.styles.Success.Render("Ready")
	}

	headerLine := lipgloss.JoinHorizontal(lipgloss.Center, title, " ", version, "  ", status)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		m.renderIdentity(),
		m.styles.RenderDivider(m.width),
	)
}

// renderIdentity is the second header line: who you are, and any modes
// that change what the data means.
func (m Model) renderIdentity() string {
	u := m.sess.User()
	if u == nil {
		return ""
	}
	parts := []string{fmt.Sprintf("%s (%s)", u.Email, u.Role)}
	if m.sess.Impersonating() {
		parts = append(parts, fmt.Sprintf("impersonation by %s", m.sess.ActorEmail()))
	}
	if m.demoMode {
		parts = append(parts, "demo service")
	}
	if m.offline {
		parts = append(parts, "offline")
	}
	return m.styles.Muted.Render(" " + strings.Join(parts, " | "))
}

func (m Model) renderBanner() string {
	if m.banner == "" {
		return ""
	}
	text := m.banner + "  [Ctrl+X] Dismiss"
	if m.bannerIsErr {
		return m.styles.Banner.Render(text)
	}
	return m.styles.Info.Render(" " + text)
}

func (m Model) renderHub() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Command hub"))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("Open a page by number or letter."))
	sb.WriteString("\n\n")

	for i, item := range m.visibleHubItems() {
		key := m.styles.Selected.Render(fmt.Sprintf("[%d/%s]", i+1, item.key))
		label := m.styles.Bold.Render(fmt.Sprintf("%-15s", item.label))
		sb.WriteString(fmt.Sprintf("  %s %s %s\n", key, label, m.styles.Muted.Render(item.desc)))
	}
	return sb.String()
}

func (m Model) renderFooter() string {
	var parts []string
	if m.view == ViewHub {
		parts = append(parts, "1-9/letter: open")
	} else {
		parts = append(parts, "Esc: hub")
	}
	if m.banner != "" {
		parts = append(parts, "Ctrl+X: dismiss")
	}
	if m.sess.Impersonating() {
		parts = append(parts, "Ctrl+T: stop impersonating")
	}
	parts = append(parts, "Ctrl+C: quit", now().Format("15:04"))
	return m.styles.Footer.Render(strings.Join(parts, " | "))
}
