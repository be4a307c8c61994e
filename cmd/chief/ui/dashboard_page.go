package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chiefkit/internal/types"
)

// DashboardPageModel renders the moderator overview: headline counts,
// provider health, and the newest signups. All data arrives through
// UpdateContent; the page itself is read-only.
type DashboardPageModel struct {
	stats   *types.DashboardStats
	loading bool
	styles  Styles
	width   int
	height  int
}

func NewDashboardPageModel(styles Styles) DashboardPageModel {
	return DashboardPageModel{loading: true, styles: styles}
}

func (m *DashboardPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *DashboardPageModel) UpdateContent(stats *types.DashboardStats) {
	m.stats = stats
	m.loading = false
}

func (m DashboardPageModel) Update(msg tea.Msg) (DashboardPageModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "r" {
		m.loading = true
		return m, emit(RefreshRequestMsg{})
	}
	return m, nil
}

// AtRest is always true; the dashboard has no inner editing state.
func (m DashboardPageModel) AtRest() bool { return true }

func (m DashboardPageModel) View() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Dashboard"))
	sb.WriteString("\n\n")

	if m.loading || m.stats == nil {
		sb.WriteString(m.styles.Muted.Render("Loading stats..."))
		return sb.String()
	}

	tiles := []struct {
		label string
		value int
	}{
		{"Users", m.stats.Users},
		{"Active", m.stats.ActiveUsers},
		{"Conversations", m.stats.Conversations},
		{"Curated", m.stats.Curated},
		{"Open feedback", m.stats.OpenFeedback},
		{"Open errors", m.stats.OpenErrors},
		{"Open threads", m.stats.OpenThreads},
	}
	rendered := make([]string, 0, len(tiles))
	for _, tile := range tiles {
		body := m.styles.Bold.Render(fmt.Sprintf("%d", tile.value)) + "\n" + m.styles.Muted.Render(tile.label)
		rendered = append(rendered, m.styles.Tile.Render(body))
	}
	perRow := m.tilesPerRow()
	for start := 0; start < len(rendered); start += perRow {
		end := start + perRow
		if end > len(rendered) {
			end = len(rendered)
		}
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered[start:end]...))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.styles.Subtitle.Render("Providers"))
	sb.WriteString("\n")
	if len(m.stats.Providers) == 0 {
		sb.WriteString(m.styles.Muted.Render("  no providers enabled"))
		sb.WriteString("\n")
	}
	for _, provider := range m.stats.Providers {
		mark := m.styles.Success.Render("●")
		if !provider.Healthy {
			mark = m.styles.Error.Render("●")
		}
		sb.WriteString(fmt.Sprintf("  %s %-12s %dms\n", mark, provider.Name, provider.LatencyMS))
	}

	sb.WriteString("\n")
	sb.WriteString(m.styles.Subtitle.Render("Recent signups"))
	sb.WriteString("\n")
	for _, user := range m.stats.RecentSignups {
		when := user.CreatedAt.Format("2006-01-02")
		sb.WriteString(fmt.Sprintf("  %-20s %-30s %s\n", Truncate(user.Name, 20), Truncate(user.Email, 30), m.styles.Muted.Render(when)))
	}

	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("[r] Refresh"))
	return sb.String()
}

func (m DashboardPageModel) tilesPerRow() int {
	if m.width <= 0 {
		return 4
	}
	per := m.width / 18
	if per < 1 {
		per = 1
	}
	if per > 7 {
		per = 7
	}
	return per
}
