// Package ui provides the page components and visual styling for the
// chief terminal client. Pages hold local UI state only; the root
// model owns routing, data loading, and the session.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Light mode
	LightBackground = lipgloss.Color("#f2f5f8")
	LightForeground = lipgloss.Color("#152233")
	LightPrimary    = lipgloss.Color("#1d5f8a")
	LightAccent     = lipgloss.Color("#e07b39")
	LightSecondary  = lipgloss.Color("#dde4ea")
	LightMuted      = lipgloss.Color("#7a8a99")
	LightBorder     = lipgloss.Color("#c9d3dc")
	LightCard       = lipgloss.Color("#ffffff")

	// Dark mode
	DarkBackground = lipgloss.Color("#0e1621")
	DarkForeground = lipgloss.Color("#e8edf2")
	DarkPrimary    = lipgloss.Color("#5fb0e0")
	DarkAccent     = lipgloss.Color("#e8915a")
	DarkSecondary  = lipgloss.Color("#1a2634")
	DarkMuted      = lipgloss.Color("#5d7287")
	DarkBorder     = lipgloss.Color("#2c3b4d")
	DarkCard       = lipgloss.Color("#16212e")

	// Semantic colors, same in both modes
	Destructive = lipgloss.Color("#e0524d")
	Success     = lipgloss.Color("#6cc070")
	Warning     = lipgloss.Color("#e5b54a")
	Info        = lipgloss.Color("#5fa8e0")
)

// Theme holds the active color scheme.
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Secondary  lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Secondary:  LightSecondary,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
		IsDark:     false,
	}
}

func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Secondary:  DarkSecondary,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// ThemeByName resolves --theme / user prefs. Anything other than
// "light" or "dark" auto-detects.
func ThemeByName(name string) Theme {
	switch strings.ToLower(name) {
	case "light":
		return LightTheme()
	case "dark":
		return DarkTheme()
	default:
		return DetectTheme()
	}
}

// DetectTheme guesses the terminal background. COLORFGBG is the only
// broadly available signal; dark wins on ambiguity since most
// terminals ship dark.
func DetectTheme() Theme {
	if os.Getenv("CHIEF_DARK_MODE") == "1" {
		return DarkTheme()
	}

	colorTerm := os.Getenv("COLORFGBG")
	if colorTerm != "" {
		parts := strings.Split(colorTerm, ";")
		if len(parts) >= 2 {
			if bgIdx, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
				if bgIdx >= 9 && bgIdx <= 15 {
					return LightTheme()
				}
				return DarkTheme()
			}
		}
	}

	return DarkTheme()
}

// Styles holds the styled building blocks shared by every page.
type Styles struct {
	Theme Theme

	// Layout
	App     lipgloss.Style
	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style

	// Text
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Components
	Card        lipgloss.Style
	Tile        lipgloss.Style
	Badge       lipgloss.Style
	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style
	FormLabel   lipgloss.Style
	FormFocus   lipgloss.Style
	Selected    lipgloss.Style
	Divider     lipgloss.Style
	Banner      lipgloss.Style
}

// NewStyles builds the style set for a theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		App: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Content: lipgloss.NewStyle().
			Padding(1, 2),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Subtitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(Info),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		Tile: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 2).
			Align(lipgloss.Center),

		Badge: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),

		ActiveTab: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			Underline(true),

		InactiveTab: lipgloss.NewStyle().
			Foreground(theme.Muted),

		FormLabel: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Width(14),

		FormFocus: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Selected: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		Banner: lipgloss.NewStyle().
			Background(Destructive).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),
	}
}

// DefaultStyles returns styles with the auto-detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// Logo returns the ASCII banner for the splash and login screens.
func Logo(s Styles) string {
	logo := `
   ___  _  _  ___  ___  ___
  / __|| || ||_ _|| __|| __|
 | (__ | __ | | | | _| | _|
  \___||_||_||___||___||_|
`
	return s.Title.Render(logo)
}

// RenderDivider draws a horizontal rule.
func (s Styles) RenderDivider(width int) string {
	if width < 1 {
		width = 1
	}
	return s.Divider.Render(strings.Repeat("─", width))
}

// StatusBadge colors a status word for the triage tables.
func (s Styles) StatusBadge(status string) string {
	var style lipgloss.Style
	switch status {
	case "new", "open":
		style = lipgloss.NewStyle().Foreground(Info)
	case "reviewing", "investigating":
		style = lipgloss.NewStyle().Foreground(Warning)
	case "resolved", "fixed", "closed":
		style = lipgloss.NewStyle().Foreground(Success)
	case "dismissed", "ignored":
		style = s.Muted
	default:
		style = s.Body
	}
	return style.Render(status)
}

// Truncate shortens a string for fixed-width table cells.
func Truncate(s string, max int) string {
	if max <= 3 {
		max = 3
	}
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
