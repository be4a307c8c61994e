package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chiefkit/internal/types"
)

// RosterFilterMode narrows the roster table by hero class.
type RosterFilterMode int

const (
	RosterFilterAll RosterFilterMode = iota
	RosterFilterInfantry
	RosterFilterLancer
	RosterFilterMarksman
)

type rosterPageMode int

const (
	rosterModeList rosterPageMode = iota
	rosterModeForm
	rosterModeConfirmDelete
)

// rosterRow is one rendered line: a roster entry joined with its
// catalog hero.
type rosterRow struct {
	hero  types.Hero
	entry types.RosterEntry
}

// RosterPageModel is the player's hero progression tracker. Catalog
// and entries arrive through UpdateContent; edits leave as
// SaveRosterEntryMsg / DeleteRosterEntryMsg.
type RosterPageModel struct {
	width  int
	height int
	table  table.Model

	heroes  []types.Hero
	gear    []types.GearItem
	entries []types.RosterEntry
	rows    []rosterRow
	offline bool

	filterInput   textinput.Model
	filterMode    RosterFilterMode
	filterFocused bool

	mode       rosterPageMode
	addable    []types.Hero
	formHero   int
	formHeroID string
	formEntry  types.RosterEntry
	levelInput textinput.Model
	starsInput textinput.Model
	slots      []string
	slotPicks  []int
	formFocus  int
	formErr    string

	styles Styles
}

func NewRosterPageModel(styles Styles) RosterPageModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Hero", Width: 18},
			{Title: "Class", Width: 10},
			{Title: "Rarity", Width: 10},
			{Title: "Level", Width: 6},
			{Title: "Stars", Width: 6},
			{Title: "Gear", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	fi := textinput.New()
	fi.Placeholder = "Filter by hero name..."
	fi.CharLimit = 50
	fi.Width = 36

	level := textinput.New()
	level.Placeholder = "1-80"
	level.CharLimit = 3
	level.Width = 6

	stars := textinput.New()
	stars.Placeholder = "0-5"
	stars.CharLimit = 1
	stars.Width = 6

	return RosterPageModel{
		table:       t,
		filterInput: fi,
		levelInput:  level,
		starsInput:  stars,
		styles:      styles,
	}
}

func (m *RosterPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetWidth(width - 4)
	if height > 10 {
		m.table.SetHeight(height - 8)
	}
}

// SetOffline marks the page as serving cached catalog data.
func (m *RosterPageModel) SetOffline(offline bool) { m.offline = offline }

func (m *RosterPageModel) UpdateContent(heroes []types.Hero, gear []types.GearItem, entries []types.RosterEntry) {
	m.heroes = heroes
	m.gear = gear
	m.entries = entries
	m.slots = gearSlots(gear)
	m.applyFilter()
}

// Selected returns the roster entry under the cursor, if any.
func (m RosterPageModel) Selected() (rosterRow, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.rows) {
		return rosterRow{}, false
	}
	return m.rows[idx], true
}

func (m RosterPageModel) Update(msg tea.Msg) (RosterPageModel, tea.Cmd) {
	switch m.mode {
	case rosterModeForm:
		return m.updateForm(msg)
	case rosterModeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m.updateList(msg)
}

func (m RosterPageModel) updateList(msg tea.Msg) (RosterPageModel, tea.Cmd) {
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
			if row, ok := m.Selected(); ok {
				m.openEditForm(row)
			}
			return m, nil
		case "a":
			if !m.filterFocused {
				m.openAddForm()
				return m, nil
			}
		case "e":
			if !m.filterFocused {
				if row, ok := m.Selected(); ok {
					m.openEditForm(row)
				}
				return m, nil
			}
		case "d":
			if !m.filterFocused {
				if _, ok := m.Selected(); ok {
					m.mode = rosterModeConfirmDelete
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

func (m RosterPageModel) updateConfirm(msg tea.Msg) (RosterPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y":
		m.mode = rosterModeList
		if row, ok := m.Selected(); ok {
			return m, emit(DeleteRosterEntryMsg{HeroID: row.entry.HeroID})
		}
	case "n", "esc":
		m.mode = rosterModeList
	}
	return m, nil
}

func (m *RosterPageModel) openAddForm() {
	m.addable = m.unrosteredHeroes()
	if len(m.addable) == 0 {
		return
	}
	m.mode = rosterModeForm
	m.formHero = 0
	m.formHeroID = ""
	m.formEntry = types.RosterEntry{}
	m.levelInput.SetValue("1")
	m.starsInput.SetValue("0")
	m.slotPicks = make([]int, len(m.slots))
	m.formFocus = 0
	m.formErr = ""
	m.levelInput.Blur()
	m.starsInput.Blur()
}

func (m *RosterPageModel) openEditForm(row rosterRow) {
	m.mode = rosterModeForm
	m.addable = nil
	m.formHeroID = row.entry.HeroID
	m.formEntry = row.entry
	m.levelInput.SetValue(strconv.Itoa(row.entry.Level))
	m.starsInput.SetValue(strconv.Itoa(row.entry.Stars))
	m.slotPicks = make([]int, len(m.slots))
	for i, slot := range m.slots {
		if sel, ok := row.entry.Gear[slot]; ok {
			options := m.slotOptions(slot)
			for j, item := range options {
				if item.ID == sel.ItemID {
					m.slotPicks[i] = j + 1
					break
				}
			}
		}
	}
	m.formFocus = 1
	m.formErr = ""
	m.levelInput.Focus()
	m.starsInput.Blur()
}

func (m RosterPageModel) updateForm(msg tea.Msg) (RosterPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	fields := m.formFieldCount()
	switch key.String() {
	case "esc":
		m.mode = rosterModeList
		m.levelInput.Blur()
		m.starsInput.Blur()
		return m, nil
	case "tab", "down":
		m.setFormFocus(m.nextFormField(m.formFocus, 1, fields))
		return m, nil
	case "shift+tab", "up":
		m.setFormFocus(m.nextFormField(m.formFocus, -1, fields))
		return m, nil
	case "left", "right":
		delta := 1
		if key.String() == "left" {
			delta = -1
		}
		switch {
		case m.formFocus == 0 && m.adding():
			m.formHero = wrap(m.formHero+delta, len(m.addable))
			return m, nil
		case m.formFocus >= 3:
			slot := m.formFocus - 3
			count := len(m.slotOptions(m.slots[slot])) + 1
			m.slotPicks[slot] = wrap(m.slotPicks[slot]+delta, count)
			return m, nil
		}
		// Level and stars inputs keep arrows for cursor movement.
	case "enter":
		return m.submitForm()
	}

	var cmd tea.Cmd
	switch m.formFocus {
	case 1:
		m.levelInput, cmd = m.levelInput.Update(msg)
	case 2:
		m.starsInput, cmd = m.starsInput.Update(msg)
	}
	return m, cmd
}

// Form field layout: 0 hero picker (add only), 1 level, 2 stars,
// 3..N gear slots.
func (m RosterPageModel) formFieldCount() int { return 3 + len(m.slots) }

func (m RosterPageModel) adding() bool { return m.formHeroID == "" }

func (m RosterPageModel) nextFormField(current, delta, count int) int {
	next := wrap(current+delta, count)
	if next == 0 && !m.adding() {
		next = wrap(next+delta, count)
	}
	return next
}

func (m *RosterPageModel) setFormFocus(idx int) {
	m.formFocus = idx
	m.levelInput.Blur()
	m.starsInput.Blur()
	switch idx {
	case 1:
		m.levelInput.Focus()
	case 2:
		m.starsInput.Focus()
	}
}

func (m RosterPageModel) submitForm() (RosterPageModel, tea.Cmd) {
	level, err := strconv.Atoi(strings.TrimSpace(m.levelInput.Value()))
	if err != nil || level < 1 || level > 80 {
		m.formErr = "level must be between 1 and 80"
		return m, nil
	}
	stars, err := strconv.Atoi(strings.TrimSpace(m.starsInput.Value()))
	if err != nil || stars < 0 || stars > 5 {
		m.formErr = "stars must be between 0 and 5"
		return m, nil
	}

	heroID := m.formHeroID
	if m.adding() {
		if len(m.addable) == 0 {
			m.mode = rosterModeList
			return m, nil
		}
		heroID = m.addable[m.formHero].ID
	}

	gearMap := make(map[string]types.GearSelection)
	for i, slot := range m.slots {
		if m.slotPicks[i] == 0 {
			continue
		}
		item := m.slotOptions(slot)[m.slotPicks[i]-1]
		gearMap[slot] = types.GearSelection{ItemID: item.ID, Tier: item.Tier}
	}
	if len(gearMap) == 0 {
		gearMap = nil
	}

	entry := types.RosterEntry{
		ID:     m.formEntry.ID,
		HeroID: heroID,
		Level:  level,
		Stars:  stars,
		Gear:   gearMap,
	}
	m.mode = rosterModeList
	m.formErr = ""
	m.levelInput.Blur()
	m.starsInput.Blur()
	return m, emit(SaveRosterEntryMsg{Entry: entry})
}

func (m *RosterPageModel) applyFilter() {
	filterText := strings.ToLower(m.filterInput.Value())
	heroByID := make(map[string]types.Hero, len(m.heroes))
	for _, h := range m.heroes {
		heroByID[h.ID] = h
	}

	m.rows = m.rows[:0]
	for _, entry := range m.entries {
		hero, ok := heroByID[entry.HeroID]
		if !ok {
			continue
		}
		switch m.filterMode {
		case RosterFilterInfantry:
			if hero.Class != "infantry" {
				continue
			}
		case RosterFilterLancer:
			if hero.Class != "lancer" {
				continue
			}
		case RosterFilterMarksman:
			if hero.Class != "marksman" {
				continue
			}
		}
		if filterText != "" && !strings.Contains(strings.ToLower(hero.Name), filterText) {
			continue
		}
		m.rows = append(m.rows, rosterRow{hero: hero, entry: entry})
	}

	rows := make([]table.Row, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, table.Row{
			row.hero.Name,
			row.hero.Class,
			row.hero.Rarity,
			strconv.Itoa(row.entry.Level),
			strconv.Itoa(row.entry.Stars),
			fmt.Sprintf("%d/%d", len(row.entry.Gear), len(m.slots)),
		})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m RosterPageModel) unrosteredHeroes() []types.Hero {
	rostered := make(map[string]bool, len(m.entries))
	for _, entry := range m.entries {
		rostered[entry.HeroID] = true
	}
	var out []types.Hero
	for _, hero := range m.heroes {
		if !rostered[hero.ID] {
			out = append(out, hero)
		}
	}
	return out
}

func (m RosterPageModel) slotOptions(slot string) []types.GearItem {
	var out []types.GearItem
	for _, item := range m.gear {
		if item.Slot == slot {
			out = append(out, item)
		}
	}
	return out
}

// AtRest reports whether the page is in plain list mode with nothing
// focused, so Esc can leave it.
func (m RosterPageModel) AtRest() bool {
	return m.mode == rosterModeList && !m.filterFocused
}

func (m RosterPageModel) View() string {
	switch m.mode {
	case rosterModeForm:
		return m.viewForm()
	case rosterModeConfirmDelete:
		return m.viewConfirm()
	}
	return m.viewList()
}

func (m RosterPageModel) viewList() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Roster"))
	sb.WriteString("\n")
	if m.offline {
		sb.WriteString(m.styles.Banner.Render("Offline: showing cached catalog"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.renderFilterBar())
	sb.WriteString("\n\n")
	if len(m.entries) == 0 {
		sb.WriteString(m.styles.Muted.Render("No heroes tracked yet. Press [a] to add one."))
	} else {
		sb.WriteString(m.styles.Content.Render(m.table.View()))
	}
	if len(m.rows) != len(m.entries) {
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("\nShowing %d of %d heroes", len(m.rows), len(m.entries))))
	}
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("[a] Add  [e] Edit  [d] Remove  [r] Refresh"))
	return sb.String()
}

func (m RosterPageModel) renderFilterBar() string {
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
		mode  RosterFilterMode
		label string
	}{
		{RosterFilterAll, "All"},
		{RosterFilterInfantry, "Infantry"},
		{RosterFilterLancer, "Lancer"},
		{RosterFilterMarksman, "Marksman"},
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
	sb.WriteString(m.styles.Muted.Render("[/] Filter  [Tab] Class"))
	return sb.String()
}

func (m RosterPageModel) viewForm() string {
	var sb strings.Builder
	if m.adding() {
		sb.WriteString(m.styles.Title.Render("Add hero"))
	} else {
		sb.WriteString(m.styles.Title.Render("Edit hero"))
	}
	sb.WriteString("\n\n")

	heroName := ""
	if m.adding() {
		if len(m.addable) > 0 {
			heroName = fmt.Sprintf("< %s >", m.addable[m.formHero].Name)
		}
		sb.WriteString(m.formLine(0, "Hero", heroName))
	} else {
		for _, hero := range m.heroes {
			if hero.ID == m.formHeroID {
				heroName = hero.Name
				break
			}
		}
		sb.WriteString(m.styles.FormLabel.Render("Hero") + m.styles.Bold.Render(heroName) + "\n")
	}
	sb.WriteString(m.formLine(1, "Level", m.levelInput.View()))
	sb.WriteString(m.formLine(2, "Stars", m.starsInput.View()))

	for i, slot := range m.slots {
		value := "none"
		if m.slotPicks[i] > 0 {
			item := m.slotOptions(slot)[m.slotPicks[i]-1]
			value = fmt.Sprintf("%s (%s)", item.Name, item.Tier)
		}
		sb.WriteString(m.formLine(3+i, titleWord(slot), "< "+value+" >"))
	}

	if m.formErr != "" {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Error.Render(m.formErr))
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("[Tab] Next field  [←/→] Change  [Enter] Save  [Esc] Cancel"))
	return sb.String()
}

func (m RosterPageModel) formLine(idx int, label, value string) string {
	rendered := m.styles.FormLabel.Render(label)
	if idx == m.formFocus {
		rendered = m.styles.FormLabel.Foreground(m.styles.Theme.Accent).Render(label)
	}
	return rendered + value + "\n"
}

func (m RosterPageModel) viewConfirm() string {
	row, ok := m.Selected()
	if !ok {
		return m.viewList()
	}
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Remove hero"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Remove %s from your roster?", m.styles.Bold.Render(row.hero.Name)))
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("[y] Remove  [n] Keep"))
	return sb.String()
}

func gearSlots(gear []types.GearItem) []string {
	seen := make(map[string]bool)
	var slots []string
	for _, item := range gear {
		if !seen[item.Slot] {
			seen[item.Slot] = true
			slots = append(slots, item.Slot)
		}
	}
	sort.Strings(slots)
	return slots
}

func wrap(idx, count int) int {
	if count <= 0 {
		return 0
	}
	idx %= count
	if idx < 0 {
		idx += count
	}
	return idx
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
