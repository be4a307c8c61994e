package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chiefkit/internal/types"
)

// InboxTab selects which triage queue is shown.
type InboxTab int

const (
	InboxTabFeedback InboxTab = iota
	InboxTabErrors
	InboxTabThreads
)

type inboxPageMode int

const (
	inboxModeList inboxPageMode = iota
	inboxModeNotes
	inboxModeErrorDetail
	inboxModeThread
)

var (
	feedbackCycle = []types.FeedbackStatus{types.FeedbackNew, types.FeedbackReviewing, types.FeedbackResolved, types.FeedbackDismissed}
	errorCycle    = []types.ErrorStatus{types.ErrorNew, types.ErrorInvestigating, types.ErrorFixed, types.ErrorIgnored}

	feedbackFilters = []string{"all", "new", "reviewing", "resolved", "dismissed"}
	errorFilters    = []string{"all", "new", "investigating", "fixed", "ignored"}
	threadFilters   = []string{"all", "open", "closed"}
)

// InboxPageModel is the moderator triage surface: feedback, error
// reports, and support threads behind one tabbed view.
type InboxPageModel struct {
	width  int
	height int

	tab           InboxTab
	feedbackTable table.Model
	errorTable    table.Model
	threadTable   table.Model

	feedback []types.FeedbackItem
	errors   []types.ErrorReport
	threads  []types.Thread

	visibleFeedback []types.FeedbackItem
	visibleErrors   []types.ErrorReport
	visibleThreads  []types.Thread

	filterInput   textinput.Model
	filterFocused bool
	statusFilter  [3]int

	mode       inboxPageMode
	notesInput textinput.Model
	notesID    string

	detail viewport.Model

	openThread     *types.Thread
	threadMessages []types.ThreadMessage
	replyInput     textinput.Model
	replyFocused   bool

	styles Styles
}

func NewInboxPageModel(styles Styles) InboxPageModel {
	feedbackTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Status", Width: 11},
			{Title: "Category", Width: 10},
			{Title: "Message", Width: 44},
			{Title: "Notes", Width: 6},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	errorTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Status", Width: 14},
			{Title: "Source", Width: 10},
			{Title: "Message", Width: 38},
			{Title: "Count", Width: 6},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	threadTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Status", Width: 8},
			{Title: "Subject", Width: 42},
			{Title: "Unread", Width: 7},
			{Title: "Last", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	fi := textinput.New()
	fi.Placeholder = "Filter..."
	fi.CharLimit = 50
	fi.Width = 30

	notes := textinput.New()
	notes.Placeholder = "Notes for other moderators..."
	notes.CharLimit = 300
	notes.Width = 60

	reply := textinput.New()
	reply.Placeholder = "Write a reply..."
	reply.CharLimit = 500
	reply.Width = 60

	return InboxPageModel{
		feedbackTable: feedbackTable,
		errorTable:    errorTable,
		threadTable:   threadTable,
		filterInput:   fi,
		notesInput:    notes,
		replyInput:    reply,
		detail:        viewport.New(80, 14),
		styles:        styles,
	}
}

func (m *InboxPageModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	for _, t := range []*table.Model{&m.feedbackTable, &m.errorTable, &m.threadTable} {
		t.SetWidth(width - 4)
		if height > 12 {
			t.SetHeight(height - 10)
		}
	}
	m.detail.Width = width - 4
	if height > 8 {
		m.detail.Height = height - 6
	}
}

func (m *InboxPageModel) UpdateContent(feedback []types.FeedbackItem, errorReports []types.ErrorReport, threads []types.Thread) {
	m.feedback = feedback
	m.errors = errorReports
	m.threads = threads
	m.applyFilter()
}

// SetThreadMessages opens the transcript once the root model has the
// messages for the requested thread.
func (m *InboxPageModel) SetThreadMessages(thread types.Thread, messages []types.ThreadMessage) {
	m.mode = inboxModeThread
	m.openThread = &thread
	m.threadMessages = messages
	m.replyFocused = thread.Status == types.ThreadOpen
	if m.replyFocused {
		m.replyInput.Focus()
	} else {
		m.replyInput.Blur()
	}
	m.rebuildThreadView()
}

func (m InboxPageModel) Update(msg tea.Msg) (InboxPageModel, tea.Cmd) {
	switch m.mode {
	case inboxModeNotes:
		return m.updateNotes(msg)
	case inboxModeErrorDetail:
		return m.updateErrorDetail(msg)
	case inboxModeThread:
		return m.updateThread(msg)
	}
	return m.updateList(msg)
}

func (m InboxPageModel) updateList(msg tea.Msg) (InboxPageModel, tea.Cmd) {
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
			return m.openSelected()
		case "left":
			if !m.filterFocused {
				m.tab = InboxTab(wrap(int(m.tab)-1, 3))
				return m, nil
			}
		case "right":
			if !m.filterFocused {
				m.tab = InboxTab(wrap(int(m.tab)+1, 3))
				return m, nil
			}
		case "tab":
			if !m.filterFocused {
				m.statusFilter[m.tab] = wrap(m.statusFilter[m.tab]+1, len(m.filterSet()))
				m.applyFilter()
				return m, nil
			}
		case "s":
			if !m.filterFocused {
				return m.advanceStatus()
			}
		case "n":
			if !m.filterFocused && m.tab == InboxTabFeedback {
				if item, ok := m.selectedFeedback(); ok {
					m.mode = inboxModeNotes
					m.notesID = item.ID
					m.notesInput.SetValue(item.AdminNotes)
					m.notesInput.Focus()
				}
				return m, nil
			}
		case "m":
			if !m.filterFocused && m.tab == InboxTabFeedback {
				var ids []string
				for _, item := range m.visibleFeedback {
					if item.Status == types.FeedbackNew {
						ids = append(ids, item.ID)
					}
				}
				if len(ids) > 0 {
					return m, emit(BulkFeedbackMsg{IDs: ids, Status: types.FeedbackReviewing})
				}
				return m, nil
			}
		case "c":
			if !m.filterFocused && m.tab == InboxTabThreads {
				if thread, ok := m.selectedThread(); ok && thread.Status == types.ThreadOpen {
					return m, emit(CloseThreadMsg{ThreadID: thread.ID})
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
		return m, cmd
	}

	switch m.tab {
	case InboxTabFeedback:
		m.feedbackTable, cmd = m.feedbackTable.Update(msg)
	case InboxTabErrors:
		m.errorTable, cmd = m.errorTable.Update(msg)
	case InboxTabThreads:
		m.threadTable, cmd = m.threadTable.Update(msg)
	}
	return m, cmd
}

func (m InboxPageModel) openSelected() (InboxPageModel, tea.Cmd) {
	switch m.tab {
	case InboxTabFeedback:
		if item, ok := m.selectedFeedback(); ok {
			m.mode = inboxModeNotes
			m.notesID = item.ID
			m.notesInput.SetValue(item.AdminNotes)
			m.notesInput.Focus()
		}
	case InboxTabErrors:
		if report, ok := m.selectedError(); ok {
			m.mode = inboxModeErrorDetail
			var sb strings.Builder
			sb.WriteString(m.styles.Bold.Render(report.Message))
			sb.WriteString("\n")
			sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("%s · seen %d times · last %s",
				report.Source, report.Count, report.LastSeen.Format("Jan 2 15:04"))))
			sb.WriteString("\n\n")
			if report.Stack != "" {
				sb.WriteString(report.Stack)
			} else {
				sb.WriteString(m.styles.Muted.Render("no stack trace captured"))
			}
			m.detail.SetContent(sb.String())
			m.detail.GotoTop()
		}
	case InboxTabThreads:
		if thread, ok := m.selectedThread(); ok {
			return m, emit(OpenThreadMsg{ThreadID: thread.ID})
		}
	}
	return m, nil
}

func (m InboxPageModel) advanceStatus() (InboxPageModel, tea.Cmd) {
	switch m.tab {
	case InboxTabFeedback:
		if item, ok := m.selectedFeedback(); ok {
			next := nextFeedbackStatus(item.Status)
			return m, emit(UpdateFeedbackMsg{ID: item.ID, Status: next, Notes: item.AdminNotes})
		}
	case InboxTabErrors:
		if report, ok := m.selectedError(); ok {
			next := nextErrorStatus(report.Status)
			return m, emit(UpdateErrorReportMsg{ID: report.ID, Status: next})
		}
	}
	return m, nil
}

func nextFeedbackStatus(status types.FeedbackStatus) types.FeedbackStatus {
	for i, s := range feedbackCycle {
		if s == status {
			return feedbackCycle[(i+1)%len(feedbackCycle)]
		}
	}
	return types.FeedbackNew
}

func nextErrorStatus(status types.ErrorStatus) types.ErrorStatus {
	for i, s := range errorCycle {
		if s == status {
			return errorCycle[(i+1)%len(errorCycle)]
		}
	}
	return types.ErrorNew
}

func (m InboxPageModel) updateNotes(msg tea.Msg) (InboxPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.notesInput, cmd = m.notesInput.Update(msg)
		return m, cmd
	}
	switch key.String() {
	case "esc":
		m.mode = inboxModeList
		m.notesInput.Blur()
		return m, nil
	case "enter":
		m.mode = inboxModeList
		m.notesInput.Blur()
		for _, item := range m.feedback {
			if item.ID == m.notesID {
				return m, emit(UpdateFeedbackMsg{ID: item.ID, Status: item.Status, Notes: m.notesInput.Value()})
			}
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.notesInput, cmd = m.notesInput.Update(msg)
	return m, cmd
}

func (m InboxPageModel) updateErrorDetail(msg tea.Msg) (InboxPageModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "q":
			m.mode = inboxModeList
			return m, nil
		case "s":
			if report, ok := m.selectedError(); ok {
				m.mode = inboxModeList
				return m, emit(UpdateErrorReportMsg{ID: report.ID, Status: nextErrorStatus(report.Status)})
			}
		}
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m InboxPageModel) updateThread(msg tea.Msg) (InboxPageModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "esc":
		if m.replyFocused {
			m.replyFocused = false
			m.replyInput.Blur()
			return m, nil
		}
		m.mode = inboxModeList
		m.openThread = nil
		m.threadMessages = nil
		m.replyInput.SetValue("")
		return m, nil
	case "i", "/":
		if !m.replyFocused && m.openThread != nil && m.openThread.Status == types.ThreadOpen {
			m.replyFocused = true
			m.replyInput.Focus()
			return m, nil
		}
	case "enter":
		if m.replyFocused && m.openThread != nil {
			body := strings.TrimSpace(m.replyInput.Value())
			if body == "" {
				return m, nil
			}
			m.replyInput.SetValue("")
			return m, emit(ReplyThreadMsg{ThreadID: m.openThread.ID, Body: body})
		}
	case "c":
		if !m.replyFocused && m.openThread != nil && m.openThread.Status == types.ThreadOpen {
			id := m.openThread.ID
			m.mode = inboxModeList
			m.openThread = nil
			return m, emit(CloseThreadMsg{ThreadID: id})
		}
	}

	var cmd tea.Cmd
	if m.replyFocused {
		m.replyInput, cmd = m.replyInput.Update(msg)
	} else {
		m.detail, cmd = m.detail.Update(msg)
	}
	return m, cmd
}

func (m *InboxPageModel) rebuildThreadView() {
	var sb strings.Builder
	for _, message := range m.threadMessages {
		sender := message.Sender
		style := m.styles.Info
		if sender == "user" || sender == "player" {
			style = m.styles.Bold
		}
		sb.WriteString(style.Render(titleWord(sender)) + m.styles.Muted.Render("  "+message.CreatedAt.Format("Jan 2 15:04")))
		sb.WriteString("\n")
		sb.WriteString(message.Body)
		sb.WriteString("\n\n")
	}
	m.detail.SetContent(sb.String())
	m.detail.GotoBottom()
}

func (m InboxPageModel) filterSet() []string {
	switch m.tab {
	case InboxTabErrors:
		return errorFilters
	case InboxTabThreads:
		return threadFilters
	}
	return feedbackFilters
}

func (m *InboxPageModel) applyFilter() {
	text := strings.ToLower(m.filterInput.Value())

	m.visibleFeedback = m.visibleFeedback[:0]
	feedbackStatus := feedbackFilters[m.statusFilter[InboxTabFeedback]]
	for _, item := range m.feedback {
		if feedbackStatus != "all" && string(item.Status) != feedbackStatus {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(item.Message), text) &&
			!strings.Contains(strings.ToLower(item.Category), text) {
			continue
		}
		m.visibleFeedback = append(m.visibleFeedback, item)
	}
	feedbackRows := make([]table.Row, 0, len(m.visibleFeedback))
	for _, item := range m.visibleFeedback {
		notes := ""
		if item.AdminNotes != "" {
			notes = "yes"
		}
		feedbackRows = append(feedbackRows, table.Row{string(item.Status), item.Category, Truncate(item.Message, 44), notes})
	}
	m.feedbackTable.SetRows(feedbackRows)

	m.visibleErrors = m.visibleErrors[:0]
	errorStatus := errorFilters[m.statusFilter[InboxTabErrors]]
	for _, report := range m.errors {
		if errorStatus != "all" && string(report.Status) != errorStatus {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(report.Message), text) &&
			!strings.Contains(strings.ToLower(report.Source), text) {
			continue
		}
		m.visibleErrors = append(m.visibleErrors, report)
	}
	errorRows := make([]table.Row, 0, len(m.visibleErrors))
	for _, report := range m.visibleErrors {
		errorRows = append(errorRows, table.Row{string(report.Status), report.Source, Truncate(report.Message, 38), strconv.Itoa(report.Count)})
	}
	m.errorTable.SetRows(errorRows)

	m.visibleThreads = m.visibleThreads[:0]
	threadStatus := threadFilters[m.statusFilter[InboxTabThreads]]
	for _, thread := range m.threads {
		if threadStatus != "all" && thread.Status != threadStatus {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(thread.Subject), text) {
			continue
		}
		m.visibleThreads = append(m.visibleThreads, thread)
	}
	threadRows := make([]table.Row, 0, len(m.visibleThreads))
	for _, thread := range m.visibleThreads {
		unread := ""
		if thread.Unread > 0 {
			unread = strconv.Itoa(thread.Unread)
		}
		threadRows = append(threadRows, table.Row{thread.Status, Truncate(thread.Subject, 42), unread, thread.LastMessageAt.Format("Jan 2 15:04")})
	}
	m.threadTable.SetRows(threadRows)
}

func (m InboxPageModel) selectedFeedback() (types.FeedbackItem, bool) {
	idx := m.feedbackTable.Cursor()
	if idx < 0 || idx >= len(m.visibleFeedback) {
		return types.FeedbackItem{}, false
	}
	return m.visibleFeedback[idx], true
}

func (m InboxPageModel) selectedError() (types.ErrorReport, bool) {
	idx := m.errorTable.Cursor()
	if idx < 0 || idx >= len(m.visibleErrors) {
		return types.ErrorReport{}, false
	}
	return m.visibleErrors[idx], true
}

func (m InboxPageModel) selectedThread() (types.Thread, bool) {
	idx := m.threadTable.Cursor()
	if idx < 0 || idx >= len(m.visibleThreads) {
		return types.Thread{}, false
	}
	return m.visibleThreads[idx], true
}

// AtRest reports whether the triage tables are showing with nothing
// focused, so Esc can leave the page.
func (m InboxPageModel) AtRest() bool {
	return m.mode == inboxModeList && !m.filterFocused
}

func (m InboxPageModel) View() string {
	switch m.mode {
	case inboxModeNotes:
		return m.viewNotes()
	case inboxModeErrorDetail:
		return m.viewErrorDetail()
	case inboxModeThread:
		return m.viewThread()
	}
	return m.viewList()
}

func (m InboxPageModel) viewList() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Inbox"))
	sb.WriteString("\n\n")

	tabs := []struct {
		tab   InboxTab
		label string
	}{
		{InboxTabFeedback, fmt.Sprintf("Feedback (%d)", len(m.feedback))},
		{InboxTabErrors, fmt.Sprintf("Errors (%d)", len(m.errors))},
		{InboxTabThreads, fmt.Sprintf("Threads (%d)", len(m.threads))},
	}
	var rendered []string
	for _, t := range tabs {
		if t.tab == m.tab {
			rendered = append(rendered, m.styles.ActiveTab.Render(t.label))
		} else {
			rendered = append(rendered, m.styles.InactiveTab.Render(t.label))
		}
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Bottom, rendered...))
	sb.WriteString("\n\n")

	filterStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Border).
		Padding(0, 1)
	if m.filterFocused {
		filterStyle = filterStyle.BorderForeground(m.styles.Theme.Primary)
	}
	sb.WriteString(filterStyle.Render(m.filterInput.View()))
	sb.WriteString("  ")
	sb.WriteString(m.styles.Info.Render("status: " + m.filterSet()[m.statusFilter[m.tab]]))
	sb.WriteString("  ")
	sb.WriteString(m.styles.Muted.Render("[/] Filter  [Tab] Status  [←/→] Queue"))
	sb.WriteString("\n\n")

	switch m.tab {
	case InboxTabFeedback:
		sb.WriteString(m.styles.Content.Render(m.feedbackTable.View()))
		sb.WriteString("\n")
		sb.WriteString(m.styles.Muted.Render("[Enter] Notes  [s] Advance status  [m] Mark new as reviewing  [r] Refresh"))
	case InboxTabErrors:
		sb.WriteString(m.styles.Content.Render(m.errorTable.View()))
		sb.WriteString("\n")
		sb.WriteString(m.styles.Muted.Render("[Enter] Stack  [s] Advance status  [r] Refresh"))
	case InboxTabThreads:
		sb.WriteString(m.styles.Content.Render(m.threadTable.View()))
		sb.WriteString("\n")
		sb.WriteString(m.styles.Muted.Render("[Enter] Open  [c] Close thread  [r] Refresh"))
	}
	return sb.String()
}

func (m InboxPageModel) viewNotes() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Feedback notes"))
	sb.WriteString("\n\n")
	for _, item := range m.feedback {
		if item.ID == m.notesID {
			sb.WriteString(m.styles.Card.Render(item.Message))
			sb.WriteString("\n\n")
			break
		}
	}
	sb.WriteString(m.styles.FormLabel.Render("Notes"))
	sb.WriteString(m.notesInput.View())
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("[Enter] Save  [Esc] Cancel"))
	return sb.String()
}

func (m InboxPageModel) viewErrorDetail() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Error report"))
	sb.WriteString("\n\n")
	sb.WriteString(m.detail.View())
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("[s] Advance status  [Esc] Back"))
	return sb.String()
}

func (m InboxPageModel) viewThread() string {
	var sb strings.Builder
	subject := ""
	status := ""
	if m.openThread != nil {
		subject = m.openThread.Subject
		status = m.openThread.Status
	}
	sb.WriteString(m.styles.Title.Render(subject) + " " + m.styles.StatusBadge(status))
	sb.WriteString("\n\n")
	sb.WriteString(m.detail.View())
	sb.WriteString("\n")
	if m.openThread != nil && m.openThread.Status == types.ThreadOpen {
		sb.WriteString(m.replyInput.View())
		sb.WriteString("\n")
		if m.replyFocused {
			sb.WriteString(m.styles.Muted.Render("[Enter] Send  [Esc] Scroll"))
		} else {
			sb.WriteString(m.styles.Muted.Render("[i] Reply  [c] Close thread  [Esc] Back"))
		}
	} else {
		sb.WriteString(m.styles.Muted.Render("Thread closed.  [Esc] Back"))
	}
	return sb.String()
}
