package ui

import (
	"encoding/json"

	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/internal/types"
)

// Pages never touch the network. When an interaction needs a backend
// call, the page emits one of these messages and the root model runs
// the request as a command.

type SubmitLoginMsg struct {
	Email    string
	Password string
}

type SaveRosterEntryMsg struct{ Entry types.RosterEntry }

type DeleteRosterEntryMsg struct{ HeroID string }

type AskAdvisorMsg struct{ Question string }

type RateConversationMsg struct {
	ID     string
	Rating int
}

// SaveUserMsg covers create (empty ID) and update.
type SaveUserMsg struct {
	ID       string
	Email    string
	Name     string
	Role     types.Role
	Active   bool
	AIAccess types.AIAccess
	Password string
}

type DeleteUserMsg struct{ ID string }

type ImpersonateMsg struct{ UserID string }

type CycleAccessMsg struct{ UserID string }

type SetCurationMsg struct {
	ID          string
	Curated     bool
	GoodExample bool
}

type ExportCuratedMsg struct{}

// SaveAnnouncementMsg covers create (empty ID) and update. ExpiresAt
// is RFC 3339 or empty for no expiry.
type SaveAnnouncementMsg struct {
	ID        string
	Title     string
	Body      string
	Display   types.DisplayType
	Priority  int
	Active    bool
	ExpiresAt string
}

type DeleteAnnouncementMsg struct{ ID string }

type UpdateFeedbackMsg struct {
	ID     string
	Status types.FeedbackStatus
	Notes  string
}

// BulkFeedbackMsg marks every listed item with one status.
type BulkFeedbackMsg struct {
	IDs    []string
	Status types.FeedbackStatus
}

type UpdateErrorReportMsg struct {
	ID     string
	Status types.ErrorStatus
}

type OpenThreadMsg struct{ ThreadID string }

type ReplyThreadMsg struct {
	ThreadID string
	Body     string
}

type CloseThreadMsg struct{ ThreadID string }

type OpenGameFileMsg struct{ Name string }

type SaveDraftMsg struct {
	Name        string
	Content     json.RawMessage
	BaseVersion int
}

type DiscardDraftMsg struct{ Name string }

type SaveGameFileMsg struct {
	Name        string
	Content     json.RawMessage
	BaseVersion int
}

type SaveProviderMsg struct{ Provider types.AIProvider }

// RefreshRequestMsg asks the root model to reload the current page.
type RefreshRequestMsg struct{}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
