// Package app is the root Bubble Tea model: it routes between pages,
// runs every network call as a command, and owns the session, the
// local store, and the demo service. Pages stay dumb; everything that
// touches the backend lives here.
package app

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/cmd/chief/ui"
	"chiefkit/internal/api"
	"chiefkit/internal/config"
	"chiefkit/internal/demo"
	"chiefkit/internal/logging"
	"chiefkit/internal/session"
	"chiefkit/internal/store"
	"chiefkit/internal/types"
	"chiefkit/internal/usage"
)

// ViewMode selects which page owns the screen and the keyboard.
type ViewMode int

const (
	ViewSplash ViewMode = iota
	ViewLogin
	ViewHub
	ViewDashboard
	ViewRoster
	ViewAdvisor
	ViewGuides
	ViewAnnouncements
	ViewInbox
	ViewUsers
	ViewConversations
	ViewGameData
	ViewProviders
)

// access is the role gate on a hub entry.
type access int

const (
	accessPlayer access = iota
	accessModerator
	accessAdmin
)

// hubItem is one entry on the command hub. Number keys are assigned by
// visible position; the mnemonic works as well.
type hubItem struct {
	key   string
	label string
	desc  string
	view  ViewMode
	need  access
}

var hubItems = []hubItem{
	{key: "d", label: "Dashboard", desc: "State overview and provider health", view: ViewDashboard, need: accessAdmin},
	{key: "r", label: "Roster", desc: "Your heroes, levels, and gear", view: ViewRoster, need: accessPlayer},
	{key: "a", label: "Advisor", desc: "Ask the strategy advisor", view: ViewAdvisor, need: accessPlayer},
	{key: "g", label: "Guides", desc: "Strategy guides", view: ViewGuides, need: accessPlayer},
	{key: "n", label: "Announcements", desc: "News from the operators", view: ViewAnnouncements, need: accessPlayer},
	{key: "i", label: "Inbox", desc: "Feedback, error reports, support threads", view: ViewInbox, need: accessModerator},
	{key: "u", label: "Users", desc: "Accounts, roles, advisor access", view: ViewUsers, need: accessAdmin},
	{key: "c", label: "Conversations", desc: "Advisor history curation", view: ViewConversations, need: accessAdmin},
	{key: "f", label: "Game data", desc: "Raw game file editing", view: ViewGameData, need: accessAdmin},
	{key: "p", label: "Providers", desc: "AI provider routing and budgets", view: ViewProviders, need: accessAdmin},
}

// layoutSize is a debounced window size on its way to the pages.
type layoutSize struct {
	width  int
	height int
}

// resources holds everything Shutdown must release. It lives behind a
// pointer so every copy of the model shares one sync.Once.
type resources struct {
	once    sync.Once
	store   *store.LocalStore
	demoSrv *demo.Server
	watcher *draftWatcher

	bootStatusCh chan string
	layoutCh     chan layoutSize
	draftCh      chan string
}

func (r *resources) shutdown() {
	r.once.Do(func() {
		if r.watcher != nil {
			r.watcher.Close()
		} else if r.draftCh != nil {
			close(r.draftCh)
		}
		if r.layoutCh != nil {
			close(r.layoutCh)
		}
		if r.demoSrv != nil {
			_ = r.demoSrv.Close()
		}
		if r.store != nil {
			_ = r.store.Close()
		}
		logging.CloseAll()
		logging.CloseAudit()
	})
}

// Model is the root model for the interactive client.
type Model struct {
	cfg    *config.Config
	styles ui.Styles

	client  *api.Client
	sess    *session.Session
	tracker *usage.Tracker
	res     *resources

	view     ViewMode
	booting  bool
	bootText string
	bootErr  error
	demoMode bool
	offline  bool
	ready    bool
	width    int
	height   int

	spinner      spinner.Model
	resize       *ui.ResizeDebouncer
	pendingLoads int

	banner          string
	bannerIsErr     bool
	demoSwapPending bool

	// Pages
	login         ui.LoginPageModel
	dashboard     ui.DashboardPageModel
	roster        ui.RosterPageModel
	advisor       ui.AdvisorPageModel
	guides        ui.GuidesPageModel
	announcements ui.AnnouncementsPageModel
	inbox         ui.InboxPageModel
	users         ui.UsersPageModel
	conversations ui.ConversationsPageModel
	gamedata      ui.GameDataPageModel
	providers     ui.ProvidersPageModel

	// Data the root keeps between page loads.
	heroes         []types.Hero
	gear           []types.GearItem
	rosterEntries  []types.RosterEntry
	advisorHistory []types.Conversation
	inboxThreads   []types.Thread
}

// New builds the root model. The heavy work (store, health probe,
// catalog prefetch) runs later in the boot command so the first frame
// paints immediately.
func New(cfg *config.Config, styles ui.Styles) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Info

	sess := session.New()

	res := &resources{
		bootStatusCh: make(chan string, 8),
		layoutCh:     make(chan layoutSize, 1),
		draftCh:      make(chan string, 8),
	}

	if cfg.GameData.WatchDrafts {
		if w, err := newDraftWatcher(cfg.GameData.DraftsDir, res.draftCh); err != nil {
			logging.GameDataError("Draft watcher disabled: %v", err)
		} else {
			res.watcher = w
		}
	}

	m := Model{
		cfg:     cfg,
		styles:  styles,
		sess:    sess,
		res:     res,
		view:    ViewSplash,
		booting: true,
		spinner: sp,
		resize:  ui.NewResizeDebouncer(ui.DefaultResizeDuration),

		login:         ui.NewLoginPageModel(styles),
		dashboard:     ui.NewDashboardPageModel(styles),
		roster:        ui.NewRosterPageModel(styles),
		advisor:       ui.NewAdvisorPageModel(styles),
		guides:        ui.NewGuidesPageModel(styles),
		announcements: ui.NewAnnouncementsPageModel(styles),
		inbox:         ui.NewInboxPageModel(styles),
		users:         ui.NewUsersPageModel(styles),
		conversations: ui.NewConversationsPageModel(styles),
		gamedata:      ui.NewGameDataPageModel(styles),
		providers:     ui.NewProvidersPageModel(styles),
	}
	return m
}

// Shutdown releases the store, the demo service, the draft watcher,
// and the log files. Safe to call more than once.
func (m Model) Shutdown() {
	if m.resize != nil {
		m.resize.Cancel()
	}
	if m.res != nil {
		m.res.shutdown()
	}
}

// visibleHubItems filters the hub by the active identity's role.
func (m Model) visibleHubItems() []hubItem {
	var items []hubItem
	for _, item := range hubItems {
		switch item.need {
		case accessAdmin:
			if !m.sess.IsAdmin() {
				continue
			}
		case accessModerator:
			if !m.sess.IsModerator() {
				continue
			}
		}
		items = append(items, item)
	}
	return items
}

// =============================================================================
// MESSAGES
// =============================================================================

type (
	// Boot
	bootStatusMsg string
	bootDoneMsg   struct {
		result *bootResult
		err    error
	}

	// Debounced layout delivery
	layoutMsg layoutSize

	// Draft mirror files changed on disk
	draftFileChangedMsg string
	draftSyncedMsg      struct {
		name string
		err  error
	}

	// Auth
	loginDoneMsg struct {
		email  string
		result *types.LoginResult
		err    error
	}
	impersonationMsg struct {
		result *types.LoginResult
		err    error
	}
	impersonationStoppedMsg struct {
		user *types.User
		err  error
	}

	// Page loads
	dashboardLoadedMsg struct {
		stats *types.DashboardStats
		err   error
	}
	rosterLoadedMsg struct {
		heroes  []types.Hero
		gear    []types.GearItem
		entries []types.RosterEntry
		offline bool
		err     error
	}
	advisorLoadedMsg struct {
		conversations []types.Conversation
		cached        bool
		err           error
	}
	guidesLoadedMsg struct {
		guides []types.Guide
		err    error
	}
	announcementsLoadedMsg struct {
		announcements []types.Announcement
		err           error
	}
	inboxLoadedMsg struct {
		feedback []types.FeedbackItem
		reports  []types.ErrorReport
		threads  []types.Thread
		err      error
	}
	usersLoadedMsg struct {
		users []types.User
		err   error
	}
	conversationsLoadedMsg struct {
		conversations []types.Conversation
		err           error
	}
	gameFilesLoadedMsg struct {
		files  []types.GameFile
		drafts map[string]bool
		err    error
	}
	providersLoadedMsg struct {
		providers []types.AIProvider
		usage     []store.UsageRow
		err       error
	}

	// Mutations
	rosterSavedMsg struct {
		entry *types.RosterEntry
		err   error
	}
	rosterDeletedMsg struct {
		heroID string
		err    error
	}
	advisorAnswerMsg struct {
		conversation *types.Conversation
		err          error
	}
	conversationRatedMsg struct {
		id     string
		rating int
		err    error
	}
	userSavedMsg struct {
		user *types.User
		err  error
	}
	userDeletedMsg struct {
		id  string
		err error
	}
	accessCycledMsg struct {
		user *types.User
		err  error
	}
	curationSetMsg struct {
		conversation *types.Conversation
		err          error
	}
	exportDoneMsg struct {
		path  string
		count int
		err   error
	}
	announcementSavedMsg struct {
		announcement *types.Announcement
		err          error
	}
	announcementDeletedMsg struct {
		id  string
		err error
	}
	feedbackUpdatedMsg struct {
		item *types.FeedbackItem
		err  error
	}
	bulkFeedbackDoneMsg struct {
		updated int
		err     error
	}
	errorReportUpdatedMsg struct {
		report *types.ErrorReport
		err    error
	}
	threadMessagesMsg struct {
		thread   *types.Thread
		messages []types.ThreadMessage
		err      error
	}
	threadRepliedMsg struct {
		threadID string
		err      error
	}
	threadClosedMsg struct {
		thread *types.Thread
		err    error
	}
	gameFileOpenedMsg struct {
		file  *types.GameFile
		draft *ui.DraftInfo
		err   error
	}
	gameFileSavedMsg struct {
		file *types.GameFile
		err  error
	}
	gameFileConflictMsg struct {
		name          string
		serverVersion int
	}
	draftSavedMsg struct {
		name string
		err  error
	}
	draftDiscardedMsg struct {
		name string
		err  error
	}
	providerSavedMsg struct {
		provider *types.AIProvider
		err      error
	}
)

// =============================================================================
// CHANNEL LISTENERS
// =============================================================================

// waitForBootStatus relays boot stage updates to the splash screen.
// The boot command closes the channel when it finishes.
func (m Model) waitForBootStatus() tea.Cmd {
	return func() tea.Msg {
		status, ok := <-m.res.bootStatusCh
		if !ok {
			return nil
		}
		return bootStatusMsg(status)
	}
}

// waitForLayout relays debounced window sizes from the resize
// debouncer's timer goroutine back into the update loop.
func (m Model) waitForLayout() tea.Cmd {
	return func() tea.Msg {
		size, ok := <-m.res.layoutCh
		if !ok {
			return nil
		}
		return layoutMsg(size)
	}
}

// waitForDraftEvents relays draft mirror-file changes from fsnotify.
func (m Model) waitForDraftEvents() tea.Cmd {
	return func() tea.Msg {
		name, ok := <-m.res.draftCh
		if !ok {
			return nil
		}
		return draftFileChangedMsg(name)
	}
}

// scheduleLayout pushes the newest size into the debouncer; the
// handler forwards it to the layout channel once the terminal settles.
func (m Model) scheduleLayout(width, height int) {
	ch := m.res.layoutCh
	m.resize.Resize(width, height, func(w, h int) {
		defer func() {
			// The channel closes at shutdown; a resize racing it is fine
			// to drop.
			_ = recover()
		}()
		select {
		case ch <- layoutSize{width: w, height: h}:
		default:
		}
	})
}

// now is stubbed in tests that pin announcement expiry rendering.
var now = time.Now
