package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/cmd/chief/ui"
	"chiefkit/internal/api"
	"chiefkit/internal/config"
	"chiefkit/internal/demo"
	"chiefkit/internal/logging"
	"chiefkit/internal/types"
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.spinner.Tick,
		m.waitForBootStatus(),
		m.waitForLayout(),
		performBoot(m.cfg, m.sess, m.res.bootStatusCh),
	}
	if m.res.watcher != nil {
		cmds = append(cmds, m.waitForDraftEvents())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		if !m.ready {
			m.ready = true
			m.width, m.height = msg.Width, msg.Height
			m.applyLayout(msg.Width, msg.Height)
			return m, nil
		}
		m.scheduleLayout(msg.Width, msg.Height)
		return m, nil

	case layoutMsg:
		m.width, m.height = msg.width, msg.height
		m.applyLayout(msg.width, msg.height)
		return m, m.waitForLayout()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	// ----- boot --------------------------------------------------------

	case bootStatusMsg:
		m.bootText = string(msg)
		return m, m.waitForBootStatus()

	case bootDoneMsg:
		return m.handleBootDone(msg)

	// ----- draft mirror files ------------------------------------------

	case draftFileChangedMsg:
		return m, tea.Batch(m.syncDraftCmd(string(msg)), m.waitForDraftEvents())

	case draftSyncedMsg:
		if msg.err != nil {
			logging.GameDataError("Draft sync for %s failed: %v", msg.name, msg.err)
			return m, nil
		}
		// Refresh draft markers when the browser is visible; never yank
		// an open editor out from under the user.
		if m.view == ViewGameData && m.gamedata.AtRest() {
			return m.dispatchLoad(m.loadGameFilesCmd())
		}
		return m, nil

	// ----- auth --------------------------------------------------------

	case ui.SubmitLoginMsg:
		m.login.SetBusy(true)
		return m, m.loginCmd(msg.Email, msg.Password)

	case loginDoneMsg:
		return m.handleLoginDone(msg)

	case ui.ImpersonateMsg:
		return m, m.impersonateCmd(msg.UserID)

	case impersonationMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		if err := m.sess.Impersonate(msg.result); err != nil {
			return m.showError(err.Error())
		}
		m.audit().Impersonation(msg.result.User.Email, true)
		m.banner = fmt.Sprintf("Acting as %s. Ctrl+T returns to your own account.", msg.result.User.Email)
		m.bannerIsErr = false
		m.view = ViewHub
		return m, nil

	case impersonationStoppedMsg:
		if msg.err != nil {
			return m.showError(msg.err.Error())
		}
		m.audit().Impersonation(msg.user.Email, false)
		m.banner = fmt.Sprintf("Back as %s.", msg.user.Email)
		m.bannerIsErr = false
		m.view = ViewHub
		return m, nil

	// ----- demo fallback -----------------------------------------------

	case demoFallbackMsg:
		return m.handleDemoFallback(msg)

	// ----- page loads --------------------------------------------------

	case dashboardLoadedMsg:
		m.loadFinished()
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.dashboard.UpdateContent(msg.stats)
		return m, nil

	case rosterLoadedMsg:
		m.loadFinished()
		m.heroes, m.gear = msg.heroes, msg.gear
		m.rosterEntries = msg.entries
		m.roster.SetOffline(msg.offline)
		m.roster.UpdateContent(msg.heroes, msg.gear, msg.entries)
		if msg.err != nil {
			if msg.offline {
				m.banner = "Backend unreachable. Showing the cached catalog."
				m.bannerIsErr = true
				return m, nil
			}
			return m.applyError(msg.err)
		}
		return m, nil

	case advisorLoadedMsg:
		m.loadFinished()
		if msg.err != nil && !msg.cached {
			m.advisor.SetError("History unavailable: " + msg.err.Error())
			return m, nil
		}
		m.advisorHistory = msg.conversations
		m.advisor.UpdateContent(msg.conversations)
		if msg.cached {
			m.banner = "Backend unreachable. Showing cached advisor history."
			m.bannerIsErr = true
		}
		return m, nil

	case guidesLoadedMsg:
		m.loadFinished()
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.guides.UpdateContent(msg.guides)
		return m, nil

	case announcementsLoadedMsg:
		m.loadFinished()
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.announcements.UpdateContent(msg.announcements)
		return m, nil

	case inboxLoadedMsg:
		m.loadFinished()
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.inboxThreads = msg.threads
		m.inbox.UpdateContent(msg.feedback, msg.reports, msg.threads)
		return m, nil

	case usersLoadedMsg:
		m.loadFinished()
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.users.UpdateContent(msg.users)
		return m, nil

	case conversationsLoadedMsg:
		m.loadFinished()
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.conversations.UpdateContent(msg.conversations)
		return m, nil

	case gameFilesLoadedMsg:
		m.loadFinished()
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.gamedata.UpdateContent(msg.files, msg.drafts)
		return m, nil

	case providersLoadedMsg:
		m.loadFinished()
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.providers.UpdateContent(msg.providers, msg.usage)
		return m, nil

	// ----- roster ------------------------------------------------------

	case ui.SaveRosterEntryMsg:
		return m, m.saveRosterEntryCmd(msg.Entry)

	case rosterSavedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		return m.dispatchLoad(m.loadRosterCmd())

	case ui.DeleteRosterEntryMsg:
		return m, m.deleteRosterEntryCmd(msg.HeroID)

	case rosterDeletedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		return m.dispatchLoad(m.loadRosterCmd())

	// ----- advisor -----------------------------------------------------

	case ui.AskAdvisorMsg:
		m.advisor.SetBusy(true)
		return m, m.askAdvisorCmd(msg.Question)

	case advisorAnswerMsg:
		return m.handleAdvisorAnswer(msg)

	case ui.RateConversationMsg:
		return m, m.rateConversationCmd(msg.ID, msg.Rating)

	case conversationRatedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		for i := range m.advisorHistory {
			if m.advisorHistory[i].ID == msg.id {
				m.advisorHistory[i].Rating = msg.rating
			}
		}
		m.advisor.UpdateContent(m.advisorHistory)
		return m, nil

	// ----- users -------------------------------------------------------

	case ui.SaveUserMsg:
		return m, m.saveUserCmd(msg)

	case userSavedMsg:
		if msg.err != nil {
			m.audit().ResourceChange(logging.AuditUserUpdate, "", false, msg.err.Error())
			return m.applyError(msg.err)
		}
		m.audit().ResourceChange(logging.AuditUserUpdate, msg.user.Email, true, "")
		return m.dispatchLoad(m.loadUsersCmd())

	case ui.DeleteUserMsg:
		return m, m.deleteUserCmd(msg.ID)

	case userDeletedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.audit().ResourceChange(logging.AuditUserDelete, msg.id, true, "")
		return m.dispatchLoad(m.loadUsersCmd())

	case ui.CycleAccessMsg:
		return m, m.cycleAccessCmd(msg.UserID)

	case accessCycledMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.audit().ResourceChange(logging.AuditAccessCycle, msg.user.Email, true, string(msg.user.AIAccess))
		return m.dispatchLoad(m.loadUsersCmd())

	// ----- conversations -----------------------------------------------

	case ui.SetCurationMsg:
		return m, m.setCurationCmd(msg.ID, msg.Curated, msg.GoodExample)

	case curationSetMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.audit().ResourceChange(logging.AuditCurationSet, msg.conversation.ID, true, "")
		return m.dispatchLoad(m.loadConversationsCmd())

	case ui.ExportCuratedMsg:
		m.conversations.SetExportNote("Exporting...")
		return m, m.exportCuratedCmd()

	case exportDoneMsg:
		if msg.err != nil {
			m.conversations.SetExportNote("")
			return m.applyError(msg.err)
		}
		m.conversations.SetExportNote(fmt.Sprintf("Wrote %d conversations to %s", msg.count, msg.path))
		return m, nil

	// ----- announcements -----------------------------------------------

	case ui.SaveAnnouncementMsg:
		return m, m.saveAnnouncementCmd(msg)

	case announcementSavedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.audit().ResourceChange(logging.AuditAnnouncementUpdate, msg.announcement.Title, true, "")
		return m.dispatchLoad(m.loadAnnouncementsCmd())

	case ui.DeleteAnnouncementMsg:
		return m, m.deleteAnnouncementCmd(msg.ID)

	case announcementDeletedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.audit().ResourceChange(logging.AuditAnnouncementDelete, msg.id, true, "")
		return m.dispatchLoad(m.loadAnnouncementsCmd())

	// ----- inbox -------------------------------------------------------

	case ui.UpdateFeedbackMsg:
		return m, m.updateFeedbackCmd(msg.ID, msg.Status, msg.Notes)

	case feedbackUpdatedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.audit().ResourceChange(logging.AuditFeedbackUpdate, msg.item.ID, true, string(msg.item.Status))
		return m.dispatchLoad(m.loadInboxCmd())

	case ui.BulkFeedbackMsg:
		return m, m.bulkFeedbackCmd(msg.IDs, msg.Status)

	case bulkFeedbackDoneMsg:
		if msg.err != nil {
			m.banner = fmt.Sprintf("Marked %d items before a failure: %v", msg.updated, msg.err)
			m.bannerIsErr = true
		} else {
			m.banner = fmt.Sprintf("Marked %d feedback items reviewed.", msg.updated)
			m.bannerIsErr = false
		}
		return m.dispatchLoad(m.loadInboxCmd())

	case ui.UpdateErrorReportMsg:
		return m, m.updateErrorReportCmd(msg.ID, msg.Status)

	case errorReportUpdatedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.audit().ResourceChange(logging.AuditErrorUpdate, msg.report.ID, true, string(msg.report.Status))
		return m.dispatchLoad(m.loadInboxCmd())

	case ui.OpenThreadMsg:
		for _, thread := range m.inboxThreads {
			if thread.ID == msg.ThreadID {
				return m, m.openThreadCmd(thread)
			}
		}
		return m.showError("Thread is gone; refresh the inbox.")

	case threadMessagesMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.inbox.SetThreadMessages(*msg.thread, msg.messages)
		return m, nil

	case ui.ReplyThreadMsg:
		return m, m.replyThreadCmd(msg.ThreadID, msg.Body)

	case threadRepliedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.audit().ResourceChange(logging.AuditThreadReply, msg.threadID, true, "")
		for _, thread := range m.inboxThreads {
			if thread.ID == msg.threadID {
				return m, m.openThreadCmd(thread)
			}
		}
		return m, nil

	case ui.CloseThreadMsg:
		return m, m.closeThreadCmd(msg.ThreadID)

	case threadClosedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.audit().ResourceChange(logging.AuditThreadClose, msg.thread.ID, true, "")
		return m.dispatchLoad(m.loadInboxCmd())

	// ----- game data ---------------------------------------------------

	case ui.OpenGameFileMsg:
		return m, m.openGameFileCmd(msg.Name)

	case gameFileOpenedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.gamedata.OpenEditor(*msg.file, msg.draft)
		return m, nil

	case ui.SaveDraftMsg:
		return m, m.saveDraftCmd(msg)

	case draftSavedMsg:
		if msg.err != nil {
			m.gamedata.SetStatus("Draft save failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.gamedata.SetStatus("Draft saved locally.", false)
		return m, nil

	case ui.DiscardDraftMsg:
		return m, m.discardDraftCmd(msg.Name)

	case draftDiscardedMsg:
		if msg.err != nil {
			m.gamedata.SetStatus("Draft discard failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.gamedata.SetStatus("Draft discarded.", false)
		return m, nil

	case ui.SaveGameFileMsg:
		return m, m.saveGameFileCmd(msg)

	case gameFileSavedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		m.gamedata.SetSaved(msg.file.Version)
		return m.dispatchLoad(m.loadGameFilesCmd())

	case gameFileConflictMsg:
		m.gamedata.SetConflict(msg.serverVersion)
		return m, nil

	// ----- providers ---------------------------------------------------

	case ui.SaveProviderMsg:
		return m, m.saveProviderCmd(msg.Provider)

	case providerSavedMsg:
		if msg.err != nil {
			return m.applyError(msg.err)
		}
		return m.dispatchLoad(m.loadProvidersCmd())

	// ----- misc --------------------------------------------------------

	case ui.RefreshRequestMsg:
		if cmd := m.loadPageCmd(m.view); cmd != nil {
			return m.dispatchLoad(cmd)
		}
		return m, nil
	}

	return m.updateActivePage(msg)
}

// =============================================================================
// KEY ROUTING
// =============================================================================

func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		m.Shutdown()
		return m, tea.Quit

	case "ctrl+x":
		m.banner = ""
		return m, nil

	case "ctrl+t":
		if m.sess.Impersonating() {
			return m, m.stopImpersonationCmd()
		}
		return m, nil
	}

	switch m.view {
	case ViewSplash:
		if !m.booting && m.bootErr != nil {
			m.Shutdown()
			return m, tea.Quit
		}
		return m, nil

	case ViewLogin:
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(key)
		return m, cmd

	case ViewHub:
		return m.handleHubKey(key)

	default:
		if key.String() == "esc" && m.activeAtRest() {
			m.view = ViewHub
			return m, nil
		}
		return m.updateActivePage(key)
	}
}

func (m Model) handleHubKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.visibleHubItems()
	s := key.String()

	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(items) {
		return m.openPage(items[n-1].view)
	}
	for _, item := range items {
		if s == item.key {
			return m.openPage(item.view)
		}
	}
	return m, nil
}

// activeAtRest reports whether the current page would rather keep Esc
// for itself (open form, focused filter, open reader).
func (m Model) activeAtRest() bool {
	switch m.view {
	case ViewDashboard:
		return m.dashboard.AtRest()
	case ViewRoster:
		return m.roster.AtRest()
	case ViewAdvisor:
		return m.advisor.AtRest()
	case ViewGuides:
		return m.guides.AtRest()
	case ViewAnnouncements:
		return m.announcements.AtRest()
	case ViewInbox:
		return m.inbox.AtRest()
	case ViewUsers:
		return m.users.AtRest()
	case ViewConversations:
		return m.conversations.AtRest()
	case ViewGameData:
		return m.gamedata.AtRest()
	case ViewProviders:
		return m.providers.AtRest()
	}
	return true
}

// =============================================================================
// PAGE DISPATCH
// =============================================================================

// openPage switches the view and starts that page's data load.
func (m Model) openPage(view ViewMode) (tea.Model, tea.Cmd) {
	m.view = view

	switch view {
	case ViewUsers:
		if u := m.sess.User(); u != nil {
			m.users.SetSelf(u.ID)
		}
	case ViewAnnouncements:
		m.announcements.SetManaging(m.sess.IsModerator())
	case ViewAdvisor:
		if u := m.sess.User(); u != nil {
			m.advisor.SetLocked(u.AIAccess == types.AIAccessNone)
		}
	}

	if cmd := m.loadPageCmd(view); cmd != nil {
		return m.dispatchLoad(cmd)
	}
	return m, nil
}

func (m Model) loadPageCmd(view ViewMode) tea.Cmd {
	switch view {
	case ViewDashboard:
		return m.loadDashboardCmd()
	case ViewRoster:
		return m.loadRosterCmd()
	case ViewAdvisor:
		return m.loadAdvisorCmd()
	case ViewGuides:
		return m.loadGuidesCmd()
	case ViewAnnouncements:
		return m.loadAnnouncementsCmd()
	case ViewInbox:
		return m.loadInboxCmd()
	case ViewUsers:
		return m.loadUsersCmd()
	case ViewConversations:
		return m.loadConversationsCmd()
	case ViewGameData:
		return m.loadGameFilesCmd()
	case ViewProviders:
		return m.loadProvidersCmd()
	}
	return nil
}

// dispatchLoad runs a load command and counts it for the header
// activity indicator.
func (m Model) dispatchLoad(cmd tea.Cmd) (Model, tea.Cmd) {
	m.pendingLoads++
	return m, cmd
}

func (m *Model) loadFinished() {
	if m.pendingLoads > 0 {
		m.pendingLoads--
	}
}

// updateActivePage forwards a message to whichever page owns the
// screen. Blink and other component ticks flow through here too.
func (m Model) updateActivePage(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ViewLogin:
		m.login, cmd = m.login.Update(msg)
	case ViewDashboard:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case ViewRoster:
		m.roster, cmd = m.roster.Update(msg)
	case ViewAdvisor:
		m.advisor, cmd = m.advisor.Update(msg)
	case ViewGuides:
		m.guides, cmd = m.guides.Update(msg)
	case ViewAnnouncements:
		m.announcements, cmd = m.announcements.Update(msg)
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewUsers:
		m.users, cmd = m.users.Update(msg)
	case ViewConversations:
		m.conversations, cmd = m.conversations.Update(msg)
	case ViewGameData:
		m.gamedata, cmd = m.gamedata.Update(msg)
	case ViewProviders:
		m.providers, cmd = m.providers.Update(msg)
	default:
		return m, nil
	}
	return m, cmd
}

// applyLayout fans a settled window size out to every page.
func (m *Model) applyLayout(width, height int) {
	contentW := width - 4
	contentH := height - 8
	if contentW < 40 {
		contentW = 40
	}
	if contentH < 10 {
		contentH = 10
	}

	m.login.SetSize(width, height)
	m.dashboard.SetSize(contentW, contentH)
	m.roster.SetSize(contentW, contentH)
	m.advisor.SetSize(contentW, contentH)
	m.guides.SetSize(contentW, contentH)
	m.announcements.SetSize(contentW, contentH)
	m.inbox.SetSize(contentW, contentH)
	m.users.SetSize(contentW, contentH)
	m.conversations.SetSize(contentW, contentH)
	m.gamedata.SetSize(contentW, contentH)
	m.providers.SetSize(contentW, contentH)
}

// =============================================================================
// RESULT HANDLERS
// =============================================================================

func (m Model) handleBootDone(msg bootDoneMsg) (tea.Model, tea.Cmd) {
	m.booting = false
	if msg.err != nil {
		m.bootErr = msg.err
		return m, nil
	}

	r := msg.result
	m.client = r.client
	m.tracker = r.tracker
	m.demoMode = r.demoMode
	m.offline = r.offline
	m.heroes = r.heroes
	m.gear = r.gear
	m.res.store = r.store
	m.res.demoSrv = r.demoSrv

	if len(r.notices) > 0 {
		m.banner = strings.Join(r.notices, "; ")
		m.bannerIsErr = false
	}
	if m.demoMode {
		m.login.ShowDemoHint(true)
	}
	if m.sess.Authenticated() {
		m.view = ViewHub
	} else {
		m.view = ViewLogin
	}
	return m, nil
}

func (m Model) handleLoginDone(msg loginDoneMsg) (tea.Model, tea.Cmd) {
	m.login.SetBusy(false)
	if msg.err != nil {
		m.audit().Login(msg.email, false, msg.err.Error())
		if api.IsUnauthorized(msg.err) {
			m.login.SetError("Wrong email or password.")
		} else {
			m.login.SetError(msg.err.Error())
		}
		return m, nil
	}

	m.sess.Establish(msg.result)
	m.audit().Login(msg.result.User.Email, true, "")
	m.login.Reset()
	m.view = ViewHub

	if !m.demoMode {
		return m, persistSessionCmd(msg.result.Token, msg.result.User.Email, m.client.BaseURL())
	}
	return m, nil
}

// persistSessionCmd stores the token in user prefs so the next boot
// can restore the session. Demo tokens die with the demo service and
// are never written.
func persistSessionCmd(token, email, baseURL string) tea.Cmd {
	return func() tea.Msg {
		path := config.DefaultUserConfigPath()
		userCfg, err := config.LoadUserConfig(path)
		if err != nil {
			userCfg = &config.UserConfig{}
		}
		userCfg.Token = token
		userCfg.Email = email
		userCfg.APIBaseURL = baseURL
		if err := userCfg.Save(path); err != nil {
			logging.SessionWarn("Could not store session token: %v", err)
		}
		return nil
	}
}

func (m Model) handleAdvisorAnswer(msg advisorAnswerMsg) (tea.Model, tea.Cmd) {
	m.advisor.SetBusy(false)
	if msg.err != nil {
		if api.IsForbidden(msg.err) {
			m.advisor.SetLocked(true)
			m.advisor.SetError("Advisor access is disabled for this account.")
			return m, nil
		}
		if api.IsUnauthorized(msg.err) {
			return m.applyError(msg.err)
		}
		m.advisor.SetError("The advisor did not answer: " + msg.err.Error())
		return m, nil
	}

	m.advisorHistory = append([]types.Conversation{*msg.conversation}, m.advisorHistory...)
	m.advisor.UpdateContent(m.advisorHistory)

	st := m.res.store
	history := m.advisorHistory
	persist := func() tea.Msg {
		if st != nil {
			if err := st.SaveConversations(history); err != nil {
				logging.StoreError("Conversation cache write failed: %v", err)
			}
		}
		return nil
	}
	return m, persist
}

// =============================================================================
// ERROR POLICY
// =============================================================================

// applyError turns a failed request into UI state: 401 ends the
// session, 403 and 404 turn into banners, and transport failures swap
// to the demo service when fallback is on.
func (m Model) applyError(err error) (tea.Model, tea.Cmd) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case 401:
			m.sess.Clear()
			m.login.Reset()
			m.login.SetError("Session expired. Sign in again.")
			m.view = ViewLogin
			return m, nil
		case 403:
			return m.showError("Admin access is required for that.")
		case 404:
			text := apiErr.Message
			if text == "" {
				text = "Not found."
			}
			return m.showError(text)
		default:
			return m.showError(apiErr.Error())
		}
	}

	logging.APIError("Request failed: %v", err)
	if m.cfg.Demo.Fallback && !m.demoMode && !m.demoSwapPending {
		m.demoSwapPending = true
		m.banner = "Backend unreachable. Switching to the demo service..."
		m.bannerIsErr = true
		return m, startDemoFallbackCmd(err)
	}
	return m.showError("Backend unreachable: " + err.Error())
}

func (m Model) showError(text string) (tea.Model, tea.Cmd) {
	m.banner = text
	m.bannerIsErr = true
	return m, nil
}

type demoFallbackMsg struct {
	srv     *demo.Server
	baseURL string
	err     error
}

func startDemoFallbackCmd(cause error) tea.Cmd {
	return func() tea.Msg {
		logging.Demo("Falling back to the demo service: %v", cause)
		srv := demo.NewServer()
		baseURL, err := srv.Start()
		if err != nil {
			return demoFallbackMsg{err: err}
		}
		return demoFallbackMsg{srv: srv, baseURL: baseURL}
	}
}

// handleDemoFallback swaps the client over to the freshly started demo
// service. Demo accounts are separate, so the session restarts at the
// login page.
func (m Model) handleDemoFallback(msg demoFallbackMsg) (tea.Model, tea.Cmd) {
	m.demoSwapPending = false
	if msg.err != nil {
		return m.showError("Demo service failed to start: " + msg.err.Error())
	}
	if m.demoMode {
		_ = msg.srv.Close()
		return m, nil
	}

	m.res.demoSrv = msg.srv
	m.demoMode = true
	m.client = newAPIClient(m.cfg, msg.baseURL, m.sess)
	m.sess.Clear()
	m.login.Reset()
	m.login.ShowDemoHint(true)
	m.view = ViewLogin
	m.banner = "Backend unreachable. Running against the demo service; use a demo sign-in."
	m.bannerIsErr = false
	return m, nil
}

// audit returns an audit logger scoped to the acting account, with the
// impersonated account recorded when there is one.
func (m Model) audit() *logging.AuditLogger {
	onBehalf := ""
	if m.sess.Impersonating() {
		if u := m.sess.User(); u != nil {
			onBehalf = u.Email
		}
	}
	return logging.AuditAsActor(m.sess.ActorEmail(), onBehalf)
}
