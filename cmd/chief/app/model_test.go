package app

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/cmd/chief/ui"
	"chiefkit/internal/api"
	"chiefkit/internal/config"
	"chiefkit/internal/types"
)

func testModel(t *testing.T) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.GameData.WatchDrafts = false
	cfg.Demo.Fallback = false
	m := New(cfg, ui.NewStyles(ui.ThemeByName("dark")))
	t.Cleanup(m.Shutdown)
	return m
}

func establish(t *testing.T, m Model, role types.Role) types.User {
	t.Helper()
	user := types.User{
		ID:       "u-" + string(role),
		Email:    string(role) + "@test.chiefkit.app",
		Name:     "Test " + string(role),
		Role:     role,
		Active:   true,
		AIAccess: types.AIAccessBasic,
	}
	m.sess.Establish(&types.LoginResult{Token: "tok-" + string(role), User: user})
	return user
}

// step runs one Update and re-asserts the concrete model type.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	case "ctrl+x":
		return tea.KeyMsg{Type: tea.KeyCtrlX}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestFirstWindowSizeAppliesImmediately(t *testing.T) {
	m := testModel(t)

	m, _ = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 32})
	if !m.ready {
		t.Fatal("first window size should mark the model ready")
	}
	if m.width != 100 || m.height != 32 {
		t.Fatalf("size = %dx%d, want 100x32", m.width, m.height)
	}

	// Later sizes go through the debouncer and land as layoutMsg.
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 100 {
		t.Fatalf("width = %d before the debounce settles, want 100", m.width)
	}
	m, _ = step(t, m, layoutMsg{width: 120, height: 40})
	if m.width != 120 || m.height != 40 {
		t.Fatalf("size = %dx%d after layoutMsg, want 120x40", m.width, m.height)
	}
}

func TestBootLandsOnLoginWhenSignedOut(t *testing.T) {
	m := testModel(t)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 32})

	m, _ = step(t, m, bootDoneMsg{result: &bootResult{demoMode: true}})
	if m.booting {
		t.Fatal("boot done should clear the booting flag")
	}
	if m.view != ViewLogin {
		t.Fatalf("view = %v, want ViewLogin", m.view)
	}
	if !m.demoMode {
		t.Fatal("demo flag from the boot result should stick")
	}
}

func TestBootRestoredSessionLandsOnHub(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RoleAdmin)

	m, _ = step(t, m, bootDoneMsg{result: &bootResult{}})
	if m.view != ViewHub {
		t.Fatalf("view = %v, want ViewHub for a restored session", m.view)
	}
}

func TestBootNoticesBecomeBanner(t *testing.T) {
	m := testModel(t)

	m, _ = step(t, m, bootDoneMsg{result: &bootResult{
		notices: []string{"Signed in as admin@test", "Catalog is stale"},
	}})
	if m.banner != "Signed in as admin@test; Catalog is stale" {
		t.Fatalf("banner = %q", m.banner)
	}
	if m.bannerIsErr {
		t.Fatal("boot notices are informational, not errors")
	}
}

func TestBootFailureQuitsOnAnyKey(t *testing.T) {
	m := testModel(t)

	m, _ = step(t, m, bootDoneMsg{err: errors.New("backend and local cache both unavailable")})
	if m.bootErr == nil {
		t.Fatal("boot error should be recorded")
	}
	if m.view != ViewSplash {
		t.Fatalf("view = %v, want ViewSplash", m.view)
	}

	_, cmd := step(t, m, keyMsg("q"))
	if cmd == nil {
		t.Fatal("a key on the failed splash should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("cmd produced %T, want tea.QuitMsg", cmd())
	}
}

func TestHubVisibilityByRole(t *testing.T) {
	cases := []struct {
		role types.Role
		want int
	}{
		{types.RolePlayer, 4},
		{types.RoleModerator, 5},
		{types.RoleAdmin, len(hubItems)},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			m := testModel(t)
			establish(t, m, tc.role)
			items := m.visibleHubItems()
			if len(items) != tc.want {
				t.Fatalf("%s sees %d hub items, want %d", tc.role, len(items), tc.want)
			}
		})
	}
}

func TestHubNumberKeysFollowVisiblePosition(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RolePlayer)
	m.view = ViewHub

	// For a player the first visible entry is the roster, not the
	// admin dashboard.
	m, cmd := step(t, m, keyMsg("1"))
	if m.view != ViewRoster {
		t.Fatalf("view = %v, want ViewRoster", m.view)
	}
	if cmd == nil {
		t.Fatal("opening a page should start its data load")
	}
	if m.pendingLoads != 1 {
		t.Fatalf("pendingLoads = %d, want 1", m.pendingLoads)
	}
}

func TestHubMnemonicRespectsRole(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RolePlayer)
	m.view = ViewHub

	m, cmd := step(t, m, keyMsg("u"))
	if m.view != ViewHub {
		t.Fatalf("player reached %v through a gated mnemonic", m.view)
	}
	if cmd != nil {
		t.Fatal("a gated mnemonic should not start a load")
	}

	admin := testModel(t)
	establish(t, admin, types.RoleAdmin)
	admin.view = ViewHub
	admin, _ = step(t, admin, keyMsg("u"))
	if admin.view != ViewUsers {
		t.Fatalf("view = %v, want ViewUsers", admin.view)
	}
}

func TestEscReturnsToHubWhenPageAtRest(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RolePlayer)
	m.view = ViewRoster

	m, _ = step(t, m, keyMsg("esc"))
	if m.view != ViewHub {
		t.Fatalf("view = %v, want ViewHub", m.view)
	}
}

func TestEscStaysOnPageMidEdit(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RoleAdmin)
	m.view = ViewGameData
	m.gamedata.OpenEditor(types.GameFile{Name: "heroes", Version: 3}, nil)

	m, _ = step(t, m, keyMsg("esc"))
	if m.view != ViewGameData {
		t.Fatalf("view = %v, an open editor should keep Esc for itself", m.view)
	}
}

func TestExpiredSessionDropsToLogin(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RoleAdmin)
	m.view = ViewUsers

	m, _ = step(t, m, usersLoadedMsg{err: &api.APIError{Status: 401, Message: "token expired"}})
	if m.view != ViewLogin {
		t.Fatalf("view = %v, want ViewLogin after a 401", m.view)
	}
	if m.sess.Authenticated() {
		t.Fatal("session should be cleared after a 401")
	}
}

func TestForbiddenBecomesBanner(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RoleModerator)
	m.view = ViewUsers

	m, _ = step(t, m, usersLoadedMsg{err: &api.APIError{Status: 403}})
	if m.view != ViewUsers {
		t.Fatalf("view = %v, a 403 should not navigate", m.view)
	}
	if m.banner != "Admin access is required for that." {
		t.Fatalf("banner = %q", m.banner)
	}
	if !m.bannerIsErr {
		t.Fatal("a 403 banner is an error banner")
	}
}

func TestTransportFailureBannerWhenFallbackOff(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RolePlayer)

	m, cmd := step(t, m, guidesLoadedMsg{err: errors.New("connection refused")})
	if !strings.HasPrefix(m.banner, "Backend unreachable:") {
		t.Fatalf("banner = %q", m.banner)
	}
	if cmd != nil {
		t.Fatal("with fallback off no demo swap should start")
	}
}

func TestTransportFailureStartsOneDemoSwap(t *testing.T) {
	m := testModel(t)
	m.cfg.Demo.Fallback = true
	establish(t, m, types.RolePlayer)

	m, cmd := step(t, m, guidesLoadedMsg{err: errors.New("connection refused")})
	if !m.demoSwapPending {
		t.Fatal("a transport failure with fallback on should start the swap")
	}
	if cmd == nil {
		t.Fatal("the swap command should be returned")
	}

	// A second failure while the swap is in flight must not start
	// another demo service.
	m, cmd = step(t, m, announcementsLoadedMsg{err: errors.New("connection refused")})
	if cmd != nil {
		t.Fatal("a second transport failure should not start a second swap")
	}
	if !strings.HasPrefix(m.banner, "Backend unreachable:") {
		t.Fatalf("banner = %q", m.banner)
	}
}

func TestOfflineRosterKeepsCachedCatalog(t *testing.T) {
	m := testModel(t)
	m.cfg.Demo.Fallback = true
	establish(t, m, types.RolePlayer)
	m.view = ViewRoster

	heroes := []types.Hero{{ID: "h-1", Name: "Murphy"}}
	m, cmd := step(t, m, rosterLoadedMsg{
		heroes:  heroes,
		offline: true,
		err:     errors.New("dial tcp: connection refused"),
	})
	if m.banner != "Backend unreachable. Showing the cached catalog." {
		t.Fatalf("banner = %q", m.banner)
	}
	if len(m.heroes) != 1 {
		t.Fatalf("cached heroes dropped, got %d", len(m.heroes))
	}
	if m.demoSwapPending || cmd != nil {
		t.Fatal("a recoverable offline roster must not trigger the demo swap")
	}
}

func TestCtrlXDismissesBanner(t *testing.T) {
	m := testModel(t)
	m.banner = "Backend unreachable."
	m.bannerIsErr = true

	m, _ = step(t, m, keyMsg("ctrl+x"))
	if m.banner != "" {
		t.Fatalf("banner = %q, want dismissed", m.banner)
	}
}

func TestCtrlCQuitsFromAnywhere(t *testing.T) {
	m := testModel(t)
	m.view = ViewHub

	_, cmd := step(t, m, keyMsg("ctrl+c"))
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("cmd produced %T, want tea.QuitMsg", cmd())
	}
}

func TestLoginSuccessOpensHub(t *testing.T) {
	m := testModel(t)
	m.demoMode = true // keep the token out of the user config file
	m.view = ViewLogin
	user := types.User{ID: "u-1", Email: "admin@test.chiefkit.app", Role: types.RoleAdmin, Active: true}

	m, cmd := step(t, m, loginDoneMsg{
		email:  user.Email,
		result: &types.LoginResult{Token: "tok", User: user},
	})
	if m.view != ViewHub {
		t.Fatalf("view = %v, want ViewHub", m.view)
	}
	if !m.sess.Authenticated() {
		t.Fatal("session should be established")
	}
	if cmd != nil {
		t.Fatal("demo sessions must not be persisted")
	}
}

func TestLoginFailureStaysOnLogin(t *testing.T) {
	m := testModel(t)
	m.view = ViewLogin

	m, _ = step(t, m, loginDoneMsg{
		email: "admin@test.chiefkit.app",
		err:   &api.APIError{Status: 401, Message: "bad credentials"},
	})
	if m.view != ViewLogin {
		t.Fatalf("view = %v, want ViewLogin", m.view)
	}
	if m.sess.Authenticated() {
		t.Fatal("a failed login must not establish a session")
	}
}

func TestImpersonationBannerAndReturn(t *testing.T) {
	m := testModel(t)
	admin := establish(t, m, types.RoleAdmin)
	m.view = ViewUsers

	target := types.User{ID: "u-9", Email: "chief@test.chiefkit.app", Role: types.RolePlayer, Active: true}
	m, _ = step(t, m, impersonationMsg{result: &types.LoginResult{Token: "tok-2", User: target}})
	if m.view != ViewHub {
		t.Fatalf("view = %v, want ViewHub after impersonation", m.view)
	}
	if !m.sess.Impersonating() {
		t.Fatal("session should be impersonating")
	}
	if !strings.Contains(m.banner, target.Email) {
		t.Fatalf("banner = %q, want the target's email", m.banner)
	}
	if m.sess.ActorEmail() != admin.Email {
		t.Fatalf("actor = %q, want the admin to stay the actor", m.sess.ActorEmail())
	}

	returned, err := m.sess.StopImpersonation()
	if err != nil {
		t.Fatalf("stop impersonation: %v", err)
	}
	m, _ = step(t, m, impersonationStoppedMsg{user: returned})
	if !strings.Contains(m.banner, admin.Email) {
		t.Fatalf("banner = %q, want the admin's email", m.banner)
	}
	if m.view != ViewHub {
		t.Fatalf("view = %v, want ViewHub", m.view)
	}
}

func TestConversationRatingPatchedInPlace(t *testing.T) {
	m := testModel(t)
	m.advisorHistory = []types.Conversation{
		{ID: "c-1", Question: "Where do I spend speedups?"},
		{ID: "c-2", Question: "Rally timing?"},
	}

	m, _ = step(t, m, conversationRatedMsg{id: "c-2", rating: 1})
	if m.advisorHistory[1].Rating != 1 {
		t.Fatalf("rating = %d, want 1", m.advisorHistory[1].Rating)
	}
	if m.advisorHistory[0].Rating != 0 {
		t.Fatal("the other conversation should be untouched")
	}
}

func TestBulkFeedbackReportsProgress(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RoleModerator)
	m.view = ViewInbox

	m, cmd := step(t, m, bulkFeedbackDoneMsg{updated: 3})
	if m.banner != "Marked 3 feedback items reviewed." {
		t.Fatalf("banner = %q", m.banner)
	}
	if m.bannerIsErr {
		t.Fatal("a clean bulk update is not an error")
	}
	if cmd == nil {
		t.Fatal("the inbox should reload after a bulk update")
	}

	m, _ = step(t, m, bulkFeedbackDoneMsg{updated: 1, err: errors.New("backend returned 500")})
	if !m.bannerIsErr {
		t.Fatal("a partial bulk update is an error")
	}
	if !strings.Contains(m.banner, "Marked 1 items") {
		t.Fatalf("banner = %q, want the partial count", m.banner)
	}
}

func TestOpenThreadRequiresLoadedInbox(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RoleModerator)
	m.view = ViewInbox
	m.inboxThreads = []types.Thread{{ID: "t-1", Subject: "Stuck on tile 7"}}

	m, cmd := step(t, m, ui.OpenThreadMsg{ThreadID: "t-404"})
	if cmd != nil {
		t.Fatal("an unknown thread id should not fetch")
	}
	if !strings.Contains(m.banner, "refresh the inbox") {
		t.Fatalf("banner = %q", m.banner)
	}

	_, cmd = step(t, m, ui.OpenThreadMsg{ThreadID: "t-1"})
	if cmd == nil {
		t.Fatal("a known thread should fetch its messages")
	}
}

func TestPendingLoadsBalance(t *testing.T) {
	m := testModel(t)
	establish(t, m, types.RoleAdmin)
	m.view = ViewHub

	m, _ = step(t, m, keyMsg("1")) // dashboard for an admin
	if m.pendingLoads != 1 {
		t.Fatalf("pendingLoads = %d after open, want 1", m.pendingLoads)
	}
	m, _ = step(t, m, dashboardLoadedMsg{stats: &types.DashboardStats{}})
	if m.pendingLoads != 0 {
		t.Fatalf("pendingLoads = %d after load, want 0", m.pendingLoads)
	}

	// A stray extra completion must not go negative.
	m, _ = step(t, m, dashboardLoadedMsg{stats: &types.DashboardStats{}})
	if m.pendingLoads != 0 {
		t.Fatalf("pendingLoads = %d, want 0", m.pendingLoads)
	}
}
