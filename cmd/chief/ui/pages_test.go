package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/internal/store"
	"chiefkit/internal/types"
)

func keyRune(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testHeroes() []types.Hero {
	return []types.Hero{
		{ID: "h-1", Name: "Molly", Class: "infantry", Rarity: "epic"},
		{ID: "h-2", Name: "Bahiti", Class: "marksman", Rarity: "epic"},
		{ID: "h-3", Name: "Gina", Class: "lancer", Rarity: "rare"},
	}
}

func testGear() []types.GearItem {
	return []types.GearItem{
		{ID: "g-1", Name: "Frost Helm", Slot: "helmet", Rarity: "epic", Tier: "t2"},
		{ID: "g-2", Name: "Ember Axe", Slot: "weapon", Rarity: "legendary", Tier: "t3"},
	}
}

func TestDashboardPageRendersStats(t *testing.T) {
	model := NewDashboardPageModel(DefaultStyles())
	model.SetSize(100, 30)
	if !strings.Contains(model.View(), "Loading") {
		t.Fatalf("expected loading state before content arrives")
	}

	model.UpdateContent(&types.DashboardStats{
		Users:         42,
		ActiveUsers:   40,
		Conversations: 7,
		Providers: []types.ProviderHealth{
			{Name: "openai", Healthy: true, LatencyMS: 80},
			{Name: "gemini", Healthy: false, LatencyMS: 200},
		},
		RecentSignups: []types.User{
			{Name: "Ish Okafor", Email: "ish@example.com", CreatedAt: time.Now()},
		},
	})

	view := model.View()
	for _, want := range []string{"42", "openai", "gemini", "Recent signups", "Ish Okafor"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in dashboard view", want)
		}
	}
}

func TestDashboardPageRefreshKey(t *testing.T) {
	model := NewDashboardPageModel(DefaultStyles())
	model.UpdateContent(&types.DashboardStats{})

	model, cmd := model.Update(keyRune("r"))
	if cmd == nil {
		t.Fatalf("expected refresh command")
	}
	if _, ok := cmd().(RefreshRequestMsg); !ok {
		t.Fatalf("expected RefreshRequestMsg, got %T", cmd())
	}
	if !strings.Contains(model.View(), "Loading") {
		t.Errorf("expected loading state after refresh")
	}
}

func TestRosterPageClassFilterCycle(t *testing.T) {
	model := NewRosterPageModel(DefaultStyles())
	model.UpdateContent(testHeroes(), testGear(), []types.RosterEntry{
		{ID: "r-1", HeroID: "h-1", Level: 40, Stars: 3},
		{ID: "r-2", HeroID: "h-2", Level: 30, Stars: 2},
	})

	if len(model.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(model.rows))
	}

	// all -> infantry
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	if len(model.rows) != 1 || model.rows[0].hero.ID != "h-1" {
		t.Fatalf("expected only the infantry hero after one tab")
	}

	// infantry -> lancer (no lancer rostered)
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	if len(model.rows) != 0 {
		t.Fatalf("expected no rows in lancer mode, got %d", len(model.rows))
	}
}

func TestRosterPageTextFilter(t *testing.T) {
	model := NewRosterPageModel(DefaultStyles())
	model.UpdateContent(testHeroes(), testGear(), []types.RosterEntry{
		{ID: "r-1", HeroID: "h-1", Level: 40},
		{ID: "r-2", HeroID: "h-2", Level: 30},
	})

	model, _ = model.Update(keyRune("/"))
	if !model.filterFocused {
		t.Fatalf("expected filter focus after /")
	}
	for _, r := range "molly" {
		model, _ = model.Update(keyRune(string(r)))
	}
	if len(model.rows) != 1 || model.rows[0].hero.Name != "Molly" {
		t.Fatalf("expected live filtering to Molly, got %d rows", len(model.rows))
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if model.filterFocused {
		t.Fatalf("expected esc to blur the filter")
	}
	if len(model.rows) != 2 {
		t.Fatalf("expected esc to clear the filter, got %d rows", len(model.rows))
	}
}

func TestRosterPageAddFormEmitsSave(t *testing.T) {
	model := NewRosterPageModel(DefaultStyles())
	model.UpdateContent(testHeroes(), testGear(), []types.RosterEntry{
		{ID: "r-1", HeroID: "h-1", Level: 40},
	})

	model, _ = model.Update(keyRune("a"))
	if model.mode != rosterModeForm {
		t.Fatalf("expected form mode after a")
	}
	if len(model.addable) != 2 {
		t.Fatalf("expected 2 unrostered heroes, got %d", len(model.addable))
	}

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected save command")
	}
	saveMsg, ok := cmd().(SaveRosterEntryMsg)
	if !ok {
		t.Fatalf("expected SaveRosterEntryMsg, got %T", cmd())
	}
	if saveMsg.Entry.HeroID != "h-2" {
		t.Errorf("expected first unrostered hero, got %q", saveMsg.Entry.HeroID)
	}
	if saveMsg.Entry.Level != 1 || saveMsg.Entry.Stars != 0 {
		t.Errorf("expected default level/stars, got %d/%d", saveMsg.Entry.Level, saveMsg.Entry.Stars)
	}
	if model.mode != rosterModeList {
		t.Errorf("expected list mode after submit")
	}
}

func TestRosterPageLevelValidation(t *testing.T) {
	model := NewRosterPageModel(DefaultStyles())
	model.UpdateContent(testHeroes(), testGear(), []types.RosterEntry{
		{ID: "r-1", HeroID: "h-1", Level: 40},
	})

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter}) // edit selected
	if model.mode != rosterModeForm {
		t.Fatalf("expected edit form")
	}
	model.levelInput.SetValue("99")
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("expected validation to block the save")
	}
	if !strings.Contains(model.View(), "between 1 and 80") {
		t.Errorf("expected level validation message")
	}
}

func TestRosterPageDeleteConfirm(t *testing.T) {
	model := NewRosterPageModel(DefaultStyles())
	model.UpdateContent(testHeroes(), testGear(), []types.RosterEntry{
		{ID: "r-1", HeroID: "h-1", Level: 40},
	})

	model, _ = model.Update(keyRune("d"))
	if model.mode != rosterModeConfirmDelete {
		t.Fatalf("expected confirm mode after d")
	}
	if !strings.Contains(model.View(), "Molly") {
		t.Errorf("expected hero name in confirm prompt")
	}

	model, cmd := model.Update(keyRune("y"))
	if cmd == nil {
		t.Fatalf("expected delete command")
	}
	delMsg, ok := cmd().(DeleteRosterEntryMsg)
	if !ok || delMsg.HeroID != "h-1" {
		t.Fatalf("expected DeleteRosterEntryMsg for h-1, got %#v", cmd())
	}
}

func TestRosterPageOfflineBanner(t *testing.T) {
	model := NewRosterPageModel(DefaultStyles())
	model.SetOffline(true)
	if !strings.Contains(model.View(), "Offline") {
		t.Errorf("expected offline banner")
	}
}

func TestAdvisorPageAskFlow(t *testing.T) {
	model := NewAdvisorPageModel(DefaultStyles())
	model.SetSize(100, 30)

	for _, r := range "best gear?" {
		model, _ = model.Update(keyRune(string(r)))
	}
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected ask command")
	}
	askMsg, ok := cmd().(AskAdvisorMsg)
	if !ok || askMsg.Question != "best gear?" {
		t.Fatalf("expected AskAdvisorMsg with question, got %#v", cmd())
	}
	if !strings.Contains(model.View(), "Thinking") {
		t.Errorf("expected thinking indicator while busy")
	}

	model.UpdateContent([]types.Conversation{
		{ID: "c-9", Question: "best gear?", Answer: "Ember set first.", Provider: "openai", Tokens: 30, CreatedAt: time.Now()},
	})
	if strings.Contains(model.View(), "Thinking") {
		t.Errorf("expected busy cleared once history arrives")
	}
}

func TestAdvisorPageRateLatest(t *testing.T) {
	model := NewAdvisorPageModel(DefaultStyles())
	model.UpdateContent([]types.Conversation{
		{ID: "c-2", Question: "newest", Answer: "a"},
		{ID: "c-1", Question: "older", Answer: "b"},
	})

	// Rating keys only work when the input is blurred.
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model, cmd := model.Update(keyRune("+"))
	if cmd == nil {
		t.Fatalf("expected rate command")
	}
	rateMsg, ok := cmd().(RateConversationMsg)
	if !ok || rateMsg.ID != "c-2" || rateMsg.Rating != 1 {
		t.Fatalf("expected +1 rating for the newest conversation, got %#v", cmd())
	}

	model, cmd = model.Update(keyRune("0"))
	if cmd == nil {
		t.Fatalf("expected clear-rating command")
	}
	if msg := cmd().(RateConversationMsg); msg.Rating != 0 {
		t.Errorf("expected rating 0, got %d", msg.Rating)
	}
}

func TestAdvisorPageLocked(t *testing.T) {
	model := NewAdvisorPageModel(DefaultStyles())
	model.SetLocked(true)
	if !strings.Contains(model.View(), "not enabled") {
		t.Errorf("expected lock notice")
	}
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Errorf("locked page should ignore input")
	}
	_ = model
}

func TestGuidesPageReader(t *testing.T) {
	model := NewGuidesPageModel(DefaultStyles())
	model.SetSize(100, 30)
	model.UpdateContent([]types.Guide{
		{Slug: "bear-trap", Title: "Bear Trap Basics", Body: "<h2>Setup</h2><p>Hold the <strong>north</strong> wall.</p><ul><li>Rally early</li></ul>"},
		{Slug: "gear", Title: "Gear Priority", Body: "<p>Weapons first.</p>"},
	})

	view := model.View()
	if !strings.Contains(view, "Bear Trap Basics") || !strings.Contains(view, "Gear Priority") {
		t.Fatalf("expected both guide titles in list")
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !model.reading {
		t.Fatalf("expected reader mode after enter")
	}
	view = model.View()
	for _, want := range []string{"Setup", "north", "Rally early"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in rendered guide", want)
		}
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if model.reading {
		t.Errorf("expected esc to close the reader")
	}
}

func TestAnnouncementsPagePlayerHasNoEditKeys(t *testing.T) {
	model := NewAnnouncementsPageModel(DefaultStyles())
	model.SetManaging(false)
	model.UpdateContent([]types.Announcement{
		{ID: "a-1", Title: "Server fest", Body: "Double speedups all weekend.", Display: types.DisplayBanner, Active: true},
	})

	view := model.View()
	if !strings.Contains(view, "Server fest") {
		t.Fatalf("expected announcement in feed")
	}
	if strings.Contains(view, "[a] New") {
		t.Errorf("player view should not offer editing")
	}

	model, cmd := model.Update(keyRune("a"))
	if cmd != nil || model.mode != announcementsModeList {
		t.Errorf("players must not open the editor")
	}
}

func TestAnnouncementsPageFormSubmit(t *testing.T) {
	model := NewAnnouncementsPageModel(DefaultStyles())
	model.SetManaging(true)
	model.UpdateContent(nil)

	model, _ = model.Update(keyRune("a"))
	if model.mode != announcementsModeForm {
		t.Fatalf("expected form mode")
	}

	model.titleInput.SetValue("Maintenance")
	model.bodyInput.SetValue("Back at dawn.")
	model.expiryInput.SetValue("2026-09-01")
	model, cmd := model.submitForm()
	if cmd == nil {
		t.Fatalf("expected save command")
	}
	saveMsg, ok := cmd().(SaveAnnouncementMsg)
	if !ok {
		t.Fatalf("expected SaveAnnouncementMsg, got %T", cmd())
	}
	if saveMsg.Title != "Maintenance" || saveMsg.Display != types.DisplayBanner {
		t.Errorf("unexpected payload %#v", saveMsg)
	}
	if !strings.HasPrefix(saveMsg.ExpiresAt, "2026-09-01T") {
		t.Errorf("expected RFC 3339 expiry, got %q", saveMsg.ExpiresAt)
	}
}

func TestAnnouncementsPageFormValidation(t *testing.T) {
	model := NewAnnouncementsPageModel(DefaultStyles())
	model.SetManaging(true)
	model, _ = model.Update(keyRune("a"))

	model.titleInput.SetValue("Title only")
	model, cmd := model.submitForm()
	if cmd != nil {
		t.Fatalf("expected empty body to block the save")
	}
	if !strings.Contains(model.View(), "required") {
		t.Errorf("expected validation message")
	}

	model.bodyInput.SetValue("Body")
	model.expiryInput.SetValue("tomorrow")
	model, cmd = model.submitForm()
	if cmd != nil {
		t.Fatalf("expected bad expiry to block the save")
	}
	if !strings.Contains(model.View(), "2026-01-31") {
		t.Errorf("expected expiry format hint")
	}
}

func TestAnnouncementsPageManagingShowsExpired(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	model := NewAnnouncementsPageModel(DefaultStyles())
	model.SetManaging(true)
	model.UpdateContent([]types.Announcement{
		{ID: "a-2", Title: "Old event", Body: "Done.", Display: types.DisplayModal, Active: true, ExpiresAt: &past},
	})

	if !strings.Contains(model.View(), "expired") {
		t.Errorf("expected expired flag for moderators")
	}
}

func TestUsersPageRoleFilterAndImpersonate(t *testing.T) {
	model := NewUsersPageModel(DefaultStyles())
	model.SetSelf("u-1")
	model.UpdateContent([]types.User{
		{ID: "u-1", Name: "Astrid", Email: "astrid@x.io", Role: types.RoleAdmin, Active: true},
		{ID: "u-3", Name: "Marta", Email: "marta@x.io", Role: types.RolePlayer, Active: true},
	})

	if len(model.visible) != 2 {
		t.Fatalf("expected 2 visible users, got %d", len(model.visible))
	}

	// Self is protected from impersonation.
	model, cmd := model.Update(keyRune("i"))
	if cmd != nil {
		t.Fatalf("impersonating yourself should be a no-op")
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, cmd = model.Update(keyRune("i"))
	if cmd == nil {
		t.Fatalf("expected impersonate command")
	}
	impMsg, ok := cmd().(ImpersonateMsg)
	if !ok || impMsg.UserID != "u-3" {
		t.Fatalf("expected ImpersonateMsg for u-3, got %#v", cmd())
	}

	// all -> players
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	if len(model.visible) != 1 || model.visible[0].ID != "u-3" {
		t.Fatalf("expected only the player after role filter")
	}
}

func TestUsersPageCycleAccess(t *testing.T) {
	model := NewUsersPageModel(DefaultStyles())
	model.UpdateContent([]types.User{
		{ID: "u-3", Name: "Marta", Email: "marta@x.io", Role: types.RolePlayer, AIAccess: types.AIAccessNone},
	})

	model, cmd := model.Update(keyRune("c"))
	if cmd == nil {
		t.Fatalf("expected cycle command")
	}
	cycleMsg, ok := cmd().(CycleAccessMsg)
	if !ok || cycleMsg.UserID != "u-3" {
		t.Fatalf("expected CycleAccessMsg for u-3, got %#v", cmd())
	}
}

func TestUsersPageCreateRequiresPassword(t *testing.T) {
	model := NewUsersPageModel(DefaultStyles())
	model.UpdateContent(nil)

	model, _ = model.Update(keyRune("a"))
	if model.mode != usersModeForm {
		t.Fatalf("expected form mode")
	}
	model.emailInput.SetValue("new@x.io")
	model.nameInput.SetValue("New Chief")

	model, cmd := model.submitForm()
	if cmd != nil {
		t.Fatalf("expected missing password to block creation")
	}
	if !strings.Contains(model.View(), "password") {
		t.Errorf("expected password requirement message")
	}

	model.passInput.SetValue("longenough")
	model, cmd = model.submitForm()
	if cmd == nil {
		t.Fatalf("expected save command once valid")
	}
	saveMsg, ok := cmd().(SaveUserMsg)
	if !ok || saveMsg.ID != "" || saveMsg.Email != "new@x.io" {
		t.Fatalf("expected create SaveUserMsg, got %#v", cmd())
	}
}

func TestUsersPageDeleteGuardsSelf(t *testing.T) {
	model := NewUsersPageModel(DefaultStyles())
	model.SetSelf("u-1")
	model.UpdateContent([]types.User{
		{ID: "u-1", Name: "Astrid", Email: "astrid@x.io", Role: types.RoleAdmin},
	})

	model, _ = model.Update(keyRune("d"))
	if model.mode == usersModeConfirmDelete {
		t.Errorf("expected self-delete to be refused client-side")
	}
}

func TestConversationsPageCurationToggles(t *testing.T) {
	model := NewConversationsPageModel(DefaultStyles())
	model.UpdateContent([]types.Conversation{
		{ID: "c-1", UserID: "u-3", Question: "bear trap tips", Rating: 1, Curated: false},
		{ID: "c-2", UserID: "u-3", Question: "gear advice", Curated: true, GoodExample: true},
	})

	model, cmd := model.Update(keyRune("c"))
	if cmd == nil {
		t.Fatalf("expected curation command")
	}
	curMsg, ok := cmd().(SetCurationMsg)
	if !ok || curMsg.ID != "c-1" || !curMsg.Curated {
		t.Fatalf("expected curated=true for c-1, got %#v", cmd())
	}

	// Marking good on an uncurated row must also curate it.
	model, cmd = model.Update(keyRune("g"))
	goodMsg := cmd().(SetCurationMsg)
	if !goodMsg.Curated || !goodMsg.GoodExample {
		t.Errorf("good example should imply curated, got %#v", goodMsg)
	}
}

func TestConversationsPageFilterModes(t *testing.T) {
	model := NewConversationsPageModel(DefaultStyles())
	model.UpdateContent([]types.Conversation{
		{ID: "c-1", Question: "a", Curated: true},
		{ID: "c-2", Question: "b", Rating: -1},
	})

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab}) // curated
	if len(model.visible) != 1 || model.visible[0].ID != "c-1" {
		t.Fatalf("expected curated filter to keep c-1")
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab}) // good
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab}) // rated up
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab}) // rated down
	if len(model.visible) != 1 || model.visible[0].ID != "c-2" {
		t.Fatalf("expected rated-down filter to keep c-2")
	}
}

func TestConversationsPageExport(t *testing.T) {
	model := NewConversationsPageModel(DefaultStyles())
	model.UpdateContent(nil)

	model, cmd := model.Update(keyRune("x"))
	if cmd == nil {
		t.Fatalf("expected export command")
	}
	if _, ok := cmd().(ExportCuratedMsg); !ok {
		t.Fatalf("expected ExportCuratedMsg, got %T", cmd())
	}

	model.SetExportNote("Exported 3 conversations")
	if !strings.Contains(model.View(), "Exported 3 conversations") {
		t.Errorf("expected export note in view")
	}
}

func TestProvidersPageToggleAndEdit(t *testing.T) {
	model := NewProvidersPageModel(DefaultStyles())
	model.UpdateContent([]types.AIProvider{
		{ID: "p-1", Name: "openai", Model: "gpt-4o-mini", Enabled: true, Priority: 1, KeyHint: "sk-...k3Vq"},
	}, []store.UsageRow{
		{Day: "2026-08-24", Provider: "openai", Questions: 4, Tokens: 512},
	})

	view := model.View()
	if !strings.Contains(view, "sk-...k3Vq") {
		t.Errorf("expected key hint in table")
	}
	if !strings.Contains(view, "512") {
		t.Errorf("expected local usage panel")
	}

	model, cmd := model.Update(keyRune("t"))
	if cmd == nil {
		t.Fatalf("expected toggle command")
	}
	toggleMsg, ok := cmd().(SaveProviderMsg)
	if !ok || toggleMsg.Provider.Enabled {
		t.Fatalf("expected toggle to disable the provider, got %#v", cmd())
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if model.mode != providersModeForm {
		t.Fatalf("expected edit form")
	}
	model.prioInput.SetValue("2")
	model, cmd = model.submitForm()
	if cmd == nil {
		t.Fatalf("expected save command")
	}
	saveMsg := cmd().(SaveProviderMsg)
	if saveMsg.Provider.ID != "p-1" || saveMsg.Provider.Priority != 2 {
		t.Errorf("unexpected provider payload %#v", saveMsg.Provider)
	}
}
