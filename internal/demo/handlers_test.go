package demo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chiefkit/internal/api"
	"chiefkit/internal/types"
)

// tokenBox lets tests swap the active token mid-flight, the way the
// real session layer does during impersonation.
type tokenBox struct{ token string }

func (b *tokenBox) Token() string { return b.token }

func newTestClient(t *testing.T) (*api.Client, *tokenBox) {
	t.Helper()
	srv := NewServer()
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	box := &tokenBox{}
	return api.NewClient(ts.URL, box), box
}

func loginAs(t *testing.T, client *api.Client, box *tokenBox, email, password string) types.User {
	t.Helper()
	result, err := client.Login(context.Background(), email, password)
	if err != nil {
		t.Fatalf("login as %s: %v", email, err)
	}
	box.token = result.Token
	return result.User
}

func apiCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	return apiErr.Code
}

func TestHealth(t *testing.T) {
	client, _ := newTestClient(t)
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
}

func TestLoginAndMe(t *testing.T) {
	client, box := newTestClient(t)
	user := loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)

	if !user.IsAdmin() {
		t.Errorf("demo admin should have the admin role, got %q", user.Role)
	}
	if box.token == "" {
		t.Fatal("login returned an empty token")
	}

	me, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.ID != user.ID {
		t.Errorf("me returned %s, logged in as %s", me.ID, user.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Login(context.Background(), DemoAdminEmail, "wrong")
	if !api.IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}
	if code := apiCode(t, err); code != "invalid_credentials" {
		t.Errorf("code = %q, want invalid_credentials", code)
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Login(context.Background(), "frostbit@demo.chiefkit.app", "icebound")
	if !api.IsForbidden(err) {
		t.Fatalf("expected 403 for deactivated account, got %v", err)
	}
	if code := apiCode(t, err); code != "account_disabled" {
		t.Errorf("code = %q, want account_disabled", code)
	}
}

func TestAuthRequired(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Heroes(context.Background())
	if !api.IsUnauthorized(err) {
		t.Fatalf("expected 401 without a token, got %v", err)
	}
}

func TestCatalog(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoPlayerEmail, DemoPlayerPassword)
	ctx := context.Background()

	heroes, err := client.Heroes(ctx)
	if err != nil {
		t.Fatalf("heroes: %v", err)
	}
	if len(heroes) != 8 {
		t.Errorf("hero catalog has %d entries, want 8", len(heroes))
	}

	gear, err := client.Gear(ctx)
	if err != nil {
		t.Fatalf("gear: %v", err)
	}
	if len(gear) != 7 {
		t.Errorf("gear catalog has %d entries, want 7", len(gear))
	}
	for _, item := range gear {
		if item.ID == "g-frost-helm" && item.Tier != "t2" {
			t.Errorf("frost helm tier = %q, want t2", item.Tier)
		}
	}
}

func TestRosterLifecycle(t *testing.T) {
	client, box := newTestClient(t)
	player := loginAs(t, client, box, DemoPlayerEmail, DemoPlayerPassword)
	ctx := context.Background()

	roster, err := client.Roster(ctx)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("seeded roster has %d entries, want 2", len(roster))
	}
	if roster[0].HeroID != "h-bahiti" {
		t.Errorf("roster not sorted by hero id, got %s first", roster[0].HeroID)
	}

	saved, err := client.SaveRosterEntry(ctx, types.RosterEntry{
		HeroID: "h-gina",
		Level:  20,
		Stars:  2,
		Gear:   map[string]types.GearSelection{"belt": {ItemID: "g-wolf-belt", Tier: "t1"}},
	})
	if err != nil {
		t.Fatalf("save roster entry: %v", err)
	}
	if saved.ID == "" || saved.UserID != player.ID {
		t.Errorf("saved entry not stamped: id=%q user=%q", saved.ID, saved.UserID)
	}
	if saved.UpdatedAt.IsZero() {
		t.Error("saved entry has no updated timestamp")
	}

	// Upsert keeps the entry id stable
	again, err := client.SaveRosterEntry(ctx, types.RosterEntry{HeroID: "h-gina", Level: 21, Stars: 2})
	if err != nil {
		t.Fatalf("re-save roster entry: %v", err)
	}
	if again.ID != saved.ID {
		t.Errorf("upsert changed entry id from %s to %s", saved.ID, again.ID)
	}
	if again.Level != 21 {
		t.Errorf("level = %d after re-save, want 21", again.Level)
	}

	if err := client.DeleteRosterEntry(ctx, "h-gina"); err != nil {
		t.Fatalf("delete roster entry: %v", err)
	}
	if err := client.DeleteRosterEntry(ctx, "h-gina"); !api.IsNotFound(err) {
		t.Errorf("second delete should 404, got %v", err)
	}
}

func TestSaveRosterEntryUnknownHero(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoPlayerEmail, DemoPlayerPassword)

	_, err := client.SaveRosterEntry(context.Background(), types.RosterEntry{HeroID: "h-nobody", Level: 10})
	if !api.IsNotFound(err) {
		t.Fatalf("expected 404 for unknown hero, got %v", err)
	}
}

func TestAdvisorFlow(t *testing.T) {
	client, box := newTestClient(t)
	player := loginAs(t, client, box, DemoPlayerEmail, DemoPlayerPassword)
	ctx := context.Background()

	conv, err := client.Advise(ctx, "How do I beat the level 18 bear trap?", nil)
	if err != nil {
		t.Fatalf("advise: %v", err)
	}
	if conv.ID == "" || conv.UserID != player.ID {
		t.Errorf("conversation not stamped: id=%q user=%q", conv.ID, conv.UserID)
	}
	if !strings.Contains(strings.ToLower(conv.Answer), "rally") {
		t.Errorf("bear trap question got unrelated answer: %q", conv.Answer)
	}
	if conv.Provider != "openai" {
		t.Errorf("provider = %q, want the top-priority enabled provider", conv.Provider)
	}
	if conv.Tokens <= 0 {
		t.Errorf("tokens = %d, want > 0", conv.Tokens)
	}

	history, err := client.AdvisorHistory(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) == 0 || history[0].ID != conv.ID {
		t.Fatalf("new conversation should lead the history")
	}
	for _, item := range history {
		if item.UserID != player.ID {
			t.Errorf("history leaked conversation %s owned by %s", item.ID, item.UserID)
		}
	}

	if err := client.RateConversation(ctx, conv.ID, 1); err != nil {
		t.Fatalf("rate: %v", err)
	}
	history, err = client.AdvisorHistory(ctx)
	if err != nil {
		t.Fatalf("history after rating: %v", err)
	}
	if history[0].Rating != 1 {
		t.Errorf("rating = %d, want 1", history[0].Rating)
	}
}

func TestAdvisorLockedWithoutAccess(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, "wanderer@demo.chiefkit.app", "lanterns")

	_, err := client.Advise(context.Background(), "best gear?", nil)
	if !api.IsForbidden(err) {
		t.Fatalf("expected 403 for ai_access none, got %v", err)
	}
	if code := apiCode(t, err); code != "advisor_locked" {
		t.Errorf("code = %q, want advisor_locked", code)
	}
}

func TestRateOtherUsersConversation(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoPlayerEmail, DemoPlayerPassword)

	// c-3 belongs to another player
	err := client.RateConversation(context.Background(), "c-3", 1)
	if !api.IsNotFound(err) {
		t.Fatalf("rating someone else's conversation should 404, got %v", err)
	}
}

func TestAnnouncementsFilterExpired(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoPlayerEmail, DemoPlayerPassword)

	items, err := client.Announcements(context.Background())
	if err != nil {
		t.Fatalf("announcements: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d announcements, want 2 (expired one hidden)", len(items))
	}
	if items[0].ID != "a-1" {
		t.Errorf("highest priority announcement should lead, got %s", items[0].ID)
	}
	for _, item := range items {
		if item.ID == "a-2" {
			t.Error("expired announcement a-2 should be filtered out")
		}
	}
}

func TestGuides(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoPlayerEmail, DemoPlayerPassword)
	ctx := context.Background()

	guides, err := client.Guides(ctx)
	if err != nil {
		t.Fatalf("guides: %v", err)
	}
	if len(guides) != 3 {
		t.Fatalf("got %d guides, want 3", len(guides))
	}
	if guides[0].Slug != "bear-trap" {
		t.Errorf("guides not sorted by slug, got %s first", guides[0].Slug)
	}

	guide, err := client.Guide(ctx, "furnace-progression")
	if err != nil {
		t.Fatalf("guide: %v", err)
	}
	if !strings.Contains(guide.Body, "<h2>") {
		t.Error("guide body should carry HTML for the reader to render")
	}

	if _, err := client.Guide(ctx, "no-such-guide"); !api.IsNotFound(err) {
		t.Errorf("unknown guide should 404, got %v", err)
	}
}

func TestRoleGuards(t *testing.T) {
	client, box := newTestClient(t)
	ctx := context.Background()

	loginAs(t, client, box, DemoPlayerEmail, DemoPlayerPassword)
	if _, err := client.Conversations(ctx); !api.IsForbidden(err) {
		t.Errorf("player reading admin conversations should 403, got %v", err)
	}
	if _, err := client.Users(ctx); !api.IsForbidden(err) {
		t.Errorf("player listing users should 403, got %v", err)
	}

	loginAs(t, client, box, DemoModeratorEmail, DemoModeratorPassword)
	if _, err := client.Conversations(ctx); err != nil {
		t.Errorf("moderator should read conversations, got %v", err)
	}
	if _, err := client.Feedback(ctx); err != nil {
		t.Errorf("moderator should read feedback, got %v", err)
	}
	if _, err := client.Users(ctx); !api.IsForbidden(err) {
		t.Errorf("moderator listing users should 403, got %v", err)
	}
	if _, err := client.Impersonate(ctx, "u-3"); !api.IsForbidden(err) {
		t.Errorf("moderator impersonating should 403, got %v", err)
	}
	if _, err := client.Providers(ctx); !api.IsForbidden(err) {
		t.Errorf("moderator reading providers should 403, got %v", err)
	}
}

func TestUserManagement(t *testing.T) {
	client, box := newTestClient(t)
	admin := loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)
	ctx := context.Background()

	users, err := client.Users(ctx)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(users) != 5 {
		t.Fatalf("seeded world has %d users, want 5", len(users))
	}
	if users[0].ID != "u-1" {
		t.Errorf("users not sorted oldest first, got %s", users[0].ID)
	}

	created, err := client.CreateUser(ctx, api.UserRequest{
		Email:    "newchief@demo.chiefkit.app",
		Name:     "Vera Stone",
		Role:     types.RolePlayer,
		Active:   true,
		AIAccess: types.AIAccessBasic,
		Password: "breakwater",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Error("created user missing id or timestamp")
	}

	_, err = client.CreateUser(ctx, api.UserRequest{
		Email: "NEWCHIEF@demo.chiefkit.app", Name: "Dupe", Role: types.RolePlayer,
	})
	if !api.IsConflict(err) {
		t.Fatalf("duplicate email should 409, got %v", err)
	}

	updated, err := client.UpdateUser(ctx, created.ID, api.UserRequest{
		Email:    created.Email,
		Name:     "Vera Stonebridge",
		Role:     types.RoleModerator,
		Active:   true,
		AIAccess: types.AIAccessFull,
	})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.Name != "Vera Stonebridge" || updated.Role != types.RoleModerator {
		t.Errorf("update not applied: %+v", updated)
	}

	cycled, err := client.CycleAIAccess(ctx, created.ID)
	if err != nil {
		t.Fatalf("cycle access: %v", err)
	}
	if cycled.AIAccess != types.AIAccessNone {
		t.Errorf("full should cycle to none, got %q", cycled.AIAccess)
	}

	if err := client.DeleteUser(ctx, admin.ID); !api.IsConflict(err) {
		t.Errorf("self-delete should 409, got %v", err)
	}
	if err := client.DeleteUser(ctx, created.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := client.DeleteUser(ctx, created.ID); !api.IsNotFound(err) {
		t.Errorf("second delete should 404, got %v", err)
	}

	// The new account could log in while it existed
	users, err = client.Users(ctx)
	if err != nil {
		t.Fatalf("users after delete: %v", err)
	}
	if len(users) != 5 {
		t.Errorf("user count = %d after delete, want 5", len(users))
	}
}

func TestCreatedUserCanLogIn(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)

	_, err := client.CreateUser(context.Background(), api.UserRequest{
		Email:    "scout@demo.chiefkit.app",
		Name:     "Scout",
		Role:     types.RolePlayer,
		Active:   true,
		Password: "watchtower",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	scout := loginAs(t, client, box, "scout@demo.chiefkit.app", "watchtower")
	if scout.Name != "Scout" {
		t.Errorf("logged in as %q, want Scout", scout.Name)
	}
}

func TestCurationAndExport(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)
	ctx := context.Background()

	convs, err := client.Conversations(ctx)
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(convs) != 6 {
		t.Fatalf("seeded world has %d conversations, want 6", len(convs))
	}

	conv, err := client.SetCuration(ctx, "c-2", true, true)
	if err != nil {
		t.Fatalf("set curation: %v", err)
	}
	if !conv.Curated || !conv.GoodExample {
		t.Errorf("curation flags not applied: %+v", conv)
	}

	curated, err := client.ExportCurated(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(curated) != 4 {
		t.Errorf("export has %d conversations, want 4 after curating c-2", len(curated))
	}
	found := false
	for _, item := range curated {
		if item.ID == "c-2" {
			found = true
		}
		if !item.Curated {
			t.Errorf("export leaked uncurated conversation %s", item.ID)
		}
	}
	if !found {
		t.Error("export missing newly curated c-2")
	}
}

func TestAnnouncementManagement(t *testing.T) {
	client, box := newTestClient(t)
	admin := loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)
	ctx := context.Background()

	expires := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	created, err := client.CreateAnnouncement(ctx, api.AnnouncementRequest{
		Title:     "Server merge this weekend",
		Body:      "States 80 and 81 merge Saturday.",
		Display:   types.DisplayModal,
		Priority:  7,
		Active:    true,
		ExpiresAt: &expires,
	})
	if err != nil {
		t.Fatalf("create announcement: %v", err)
	}
	if created.ID == "" || created.ExpiresAt == nil {
		t.Fatalf("created announcement missing id or expiry: %+v", created)
	}
	if created.Author != admin.Name {
		t.Errorf("author = %q, want the creating admin %q", created.Author, admin.Name)
	}

	updated, err := client.UpdateAnnouncement(ctx, created.ID, api.AnnouncementRequest{
		Title:    "Server merge postponed",
		Body:     created.Body,
		Display:  types.DisplayBanner,
		Priority: 9,
		Active:   false,
	})
	if err != nil {
		t.Fatalf("update announcement: %v", err)
	}
	if updated.Title != "Server merge postponed" || updated.Active {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.ExpiresAt != nil {
		t.Error("omitting expires_at should clear the expiry")
	}

	if err := client.DeleteAnnouncement(ctx, created.ID); err != nil {
		t.Fatalf("delete announcement: %v", err)
	}
	if _, err := client.UpdateAnnouncement(ctx, created.ID, api.AnnouncementRequest{
		Title: "x", Body: "y", Display: types.DisplayFeed,
	}); !api.IsNotFound(err) {
		t.Errorf("updating a deleted announcement should 404, got %v", err)
	}
}

func TestFeedbackTriage(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoModeratorEmail, DemoModeratorPassword)
	ctx := context.Background()

	items, err := client.Feedback(ctx)
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("seeded world has %d feedback items, want 4", len(items))
	}
	if items[0].ID != "f-1" {
		t.Errorf("feedback not sorted newest first, got %s", items[0].ID)
	}

	updated, err := client.UpdateFeedback(ctx, "f-1", types.FeedbackReviewing, "Assigned to the advisor team")
	if err != nil {
		t.Fatalf("update feedback: %v", err)
	}
	if updated.Status != types.FeedbackReviewing || updated.AdminNotes == "" {
		t.Errorf("feedback update not applied: %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Error("update should bump the updated timestamp")
	}
}

func TestErrorTriage(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoModeratorEmail, DemoModeratorPassword)
	ctx := context.Background()

	items, err := client.ErrorReports(ctx)
	if err != nil {
		t.Fatalf("errors: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("seeded world has %d error reports, want 3", len(items))
	}
	if items[0].ID != "e-1" {
		t.Errorf("errors not sorted by last seen, got %s first", items[0].ID)
	}

	updated, err := client.UpdateErrorReport(ctx, "e-1", types.ErrorInvestigating)
	if err != nil {
		t.Fatalf("update error report: %v", err)
	}
	if updated.Status != types.ErrorInvestigating {
		t.Errorf("status = %q, want investigating", updated.Status)
	}
}

func TestThreadFlow(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)
	ctx := context.Background()

	threads, err := client.Threads(ctx)
	if err != nil {
		t.Fatalf("threads: %v", err)
	}
	if len(threads) != 3 {
		t.Fatalf("seeded world has %d threads, want 3", len(threads))
	}
	if threads[0].ID != "t-1" {
		t.Errorf("threads not sorted by last message, got %s first", threads[0].ID)
	}

	messages, err := client.ThreadMessages(ctx, "t-1")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("t-1 has %d messages, want 3", len(messages))
	}

	reply, err := client.ReplyThread(ctx, "t-1", "Refund for ORD-5522 is on its way.")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.Sender != "admin" {
		t.Errorf("sender role = %q, want admin", reply.Sender)
	}

	threads, err = client.Threads(ctx)
	if err != nil {
		t.Fatalf("threads after reply: %v", err)
	}
	if threads[0].ID != "t-1" || threads[0].Unread != 0 {
		t.Errorf("reply should clear unread on t-1: %+v", threads[0])
	}

	closed, err := client.CloseThread(ctx, "t-2")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != types.ThreadClosed {
		t.Errorf("status = %q after close, want closed", closed.Status)
	}

	if _, err := client.ThreadMessages(ctx, "t-99"); !api.IsNotFound(err) {
		t.Errorf("unknown thread should 404, got %v", err)
	}
}

func TestGameDataVersioning(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)
	ctx := context.Background()

	files, err := client.GameFiles(ctx)
	if err != nil {
		t.Fatalf("game files: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("seeded world has %d game files, want 3", len(files))
	}
	if files[0].Name != "events" {
		t.Errorf("files not sorted by name, got %s first", files[0].Name)
	}
	for _, file := range files {
		if len(file.Content) != 0 {
			t.Errorf("listing should omit content, %s carries %d bytes", file.Name, len(file.Content))
		}
	}

	file, err := client.GameFile(ctx, "heroes")
	if err != nil {
		t.Fatalf("game file: %v", err)
	}
	if file.Version != 7 || len(file.Content) == 0 {
		t.Fatalf("heroes file: version=%d content=%d bytes", file.Version, len(file.Content))
	}

	newContent := json.RawMessage(`{"heroes": []}`)

	_, err = client.SaveGameFile(ctx, "heroes", newContent, 3)
	if !api.IsConflict(err) {
		t.Fatalf("stale version should 409, got %v", err)
	}
	if code := apiCode(t, err); code != "version_conflict" {
		t.Errorf("code = %q, want version_conflict", code)
	}

	saved, err := client.SaveGameFile(ctx, "heroes", newContent, file.Version)
	if err != nil {
		t.Fatalf("save game file: %v", err)
	}
	if saved.Version != file.Version+1 {
		t.Errorf("version = %d after save, want %d", saved.Version, file.Version+1)
	}
	if saved.Size != int64(len(newContent)) {
		t.Errorf("size = %d, want %d", saved.Size, len(newContent))
	}
}

func TestProviderManagement(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)
	ctx := context.Background()

	providers, err := client.Providers(ctx)
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	if len(providers) != 3 {
		t.Fatalf("seeded world has %d providers, want 3", len(providers))
	}
	if providers[0].ID != "p-openai" {
		t.Errorf("providers not sorted by priority, got %s first", providers[0].ID)
	}

	mistral := providers[2]
	mistral.Enabled = true
	mistral.KeyHint = "" // the client never writes hints

	saved, err := client.SaveProvider(ctx, mistral)
	if err != nil {
		t.Fatalf("save provider: %v", err)
	}
	if !saved.Enabled {
		t.Error("enable flag not applied")
	}
	if saved.KeyHint != "mi...77ab" {
		t.Errorf("key hint should survive saves, got %q", saved.KeyHint)
	}
}

func TestDashboardStats(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)

	stats, err := client.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if stats.Users != 5 || stats.ActiveUsers != 4 {
		t.Errorf("users=%d active=%d, want 5/4", stats.Users, stats.ActiveUsers)
	}
	if stats.Conversations != 6 || stats.Curated != 3 {
		t.Errorf("conversations=%d curated=%d, want 6/3", stats.Conversations, stats.Curated)
	}
	if stats.OpenFeedback != 2 {
		t.Errorf("open feedback = %d, want 2", stats.OpenFeedback)
	}
	if stats.OpenErrors != 2 {
		t.Errorf("open errors = %d, want 2", stats.OpenErrors)
	}
	if stats.OpenThreads != 2 {
		t.Errorf("open threads = %d, want 2", stats.OpenThreads)
	}
	if len(stats.Providers) != 2 {
		t.Errorf("dashboard shows %d providers, want the 2 enabled ones", len(stats.Providers))
	}
	if len(stats.RecentSignups) != 3 || stats.RecentSignups[0].ID != "u-4" {
		t.Errorf("recent signups should lead with the newest account")
	}
}

func TestImpersonationFlow(t *testing.T) {
	client, box := newTestClient(t)
	admin := loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)
	ctx := context.Background()

	result, err := client.Impersonate(ctx, "u-3")
	if err != nil {
		t.Fatalf("impersonate: %v", err)
	}
	if result.User.ID != "u-3" {
		t.Errorf("impersonation returned user %s, want u-3", result.User.ID)
	}
	if result.Token == box.token {
		t.Error("impersonation should mint a distinct token")
	}

	box.token = result.Token
	me, err := client.Me(ctx)
	if err != nil {
		t.Fatalf("me while impersonating: %v", err)
	}
	if me.ID != "u-3" || me.ID == admin.ID {
		t.Errorf("impersonated identity = %s, want u-3", me.ID)
	}

	// The impersonated player can stop but cannot start
	if err := client.StopImpersonation(ctx); err != nil {
		t.Errorf("stop impersonation with a player token failed: %v", err)
	}
	if _, err := client.Impersonate(ctx, "u-1"); !api.IsForbidden(err) {
		t.Errorf("player starting impersonation should 403, got %v", err)
	}
}

func TestImpersonateDeactivatedAccount(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)

	_, err := client.Impersonate(context.Background(), "u-5")
	if !api.IsConflict(err) {
		t.Fatalf("impersonating a deactivated account should 409, got %v", err)
	}
}

func TestValidationErrors(t *testing.T) {
	client, box := newTestClient(t)
	loginAs(t, client, box, DemoAdminEmail, DemoAdminPassword)
	ctx := context.Background()

	_, err := client.CreateUser(ctx, api.UserRequest{Email: "not-an-email", Name: "X", Role: types.RolePlayer})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != 400 || apiErr.Code != "validation_failed" {
		t.Errorf("got status=%d code=%q, want 400 validation_failed", apiErr.Status, apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "email") {
		t.Errorf("message should name the bad field: %q", apiErr.Message)
	}

	_, err = client.CreateAnnouncement(ctx, api.AnnouncementRequest{
		Title: "No body", Body: "", Display: types.DisplayBanner,
	})
	if code := apiCode(t, err); code != "validation_failed" {
		t.Errorf("missing body should fail validation, got %q", code)
	}
}
