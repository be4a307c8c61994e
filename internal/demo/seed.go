package demo

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chiefkit/internal/logging"
	"chiefkit/internal/types"
)

// Demo credentials, shown on the login page when running against the
// built-in service.
const (
	DemoAdminEmail    = "admin@demo.chiefkit.app"
	DemoAdminPassword = "frostfall"

	DemoModeratorEmail    = "mod@demo.chiefkit.app"
	DemoModeratorPassword = "palisade"

	DemoPlayerEmail    = "chief@demo.chiefkit.app"
	DemoPlayerPassword = "survivor"
)

// hashPassword uses MinCost: these hashes protect nothing and MinCost
// keeps boot instant.
func hashPassword(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		logging.DemoDebug("bcrypt hash failed: %v", err)
		return ""
	}
	return string(hash)
}

func seedDatabase() *database {
	db := newDatabase()
	now := time.Now().UTC()

	// --- Accounts ---

	users := []struct {
		user     types.User
		password string
	}{
		{types.User{ID: "u-1", Email: DemoAdminEmail, Name: "Astrid Hale", Role: types.RoleAdmin, Active: true, AIAccess: types.AIAccessFull, CreatedAt: now.AddDate(0, 0, -400)}, DemoAdminPassword},
		{types.User{ID: "u-2", Email: DemoModeratorEmail, Name: "Rook Devlin", Role: types.RoleModerator, Active: true, AIAccess: types.AIAccessBasic, CreatedAt: now.AddDate(0, 0, -250)}, DemoModeratorPassword},
		{types.User{ID: "u-3", Email: DemoPlayerEmail, Name: "Marta Voss", Role: types.RolePlayer, Active: true, AIAccess: types.AIAccessBasic, CreatedAt: now.AddDate(0, 0, -120)}, DemoPlayerPassword},
		{types.User{ID: "u-4", Email: "wanderer@demo.chiefkit.app", Name: "Ish Okafor", Role: types.RolePlayer, Active: true, AIAccess: types.AIAccessNone, CreatedAt: now.AddDate(0, 0, -30)}, "lanterns"},
		{types.User{ID: "u-5", Email: "frostbit@demo.chiefkit.app", Name: "Pell Ando", Role: types.RolePlayer, Active: false, AIAccess: types.AIAccessNone, CreatedAt: now.AddDate(0, 0, -200)}, "icebound"},
	}
	for _, entry := range users {
		db.users[entry.user.ID] = entry.user
		db.passwords[entry.user.ID] = hashPassword(entry.password)
	}

	// --- Catalog ---

	db.heroes = []types.Hero{
		{ID: "h-molly", Name: "Molly", Class: "infantry", Rarity: "epic", Generation: 1, BaseStats: map[string]int{"attack": 820, "defense": 1150, "health": 9400}},
		{ID: "h-bahiti", Name: "Bahiti", Class: "marksman", Rarity: "epic", Generation: 1, BaseStats: map[string]int{"attack": 1240, "defense": 610, "health": 5200}},
		{ID: "h-sergey", Name: "Sergey", Class: "infantry", Rarity: "rare", Generation: 1, BaseStats: map[string]int{"attack": 540, "defense": 880, "health": 7100}},
		{ID: "h-gina", Name: "Gina", Class: "lancer", Rarity: "rare", Generation: 1, BaseStats: map[string]int{"attack": 700, "defense": 720, "health": 6300}},
		{ID: "h-natalia", Name: "Natalia", Class: "infantry", Rarity: "legendary", Generation: 1, BaseStats: map[string]int{"attack": 1100, "defense": 1480, "health": 12600}},
		{ID: "h-jeronimo", Name: "Jeronimo", Class: "infantry", Rarity: "legendary", Generation: 1, BaseStats: map[string]int{"attack": 1520, "defense": 1310, "health": 11800}},
		{ID: "h-philly", Name: "Philly", Class: "lancer", Rarity: "legendary", Generation: 2, BaseStats: map[string]int{"attack": 1680, "defense": 1050, "health": 9900}},
		{ID: "h-alonso", Name: "Alonso", Class: "marksman", Rarity: "legendary", Generation: 2, BaseStats: map[string]int{"attack": 2050, "defense": 740, "health": 7600}},
	}

	db.gear = []types.GearItem{
		{ID: "g-frost-helm", Name: "Frostforged Helm", Slot: "helmet", Rarity: "epic", Tier: "t2", Set: "Frostforged"},
		{ID: "g-frost-plate", Name: "Frostforged Plate", Slot: "armor", Rarity: "epic", Tier: "t2", Set: "Frostforged"},
		{ID: "g-wolf-belt", Name: "Wolfhide Belt", Slot: "belt", Rarity: "rare", Tier: "t1", Set: "Wolfhide"},
		{ID: "g-wolf-boots", Name: "Wolfhide Boots", Slot: "boots", Rarity: "rare", Tier: "t1", Set: "Wolfhide"},
		{ID: "g-ember-axe", Name: "Emberfall Axe", Slot: "weapon", Rarity: "legendary", Tier: "t3", Set: "Emberfall"},
		{ID: "g-ember-glove", Name: "Emberfall Gauntlets", Slot: "glove", Rarity: "legendary", Tier: "t3", Set: "Emberfall"},
		{ID: "g-iron-helm", Name: "Irontooth Helm", Slot: "helmet", Rarity: "rare", Tier: "t1"},
	}

	// --- Roster for the demo player ---

	db.roster["u-3"] = map[string]types.RosterEntry{
		"h-molly": {
			ID: "r-1", UserID: "u-3", HeroID: "h-molly", Level: 48, Stars: 4,
			Gear: map[string]types.GearSelection{
				"helmet": {ItemID: "g-frost-helm", Tier: "t2"},
				"weapon": {ItemID: "g-ember-axe", Tier: "t1"},
			},
			UpdatedAt: now.AddDate(0, 0, -2),
		},
		"h-bahiti": {
			ID: "r-2", UserID: "u-3", HeroID: "h-bahiti", Level: 35, Stars: 3,
			Gear:      map[string]types.GearSelection{},
			UpdatedAt: now.AddDate(0, 0, -9),
		},
	}

	// --- Advisor history ---

	conversations := []types.Conversation{
		{ID: "c-1", UserID: "u-3", Question: "What order should I upgrade my furnace past FC2?", Answer: "Push the furnace itself first, then embassy and infirmary. Research speed matters more than troop tiers until FC4.", Provider: "openai", Model: "gpt-4o-mini", Rating: 1, Curated: true, GoodExample: true, Tokens: 412, CreatedAt: now.AddDate(0, 0, -6)},
		{ID: "c-2", UserID: "u-3", Question: "Best gear set for Molly?", Answer: "Frostforged pieces for the defense bonus. Molly tanks the front line, so survivability beats raw attack.", Provider: "openai", Model: "gpt-4o-mini", Rating: 0, Curated: false, Tokens: 238, CreatedAt: now.AddDate(0, 0, -4)},
		{ID: "c-3", UserID: "u-4", Question: "How do I beat the level 18 bear trap?", Answer: "Stack marksmen behind a thin infantry screen and time your rally for the fury window.", Provider: "openai", Model: "gpt-4o-mini", Rating: -1, Curated: true, GoodExample: false, Tokens: 377, CreatedAt: now.AddDate(0, 0, -3)},
		{ID: "c-4", UserID: "u-2", Question: "Which heroes hold arena defense best?", Answer: "Natalia and Jeronimo anchor most defense comps. Add Philly once you reach generation two.", Provider: "gemini", Model: "gemini-2.0-flash", Rating: 1, Curated: false, Tokens: 290, CreatedAt: now.AddDate(0, 0, -2)},
		{ID: "c-5", UserID: "u-3", Question: "Is it worth saving speedups for server events?", Answer: "Yes. Construction and research speedups score double during growth events, so bank them between cycles.", Provider: "gemini", Model: "gemini-2.0-flash", Rating: 0, Curated: true, GoodExample: true, Tokens: 344, CreatedAt: now.AddDate(0, 0, -1)},
		{ID: "c-6", UserID: "u-4", Question: "When should I spend hero shards?", Answer: "Hold shards until a hero is one copy from the next star. Partial spends waste pity progress.", Provider: "openai", Model: "gpt-4o-mini", Rating: 0, Curated: false, Tokens: 205, CreatedAt: now.Add(-10 * time.Hour)},
	}
	for _, conv := range conversations {
		db.conversations[conv.ID] = conv
	}

	// --- Announcements ---

	winterExpiry := now.AddDate(0, 0, 7)
	pastExpiry := now.AddDate(0, 0, -1)
	announcements := []types.Announcement{
		{ID: "a-1", Title: "Winter Trial season opens Friday", Body: "Brackets lock at reset. Check your furnace tier before registering.", Display: types.DisplayBanner, Priority: 10, Active: true, ExpiresAt: &winterExpiry, Author: "Astrid Hale", CreatedAt: now.AddDate(0, 0, -2)},
		{ID: "a-2", Title: "Advisor downtime tonight 03:00 UTC", Body: "Provider maintenance window, roughly twenty minutes.", Display: types.DisplayModal, Priority: 5, Active: true, ExpiresAt: &pastExpiry, Author: "Rook Devlin", CreatedAt: now.AddDate(0, 0, -3)},
		{ID: "a-3", Title: "New gear calculator in beta", Body: "Open the roster screen and tap a gear slot to try it.", Display: types.DisplayFeed, Priority: 1, Active: true, Author: "Astrid Hale", CreatedAt: now.AddDate(0, 0, -5)},
	}
	for _, item := range announcements {
		db.announcements[item.ID] = item
	}

	// --- Feedback inbox ---

	feedback := []types.FeedbackItem{
		{ID: "f-1", UserID: "u-3", Category: "advisor", Message: "Advisor keeps recommending heroes I don't own.", Status: types.FeedbackNew, CreatedAt: now.AddDate(0, 0, -2), UpdatedAt: now.AddDate(0, 0, -2)},
		{ID: "f-2", UserID: "u-4", Category: "ui", Message: "Roster screen cuts off gear names on small phones.", Status: types.FeedbackReviewing, AdminNotes: "Repro on 5.5in viewport", CreatedAt: now.AddDate(0, 0, -5), UpdatedAt: now.AddDate(0, 0, -4)},
		{ID: "f-3", UserID: "u-2", Category: "content", Message: "Furnace guide is outdated past FC5.", Status: types.FeedbackResolved, AdminNotes: "Guide refreshed", CreatedAt: now.AddDate(0, 0, -12), UpdatedAt: now.AddDate(0, 0, -10)},
		{ID: "f-4", UserID: "u-3", Category: "advisor", Message: "Token counter seems stuck at zero.", Status: types.FeedbackDismissed, CreatedAt: now.AddDate(0, 0, -20), UpdatedAt: now.AddDate(0, 0, -19)},
	}
	for _, item := range feedback {
		db.feedback[item.ID] = item
	}

	// --- Error reports ---

	errorReports := []types.ErrorReport{
		{ID: "e-1", Source: "companion-app", Message: "TypeError: cannot read properties of undefined (reading 'tier')", Stack: "at GearSlot.render (roster.js:214)\nat renderList (roster.js:88)", Status: types.ErrorNew, Count: 18, LastSeen: now.Add(-3 * time.Hour)},
		{ID: "e-2", Source: "advisor-worker", Message: "deadline exceeded calling provider endpoint", Stack: "provider.Ask (worker.go:131)", Status: types.ErrorInvestigating, Count: 4, LastSeen: now.AddDate(0, 0, -1)},
		{ID: "e-3", Source: "companion-app", Message: "QuotaExceededError: localStorage write failed", Stack: "at persistRoster (storage.js:41)", Status: types.ErrorFixed, Count: 92, LastSeen: now.AddDate(0, 0, -9)},
	}
	for _, item := range errorReports {
		db.errorReports[item.ID] = item
	}

	// --- Support threads ---

	threads := []types.Thread{
		{ID: "t-1", UserID: "u-3", Subject: "Billing: duplicate advisor pass charge", Status: types.ThreadOpen, Unread: 2, LastMessageAt: now.Add(-4 * time.Hour)},
		{ID: "t-2", UserID: "u-4", Subject: "Can't link my in-game account", Status: types.ThreadOpen, Unread: 1, LastMessageAt: now.AddDate(0, 0, -2)},
		{ID: "t-3", UserID: "u-2", Subject: "Feature request: export roster as CSV", Status: types.ThreadClosed, Unread: 0, LastMessageAt: now.AddDate(0, 0, -15)},
	}
	for _, thread := range threads {
		db.threads[thread.ID] = thread
	}
	db.threadMessages["t-1"] = []types.ThreadMessage{
		{ID: "m-1", ThreadID: "t-1", Sender: "player", Body: "I was charged twice for the advisor pass on the 14th.", CreatedAt: now.AddDate(0, 0, -1)},
		{ID: "m-2", ThreadID: "t-1", Sender: "admin", Body: "Looking into it now, can you share the order ids?", CreatedAt: now.Add(-20 * time.Hour)},
		{ID: "m-3", ThreadID: "t-1", Sender: "player", Body: "ORD-5521 and ORD-5522, both at 09:12.", CreatedAt: now.Add(-4 * time.Hour)},
	}
	db.threadMessages["t-2"] = []types.ThreadMessage{
		{ID: "m-4", ThreadID: "t-2", Sender: "player", Body: "The link code from the game client always says expired.", CreatedAt: now.AddDate(0, 0, -2)},
	}
	db.threadMessages["t-3"] = []types.ThreadMessage{
		{ID: "m-5", ThreadID: "t-3", Sender: "player", Body: "Would love a CSV export of my roster.", CreatedAt: now.AddDate(0, 0, -16)},
		{ID: "m-6", ThreadID: "t-3", Sender: "admin", Body: "On the roadmap, closing for now.", CreatedAt: now.AddDate(0, 0, -15)},
	}

	// --- Game data files ---

	heroContent := json.RawMessage(`{
  "heroes": [
    {"id": "h-molly", "growth": {"attack": 1.8, "defense": 2.4, "health": 21.0}},
    {"id": "h-bahiti", "growth": {"attack": 2.9, "defense": 1.2, "health": 11.5}},
    {"id": "h-natalia", "growth": {"attack": 2.4, "defense": 3.1, "health": 28.0}}
  ]
}`)
	gearContent := json.RawMessage(`{
  "sets": [
    {"name": "Frostforged", "pieces": 2, "bonus": {"defense_pct": 8}},
    {"name": "Wolfhide", "pieces": 2, "bonus": {"health_pct": 6}},
    {"name": "Emberfall", "pieces": 2, "bonus": {"attack_pct": 10}}
  ]
}`)
	eventContent := json.RawMessage(`{
  "events": [
    {"slug": "winter-trial", "cadence": "weekly", "day": "friday"},
    {"slug": "bear-trap", "cadence": "twice-weekly"},
    {"slug": "growth-rush", "cadence": "monthly"}
  ]
}`)
	gameFiles := []types.GameFile{
		{Name: "heroes", Description: "Hero base stats and growth curves", Size: int64(len(heroContent)), Version: 7, ModifiedAt: now.AddDate(0, 0, -14), Content: heroContent},
		{Name: "gear", Description: "Gear catalog with set bonuses", Size: int64(len(gearContent)), Version: 12, ModifiedAt: now.AddDate(0, 0, -6), Content: gearContent},
		{Name: "events", Description: "Seasonal event schedule", Size: int64(len(eventContent)), Version: 3, ModifiedAt: now.AddDate(0, 0, -40), Content: eventContent},
	}
	for _, file := range gameFiles {
		db.gameFiles[file.Name] = file
	}

	// --- Providers ---

	providers := []types.AIProvider{
		{ID: "p-openai", Name: "OpenAI", Model: "gpt-4o-mini", Endpoint: "https://api.openai.com/v1", Enabled: true, Priority: 1, DailyBudget: 250000, KeyHint: "sk-...k3Vq"},
		{ID: "p-gemini", Name: "Gemini", Model: "gemini-2.0-flash", Endpoint: "https://generativelanguage.googleapis.com", Enabled: true, Priority: 2, DailyBudget: 400000, KeyHint: "AI...9fc2"},
		{ID: "p-mistral", Name: "Mistral", Model: "mistral-small", Endpoint: "https://api.mistral.ai", Enabled: false, Priority: 3, DailyBudget: 100000, KeyHint: "mi...77ab"},
	}
	for _, provider := range providers {
		db.providers[provider.ID] = provider
	}

	// --- Guides (HTML bodies, rendered by the companion tool) ---

	guides := []types.Guide{
		{Slug: "bear-trap", Title: "Bear Trap Damage Guide", UpdatedAt: now.AddDate(0, 0, -8), Body: `<h2>Rally Setup</h2>
<p>The trap takes <strong>bonus damage</strong> during its fury window. Time your strongest rally to land inside it.</p>
<ul>
<li>Lead with Jeronimo if you have him</li>
<li>Fill with marksmen, screen with one infantry march</li>
<li>Never send lancers alone</li>
</ul>
<h2>Common Mistakes</h2>
<p>Joining rallies with <em>mixed gear sets</em> dilutes the set bonus. Pick one set and commit.</p>`},
		{Slug: "furnace-progression", Title: "Furnace Progression Past FC1", UpdatedAt: now.AddDate(0, 0, -3), Body: `<h2>Why the Furnace First</h2>
<p>Every FC tier unlocks the next band of research. Troop upgrades without research are wasted speedups.</p>
<h2>Order of Operations</h2>
<ul>
<li>Furnace to the next FC tier</li>
<li>Embassy for rally capacity</li>
<li>Infirmary before any offense tech</li>
</ul>
<p>Save construction speedups for <strong>growth events</strong>, the points double.</p>`},
		{Slug: "gear-priority", Title: "Gear Priority by Class", UpdatedAt: now.AddDate(0, 0, -11), Body: `<h2>Infantry</h2>
<p>Helmet and armor first. Infantry lives or dies by <strong>defense</strong>.</p>
<h2>Marksman</h2>
<p>Weapon and glove. Attack scales their kill window before the line breaks.</p>
<h2>Lancer</h2>
<p>Split evenly. Lancers need enough bulk to reach the back line.</p>`},
	}
	for _, guide := range guides {
		db.guides[guide.Slug] = guide
	}

	return db
}

// cannedAnswer builds a deterministic advisor reply for the demo
// service by keyword matching the question.
func cannedAnswer(question string) string {
	lowered := strings.ToLower(question)

	rules := []struct {
		keywords []string
		answer   string
	}{
		{[]string{"furnace", "fc"}, "Keep the furnace ahead of everything else. Each FC tier gates research that outvalues any single troop upgrade, and infirmary capacity should trail one tier behind."},
		{[]string{"bear", "trap"}, "Bear trap rallies reward burst damage. Lead with your strongest rally captain, stack marksmen behind a thin infantry screen, and launch so the march lands inside the fury window."},
		{[]string{"gear", "set"}, "Match gear sets to the hero's class. Infantry wants Frostforged defense pieces, marksmen want Emberfall attack pieces, and never split a two-piece bonus across marches."},
		{[]string{"hero", "shard", "star"}, "Spend shards only when a hero is one copy from the next star. Generation two heroes outscale maxed generation one, so bank shards near a generation boundary."},
		{[]string{"speedup", "event"}, "Bank speedups between growth events. Construction and research both score double during the rush windows, so spending outside them halves your value."},
		{[]string{"arena", "defense"}, "Arena defense favors sturdy front lines. Natalia and Jeronimo anchor most comps, and swapping your weakest attacker for a second tank usually gains more than raw attack."},
	}
	for _, rule := range rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.answer
			}
		}
	}
	return "Focus on steady furnace progression, keep your march gear within one set, and spend event currency the day an event ends. Ask about a specific screen or hero for a sharper answer."
}
