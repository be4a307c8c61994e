package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chiefkit/internal/types"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "chief.db"))
	if err != nil {
		t.Fatalf("Failed to create local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewLocalStore(t *testing.T) {
	store := newTestStore(t)

	if store.db == nil {
		t.Error("Database connection is nil")
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	requiredTables := []string{"catalog_cache", "advisor_history", "gamedata_drafts", "advisor_usage"}
	for _, table := range requiredTables {
		if _, ok := stats[table]; !ok {
			t.Errorf("Stats missing table: %s", table)
		}
	}
}

func TestCatalogCacheRoundTrip(t *testing.T) {
	store := newTestStore(t)

	heroes := []types.Hero{
		{ID: "h1", Name: "Molly", Class: "lancer", Rarity: "ssr", Generation: 1},
		{ID: "h2", Name: "Bahiti", Class: "marksman", Rarity: "epic", Generation: 1},
	}
	if err := store.SaveHeroes(heroes); err != nil {
		t.Fatalf("SaveHeroes failed: %v", err)
	}

	loaded, fetchedAt, err := store.LoadHeroes()
	if err != nil {
		t.Fatalf("LoadHeroes failed: %v", err)
	}
	if diff := cmp.Diff(heroes, loaded); diff != "" {
		t.Errorf("Catalog mismatch (-want +got):\n%s", diff)
	}
	if fetchedAt.IsZero() {
		t.Error("Expected a fetched_at timestamp")
	}

	// Saving again replaces, not appends
	if err := store.SaveHeroes(heroes[:1]); err != nil {
		t.Fatalf("Second SaveHeroes failed: %v", err)
	}
	loaded, _, err = store.LoadHeroes()
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("Expected replacement to leave 1 hero, got %d", len(loaded))
	}
}

func TestCatalogMissing(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.LoadGear()
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows for uncached catalog, got %v", err)
	}
}

func TestCatalogStale(t *testing.T) {
	store := newTestStore(t)

	if !store.CatalogStale(CatalogHeroes, time.Hour) {
		t.Error("Expected missing catalog to read as stale")
	}

	if err := store.SaveHeroes([]types.Hero{{ID: "h1", Name: "Molly"}}); err != nil {
		t.Fatalf("SaveHeroes failed: %v", err)
	}
	if store.CatalogStale(CatalogHeroes, time.Hour) {
		t.Error("Expected fresh catalog not to be stale")
	}
	if !store.CatalogStale(CatalogHeroes, 0) {
		t.Error("Expected zero TTL to read as stale")
	}
}

func TestConversationCache(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	convs := []types.Conversation{
		{ID: "c1", Question: "Best march for bear trap?", Answer: "Lead with Molly.", CreatedAt: now.Add(-time.Hour)},
		{ID: "c2", Question: "Gear priority?", Answer: "Helmet first.", CreatedAt: now},
	}
	if err := store.SaveConversations(convs); err != nil {
		t.Fatalf("SaveConversations failed: %v", err)
	}

	loaded, err := store.LoadConversations(10)
	if err != nil {
		t.Fatalf("LoadConversations failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(loaded))
	}
	if loaded[0].ID != "c2" {
		t.Errorf("Expected newest first, got %s", loaded[0].ID)
	}

	// Upsert keeps one row per conversation
	convs[1].Answer = "Helmet, then boots."
	if err := store.SaveConversations(convs); err != nil {
		t.Fatalf("Re-save failed: %v", err)
	}
	loaded, err = store.LoadConversations(10)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("Expected upsert to keep 2 rows, got %d", len(loaded))
	}
	if loaded[0].Answer != "Helmet, then boots." {
		t.Errorf("Expected updated answer, got %q", loaded[0].Answer)
	}
}

func TestDraftLifecycle(t *testing.T) {
	store := newTestStore(t)

	content := json.RawMessage(`{"heroes": []}`)
	if err := store.SaveDraft("heroes", content, 4); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}

	draft, err := store.LoadDraft("heroes")
	if err != nil {
		t.Fatalf("LoadDraft failed: %v", err)
	}
	if draft.BaseVersion != 4 {
		t.Errorf("Expected base version 4, got %d", draft.BaseVersion)
	}
	if string(draft.Content) != `{"heroes": []}` {
		t.Errorf("Unexpected draft content: %s", draft.Content)
	}

	// Overwrite bumps the base version
	if err := store.SaveDraft("heroes", json.RawMessage(`{"heroes": [1]}`), 5); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	drafts, err := store.ListDrafts()
	if err != nil {
		t.Fatalf("ListDrafts failed: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("Expected 1 draft, got %d", len(drafts))
	}
	if drafts[0].BaseVersion != 5 {
		t.Errorf("Expected base version 5 after overwrite, got %d", drafts[0].BaseVersion)
	}

	if err := store.DeleteDraft("heroes"); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}
	if _, err := store.LoadDraft("heroes"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows after delete, got %v", err)
	}
}

func TestAdvisorUsageCounters(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordAdvisorUsage("2025-06-01", "openai", 120); err != nil {
		t.Fatalf("RecordAdvisorUsage failed: %v", err)
	}
	if err := store.RecordAdvisorUsage("2025-06-01", "openai", 80); err != nil {
		t.Fatalf("Second record failed: %v", err)
	}
	if err := store.RecordAdvisorUsage("2025-06-02", "gemini", 50); err != nil {
		t.Fatalf("Third record failed: %v", err)
	}

	usage, err := store.UsageSince("2025-06-01")
	if err != nil {
		t.Fatalf("UsageSince failed: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("Expected 2 usage rows, got %d", len(usage))
	}

	first := usage[0]
	if first.Day != "2025-06-01" || first.Provider != "openai" {
		t.Errorf("Unexpected first row: %+v", first)
	}
	if first.Questions != 2 {
		t.Errorf("Expected 2 questions, got %d", first.Questions)
	}
	if first.Tokens != 200 {
		t.Errorf("Expected 200 tokens, got %d", first.Tokens)
	}

	// Cutoff filters older days
	usage, err = store.UsageSince("2025-06-02")
	if err != nil {
		t.Fatalf("Filtered UsageSince failed: %v", err)
	}
	if len(usage) != 1 || usage[0].Provider != "gemini" {
		t.Errorf("Expected only the gemini row, got %+v", usage)
	}
}
