// Package store persists local state in SQLite: the offline catalog
// cache, cached advisor history, game-data drafts, and advisor usage
// counters. Everything lives in one database file under the .chief
// directory.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"chiefkit/internal/logging"
	"chiefkit/internal/types"
)

// Catalog kinds for the cache table.
const (
	CatalogHeroes = "heroes"
	CatalogGear   = "gear"
)

// LocalStore wraps the SQLite database. Safe for concurrent use; the
// single connection plus busy_timeout keeps writers from tripping over
// each other.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore opens (creating if needed) the database at path.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("Opening local store at %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	store := &LocalStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Local store schema ready")

	return store, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	catalogTable := `
	CREATE TABLE IF NOT EXISTS catalog_cache (
		kind TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		fetched_at DATETIME NOT NULL
	);
	`

	historyTable := `
	CREATE TABLE IF NOT EXISTS advisor_history (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		asked_at DATETIME,
		cached_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_history_asked ON advisor_history(asked_at);
	`

	draftsTable := `
	CREATE TABLE IF NOT EXISTS gamedata_drafts (
		name TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		base_version INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	usageTable := `
	CREATE TABLE IF NOT EXISTS advisor_usage (
		day TEXT NOT NULL,
		provider TEXT NOT NULL,
		questions INTEGER NOT NULL DEFAULT 0,
		tokens INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, provider)
	);
	`

	for _, table := range []string{catalogTable, historyTable, draftsTable, usageTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *LocalStore) Path() string {
	return s.dbPath
}

// ========== Catalog Cache ==========

// SaveHeroes replaces the cached hero catalog.
func (s *LocalStore) SaveHeroes(heroes []types.Hero) error {
	return s.saveCatalog(CatalogHeroes, heroes)
}

// LoadHeroes returns the cached hero catalog and when it was fetched.
func (s *LocalStore) LoadHeroes() ([]types.Hero, time.Time, error) {
	var heroes []types.Hero
	fetchedAt, err := s.loadCatalog(CatalogHeroes, &heroes)
	return heroes, fetchedAt, err
}

// SaveGear replaces the cached gear catalog.
func (s *LocalStore) SaveGear(gear []types.GearItem) error {
	return s.saveCatalog(CatalogGear, gear)
}

// LoadGear returns the cached gear catalog and when it was fetched.
func (s *LocalStore) LoadGear() ([]types.GearItem, time.Time, error) {
	var gear []types.GearItem
	fetchedAt, err := s.loadCatalog(CatalogGear, &gear)
	return gear, fetchedAt, err
}

func (s *LocalStore) saveCatalog(kind string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s catalog: %w", kind, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO catalog_cache (kind, payload, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(kind) DO UPDATE SET
		 payload = excluded.payload,
		 fetched_at = excluded.fetched_at`,
		kind, string(data), time.Now().UTC(),
	)
	if err == nil {
		logging.StoreDebug("Cached %s catalog", kind)
	}
	return err
}

// loadCatalog decodes a cached catalog into out. Returns sql.ErrNoRows
// when the kind has never been cached.
func (s *LocalStore) loadCatalog(kind string, out interface{}) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	var fetchedAt time.Time
	err := s.db.QueryRow(
		"SELECT payload, fetched_at FROM catalog_cache WHERE kind = ?", kind,
	).Scan(&payload, &fetchedAt)
	if err != nil {
		return time.Time{}, err
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode %s catalog: %w", kind, err)
	}
	return fetchedAt, nil
}

// CatalogStale reports whether the cached kind is older than ttl, or
// missing entirely.
func (s *LocalStore) CatalogStale(kind string, ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fetchedAt time.Time
	err := s.db.QueryRow(
		"SELECT fetched_at FROM catalog_cache WHERE kind = ?", kind,
	).Scan(&fetchedAt)
	if err != nil {
		return true
	}
	return time.Since(fetchedAt) > ttl
}

// ========== Advisor History Cache ==========

// SaveConversations upserts advisor conversations into the local
// cache so the history pane works offline.
func (s *LocalStore) SaveConversations(convs []types.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO advisor_history (id, payload, asked_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 payload = excluded.payload,
		 asked_at = excluded.asked_at,
		 cached_at = CURRENT_TIMESTAMP`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, conv := range convs {
		data, err := json.Marshal(conv)
		if err != nil {
			logging.StoreDebug("Skipping unmarshalable conversation %s: %v", conv.ID, err)
			continue
		}
		if _, err := stmt.Exec(conv.ID, string(data), conv.CreatedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logging.StoreDebug("Cached %d advisor conversations", len(convs))
	return nil
}

// LoadConversations returns cached conversations, newest first.
func (s *LocalStore) LoadConversations(limit int) ([]types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		"SELECT payload FROM advisor_history ORDER BY asked_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []types.Conversation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var conv types.Conversation
		if err := json.Unmarshal([]byte(payload), &conv); err != nil {
			continue
		}
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

// ========== Game Data Drafts ==========

// Draft is a locally saved game-data edit that has not been pushed to
// the backend yet. BaseVersion is the server version the edit started
// from, used for the conflict check on save.
type Draft struct {
	Name        string
	Content     json.RawMessage
	BaseVersion int
	UpdatedAt   time.Time
}

// SaveDraft stores or replaces a draft.
func (s *LocalStore) SaveDraft(name string, content json.RawMessage, baseVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO gamedata_drafts (name, content, base_version, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET
		 content = excluded.content,
		 base_version = excluded.base_version,
		 updated_at = CURRENT_TIMESTAMP`,
		name, string(content), baseVersion,
	)
	if err == nil {
		logging.GameDataDebug("Saved draft %s (base version %d)", name, baseVersion)
	}
	return err
}

// LoadDraft returns the draft for a file, or sql.ErrNoRows when none
// exists.
func (s *LocalStore) LoadDraft(name string) (*Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var draft Draft
	var content string
	err := s.db.QueryRow(
		"SELECT name, content, base_version, updated_at FROM gamedata_drafts WHERE name = ?", name,
	).Scan(&draft.Name, &content, &draft.BaseVersion, &draft.UpdatedAt)
	if err != nil {
		return nil, err
	}
	draft.Content = json.RawMessage(content)
	return &draft, nil
}

// ListDrafts returns all drafts, most recently touched first.
func (s *LocalStore) ListDrafts() ([]Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT name, content, base_version, updated_at FROM gamedata_drafts ORDER BY updated_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		var draft Draft
		var content string
		if err := rows.Scan(&draft.Name, &content, &draft.BaseVersion, &draft.UpdatedAt); err != nil {
			continue
		}
		draft.Content = json.RawMessage(content)
		drafts = append(drafts, draft)
	}

	return drafts, rows.Err()
}

// DeleteDraft removes a draft, typically after a successful push.
func (s *LocalStore) DeleteDraft(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM gamedata_drafts WHERE name = ?", name)
	return err
}

// ========== Advisor Usage Counters ==========

// UsageRow is one day's advisor usage for one provider.
type UsageRow struct {
	Day       string
	Provider  string
	Questions int
	Tokens    int
}

// RecordAdvisorUsage increments the question and token counters for a
// provider on the given day (YYYY-MM-DD).
func (s *LocalStore) RecordAdvisorUsage(day, provider string, tokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO advisor_usage (day, provider, questions, tokens) VALUES (?, ?, 1, ?)
		 ON CONFLICT(day, provider) DO UPDATE SET
		 questions = questions + 1,
		 tokens = tokens + excluded.tokens`,
		day, provider, tokens,
	)
	return err
}

// UsageSince returns per-day, per-provider usage rows for days >= from
// (YYYY-MM-DD), oldest first.
func (s *LocalStore) UsageSince(from string) ([]UsageRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT day, provider, questions, tokens FROM advisor_usage
		 WHERE day >= ? ORDER BY day ASC, provider ASC`,
		from,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usage []UsageRow
	for rows.Next() {
		var row UsageRow
		if err := rows.Scan(&row.Day, &row.Provider, &row.Questions, &row.Tokens); err != nil {
			continue
		}
		usage = append(usage, row)
	}

	return usage, rows.Err()
}

// ========== Stats ==========

// GetStats returns row counts per table for the status display.
func (s *LocalStore) GetStats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{"catalog_cache", "advisor_history", "gamedata_drafts", "advisor_usage"}

	for _, table := range tables {
		var count int64
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			continue
		}
		stats[table] = count
	}

	return stats, nil
}
