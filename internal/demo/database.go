package demo

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"chiefkit/internal/types"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrEmailTaken is returned when creating a user with an email that
// already has an account.
var ErrEmailTaken = errors.New("email already registered")

// ErrVersionConflict is returned when a game-data save is based on a
// stale version.
var ErrVersionConflict = errors.New("version conflict")

// ErrSelfDelete is returned when an admin tries to delete their own
// account.
var ErrSelfDelete = errors.New("cannot delete own account")

// database is an in-memory, concurrency-safe backing store for the
// demo service.
type database struct {
	mu sync.RWMutex

	users     map[string]types.User
	passwords map[string]string // userID -> bcrypt hash

	heroes []types.Hero
	gear   []types.GearItem

	roster map[string]map[string]types.RosterEntry // userID -> heroID

	conversations map[string]types.Conversation
	announcements map[string]types.Announcement
	feedback      map[string]types.FeedbackItem
	errorReports  map[string]types.ErrorReport

	threads        map[string]types.Thread
	threadMessages map[string][]types.ThreadMessage

	gameFiles map[string]types.GameFile
	providers map[string]types.AIProvider
	guides    map[string]types.Guide

	seq int
}

func newDatabase() *database {
	return &database{
		users:          make(map[string]types.User),
		passwords:      make(map[string]string),
		roster:         make(map[string]map[string]types.RosterEntry),
		conversations:  make(map[string]types.Conversation),
		announcements:  make(map[string]types.Announcement),
		feedback:       make(map[string]types.FeedbackItem),
		errorReports:   make(map[string]types.ErrorReport),
		threads:        make(map[string]types.Thread),
		threadMessages: make(map[string][]types.ThreadMessage),
		gameFiles:      make(map[string]types.GameFile),
		providers:      make(map[string]types.AIProvider),
		guides:         make(map[string]types.Guide),
		seq:            100,
	}
}

// nextID must be called with the write lock held.
func (d *database) nextID(prefix string) string {
	d.seq++
	return fmt.Sprintf("%s-%d", prefix, d.seq)
}

// ========== Users ==========

func (d *database) findUserByEmail(email string) (types.User, string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, user := range d.users {
		if strings.EqualFold(user.Email, email) {
			return user, d.passwords[user.ID], true
		}
	}
	return types.User{}, "", false
}

func (d *database) getUser(id string) (types.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (d *database) listUsers() []types.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]types.User, 0, len(d.users))
	for _, user := range d.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

func (d *database) createUser(user types.User, passwordHash string) (types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, ErrEmailTaken
		}
	}

	user.ID = d.nextID("u")
	user.CreatedAt = time.Now().UTC()
	d.users[user.ID] = user
	if passwordHash != "" {
		d.passwords[user.ID] = passwordHash
	}
	return user, nil
}

func (d *database) updateUser(id string, update types.User) (types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}

	for _, existing := range d.users {
		if existing.ID != id && strings.EqualFold(existing.Email, update.Email) {
			return types.User{}, ErrEmailTaken
		}
	}

	user.Email = update.Email
	user.Name = update.Name
	user.Role = update.Role
	user.Active = update.Active
	user.AIAccess = update.AIAccess
	d.users[id] = user
	return user, nil
}

func (d *database) deleteUser(id, actorID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id == actorID {
		return ErrSelfDelete
	}
	if _, ok := d.users[id]; !ok {
		return ErrNotFound
	}
	delete(d.users, id)
	delete(d.passwords, id)
	delete(d.roster, id)
	return nil
}

func (d *database) setPassword(id, hash string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[id]; ok {
		d.passwords[id] = hash
	}
}

func (d *database) cycleAccess(id string) (types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	user.AIAccess = user.AIAccess.Next()
	d.users[id] = user
	return user, nil
}

// ========== Catalog ==========

func (d *database) listHeroes() []types.Hero {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]types.Hero(nil), d.heroes...)
}

func (d *database) listGear() []types.GearItem {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]types.GearItem(nil), d.gear...)
}

func (d *database) hasHero(heroID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, hero := range d.heroes {
		if hero.ID == heroID {
			return true
		}
	}
	return false
}

// ========== Roster ==========

func (d *database) rosterFor(userID string) []types.RosterEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries := make([]types.RosterEntry, 0, len(d.roster[userID]))
	for _, entry := range d.roster[userID] {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].HeroID < entries[j].HeroID })
	return entries
}

func (d *database) saveRosterEntry(userID string, entry types.RosterEntry) types.RosterEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.roster[userID] == nil {
		d.roster[userID] = make(map[string]types.RosterEntry)
	}
	existing, ok := d.roster[userID][entry.HeroID]
	if ok {
		entry.ID = existing.ID
	} else {
		entry.ID = d.nextID("r")
	}
	entry.UserID = userID
	entry.UpdatedAt = time.Now().UTC()
	d.roster[userID][entry.HeroID] = entry
	return entry
}

func (d *database) deleteRosterEntry(userID, heroID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.roster[userID][heroID]; !ok {
		return ErrNotFound
	}
	delete(d.roster[userID], heroID)
	return nil
}

// ========== Conversations ==========

func (d *database) addConversation(conv types.Conversation) types.Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()

	conv.ID = d.nextID("c")
	conv.CreatedAt = time.Now().UTC()
	d.conversations[conv.ID] = conv
	return conv
}

func (d *database) conversationsFor(userID string) []types.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var convs []types.Conversation
	for _, conv := range d.conversations {
		if conv.UserID == userID {
			convs = append(convs, conv)
		}
	}
	sortConversations(convs)
	return convs
}

func (d *database) conversationsAll() []types.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()

	convs := make([]types.Conversation, 0, len(d.conversations))
	for _, conv := range d.conversations {
		convs = append(convs, conv)
	}
	sortConversations(convs)
	return convs
}

func (d *database) curatedConversations() []types.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var convs []types.Conversation
	for _, conv := range d.conversations {
		if conv.Curated {
			convs = append(convs, conv)
		}
	}
	sortConversations(convs)
	return convs
}

func sortConversations(convs []types.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].ID > convs[j].ID
		}
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
}

func (d *database) rateConversation(id, userID string, isAdmin bool, rating int) (types.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conv, ok := d.conversations[id]
	if !ok {
		return types.Conversation{}, ErrNotFound
	}
	if !isAdmin && conv.UserID != userID {
		return types.Conversation{}, ErrNotFound
	}
	conv.Rating = rating
	d.conversations[id] = conv
	return conv, nil
}

func (d *database) setCuration(id string, curated, goodExample bool) (types.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conv, ok := d.conversations[id]
	if !ok {
		return types.Conversation{}, ErrNotFound
	}
	conv.Curated = curated
	conv.GoodExample = goodExample
	d.conversations[id] = conv
	return conv, nil
}

// ========== Announcements ==========

func (d *database) activeAnnouncements(now time.Time) []types.Announcement {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var items []types.Announcement
	for _, item := range d.announcements {
		if item.Active && !item.Expired(now) {
			items = append(items, item)
		}
	}
	sortAnnouncements(items)
	return items
}

func (d *database) allAnnouncements() []types.Announcement {
	d.mu.RLock()
	defer d.mu.RUnlock()

	items := make([]types.Announcement, 0, len(d.announcements))
	for _, item := range d.announcements {
		items = append(items, item)
	}
	sortAnnouncements(items)
	return items
}

func sortAnnouncements(items []types.Announcement) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func (d *database) createAnnouncement(item types.Announcement) types.Announcement {
	d.mu.Lock()
	defer d.mu.Unlock()

	item.ID = d.nextID("a")
	item.CreatedAt = time.Now().UTC()
	d.announcements[item.ID] = item
	return item
}

func (d *database) updateAnnouncement(id string, update types.Announcement) (types.Announcement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.announcements[id]
	if !ok {
		return types.Announcement{}, ErrNotFound
	}
	item.Title = update.Title
	item.Body = update.Body
	item.Display = update.Display
	item.Priority = update.Priority
	item.Active = update.Active
	item.ExpiresAt = update.ExpiresAt
	d.announcements[id] = item
	return item, nil
}

func (d *database) deleteAnnouncement(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.announcements[id]; !ok {
		return ErrNotFound
	}
	delete(d.announcements, id)
	return nil
}

// ========== Feedback and Errors ==========

func (d *database) listFeedback() []types.FeedbackItem {
	d.mu.RLock()
	defer d.mu.RUnlock()

	items := make([]types.FeedbackItem, 0, len(d.feedback))
	for _, item := range d.feedback {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items
}

func (d *database) updateFeedback(id string, status types.FeedbackStatus, notes string) (types.FeedbackItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.feedback[id]
	if !ok {
		return types.FeedbackItem{}, ErrNotFound
	}
	item.Status = status
	if notes != "" {
		item.AdminNotes = notes
	}
	item.UpdatedAt = time.Now().UTC()
	d.feedback[id] = item
	return item, nil
}

func (d *database) listErrorReports() []types.ErrorReport {
	d.mu.RLock()
	defer d.mu.RUnlock()

	items := make([]types.ErrorReport, 0, len(d.errorReports))
	for _, item := range d.errorReports {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].LastSeen.After(items[j].LastSeen) })
	return items
}

func (d *database) updateErrorReport(id string, status types.ErrorStatus) (types.ErrorReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.errorReports[id]
	if !ok {
		return types.ErrorReport{}, ErrNotFound
	}
	item.Status = status
	d.errorReports[id] = item
	return item, nil
}

// ========== Threads ==========

func (d *database) listThreads() []types.Thread {
	d.mu.RLock()
	defer d.mu.RUnlock()

	threads := make([]types.Thread, 0, len(d.threads))
	for _, thread := range d.threads {
		threads = append(threads, thread)
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].LastMessageAt.After(threads[j].LastMessageAt) })
	return threads
}

func (d *database) threadMessagesFor(threadID string) ([]types.ThreadMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.threads[threadID]; !ok {
		return nil, ErrNotFound
	}
	return append([]types.ThreadMessage(nil), d.threadMessages[threadID]...), nil
}

func (d *database) replyThread(threadID, senderRole, body string) (types.ThreadMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	thread, ok := d.threads[threadID]
	if !ok {
		return types.ThreadMessage{}, ErrNotFound
	}

	msg := types.ThreadMessage{
		ID:        d.nextID("m"),
		ThreadID:  threadID,
		Sender:    senderRole,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	d.threadMessages[threadID] = append(d.threadMessages[threadID], msg)

	thread.LastMessageAt = msg.CreatedAt
	thread.Unread = 0
	thread.Status = types.ThreadOpen
	d.threads[threadID] = thread
	return msg, nil
}

func (d *database) closeThread(threadID string) (types.Thread, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	thread, ok := d.threads[threadID]
	if !ok {
		return types.Thread{}, ErrNotFound
	}
	thread.Status = types.ThreadClosed
	d.threads[threadID] = thread
	return thread, nil
}

// ========== Game Data ==========

func (d *database) listGameFiles() []types.GameFile {
	d.mu.RLock()
	defer d.mu.RUnlock()

	files := make([]types.GameFile, 0, len(d.gameFiles))
	for _, file := range d.gameFiles {
		file.Content = nil // listings omit content
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

func (d *database) getGameFile(name string) (types.GameFile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	file, ok := d.gameFiles[name]
	if !ok {
		return types.GameFile{}, ErrNotFound
	}
	return file, nil
}

func (d *database) saveGameFile(name string, content json.RawMessage, baseVersion int) (types.GameFile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	file, ok := d.gameFiles[name]
	if !ok {
		return types.GameFile{}, ErrNotFound
	}
	if file.Version != baseVersion {
		return types.GameFile{}, ErrVersionConflict
	}

	file.Content = append(json.RawMessage(nil), content...)
	file.Version++
	file.Size = int64(len(content))
	file.ModifiedAt = time.Now().UTC()
	d.gameFiles[name] = file
	return file, nil
}

// ========== Providers ==========

func (d *database) listProviders() []types.AIProvider {
	d.mu.RLock()
	defer d.mu.RUnlock()

	providers := make([]types.AIProvider, 0, len(d.providers))
	for _, provider := range d.providers {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Priority < providers[j].Priority })
	return providers
}

func (d *database) saveProvider(provider types.AIProvider) (types.AIProvider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.providers[provider.ID]
	if !ok {
		return types.AIProvider{}, ErrNotFound
	}
	// The key hint never changes through this surface
	provider.KeyHint = existing.KeyHint
	d.providers[provider.ID] = provider
	return provider, nil
}

// activeProvider returns the enabled provider with the best priority.
func (d *database) activeProvider() (types.AIProvider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	best := types.AIProvider{}
	found := false
	for _, provider := range d.providers {
		if !provider.Enabled {
			continue
		}
		if !found || provider.Priority < best.Priority {
			best = provider
			found = true
		}
	}
	return best, found
}

// ========== Guides ==========

func (d *database) listGuides() []types.Guide {
	d.mu.RLock()
	defer d.mu.RUnlock()

	guides := make([]types.Guide, 0, len(d.guides))
	for _, guide := range d.guides {
		guides = append(guides, guide)
	}
	sort.Slice(guides, func(i, j int) bool { return guides[i].Slug < guides[j].Slug })
	return guides
}

func (d *database) getGuide(slug string) (types.Guide, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	guide, ok := d.guides[slug]
	if !ok {
		return types.Guide{}, ErrNotFound
	}
	return guide, nil
}

// ========== Dashboard ==========

func (d *database) dashboardStats() types.DashboardStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := types.DashboardStats{
		Users:         len(d.users),
		Conversations: len(d.conversations),
	}

	for _, user := range d.users {
		if user.Active {
			stats.ActiveUsers++
		}
	}
	for _, conv := range d.conversations {
		if conv.Curated {
			stats.Curated++
		}
	}
	for _, item := range d.feedback {
		if item.Status == types.FeedbackNew || item.Status == types.FeedbackReviewing {
			stats.OpenFeedback++
		}
	}
	for _, item := range d.errorReports {
		if item.Status == types.ErrorNew || item.Status == types.ErrorInvestigating {
			stats.OpenErrors++
		}
	}
	for _, thread := range d.threads {
		if thread.Status == types.ThreadOpen {
			stats.OpenThreads++
		}
	}

	for _, provider := range d.providers {
		if provider.Enabled {
			stats.Providers = append(stats.Providers, types.ProviderHealth{
				Name:      provider.Name,
				Healthy:   true,
				LatencyMS: 40 + len(provider.Name)*7,
			})
		}
	}
	sort.Slice(stats.Providers, func(i, j int) bool { return stats.Providers[i].Name < stats.Providers[j].Name })

	users := make([]types.User, 0, len(d.users))
	for _, user := range d.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	if len(users) > 3 {
		users = users[:3]
	}
	stats.RecentSignups = users

	return stats
}
