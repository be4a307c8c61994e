package api

import (
	"context"
	"encoding/json"

	"chiefkit/internal/types"
)

// =============================================================================
// USER MANAGEMENT
// =============================================================================

// UserRequest is the create/update payload for user management.
// Password is only honored on create.
type UserRequest struct {
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Role     types.Role     `json:"role"`
	Active   bool           `json:"active"`
	AIAccess types.AIAccess `json:"ai_access"`
	Password string         `json:"password,omitempty"`
}

// Users lists all accounts.
func (c *Client) Users(ctx context.Context) ([]types.User, error) {
	var users []types.User
	if err := c.get(ctx, "/admin/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser creates an account.
func (c *Client) CreateUser(ctx context.Context, req UserRequest) (*types.User, error) {
	var user types.User
	if err := c.post(ctx, "/admin/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser updates an account.
func (c *Client) UpdateUser(ctx context.Context, id string, req UserRequest) (*types.User, error) {
	var user types.User
	if err := c.put(ctx, "/admin/users/"+id, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.delete(ctx, "/admin/users/"+id)
}

// CycleAIAccess advances a user's advisor access one step in the
// none -> basic -> full cycle and returns the updated account.
func (c *Client) CycleAIAccess(ctx context.Context, id string) (*types.User, error) {
	var user types.User
	if err := c.post(ctx, "/admin/users/"+id+"/cycle-access", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// =============================================================================
// CONVERSATION CURATION
// =============================================================================

// Conversations lists all advisor conversations for curation.
func (c *Client) Conversations(ctx context.Context) ([]types.Conversation, error) {
	var convs []types.Conversation
	if err := c.get(ctx, "/admin/conversations", &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

type curationRequest struct {
	Curated     bool `json:"curated"`
	GoodExample bool `json:"good_example"`
}

// SetCuration updates the curation flags on a conversation.
func (c *Client) SetCuration(ctx context.Context, id string, curated, goodExample bool) (*types.Conversation, error) {
	var conv types.Conversation
	req := curationRequest{Curated: curated, GoodExample: goodExample}
	if err := c.post(ctx, "/admin/conversations/"+id+"/curation", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ExportCurated returns the curated conversation set for export.
func (c *Client) ExportCurated(ctx context.Context) ([]types.Conversation, error) {
	var convs []types.Conversation
	if err := c.get(ctx, "/admin/conversations/export", &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// =============================================================================
// ANNOUNCEMENT MANAGEMENT
// =============================================================================

// AnnouncementRequest is the create/update payload for announcements.
type AnnouncementRequest struct {
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Display   types.DisplayType `json:"display_type"`
	Priority  int               `json:"priority"`
	Active    bool              `json:"active"`
	ExpiresAt *string           `json:"expires_at,omitempty"` // RFC 3339, null clears
}

// AllAnnouncements lists every announcement, including inactive and
// expired ones.
func (c *Client) AllAnnouncements(ctx context.Context) ([]types.Announcement, error) {
	var items []types.Announcement
	if err := c.get(ctx, "/admin/announcements", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateAnnouncement publishes a new announcement.
func (c *Client) CreateAnnouncement(ctx context.Context, req AnnouncementRequest) (*types.Announcement, error) {
	var item types.Announcement
	if err := c.post(ctx, "/admin/announcements", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateAnnouncement edits an announcement.
func (c *Client) UpdateAnnouncement(ctx context.Context, id string, req AnnouncementRequest) (*types.Announcement, error) {
	var item types.Announcement
	if err := c.put(ctx, "/admin/announcements/"+id, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteAnnouncement removes an announcement.
func (c *Client) DeleteAnnouncement(ctx context.Context, id string) error {
	return c.delete(ctx, "/admin/announcements/"+id)
}

// =============================================================================
// INBOX TRIAGE
// =============================================================================

// Feedback lists feedback items for triage.
func (c *Client) Feedback(ctx context.Context) ([]types.FeedbackItem, error) {
	var items []types.FeedbackItem
	if err := c.get(ctx, "/admin/feedback", &items); err != nil {
		return nil, err
	}
	return items, nil
}

type feedbackUpdateRequest struct {
	Status     types.FeedbackStatus `json:"status"`
	AdminNotes string               `json:"admin_notes,omitempty"`
}

// UpdateFeedback transitions a feedback item and optionally replaces
// its admin notes.
func (c *Client) UpdateFeedback(ctx context.Context, id string, status types.FeedbackStatus, notes string) (*types.FeedbackItem, error) {
	var item types.FeedbackItem
	req := feedbackUpdateRequest{Status: status, AdminNotes: notes}
	if err := c.patch(ctx, "/admin/feedback/"+id, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ErrorReports lists aggregated error reports.
func (c *Client) ErrorReports(ctx context.Context) ([]types.ErrorReport, error) {
	var items []types.ErrorReport
	if err := c.get(ctx, "/admin/errors", &items); err != nil {
		return nil, err
	}
	return items, nil
}

type errorUpdateRequest struct {
	Status types.ErrorStatus `json:"status"`
}

// UpdateErrorReport transitions an error report.
func (c *Client) UpdateErrorReport(ctx context.Context, id string, status types.ErrorStatus) (*types.ErrorReport, error) {
	var item types.ErrorReport
	if err := c.patch(ctx, "/admin/errors/"+id, errorUpdateRequest{Status: status}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Threads lists admin-user message threads.
func (c *Client) Threads(ctx context.Context) ([]types.Thread, error) {
	var threads []types.Thread
	if err := c.get(ctx, "/admin/threads", &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// ThreadMessages returns the messages of one thread, oldest first.
func (c *Client) ThreadMessages(ctx context.Context, threadID string) ([]types.ThreadMessage, error) {
	var msgs []types.ThreadMessage
	if err := c.get(ctx, "/admin/threads/"+threadID+"/messages", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

type replyRequest struct {
	Body string `json:"body"`
}

// ReplyThread posts an admin reply to a thread.
func (c *Client) ReplyThread(ctx context.Context, threadID, body string) (*types.ThreadMessage, error) {
	var msg types.ThreadMessage
	if err := c.post(ctx, "/admin/threads/"+threadID+"/messages", replyRequest{Body: body}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CloseThread marks a thread closed.
func (c *Client) CloseThread(ctx context.Context, threadID string) (*types.Thread, error) {
	var thread types.Thread
	if err := c.post(ctx, "/admin/threads/"+threadID+"/close", nil, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// =============================================================================
// GAME DATA
// =============================================================================

// GameFiles lists the editable game-data files (without content).
func (c *Client) GameFiles(ctx context.Context) ([]types.GameFile, error) {
	var files []types.GameFile
	if err := c.get(ctx, "/admin/gamedata", &files); err != nil {
		return nil, err
	}
	return files, nil
}

// GameFile fetches one file with its raw JSON content.
func (c *Client) GameFile(ctx context.Context, name string) (*types.GameFile, error) {
	var file types.GameFile
	if err := c.get(ctx, "/admin/gamedata/"+name, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

type gameFileSaveRequest struct {
	Content json.RawMessage `json:"content"`
	// Version is the version the edit was based on; the server rejects
	// the write with 409 when it no longer matches.
	Version int `json:"version"`
}

// SaveGameFile writes a file back. A stale Version yields a conflict
// error (IsConflict).
func (c *Client) SaveGameFile(ctx context.Context, name string, content json.RawMessage, version int) (*types.GameFile, error) {
	var file types.GameFile
	req := gameFileSaveRequest{Content: content, Version: version}
	if err := c.put(ctx, "/admin/gamedata/"+name, req, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// =============================================================================
// PROVIDERS AND DASHBOARD
// =============================================================================

// Providers lists the AI provider configurations.
func (c *Client) Providers(ctx context.Context) ([]types.AIProvider, error) {
	var providers []types.AIProvider
	if err := c.get(ctx, "/admin/providers", &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// SaveProvider updates a provider row (enable flag, priority, budget).
func (c *Client) SaveProvider(ctx context.Context, provider types.AIProvider) (*types.AIProvider, error) {
	var saved types.AIProvider
	if err := c.put(ctx, "/admin/providers/"+provider.ID, provider, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// DashboardStats returns the admin overview payload.
func (c *Client) DashboardStats(ctx context.Context) (*types.DashboardStats, error) {
	var stats types.DashboardStats
	if err := c.get(ctx, "/admin/dashboard", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
