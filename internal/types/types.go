// Package types defines the REST resource shapes exchanged with the
// companion backend. Lifecycle for every entity here is server-owned;
// the client consumes them as-is and layers display state on top.
package types

import (
	"encoding/json"
	"time"
)

// Role is the account role reported by the backend.
type Role string

const (
	RolePlayer    Role = "player"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// AIAccess is the advisor access level granted to a user.
type AIAccess string

const (
	AIAccessNone  AIAccess = "none"
	AIAccessBasic AIAccess = "basic"
	AIAccessFull  AIAccess = "full"
)

// Next returns the following level in the none -> basic -> full cycle.
// User management cycles access with a single keypress.
func (a AIAccess) Next() AIAccess {
	switch a {
	case AIAccessNone:
		return AIAccessBasic
	case AIAccessBasic:
		return AIAccessFull
	default:
		return AIAccessNone
	}
}

// User is an account record.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	AIAccess  AIAccess  `json:"ai_access"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the user may see admin pages. The client
// gates navigation only; the server remains the authority.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u User) IsModerator() bool { return u.Role == RoleAdmin || u.Role == RoleModerator }

// Hero is a game catalog entry. Base stats are display-only; no
// calculation over them happens client-side.
type Hero struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Class      string         `json:"class"`
	Rarity     string         `json:"rarity"`
	Generation int            `json:"generation"`
	BaseStats  map[string]int `json:"base_stats,omitempty"`
}

// GearItem is a catalog gear entry. Tier labels carry furnace (FC)
// requirements as plain strings.
type GearItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slot   string `json:"slot"`
	Rarity string `json:"rarity"`
	Tier   string `json:"tier"`
	Set    string `json:"set_name,omitempty"`
}

// GearSelection records which item, at which tier, fills a roster slot.
type GearSelection struct {
	ItemID string `json:"item_id"`
	Tier   string `json:"tier"`
}

// RosterEntry is one user's progression for a single hero.
type RosterEntry struct {
	ID        string                   `json:"id"`
	UserID    string                   `json:"user_id"`
	HeroID    string                   `json:"hero_id"`
	Level     int                      `json:"level"`
	Stars     int                      `json:"stars"`
	Gear      map[string]GearSelection `json:"gear,omitempty"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Conversation is one advisor Q&A record. Curation flags mark records
// as export candidates; they carry no ranking semantics.
type Conversation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Rating      int       `json:"rating"`
	Curated     bool      `json:"curated"`
	GoodExample bool      `json:"good_example"`
	Tokens      int       `json:"tokens"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayType controls where an announcement is surfaced in-game.
type DisplayType string

const (
	DisplayBanner DisplayType = "banner"
	DisplayModal  DisplayType = "modal"
	DisplayFeed   DisplayType = "feed"
)

// Announcement is an admin-published notice. Body is HTML as authored
// in the CMS; the terminal renders it through the richtext converter.
type Announcement struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	Display   DisplayType `json:"display_type"`
	Priority  int         `json:"priority"`
	Active    bool        `json:"active"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	Author    string      `json:"author,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Expired reports whether the announcement is past its expiry.
func (a Announcement) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// FeedbackStatus is the triage state of a feedback item.
type FeedbackStatus string

const (
	FeedbackNew       FeedbackStatus = "new"
	FeedbackReviewing FeedbackStatus = "reviewing"
	FeedbackResolved  FeedbackStatus = "resolved"
	FeedbackDismissed FeedbackStatus = "dismissed"
)

// FeedbackItem is a user-submitted report in the admin inbox.
type FeedbackItem struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Category   string         `json:"category"`
	Message    string         `json:"message"`
	Status     FeedbackStatus `json:"status"`
	AdminNotes string         `json:"admin_notes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ErrorStatus is the triage state of an error report.
type ErrorStatus string

const (
	ErrorNew           ErrorStatus = "new"
	ErrorInvestigating ErrorStatus = "investigating"
	ErrorFixed         ErrorStatus = "fixed"
	ErrorIgnored       ErrorStatus = "ignored"
)

// ErrorReport is an aggregated client error in the admin inbox.
type ErrorReport struct {
	ID       string      `json:"id"`
	Source   string      `json:"source"`
	Message  string      `json:"message"`
	Stack    string      `json:"stack,omitempty"`
	Status   ErrorStatus `json:"status"`
	Count    int         `json:"count"`
	LastSeen time.Time   `json:"last_seen"`
}

// Thread is an admin-user message thread.
type Thread struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Subject       string    `json:"subject"`
	Status        string    `json:"status"`
	Unread        int       `json:"unread"`
	LastMessageAt time.Time `json:"last_message_at"`
}

const (
	ThreadOpen   = "open"
	ThreadClosed = "closed"
)

// ThreadMessage is a single message inside a thread.
type ThreadMessage struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Sender    string    `json:"sender_role"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// AIProvider is an advisor backend configuration row. The server never
// returns the real key; KeyHint is a redacted fingerprint for display.
type AIProvider struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Model       string `json:"model"`
	Endpoint    string `json:"endpoint"`
	Enabled     bool   `json:"enabled"`
	Priority    int    `json:"priority"`
	DailyBudget int    `json:"daily_token_budget"`
	KeyHint     string `json:"key_hint,omitempty"`
}

// GameFile is a raw game-data document. Content is present only on
// single-file fetches; listings omit it. Version increments on every
// server-side save and guards concurrent edits.
type GameFile struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Size        int64           `json:"size"`
	Version     int             `json:"version"`
	ModifiedAt  time.Time       `json:"modified_at"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// Guide is a static informational page served by the backend CMS.
type Guide struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProviderHealth is a dashboard health row for one provider.
type ProviderHealth struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	LatencyMS int    `json:"latency_ms"`
}

// DashboardStats is the admin overview payload.
type DashboardStats struct {
	Users         int              `json:"users"`
	ActiveUsers   int              `json:"active_users"`
	Conversations int              `json:"conversations"`
	Curated       int              `json:"curated"`
	OpenFeedback  int              `json:"open_feedback"`
	OpenErrors    int              `json:"open_errors"`
	OpenThreads   int              `json:"open_threads"`
	Providers     []ProviderHealth `json:"providers"`
	RecentSignups []User           `json:"recent_signups"`
}

// LoginResult is the payload of a successful login or impersonation.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
