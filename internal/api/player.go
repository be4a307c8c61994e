package api

import (
	"context"
	"fmt"

	"chiefkit/internal/types"
)

// =============================================================================
// CATALOG AND ROSTER
// =============================================================================

// Heroes lists the hero catalog.
func (c *Client) Heroes(ctx context.Context) ([]types.Hero, error) {
	var heroes []types.Hero
	if err := c.get(ctx, "/catalog/heroes", &heroes); err != nil {
		return nil, err
	}
	return heroes, nil
}

// Gear lists the gear catalog.
func (c *Client) Gear(ctx context.Context) ([]types.GearItem, error) {
	var gear []types.GearItem
	if err := c.get(ctx, "/catalog/gear", &gear); err != nil {
		return nil, err
	}
	return gear, nil
}

// Roster returns the current user's progression entries.
func (c *Client) Roster(ctx context.Context) ([]types.RosterEntry, error) {
	var roster []types.RosterEntry
	if err := c.get(ctx, "/roster", &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// SaveRosterEntry upserts progression for one hero.
func (c *Client) SaveRosterEntry(ctx context.Context, entry types.RosterEntry) (*types.RosterEntry, error) {
	if entry.HeroID == "" {
		return nil, fmt.Errorf("roster entry needs a hero id")
	}
	var saved types.RosterEntry
	if err := c.put(ctx, "/roster/"+entry.HeroID, entry, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteRosterEntry removes progression for one hero.
func (c *Client) DeleteRosterEntry(ctx context.Context, heroID string) error {
	return c.delete(ctx, "/roster/"+heroID)
}

// =============================================================================
// ADVISOR
// =============================================================================

type adviseRequest struct {
	Question string `json:"question"`
	// Roster context lets the backend ground the answer in the asking
	// player's actual progression.
	Roster []types.RosterEntry `json:"roster,omitempty"`
}

// Advise asks the AI advisor a question. The backend routes it to the
// active provider; this call uses the longer advisor timeout.
func (c *Client) Advise(ctx context.Context, question string, roster []types.RosterEntry) (*types.Conversation, error) {
	var conv types.Conversation
	req := adviseRequest{Question: question, Roster: roster}
	if err := c.do(ctx, c.advisorClient, "POST", "/advisor/ask", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// AdvisorHistory returns the current user's past conversations.
func (c *Client) AdvisorHistory(ctx context.Context) ([]types.Conversation, error) {
	var history []types.Conversation
	if err := c.get(ctx, "/advisor/history", &history); err != nil {
		return nil, err
	}
	return history, nil
}

type rateRequest struct {
	Rating int `json:"rating"`
}

// RateConversation records a thumbs up (1) or down (-1) on an answer.
func (c *Client) RateConversation(ctx context.Context, id string, rating int) error {
	return c.post(ctx, "/advisor/history/"+id+"/rate", rateRequest{Rating: rating}, nil)
}

// =============================================================================
// ANNOUNCEMENTS AND GUIDES
// =============================================================================

// Announcements lists announcements visible to the current user
// (active, unexpired).
func (c *Client) Announcements(ctx context.Context) ([]types.Announcement, error) {
	var items []types.Announcement
	if err := c.get(ctx, "/announcements", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Guides lists the published guide pages.
func (c *Client) Guides(ctx context.Context) ([]types.Guide, error) {
	var guides []types.Guide
	if err := c.get(ctx, "/guides", &guides); err != nil {
		return nil, err
	}
	return guides, nil
}

// Guide fetches a single guide with its full body.
func (c *Client) Guide(ctx context.Context, slug string) (*types.Guide, error) {
	var guide types.Guide
	if err := c.get(ctx, "/guides/"+slug, &guide); err != nil {
		return nil, err
	}
	return &guide, nil
}
