// Package usage aggregates advisor token consumption for the provider
// status page and the status command. Counters persist in the local
// store so numbers survive restarts.
package usage

import (
	"sort"
	"time"

	"chiefkit/internal/logging"
	"chiefkit/internal/store"
)

const dayFormat = "2006-01-02"

// Tracker records and summarizes advisor usage. The store is the
// synchronization point; Tracker itself is stateless.
type Tracker struct {
	store *store.LocalStore
}

func NewTracker(st *store.LocalStore) *Tracker {
	return &Tracker{store: st}
}

// Record notes one advisor exchange against a provider. Failures only
// cost a counter, so they log instead of propagating.
func (t *Tracker) Record(provider string, tokens int) {
	if provider == "" {
		provider = "unknown"
	}
	day := time.Now().UTC().Format(dayFormat)
	if err := t.store.RecordAdvisorUsage(day, provider, tokens); err != nil {
		logging.AdvisorError("Failed to record usage for %s: %v", provider, err)
	}
}

// ProviderStats is the rollup for one provider over the summary
// window.
type ProviderStats struct {
	Provider       string
	Questions      int
	Tokens         int
	TodayQuestions int
	TodayTokens    int
}

// Summary aggregates usage over a trailing window of days.
type Summary struct {
	Days           int
	Providers      []ProviderStats
	TotalQuestions int
	TotalTokens    int
}

// Summarize rolls up the last `days` days (including today), heaviest
// provider first.
func (t *Tracker) Summarize(days int) (Summary, error) {
	if days <= 0 {
		days = 7
	}

	now := time.Now().UTC()
	today := now.Format(dayFormat)
	from := now.AddDate(0, 0, -(days - 1)).Format(dayFormat)

	rows, err := t.store.UsageSince(from)
	if err != nil {
		return Summary{}, err
	}

	byProvider := make(map[string]*ProviderStats)
	summary := Summary{Days: days}

	for _, row := range rows {
		stats, ok := byProvider[row.Provider]
		if !ok {
			stats = &ProviderStats{Provider: row.Provider}
			byProvider[row.Provider] = stats
		}
		stats.Questions += row.Questions
		stats.Tokens += row.Tokens
		if row.Day == today {
			stats.TodayQuestions += row.Questions
			stats.TodayTokens += row.Tokens
		}
		summary.TotalQuestions += row.Questions
		summary.TotalTokens += row.Tokens
	}

	for _, stats := range byProvider {
		summary.Providers = append(summary.Providers, *stats)
	}
	sort.Slice(summary.Providers, func(i, j int) bool {
		if summary.Providers[i].Tokens != summary.Providers[j].Tokens {
			return summary.Providers[i].Tokens > summary.Providers[j].Tokens
		}
		return summary.Providers[i].Provider < summary.Providers[j].Provider
	})

	return summary, nil
}

// TodayTokens returns today's token total for one provider, for the
// budget bar on the providers page.
func (t *Tracker) TodayTokens(provider string) int {
	today := time.Now().UTC().Format(dayFormat)
	rows, err := t.store.UsageSince(today)
	if err != nil {
		logging.AdvisorError("Failed to read today's usage: %v", err)
		return 0
	}
	for _, row := range rows {
		if row.Provider == provider {
			return row.Tokens
		}
	}
	return 0
}
