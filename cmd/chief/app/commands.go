package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"chiefkit/cmd/chief/ui"
	"chiefkit/internal/api"
	"chiefkit/internal/config"
	"chiefkit/internal/export"
	"chiefkit/internal/logging"
	"chiefkit/internal/types"
)

// Every network call the UI triggers runs through one of these
// commands. They snapshot the client at creation time, so a demo
// fallback mid-flight only affects later commands.

func (m Model) reqCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.cfg.GetRequestTimeout())
}

// =============================================================================
// AUTH
// =============================================================================

func (m Model) loginCmd(email, password string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		result, err := client.Login(ctx, email, password)
		return loginDoneMsg{email: email, result: result, err: err}
	}
}

func (m Model) impersonateCmd(userID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		result, err := client.Impersonate(ctx, userID)
		return impersonationMsg{result: result, err: err}
	}
}

// stopImpersonationCmd tells the backend, then pops the local stack.
// The local pop happens even when the server call fails; the suspended
// token is the one that still works.
func (m Model) stopImpersonationCmd() tea.Cmd {
	client := m.client
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		if err := client.StopImpersonation(ctx); err != nil {
			logging.SessionWarn("Server-side impersonation stop failed: %v", err)
		}
		cancel()
		user, err := sess.StopImpersonation()
		return impersonationStoppedMsg{user: user, err: err}
	}
}

// =============================================================================
// PAGE LOADS
// =============================================================================

func (m Model) loadDashboardCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		stats, err := client.DashboardStats(ctx)
		return dashboardLoadedMsg{stats: stats, err: err}
	}
}

// loadRosterCmd fetches catalog and roster entries in parallel,
// falling back to the cached catalog when the backend is out of reach.
func (m Model) loadRosterCmd() tea.Cmd {
	client := m.client
	st := m.res.store
	cfg := m.cfg
	haveHeroes := m.heroes
	haveGear := m.gear
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
		defer cancel()

		msg := rosterLoadedMsg{heroes: haveHeroes, gear: haveGear}

		g, gctx := errgroup.WithContext(ctx)
		if len(msg.heroes) == 0 {
			g.Go(func() error {
				heroes, err := client.Heroes(gctx)
				if err != nil {
					return err
				}
				msg.heroes = heroes
				return nil
			})
			g.Go(func() error {
				gear, err := client.Gear(gctx)
				if err != nil {
					return err
				}
				msg.gear = gear
				return nil
			})
		}
		g.Go(func() error {
			entries, err := client.Roster(gctx)
			if err != nil {
				return err
			}
			msg.entries = entries
			return nil
		})
		if err := g.Wait(); err != nil {
			if len(msg.heroes) == 0 {
				msg.heroes, msg.gear = cachedCatalog(st)
			}
			msg.offline = len(msg.heroes) > 0
			msg.err = err
			return msg
		}

		if st != nil && len(msg.heroes) > 0 {
			_ = st.SaveHeroes(msg.heroes)
			_ = st.SaveGear(msg.gear)
		}
		return msg
	}
}

func (m Model) loadAdvisorCmd() tea.Cmd {
	client := m.client
	st := m.res.store
	limit := m.cfg.Advisor.HistoryLimit
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		history, err := client.AdvisorHistory(ctx)
		if err != nil {
			if st != nil {
				if cached, cacheErr := st.LoadConversations(limit); cacheErr == nil && len(cached) > 0 {
					return advisorLoadedMsg{conversations: cached, cached: true, err: err}
				}
			}
			return advisorLoadedMsg{err: err}
		}
		if st != nil {
			if err := st.SaveConversations(history); err != nil {
				logging.StoreError("Conversation cache write failed: %v", err)
			}
		}
		return advisorLoadedMsg{conversations: history}
	}
}

func (m Model) loadGuidesCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		guides, err := client.Guides(ctx)
		return guidesLoadedMsg{guides: guides, err: err}
	}
}

// loadAnnouncementsCmd loads the full list for moderators and the
// active feed for everyone else.
func (m Model) loadAnnouncementsCmd() tea.Cmd {
	client := m.client
	managing := m.sess.IsModerator()
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		var (
			announcements []types.Announcement
			err           error
		)
		if managing {
			announcements, err = client.AllAnnouncements(ctx)
		} else {
			announcements, err = client.Announcements(ctx)
		}
		return announcementsLoadedMsg{announcements: announcements, err: err}
	}
}

// loadInboxCmd pulls all three triage feeds in parallel.
func (m Model) loadInboxCmd() tea.Cmd {
	client := m.client
	cfg := m.cfg
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
		defer cancel()

		var msg inboxLoadedMsg
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			feedback, err := client.Feedback(gctx)
			if err != nil {
				return err
			}
			msg.feedback = feedback
			return nil
		})
		g.Go(func() error {
			reports, err := client.ErrorReports(gctx)
			if err != nil {
				return err
			}
			msg.reports = reports
			return nil
		})
		g.Go(func() error {
			threads, err := client.Threads(gctx)
			if err != nil {
				return err
			}
			msg.threads = threads
			return nil
		})
		msg.err = g.Wait()
		return msg
	}
}

func (m Model) loadUsersCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		users, err := client.Users(ctx)
		return usersLoadedMsg{users: users, err: err}
	}
}

func (m Model) loadConversationsCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		conversations, err := client.Conversations(ctx)
		return conversationsLoadedMsg{conversations: conversations, err: err}
	}
}

// loadGameFilesCmd lists server files and local draft markers.
func (m Model) loadGameFilesCmd() tea.Cmd {
	client := m.client
	st := m.res.store
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		files, err := client.GameFiles(ctx)
		if err != nil {
			return gameFilesLoadedMsg{err: err}
		}
		drafts := map[string]bool{}
		if st != nil {
			if list, draftErr := st.ListDrafts(); draftErr == nil {
				for _, d := range list {
					drafts[d.Name] = true
				}
			}
		}
		return gameFilesLoadedMsg{files: files, drafts: drafts}
	}
}

func (m Model) loadProvidersCmd() tea.Cmd {
	client := m.client
	st := m.res.store
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		providers, err := client.Providers(ctx)
		if err != nil {
			return providersLoadedMsg{err: err}
		}
		msg := providersLoadedMsg{providers: providers}
		if st != nil {
			from := time.Now().UTC().AddDate(0, 0, -6).Format("2006-01-02")
			if usageRows, usageErr := st.UsageSince(from); usageErr == nil {
				msg.usage = usageRows
			}
		}
		return msg
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

func (m Model) saveRosterEntryCmd(entry types.RosterEntry) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		saved, err := client.SaveRosterEntry(ctx, entry)
		return rosterSavedMsg{entry: saved, err: err}
	}
}

func (m Model) deleteRosterEntryCmd(heroID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		err := client.DeleteRosterEntry(ctx, heroID)
		return rosterDeletedMsg{heroID: heroID, err: err}
	}
}

// askAdvisorCmd sends the question with the current roster as context
// and records token usage on success.
func (m Model) askAdvisorCmd(question string) tea.Cmd {
	client := m.client
	tracker := m.tracker
	roster := m.rosterEntries
	timeout := m.cfg.GetAdvisorTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		conversation, err := client.Advise(ctx, question, roster)
		if err == nil && tracker != nil {
			tracker.Record(conversation.Provider, conversation.Tokens)
		}
		return advisorAnswerMsg{conversation: conversation, err: err}
	}
}

func (m Model) rateConversationCmd(id string, rating int) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		err := client.RateConversation(ctx, id, rating)
		return conversationRatedMsg{id: id, rating: rating, err: err}
	}
}

func (m Model) saveUserCmd(msg ui.SaveUserMsg) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		req := api.UserRequest{
			Email:    msg.Email,
			Name:     msg.Name,
			Role:     msg.Role,
			Active:   msg.Active,
			AIAccess: msg.AIAccess,
			Password: msg.Password,
		}
		var (
			user *types.User
			err  error
		)
		if msg.ID == "" {
			user, err = client.CreateUser(ctx, req)
		} else {
			user, err = client.UpdateUser(ctx, msg.ID, req)
		}
		return userSavedMsg{user: user, err: err}
	}
}

func (m Model) deleteUserCmd(id string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		err := client.DeleteUser(ctx, id)
		return userDeletedMsg{id: id, err: err}
	}
}

func (m Model) cycleAccessCmd(userID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		user, err := client.CycleAIAccess(ctx, userID)
		return accessCycledMsg{user: user, err: err}
	}
}

func (m Model) setCurationCmd(id string, curated, goodExample bool) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		conversation, err := client.SetCuration(ctx, id, curated, goodExample)
		return curationSetMsg{conversation: conversation, err: err}
	}
}

// exportCuratedCmd pulls the curated set and writes it as JSONL under
// the user config directory.
func (m Model) exportCuratedCmd() tea.Cmd {
	client := m.client
	actor := m.sess.ActorEmail()
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		conversations, err := client.ExportCurated(ctx)
		if err != nil {
			return exportDoneMsg{err: err}
		}

		dir := filepath.Join(config.UserConfigDir(), "exports")
		path := filepath.Join(dir, fmt.Sprintf("curated-%s.jsonl", time.Now().Format("20060102-150405")))
		count, err := export.WriteFile(path, conversations)
		logging.AuditAsActor(actor, "").ExportRun(path, count, err == nil, errText(err))
		return exportDoneMsg{path: path, count: count, err: err}
	}
}

func (m Model) saveAnnouncementCmd(msg ui.SaveAnnouncementMsg) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		req := api.AnnouncementRequest{
			Title:    msg.Title,
			Body:     msg.Body,
			Display:  msg.Display,
			Priority: msg.Priority,
			Active:   msg.Active,
		}
		if msg.ExpiresAt != "" {
			expiry := msg.ExpiresAt
			req.ExpiresAt = &expiry
		}
		var (
			ann *types.Announcement
			err error
		)
		if msg.ID == "" {
			ann, err = client.CreateAnnouncement(ctx, req)
		} else {
			ann, err = client.UpdateAnnouncement(ctx, msg.ID, req)
		}
		return announcementSavedMsg{announcement: ann, err: err}
	}
}

func (m Model) deleteAnnouncementCmd(id string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		err := client.DeleteAnnouncement(ctx, id)
		return announcementDeletedMsg{id: id, err: err}
	}
}

func (m Model) updateFeedbackCmd(id string, status types.FeedbackStatus, notes string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		item, err := client.UpdateFeedback(ctx, id, status, notes)
		return feedbackUpdatedMsg{item: item, err: err}
	}
}

// bulkFeedbackCmd applies one status to every listed item, stopping at
// the first failure but reporting how far it got.
func (m Model) bulkFeedbackCmd(ids []string, status types.FeedbackStatus) tea.Cmd {
	client := m.client
	cfg := m.cfg
	return func() tea.Msg {
		updated := 0
		for _, id := range ids {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
			_, err := client.UpdateFeedback(ctx, id, status, "")
			cancel()
			if err != nil {
				return bulkFeedbackDoneMsg{updated: updated, err: err}
			}
			updated++
		}
		return bulkFeedbackDoneMsg{updated: updated}
	}
}

func (m Model) updateErrorReportCmd(id string, status types.ErrorStatus) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		report, err := client.UpdateErrorReport(ctx, id, status)
		return errorReportUpdatedMsg{report: report, err: err}
	}
}

func (m Model) openThreadCmd(thread types.Thread) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		messages, err := client.ThreadMessages(ctx, thread.ID)
		return threadMessagesMsg{thread: &thread, messages: messages, err: err}
	}
}

func (m Model) replyThreadCmd(threadID, body string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		_, err := client.ReplyThread(ctx, threadID, body)
		return threadRepliedMsg{threadID: threadID, err: err}
	}
}

func (m Model) closeThreadCmd(threadID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		thread, err := client.CloseThread(ctx, threadID)
		return threadClosedMsg{thread: thread, err: err}
	}
}

// openGameFileCmd fetches the server copy and any local draft.
func (m Model) openGameFileCmd(name string) tea.Cmd {
	client := m.client
	st := m.res.store
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		file, err := client.GameFile(ctx, name)
		if err != nil {
			return gameFileOpenedMsg{err: err}
		}
		var draft *ui.DraftInfo
		if st != nil {
			if d, draftErr := st.LoadDraft(name); draftErr == nil && d != nil {
				draft = &ui.DraftInfo{
					Content:     d.Content,
					BaseVersion: d.BaseVersion,
					UpdatedAt:   d.UpdatedAt,
				}
			}
		}
		return gameFileOpenedMsg{file: file, draft: draft}
	}
}

// saveGameFileCmd writes the edit back with its base version. On a
// version conflict the current server version rides back so the editor
// can explain what to do. A successful save retires the local draft.
func (m Model) saveGameFileCmd(msg ui.SaveGameFileMsg) tea.Cmd {
	client := m.client
	st := m.res.store
	dir := m.cfg.GameData.DraftsDir
	actor := m.sess.ActorEmail()
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		file, err := client.SaveGameFile(ctx, msg.Name, msg.Content, msg.BaseVersion)
		logging.AuditAsActor(actor, "").GameFileSave(msg.Name, msg.BaseVersion, err == nil, errText(err))
		if err != nil {
			if api.IsConflict(err) {
				if current, fetchErr := client.GameFile(ctx, msg.Name); fetchErr == nil {
					return gameFileConflictMsg{name: msg.Name, serverVersion: current.Version}
				}
			}
			return gameFileSavedMsg{err: err}
		}
		if st != nil {
			if delErr := st.DeleteDraft(msg.Name); delErr != nil {
				logging.StoreDebug("Draft cleanup after save failed for %s: %v", msg.Name, delErr)
			}
			if rmErr := os.Remove(draftFilePath(dir, msg.Name)); rmErr != nil && !os.IsNotExist(rmErr) {
				logging.GameDataDebug("Draft mirror remove failed for %s: %v", msg.Name, rmErr)
			}
		}
		return gameFileSavedMsg{file: file}
	}
}

// saveDraftCmd persists the draft in the store and mirrors it to the
// drafts directory for external editors.
func (m Model) saveDraftCmd(msg ui.SaveDraftMsg) tea.Cmd {
	st := m.res.store
	dir := m.cfg.GameData.DraftsDir
	watcher := m.res.watcher
	return func() tea.Msg {
		if st == nil {
			return draftSavedMsg{name: msg.Name, err: fmt.Errorf("local cache unavailable")}
		}
		if err := st.SaveDraft(msg.Name, msg.Content, msg.BaseVersion); err != nil {
			return draftSavedMsg{name: msg.Name, err: err}
		}
		path := draftFilePath(dir, msg.Name)
		if watcher != nil {
			watcher.MarkSelfWrite(path)
		}
		if err := os.MkdirAll(dir, 0o755); err == nil {
			if err := os.WriteFile(path, msg.Content, 0o644); err != nil {
				logging.GameDataError("Draft mirror write failed for %s: %v", msg.Name, err)
			}
		}
		return draftSavedMsg{name: msg.Name}
	}
}

func (m Model) discardDraftCmd(name string) tea.Cmd {
	st := m.res.store
	dir := m.cfg.GameData.DraftsDir
	return func() tea.Msg {
		if st == nil {
			return draftDiscardedMsg{name: name}
		}
		err := st.DeleteDraft(name)
		if rmErr := os.Remove(draftFilePath(dir, name)); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.GameDataDebug("Draft mirror remove failed for %s: %v", name, rmErr)
		}
		return draftDiscardedMsg{name: name, err: err}
	}
}

// syncDraftCmd folds an externally edited mirror file back into the
// stored draft, keeping the draft's base version.
func (m Model) syncDraftCmd(name string) tea.Cmd {
	st := m.res.store
	dir := m.cfg.GameData.DraftsDir
	return func() tea.Msg {
		if st == nil {
			return draftSyncedMsg{name: name}
		}
		content, err := os.ReadFile(draftFilePath(dir, name))
		if err != nil {
			return draftSyncedMsg{name: name, err: err}
		}
		existing, err := st.LoadDraft(name)
		if err != nil || existing == nil {
			// A brand-new file in the drafts directory with no stored
			// draft has no base version to anchor to; ignore it.
			return draftSyncedMsg{name: name}
		}
		if string(existing.Content) == string(content) {
			return draftSyncedMsg{name: name}
		}
		err = st.SaveDraft(name, content, existing.BaseVersion)
		logging.GameData("Draft %s updated from external edit", name)
		return draftSyncedMsg{name: name, err: err}
	}
}

func (m Model) saveProviderCmd(provider types.AIProvider) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := m.reqCtx()
		defer cancel()
		saved, err := client.SaveProvider(ctx, provider)
		return providerSavedMsg{provider: saved, err: err}
	}
}

func draftFilePath(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
