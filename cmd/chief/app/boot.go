package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"chiefkit/internal/api"
	"chiefkit/internal/config"
	"chiefkit/internal/demo"
	"chiefkit/internal/logging"
	"chiefkit/internal/session"
	"chiefkit/internal/store"
	"chiefkit/internal/types"
	"chiefkit/internal/usage"
)

// bootResult is everything the boot command hands back to the model.
type bootResult struct {
	client   *api.Client
	demoSrv  *demo.Server
	store    *store.LocalStore
	tracker  *usage.Tracker
	demoMode bool
	offline  bool

	heroes []types.Hero
	gear   []types.GearItem

	// Non-fatal observations, first one becomes the banner.
	notices []string
}

// newAPIClient builds a client against baseURL with the configured
// timeouts. The session doubles as the token source for the TUI; CLI
// paths pass a StaticToken instead.
func newAPIClient(cfg *config.Config, baseURL string, tokens api.TokenSource) *api.Client {
	return api.NewClientWithConfig(api.Config{
		BaseURL:        baseURL,
		Timeout:        cfg.GetRequestTimeout(),
		AdvisorTimeout: cfg.GetAdvisorTimeout(),
	}, tokens)
}

// performBoot runs the staged startup off the UI thread: local cache,
// backend selection (real, demo, or demo fallback), session restore
// and dev auto-login, then the catalog prefetch. Stage names stream to
// the splash screen through the status channel.
func performBoot(cfg *config.Config, sess *session.Session, statusCh chan<- string) tea.Cmd {
	report := func(stage string) {
		logging.Boot("%s", stage)
		select {
		case statusCh <- stage:
		default:
		}
	}

	return func() tea.Msg {
		defer close(statusCh)

		result := &bootResult{}

		// Local cache first so later stages can fall back to it.
		report("Opening local cache...")
		if st, err := store.NewLocalStore(cfg.Cache.DatabasePath); err != nil {
			logging.BootError("Local cache unavailable: %v", err)
			result.notices = append(result.notices, fmt.Sprintf("local cache unavailable (%v)", err))
		} else {
			result.store = st
			result.tracker = usage.NewTracker(st)
		}

		// Pick the backend.
		if cfg.Demo.Enabled {
			report("Starting demo service...")
			srv := demo.NewServer()
			baseURL, err := srv.Start()
			if err != nil {
				return bootDoneMsg{err: fmt.Errorf("start demo service: %w", err)}
			}
			result.demoSrv = srv
			result.demoMode = true
			result.client = newAPIClient(cfg, baseURL, sess)
		} else {
			result.client = newAPIClient(cfg, cfg.API.BaseURL, sess)

			report("Checking backend health...")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.GetHealthTimeout())
			err := result.client.Health(ctx)
			cancel()
			if err != nil {
				logging.BootWarn("Backend health probe failed: %v", err)
				if cfg.Demo.Fallback {
					report("Backend unreachable, starting demo service...")
					srv := demo.NewServer()
					baseURL, startErr := srv.Start()
					if startErr != nil {
						return bootDoneMsg{err: fmt.Errorf("backend unreachable and demo fallback failed: %w", startErr)}
					}
					result.demoSrv = srv
					result.demoMode = true
					result.client = newAPIClient(cfg, baseURL, sess)
					result.notices = append(result.notices, "backend unreachable, running against the demo service")
				} else {
					result.offline = true
					result.notices = append(result.notices, "backend unreachable, showing cached data where available")
				}
			}
		}

		// Session restore: a token stored by `chief login`, then dev
		// auto-login. Neither applies in demo mode, whose accounts are
		// its own.
		if !result.offline && !result.demoMode {
			if userCfg, err := config.LoadUserConfig(config.DefaultUserConfigPath()); err == nil && userCfg.Token != "" {
				report("Restoring session...")
				probe := newAPIClient(cfg, result.client.BaseURL(), api.StaticToken(userCfg.Token))
				ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
				me, err := probe.Me(ctx)
				cancel()
				if err == nil {
					sess.Establish(&types.LoginResult{Token: userCfg.Token, User: *me})
				} else {
					logging.BootWarn("Stored session rejected: %v", err)
					result.notices = append(result.notices, "stored session expired, sign in again")
				}
			}

			if !sess.Authenticated() {
				if creds, ok := session.DevAutoLogin(); ok {
					report("Signing in...")
					ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
					login, err := result.client.Login(ctx, creds.Email, creds.Password)
					cancel()
					if err == nil {
						sess.Establish(login)
					} else {
						logging.BootWarn("Dev auto-login failed: %v", err)
						result.notices = append(result.notices, fmt.Sprintf("dev auto-login failed (%v)", err))
					}
				}
			}
		}

		// Catalog prefetch, cache on success, cache fallback when the
		// backend is out of reach.
		if sess.Authenticated() && !result.offline {
			report("Prefetching catalog...")
			heroes, gear, err := fetchCatalog(result.client, cfg)
			if err != nil {
				logging.BootWarn("Catalog prefetch failed: %v", err)
				result.heroes, result.gear = cachedCatalog(result.store)
				if len(result.heroes) > 0 {
					result.notices = append(result.notices, "catalog fetch failed, using cached copy")
				}
			} else {
				result.heroes, result.gear = heroes, gear
				if result.store != nil {
					report("Caching catalog...")
					if err := result.store.SaveHeroes(heroes); err != nil {
						logging.StoreError("Hero cache write failed: %v", err)
					}
					if err := result.store.SaveGear(gear); err != nil {
						logging.StoreError("Gear cache write failed: %v", err)
					}
				}
			}
		} else if result.offline {
			result.heroes, result.gear = cachedCatalog(result.store)
		}

		logging.Boot("Boot complete (demo=%v offline=%v authenticated=%v)",
			result.demoMode, result.offline, sess.Authenticated())
		return bootDoneMsg{result: result}
	}
}

// fetchCatalog loads heroes and gear in parallel.
func fetchCatalog(client *api.Client, cfg *config.Config) ([]types.Hero, []types.GearItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
	defer cancel()

	var (
		heroes []types.Hero
		gear   []types.GearItem
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		heroes, err = client.Heroes(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		gear, err = client.Gear(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return heroes, gear, nil
}

// cachedCatalog reads the last cached catalog, empty when there is no
// cache or it has never been written.
func cachedCatalog(st *store.LocalStore) ([]types.Hero, []types.GearItem) {
	if st == nil {
		return nil, nil
	}
	heroes, _, err := st.LoadHeroes()
	if err != nil {
		logging.StoreDebug("Hero cache read failed: %v", err)
	}
	gear, _, err := st.LoadGear()
	if err != nil {
		logging.StoreDebug("Gear cache read failed: %v", err)
	}
	return heroes, gear
}
