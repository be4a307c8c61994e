package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"chiefkit/cmd/chief/app"
	"chiefkit/cmd/chief/ui"
	"chiefkit/internal/api"
	"chiefkit/internal/config"
	"chiefkit/internal/export"
	"chiefkit/internal/logging"
	"chiefkit/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var (
	// Global flags
	configPath string
	apiFlag    string
	demoFlag   bool
	debugFlag  bool
	themeFlag  string

	// Export flags
	exportOut string

	// Logger for the scripted subcommands. The interactive UI runs its
	// own category loggers instead.
	logger *zap.Logger
)

// rootCmd launches the interactive client when called bare.
var rootCmd = &cobra.Command{
	Use:   "chief",
	Short: "chief - terminal companion and admin console for chiefkit",
	Long: `chief is the terminal face of chiefkit: hero roster and gear
planning, the AI advisor, announcements, and the moderation console,
all against the same backend the mobile overlay talks to.

Run without arguments to start the interactive interface. Subcommands
cover scripted use: login, catalog sync, curated exports, status.

Pass --demo to run against a built-in demo service with seeded
accounts instead of a real backend.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for interactive mode (it has its own UI)
		if cmd.Use == "chief" && cmd.CalledAs() == "chief" {
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if debugFlag {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

// loginCmd verifies credentials and stores the session token.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session token",
	Long: `Prompts for credentials, verifies them against the backend, and
stores the token in .chief/config.json for later runs and for the
sync and export subcommands.`,
	RunE: runLogin,
}

// logoutCmd drops the stored session.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the stored session token",
	RunE:  runLogout,
}

// statusCmd reports session, backend, and cache state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session, backend, and cache status",
	RunE:  runStatus,
}

// syncCmd refreshes the local catalog cache.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the local hero and gear catalog cache",
	Long: `Fetches the hero and gear catalogs from the backend and stores
them in the local cache, so the roster planner keeps working when the
backend is unreachable. Requires a stored session (chief login).`,
	RunE: runSync,
}

// exportCmd writes curated conversations as JSON Lines.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export curated advisor conversations as JSON Lines",
	Long: `Fetches the curated conversation set and writes one JSON object
per line, the format the fine-tuning pipeline consumes. The server
requires an admin session. Pass --out - to write to stdout.

Example:
  chief export --out curated.jsonl`,
	RunE: runExport,
}

// versionCmd prints build info.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE:  runVersion,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "chiefkit.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&demoFlag, "demo", false, "Run against the built-in demo service")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&themeFlag, "theme", "", "Color theme: dark, light, or auto")

	// Export flags
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file, or - for stdout (required)")
	exportCmd.MarkFlagRequired("out")

	// Add commands to root
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfig merges the YAML config with the stored user
// preferences and the command-line flags. Precedence, lowest to
// highest: built-in defaults, YAML file, environment, the backend URL
// of the last login, flags.
func resolveConfig() (*config.Config, *config.UserConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	userCfg, err := config.LoadUserConfig(config.DefaultUserConfigPath())
	if err != nil {
		return nil, nil, err
	}

	if userCfg.APIBaseURL != "" {
		cfg.API.BaseURL = userCfg.APIBaseURL
	}
	if apiFlag != "" {
		cfg.API.BaseURL = apiFlag
	}
	if demoFlag {
		cfg.Demo.Enabled = true
	}
	if debugFlag {
		logging.ForceDebug()
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, userCfg, nil
}

// newCLIClient builds an API client for one-shot subcommand calls.
func newCLIClient(cfg *config.Config, token string) *api.Client {
	return api.NewClientWithConfig(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.GetRequestTimeout(),
	}, api.StaticToken(token))
}

// runInteractive starts the full-screen UI.
func runInteractive() error {
	cfg, userCfg, err := resolveConfig()
	if err != nil {
		return err
	}

	theme := themeFlag
	if theme == "" {
		theme = userCfg.Theme
	}
	styles := ui.NewStyles(ui.ThemeByName(theme))

	return app.Run(cfg, styles)
}

// runLogin prompts for credentials and stores the resulting token.
func runLogin(cmd *cobra.Command, args []string) error {
	cfg, userCfg, err := resolveConfig()
	if err != nil {
		return err
	}
	if cfg.Demo.Enabled {
		return fmt.Errorf("demo accounts only exist while the demo service runs; start chief --demo instead")
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}
	email = strings.TrimSpace(email)

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	client := newCLIClient(cfg, "")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
	defer cancel()

	result, err := client.Login(ctx, email, string(password))
	if err != nil {
		if api.IsUnauthorized(err) {
			return fmt.Errorf("wrong email or password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	userCfg.Token = result.Token
	userCfg.Email = result.User.Email
	userCfg.APIBaseURL = cfg.API.BaseURL
	if err := userCfg.Save(config.DefaultUserConfigPath()); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	logger.Debug("session stored",
		zap.String("email", result.User.Email),
		zap.String("backend", cfg.API.BaseURL))
	fmt.Printf("Signed in as %s (%s)\n", result.User.Email, result.User.Role)
	return nil
}

// runLogout clears the stored token. The server side has nothing to
// revoke; tokens simply expire.
func runLogout(cmd *cobra.Command, args []string) error {
	path := config.DefaultUserConfigPath()
	userCfg, err := config.LoadUserConfig(path)
	if err != nil {
		return err
	}
	if userCfg.Token == "" {
		fmt.Println("No stored session")
		return nil
	}

	email := userCfg.Email
	if err := userCfg.ClearToken(path); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	initFileLogging()
	logging.AuditAsActor(email, "").Logout(email)
	fmt.Printf("Signed out %s\n", email)
	return nil
}

// runStatus prints a human-readable health summary.
func runStatus(cmd *cobra.Command, args []string) error {
	cfg, userCfg, err := resolveConfig()
	if err != nil {
		return err
	}

	fmt.Println("chief status")
	fmt.Println("============")
	fmt.Printf("Version: %s\n", cfg.Version)
	fmt.Printf("Backend: %s\n", cfg.API.BaseURL)
	fmt.Println()

	if userCfg.Token != "" {
		fmt.Printf("✓ Stored session for %s\n", userCfg.Email)
	} else {
		fmt.Println("✗ No stored session (run: chief login)")
	}

	client := newCLIClient(cfg, userCfg.Token)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
	defer cancel()
	if err := client.Health(ctx); err != nil {
		fmt.Printf("✗ Backend unreachable: %v\n", err)
	} else {
		fmt.Println("✓ Backend healthy")
	}

	st, err := store.NewLocalStore(cfg.Cache.DatabasePath)
	if err != nil {
		fmt.Printf("✗ Local cache unavailable: %v\n", err)
	} else {
		defer st.Close()
		ttl := cfg.GetCatalogTTL()
		for _, kind := range []string{"heroes", "gear"} {
			if st.CatalogStale(kind, ttl) {
				fmt.Printf("✗ %s catalog stale or missing (run: chief sync)\n", kind)
			} else {
				fmt.Printf("✓ %s catalog fresh\n", kind)
			}
		}
	}

	initFileLogging()
	if dir := logging.LogsDir(); dir != "" {
		fmt.Printf("Logs: %s\n", dir)
	} else {
		fmt.Println("Logs: disabled (enable debug_mode in .chief/config.json)")
	}
	return nil
}

// runSync refreshes the hero and gear catalog cache.
func runSync(cmd *cobra.Command, args []string) error {
	cfg, userCfg, err := resolveConfig()
	if err != nil {
		return err
	}
	if userCfg.Token == "" {
		return fmt.Errorf("no stored session; run: chief login")
	}

	client := newCLIClient(cfg, userCfg.Token)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
	defer cancel()

	heroes, err := client.Heroes(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch heroes: %w", err)
	}
	gear, err := client.Gear(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch gear: %w", err)
	}

	st, err := store.NewLocalStore(cfg.Cache.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open local cache: %w", err)
	}
	defer st.Close()
	if err := st.SaveHeroes(heroes); err != nil {
		return fmt.Errorf("failed to cache heroes: %w", err)
	}
	if err := st.SaveGear(gear); err != nil {
		return fmt.Errorf("failed to cache gear: %w", err)
	}

	logger.Info("catalog synced",
		zap.Int("heroes", len(heroes)),
		zap.Int("gear", len(gear)),
		zap.String("backend", cfg.API.BaseURL))
	fmt.Printf("Cached %d heroes and %d gear items\n", len(heroes), len(gear))
	return nil
}

// runExport fetches the curated conversation set and writes JSONL.
func runExport(cmd *cobra.Command, args []string) error {
	cfg, userCfg, err := resolveConfig()
	if err != nil {
		return err
	}
	if userCfg.Token == "" {
		return fmt.Errorf("no stored session; run: chief login")
	}

	client := newCLIClient(cfg, userCfg.Token)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
	defer cancel()

	conversations, err := client.ExportCurated(ctx)
	if err != nil {
		if api.IsForbidden(err) {
			return fmt.Errorf("the export endpoint requires an admin session")
		}
		return fmt.Errorf("export failed: %w", err)
	}

	if exportOut == "-" {
		_, err := export.Write(os.Stdout, conversations)
		return err
	}

	n, err := export.WriteFile(exportOut, conversations)
	initFileLogging()
	audit := logging.AuditAsActor(userCfg.Email, "")
	if err != nil {
		audit.ExportRun(exportOut, 0, false, err.Error())
		return err
	}
	audit.ExportRun(exportOut, n, true, "")

	logger.Info("export written", zap.Int("conversations", n), zap.String("path", exportOut))
	fmt.Printf("Wrote %d conversations to %s\n", n, exportOut)
	return nil
}

// runVersion prints the build fingerprint.
func runVersion(cmd *cobra.Command, args []string) error {
	version := config.DefaultConfig().Version
	if cfg, err := config.Load(configPath); err == nil {
		version = cfg.Version
	}
	fmt.Printf("chief %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}

// initFileLogging opens the category and audit loggers that the
// interactive UI uses, so file-backed audit events from subcommands
// land in the same trail. Failure leaves the command functional.
func initFileLogging() {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	if err := logging.Initialize(cwd); err != nil {
		return
	}
	_ = logging.InitAudit()
}
