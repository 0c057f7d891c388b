package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/court-booker/internal/audit"
	"github.com/jonathan/court-booker/internal/browser"
	"github.com/jonathan/court-booker/internal/config"
	"github.com/jonathan/court-booker/internal/coordinator"
	"github.com/jonathan/court-booker/internal/credentials"
	"github.com/jonathan/court-booker/internal/notify"
	"github.com/jonathan/court-booker/internal/observability"
	"github.com/jonathan/court-booker/internal/schedule"
	"github.com/jonathan/court-booker/internal/screenshot"
	"github.com/jonathan/court-booker/internal/session"
	"github.com/jonathan/court-booker/internal/store"
	"github.com/jonathan/court-booker/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run a full booking pass for the computed target date",
	Long: `Computes the target date, selects that weekday's assignments, and drives one
browser session per account through login -> book -> checkout -> logout.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values. A run exits non-zero only on
infrastructure failure; individual booking misses are reported in the
summary, not as process errors.`,
	RunE: runBookingCmd,
}

var (
	runConfigPath     string
	runAssignments    string
	runDatabaseURL    string
	runLeadDays       int
	runWeekday        string
	runHeadless       bool
	runDryRun         bool
	runVerbose        bool
	runScreenshotDir  string
	runCredentialsKey string
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runAssignments, "assignments", "a", "", "Path to assignments CSV or JSON file (mutually exclusive with --db-url)")
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	runCommand.Flags().IntVar(&runLeadDays, "lead-days", 0, "How many days ahead the venue releases slots")
	runCommand.Flags().StringVarP(&runWeekday, "weekday", "w", "", "Only run when the target date falls on this weekday")
	runCommand.Flags().BoolVar(&runHeadless, "headless", true, "Run browsers without a display")
	runCommand.Flags().BoolVar(&runDryRun, "dry-run", false, "Use stub browsers; book nothing")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")
	runCommand.Flags().StringVar(&runScreenshotDir, "screenshot-dir", "", "Directory for step screenshots (disabled when empty)")

	// Credentials key can be passed as a flag, or read from env var CREDENTIALS_KEY
	runCommand.Flags().StringVar(&runCredentialsKey, "credentials-key", "", "Base64 key for encrypted credentials (optional, defaults to CREDENTIALS_KEY env var)")

	rootCmd.AddCommand(runCommand)
}

func runBookingCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	// Target date first: everything else hangs off it.
	target := schedule.ComputeTargetDate(time.Now(), cfg.LeadDays)
	printer := observability.NewPrinter(os.Stdout)
	if cfg.Verbose {
		printer.PrintTargetDate(target, cfg.LeadDays)
	}

	if cfg.Weekday != "" {
		day, err := schedule.NormalizeDay(cfg.Weekday)
		if err != nil {
			return fmt.Errorf("invalid --weekday: %w", err)
		}
		if day != target.WeekdayName {
			fmt.Printf("Target date %s falls on %s; nothing to book for %s\n", target.CalendarDate(), target.WeekdayName, day)
			return nil
		}
	}

	// Assignment source and audit sink. The database serves both when
	// configured; file sources pair with an in-memory log.
	var (
		rows []types.Assignment
		sink audit.Sink = audit.NewMemorySink()
		db   *store.DB
	)
	switch {
	case cfg.DatabaseURL != "":
		db, err = store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Setup(ctx); err != nil {
			return err
		}
		rows, err = db.ReadAssignments(ctx)
		if err != nil {
			return err
		}
		sink = db
	case cfg.Assignments != "":
		rows, err = readAssignmentsFile(cfg.Assignments)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --assignments or --db-url must be provided (via flag, config or DATABASE_URL)")
	}

	if cfg.Verbose {
		printer.PrintScheduleIssues(schedule.ValidateSchedule(rows))
	}

	selected := schedule.SelectAssignments(rows, target.WeekdayName)
	if cfg.Verbose {
		printer.PrintAssignments(selected)
	}
	if len(selected) == 0 {
		fmt.Printf("No assignments for %s; nothing to do\n", target.WeekdayName)
		return nil
	}

	deps, err := buildDeps(cfg, sink, target)
	if err != nil {
		return err
	}

	c := coordinator.New(deps)
	if err := c.InitializeSessions(ctx, selected); err != nil {
		c.Cleanup(ctx)
		return err
	}
	c.Run(ctx, target)

	summary := c.AggregateSummary(target)
	if db != nil {
		if err := db.SaveSummary(ctx, summary); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not persist summary: %v\n", err)
		}
	}

	if cfg.Verbose {
		printer.PrintSummary(summary)
		for _, s := range c.Sessions() {
			printer.PrintSessionTrail(s.Assignment.AccountID, s.Trail().Lines())
		}
	}
	return notify.NewConsole(os.Stdout).Notify(ctx, summary)
}

// loadRunConfig merges config file, CLI overrides, defaults and env
// fallbacks into the effective run configuration.
func loadRunConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loadedCfg
		if runVerbose {
			fmt.Printf("Loaded config from: %s\n", runConfigPath)
		}
	}

	// CLI overrides win over config file values, but only when the flag
	// was explicitly set.
	if cmd.Flags().Changed("assignments") {
		cfg.Assignments = runAssignments
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}
	if cmd.Flags().Changed("lead-days") {
		cfg.LeadDays = runLeadDays
	}
	if cmd.Flags().Changed("weekday") {
		cfg.Weekday = runWeekday
	}
	switch {
	case cmd.Flags().Changed("headless"):
		cfg.Headless = runHeadless
	case runConfigPath == "":
		cfg.Headless = true // flag default; config files state it explicitly
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = runDryRun
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}
	if cmd.Flags().Changed("screenshot-dir") {
		cfg.ScreenshotDir = runScreenshotDir
	}
	if cmd.Flags().Changed("credentials-key") {
		cfg.CredentialsKey = runCredentialsKey
	}

	cfg = cfg.MergeWithDefaults(config.Config{
		LeadDays: schedule.DefaultLeadDays,
	})

	if cfg.DatabaseURL == "" && cfg.Assignments == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.CredentialsKey == "" {
		cfg.CredentialsKey = os.Getenv("CREDENTIALS_KEY")
	}

	return cfg, nil
}

// buildDeps assembles the shared session collaborators from the effective
// configuration.
func buildDeps(cfg config.Config, sink audit.Sink, target types.TargetDate) (session.Deps, error) {
	var aead *credentials.AEAD
	if cfg.CredentialsKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.CredentialsKey)
		if err != nil {
			return session.Deps{}, fmt.Errorf("invalid credentials key: %w", err)
		}
		aead, err = credentials.NewAEAD(key)
		if err != nil {
			return session.Deps{}, err
		}
	}

	var shots *screenshot.Store
	if cfg.ScreenshotDir != "" {
		var err error
		shots, err = screenshot.NewStore(cfg.ScreenshotDir)
		if err != nil {
			return session.Deps{}, err
		}
	}

	factory := browser.NewChromeFactory(browser.ChromeOptions{
		Headless: cfg.Headless,
		Verbose:  cfg.Verbose,
	})
	if cfg.DryRun {
		// Stub browsers whose calendar already shows the target date, so a
		// dry run walks the whole workflow without waiting on the deadline.
		page := fmt.Sprintf(`<html><body><h4 class="timetable-title">%s %s</h4></body></html>`,
			target.WeekdayName, target.CalendarDate())
		factory = func(context.Context) (browser.Automation, error) {
			stub := browser.NewStub()
			stub.OuterHTMLFn = func(context.Context) (string, error) { return page, nil }
			return stub, nil
		}
	}

	return session.Deps{
		Factory:     factory,
		Credentials: credentials.NewResolver(aead),
		Audit:       audit.NewWriter(sink, nil),
		Screenshots: shots,
	}, nil
}

// readAssignmentsFile picks the parser by file extension.
func readAssignmentsFile(path string) ([]types.Assignment, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return store.ReadAssignmentsJSON(path)
	default:
		return store.ReadAssignmentsCSV(path)
	}
}
