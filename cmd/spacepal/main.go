// Package main is the CLI entry point for spacepal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacepal/spacepal/internal/daemon"
	"github.com/spacepal/spacepal/internal/dock"
	"github.com/spacepal/spacepal/internal/infra"
	"github.com/spacepal/spacepal/internal/rules"
	"github.com/spacepal/spacepal/internal/spaces"
	"github.com/spacepal/spacepal/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.3.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "spacepal",
	Short: "Per-space app rules and dock sets for macOS",
	Long: `spacepal watches virtual desktop (space) changes and reacts in two ways:
it applies per-space application rules (show, hide, minimize, bring to
front, post a hotkey) and it swaps the pinned dock items to the dock set
assigned to the new space, restarting the Dock to apply them.`,
	Version: Version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	Long: `Spawns the spacepal daemon detached from this terminal. The daemon
listens for space changes and applies app rules and dock sets.`,
	RunE: runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration summary",
	Long:  `Shows the stored app rules and dock sets, and which dock set is the default.`,
	RunE:  runStatus,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect app rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List app rules",
	Long:  `Shows all stored app rules with their target spaces and actions.`,
	RunE:  runRulesList,
}

var docksetsCmd = &cobra.Command{
	Use:   "docksets",
	Short: "Inspect dock sets",
}

var docksetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dock sets",
	Long:  `Shows all stored dock sets, their tiles, and their space assignments.`,
	RunE:  runDocksetsList,
}

var docksetsAddAppCmd = &cobra.Command{
	Use:   "add-app <set-id> <app-path>",
	Short: "Pin an application to a dock set",
	Long:  `Adds the application bundle at the given path to the end of a dock set.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runDocksetsAddApp,
}

var docksetsAssignCmd = &cobra.Command{
	Use:   "assign <space-id> <set-id>",
	Short: "Assign a dock set to a space",
	RunE:  runDocksetsAssign,
	Args:  cobra.ExactArgs(2),
}

var docksetsDefaultCmd = &cobra.Command{
	Use:   "default <set-id>",
	Short: "Make a dock set the default",
	Long:  `The default dock set applies on every space without an explicit assignment.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocksetsDefault,
}

var captureCmd = &cobra.Command{
	Use:   "capture <name>",
	Short: "Capture the current dock as a new dock set",
	Long: `Reads the pinned items of the live dock and stores them as a new dock
set under the given name. The first captured set becomes the default.`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - used for self-exec when spawning the daemon
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	jsonOutput bool
	helperPath string
)

func init() {
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	daemonCmd.Flags().StringVar(&helperPath, "helper", "", "Path to the space observer helper")

	rulesCmd.AddCommand(rulesListCmd)
	docksetsCmd.AddCommand(docksetsListCmd)
	docksetsCmd.AddCommand(docksetsAddAppCmd)
	docksetsCmd.AddCommand(docksetsAssignCmd)
	docksetsCmd.AddCommand(docksetsDefaultCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(docksetsCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

// dataDir is where the preference database lives.
func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/tmp/spacepal"
	}
	return filepath.Join(home, "Library", "Application Support", "spacepal")
}

// defaultHelperPath resolves the space observer helper next to our binary.
func defaultHelperPath() string {
	executable, err := os.Executable()
	if err != nil {
		return "spacepal-helper"
	}
	return filepath.Join(filepath.Dir(executable), "spacepal-helper")
}

func openStores(logger *zap.Logger) (*infra.SQLitePrefStore, *rules.Store, *dock.Store, error) {
	prefs, err := infra.NewPrefStore(dataDir())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open preference store: %w", err)
	}
	return prefs, rules.NewStore(prefs, logger), dock.NewStore(prefs, logger), nil
}

func runStart(cmd *cobra.Command, args []string) error {
	if err := daemon.StartDetached(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Give the daemon a moment to come up before reporting.
	time.Sleep(500 * time.Millisecond)

	fmt.Println("spacepal daemon started")
	fmt.Println("Logs: /var/tmp/spacepal.log")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	prefs, ruleStore, dockStore, err := openStores(logger)
	if err != nil {
		return err
	}
	defer prefs.Close()

	fmt.Println("\n=== spacepal Status ===")
	fmt.Printf("Preferences: %s\n", prefs.DBPath())

	allRules := ruleStore.SortedByName()
	enabled := 0
	for _, r := range allRules {
		if r.Enabled {
			enabled++
		}
	}
	fmt.Printf("\nApp rules: %d (%d enabled)\n", len(allRules), enabled)

	config := dockStore.Config()
	fmt.Printf("Dock sets: %d\n", len(config.DockSets))
	if config.DefaultDockSetID != "" {
		if set, ok := config.SetByID(config.DefaultDockSetID); ok {
			fmt.Printf("Default dock set: %s\n", set.Name)
		}
	} else {
		fmt.Println("Default dock set: none")
	}
	fmt.Printf("Space assignments: %d\n", len(config.SpaceAssignments))

	fmt.Println("=======================")
	return nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	prefs, ruleStore, _, err := openStores(logger)
	if err != nil {
		return err
	}
	defer prefs.Close()

	all := ruleStore.SortedByName()
	if len(all) == 0 {
		fmt.Println("No app rules configured.")
		return nil
	}

	fmt.Println("\n=== App Rules ===")
	for _, r := range all {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		fmt.Printf("\n[%s] %s (%s)\n", r.ID, r.AppName, state)
		if r.AppBundleID != "" {
			fmt.Printf("  Bundle: %s\n", r.AppBundleID)
		}
		for _, g := range r.Groups {
			fmt.Printf("  Spaces %v:\n", g.TargetSpaceIDs)
			for _, a := range g.Actions {
				fmt.Printf("    - %s\n", a.Kind)
			}
		}
		if len(r.ElseActions) > 0 {
			fmt.Println("  Elsewhere:")
			for _, a := range r.ElseActions {
				fmt.Printf("    - %s\n", a.Kind)
			}
		}
	}
	fmt.Println("\n=================")
	return nil
}

func runDocksetsList(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	prefs, _, dockStore, err := openStores(logger)
	if err != nil {
		return err
	}
	defer prefs.Close()

	config := dockStore.Config()
	if len(config.DockSets) == 0 {
		fmt.Println("No dock sets configured. Run 'spacepal capture <name>' to create one.")
		return nil
	}

	// Invert the assignment map for display.
	assigned := make(map[string][]string)
	for spaceID, setID := range config.SpaceAssignments {
		assigned[setID] = append(assigned[setID], spaceID)
	}

	fmt.Println("\n=== Dock Sets ===")
	for _, set := range config.DockSets {
		marker := ""
		if set.ID == config.DefaultDockSetID {
			marker = " (default)"
		}
		fmt.Printf("\n[%s] %s%s\n", set.ID, set.Name, marker)
		fmt.Printf("  Tiles: %d\n", len(set.Tiles))
		for _, tile := range set.Tiles {
			if tile.Label != "" {
				fmt.Printf("    - %s\n", tile.Label)
			}
		}
		if ids := assigned[set.ID]; len(ids) > 0 {
			fmt.Printf("  Spaces: %v\n", ids)
		}
	}
	fmt.Println("\n=================")
	return nil
}

func runDocksetsAddApp(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	prefs, _, dockStore, err := openStores(logger)
	if err != nil {
		return err
	}
	defer prefs.Close()

	tile, err := dock.NewTileFromAppPath(args[1], infra.NewAppLocator())
	if err != nil {
		return fmt.Errorf("failed to build tile: %w", err)
	}
	if err := dockStore.AddTile(args[0], tile); err != nil {
		return err
	}

	fmt.Printf("Added %q to dock set %s\n", tile.Label, args[0])
	return nil
}

func runDocksetsAssign(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	prefs, _, dockStore, err := openStores(logger)
	if err != nil {
		return err
	}
	defer prefs.Close()

	if err := dockStore.AssignSpace(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Space %s now uses dock set %s\n", args[0], args[1])
	return nil
}

func runDocksetsDefault(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	prefs, _, dockStore, err := openStores(logger)
	if err != nil {
		return err
	}
	defer prefs.Close()

	if err := dockStore.SetDefault(args[0]); err != nil {
		return err
	}
	fmt.Printf("Default dock set is now %s\n", args[0])
	return nil
}

func runCapture(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	prefs, _, dockStore, err := openStores(logger)
	if err != nil {
		return err
	}
	defer prefs.Close()

	dockPrefs, err := infra.NewDockPlistStore()
	if err != nil {
		return fmt.Errorf("failed to locate dock preferences: %w", err)
	}

	set, err := dockStore.CaptureCurrent(args[0], dockPrefs)
	if err != nil {
		return fmt.Errorf("failed to capture dock: %w", err)
	}

	fmt.Printf("Captured dock set %q with %d tiles\n", set.Name, len(set.Tiles))
	if dockStore.DefaultDockSetID() == set.ID {
		fmt.Println("This is now the default dock set.")
	}
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	// Set up logger (writes to /var/tmp/spacepal.log)
	logger := createLogger()
	defer func() { _ = logger.Sync() }()

	prefs, ruleStore, dockStore, err := openStores(logger)
	if err != nil {
		return err
	}
	defer prefs.Close()

	if helperPath == "" {
		helperPath = defaultHelperPath()
	}
	feed, err := infra.NewHelperSpaceFeed(helperPath, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to start space helper: %w", err)
	}

	registry := spaces.NewRegistry(feed, logger)

	windowCtl := infra.NewWindowController(logger)
	executor := usecase.NewExecutor(windowCtl, windowCtl, infra.NewAppLocator(), logger)
	engine := usecase.NewRuleEngine(ruleStore, executor, registry.CurrentSpaceID, logger)

	dockPlist, err := infra.NewDockPlistStore()
	if err != nil {
		return fmt.Errorf("failed to locate dock preferences: %w", err)
	}
	switcher := usecase.NewDockSwitcher(dockStore, dockPlist, infra.NewDockRestarter(), logger)

	// A rule edit takes effect immediately on the current space; a default
	// dock set change forces a re-apply on the next space change.
	ruleStore.SetChangeHook(engine.Reevaluate)
	dockStore.SetDefaultChangeHook(switcher.InvalidateLastApplied)

	d := daemon.NewDaemon(feed, registry, engine, switcher, logger)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	return d.Run(ctx)
}

func createLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"/var/tmp/spacepal.log"}
	config.ErrorOutputPaths = []string{"/var/tmp/spacepal.error.log"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("spacepal %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
