// -----------------------------------------------------------------------
// Fabrica - Suffix-driven build orchestrator for 8-bit ROM toolchains
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/ternarybob/fabrica/internal/app"
	"github.com/ternarybob/fabrica/internal/common"
)

// configPaths is a custom flag type that allows multiple -c flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

// historyLimit caps how many runs -history prints
const historyLimit = 20

var (
	// Command-line flags
	configFiles  configPaths // Multiple -c flags supported
	target       = flag.String("target", "", "Artifact file name (overrides config)")
	targetT      = flag.String("t", "", "Artifact file name (shorthand)")
	jobs         = flag.Int("jobs", 0, "Concurrent tool invocations (overrides config)")
	jobsJ        = flag.Int("j", 0, "Concurrent tool invocations (shorthand)")
	keepGoing    = flag.Bool("keep-going", false, "Continue independent chains after a failure")
	keepGoingK   = flag.Bool("k", false, "Continue independent chains after a failure (shorthand)")
	dryRun       = flag.Bool("dry-run", false, "Report what would run without invoking tools")
	dryRunN      = flag.Bool("n", false, "Report what would run without invoking tools (shorthand)")
	clean        = flag.Bool("clean", false, "Remove build outputs, generated sources, and recorded node state")
	history      = flag.Bool("history", false, "Print recent run history and exit")
	logLevel     = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	version := common.LoadVersionFromFile()

	if *showVersion || *showVersionV {
		fmt.Printf("Fabrica version %s\n", common.GetFullVersion())
		return 0
	}

	// Crash protection: a panic anywhere in the pipeline leaves a report
	// next to the logs before the process dies.
	common.InstallCrashHandler("")
	defer func() {
		if r := recover(); r != nil {
			crashPath := common.WriteCrashFile(r, string(debug.Stack()))
			fmt.Fprintf(os.Stderr, "fatal: %v (report: %s)\n", r, crashPath)
			os.Exit(1)
		}
	}()

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner

	// Auto-discover the manifest when no -c flag names one
	if len(configFiles) == 0 {
		if _, err := os.Stat("fabrica.toml"); err == nil {
			configFiles = append(configFiles, "fabrica.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		common.GetLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		return 1
	}

	// Merge shorthand flags (shorthand takes precedence)
	finalTarget := *target
	if *targetT != "" {
		finalTarget = *targetT
	}
	if finalTarget == "" && flag.NArg() > 0 {
		finalTarget = flag.Arg(0)
	}
	finalJobs := *jobs
	if *jobsJ != 0 {
		finalJobs = *jobsJ
	}
	common.ApplyFlagOverrides(config, finalTarget, finalJobs, *keepGoing || *keepGoingK, *dryRun || *dryRunN, *logLevel)

	if err := config.Validate(); err != nil {
		common.GetLogger().Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	logger := common.InitLogger(config)
	common.PrintBanner(version)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("artifact", config.ArtifactName()).
		Str("system", config.ResolveProfile().Name).
		Int("workers", config.Engine.WorkerCount()).
		Msg("Resolved configuration")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *clean:
		if err := application.Clean(ctx); err != nil {
			logger.Error().Err(err).Msg("Clean failed")
			return 1
		}
		return 0
	case *history:
		return printHistory(ctx, application)
	}

	record, err := application.Build(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Build failed before execution")
		return 1
	}

	if ctx.Err() != nil {
		logger.Warn().Str("run_id", record.ID).Msg("Build interrupted")
		return 130
	}
	return record.ExitCode
}

// printHistory lists recent runs, newest first. Output goes to stdout; the
// history is a query result, not log traffic.
func printHistory(ctx context.Context, application *app.App) int {
	records, err := application.History(ctx, historyLimit)
	if err != nil {
		common.GetLogger().Error().Err(err).Msg("Failed to load run history")
		return 1
	}
	if len(records) == 0 {
		fmt.Println("No recorded runs")
		return 0
	}

	for _, rec := range records {
		took := "-"
		if rec.CompletedAt != nil {
			took = rec.CompletedAt.Sub(rec.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Printf("%s  %-10s exit=%d nodes=%d invoked=%d up-to-date=%d failed=%d blocked=%d started=%s took=%s\n",
			rec.ID, rec.Status, rec.ExitCode, rec.Total, rec.Invocations(), rec.UpToDate,
			rec.Failed, rec.Blocked, rec.StartedAt.Format("2006-01-02 15:04:05"), took)
	}
	return 0
}
