package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/haven-hvn/haven/pkg/app"
	"github.com/haven-hvn/haven/pkg/log"
	"github.com/haven-hvn/haven/pkg/pipeline"
	"github.com/haven-hvn/haven/pkg/scheduler"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "haven",
	Short: "Haven - Continuous media archival orchestrator",
	Long: `Haven discovers media sources through pluggable connectors, archives
new items on cron schedules, and pushes every acquired file through a staged
processing pipeline (ingest, analyze, encrypt, upload, sync).`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Haven version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", defaultDataDir(), "Directory for the job store and state files")

	// Initialize logging before command execution
	cobra.OnInitialize(initLogging)

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(applyCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".haven"
	}
	return filepath.Join(home, ".haven")
}

// openApp builds the application graph for a CLI invocation. The scheduler
// is loaded but its cron engine is not started; admin operations mutate the
// store directly.
func openApp() (*app.Application, error) {
	dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")

	application, err := app.New(app.Config{
		DataDir:               dataDir,
		MaxConcurrent:         pipeline.DefaultMaxConcurrent,
		MaxConcurrentArchives: scheduler.DefaultMaxConcurrentArchives,
	}, nil, app.StepDeps{})
	if err != nil {
		return nil, err
	}

	if err := application.Scheduler.Load(); err != nil {
		application.Stop()
		return nil, err
	}
	return application, nil
}
