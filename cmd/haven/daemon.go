package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haven-hvn/haven/pkg/app"
	"github.com/haven-hvn/haven/pkg/pipeline"
	"github.com/haven-hvn/haven/pkg/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the Haven archival daemon",
	Long: `Run the scheduler and processing pipeline until interrupted.

The daemon loads persisted jobs, fires them on their cron schedules, and
processes every archived file through the pipeline. Prometheus metrics are
served on the metrics address.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().Int("max-concurrent", pipeline.DefaultMaxConcurrent, "Maximum concurrent pipeline executions")
	daemonCmd.Flags().Int("max-concurrent-archives", scheduler.DefaultMaxConcurrentArchives, "Maximum concurrent archive downloads per job")
	daemonCmd.Flags().String("metrics-addr", "localhost:9090", "Address for the Prometheus metrics endpoint (empty to disable)")
	daemonCmd.Flags().Int("event-history", 1000, "Number of events retained for inspection (0 to disable)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")
	maxConcurrent, _ := cmd.Flags().GetInt("max-concurrent")
	maxArchives, _ := cmd.Flags().GetInt("max-concurrent-archives")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	eventHistory, _ := cmd.Flags().GetInt("event-history")

	application, err := app.New(app.Config{
		DataDir:               dataDir,
		MaxConcurrent:         maxConcurrent,
		MaxConcurrentArchives: maxArchives,
		MetricsAddr:           metricsAddr,
		EventHistorySize:      eventHistory,
	}, builtinRegistry(), app.StepDeps{})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		application.Stop()
		return err
	}

	fmt.Printf("Haven daemon started (data dir: %s)\n", dataDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	cancel()
	application.Stop()
	return nil
}
