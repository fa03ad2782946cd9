package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect the known-source sets",
}

var sourcesStatsCmd = &cobra.Command{
	Use:   "stats <plugin>",
	Short: "Show known-source statistics for a plugin",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesStats,
}

var sourcesClearCmd = &cobra.Command{
	Use:   "clear <plugin>",
	Short: "Forget all known sources for a plugin",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesClear,
}

func init() {
	sourcesCmd.AddCommand(sourcesStatsCmd)
	sourcesCmd.AddCommand(sourcesClearCmd)
}

func runSourcesStats(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	stats := application.Tracker.Stats(args[0])
	fmt.Printf("%s: %d known sources\n", args[0], stats["known_count"])
	return nil
}

func runSourcesClear(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	if err := application.Tracker.Clear(args[0]); err != nil {
		return err
	}
	fmt.Printf("Cleared known sources for %s\n", args[0])
	return nil
}
