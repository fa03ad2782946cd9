package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haven-hvn/haven/pkg/types"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage recurring archival jobs",
}

var jobsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a recurring job",
	RunE:  runJobsAdd,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recurring jobs",
	RunE:  runJobsList,
}

var jobsRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a job (execution history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRemove,
}

var jobsPauseCmd = &cobra.Command{
	Use:   "pause <job-id>",
	Short: "Pause a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsPause,
}

var jobsResumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume a paused job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsResume,
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a job immediately, bypassing its schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRun,
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show job execution history",
	RunE:  runJobsHistory,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduler status",
	RunE:  runJobsStatus,
}

func init() {
	jobsAddCmd.Flags().String("name", "", "Human-readable job name (required)")
	jobsAddCmd.Flags().String("plugin", "", "Plugin to run (required)")
	jobsAddCmd.Flags().String("schedule", "0 * * * *", "Cron schedule, 5 or 6 fields, UTC")
	jobsAddCmd.Flags().String("on-success", string(types.OnSuccessArchiveNew), "Policy: archive_all, archive_new or log_only")
	jobsAddCmd.Flags().Bool("disabled", false, "Create the job paused")
	_ = jobsAddCmd.MarkFlagRequired("name")
	_ = jobsAddCmd.MarkFlagRequired("plugin")

	jobsHistoryCmd.Flags().String("job-id", "", "Filter by job ID")
	jobsHistoryCmd.Flags().Int("limit", 10, "Maximum records to show")

	jobsCmd.AddCommand(jobsAddCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsRemoveCmd)
	jobsCmd.AddCommand(jobsPauseCmd)
	jobsCmd.AddCommand(jobsResumeCmd)
	jobsCmd.AddCommand(jobsRunCmd)
	jobsCmd.AddCommand(jobsHistoryCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
}

func runJobsAdd(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	name, _ := cmd.Flags().GetString("name")
	pluginName, _ := cmd.Flags().GetString("plugin")
	schedule, _ := cmd.Flags().GetString("schedule")
	onSuccess, _ := cmd.Flags().GetString("on-success")
	disabled, _ := cmd.Flags().GetBool("disabled")

	job := types.NewJob(name, pluginName, schedule)
	job.OnSuccess = types.OnSuccess(onSuccess)
	job.Enabled = !disabled

	if err := application.Scheduler.Add(context.Background(), job); err != nil {
		return err
	}

	fmt.Printf("Added job %s (%s)\n", job.Name, job.ID)
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	jobs := application.Scheduler.Jobs()
	if len(jobs) == 0 {
		fmt.Println("No jobs configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPLUGIN\tSCHEDULE\tON SUCCESS\tENABLED\tLAST RUN\tNEXT RUN")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			job.ID, job.Name, job.PluginName, job.Schedule, job.OnSuccess,
			job.Enabled, formatTime(job.LastRun), formatTime(job.NextRun))
	}
	return w.Flush()
}

func runJobsRemove(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid job ID: %w", err)
	}

	if err := application.Scheduler.Remove(id); err != nil {
		return err
	}
	fmt.Printf("Removed job %s\n", id)
	return nil
}

func runJobsPause(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid job ID: %w", err)
	}

	if err := application.Scheduler.Pause(id); err != nil {
		return err
	}
	fmt.Printf("Paused job %s\n", id)
	return nil
}

func runJobsResume(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid job ID: %w", err)
	}

	if err := application.Scheduler.Resume(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("Resumed job %s\n", id)
	return nil
}

func runJobsRun(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid job ID: %w", err)
	}

	execution, err := application.Scheduler.RunNow(context.Background(), id)
	if err != nil {
		return err
	}

	if execution.Error != "" {
		fmt.Printf("Job %s: %s\n", id, execution.Error)
		return nil
	}
	fmt.Printf("Job %s: %d sources found, %d archived\n",
		id, execution.SourcesFound, execution.SourcesArchived)
	return nil
}

func runJobsHistory(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	limit, _ := cmd.Flags().GetInt("limit")
	jobIDStr, _ := cmd.Flags().GetString("job-id")

	var jobID *uuid.UUID
	if jobIDStr != "" {
		id, err := uuid.Parse(jobIDStr)
		if err != nil {
			return fmt.Errorf("invalid job ID: %w", err)
		}
		jobID = &id
	}

	executions, err := application.Store.ListExecutions(jobID, limit, 0)
	if err != nil {
		return err
	}
	if len(executions) == 0 {
		fmt.Println("No executions recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tPLUGIN\tSTARTED\tSUCCESS\tFOUND\tARCHIVED\tERROR")
	for _, ex := range executions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%d\t%s\n",
			ex.JobID, ex.PluginName, ex.StartedAt.Format(time.RFC3339),
			ex.Success, ex.SourcesFound, ex.SourcesArchived, ex.Error)
	}
	return w.Flush()
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	status := application.Scheduler.Status()
	fmt.Printf("Running: %t\n", status.Running)
	fmt.Printf("Total jobs: %d\n", status.TotalJobs)
	fmt.Printf("Active jobs: %d\n", status.ActiveJobs)
	fmt.Printf("Scheduled entries: %d\n", status.EntryCount)
	for id, next := range status.NextRuns {
		fmt.Printf("  %s next run: %s\n", id, next.Format(time.RFC3339))
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
