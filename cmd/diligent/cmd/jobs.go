package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
	"github.com/hugo-lorenzo-mato/diligent/internal/queue"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage queued analyses",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE:  runJobsList,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued or running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

func init() {
	jobsListCmd.Flags().Int("limit", 20, "maximum number of jobs to show")
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	rootCmd.AddCommand(jobsCmd)
}

func openQueue() (*queue.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return queue.New(cfg.Queue.Path)
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	store, err := openQueue()
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	jobs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("no jobs")
		return nil
	}

	for _, job := range jobs {
		fmt.Printf("%s  %-9s  %-20s  %s\n",
			job.ID,
			colorState(job.State),
			truncate(job.Input.StartupName, 20),
			job.EnqueuedAt.Local().Format(time.RFC3339),
		)
	}
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	store, err := openQueue()
	if err != nil {
		return err
	}
	defer store.Close()

	id := core.JobID(args[0])
	if err := store.Cancel(cmd.Context(), id); err != nil {
		return err
	}
	color.Yellow("cancelled %s", id)
	return nil
}

func colorState(s core.JobState) string {
	switch s {
	case core.JobQueued:
		return color.CyanString(string(s))
	case core.JobRunning:
		return color.BlueString(string(s))
	case core.JobFinished:
		return color.GreenString(string(s))
	case core.JobFailed:
		return color.RedString(string(s))
	case core.JobCancelled:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
