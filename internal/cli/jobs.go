package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mediaforge-app/mediaforge/internal/app/jobs"
	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// ─── Jobs CLI ───────────────────────────────────────────────────────────────
// Read and maintenance commands against the job store. Submission goes
// through the API so that a running controller drives the job.

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsRemoveCmd)
	jobsCmd.AddCommand(jobsSweepCmd)

	jobsListCmd.Flags().StringP("kind", "k", "", "Filter by kind (transcription, video_synthesis)")
	jobsListCmd.Flags().IntP("limit", "n", 20, "Jobs to show")
	jobsSweepCmd.Flags().Duration("stale-after", 0, "Age after which unfinished jobs are failed (default jobs.stale_after)")
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and maintain stored jobs",
}

// ─── jobs list ──────────────────────────────────────────────────────────────

var jobsListCmd = &cobra.Command{
	Use:   "list OWNER_ID",
	Short: "List an owner's jobs, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsList,
}

func runJobsList(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	if kind != "" && !domain.JobKind(kind).Valid() {
		return fmt.Errorf("unknown kind %q", kind)
	}

	db, _, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	list, err := db.ListJobs(context.Background(), args[0], domain.JobKind(kind), limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No jobs for %s.\n", args[0])
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB ID\tKIND\tSTATUS\tCOST\tCREATED")
	for _, j := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			j.ID, j.Kind, j.Status, j.CostReserved, j.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// ─── jobs status ────────────────────────────────────────────────────────────

var jobsStatusCmd = &cobra.Command{
	Use:   "status OWNER_ID JOB_ID",
	Short: "Show a job as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		job, err := db.GetJob(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

// ─── jobs remove ────────────────────────────────────────────────────────────

var jobsRemoveCmd = &cobra.Command{
	Use:   "remove OWNER_ID JOB_ID",
	Short: "Delete a completed or failed job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteJob(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Job %s removed.\n", args[1])
		return nil
	},
}

// ─── jobs sweep ─────────────────────────────────────────────────────────────

var jobsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail unfinished jobs that no worker is driving",
	Long: `Mark jobs that are still pending, processing or submitted after
--stale-after as failed. The running server sweeps on its own schedule;
use this after a crash when the server is not running.`,
	RunE: runJobsSweep,
}

func runJobsSweep(cmd *cobra.Command, args []string) error {
	db, cfg, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	staleAfter, _ := cmd.Flags().GetDuration("stale-after")
	if staleAfter <= 0 {
		staleAfter = cfg.StaleAfter()
	}

	ctrl := jobs.New(jobs.Config{Timeout: cfg.JobTimeout()}, db, db)
	n, err := ctrl.Sweep(context.Background(), staleAfter)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Failed %d abandoned job(s) older than %s.\n", n, staleAfter.Round(time.Second))
	return nil
}
