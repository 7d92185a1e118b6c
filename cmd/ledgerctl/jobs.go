package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger-core/jobs"
)

func newJobsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	cmd.AddCommand(newJobsTriggerCmd(opts), newJobsInspectCmd(opts))
	return cmd
}

func newJobsTriggerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "trigger <integrity|warmup|relay>",
		Short:     "Enqueue one job run",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"integrity", "warmup", "relay"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: opts.cfg.RedisAddr})
			if err != nil {
				return err
			}
			defer client.Close()
			ctx := cmd.Context()
			var info *asynq.TaskInfo
			switch args[0] {
			case "integrity":
				info, err = client.EnqueueIntegrity(ctx, jobs.IntegrityPayload{BranchID: opts.branch})
			case "warmup":
				info, err = client.EnqueueReportWarmup(ctx, jobs.ReportWarmupPayload{BranchID: opts.branch, FinancialYearID: opts.year})
			case "relay":
				info, err = client.EnqueueOutboxRelay(ctx)
			default:
				return fmt.Errorf("unsupported job %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
}

func newJobsInspectCmd(opts *rootOptions) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show queue counters and scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: opts.cfg.RedisAddr})
			defer inspector.Close()
			info, err := inspector.GetQueueInfo(jobs.QueueDefault)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Queue\tPending\tActive\tScheduled\tRetry\tFailed today\n")
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry, info.Failed)
			if err := w.Flush(); err != nil {
				return err
			}
			scheduled, err := inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
			if err != nil {
				return err
			}
			for _, t := range scheduled {
				fmt.Fprintf(out, "scheduled %s %s at %s\n", t.Type, t.ID, t.NextProcessAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 10, "Scheduled tasks to list")
	return cmd
}
