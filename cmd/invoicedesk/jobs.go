package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invoicedesk/invoicedesk/cmd/invoicedesk/cli"
	"github.com/invoicedesk/invoicedesk/jobs"
)

func newJobsCommand(rt *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	trigger := &cobra.Command{
		Use:       "trigger <name>",
		Short:     "Enqueue a job now (" + strings.Join(jobs.TriggerableTasks(), ", ") + ")",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.TriggerableTasks(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := cli.NewJobsCLI(redisOpts(rt.cfg))
			defer func() { _ = ops.Close() }()
			info, err := ops.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}

	var scheduled int
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show default queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := cli.NewJobsCLI(redisOpts(rt.cfg))
			defer func() { _ = ops.Close() }()
			stats, err := ops.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
			if scheduled <= 0 {
				return nil
			}
			tasks, err := ops.ListScheduled(cmd.Context(), scheduled)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				fmt.Fprintf(out, "  %s %s next=%s\n", t.ID, t.Type, t.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z"))
			}
			return nil
		},
	}
	inspect.Flags().IntVar(&scheduled, "scheduled", 0, "also list up to N scheduled tasks")

	cmd.AddCommand(trigger, inspect)
	return cmd
}
