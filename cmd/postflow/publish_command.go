package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"postflow/internal/api"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish approved posts",
	}
	publishCmd.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Run a single publish cycle in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				if err := s.cfg.PlatformReady(); err != nil {
					return fmt.Errorf("publishing unavailable: %w", err)
				}
				report := s.components.Worker.RunCycle(cmd.Context())
				if report.Err != nil {
					return fmt.Errorf("publish cycle: %w", report.Err)
				}
				summary := api.FromCycleReport(&report)
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Candidates: %d  Published: %d  Failed: %d  Deferred: %d\n",
					summary.Candidates, summary.Published, summary.Failed, summary.Deferred)
				if len(summary.Outcomes) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(summary.Outcomes))
				for _, outcome := range summary.Outcomes {
					rows = append(rows, []string{
						strconv.FormatInt(outcome.PostID, 10),
						outcome.Result,
						dash(outcome.ExternalID),
						truncate(dash(outcome.Error), 60),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Post", "Result", "Platform ID", "Error"}, rows, []columnAlignment{alignRight}))
				return nil
			})
		},
	})
	return publishCmd
}
