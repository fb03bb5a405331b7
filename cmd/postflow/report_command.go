package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"postflow/internal/config"
	"postflow/internal/fileutil"
	"postflow/internal/report"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var clientID int64
	var window time.Duration
	var recent int
	var engagement bool
	var outputDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize post activity for one client or everyone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				rep, err := s.components.Reports.Build(cmd.Context(), report.Options{
					ClientID:   clientID,
					Window:     window,
					Recent:     recent,
					Engagement: engagement,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, rep)
				}
				if strings.TrimSpace(outputDir) == "" {
					return report.Render(cmd.OutOrStdout(), rep)
				}

				dir, err := config.ExpandPath(outputDir)
				if err != nil {
					return fmt.Errorf("resolve output dir: %w", err)
				}
				target := filepath.Join(dir, report.Filename(rep))
				if err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
					return report.Render(w, rep)
				}); err != nil {
					return fmt.Errorf("write report file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote report to %s\n", target)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&clientID, "client", 0, "Client id (default: all clients)")
	cmd.Flags().DurationVar(&window, "window", 7*24*time.Hour, "How far back to collect publish failures")
	cmd.Flags().IntVar(&recent, "recent", 10, "Number of recent posts to list")
	cmd.Flags().BoolVar(&engagement, "engagement", false, "Fetch likes and comments for published posts")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Write the report to a file in this directory")
	return cmd
}
