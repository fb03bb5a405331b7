package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"postflow/internal/api"
	"postflow/internal/daemonctl"
	"postflow/internal/posts"
	"postflow/internal/preflight"
)

type statusReport struct {
	Daemon      *api.DaemonStatus  `json:"daemon,omitempty"`
	DaemonError string             `json:"daemonError,omitempty"`
	Counts      map[string]int     `json:"counts"`
	Checks      []preflight.Result `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, store, and configuration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				var rep statusReport
				daemonStatus, err := daemonctl.FetchStatus(cmd.Context(), s.cfg)
				if err == nil {
					rep.Daemon = &daemonStatus
				} else if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
					rep.DaemonError = err.Error()
				}

				counts, err := s.components.Service.Stats(cmd.Context(), 0)
				if err != nil {
					return err
				}
				rep.Counts = counts
				rep.Checks = preflight.RunAll(cmd.Context(), s.cfg, preflight.Dependencies{})

				if ctx.jsonOutput() {
					return writeJSON(cmd, rep)
				}
				renderStatus(cmd, rep)
				return nil
			})
		},
	}
}

func renderStatus(cmd *cobra.Command, rep statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	var lines []string

	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	switch {
	case rep.Daemon != nil:
		d := rep.Daemon
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", d.PID), colorize))
		if d.Publishing {
			lines = append(lines, renderStatusLine("Publisher", statusOK, "running", colorize))
		} else {
			lines = append(lines, renderStatusLine("Publisher", statusWarn, "disabled", colorize))
		}
		if cycle := d.Worker.LastCycle; cycle != nil {
			lines = append(lines, renderStatusLine("Last cycle", statusInfo,
				fmt.Sprintf("%s published=%d failed=%d deferred=%d", cycle.FinishedAt, cycle.Published, cycle.Failed, cycle.Deferred), colorize))
		}
		if d.Worker.LastError != "" {
			lines = append(lines, renderStatusLine("Last error", statusError, d.Worker.LastError, colorize))
		}
	case rep.DaemonError != "":
		lines = append(lines, renderStatusLine("Daemon", statusError, rep.DaemonError, colorize))
	default:
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Posts", colorize)...)
	for _, status := range posts.AllStatuses() {
		lines = append(lines, renderStatusLine(statusLabel(string(status)), statusInfo, fmt.Sprintf("%d", rep.Counts[string(status)]), colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, check := range rep.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	fmt.Fprintln(out, strings.Join(lines, "\n"))
}
