package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"postflow/internal/daemonctl"
)

const (
	stopGracePeriod  = 10 * time.Second
	startWaitTimeout = 10 * time.Second
)

func newDaemonControlCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the postflow daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, opts, err := daemonLaunch(ctx, startLogLevel)
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), cfg, exe, opts, startWaitTimeout)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override logging.level")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the postflow daemon after the current post finishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cmd.Context(), cfg, stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in time, killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the postflow daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, opts, err := daemonLaunch(ctx, restartLogLevel)
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(cmd.Context(), cfg, exe, opts, stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if result.WasRunning {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Override logging.level")

	return []*cobra.Command{startCmd, stopCmd, restartCmd}
}

// daemonLaunch resolves this executable and the config path the background
// daemon should load.
func daemonLaunch(ctx *commandContext, logLevel string) (string, daemonctl.LaunchOptions, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", daemonctl.LaunchOptions{}, fmt.Errorf("resolve executable: %w", err)
	}
	opts := daemonctl.LaunchOptions{LogLevel: logLevel}
	if path := ctx.configPath(); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", daemonctl.LaunchOptions{}, fmt.Errorf("resolve config path: %w", err)
		}
		opts.ConfigPath = abs
	}
	return exe, opts, nil
}
