package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/logger"
	"github.com/oshokin/lights-manager/internal/pipeline"
	"github.com/oshokin/lights-manager/internal/service/manager"
)

// progressInterval is how often install and update redraw their progress line.
const progressInterval = 200 * time.Millisecond

// errRunFailed is returned when a pipeline run ended in Failed.
var errRunFailed = errors.New("run failed")

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List tracked applications without contacting GitHub.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			m, err := openManager(ctx)
			if err != nil {
				return err
			}

			printRecords(cmd.OutOrStdout(), m.Records(), m.Settings(), m.Catalog().Len())

			return nil
		},
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Create missing records and check GitHub for updates.",
		Long: `Loads or creates a record for every catalog application and, when the
rate-limit cool-down has passed, checks GitHub for newer releases.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			m, err := manager.New(ctx, &manager.Options{Layout: layout()})
			if err != nil {
				return err
			}

			err = m.Startup(ctx)

			printNotifications(cmd.ErrOrStderr(), m.Notifications())
			printRecords(cmd.OutOrStdout(), m.Records(), m.Settings(), m.Catalog().Len())

			return err
		},
	}

	installCmd = &cobra.Command{
		Use:   "install <app>",
		Short: "Download and install an application.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args[0], (*manager.Manager).Install)
		},
	}

	updateCmd = &cobra.Command{
		Use:   "update <app>",
		Short: "Replace an application with its pending update.",
		Long: `Removes the current installation and installs the newer release found by
the last "check". The manager itself is staged in the work directory and
applied with "apply-update".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args[0], (*manager.Manager).Update)
		},
	}

	uninstallCmd = &cobra.Command{
		Use:   "uninstall <app>",
		Short: "Remove an installed application.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			m, err := openManager(ctx)
			if err != nil {
				return err
			}

			if err = m.Uninstall(ctx, args[0]); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s uninstalled\n", args[0])

			return nil
		},
	}

	launchCmd = &cobra.Command{
		Use:   "launch <app>",
		Short: "Start an installed application in the background.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			m, err := openManager(ctx)
			if err != nil {
				return err
			}

			handle, err := m.Launch(ctx, args[0])

			printNotifications(cmd.ErrOrStderr(), m.Notifications())

			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s started with pid %d\n", args[0], handle.PID())

			return nil
		},
	}
)

// runner is the part of the manager that follow needs.
type runner interface {
	Progress(name string) (app.Phase, int)
	Poll(ctx context.Context) []pipeline.Event
	Notifications() []manager.Notification
}

// runPipeline loads (or creates) the record of name, starts a run and redraws
// its progress until the terminal event arrives.
func runPipeline(cmd *cobra.Command, name string, start func(*manager.Manager, context.Context, string) error) error {
	ctx, stop := signalContext()
	defer stop()

	ctx = logger.WithName(ctx, "cli")

	m, err := openManager(ctx)
	if err != nil {
		return err
	}

	if _, err = m.LoadOrCreate(ctx, name); err != nil {
		printNotifications(cmd.ErrOrStderr(), m.Notifications())

		return err
	}

	return follow(ctx, stop, cmd.OutOrStdout(), cmd.ErrOrStderr(), m, name, func(runCtx context.Context) error {
		return start(m, runCtx, name)
	})
}

// follow starts the run with a context detached from ctx, so an interrupt never
// aborts a download halfway. The first interrupt only restores the default
// signal handling; a second one kills the process.
func follow(
	ctx context.Context,
	stop context.CancelFunc,
	out, errOut io.Writer,
	r runner,
	name string,
	start func(context.Context) error,
) error {
	runCtx := context.WithoutCancel(ctx)

	if err := start(runCtx); err != nil {
		return err
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	interrupted := ctx.Done()

	for {
		select {
		case <-interrupted:
			interrupted = nil

			stop()

			_, _ = fmt.Fprintf(errOut, "\ninterrupted, waiting for %s to finish (interrupt again to abort)\n", name)
		case <-ticker.C:
			phase, progress := r.Progress(name)
			_, _ = fmt.Fprintf(out, "\r%-12s %3d%%", phase, progress)

			if events := r.Poll(runCtx); len(events) > 0 {
				_, _ = fmt.Fprintln(out)

				return report(errOut, r, events[0])
			}
		}
	}
}

func report(w io.Writer, r runner, ev pipeline.Event) error {
	printNotifications(w, r.Notifications())

	if failed, ok := ev.(pipeline.Failed); ok {
		return fmt.Errorf("%s: %w: %w", failed.Final.Name, errRunFailed, failed.Err)
	}

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(listCmd, checkCmd, installCmd, updateCmd, uninstallCmd, launchCmd)
}
