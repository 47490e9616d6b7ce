package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/lights-manager/internal/service/selfupdate"
)

var (
	// updateTarget stores the executable replaced by apply-update.
	updateTarget string

	checkRuntimeCmd = &cobra.Command{
		Use:   "check-runtime",
		Short: "Run the configured Java runtime with --version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			m, err := openManager(ctx)
			if err != nil {
				return err
			}

			build, err := m.CheckRuntime(ctx)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), build)

			return nil
		},
	}

	applyUpdateCmd = &cobra.Command{
		Use:   "apply-update",
		Short: "Replace the manager executable with the newest staged build.",
		Long: `Looks for the newest update-* file in the work directory, written by
"update" for the manager itself, and swaps it in place of the target
executable. Run it after the manager has exited.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			staged, err := selfupdate.FindStaged(layout().StagingDir())
			if err != nil {
				return err
			}

			if err = selfupdate.Apply(ctx, staged, updateTarget); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", staged)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	applyUpdateCmd.Flags().StringVarP(&updateTarget, "target", "t", "", "executable to replace (default: the running executable)")

	rootCmd.AddCommand(checkRuntimeCmd, applyUpdateCmd)
}
