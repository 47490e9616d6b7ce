package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/lights-manager/internal/config"
	"github.com/oshokin/lights-manager/internal/logger"
	"github.com/oshokin/lights-manager/internal/service/manager"
	"github.com/oshokin/lights-manager/internal/version"
)

var (
	// rootDir stores the directory holding settings, records and installations.
	rootDir string
	// workDir stores where staged manager updates are written.
	workDir string
	// logLevel stores the requested log level name.
	logLevel string

	// rootCmd represents the base command of the manager.
	rootCmd = &cobra.Command{
		Use:   "lights-manager",
		Short: "Install, update and launch Open Lights applications.",
		Long: `Manages applications distributed as GitHub releases.

Discovers releases, tells when a newer one exists, downloads and unpacks the
chosen asset and launches the installed program, optionally through a managed
Java runtime. GitHub is polled no more often than the hourly rate limit allows;
set a token in the settings (or GITHUB_TOKEN) to raise the limit.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the lights-manager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", config.DefaultRoot, "directory holding settings, records and installations")
	rootCmd.PersistentFlags().StringVarP(&workDir, "work-dir", "w", "", "directory receiving staged manager updates (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn, error")
}

// layout returns the on-disk layout selected by the persistent flags.
func layout() config.Layout {
	l := config.NewLayout(rootDir)
	l.WorkDir = workDir

	return l
}

// openManager creates a manager and loads the records already on disk.
func openManager(ctx context.Context) (*manager.Manager, error) {
	m, err := manager.New(ctx, &manager.Options{Layout: layout()})
	if err != nil {
		return nil, err
	}

	if err = m.LoadAll(ctx); err != nil {
		return nil, err
	}

	return m, nil
}
