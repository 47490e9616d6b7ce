package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/oshokin/lights-manager/internal/config"
)

var (
	// Values of the settings flags; only flags set on the command line are applied.
	unstableReleases  bool
	darkTheme         bool
	runtimePath       string
	gitHubToken       string
	overrideRateLimit bool

	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "Show or change the manager settings.",
		Long: `Without flags prints the current settings. Every flag given is stored in
config.json; flags left out keep their current value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			m, err := openManager(ctx)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.NFlag() > 0 {
				err = m.UpdateSettings(ctx, func(s *config.Settings) {
					if flags.Changed("unstable") {
						s.UnstableReleases = unstableReleases
					}

					if flags.Changed("dark-theme") {
						s.DarkTheme = darkTheme
					}

					if flags.Changed("runtime") {
						s.RuntimePath = runtimePath
					}

					if flags.Changed("token") {
						s.GitHubToken = gitHubToken
					}

					if flags.Changed("override-rate-limit") {
						s.OverrideRateLimit = overrideRateLimit
					}
				})
				if err != nil {
					return err
				}
			}

			settings := m.Settings()
			printSettings(cmd.OutOrStdout(), &settings)

			return nil
		},
	}
)

func printSettings(w io.Writer, s *config.Settings) {
	token := "not set"
	if s.GitHubToken != "" {
		token = "stored"
	} else if s.HasToken() {
		token = "from " + config.TokenEnvVar
	}

	tbl := table.New("Setting", "Value")
	tbl.WithWriter(w).
		WithHeaderFormatter(color.New(color.FgGreen, color.Underline).SprintfFunc()).
		WithFirstColumnFormatter(color.New(color.FgYellow).SprintfFunc())

	tbl.AddRow("unstable releases", s.UnstableReleases)
	tbl.AddRow("dark theme", s.DarkTheme)
	tbl.AddRow("runtime", fmt.Sprintf("%q", s.RuntimePath))
	tbl.AddRow("github token", token)
	tbl.AddRow("override rate limit", s.OverrideRateLimit)
	tbl.Print()
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := settingsCmd.Flags()
	flags.BoolVar(&unstableReleases, "unstable", false, "consider prereleases when checking for updates")
	flags.BoolVar(&darkTheme, "dark-theme", true, "use the dark presentation theme")
	flags.StringVar(&runtimePath, "runtime", "", "path of the java/javaw executable used to launch applications")
	flags.StringVar(&gitHubToken, "token", "", "GitHub token; an empty value falls back to "+config.TokenEnvVar)
	flags.BoolVar(&overrideRateLimit, "override-rate-limit", false, "poll GitHub without waiting for the cool-down")

	rootCmd.AddCommand(settingsCmd)
}
