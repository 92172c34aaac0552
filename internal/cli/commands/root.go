package commands

import (
	"errors"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hybris-tools/tsls/internal/cli/ui"
	"github.com/hybris-tools/tsls/internal/lsp"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// errProblemsFound fails a command whose findings were already printed
var errProblemsFound = errors.New("problems found")

// globalOptions holds the persistent flags shared by every command
type globalOptions struct {
	noColor  bool
	logLevel string
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "tsls",
		Short: "Language server and tooling for hybris type system files",
		Long: color.CyanString(`tsls - hybris type system language server

tsls understands *-items.xml type declarations, *-beans.xml bean definitions and
FlexibleSearch queries. It resolves type, attribute and relation references against
the merged meta-model of a workspace.

Features:
  • LSP server with completion, hover, definition and references
  • Inspections with quick fixes
  • Batch checking for CI
  • Meta-model export as YAML or JSON`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable coloured output")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewServeCommand(opts))
	rootCmd.AddCommand(NewResolveCommand(opts))
	rootCmd.AddCommand(NewCheckCommand(opts))
	rootCmd.AddCommand(NewModelCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the tsls version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			ui.Header(out, "tsls", color.NoColor)
			table := ui.NewKeyValueTable(out, color.NoColor)
			table.AddRow("Version", Version)
			table.AddRow("Git commit", GitCommit)
			table.AddRow("Build date", BuildDate)
			table.AddRow("Go version", goVer)
			table.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	lsp.Version = Version

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errProblemsFound) {
			errorColor := color.New(color.FgRed, color.Bold)
			errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}
