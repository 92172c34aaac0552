package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.lsp.dev/uri"

	"github.com/hybris-tools/tsls/internal/cli/ui"
	"github.com/hybris-tools/tsls/internal/tooling"
)

type checkOptions struct {
	failOn string
}

// NewCheckCommand creates the check command
func NewCheckCommand(opts *globalOptions) *cobra.Command {
	co := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "Check every type system file of a workspace",
		Long: `Load the workspace, run all inspections on its declaration, bean and query files
and print the findings. The command exits with status 1 when a finding at or above the
--fail-on severity is reported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runCheck(cmd, dir, co, opts)
		},
	}

	cmd.Flags().StringVar(&co.failOn, "fail-on", "error", "Lowest severity that fails the check: error, warning, info or hint")
	return cmd
}

func runCheck(cmd *cobra.Command, dir string, co *checkOptions, opts *globalOptions) error {
	threshold, err := parseFailOn(co.failOn)
	if err != nil {
		return err
	}

	ctx := context.Background()
	errOut := cmd.ErrOrStderr()
	out := cmd.OutOrStdout()

	spinner := ui.NewSpinner(errOut, "Loading workspace", 0, opts.noColor)
	spinner.Start()

	ws, err := loadWorkspace(ctx, dir, opts)
	if err != nil {
		spinner.Error("Loading workspace failed")
		writeLoadError(errOut, err, opts.noColor)
		return errProblemsFound
	}

	paths, err := ws.files()
	if err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to list workspace files: %w", err)
	}
	if len(paths) == 0 {
		spinner.Stop()
		fmt.Fprintln(out, ui.Warning("No type system files found in "+ws.root, nil, opts.noColor))
		return nil
	}

	spinner.UpdateMessage(fmt.Sprintf("Parsing %d files", len(paths)))
	contents := make(map[string]string, len(paths))
	uris := make([]string, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			spinner.Stop()
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		u := string(uri.File(path))
		contents[u] = string(content)
		uris = append(uris, u)
	}
	if err := ws.api.OpenDocuments(ctx, contents); err != nil {
		spinner.Error("Parsing failed")
		return err
	}
	spinner.Success(fmt.Sprintf("Loaded %d files", len(paths)))

	counts := make(map[tooling.DiagnosticSeverity]int)
	var lines []string
	bar := ui.NewProgressBar(errOut, len(uris), "files checked", opts.noColor)
	for _, u := range uris {
		diagnostics, err := ws.api.GetDiagnostics(ctx, u)
		if err != nil {
			return err
		}
		for _, d := range diagnostics {
			counts[d.Severity]++
			lines = append(lines, ui.FormatProblem(ui.ProblemLine{
				Path:    ws.relative(uri.URI(u).Filename()),
				Line:    d.Range.Start.Line + 1,
				Column:  d.Range.Start.Character + 1,
				Level:   errorLevel(d.Severity),
				Message: d.Message,
				Source:  d.Code,
			}, opts.noColor))
		}
		bar.Increment()
	}
	bar.Finish()

	for _, line := range lines {
		fmt.Fprintln(out, line)
	}

	summary := fmt.Sprintf("%d files checked: %d errors, %d warnings, %d infos, %d hints",
		len(uris),
		counts[tooling.DiagnosticSeverityError],
		counts[tooling.DiagnosticSeverityWarning],
		counts[tooling.DiagnosticSeverityInfo],
		counts[tooling.DiagnosticSeverityHint])

	failing := 0
	for severity, n := range counts {
		if severity <= threshold {
			failing += n
		}
	}
	if failing > 0 {
		ui.WriteError(out, ui.ErrorOptions{
			Level:   ui.ErrorLevelError,
			Context: "check failed",
			Problem: summary,
			NoColor: opts.noColor,
		})
		return errProblemsFound
	}

	ui.WriteSuccess(out, summary, opts.noColor)
	return nil
}

func parseFailOn(name string) (tooling.DiagnosticSeverity, error) {
	switch strings.ToLower(name) {
	case "error":
		return tooling.DiagnosticSeverityError, nil
	case "warning":
		return tooling.DiagnosticSeverityWarning, nil
	case "info":
		return tooling.DiagnosticSeverityInfo, nil
	case "hint":
		return tooling.DiagnosticSeverityHint, nil
	}
	return 0, fmt.Errorf("invalid --fail-on %q: must be error, warning, info or hint", name)
}

func errorLevel(severity tooling.DiagnosticSeverity) ui.ErrorLevel {
	switch severity {
	case tooling.DiagnosticSeverityWarning:
		return ui.ErrorLevelWarning
	case tooling.DiagnosticSeverityInfo:
		return ui.ErrorLevelInfo
	case tooling.DiagnosticSeverityHint:
		return ui.ErrorLevelHint
	default:
		return ui.ErrorLevelError
	}
}
