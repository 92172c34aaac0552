package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.lsp.dev/uri"

	"github.com/hybris-tools/tsls/internal/cli/config"
	"github.com/hybris-tools/tsls/internal/cli/ui"
	"github.com/hybris-tools/tsls/internal/resolve"
	"github.com/hybris-tools/tsls/internal/tooling"
)

type resolveOptions struct {
	offset int
	line   int
	col    int
}

// NewResolveCommand creates the resolve command
func NewResolveCommand(opts *globalOptions) *cobra.Command {
	ro := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Resolve the reference at a position of a file",
		Long: `Resolve the type, attribute or relation reference at a position and print every
meta-model entity it resolves to.

The position is either a byte offset or a 1-based line and column:

  tsls resolve queries/products.fxs --offset 12
  tsls resolve core/resources/core-items.xml --line 40 --col 57`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args[0], ro, opts)
		},
	}

	cmd.Flags().IntVar(&ro.offset, "offset", -1, "Byte offset of the reference")
	cmd.Flags().IntVar(&ro.line, "line", 0, "1-based line of the reference")
	cmd.Flags().IntVar(&ro.col, "col", 0, "1-based column of the reference")
	cmd.MarkFlagsMutuallyExclusive("offset", "line")
	cmd.MarkFlagsRequiredTogether("line", "col")

	return cmd
}

func runResolve(cmd *cobra.Command, file string, ro *resolveOptions, opts *globalOptions) error {
	if ro.offset < 0 && ro.line <= 0 {
		return fmt.Errorf("either --offset or --line and --col is required")
	}

	path, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	root, err := config.FindWorkspaceRoot(filepath.Dir(path))
	if err != nil {
		root = filepath.Dir(path)
	}

	ctx := context.Background()
	ws, err := loadWorkspace(ctx, root, opts)
	if err != nil {
		writeLoadError(cmd.ErrOrStderr(), err, opts.noColor)
		return errProblemsFound
	}

	docURI := string(uri.File(path))
	doc, err := ws.api.OpenDocument(ctx, docURI, string(content), 1)
	if err != nil {
		return err
	}
	if doc.Kind == 0 {
		return fmt.Errorf("%s is not a declaration, beans or query file", file)
	}

	pos := tooling.Position{Line: ro.line - 1, Character: ro.col - 1}
	if ro.offset >= 0 {
		if ro.offset > len(content) {
			return fmt.Errorf("offset %d is past the end of %s (%d bytes)", ro.offset, file, len(content))
		}
		pos = doc.Lines.Position(ro.offset)
	}

	results, err := ws.api.ResolveAt(ctx, docURI, pos)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, ui.Info("Nothing resolves at this position.", opts.noColor))
		return nil
	}

	ui.Header(out, fmt.Sprintf("%s:%d:%d", ws.relative(path), pos.Line+1, pos.Character+1), opts.noColor)
	table := ui.NewTable(out, opts.noColor, "ROLE", "NAME", "TYPE", "DECLARED IN")
	for _, r := range results {
		table.AddRow(r.Role.String(), r.Name(), resultType(r), ws.declaredIn(r))
	}
	table.Render()
	return nil
}

// resultType returns the value type of attribute and relation end results
func resultType(r resolve.Result) string {
	switch r.Role {
	case resolve.RoleAttribute:
		return r.Attribute.Type
	case resolve.RoleRelationEnd:
		return r.RelationEnd.Type
	}
	return ""
}

// declaredIn renders the declaration location of a result as path:line:col
func (w *workspace) declaredIn(r resolve.Result) string {
	origin := r.Origin()
	if origin.IsZero() {
		return "platform"
	}
	path := uri.URI(origin.URI).Filename()
	content, err := os.ReadFile(path)
	if err != nil {
		return w.relative(path)
	}
	pos := tooling.NewLineIndex(string(content)).Position(origin.Range.Start)
	return fmt.Sprintf("%s:%d:%d", w.relative(path), pos.Line+1, pos.Character+1)
}
