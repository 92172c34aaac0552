package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hybris-tools/tsls/internal/cli/config"
	"github.com/hybris-tools/tsls/internal/lsp"
)

// NewServeCommand creates the serve command
func NewServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"lsp"},
		Short:   "Start the Language Server Protocol server",
		Long: `Start the tsls Language Server Protocol (LSP) server.

The server provides:
  • Completion of types, attributes, relation ends and query keywords
  • Diagnostics from the built-in inspections
  • Go-to-definition and find references
  • Hover information
  • Quick fixes, document symbols and folding

The LSP server communicates via JSON-RPC over stdin/stdout.
It is typically started automatically by your editor/IDE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := serverLogger(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runServe(logger)
		},
	}
}

// serverLogger builds the logger from the configuration of the workspace around the
// current directory. An explicit --log-level wins over the configured level.
func serverLogger(cmd *cobra.Command, opts *globalOptions) (*zap.Logger, error) {
	cfg := config.Default()
	if cwd, err := os.Getwd(); err == nil {
		root, err := config.FindWorkspaceRoot(cwd)
		if err == nil {
			if loaded, err := config.Load(root); err == nil {
				cfg = loaded
			}
		} else if !errors.Is(err, config.ErrNoWorkspace) {
			return nil, err
		}
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	return cfg.NewLogger()
}

func runServe(logger *zap.Logger) error {
	server := lsp.NewServer(lsp.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return server.Run(ctx)
}
