package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/hybris-tools/tsls/internal/cli/config"
	"github.com/hybris-tools/tsls/internal/cli/ui"
	"github.com/hybris-tools/tsls/internal/tooling"
)

// workspace is a loaded workspace used by the batch commands
type workspace struct {
	root   string
	cfg    *config.Config
	api    *tooling.API
	logger *zap.Logger
}

// loadWorkspace reads the configuration of root and builds its meta-model
func loadWorkspace(ctx context.Context, root string, opts *globalOptions) (*workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}

	api := tooling.NewAPI(tooling.WithConfig(cfg), tooling.WithLogger(logger))
	if err := api.Rebuild(ctx); err != nil {
		return nil, err
	}
	return &workspace{root: abs, cfg: cfg, api: api, logger: logger}, nil
}

// files returns the paths of every declaration, bean and query file below the root,
// skipping ignored names
func (w *workspace) files() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != w.root && w.ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && (w.cfg.IsDeclaration(path) || w.cfg.IsBeans(path) || w.cfg.IsQuery(path)) {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

func (w *workspace) ignored(name string) bool {
	for _, pattern := range w.cfg.Workspace.Ignore {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// relative returns path relative to the workspace root when possible
func (w *workspace) relative(path string) string {
	if rel, err := filepath.Rel(w.root, path); err == nil {
		return rel
	}
	return path
}

// writeLoadError prints a workspace loading failure, singling out invalid configuration
func writeLoadError(w io.Writer, err error, noColor bool) {
	if errors.Is(err, config.ErrInvalidConfig) {
		fmt.Fprintln(w, ui.ConfigError(err.Error(), noColor))
		return
	}
	fmt.Fprintln(w, ui.WorkspaceError(err.Error(), noColor))
}
