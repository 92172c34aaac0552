package access

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.lsp.dev/uri"
)

// ErrNoSources is returned by Loader.Load when the workspace has no declaration files
var ErrNoSources = errors.New("no type declaration files found")

// Source is the content of one declaration file
type Source struct {
	URI     string
	Content string
}

// Loader finds declaration files under a workspace root
type Loader struct {
	Root     string
	Patterns []string
	Ignore   []string
}

// Load walks the workspace and reads every file whose base name matches one of the
// patterns. Sources are sorted by URI so rebuilds merge files in a stable order.
func (l *Loader) Load(ctx context.Context) ([]Source, error) {
	var sources []Source

	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if path != l.Root && l.ignored(name) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.Matches(path) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		sources = append(sources, Source{URI: string(uri.File(path)), Content: string(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%s: %w", l.Root, ErrNoSources)
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].URI < sources[j].URI })
	return sources, nil
}

// Matches reports whether path names a declaration file
func (l *Loader) Matches(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range l.Patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (l *Loader) ignored(name string) bool {
	for _, pattern := range l.Ignore {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Overlay replaces the content of sources with the in-memory versions held by an editor.
// URIs are compared by the file they name, so differently escaped forms of one path match;
// a replaced source takes the editor's URI. Overlay entries without a file on disk are
// appended.
func Overlay(sources []Source, overlay map[string]string) []Source {
	editor := make(map[string]string, len(overlay))
	for u := range overlay {
		editor[sourceKey(u)] = u
	}

	result := make([]Source, 0, len(sources)+len(overlay))
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		key := sourceKey(src.URI)
		if u, ok := editor[key]; ok {
			src.URI, src.Content = u, overlay[u]
		}
		seen[key] = true
		result = append(result, src)
	}

	var extra []Source
	for u, content := range overlay {
		if !seen[sourceKey(u)] {
			extra = append(extra, Source{URI: u, Content: content})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].URI < extra[j].URI })
	return append(result, extra...)
}

// sourceKey returns the cleaned path a file URI names, or u itself for other URIs
func sourceKey(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme != uri.FileScheme {
		return u
	}
	path := parsed.Path
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		// drive letters are case-insensitive: /C:/x and /c%3A/x name the same file
		path = strings.ToLower(path[1:2]) + path[2:]
	}
	return filepath.Clean(filepath.FromSlash(path))
}
