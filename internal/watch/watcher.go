// Package watch rebuilds the type system when declaration files change on disk.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period used when no debounce is configured
const DefaultDebounce = 150 * time.Millisecond

// Option configures a FileWatcher
type Option func(*FileWatcher)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(fw *FileWatcher) {
		if logger != nil {
			fw.logger = logger
		}
	}
}

// WithDebounce sets the quiet period after the last event before onChange runs
func WithDebounce(d time.Duration) Option {
	return func(fw *FileWatcher) {
		if d > 0 {
			fw.debounce = d
		}
	}
}

// FileWatcher monitors a directory tree and reports batches of changed files
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	debounce  time.Duration
	root      string
	patterns  []string
	ignored   []string
	onChange  func([]string) error
	logger    *zap.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewFileWatcher creates a watcher for the tree below root. Files whose base name matches
// one of patterns are reported; files and directories matching ignored are skipped.
func NewFileWatcher(root string, patterns, ignored []string, onChange func([]string) error, opts ...Option) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  watcher,
		debounce: DefaultDebounce,
		root:     root,
		patterns: patterns,
		ignored:  ignored,
		onChange: onChange,
		logger:   zap.NewNop(),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(fw)
	}

	fw.debouncer = NewDebouncer(fw.debounce)
	fw.debouncer.SetCallback(func(files []string) {
		if err := fw.onChange(files); err != nil {
			fw.logger.Error("handling file changes failed", zap.Strings("files", files), zap.Error(err))
		}
	})

	return fw, nil
}

// Start adds every directory of the tree and begins watching in the background
func (fw *FileWatcher) Start() error {
	dirs, err := fw.findDirectories(fw.root)
	if err != nil {
		return fmt.Errorf("failed to find directories: %w", err)
	}

	for _, dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	fw.logger.Info("watching workspace", zap.String("root", fw.root), zap.Int("directories", len(dirs)))

	fw.wg.Add(1)
	go fw.watch()

	return nil
}

// Stop stops the watcher. Pending changes are dropped.
func (fw *FileWatcher) Stop() error {
	select {
	case <-fw.stopChan:
		return nil
	default:
		close(fw.stopChan)
	}

	fw.wg.Wait()
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watch() {
	defer fw.wg.Done()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("watch error", zap.Error(err))

		case <-fw.stopChan:
			return
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	if fw.shouldIgnore(event.Name) {
		return
	}

	// new directories are not covered by the watches added at start
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			fw.addTree(event.Name)
			return
		}
	}

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	if event.Op&relevant == 0 || !fw.matchesPattern(event.Name) {
		return
	}
	fw.logger.Debug("file changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
	fw.debouncer.Add(event.Name)
}

func (fw *FileWatcher) addTree(dir string) {
	dirs, err := fw.findDirectories(dir)
	if err != nil {
		fw.logger.Warn("failed to scan new directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	for _, d := range dirs {
		if err := fw.watcher.Add(d); err != nil {
			fw.logger.Warn("failed to watch directory", zap.String("dir", d), zap.Error(err))
		}
	}
}

// findDirectories returns root and every directory below it that is not ignored
func (fw *FileWatcher) findDirectories(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && fw.shouldIgnore(path) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// shouldIgnore reports whether path is hidden or its base name matches an ignored pattern
func (fw *FileWatcher) shouldIgnore(path string) bool {
	baseName := filepath.Base(path)
	if strings.HasPrefix(baseName, ".") && baseName != "." && baseName != ".." {
		return true
	}

	for _, pattern := range fw.ignored {
		if matched, _ := filepath.Match(pattern, baseName); matched {
			return true
		}
	}
	return false
}

// matchesPattern reports whether the base name of path matches a watch pattern. No
// patterns match everything.
func (fw *FileWatcher) matchesPattern(path string) bool {
	if len(fw.patterns) == 0 {
		return true
	}
	baseName := filepath.Base(path)
	for _, pattern := range fw.patterns {
		if matched, _ := filepath.Match(pattern, baseName); matched {
			return true
		}
	}
	return false
}

// Debouncer collects file changes and runs a callback once no change arrived for the
// configured duration
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

// Add records a changed file and restarts the quiet period
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	d.files[file] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush hands the accumulated files, sorted, to the callback
func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.files) == 0 || d.stopped {
		d.mutex.Unlock()
		return
	}
	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	d.files = make(map[string]struct{})
	callback := d.callback
	d.mutex.Unlock()

	sort.Strings(files)
	if callback != nil {
		callback(files)
	}
}

// SetCallback sets the callback function
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop cancels a pending callback. Later additions are ignored.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
}
