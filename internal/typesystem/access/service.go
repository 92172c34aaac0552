// Package access owns the published meta-model of a workspace.
//
// Readers call Snapshot (or the Find helpers) and work against an immutable Registry
// without locking. Rebuild parses the declaration sources, builds a new Registry and swaps
// it in atomically, then advances the modification Tracker so cached resolutions recompute.
package access

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hybris-tools/tsls/internal/typesystem/items"
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
)

// RebuildMetrics describes one rebuild
type RebuildMetrics struct {
	TotalFiles  int
	CacheHits   int
	CacheMisses int
	Duration    time.Duration
}

// Snapshot is one published version of the meta-model
type Snapshot struct {
	Registry *meta.Registry
	// Generation counts the rebuilds published by the owning service
	Generation uint64
	BuiltAt    time.Time
	Files      []*items.File
	Metrics    RebuildMetrics
}

// File returns the parsed declaration file with the given uri
func (s *Snapshot) File(uri string) (*items.File, bool) {
	for _, f := range s.Files {
		if f.URI == uri {
			return f, true
		}
	}
	return nil, false
}

// Service publishes meta-model snapshots for one workspace
type Service struct {
	snapshot atomic.Pointer[Snapshot]
	tracker  *Tracker
	cache    *FileCache
	logger   *zap.Logger

	parallelism int

	// rebuildMu serializes rebuilds; readers never take it
	rebuildMu sync.Mutex

	listenersMu sync.Mutex
	listeners   map[int]func(*Snapshot)
	nextID      int
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracker sets the modification counter the service advances
func WithTracker(tracker *Tracker) Option {
	return func(s *Service) {
		if tracker != nil {
			s.tracker = tracker
		}
	}
}

// WithParallelism bounds the number of files parsed concurrently
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// NewService creates a service publishing an empty registry
func NewService(opts ...Option) *Service {
	s := &Service{
		tracker:     NewTracker(),
		cache:       NewFileCache(),
		logger:      zap.NewNop(),
		parallelism: runtime.GOMAXPROCS(0),
		listeners:   make(map[int]func(*Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&Snapshot{
		Registry: meta.Empty(),
		BuiltAt:  time.Now(),
	})
	return s
}

var instances sync.Map

// Instance returns the service of the workspace rooted at root, creating it on first use.
// Every instance advances the process-wide tracker.
func Instance(root string, opts ...Option) *Service {
	key := filepath.Clean(root)
	if svc, ok := instances.Load(key); ok {
		return svc.(*Service)
	}
	svc, _ := instances.LoadOrStore(key, NewService(append([]Option{WithTracker(ProcessTracker())}, opts...)...))
	return svc.(*Service)
}

// Release forgets the service of root
func Release(root string) {
	instances.Delete(filepath.Clean(root))
}

// Tracker returns the modification counter advanced by this service
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// Snapshot returns the currently published snapshot
func (s *Service) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// MetaModel returns the currently published registry
func (s *Service) MetaModel() *meta.Registry {
	return s.Snapshot().Registry
}

// FindMetaItemByName looks up an item type by exact name
func (s *Service) FindMetaItemByName(name string) (*meta.Item, bool) {
	return s.MetaModel().Item(name)
}

// FindMetaEnumByName looks up an enum by exact name
func (s *Service) FindMetaEnumByName(name string) (*meta.Enum, bool) {
	return s.MetaModel().Enum(name)
}

// FindMetaRelationByName looks up a relation by exact name
func (s *Service) FindMetaRelationByName(name string) (*meta.Relation, bool) {
	return s.MetaModel().Relation(name)
}

// FindMetaClassifierByName looks up any classifier by exact name
func (s *Service) FindMetaClassifierByName(name string) (meta.Classifier, bool) {
	return s.MetaModel().Classifier(name)
}

// Rebuild parses sources, builds a registry and publishes it. When ctx is cancelled the
// previously published snapshot stays in place and the tracker is not advanced.
func (s *Service) Rebuild(ctx context.Context, sources []Source) (*Snapshot, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()
	files := make([]*items.File, len(sources))
	var hits, misses atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash := HashContent(src.Content)
			if f, ok := s.cache.Get(src.URI, hash); ok {
				hits.Add(1)
				files[i] = f
				return nil
			}
			misses.Add(1)
			f := items.Parse(src.URI, src.Content)
			s.cache.Set(src.URI, f, hash)
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to parse declarations: %w", err)
	}

	registry := meta.NewBuilder().Add(files...).Build()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rebuild abandoned: %w", err)
	}

	keep := make(map[string]bool, len(sources))
	for _, src := range sources {
		keep[src.URI] = true
	}
	s.cache.Retain(keep)

	snap := &Snapshot{
		Registry:   registry,
		Generation: s.Snapshot().Generation + 1,
		BuiltAt:    time.Now(),
		Files:      files,
		Metrics: RebuildMetrics{
			TotalFiles:  len(sources),
			CacheHits:   int(hits.Load()),
			CacheMisses: int(misses.Load()),
			Duration:    time.Since(start),
		},
	}
	// the new registry must be visible before the stamp moves
	s.snapshot.Store(snap)
	stamp := s.tracker.Inc()

	s.logger.Info("type system rebuilt",
		zap.Int("files", snap.Metrics.TotalFiles),
		zap.Int("reparsed", snap.Metrics.CacheMisses),
		zap.Int("items", len(registry.Items())),
		zap.Int("problems", len(registry.Problems())),
		zap.Uint64("generation", snap.Generation),
		zap.Uint64("stamp", stamp),
		zap.Duration("duration", snap.Metrics.Duration),
	)

	s.notify(snap)
	return snap, nil
}

// Subscribe registers fn to be called after each published rebuild. The returned function
// removes the subscription.
func (s *Service) Subscribe(fn func(*Snapshot)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Service) notify(snap *Snapshot) {
	s.listenersMu.Lock()
	listeners := make([]func(*Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
