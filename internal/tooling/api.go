// Package tooling exposes the type-system analysis to editors: documents are opened and
// updated through the API, and positional requests (definition, hover, completion,
// diagnostics, code actions, folding, symbols, references) are answered against the
// currently published meta-model.
package tooling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hybris-tools/tsls/internal/cli/config"
	"github.com/hybris-tools/tsls/internal/completion"
	"github.com/hybris-tools/tsls/internal/flexsearch"
	"github.com/hybris-tools/tsls/internal/inspection"
	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/resolve"
	"github.com/hybris-tools/tsls/internal/typesystem/access"
	"github.com/hybris-tools/tsls/internal/typesystem/items"
	"github.com/hybris-tools/tsls/internal/xmlpsi"
)

// ErrDocumentNotFound is returned for requests on documents that are not open
var ErrDocumentNotFound = errors.New("document not found")

// Document is an open document with its parsed tree
type Document struct {
	URI     string
	Content string
	Version int
	// Kind is zero for documents tsls does not analyze
	Kind        inspection.DocumentKind
	Root        *psi.Node
	ParseErrors []psi.ParseError
	// File is set for type declaration documents
	File  *items.File
	Lines *LineIndex
}

// API is the entry point for editor integrations
type API struct {
	documents map[string]*Document
	docsMutex sync.RWMutex
	// rebuildMu orders rebuilds so the last one to publish read the newest overlay
	rebuildMu sync.Mutex

	access      *access.Service
	resolver    *resolve.Resolver
	completion  *completion.Provider
	inspections *inspection.Runner
	config      *config.Config
	loader      *access.Loader
	logger      *zap.Logger
}

// Option configures an API
type Option func(*API)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithService makes the API read and rebuild the given access service
func WithService(svc *access.Service) Option {
	return func(a *API) {
		if svc != nil {
			a.access = svc
		}
	}
}

// WithConfig sets the configuration. When cfg.Root is set, rebuilds read the declaration
// files of that workspace from disk.
func WithConfig(cfg *config.Config) Option {
	return func(a *API) {
		if cfg != nil {
			a.config = cfg
		}
	}
}

// NewAPI creates a new tooling API instance
func NewAPI(opts ...Option) *API {
	a := &API{
		documents: make(map[string]*Document),
		config:    config.Default(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.access == nil {
		if a.config.Root != "" {
			a.access = access.Instance(a.config.Root, access.WithLogger(a.logger))
		} else {
			a.access = access.NewService(access.WithLogger(a.logger))
		}
	}
	if a.config.Root != "" {
		a.loader = &access.Loader{
			Root:     a.config.Root,
			Patterns: a.config.Workspace.Declarations,
			Ignore:   a.config.Workspace.Ignore,
		}
	}

	a.resolver = resolve.New(a.access, resolve.WithLogger(a.logger))
	a.completion = completion.NewProvider(a.resolver)
	defaults := inspection.Defaults()
	ids := make([]string, 0, len(defaults))
	for _, in := range defaults {
		ids = append(ids, in.ID())
	}
	a.inspections = inspection.NewRunner(defaults, a.config.Severities(ids), a.logger)
	return a
}

// Service returns the access service the API reads
func (a *API) Service() *access.Service {
	return a.access
}

// Resolver returns the resolver answering reference requests
func (a *API) Resolver() *resolve.Resolver {
	return a.resolver
}

// Config returns the configuration in use
func (a *API) Config() *config.Config {
	return a.config
}

// Kind classifies a document uri by the configured file patterns
func (a *API) Kind(uri string) inspection.DocumentKind {
	switch {
	case a.config.IsDeclaration(uri):
		return inspection.DocumentDeclarations
	case a.config.IsBeans(uri):
		return inspection.DocumentBeans
	case a.config.IsQuery(uri):
		return inspection.DocumentQuery
	default:
		return 0
	}
}

func (a *API) parse(uri, content string, version int) *Document {
	doc := &Document{
		URI:     uri,
		Content: content,
		Version: version,
		Kind:    a.Kind(uri),
		Lines:   NewLineIndex(content),
	}
	switch doc.Kind {
	case inspection.DocumentDeclarations:
		doc.File = items.Parse(uri, content)
		doc.Root, doc.ParseErrors = doc.File.Root, doc.File.Errors
	case inspection.DocumentBeans:
		doc.Root, doc.ParseErrors = xmlpsi.Parse(content)
	case inspection.DocumentQuery:
		doc.Root, doc.ParseErrors = flexsearch.Parse(content)
	}
	return doc
}

// OpenDocument parses and caches a document. Opening a type declaration document
// rebuilds the meta-model with the editor content.
func (a *API) OpenDocument(ctx context.Context, uri, content string, version int) (*Document, error) {
	doc := a.parse(uri, content, version)

	a.docsMutex.Lock()
	a.documents[uri] = doc
	a.docsMutex.Unlock()

	if doc.Kind == inspection.DocumentDeclarations {
		if err := a.Rebuild(ctx); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

// OpenDocuments opens a batch of documents, keyed by uri, and rebuilds the model once
// if any of them declares types
func (a *API) OpenDocuments(ctx context.Context, contents map[string]string) error {
	declarations := false
	for uri, content := range contents {
		doc := a.parse(uri, content, 1)
		a.docsMutex.Lock()
		a.documents[uri] = doc
		a.docsMutex.Unlock()
		declarations = declarations || doc.Kind == inspection.DocumentDeclarations
	}
	if declarations {
		return a.Rebuild(ctx)
	}
	return nil
}

// UpdateDocument replaces the content of an open document. Updates older than the cached
// version are ignored.
func (a *API) UpdateDocument(ctx context.Context, uri, content string, version int) (*Document, error) {
	a.docsMutex.RLock()
	existing, ok := a.documents[uri]
	a.docsMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, uri)
	}
	if version < existing.Version {
		return existing, nil
	}

	// Parse without holding the lock
	doc := a.parse(uri, content, version)

	a.docsMutex.Lock()
	if current, ok := a.documents[uri]; ok && current.Version > version {
		a.docsMutex.Unlock()
		return current, nil
	}
	a.documents[uri] = doc
	a.docsMutex.Unlock()

	if doc.Kind == inspection.DocumentDeclarations && doc.Content != existing.Content {
		if err := a.Rebuild(ctx); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

// GetDocument retrieves a cached document
func (a *API) GetDocument(uri string) (*Document, bool) {
	a.docsMutex.RLock()
	defer a.docsMutex.RUnlock()

	doc, ok := a.documents[uri]
	return doc, ok
}

// Documents returns the open documents ordered by uri
func (a *API) Documents() []*Document {
	a.docsMutex.RLock()
	docs := make([]*Document, 0, len(a.documents))
	for _, doc := range a.documents {
		docs = append(docs, doc)
	}
	a.docsMutex.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

// CloseDocument removes a document from the cache. Closing a declaration document
// rebuilds the model from the content on disk.
func (a *API) CloseDocument(ctx context.Context, uri string) error {
	a.docsMutex.Lock()
	doc, ok := a.documents[uri]
	delete(a.documents, uri)
	a.docsMutex.Unlock()

	if ok && doc.Kind == inspection.DocumentDeclarations {
		return a.Rebuild(ctx)
	}
	return nil
}

// Rebuild reloads the declaration files of the workspace, lets open documents take
// precedence over their content on disk and publishes the resulting model
func (a *API) Rebuild(ctx context.Context) error {
	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()

	var sources []access.Source
	if a.loader != nil {
		loaded, err := a.loader.Load(ctx)
		if err != nil && !errors.Is(err, access.ErrNoSources) {
			return fmt.Errorf("failed to load workspace: %w", err)
		}
		sources = loaded
	}

	overlay := make(map[string]string)
	for _, doc := range a.Documents() {
		if doc.Kind == inspection.DocumentDeclarations {
			overlay[doc.URI] = doc.Content
		}
	}

	if _, err := a.access.Rebuild(ctx, access.Overlay(sources, overlay)); err != nil {
		return err
	}
	return nil
}

func (a *API) document(uri string) (*Document, error) {
	doc, ok := a.GetDocument(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, uri)
	}
	return doc, nil
}

// contentOf returns the text of uri from the open documents or the published snapshot
func (a *API) contentOf(uri string) (string, bool) {
	if doc, ok := a.GetDocument(uri); ok {
		return doc.Content, true
	}
	if f, ok := a.access.Snapshot().File(uri); ok && f.Root != nil {
		return f.Root.Content(), true
	}
	return "", false
}

// location converts a range of any known document
func (a *API) location(uri string, r psi.Range) (Location, bool) {
	content, ok := a.contentOf(uri)
	if !ok {
		return Location{}, false
	}
	return Location{URI: uri, Range: NewLineIndex(content).Range(r)}, true
}
