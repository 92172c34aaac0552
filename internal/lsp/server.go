// Package lsp implements a Language Server Protocol server for hybris type system files.
// It provides completion, diagnostics, go-to-definition, hover, references, code actions,
// folding and document symbols for items.xml, beans.xml and FlexibleSearch documents.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/hybris-tools/tsls/internal/cli/config"
	"github.com/hybris-tools/tsls/internal/inspection"
	"github.com/hybris-tools/tsls/internal/tooling"
	"github.com/hybris-tools/tsls/internal/typesystem/access"
	"github.com/hybris-tools/tsls/internal/watch"
)

// Version is reported to clients in the initialize result
var Version = "dev"

// Server implements the LSP server for the hybris type system
type Server struct {
	// api is the tooling API answering all document requests
	api *tooling.API

	// unsubscribe removes the rebuild subscription of api
	unsubscribe func()

	// conn is the JSON-RPC connection
	conn jsonrpc2.Conn

	// client is the LSP client interface
	client protocol.Client

	logger *zap.Logger

	// workspaceRoot is the root directory of the workspace
	workspaceRoot string

	watcher *watch.FileWatcher

	capabilities protocol.ServerCapabilities

	// ctx is the server lifetime context used for notifications outside a request
	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger. The server writes nothing to stdout.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClient sets the client notifications are sent to instead of the connection
func WithClient(client protocol.Client) Option {
	return func(s *Server) {
		s.client = client
	}
}

// NewServer creates a new LSP server instance
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger: zap.NewNop(),
		ctx:    context.Background(),
		capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save: &protocol.SaveOptions{
					IncludeText: false,
				},
			},
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{".", "{", `"`},
				ResolveProvider:   false,
			},
			HoverProvider:          true,
			DefinitionProvider:     true,
			ReferencesProvider:     true,
			DocumentSymbolProvider: true,
			CodeActionProvider: &protocol.CodeActionOptions{
				CodeActionKinds: []protocol.CodeActionKind{protocol.QuickFix},
			},
			FoldingRangeProvider: true,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setAPI(tooling.NewAPI(tooling.WithLogger(s.logger)))
	return s
}

// setAPI replaces the tooling API and republishes diagnostics after each of its rebuilds
func (s *Server) setAPI(api *tooling.API) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.api = api
	s.unsubscribe = api.Service().Subscribe(func(snap *access.Snapshot) {
		s.logger.Debug("model rebuilt, republishing diagnostics", zap.Uint64("generation", snap.Generation))
		s.publishAll(s.ctx)
	})
}

// Run serves the protocol on stdin and stdout until the client exits
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting hybris type system language server", zap.String("version", Version))

	ctx, cancel := context.WithCancel(ctx)
	s.ctx, s.cancel = ctx, cancel

	stream := jsonrpc2.NewStream(stdrwc{})
	conn := jsonrpc2.NewConn(stream)
	s.conn = conn
	if s.client == nil {
		s.client = protocol.ClientDispatcher(conn, s.logger.Named("client"))
	}

	conn.Go(ctx, s.handler())

	select {
	case <-ctx.Done():
	case <-conn.Done():
	}

	s.logger.Info("shutting down language server")
	s.stopWatcher()
	return conn.Close()
}

// handler returns the JSON-RPC handler function
func (s *Server) handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		s.logger.Debug("received", zap.String("method", req.Method()))

		switch req.Method() {
		case protocol.MethodInitialize:
			return s.handleInitialize(ctx, reply, req)
		case protocol.MethodInitialized:
			return s.handleInitialized(ctx, reply, req)
		case protocol.MethodShutdown:
			return s.handleShutdown(ctx, reply, req)
		case protocol.MethodExit:
			return s.handleExit(ctx, reply, req)
		case protocol.MethodTextDocumentDidOpen:
			return s.handleTextDocumentDidOpen(ctx, reply, req)
		case protocol.MethodTextDocumentDidChange:
			return s.handleTextDocumentDidChange(ctx, reply, req)
		case protocol.MethodTextDocumentDidClose:
			return s.handleTextDocumentDidClose(ctx, reply, req)
		case protocol.MethodTextDocumentDidSave:
			return s.handleTextDocumentDidSave(ctx, reply, req)
		case protocol.MethodWorkspaceDidChangeWatchedFiles:
			return s.handleDidChangeWatchedFiles(ctx, reply, req)
		case protocol.MethodTextDocumentCompletion:
			return s.handleTextDocumentCompletion(ctx, reply, req)
		case protocol.MethodTextDocumentHover:
			return s.handleTextDocumentHover(ctx, reply, req)
		case protocol.MethodTextDocumentDefinition:
			return s.handleTextDocumentDefinition(ctx, reply, req)
		case protocol.MethodTextDocumentReferences:
			return s.handleTextDocumentReferences(ctx, reply, req)
		case protocol.MethodTextDocumentDocumentSymbol:
			return s.handleTextDocumentDocumentSymbol(ctx, reply, req)
		case protocol.MethodTextDocumentCodeAction:
			return s.handleTextDocumentCodeAction(ctx, reply, req)
		case protocol.MethodTextDocumentFoldingRange:
			return s.handleTextDocumentFoldingRange(ctx, reply, req)
		default:
			return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
		}
	}
}

// handleInitialize resolves the workspace root and loads its configuration
func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse initialize params")
	}

	if params.ClientInfo != nil {
		s.logger.Info("initialize", zap.String("client", params.ClientInfo.Name), zap.String("clientVersion", params.ClientInfo.Version))
	}

	switch {
	case len(params.WorkspaceFolders) > 0:
		s.workspaceRoot = uri.URI(params.WorkspaceFolders[0].URI).Filename()
	case params.RootURI != "":
		s.workspaceRoot = params.RootURI.Filename()
	case params.RootPath != "":
		s.workspaceRoot = params.RootPath
	}

	if s.workspaceRoot != "" {
		s.logger.Info("workspace root", zap.String("root", s.workspaceRoot))
		cfg, err := config.Load(s.workspaceRoot)
		if err != nil {
			// an unusable tsls.yml must not keep the editor from working
			s.logger.Warn("invalid workspace configuration, using defaults", zap.Error(err))
			cfg = config.Default()
			cfg.Root = s.workspaceRoot
		}
		s.setAPI(tooling.NewAPI(tooling.WithLogger(s.logger), tooling.WithConfig(cfg)))
	}

	result := protocol.InitializeResult{
		Capabilities: s.capabilities,
		ServerInfo: &protocol.ServerInfo{
			Name:    "tsls",
			Version: Version,
		},
	}

	return reply(ctx, result, nil)
}

// handleInitialized loads the workspace model and starts watching declaration files
func (s *Server) handleInitialized(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Debug("client initialized")
	s.rebuild(ctx)

	cfg := s.api.Config()
	if s.workspaceRoot != "" && cfg.Watch.Enabled {
		if err := s.startWatcher(cfg); err != nil {
			s.logger.Warn("file watching disabled", zap.Error(err))
		}
	}
	return reply(ctx, nil, nil)
}

func (s *Server) startWatcher(cfg *config.Config) error {
	watcher, err := watch.NewFileWatcher(s.workspaceRoot, cfg.Workspace.Declarations, cfg.Workspace.Ignore,
		func(files []string) error {
			s.logger.Info("declaration files changed on disk", zap.Int("files", len(files)))
			s.rebuild(s.ctx)
			return nil
		},
		watch.WithLogger(s.logger.Named("watch")),
		watch.WithDebounce(cfg.Watch.Debounce),
	)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		_ = watcher.Stop()
		return err
	}
	s.watcher = watcher
	return nil
}

func (s *Server) stopWatcher() {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.Stop(); err != nil {
		s.logger.Warn("failed to stop file watcher", zap.Error(err))
	}
	s.watcher = nil
}

// rebuild reloads the model. Diagnostics are republished by the rebuild subscription.
func (s *Server) rebuild(ctx context.Context) {
	if err := s.api.Rebuild(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("rebuild failed", zap.Error(err))
	}
}

// handleShutdown handles the shutdown request
func (s *Server) handleShutdown(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Info("shutdown requested")
	s.stopWatcher()
	if s.workspaceRoot != "" {
		access.Release(s.workspaceRoot)
	}
	return reply(ctx, nil, nil)
}

// handleExit handles the exit notification
func (s *Server) handleExit(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	if err := reply(ctx, nil, nil); err != nil {
		s.logger.Warn("error replying to exit", zap.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// handleTextDocumentDidOpen handles document open notifications
func (s *Server) handleTextDocumentDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didOpen params")
	}

	docURI := string(params.TextDocument.URI)
	version := int(params.TextDocument.Version)
	s.logger.Debug("document opened", zap.String("uri", docURI), zap.Int("version", version))

	doc, err := s.api.OpenDocument(ctx, docURI, params.TextDocument.Text, version)
	if err != nil {
		s.logger.Error("failed to open document", zap.String("uri", docURI), zap.Error(err))
	}
	s.publishUnlessRebuilt(ctx, doc)

	return reply(ctx, nil, nil)
}

// handleTextDocumentDidChange handles document change notifications
func (s *Server) handleTextDocumentDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didChange params")
	}

	if len(params.ContentChanges) == 0 {
		return reply(ctx, nil, nil)
	}

	docURI := string(params.TextDocument.URI)
	version := int(params.TextDocument.Version)

	// full document sync, the last change holds the whole text
	content := params.ContentChanges[len(params.ContentChanges)-1].Text

	doc, err := s.api.UpdateDocument(ctx, docURI, content, version)
	if err != nil {
		s.logger.Error("failed to update document", zap.String("uri", docURI), zap.Error(err))
	}
	s.publishUnlessRebuilt(ctx, doc)

	return reply(ctx, nil, nil)
}

// handleTextDocumentDidClose handles document close notifications
func (s *Server) handleTextDocumentDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didClose params")
	}

	docURI := string(params.TextDocument.URI)
	s.logger.Debug("document closed", zap.String("uri", docURI))

	if err := s.api.CloseDocument(ctx, docURI); err != nil {
		s.logger.Error("rebuild after close failed", zap.String("uri", docURI), zap.Error(err))
	}
	s.sendDiagnostics(ctx, docURI, []protocol.Diagnostic{})

	return reply(ctx, nil, nil)
}

// handleTextDocumentDidSave handles document save notifications
func (s *Server) handleTextDocumentDidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didSave params")
	}

	docURI := string(params.TextDocument.URI)
	if s.api.Kind(docURI) == inspection.DocumentDeclarations {
		s.rebuild(ctx)
	} else {
		s.publishDiagnostics(ctx, docURI)
	}

	return reply(ctx, nil, nil)
}

// handleDidChangeWatchedFiles rebuilds the model when the client reports changed
// declaration files
func (s *Server) handleDidChangeWatchedFiles(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeWatchedFilesParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didChangeWatchedFiles params")
	}

	for _, change := range params.Changes {
		if s.api.Kind(string(change.URI)) == inspection.DocumentDeclarations {
			s.rebuild(ctx)
			break
		}
	}
	return reply(ctx, nil, nil)
}

// publishUnlessRebuilt publishes the diagnostics of doc unless it is a declaration
// document, whose change already republished everything through the rebuild
func (s *Server) publishUnlessRebuilt(ctx context.Context, doc *tooling.Document) {
	if doc == nil || doc.Kind == inspection.DocumentDeclarations {
		return
	}
	s.publishDiagnostics(ctx, doc.URI)
}

// publishAll publishes the diagnostics of every open document
func (s *Server) publishAll(ctx context.Context) {
	for _, doc := range s.api.Documents() {
		if ctx.Err() != nil {
			return
		}
		s.publishDiagnostics(ctx, doc.URI)
	}
}

// publishDiagnostics publishes diagnostics for a document
func (s *Server) publishDiagnostics(ctx context.Context, docURI string) {
	diagnostics, err := s.api.GetDiagnostics(ctx, docURI)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("failed to compute diagnostics", zap.String("uri", docURI), zap.Error(err))
		}
		return
	}

	lspDiagnostics := make([]protocol.Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		lspDiagnostics = append(lspDiagnostics, convertDiagnostic(d))
	}
	s.sendDiagnostics(ctx, docURI, lspDiagnostics)
}

func (s *Server) sendDiagnostics(ctx context.Context, docURI string, diagnostics []protocol.Diagnostic) {
	if s.client == nil {
		return
	}
	params := protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(docURI),
		Diagnostics: diagnostics,
	}
	if err := s.client.PublishDiagnostics(ctx, &params); err != nil {
		s.logger.Warn("error publishing diagnostics", zap.String("uri", docURI), zap.Error(err))
	}
}

// replyWithError sends an LSP-compliant error response
func (s *Server) replyWithError(ctx context.Context, reply jsonrpc2.Replier, code jsonrpc2.Code, message string) error {
	return reply(ctx, nil, jsonrpc2.NewError(code, message))
}

// stdrwc implements io.ReadWriteCloser for stdin/stdout
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
