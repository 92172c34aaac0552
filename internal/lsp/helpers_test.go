package lsp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap/zaptest"
)

// fakeClient records the diagnostics the server publishes
type fakeClient struct {
	protocol.Client

	mu        sync.Mutex
	published map[protocol.DocumentURI][]protocol.Diagnostic
}

func newFakeClient() *fakeClient {
	return &fakeClient{published: make(map[protocol.DocumentURI][]protocol.Diagnostic)}
}

func (c *fakeClient) PublishDiagnostics(_ context.Context, params *protocol.PublishDiagnosticsParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published[params.URI] = params.Diagnostics
	return nil
}

// diagnostics returns the last diagnostics published for uri and whether any were
func (c *fakeClient) diagnostics(uri string) ([]protocol.Diagnostic, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.published[protocol.DocumentURI(uri)]
	return d, ok
}

func newTestServer(t *testing.T) (*Server, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	return NewServer(WithLogger(zaptest.NewLogger(t)), WithClient(client)), client
}

// call sends a request through the server handler and returns the JSON encoded result
func call(t *testing.T, s *Server, method string, params any) (json.RawMessage, error) {
	t.Helper()
	req, err := jsonrpc2.NewCall(jsonrpc2.NewNumberID(1), method, params)
	require.NoError(t, err)

	var result json.RawMessage
	var replyErr error
	replied := false
	reply := func(_ context.Context, r any, err error) error {
		replied = true
		replyErr = err
		if err == nil {
			result, err = json.Marshal(r)
			require.NoError(t, err)
		}
		return nil
	}
	require.NoError(t, s.handler()(context.Background(), reply, req))
	require.True(t, replied, "%s was not answered", method)
	return result, replyErr
}

// callInto sends a request and decodes its result into out
func callInto(t *testing.T, s *Server, method string, params, out any) {
	t.Helper()
	raw, err := call(t, s, method, params)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func notify(t *testing.T, s *Server, method string, params any) {
	t.Helper()
	_, err := call(t, s, method, params)
	require.NoError(t, err)
}

func openDoc(t *testing.T, s *Server, uri, text string) {
	t.Helper()
	notify(t, s, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: protocol.DocumentURI(uri), Version: 1, Text: text},
	})
}

func positionParams(uri string, line, character uint32) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
		Position:     protocol.Position{Line: line, Character: character},
	}
}
