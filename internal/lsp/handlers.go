package lsp

import (
	"context"
	"encoding/json"
	"errors"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/hybris-tools/tsls/internal/tooling"
)

// handleTextDocumentCompletion handles completion requests
func (s *Server) handleTextDocumentCompletion(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.CompletionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse completion params")
	}

	completions, err := s.api.GetCompletions(ctx, string(params.TextDocument.URI), toPosition(params.Position))
	if err != nil {
		return s.replyWithFailure(ctx, reply, "completion", err)
	}

	items := make([]protocol.CompletionItem, 0, len(completions))
	for _, c := range completions {
		items = append(items, protocol.CompletionItem{
			Label:            c.Label,
			Kind:             convertCompletionKind(c.Kind),
			Detail:           c.Detail,
			SortText:         c.SortText,
			InsertTextFormat: protocol.InsertTextFormatPlainText,
		})
	}

	return reply(ctx, protocol.CompletionList{IsIncomplete: false, Items: items}, nil)
}

// handleTextDocumentHover handles hover requests
func (s *Server) handleTextDocumentHover(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.HoverParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse hover params")
	}

	hover, err := s.api.GetHover(ctx, string(params.TextDocument.URI), toPosition(params.Position))
	if err != nil {
		return s.replyWithFailure(ctx, reply, "hover", err)
	}
	if hover == nil {
		return reply(ctx, nil, nil)
	}

	r := convertRange(hover.Range)
	return reply(ctx, protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: hover.Contents,
		},
		Range: &r,
	}, nil)
}

// handleTextDocumentDefinition replies with every declaration the reference resolves to
func (s *Server) handleTextDocumentDefinition(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DefinitionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse definition params")
	}

	locations, err := s.api.GetDefinition(ctx, string(params.TextDocument.URI), toPosition(params.Position))
	if err != nil {
		return s.replyWithFailure(ctx, reply, "definition", err)
	}
	if len(locations) == 0 {
		return reply(ctx, nil, nil)
	}
	return reply(ctx, convertLocations(locations), nil)
}

// handleTextDocumentReferences handles find references requests
func (s *Server) handleTextDocumentReferences(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.ReferenceParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse references params")
	}

	references, err := s.api.GetReferences(ctx, string(params.TextDocument.URI), toPosition(params.Position), params.Context.IncludeDeclaration)
	if err != nil {
		return s.replyWithFailure(ctx, reply, "references", err)
	}
	return reply(ctx, convertLocations(references), nil)
}

// handleTextDocumentDocumentSymbol handles document symbol requests
func (s *Server) handleTextDocumentDocumentSymbol(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DocumentSymbolParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse document symbol params")
	}

	symbols, err := s.api.GetDocumentSymbols(string(params.TextDocument.URI))
	if err != nil {
		return s.replyWithFailure(ctx, reply, "document symbols", err)
	}
	return reply(ctx, convertSymbols(symbols), nil)
}

// handleTextDocumentCodeAction replies with the quick fixes for the requested range
func (s *Server) handleTextDocumentCodeAction(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.CodeActionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse code action params")
	}

	actions, err := s.api.GetCodeActions(ctx, string(params.TextDocument.URI), tooling.Range{
		Start: toPosition(params.Range.Start),
		End:   toPosition(params.Range.End),
	})
	if err != nil {
		return s.replyWithFailure(ctx, reply, "code actions", err)
	}

	result := make([]protocol.CodeAction, 0, len(actions))
	for _, a := range actions {
		edits := make([]protocol.TextEdit, 0, len(a.Edits))
		for _, e := range a.Edits {
			edits = append(edits, protocol.TextEdit{Range: convertRange(e.Range), NewText: e.NewText})
		}
		result = append(result, protocol.CodeAction{
			Title:       a.Title,
			Kind:        protocol.CodeActionKind(a.Kind),
			Diagnostics: []protocol.Diagnostic{convertDiagnostic(a.Diagnostic)},
			Edit: &protocol.WorkspaceEdit{
				Changes: map[protocol.DocumentURI][]protocol.TextEdit{
					protocol.DocumentURI(a.URI): edits,
				},
			},
		})
	}
	return reply(ctx, result, nil)
}

// handleTextDocumentFoldingRange handles folding range requests
func (s *Server) handleTextDocumentFoldingRange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.FoldingRangeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse folding range params")
	}

	ranges, err := s.api.GetFoldingRanges(string(params.TextDocument.URI))
	if err != nil {
		return s.replyWithFailure(ctx, reply, "folding ranges", err)
	}

	result := make([]protocol.FoldingRange, 0, len(ranges))
	for _, r := range ranges {
		result = append(result, protocol.FoldingRange{
			StartLine: uint32(r.StartLine),
			EndLine:   uint32(r.EndLine),
			Kind:      protocol.RegionFoldingRange,
		})
	}
	return reply(ctx, result, nil)
}

// replyWithFailure reports a failed request. Requests for documents the client never
// opened get an empty result rather than an error.
func (s *Server) replyWithFailure(ctx context.Context, reply jsonrpc2.Replier, request string, err error) error {
	if errors.Is(err, tooling.ErrDocumentNotFound) {
		s.logger.Debug("request for unknown document", zap.String("request", request), zap.Error(err))
		return reply(ctx, nil, nil)
	}
	if errors.Is(err, context.Canceled) {
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.Code(-32800), "request cancelled"))
	}
	s.logger.Error("request failed", zap.String("request", request), zap.Error(err))
	return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "Failed to get "+request)
}

// Helper functions to convert between tooling and LSP types

func toPosition(p protocol.Position) tooling.Position {
	return tooling.Position{Line: int(p.Line), Character: int(p.Character)}
}

func convertPosition(p tooling.Position) protocol.Position {
	return protocol.Position{Line: uint32(p.Line), Character: uint32(p.Character)}
}

func convertRange(r tooling.Range) protocol.Range {
	return protocol.Range{Start: convertPosition(r.Start), End: convertPosition(r.End)}
}

func convertLocations(locations []tooling.Location) []protocol.Location {
	result := make([]protocol.Location, 0, len(locations))
	for _, l := range locations {
		result = append(result, protocol.Location{
			URI:   protocol.DocumentURI(l.URI),
			Range: convertRange(l.Range),
		})
	}
	return result
}

func convertDiagnostic(d tooling.Diagnostic) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    convertRange(d.Range),
		Severity: convertSeverity(d.Severity),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}
}

func convertSymbols(symbols []*tooling.Symbol) []protocol.DocumentSymbol {
	result := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, sym := range symbols {
		result = append(result, protocol.DocumentSymbol{
			Name:           sym.Name,
			Detail:         sym.Detail,
			Kind:           convertSymbolKind(sym.Kind),
			Range:          convertRange(sym.Range),
			SelectionRange: convertRange(sym.SelectionRange),
			Children:       convertSymbols(sym.Children),
		})
	}
	return result
}

// convertSeverity converts tooling diagnostic severity to LSP severity
func convertSeverity(severity tooling.DiagnosticSeverity) protocol.DiagnosticSeverity {
	switch severity {
	case tooling.DiagnosticSeverityError:
		return protocol.DiagnosticSeverityError
	case tooling.DiagnosticSeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case tooling.DiagnosticSeverityInfo:
		return protocol.DiagnosticSeverityInformation
	case tooling.DiagnosticSeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}

func convertCompletionKind(kind tooling.CompletionKind) protocol.CompletionItemKind {
	switch kind {
	case tooling.CompletionKindAttribute:
		return protocol.CompletionItemKindField
	case tooling.CompletionKindRelationEnd:
		return protocol.CompletionItemKindReference
	case tooling.CompletionKindType:
		return protocol.CompletionItemKindClass
	case tooling.CompletionKindEnum:
		return protocol.CompletionItemKindEnum
	case tooling.CompletionKindRelation:
		return protocol.CompletionItemKindInterface
	case tooling.CompletionKindKeyword:
		return protocol.CompletionItemKindKeyword
	default:
		return protocol.CompletionItemKindText
	}
}

func convertSymbolKind(kind tooling.SymbolKind) protocol.SymbolKind {
	switch kind {
	case tooling.SymbolKindItem:
		return protocol.SymbolKindClass
	case tooling.SymbolKindEnum:
		return protocol.SymbolKindEnum
	case tooling.SymbolKindRelation:
		return protocol.SymbolKindInterface
	case tooling.SymbolKindAttribute:
		return protocol.SymbolKindField
	case tooling.SymbolKindRelationEnd:
		return protocol.SymbolKindProperty
	case tooling.SymbolKindEnumValue:
		return protocol.SymbolKindEnumMember
	case tooling.SymbolKindSimpleType:
		return protocol.SymbolKindStruct
	case tooling.SymbolKindQuery:
		return protocol.SymbolKindNamespace
	case tooling.SymbolKindBean:
		return protocol.SymbolKindClass
	case tooling.SymbolKindProperty:
		return protocol.SymbolKindProperty
	default:
		return protocol.SymbolKindObject
	}
}
