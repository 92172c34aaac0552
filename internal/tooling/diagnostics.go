package tooling

import (
	"context"

	"github.com/hybris-tools/tsls/internal/inspection"
	"github.com/hybris-tools/tsls/internal/psi"
)

// DiagnosticSeverity uses the LSP numbering
type DiagnosticSeverity int

const (
	DiagnosticSeverityError DiagnosticSeverity = iota + 1
	DiagnosticSeverityWarning
	DiagnosticSeverityInfo
	DiagnosticSeverityHint
)

// DiagnosticSource names tsls as the producer of diagnostics
const DiagnosticSource = "tsls"

// Diagnostic codes of findings that do not come from an inspection
const (
	CodeSyntax = "syntax"
	CodeModel  = "model"
)

// Diagnostic represents a problem in a document
type Diagnostic struct {
	Range    Range
	Severity DiagnosticSeverity
	Code     string
	Source   string
	Message  string
}

// TextEdit replaces a range of a document
type TextEdit struct {
	Range   Range
	NewText string
}

// CodeAction is a quick fix for a diagnostic
type CodeAction struct {
	Title      string
	Kind       string
	Diagnostic Diagnostic
	URI        string
	Edits      []TextEdit
}

// CodeActionQuickFix is the kind of every code action tsls offers
const CodeActionQuickFix = "quickfix"

// GetDiagnostics returns the syntax errors, model problems and inspection findings of a
// document
func (a *API) GetDiagnostics(ctx context.Context, uri string) ([]Diagnostic, error) {
	doc, err := a.document(uri)
	if err != nil {
		return nil, err
	}

	diagnostics := make([]Diagnostic, 0, len(doc.ParseErrors))
	for _, e := range doc.ParseErrors {
		diagnostics = append(diagnostics, Diagnostic{
			Range:    doc.Lines.Range(e.Range),
			Severity: DiagnosticSeverityError,
			Code:     CodeSyntax,
			Source:   DiagnosticSource,
			Message:  e.Message,
		})
	}

	if doc.Kind == inspection.DocumentDeclarations {
		for _, p := range a.access.MetaModel().Problems() {
			if p.Origin.URI != uri {
				continue
			}
			diagnostics = append(diagnostics, Diagnostic{
				Range:    doc.Lines.Range(p.Origin.Range),
				Severity: DiagnosticSeverityWarning,
				Code:     CodeModel,
				Source:   DiagnosticSource,
				Message:  p.Message,
			})
		}
	}

	problems, err := a.inspect(ctx, doc)
	if err != nil {
		return nil, err
	}
	for _, p := range problems {
		diagnostics = append(diagnostics, a.problemDiagnostic(doc, p))
	}
	return diagnostics, nil
}

// GetCodeActions returns the quick fixes of every problem overlapping rng
func (a *API) GetCodeActions(ctx context.Context, uri string, rng Range) ([]CodeAction, error) {
	doc, err := a.document(uri)
	if err != nil {
		return nil, err
	}

	problems, err := a.inspect(ctx, doc)
	if err != nil {
		return nil, err
	}

	want := doc.Lines.OffsetRange(rng)
	var actions []CodeAction
	for _, p := range problems {
		if !overlaps(p.Range, want) {
			continue
		}
		diagnostic := a.problemDiagnostic(doc, p)
		for _, fix := range p.Fixes {
			action := CodeAction{
				Title:      fix.Title,
				Kind:       CodeActionQuickFix,
				Diagnostic: diagnostic,
				URI:        uri,
			}
			for _, edit := range fix.Edits {
				action.Edits = append(action.Edits, TextEdit{Range: doc.Lines.Range(edit.Range), NewText: edit.NewText})
			}
			actions = append(actions, action)
		}
	}
	return actions, nil
}

func (a *API) inspect(ctx context.Context, doc *Document) ([]inspection.Problem, error) {
	if doc.Kind == 0 || doc.Root == nil {
		return nil, nil
	}
	problems := a.inspections.Run(ctx, &inspection.Context{
		URI:      doc.URI,
		Kind:     doc.Kind,
		Root:     doc.Root,
		Resolver: a.resolver,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return problems, nil
}

func (a *API) problemDiagnostic(doc *Document, p inspection.Problem) Diagnostic {
	return Diagnostic{
		Range:    doc.Lines.Range(p.Range),
		Severity: DiagnosticSeverity(p.Severity),
		Code:     p.InspectionID,
		Source:   DiagnosticSource,
		Message:  p.Message,
	}
}

func overlaps(a, b psi.Range) bool {
	return a.Start <= b.End && b.Start <= a.End
}
