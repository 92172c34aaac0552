package tooling

import (
	"context"
	"fmt"
	"strings"

	"github.com/hybris-tools/tsls/internal/completion"
	"github.com/hybris-tools/tsls/internal/inspection"
	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/xmlpsi"
)

// CompletionKind categorizes a completion item
type CompletionKind int

const (
	CompletionKindAttribute CompletionKind = iota + 1
	CompletionKindRelationEnd
	CompletionKindType
	CompletionKindEnum
	CompletionKindRelation
	CompletionKindKeyword
)

var completionKinds = map[completion.Kind]CompletionKind{
	completion.KindAttribute:   CompletionKindAttribute,
	completion.KindRelationEnd: CompletionKindRelationEnd,
	completion.KindType:        CompletionKindType,
	completion.KindEnum:        CompletionKindEnum,
	completion.KindRelation:    CompletionKindRelation,
	completion.KindKeyword:     CompletionKindKeyword,
}

// CompletionItem is one completion proposal
type CompletionItem struct {
	Label  string
	Kind   CompletionKind
	Detail string
	// SortText keeps the ranking order in clients that sort by label
	SortText string
}

// GetCompletions returns completions at pos, best first
func (a *API) GetCompletions(ctx context.Context, uri string, pos Position) ([]CompletionItem, error) {
	doc, err := a.document(uri)
	if err != nil {
		return nil, err
	}
	if doc.Root == nil {
		return nil, nil
	}

	offset := doc.Lines.Offset(pos)
	var candidates []completion.Candidate
	switch doc.Kind {
	case inspection.DocumentQuery:
		candidates = a.completion.ForQuery(ctx, doc.Root, offset)
	case inspection.DocumentDeclarations:
		candidates = a.declarationCompletions(doc, offset)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return toCompletionItems(candidates), nil
}

func (a *API) declarationCompletions(doc *Document, offset int) []completion.Candidate {
	for n := psi.LeafAt(doc.Root, offset); n != nil; n = n.Parent {
		if _, ok := a.resolver.TypeResolvers[n.Kind]; ok {
			return a.completion.ForDeclaration(n)
		}
		if n.Kind == psi.KindTypeReferenceValue {
			return a.completion.TypeNames(typedTypePrefix(doc.Content, n, offset))
		}
	}
	return nil
}

// typedTypePrefix returns the part of the type name typed before offset in a type
// reference value, skipping earlier entries of a comma separated list and the localized
// marker
func typedTypePrefix(content string, value *psi.Node, offset int) string {
	start := value.Range.Start + xmlpsi.QuoteLength
	end := min(offset, value.Range.End)
	if end <= start {
		return ""
	}
	typed := strings.Trim(content[start:end], `"'`)
	if i := strings.LastIndexByte(typed, ','); i >= 0 {
		typed = typed[i+1:]
	}
	typed = strings.TrimPrefix(strings.TrimSpace(typed), "localized:")
	return typed
}

func toCompletionItems(candidates []completion.Candidate) []CompletionItem {
	result := make([]CompletionItem, 0, len(candidates))
	for i, c := range candidates {
		result = append(result, CompletionItem{
			Label:    c.Label,
			Kind:     completionKinds[c.Kind],
			Detail:   c.Detail,
			SortText: fmt.Sprintf("%04d", i),
		})
	}
	return result
}
