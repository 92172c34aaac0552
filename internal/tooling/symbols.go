package tooling

import (
	"strings"

	"github.com/hybris-tools/tsls/internal/inspection"
	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/resolve"
	"github.com/hybris-tools/tsls/internal/typesystem/items"
	"github.com/hybris-tools/tsls/internal/xmlpsi"
)

// SymbolKind represents the type of a document symbol
type SymbolKind int

const (
	SymbolKindItem SymbolKind = iota + 1
	SymbolKindEnum
	SymbolKindRelation
	SymbolKindAttribute
	SymbolKindRelationEnd
	SymbolKindEnumValue
	SymbolKindSimpleType
	SymbolKindQuery
	SymbolKindBean
	SymbolKindProperty
)

// Symbol is an outline entry of a document
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Detail string
	// Range covers the whole declaration, SelectionRange its name
	Range          Range
	SelectionRange Range
	Children       []*Symbol
}

// GetDocumentSymbols returns the outline of a document
func (a *API) GetDocumentSymbols(uri string) ([]*Symbol, error) {
	doc, err := a.document(uri)
	if err != nil {
		return nil, err
	}
	if doc.Root == nil {
		return nil, nil
	}

	switch doc.Kind {
	case inspection.DocumentDeclarations:
		return declarationSymbols(doc), nil
	case inspection.DocumentBeans:
		return beanSymbols(doc), nil
	case inspection.DocumentQuery:
		return querySymbols(doc, doc.Root), nil
	}
	return nil, nil
}

// symbol creates a symbol spanning tag and selecting name. Symbols without a name are
// dropped by the callers.
func symbol(doc *Document, kind SymbolKind, name items.Value, detail string, tag *psi.Node) *Symbol {
	r := name.Range
	if tag != nil {
		r = tag.Range
	}
	return &Symbol{
		Name:           name.Text,
		Kind:           kind,
		Detail:         detail,
		Range:          doc.Lines.Range(r),
		SelectionRange: doc.Lines.Range(name.Range),
	}
}

func declarationSymbols(doc *Document) []*Symbol {
	f := doc.File
	var symbols []*Symbol

	simple := func(decls []*items.Simple, detail string) {
		for _, s := range decls {
			if s.Code.Text != "" {
				symbols = append(symbols, symbol(doc, SymbolKindSimpleType, s.Code, detail, s.Tag))
			}
		}
	}
	simple(f.Atomics, "atomic")
	simple(f.Collections, "collection")
	simple(f.Maps, "map")

	for _, rel := range f.Relations {
		if rel.Code.Text == "" {
			continue
		}
		s := symbol(doc, SymbolKindRelation, rel.Code, "relation", rel.Tag)
		for _, end := range []*items.RelationEnd{rel.Source, rel.Target} {
			if end != nil && end.Qualifier.Text != "" {
				s.Children = append(s.Children, symbol(doc, SymbolKindRelationEnd, end.Qualifier, end.Type.Text, end.Tag))
			}
		}
		symbols = append(symbols, s)
	}

	for _, enum := range f.Enums {
		if enum.Code.Text == "" {
			continue
		}
		s := symbol(doc, SymbolKindEnum, enum.Code, "enum", enum.Tag)
		for _, v := range enum.Values {
			if v.Code.Text != "" {
				s.Children = append(s.Children, symbol(doc, SymbolKindEnumValue, v.Code, v.Name, v.Tag))
			}
		}
		symbols = append(symbols, s)
	}

	for _, item := range f.Items {
		if item.Code.Text == "" {
			continue
		}
		detail := "itemtype"
		if len(item.Extends) > 0 {
			detail = "extends " + strings.Join(item.Extends, ", ")
		}
		s := symbol(doc, SymbolKindItem, item.Code, detail, item.Tag)
		for _, attr := range item.Attributes {
			if attr.Qualifier.Text != "" {
				s.Children = append(s.Children, symbol(doc, SymbolKindAttribute, attr.Qualifier, attr.Type.Text, attr.Tag))
			}
		}
		symbols = append(symbols, s)
	}
	return symbols
}

func beanSymbols(doc *Document) []*Symbol {
	var symbols []*Symbol
	for _, bean := range xmlpsi.Path(doc.Root, "beans", "bean") {
		class := tagValue(bean, "class")
		if class.Text == "" {
			continue
		}
		s := symbol(doc, SymbolKindBean, class, "bean", bean)
		for _, property := range xmlpsi.Tags(bean, "property") {
			if name := tagValue(property, "name"); name.Text != "" {
				s.Children = append(s.Children, symbol(doc, SymbolKindProperty, name, xmlpsi.AttrOr(property, "type", ""), property))
			}
		}
		symbols = append(symbols, s)
	}
	return symbols
}

func tagValue(tag *psi.Node, attr string) items.Value {
	node := xmlpsi.AttrValueNode(tag, attr)
	if node == nil {
		return items.Value{}
	}
	return items.Value{Text: xmlpsi.Unquote(node.Text()), Range: xmlpsi.ValueRange(node)}
}

// querySymbols lists the query blocks below n, nesting subqueries under their block
func querySymbols(doc *Document, n *psi.Node) []*Symbol {
	var symbols []*Symbol
	for _, child := range n.Children {
		if child.Kind != psi.KindQuerySpecification {
			symbols = append(symbols, querySymbols(doc, child)...)
			continue
		}
		r := doc.Lines.Range(child.Range)
		symbols = append(symbols, &Symbol{
			Name:           queryName(child),
			Kind:           SymbolKindQuery,
			Detail:         "query",
			Range:          r,
			SelectionRange: r,
			Children:       querySymbols(doc, child),
		})
	}
	return symbols
}

func queryName(spec *psi.Node) string {
	var tables []string
	for _, name := range psi.DescendantsOfKindStopAt(spec, psi.KindTableName, psi.KindSubquery) {
		tables = append(tables, resolve.StripMarkers(name.Text()))
	}
	if len(tables) == 0 {
		return "SELECT"
	}
	return "SELECT FROM " + strings.Join(tables, ", ")
}

// FoldingRange is a collapsible line range
type FoldingRange struct {
	StartLine     int
	EndLine       int
	CollapsedText string
}

// GetFoldingRanges returns the collapsible regions of a document allowed by the folding
// settings
func (a *API) GetFoldingRanges(uri string) ([]FoldingRange, error) {
	doc, err := a.document(uri)
	if err != nil {
		return nil, err
	}
	folding := a.config.TypeSystem.Folding
	if !folding.Enabled || doc.Root == nil {
		return nil, nil
	}

	var ranges []FoldingRange
	add := func(r psi.Range, text string) {
		start, end := doc.Lines.Position(r.Start), doc.Lines.Position(r.End)
		if end.Line > start.Line {
			ranges = append(ranges, FoldingRange{StartLine: start.Line, EndLine: end.Line, CollapsedText: text})
		}
	}

	switch doc.Kind {
	case inspection.DocumentDeclarations:
		for _, fold := range doc.File.Folds {
			if folding.Folds(fold.Section) {
				add(fold.Range, fold.Label)
			}
		}
	case inspection.DocumentBeans:
		for _, bean := range xmlpsi.Path(doc.Root, "beans", "bean") {
			add(bean.Range, xmlpsi.AttrOr(bean, "class", "bean"))
		}
	case inspection.DocumentQuery:
		for _, sub := range psi.DescendantsOfKind(doc.Root, psi.KindSubquery) {
			add(sub.Range, "(…)")
		}
	}
	return ranges, nil
}
