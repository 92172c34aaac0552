// Package completion computes completion candidates for queries and type declarations.
package completion

import (
	"context"
	"sort"

	"github.com/hybris-tools/tsls/internal/flexsearch"
	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/resolve"
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
	"github.com/hybris-tools/tsls/internal/util/fuzzy"
)

// Kind categorizes a candidate
type Kind int

const (
	KindAttribute Kind = iota + 1
	KindRelationEnd
	KindType
	KindEnum
	KindRelation
	KindKeyword
)

func (k Kind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindRelationEnd:
		return "relation end"
	case KindType:
		return "type"
	case KindEnum:
		return "enum"
	case KindRelation:
		return "relation"
	case KindKeyword:
		return "keyword"
	default:
		return "unknown"
	}
}

// Candidate is one completion proposal
type Candidate struct {
	Label  string
	Kind   Kind
	Detail string
}

// Provider answers completion requests against the model a resolver reads
type Provider struct {
	resolver *resolve.Resolver
}

// NewProvider creates a provider
func NewProvider(resolver *resolve.Resolver) *Provider {
	return &Provider{resolver: resolver}
}

// ForQuery returns the candidates at offset in the query rooted at root, best first
func (p *Provider) ForQuery(ctx context.Context, root *psi.Node, offset int) []Candidate {
	if ctx.Err() != nil {
		return nil
	}
	c := QueryContext(root, offset)
	reg := p.resolver.Access().MetaModel()

	var candidates []Candidate
	switch c.Kind {
	case ContextColumn:
		if table := resolve.FindAliasedTable(c.Node, c.Alias); table != nil {
			candidates = qualifierCandidates(reg, resolve.StripMarkers(table.Text()))
		}
	case ContextQualifier:
		if table := resolve.FirstTable(c.Node); table != nil {
			candidates = qualifierCandidates(reg, resolve.StripMarkers(table.Text()))
		}
	case ContextTable:
		candidates = typeCandidates(reg)
	case ContextKeyword:
		candidates = keywordCandidates()
	}
	return rank(candidates, c.Prefix)
}

// ForDeclaration returns every qualifier of the type a declaration reference node is looked
// up in
func (p *Provider) ForDeclaration(node *psi.Node) []Candidate {
	item := p.resolver.AttributeDeclarationReference(node).TargetItem()
	if item == nil {
		return nil
	}
	return itemCandidates(item)
}

// TypeNames returns the classifiers matching prefix, best first
func (p *Provider) TypeNames(prefix string) []Candidate {
	return rank(typeCandidates(p.resolver.Access().MetaModel()), prefix)
}

func qualifierCandidates(reg *meta.Registry, typeName string) []Candidate {
	if item, ok := reg.ItemFold(typeName); ok {
		return itemCandidates(item)
	}

	if rel, ok := reg.RelationFold(typeName); ok {
		candidates := []Candidate{
			{Label: meta.QualifierSource, Kind: KindRelationEnd, Detail: rel.Source.Type},
			{Label: meta.QualifierTarget, Kind: KindRelationEnd, Detail: rel.Target.Type},
		}
		if link, ok := reg.Item(meta.TypeLink); ok {
			for _, c := range itemCandidates(link) {
				if c.Label != meta.QualifierSource && c.Label != meta.QualifierTarget {
					candidates = append(candidates, c)
				}
			}
		}
		return candidates
	}

	if enum, ok := reg.EnumFold(typeName); ok {
		return []Candidate{
			{Label: meta.QualifierCode, Kind: KindAttribute, Detail: enum.Name()},
			{Label: meta.QualifierName, Kind: KindAttribute, Detail: enum.Name()},
		}
	}
	return nil
}

// itemCandidates lists the effective attributes and relation ends of item by qualifier.
// An attribute wins over a relation end of the same name.
func itemCandidates(item *meta.Item) []Candidate {
	seen := make(map[string]bool)
	var candidates []Candidate
	for _, attr := range item.AllAttributes() {
		if !seen[attr.Qualifier] {
			seen[attr.Qualifier] = true
			candidates = append(candidates, Candidate{Label: attr.Qualifier, Kind: KindAttribute, Detail: attr.Type})
		}
	}
	for _, end := range item.AllRelationEnds() {
		if !seen[end.Qualifier] {
			seen[end.Qualifier] = true
			candidates = append(candidates, Candidate{Label: end.Qualifier, Kind: KindRelationEnd, Detail: end.Type})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Label < candidates[j].Label })
	return candidates
}

func typeCandidates(reg *meta.Registry) []Candidate {
	var candidates []Candidate
	for _, item := range reg.Items() {
		candidates = append(candidates, Candidate{Label: item.Name(), Kind: KindType, Detail: "item"})
	}
	for _, enum := range reg.Enums() {
		candidates = append(candidates, Candidate{Label: enum.Name(), Kind: KindEnum, Detail: "enum"})
	}
	for _, rel := range reg.Relations() {
		candidates = append(candidates, Candidate{Label: rel.Name(), Kind: KindRelation, Detail: "relation"})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Label < candidates[j].Label })
	return candidates
}

func keywordCandidates() []Candidate {
	words := flexsearch.Keywords()
	candidates := make([]Candidate, 0, len(words))
	for _, w := range words {
		candidates = append(candidates, Candidate{Label: w, Kind: KindKeyword})
	}
	return candidates
}

// rank orders candidates by how well their label matches the typed prefix
func rank(candidates []Candidate, prefix string) []Candidate {
	if prefix == "" {
		return candidates
	}
	byLabel := make(map[string]Candidate, len(candidates))
	labels := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := byLabel[c.Label]; !dup {
			byLabel[c.Label] = c
			labels = append(labels, c.Label)
		}
	}
	ranked := fuzzy.Rank(prefix, labels)
	result := make([]Candidate, 0, len(ranked))
	for _, label := range ranked {
		result = append(result, byLabel[label])
	}
	return result
}
