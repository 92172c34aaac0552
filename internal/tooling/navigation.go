package tooling

import (
	"context"
	"sort"

	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/resolve"
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
)

// targetsAt returns the meta entities addressed at offset together with the span of the
// token naming them. A reference under the cursor wins; otherwise a declaration whose
// name contains the offset is used.
func (a *API) targetsAt(ctx context.Context, doc *Document, offset int) ([]resolve.Result, psi.Range, error) {
	if doc.Root == nil {
		return nil, psi.Range{}, nil
	}

	for _, ref := range a.resolver.ReferencesAt(doc.Root, offset) {
		span := ref.RangeInElement().Shift(ref.Element().Range.Start)
		if !span.Contains(offset) {
			continue
		}
		results, err := ref.MultiResolve(ctx)
		if err != nil {
			return nil, psi.Range{}, err
		}
		if results = resolve.ValidResults(results); len(results) > 0 {
			return results, span, nil
		}
	}

	if doc.Kind == 0 {
		return nil, psi.Range{}, nil
	}
	if result, span, ok := a.declarationAt(doc.URI, offset); ok {
		return []resolve.Result{result}, span, nil
	}
	return nil, psi.Range{}, nil
}

// declarationAt finds the meta entity whose declaring name in uri contains offset
func (a *API) declarationAt(uri string, offset int) (resolve.Result, psi.Range, bool) {
	reg := a.access.MetaModel()
	hit := func(o meta.Origin) bool {
		return o.URI == uri && o.Range.Contains(offset)
	}

	for _, item := range reg.Items() {
		for _, o := range item.Declarations {
			if hit(o) {
				return resolve.Result{Role: resolve.RoleItem, Item: item}, o.Range, true
			}
		}
		for _, attr := range item.Attributes() {
			if hit(attr.Origin) {
				return resolve.Result{Role: resolve.RoleAttribute, Attribute: attr}, attr.Origin.Range, true
			}
		}
	}
	for _, enum := range reg.Enums() {
		for _, o := range enum.Declarations {
			if hit(o) {
				return resolve.Result{Role: resolve.RoleEnum, Enum: enum}, o.Range, true
			}
		}
	}
	for _, rel := range reg.Relations() {
		if hit(rel.Origin()) {
			return resolve.Result{Role: resolve.RoleRelation, Relation: rel}, rel.Origin().Range, true
		}
		for _, end := range []*meta.RelationEnd{rel.Source, rel.Target} {
			if hit(end.Origin) {
				return resolve.Result{Role: resolve.RoleRelationEnd, RelationEnd: end}, end.Origin.Range, true
			}
		}
	}
	return resolve.Result{}, psi.Range{}, false
}

// GetDefinition returns the declarations of every entity the reference at pos resolves to
func (a *API) GetDefinition(ctx context.Context, uri string, pos Position) ([]Location, error) {
	doc, err := a.document(uri)
	if err != nil {
		return nil, err
	}

	results, _, err := a.targetsAt(ctx, doc, doc.Lines.Offset(pos))
	if err != nil {
		return nil, err
	}

	var locations []Location
	seen := make(map[meta.Origin]bool)
	for _, r := range results {
		origin := r.Origin()
		if origin.IsZero() || seen[origin] {
			continue
		}
		seen[origin] = true
		if loc, ok := a.location(origin.URI, origin.Range); ok {
			locations = append(locations, loc)
		}
	}
	return locations, nil
}

// ResolveAt returns the meta entities the token at pos names
func (a *API) ResolveAt(ctx context.Context, uri string, pos Position) ([]resolve.Result, error) {
	doc, err := a.document(uri)
	if err != nil {
		return nil, err
	}
	results, _, err := a.targetsAt(ctx, doc, doc.Lines.Offset(pos))
	return results, err
}

// Hover is the information shown for the token under the cursor
type Hover struct {
	Contents string
	Range    Range
}

// GetHover describes the entities the token at pos names, or returns nil
func (a *API) GetHover(ctx context.Context, uri string, pos Position) (*Hover, error) {
	doc, err := a.document(uri)
	if err != nil {
		return nil, err
	}

	results, span, err := a.targetsAt(ctx, doc, doc.Lines.Offset(pos))
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return &Hover{
		Contents: buildHover(results),
		Range:    doc.Lines.Range(span),
	}, nil
}

// GetReferences returns the spans of the open documents that resolve to the entity at pos.
// With includeDeclaration the declaring names are included as well.
func (a *API) GetReferences(ctx context.Context, uri string, pos Position, includeDeclaration bool) ([]Location, error) {
	doc, err := a.document(uri)
	if err != nil {
		return nil, err
	}

	targets, _, err := a.targetsAt(ctx, doc, doc.Lines.Offset(pos))
	if err != nil || len(targets) == 0 {
		return nil, err
	}
	wanted := make(map[resolve.Result]bool, len(targets))
	for _, t := range targets {
		wanted[t] = true
	}

	var declarations []Location
	for _, t := range targets {
		if origin := t.Origin(); !origin.IsZero() {
			if loc, ok := a.location(origin.URI, origin.Range); ok {
				declarations = append(declarations, loc)
			}
		}
	}

	var locations []Location
	for _, other := range a.Documents() {
		if other.Root == nil {
			continue
		}
		var walkErr error
		psi.Walk(other.Root, func(n *psi.Node) bool {
			if walkErr != nil {
				return false
			}
			ref := a.resolver.ReferenceFor(n)
			if ref == nil {
				return true
			}
			results, err := ref.MultiResolve(ctx)
			if err != nil {
				walkErr = err
				return false
			}
			for _, r := range results {
				if !wanted[r] {
					continue
				}
				span := ref.RangeInElement().Shift(n.Range.Start)
				loc := Location{URI: other.URI, Range: other.Lines.Range(span)}
				// a declaration name resolving to itself is not a usage
				if !containsLocation(declarations, loc) {
					locations = append(locations, loc)
				}
				break
			}
			return true
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}

	if includeDeclaration {
		for _, loc := range declarations {
			if !containsLocation(locations, loc) {
				locations = append(locations, loc)
			}
		}
	}

	sortLocations(locations)
	return locations, nil
}

func containsLocation(locations []Location, loc Location) bool {
	for _, l := range locations {
		if l == loc {
			return true
		}
	}
	return false
}

func sortLocations(locations []Location) {
	sort.Slice(locations, func(i, j int) bool {
		a, b := locations[i], locations[j]
		if a.URI != b.URI {
			return a.URI < b.URI
		}
		if a.Range.Start.Line != b.Range.Start.Line {
			return a.Range.Start.Line < b.Range.Start.Line
		}
		return a.Range.Start.Character < b.Range.Start.Character
	})
}
