package resolve

import (
	"context"
	"strings"

	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
	"github.com/hybris-tools/tsls/internal/xmlpsi"
)

const localizedPrefix = "localized:"

var typeReferenceKey = psi.NewKey("tsls.typeReference")

// TypeReference resolves a type name to its classifier. It serves both table names in
// queries, matched ignoring case, and type-valued declaration attributes, matched exactly.
type TypeReference struct {
	resolver *Resolver
	node     *psi.Node
	text     string
	query    bool
	memo     Memo[[]Result]
}

// TableReference returns the reference of a TableName node in a query
func (r *Resolver) TableReference(node *psi.Node) *TypeReference {
	return r.typeReference(node, true)
}

// TypeReference returns the reference of a TypeReferenceValue node in a declaration file
func (r *Resolver) TypeReference(node *psi.Node) *TypeReference {
	return r.typeReference(node, false)
}

func (r *Resolver) typeReference(node *psi.Node, query bool) *TypeReference {
	text := node.Text()
	create := func() any {
		return &TypeReference{resolver: r, node: node, text: text, query: query}
	}
	ref := node.ComputeUserDataIfAbsent(typeReferenceKey, create).(*TypeReference)
	if ref.text != text || ref.resolver != r {
		ref = create().(*TypeReference)
		node.PutUserData(typeReferenceKey, ref)
	}
	return ref
}

func (t *TypeReference) Element() *psi.Node {
	return t.node
}

// RangeInElement covers the type name: without quotes and the localized: prefix in
// declarations, without markers in queries
func (t *TypeReference) RangeInElement() psi.Range {
	if t.query {
		return psi.Range{Start: 0, End: len(StripMarkers(t.text))}
	}
	value := xmlpsi.ValueRange(t.node).Shift(-t.node.Range.Start)
	if strings.HasPrefix(t.text[value.Start:value.End], localizedPrefix) {
		value.Start += len(localizedPrefix)
	}
	return value
}

// TypeName returns the referenced type name
func (t *TypeReference) TypeName() string {
	if t.query {
		return StripMarkers(t.text)
	}
	return strings.TrimPrefix(xmlpsi.Unquote(t.text), localizedPrefix)
}

// MultiResolve returns the classifier named by the reference
func (t *TypeReference) MultiResolve(ctx context.Context) ([]Result, error) {
	return t.resolver.memoized(ctx, &t.memo, t.node, func(_ context.Context, reg *meta.Registry) []Result {
		name := t.TypeName()
		if name == "" {
			return nil
		}
		lookup := reg.Classifier
		if t.query {
			lookup = reg.ClassifierFold
		}
		if c, ok := lookup(name); ok {
			return []Result{classifierResult(c)}
		}
		return nil
	})
}
