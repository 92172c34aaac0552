package resolve

import (
	"context"
	"fmt"
	"sync"

	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/typesystem/items"
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
	"github.com/hybris-tools/tsls/internal/xmlpsi"
)

// DefaultTypeResolvers returns the built-in declaration reference kinds. Attribute
// qualifiers and index keys are looked up in the enclosing item type.
func DefaultTypeResolvers() map[psi.Kind]TypeResolver {
	return map[psi.Kind]TypeResolver{
		psi.KindItemAttributeQualifier: enclosingItemCode,
		psi.KindIndexKeyAttribute:      enclosingItemCode,
	}
}

func enclosingItemCode(node *psi.Node) (string, bool) {
	code, ok := xmlpsi.Attr(items.EnclosingItemType(node), "code")
	if !ok || code == "" {
		return "", false
	}
	return code, true
}

var cachedReferenceKeys sync.Map

// cachedReferenceKey returns the user data key of the memo shared by every declaration
// reference starting at offset start of its element
func cachedReferenceKey(start int) *psi.Key {
	name := fmt.Sprintf("tsls.ts.cachedReference.%d", start)
	if key, ok := cachedReferenceKeys.Load(name); ok {
		return key.(*psi.Key)
	}
	key, _ := cachedReferenceKeys.LoadOrStore(name, psi.NewKey(name))
	return key.(*psi.Key)
}

// AttributeDeclarationReference resolves a quoted qualifier inside a declaration element to
// an attribute or relation end of the type chosen by the resolver's TypeResolvers
type AttributeDeclarationReference struct {
	resolver *Resolver
	node     *psi.Node
	typeOf   TypeResolver
}

// AttributeDeclarationReference returns the reference of a declaration value node
func (r *Resolver) AttributeDeclarationReference(node *psi.Node) *AttributeDeclarationReference {
	typeOf, ok := r.TypeResolvers[node.Kind]
	if !ok {
		typeOf = func(*psi.Node) (string, bool) { return "", false }
	}
	return &AttributeDeclarationReference{resolver: r, node: node, typeOf: typeOf}
}

func (a *AttributeDeclarationReference) Element() *psi.Node {
	return a.node
}

// RangeInElement excludes the quotes on each side. An empty element keeps its empty range.
func (a *AttributeDeclarationReference) RangeInElement() psi.Range {
	length := a.node.Range.Len()
	if length == 0 {
		return psi.Range{}
	}
	start := min(xmlpsi.QuoteLength, length)
	return psi.Range{Start: start, End: max(length-xmlpsi.QuoteLength, start)}
}

// Value returns the literal text inside the quotes
func (a *AttributeDeclarationReference) Value() string {
	text := a.node.Text()
	r := a.RangeInElement()
	if r.End > len(text) {
		return ""
	}
	return text[r.Start:r.End]
}

// TypeName returns the name of the type the value is looked up in
func (a *AttributeDeclarationReference) TypeName() (string, bool) {
	return a.typeOf(a.node)
}

// MultiResolve returns the first attribute, or failing that the first relation end, whose
// qualifier equals the value exactly. Every reference to the same element span shares one
// cached result.
func (a *AttributeDeclarationReference) MultiResolve(ctx context.Context) ([]Result, error) {
	key := cachedReferenceKey(a.RangeInElement().Start)
	memo := a.node.ComputeUserDataIfAbsent(key, func() any { return &Memo[[]Result]{} }).(*Memo[[]Result])

	return a.resolver.memoized(ctx, memo, a.node, func(_ context.Context, reg *meta.Registry) []Result {
		item := a.targetItem(reg)
		if item == nil {
			return nil
		}
		value := a.Value()
		for attr := range a.resolver.lookup.FindAttributesByName(item, value, true) {
			return []Result{attributeResult(attr)}
		}
		for end := range a.resolver.lookup.FindRelationEndsByQualifier(item, value, true) {
			return []Result{relationEndResult(end)}
		}
		return nil
	})
}

// Variants returns every qualifier of the resolved type, whether or not the current value
// matches one
func (a *AttributeDeclarationReference) Variants() []string {
	return a.resolver.lookup.QualifierNames(a.TargetItem())
}

// TargetItem returns the item whose qualifiers the value is looked up in, or nil
func (a *AttributeDeclarationReference) TargetItem() *meta.Item {
	return a.targetItem(a.resolver.access.MetaModel())
}

// targetItem maps the type name to the item whose qualifiers apply: relations use Link and
// enums use EnumerationValue
func (a *AttributeDeclarationReference) targetItem(reg *meta.Registry) *meta.Item {
	name, ok := a.TypeName()
	if !ok {
		return nil
	}
	classifier, ok := reg.Classifier(name)
	if !ok {
		return nil
	}
	var item *meta.Item
	switch c := classifier.(type) {
	case *meta.Item:
		return c
	case *meta.Relation:
		item, _ = reg.Item(meta.TypeLink)
	case *meta.Enum:
		item, _ = reg.Item(meta.TypeEnumerationValue)
	}
	return item
}
