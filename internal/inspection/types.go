package inspection

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/resolve"
	"github.com/hybris-tools/tsls/internal/typesystem/access"
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
	"github.com/hybris-tools/tsls/internal/util/fuzzy"
)

var primitiveTypes = []string{"boolean", "byte", "char", "short", "int", "long", "float", "double"}

// UnknownType flags type references naming no declared classifier, atomic, collection or
// map type. Qualified Java class names and primitives are accepted as is.
type UnknownType struct{}

func (UnknownType) ID() string                { return "UnknownType" }
func (UnknownType) DefaultSeverity() Severity { return SeverityError }

func (UnknownType) Inspect(ctx context.Context, c *Context) []Problem {
	if c.Kind != DocumentDeclarations {
		return nil
	}
	snapshot := c.Resolver.Access().Snapshot()
	simple := simpleTypeNames(snapshot)

	var problems []Problem
	for _, node := range psi.DescendantsOfKind(c.Root, psi.KindTypeReferenceValue) {
		ref := c.Resolver.TypeReference(node)
		name := ref.TypeName()
		if name == "" || strings.ContainsAny(name, ".,") || slices.Contains(primitiveTypes, name) || simple[name] {
			continue
		}
		results, err := ref.MultiResolve(ctx)
		if err != nil {
			return problems
		}
		if len(results) > 0 {
			continue
		}

		candidates := append(snapshot.Registry.ClassifierNames(), mapKeys(simple)...)
		r := ref.RangeInElement().Shift(node.Range.Start)
		problems = append(problems, Problem{
			Range:   r,
			Message: fmt.Sprintf("Unknown type '%s'", name),
			Fixes:   suggestionFixes(r, fuzzy.FindSimilar(name, candidates, nil)),
		})
	}
	return problems
}

// simpleTypeNames collects the atomic, collection and map types declared in the snapshot
func simpleTypeNames(snapshot *access.Snapshot) map[string]bool {
	names := make(map[string]bool)
	for _, f := range snapshot.Files {
		for _, s := range slices.Concat(f.Atomics, f.Collections, f.Maps) {
			if s.Code.Text != "" {
				names[s.Code.Text] = true
			}
		}
	}
	return names
}

func mapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// UnresolvedQualifier flags qualifiers that do not exist on a type that does: declaration
// references such as index keys, and columns in queries
type UnresolvedQualifier struct{}

func (UnresolvedQualifier) ID() string                { return "UnresolvedQualifier" }
func (UnresolvedQualifier) DefaultSeverity() Severity { return SeverityWarning }

func (UnresolvedQualifier) Inspect(ctx context.Context, c *Context) []Problem {
	switch c.Kind {
	case DocumentDeclarations:
		return inspectDeclarationQualifiers(ctx, c)
	case DocumentQuery:
		return inspectColumns(ctx, c)
	}
	return nil
}

func inspectDeclarationQualifiers(ctx context.Context, c *Context) []Problem {
	var problems []Problem
	psi.Walk(c.Root, func(n *psi.Node) bool {
		if ctx.Err() != nil {
			return false
		}
		if _, ok := c.Resolver.TypeResolvers[n.Kind]; !ok {
			return true
		}
		ref := c.Resolver.AttributeDeclarationReference(n)
		value := ref.Value()
		item := ref.TargetItem()
		if value == "" || item == nil {
			return false
		}
		results, err := ref.MultiResolve(ctx)
		if err != nil || len(results) > 0 {
			return false
		}

		r := ref.RangeInElement().Shift(n.Range.Start)
		problems = append(problems, Problem{
			Range:   r,
			Message: fmt.Sprintf("Unknown attribute '%s' of type %s", value, item.Name()),
			Fixes:   suggestionFixes(r, c.Resolver.Lookup().SuggestQualifiers(item, value, 0)),
		})
		return false
	})
	return problems
}

func inspectColumns(ctx context.Context, c *Context) []Problem {
	reg := c.Resolver.Access().MetaModel()

	var problems []Problem
	for _, node := range psi.DescendantsOfKind(c.Root, psi.KindColumnReference) {
		ref := c.Resolver.ColumnReference(node)
		qualifier := ref.Qualifier()
		table := ref.TableName()
		if qualifier == "" || table == nil {
			continue
		}
		typeName := resolve.StripMarkers(table.Text())
		classifier, ok := reg.ClassifierFold(typeName)
		if !ok {
			continue
		}
		results, err := ref.MultiResolve(ctx)
		if err != nil {
			return problems
		}
		if len(results) > 0 {
			continue
		}

		column := psi.ChildOfKind(node, psi.KindColumnName)
		problems = append(problems, Problem{
			Range:   column.Range,
			Message: fmt.Sprintf("Cannot resolve column '%s' of type %s", qualifier, classifier.Name()),
			Fixes:   suggestionFixes(column.Range, fuzzy.FindSimilar(qualifier, qualifierNames(c.Resolver, reg, classifier), nil)),
		})
	}
	return problems
}

// qualifierNames lists what may follow a column alias of the given classifier
func qualifierNames(r *resolve.Resolver, reg *meta.Registry, classifier meta.Classifier) []string {
	switch c := classifier.(type) {
	case *meta.Item:
		return r.Lookup().QualifierNames(c)
	case *meta.Relation:
		link, _ := reg.Item(meta.TypeLink)
		return r.Lookup().QualifierNames(link)
	case *meta.Enum:
		return []string{meta.QualifierCode, meta.QualifierName}
	}
	return nil
}
