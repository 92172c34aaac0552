package resolve

import (
	"context"
	"strings"

	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
)

var columnReferenceKey = psi.NewKey("tsls.fxs.columnReference")

// ColumnReference resolves `column` or `alias.column` in a query against the type bound in
// the enclosing FROM clauses
type ColumnReference struct {
	resolver *Resolver
	node     *psi.Node
	text     string
	memo     Memo[[]Result]
}

// ColumnReference returns the reference of a ColumnReference node. The reference is kept
// on the node and replaced when the node text no longer matches the text it was created for.
func (r *Resolver) ColumnReference(node *psi.Node) *ColumnReference {
	text := node.Text()
	create := func() any {
		return &ColumnReference{resolver: r, node: node, text: text}
	}
	ref := node.ComputeUserDataIfAbsent(columnReferenceKey, create).(*ColumnReference)
	if ref.text != text || ref.resolver != r {
		ref = create().(*ColumnReference)
		node.PutUserData(columnReferenceKey, ref)
	}
	return ref
}

func (c *ColumnReference) Element() *psi.Node {
	return c.node
}

// RangeInElement covers the whole column reference
func (c *ColumnReference) RangeInElement() psi.Range {
	return psi.Range{Start: 0, End: c.node.Range.Len()}
}

// Alias returns the alias prefix without outer join markers, or "" when unqualified
func (c *ColumnReference) Alias() string {
	if alias := psi.ChildOfKind(c.node, psi.KindTableNameIdentifier); alias != nil {
		return StripMarkers(alias.Text())
	}
	return ""
}

// Qualifier returns the column name without outer join markers
func (c *ColumnReference) Qualifier() string {
	if column := psi.ChildOfKind(c.node, psi.KindColumnName); column != nil {
		return StripMarkers(column.Text())
	}
	return ""
}

// MultiResolve returns the attributes and relation ends the column names
func (c *ColumnReference) MultiResolve(ctx context.Context) ([]Result, error) {
	return c.resolver.memoized(ctx, &c.memo, c.node, func(ctx context.Context, reg *meta.Registry) []Result {
		qualifier := c.Qualifier()
		if qualifier == "" {
			return nil
		}
		table := c.TableName()
		if table == nil {
			return nil
		}
		return c.resolver.resolveQualifier(reg, StripMarkers(table.Text()), qualifier)
	})
}

// TableName returns the table name node the column is looked up in
func (c *ColumnReference) TableName() *psi.Node {
	if alias := psi.ChildOfKind(c.node, psi.KindTableNameIdentifier); alias != nil {
		return FindAliasedTable(c.node, StripMarkers(alias.Text()))
	}
	return FirstTable(c.node)
}

// FirstTable returns the first table name in the FROM clause of the query block enclosing n.
// Tables of nested subqueries are skipped.
func FirstTable(n *psi.Node) *psi.Node {
	block := psi.ParentOfKind(n, psi.KindQuerySpecification)
	from := psi.ChildOfKind(block, psi.KindFromClause)
	names := psi.DescendantsOfKindStopAt(from, psi.KindTableName, psi.KindSubquery)
	if len(names) == 0 {
		return nil
	}
	return names[0]
}

// FindAliasedTable searches the query blocks enclosing n, innermost first, for a table
// reference bound to alias and returns its table name. A table reference without a
// correlation name is bound to its own name. Within a block the references of its own FROM
// clause are tried before those of nested subqueries.
func FindAliasedTable(n *psi.Node, alias string) *psi.Node {
	for block := psi.ParentOfKind(n, psi.KindQuerySpecification); block != nil; block = psi.ParentOfKind(block, psi.KindQuerySpecification) {
		if ref := aliasedIn(block, alias); ref != nil {
			// a derived table has no name to resolve against
			return psi.ChildOfKind(ref, psi.KindTableName)
		}
	}
	return nil
}

func aliasedIn(block *psi.Node, alias string) *psi.Node {
	from := psi.ChildOfKind(block, psi.KindFromClause)
	direct := psi.DescendantsOfKindStopAt(from, psi.KindTableReference, psi.KindSubquery)
	for _, ref := range direct {
		if boundName(ref) == alias {
			return ref
		}
	}
	for _, ref := range psi.DescendantsOfKind(block, psi.KindTableReference) {
		if boundName(ref) == alias {
			return ref
		}
	}
	return nil
}

// boundName returns the name a table reference is addressed by in column references
func boundName(ref *psi.Node) string {
	if corr := psi.ChildOfKind(ref, psi.KindCorrelationName); corr != nil {
		return StripMarkers(corr.Text())
	}
	if name := psi.ChildOfKind(ref, psi.KindTableName); name != nil {
		return StripMarkers(name.Text())
	}
	return ""
}

// resolveQualifier looks up qualifier in the classifier named typeName. Query references
// match type names and qualifiers ignoring case.
func (r *Resolver) resolveQualifier(reg *meta.Registry, typeName, qualifier string) []Result {
	if item, ok := reg.ItemFold(typeName); ok {
		var results []Result
		for attr := range r.lookup.FindAttributesByName(item, qualifier, false) {
			results = append(results, attributeResult(attr))
		}
		for end := range r.lookup.FindRelationEndsByQualifier(item, qualifier, false) {
			results = append(results, relationEndResult(end))
		}
		return results
	}

	if rel, ok := reg.RelationFold(typeName); ok {
		switch {
		case strings.EqualFold(qualifier, meta.QualifierSource):
			return []Result{relationEndResult(rel.Source)}
		case strings.EqualFold(qualifier, meta.QualifierTarget):
			return []Result{relationEndResult(rel.Target)}
		}
		if link, ok := reg.Item(meta.TypeLink); ok {
			if attr, ok := link.Attribute(qualifier); ok {
				return []Result{attributeResult(attr)}
			}
		}
		return nil
	}

	if enum, ok := reg.EnumFold(typeName); ok {
		if qualifier == meta.QualifierCode || qualifier == meta.QualifierName {
			return []Result{{Role: RoleEnum, Enum: enum}}
		}
	}
	return nil
}

// StripMarkers removes outer join markers and the trailing subtype marker of a name
func StripMarkers(s string) string {
	return strings.TrimRight(strings.ReplaceAll(s, "!", ""), "*")
}
