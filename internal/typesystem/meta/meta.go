// Package meta holds the type-system meta-model: item types, enums and relations with
// their attributes and relation ends. A Registry is immutable once built; rebuilding the
// model means building a new Registry and publishing it.
package meta

import (
	"github.com/hybris-tools/tsls/internal/psi"
)

// Well-known type names
const (
	TypeLink             = "Link"
	TypeEnumerationValue = "EnumerationValue"
	TypeGenericItem      = "GenericItem"
	TypeItem             = "Item"
)

// Qualifiers that always resolve on relations and enums
const (
	QualifierSource = "source"
	QualifierTarget = "target"
	QualifierCode   = "code"
	QualifierName   = "name"
)

// Kind discriminates classifier variants
type Kind int

const (
	KindItem Kind = iota
	KindEnum
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindEnum:
		return "enum"
	case KindRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Origin locates the declaring element of a meta entity. Synthetic entities have an empty
// URI.
type Origin struct {
	URI   string
	Range psi.Range
}

// IsZero reports whether the origin points nowhere
func (o Origin) IsZero() bool {
	return o.URI == ""
}

// Classifier is one of *Item, *Enum or *Relation
type Classifier interface {
	Name() string
	Kind() Kind
	Origin() Origin
	isClassifier()
}

// Item is an item type
type Item struct {
	name      string
	origin    Origin
	Extends   []string
	Abstract  bool
	Synthetic bool

	// Declarations lists every origin the item was merged from
	Declarations []Origin

	attributes   map[string]*Attribute
	order        []*Attribute
	relationEnds []*RelationEnd
	indexes      []*Index

	hierarchy       []*Item
	allAttributes   []*Attribute
	allRelationEnds []*RelationEnd
}

func (i *Item) Name() string   { return i.name }
func (i *Item) Kind() Kind     { return KindItem }
func (i *Item) Origin() Origin { return i.origin }
func (i *Item) isClassifier()  {}

// Attribute returns the attribute declared on the item itself
func (i *Item) Attribute(qualifier string) (*Attribute, bool) {
	a, ok := i.attributes[qualifier]
	return a, ok
}

// Attributes returns the item's own attributes in declaration order
func (i *Item) Attributes() []*Attribute {
	return i.order
}

// RelationEnds returns the relation ends attached to the item itself
func (i *Item) RelationEnds() []*RelationEnd {
	return i.relationEnds
}

// Indexes returns the item's own indexes
func (i *Item) Indexes() []*Index {
	return i.indexes
}

// Hierarchy returns the item followed by its supertypes, depth-first in extends order
func (i *Item) Hierarchy() []*Item {
	return i.hierarchy
}

// AllAttributes returns the effective attribute set: own first, then inherited, with
// shadowed definitions removed
func (i *Item) AllAttributes() []*Attribute {
	return i.allAttributes
}

// AllRelationEnds returns the effective relation end set, ordered like AllAttributes
func (i *Item) AllRelationEnds() []*RelationEnd {
	return i.allRelationEnds
}

// Attribute is an attribute of an item type
type Attribute struct {
	Qualifier string
	Type      string
	// Owner is the name of the declaring item
	Owner     string
	Redeclare bool
	Synthetic bool
	Origin    Origin
}

// Index is a declared index of an item type
type Index struct {
	Name   string
	Keys   []string
	Origin Origin
}

// End tells which side of a relation an end is
type End int

const (
	EndSource End = iota
	EndTarget
)

func (e End) String() string {
	if e == EndSource {
		return QualifierSource
	}
	return QualifierTarget
}

// RelationEnd is one side of a relation, usable as an attribute of the opposite type
type RelationEnd struct {
	Qualifier   string
	Type        string
	Cardinality string
	End         End
	// Relation is the name of the declaring relation
	Relation string
	// Owner is the name of the item the end is navigable from
	Owner     string
	Navigable bool
	Ordered   bool
	Origin    Origin
}

// Enum is an enumeration type
type Enum struct {
	name    string
	origin  Origin
	Dynamic bool
	Values  []*EnumValue

	Declarations []Origin
}

func (e *Enum) Name() string   { return e.name }
func (e *Enum) Kind() Kind     { return KindEnum }
func (e *Enum) Origin() Origin { return e.origin }
func (e *Enum) isClassifier()  {}

// Value returns the enum value with the given code
func (e *Enum) Value(code string) (*EnumValue, bool) {
	for _, v := range e.Values {
		if v.Code == code {
			return v, true
		}
	}
	return nil, false
}

// EnumValue is one value of an enum
type EnumValue struct {
	Code   string
	Name   string
	Origin Origin
}

// Relation is a relation between two item types
type Relation struct {
	name      string
	origin    Origin
	Localized bool
	Source    *RelationEnd
	Target    *RelationEnd
}

func (r *Relation) Name() string   { return r.name }
func (r *Relation) Kind() Kind     { return KindRelation }
func (r *Relation) Origin() Origin { return r.origin }
func (r *Relation) isClassifier()  {}

// Problem is an inconsistency found while building the model
type Problem struct {
	Origin  Origin
	Message string
}
