package meta

import (
	"fmt"
	"slices"

	"github.com/hybris-tools/tsls/internal/typesystem/items"
)

// syntheticAttribute is a qualifier and type of an attribute the platform declares
type syntheticAttribute struct {
	qualifier string
	typ       string
}

var linkAttributes = []syntheticAttribute{
	{QualifierSource, TypeItem},
	{QualifierTarget, TypeItem},
	{"qualifier", "java.lang.String"},
	{"language", "Language"},
	{"sequenceNumber", "java.lang.Integer"},
	{"reverseSequenceNumber", "java.lang.Integer"},
}

var enumerationValueAttributes = []syntheticAttribute{
	{QualifierCode, "java.lang.String"},
	{QualifierName, "localized:java.lang.String"},
	{"sequenceNumber", "java.lang.Integer"},
}

// baseAttributes are inherited by every persistent item through its root type
var baseAttributes = []syntheticAttribute{
	{"pk", "de.hybris.platform.core.PK"},
	{"creationtime", "java.util.Date"},
	{"modifiedtime", "java.util.Date"},
}

// rootTypes are platform types that may be extended without being declared in the workspace
var rootTypes = []string{TypeGenericItem, TypeItem}

// Builder assembles a Registry from parsed declaration files. Building never fails:
// inconsistencies are recorded as problems on the registry.
type Builder struct {
	files []*items.File
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Add queues a parsed declaration file. Files are merged in the order they were added.
func (b *Builder) Add(files ...*items.File) *Builder {
	b.files = append(b.files, files...)
	return b
}

// Build creates the registry
func (b *Builder) Build() *Registry {
	r := &Registry{
		items:     make(map[string]*Item),
		enums:     make(map[string]*Enum),
		relations: make(map[string]*Relation),
	}

	for _, f := range b.files {
		for _, decl := range f.Items {
			b.addItem(r, f.URI, decl)
		}
		for _, decl := range f.Enums {
			b.addEnum(r, f.URI, decl)
		}
		for _, decl := range f.Relations {
			b.addRelation(r, f.URI, decl)
		}
	}

	addSynthetic(r, TypeLink, linkAttributes)
	addSynthetic(r, TypeEnumerationValue, enumerationValueAttributes)
	for _, item := range r.items {
		for _, super := range item.Extends {
			if slices.Contains(rootTypes, super) {
				addSynthetic(r, super, baseAttributes)
			}
		}
	}

	attachRelationEnds(r)
	for _, name := range sortedNames(r.items) {
		linearize(r, r.items[name])
	}
	for _, item := range r.items {
		computeEffective(item)
	}

	r.itemsFold = foldIndex(r.items)
	r.enumsFold = foldIndex(r.enums)
	r.relationsFold = foldIndex(r.relations)
	return r
}

func (b *Builder) addItem(r *Registry, uri string, decl *items.ItemType) {
	name := decl.Code.Text
	if name == "" {
		return
	}
	origin := Origin{URI: uri, Range: decl.Code.Range}

	item, exists := r.items[name]
	if !exists {
		item = &Item{
			name:       name,
			origin:     origin,
			Abstract:   decl.Abstract,
			attributes: make(map[string]*Attribute),
		}
		r.items[name] = item
	}
	item.Declarations = append(item.Declarations, origin)
	if len(item.Extends) == 0 && len(decl.Extends) > 0 {
		item.Extends = slices.Clone(decl.Extends)
	}

	for _, a := range decl.Attributes {
		qualifier := a.Qualifier.Text
		if qualifier == "" {
			continue
		}
		attrOrigin := Origin{URI: uri, Range: a.Qualifier.Range}
		if _, dup := item.attributes[qualifier]; dup {
			r.problems = append(r.problems, Problem{
				Origin:  attrOrigin,
				Message: fmt.Sprintf("attribute %q is declared more than once on %s", qualifier, name),
			})
			continue
		}
		attr := &Attribute{
			Qualifier: qualifier,
			Type:      a.Type.Text,
			Owner:     name,
			Redeclare: a.Redeclare,
			Origin:    attrOrigin,
		}
		item.attributes[qualifier] = attr
		item.order = append(item.order, attr)
	}

	for _, idx := range decl.Indexes {
		index := &Index{Name: idx.Name, Origin: Origin{URI: uri, Range: idx.Tag.Range}}
		for _, key := range idx.Keys {
			index.Keys = append(index.Keys, key.Text)
		}
		item.indexes = append(item.indexes, index)
	}
}

func (b *Builder) addEnum(r *Registry, uri string, decl *items.EnumType) {
	name := decl.Code.Text
	if name == "" {
		return
	}
	origin := Origin{URI: uri, Range: decl.Code.Range}

	enum, exists := r.enums[name]
	if !exists {
		enum = &Enum{name: name, origin: origin}
		r.enums[name] = enum
	}
	enum.Declarations = append(enum.Declarations, origin)
	enum.Dynamic = enum.Dynamic || decl.Dynamic

	for _, v := range decl.Values {
		if v.Code.Text == "" {
			continue
		}
		if _, dup := enum.Value(v.Code.Text); dup {
			continue
		}
		enum.Values = append(enum.Values, &EnumValue{
			Code:   v.Code.Text,
			Name:   v.Name,
			Origin: Origin{URI: uri, Range: v.Code.Range},
		})
	}
}

func (b *Builder) addRelation(r *Registry, uri string, decl *items.Relation) {
	name := decl.Code.Text
	if name == "" {
		return
	}
	origin := Origin{URI: uri, Range: decl.Code.Range}
	if _, exists := r.relations[name]; exists {
		r.problems = append(r.problems, Problem{
			Origin:  origin,
			Message: fmt.Sprintf("relation %s is declared more than once", name),
		})
		return
	}

	rel := &Relation{name: name, origin: origin, Localized: decl.Localized}
	rel.Source = relationEnd(uri, name, EndSource, decl.Source)
	rel.Target = relationEnd(uri, name, EndTarget, decl.Target)
	r.relations[name] = rel
}

func relationEnd(uri, relation string, end End, decl *items.RelationEnd) *RelationEnd {
	if decl == nil {
		return &RelationEnd{End: end, Relation: relation, Navigable: true}
	}
	return &RelationEnd{
		Qualifier:   decl.Qualifier.Text,
		Type:        decl.Type.Text,
		Cardinality: decl.Cardinality,
		End:         end,
		Relation:    relation,
		Navigable:   decl.Navigable,
		Ordered:     decl.Ordered,
		Origin:      Origin{URI: uri, Range: decl.Qualifier.Range},
	}
}

// addSynthetic declares an item the platform always provides, unless the workspace
// declares it already
func addSynthetic(r *Registry, name string, attributes []syntheticAttribute) {
	if _, ok := r.items[name]; ok {
		return
	}
	item := &Item{
		name:       name,
		Synthetic:  true,
		attributes: make(map[string]*Attribute, len(attributes)),
	}
	for _, a := range attributes {
		attr := &Attribute{Qualifier: a.qualifier, Type: a.typ, Owner: name, Synthetic: true}
		item.attributes[a.qualifier] = attr
		item.order = append(item.order, attr)
	}
	r.items[name] = item
}

// attachRelationEnds makes each navigable end an attribute-like member of the opposite
// type: the target end is reachable from the source type and vice versa
func attachRelationEnds(r *Registry) {
	for _, name := range sortedNames(r.relations) {
		rel := r.relations[name]
		attach(r, rel.Target, rel.Source.Type)
		attach(r, rel.Source, rel.Target.Type)
	}
}

func attach(r *Registry, end *RelationEnd, ownerType string) {
	if end.Qualifier == "" || !end.Navigable || ownerType == "" {
		return
	}
	owner, ok := r.items[ownerType]
	if !ok {
		r.problems = append(r.problems, Problem{
			Origin:  end.Origin,
			Message: fmt.Sprintf("relation %s refers to unknown type %s", end.Relation, ownerType),
		})
		return
	}
	end.Owner = owner.name
	owner.relationEnds = append(owner.relationEnds, end)
}

// linearize computes the item followed by its supertypes, depth-first in extends order.
// Each type appears once; cycles and unknown supertypes are reported and skipped.
func linearize(r *Registry, item *Item) {
	if item.hierarchy != nil {
		return
	}
	var order []*Item
	visited := make(map[string]bool)
	onPath := make(map[string]bool)

	var visit func(it *Item)
	visit = func(it *Item) {
		visited[it.name] = true
		onPath[it.name] = true
		order = append(order, it)
		for _, super := range it.Extends {
			if onPath[super] {
				if it == item || super == item.name {
					r.problems = append(r.problems, Problem{
						Origin:  item.origin,
						Message: fmt.Sprintf("cyclic inheritance: %s extends %s", it.name, super),
					})
				}
				continue
			}
			if visited[super] {
				continue
			}
			next, ok := r.items[super]
			if !ok {
				if it == item {
					r.problems = append(r.problems, Problem{
						Origin:  item.origin,
						Message: fmt.Sprintf("unknown supertype %s of %s", super, item.name),
					})
				}
				continue
			}
			visit(next)
		}
		onPath[it.name] = false
	}
	visit(item)
	item.hierarchy = order
}

// computeEffective fills AllAttributes and AllRelationEnds. A definition is dropped only
// when a more derived type in the hierarchy, one that inherits from the declaring type,
// declares the same qualifier. Definitions from unrelated branches of a diamond are both
// kept.
func computeEffective(item *Item) {
	ancestors := make(map[string]map[string]bool, len(item.hierarchy))
	for _, t := range item.hierarchy {
		set := make(map[string]bool, len(t.hierarchy))
		for _, s := range t.hierarchy[1:] {
			set[s.name] = true
		}
		ancestors[t.name] = set
	}
	shadowed := func(declaring string, declares func(*Item) bool) bool {
		for _, d := range item.hierarchy {
			if d.name != declaring && ancestors[d.name][declaring] && declares(d) {
				return true
			}
		}
		return false
	}

	for _, t := range item.hierarchy {
		for _, a := range t.order {
			qualifier := a.Qualifier
			if shadowed(t.name, func(d *Item) bool { _, ok := d.attributes[qualifier]; return ok }) {
				continue
			}
			item.allAttributes = append(item.allAttributes, a)
		}
	}
	for _, t := range item.hierarchy {
		for _, e := range t.relationEnds {
			qualifier := e.Qualifier
			if shadowed(t.name, func(d *Item) bool {
				return slices.ContainsFunc(d.relationEnds, func(o *RelationEnd) bool { return o.Qualifier == qualifier })
			}) {
				continue
			}
			item.allRelationEnds = append(item.allRelationEnds, e)
		}
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
