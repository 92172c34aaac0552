package meta

import (
	"sort"
	"strings"
)

// Registry is an immutable snapshot of the meta-model of one workspace
type Registry struct {
	items     map[string]*Item
	enums     map[string]*Enum
	relations map[string]*Relation

	// lower-cased name -> exact name, first one in sorted order wins
	itemsFold     map[string]string
	enumsFold     map[string]string
	relationsFold map[string]string

	problems []Problem
}

// Empty returns a registry holding only the synthetic types
func Empty() *Registry {
	return NewBuilder().Build()
}

// Item looks up an item type by exact name
func (r *Registry) Item(name string) (*Item, bool) {
	i, ok := r.items[name]
	return i, ok
}

// Enum looks up an enum by exact name
func (r *Registry) Enum(name string) (*Enum, bool) {
	e, ok := r.enums[name]
	return e, ok
}

// Relation looks up a relation by exact name
func (r *Registry) Relation(name string) (*Relation, bool) {
	rel, ok := r.relations[name]
	return rel, ok
}

// Classifier looks up any classifier by exact name. Items take precedence over relations,
// relations over enums.
func (r *Registry) Classifier(name string) (Classifier, bool) {
	if i, ok := r.items[name]; ok {
		return i, true
	}
	if rel, ok := r.relations[name]; ok {
		return rel, true
	}
	if e, ok := r.enums[name]; ok {
		return e, true
	}
	return nil, false
}

// ItemFold looks up an item type ignoring case, preferring an exact match
func (r *Registry) ItemFold(name string) (*Item, bool) {
	if i, ok := r.items[name]; ok {
		return i, true
	}
	if exact, ok := r.itemsFold[strings.ToLower(name)]; ok {
		return r.items[exact], true
	}
	return nil, false
}

// EnumFold looks up an enum ignoring case, preferring an exact match
func (r *Registry) EnumFold(name string) (*Enum, bool) {
	if e, ok := r.enums[name]; ok {
		return e, true
	}
	if exact, ok := r.enumsFold[strings.ToLower(name)]; ok {
		return r.enums[exact], true
	}
	return nil, false
}

// RelationFold looks up a relation ignoring case, preferring an exact match
func (r *Registry) RelationFold(name string) (*Relation, bool) {
	if rel, ok := r.relations[name]; ok {
		return rel, true
	}
	if exact, ok := r.relationsFold[strings.ToLower(name)]; ok {
		return r.relations[exact], true
	}
	return nil, false
}

// ClassifierFold looks up any classifier: an exact match of any variant first, then a
// case-insensitive one
func (r *Registry) ClassifierFold(name string) (Classifier, bool) {
	if c, ok := r.Classifier(name); ok {
		return c, true
	}
	if i, ok := r.ItemFold(name); ok {
		return i, true
	}
	if rel, ok := r.RelationFold(name); ok {
		return rel, true
	}
	if e, ok := r.EnumFold(name); ok {
		return e, true
	}
	return nil, false
}

// Items returns all item types sorted by name
func (r *Registry) Items() []*Item {
	return sortedValues(r.items)
}

// Enums returns all enums sorted by name
func (r *Registry) Enums() []*Enum {
	return sortedValues(r.enums)
}

// Relations returns all relations sorted by name
func (r *Registry) Relations() []*Relation {
	return sortedValues(r.relations)
}

// ClassifierNames returns the names of every classifier, sorted and de-duplicated
func (r *Registry) ClassifierNames() []string {
	seen := make(map[string]bool, len(r.items)+len(r.enums)+len(r.relations))
	var names []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range r.items {
		add(name)
	}
	for name := range r.enums {
		add(name)
	}
	for name := range r.relations {
		add(name)
	}
	sort.Strings(names)
	return names
}

// Problems returns the inconsistencies found while building
func (r *Registry) Problems() []Problem {
	return r.problems
}

func sortedValues[V Classifier](m map[string]V) []V {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	result := make([]V, 0, len(names))
	for _, name := range names {
		result = append(result, m[name])
	}
	return result
}

func foldIndex[V any](m map[string]V) map[string]string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	index := make(map[string]string, len(names))
	for _, name := range names {
		lower := strings.ToLower(name)
		if _, ok := index[lower]; !ok {
			index[lower] = name
		}
	}
	return index
}
