// Package lookup finds attributes and relation ends of item types by qualifier.
package lookup

import (
	"iter"
	"sort"
	"strings"

	"github.com/hybris-tools/tsls/internal/typesystem/meta"
	"github.com/hybris-tools/tsls/internal/util/fuzzy"
)

// Service answers qualifier queries about item types. It holds no model of its own:
// callers pass items taken from the snapshot they resolve against, so a query never
// mixes two generations.
type Service struct{}

// NewService creates a lookup service
func NewService() *Service {
	return &Service{}
}

func matcher(qualifier string, exact bool) func(string) bool {
	if exact {
		return func(q string) bool { return q == qualifier }
	}
	return func(q string) bool { return strings.EqualFold(q, qualifier) }
}

// FindAttributesByName yields the attributes of item named qualifier, own attributes first.
// A nil item yields nothing.
func (s *Service) FindAttributesByName(item *meta.Item, qualifier string, exact bool) iter.Seq[*meta.Attribute] {
	match := matcher(qualifier, exact)
	return func(yield func(*meta.Attribute) bool) {
		if item == nil {
			return
		}
		for _, attr := range item.AllAttributes() {
			if match(attr.Qualifier) && !yield(attr) {
				return
			}
		}
	}
}

// FindRelationEndsByQualifier yields the relation ends navigable from item named qualifier
func (s *Service) FindRelationEndsByQualifier(item *meta.Item, qualifier string, exact bool) iter.Seq[*meta.RelationEnd] {
	match := matcher(qualifier, exact)
	return func(yield func(*meta.RelationEnd) bool) {
		if item == nil {
			return
		}
		for _, end := range item.AllRelationEnds() {
			if match(end.Qualifier) && !yield(end) {
				return
			}
		}
	}
}

// QualifierNames returns the sorted, distinct attribute and relation end qualifiers of item
func (s *Service) QualifierNames(item *meta.Item) []string {
	if item == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	add := func(q string) {
		if q != "" && !seen[q] {
			seen[q] = true
			names = append(names, q)
		}
	}
	for _, attr := range item.AllAttributes() {
		add(attr.Qualifier)
	}
	for _, end := range item.AllRelationEnds() {
		add(end.Qualifier)
	}
	sort.Strings(names)
	return names
}

// SuggestQualifiers returns up to limit qualifiers of item close to qualifier, closest first
func (s *Service) SuggestQualifiers(item *meta.Item, qualifier string, limit int) []string {
	if limit <= 0 {
		limit = fuzzy.DefaultMaxSuggestions
	}
	return fuzzy.FindSimilar(qualifier, s.QualifierNames(item), &fuzzy.Options{
		MaxDistance:    fuzzy.DefaultMaxDistance,
		MaxSuggestions: limit,
	})
}
