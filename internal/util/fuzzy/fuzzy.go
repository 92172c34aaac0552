// Package fuzzy ranks names by edit distance for "did you mean" suggestions and
// completion ordering.
package fuzzy

import (
	"sort"
	"strings"
)

const (
	// DefaultMaxDistance is the default maximum edit distance to consider for fuzzy matching
	DefaultMaxDistance = 3
	// DefaultMaxSuggestions is the default maximum number of suggestions to return
	DefaultMaxSuggestions = 3
)

// Options configures fuzzy matching behavior
type Options struct {
	MaxDistance    int  // Maximum Levenshtein distance to consider (default: 3)
	MaxSuggestions int  // Maximum number of suggestions to return (default: 3)
	CaseSensitive  bool // Whether matching is case-sensitive (default: false)
}

// suggestion represents a fuzzy match result with its edit distance
type suggestion struct {
	value    string
	distance int
}

// FindSimilar finds strings similar to the target using Levenshtein distance. Candidates
// at the same distance keep their input order; exact matches are included.
//
// Example:
//
//	candidates := []string{"code", "name", "catalogVersion"}
//	suggestions := FindSimilar("nmae", candidates, nil)
//	// Returns: ["name", "code"]
func FindSimilar(target string, candidates []string, opts *Options) []string {
	o := Options{MaxDistance: DefaultMaxDistance, MaxSuggestions: DefaultMaxSuggestions}
	if opts != nil {
		o = *opts
	}
	if o.MaxDistance == 0 {
		o.MaxDistance = DefaultMaxDistance
	}
	if o.MaxSuggestions == 0 {
		o.MaxSuggestions = DefaultMaxSuggestions
	}

	var suggestions []suggestion
	targetCmp := target
	if !o.CaseSensitive {
		targetCmp = strings.ToLower(target)
	}

	for _, candidate := range candidates {
		candidateCmp := candidate
		if !o.CaseSensitive {
			candidateCmp = strings.ToLower(candidate)
		}

		dist := LevenshteinDistance(targetCmp, candidateCmp)
		if dist <= o.MaxDistance {
			suggestions = append(suggestions, suggestion{
				value:    candidate,
				distance: dist,
			})
		}
	}

	// Sort by distance (closest first)
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].distance < suggestions[j].distance
	})

	result := make([]string, 0, o.MaxSuggestions)
	for i := 0; i < len(suggestions) && i < o.MaxSuggestions; i++ {
		result = append(result, suggestions[i].value)
	}

	return result
}

// LevenshteinDistance calculates the Levenshtein distance between two strings
// This is the minimum number of single-character edits (insertions, deletions, or substitutions)
// required to change one string into the other.
//
// Example:
//
//	LevenshteinDistance("kitten", "sitting") // Returns: 3
//	LevenshteinDistance("saturday", "sunday") // Returns: 3
func LevenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// two rows are enough: row i only depends on row i-1
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}

// FindBestMatch returns the single best match for a target string
// Returns an empty string if no match is found within the max distance
func FindBestMatch(target string, candidates []string, opts *Options) string {
	matches := FindSimilar(target, candidates, opts)
	if len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// Rank orders candidates for completion of a typed prefix: case-insensitive prefix
// matches first (shorter first), then the remaining candidates by edit distance to the
// prefix. A non-prefix candidate is kept only when its head is one edit away from the prefix.
func Rank(prefix string, candidates []string) []string {
	if prefix == "" {
		return append([]string(nil), candidates...)
	}
	lower := strings.ToLower(prefix)

	type ranked struct {
		value  string
		prefix bool
		score  int
	}
	var all []ranked
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if strings.HasPrefix(lc, lower) {
			all = append(all, ranked{value: c, prefix: true, score: len(c)})
			continue
		}
		head := lc
		if len(head) > len(lower) {
			head = head[:len(lower)]
		}
		if d := LevenshteinDistance(lower, head); d <= 1 && d < len(lower) {
			all = append(all, ranked{value: c, score: d})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].prefix != all[j].prefix {
			return all[i].prefix
		}
		return all[i].score < all[j].score
	})

	result := make([]string, 0, len(all))
	for _, r := range all {
		result = append(result, r.value)
	}
	return result
}
