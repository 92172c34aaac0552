package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1, s2   string
		expected int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"code", "code", 0},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"nmae", "name", 2},
		{"catalogVersion", "catalogversion", 1},
	}

	for _, tt := range tests {
		t.Run(tt.s1+"_"+tt.s2, func(t *testing.T) {
			assert.Equal(t, tt.expected, LevenshteinDistance(tt.s1, tt.s2))
			assert.Equal(t, tt.expected, LevenshteinDistance(tt.s2, tt.s1))
		})
	}
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"code", "name", "catalogVersion", "supercategories"}

	t.Run("closest first", func(t *testing.T) {
		assert.Equal(t, []string{"name", "code"}, FindSimilar("nmae", candidates, nil))
	})

	t.Run("case insensitive by default", func(t *testing.T) {
		assert.Equal(t, []string{"catalogVersion"}, FindSimilar("CATALOGVERSON", candidates, nil))
	})

	t.Run("case sensitive", func(t *testing.T) {
		got := FindSimilar("CODE", candidates, &Options{CaseSensitive: true, MaxDistance: 3})
		assert.Empty(t, got)
	})

	t.Run("limits suggestions", func(t *testing.T) {
		got := FindSimilar("a", []string{"b", "c", "d", "e"}, &Options{MaxSuggestions: 2})
		assert.Equal(t, []string{"b", "c"}, got)
	})

	t.Run("nothing close", func(t *testing.T) {
		assert.Empty(t, FindSimilar("description", candidates, nil))
	})
}

func TestFindBestMatch(t *testing.T) {
	assert.Equal(t, "name", FindBestMatch("nam", []string{"code", "name"}, nil))
	assert.Equal(t, "", FindBestMatch("europe1Prices", []string{"code", "name"}, nil))
}

func TestRank(t *testing.T) {
	candidates := []string{"code", "nameKey", "name", "catalog"}

	assert.Equal(t, []string{"name", "nameKey", "catalog"}, Rank("na", candidates))
	assert.Equal(t, []string{"name", "nameKey"}, Rank("NAME", candidates))
	assert.Equal(t, candidates, Rank("", candidates))
}
