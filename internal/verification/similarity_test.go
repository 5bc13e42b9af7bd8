package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact match", "John Doe", "John Doe", 1},
		{"case and spacing ignored", "JOHN   doe", "john doe", 1},
		{"both empty", "", "", 1},
		{"one empty", "abc", "", 0},
		{"one edit in four", "abcd", "abce", 0.75},
		{"unicode runes", "José", "Jose", 0.75},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Similarity(tc.a, tc.b), 1e-12)
		})
	}
}

func TestSimilaritySymmetricAndBounded(t *testing.T) {
	pairs := [][2]string{
		{"John Doe", "Jane Smith"},
		{"kitten", "sitting"},
		{"12 mg road pune", "12 m g road, pune"},
		{"", "x"},
		{"Rahul Kumar", "Kumar Rahul"},
	}
	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		assert.Equal(t, ab, ba, "%q vs %q", p[0], p[1])
		assert.GreaterOrEqual(t, ab, 0.0)
		assert.LessOrEqual(t, ab, 1.0)
	}
}

func TestSimilarityDissimilarNames(t *testing.T) {
	assert.Less(t, Similarity("John Doe", "Jane Smith"), 0.5)
}

func TestNameThresholdBoundary(t *testing.T) {
	threshold := DefaultPolicy().NameThreshold

	// 20 runes, one substitution: exactly 0.95.
	exact := Similarity("aaaaaaaaaa bbbbbbbbb", "aaaaaaaaaa bbbbbbbbc")
	assert.InDelta(t, 0.95, exact, 1e-12)
	assert.True(t, meetsThreshold(exact, threshold))

	// 19 runes, one substitution: just under 0.95.
	under := Similarity("aaaaaaaaa bbbbbbbbb", "aaaaaaaaa bbbbbbbbc")
	assert.Less(t, under, 0.95)
	assert.False(t, meetsThreshold(under, threshold))

	assert.False(t, meetsThreshold(0.9499, threshold))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 3, levenshtein([]rune("kitten"), []rune("sitting")))
	assert.Equal(t, 0, levenshtein([]rune("same"), []rune("same")))
	assert.Equal(t, 4, levenshtein(nil, []rune("four")))
	assert.Equal(t, 4, levenshtein([]rune("four"), nil))
}
