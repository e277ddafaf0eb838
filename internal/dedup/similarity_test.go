package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "Jane Doe", "Jane Doe", 1, 1},
		{"case and punctuation ignored", "jane   doe", "Jane Doe", 1, 1},
		{"one letter off", "Jonathan Smith", "Jonathon Smith", 0.9, 0.99},
		{"unrelated", "Jane Doe", "Peter Quill", 0, 0.4},
		{"empty", "", "Jane Doe", 0, 0},
		{"symbols only", "!!!", "Jane Doe", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NameSimilarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jane doe", normalizeName("  Jane   DOE  "))
	assert.Equal(t, "oconnor jr", normalizeName("O'Connor, Jr."))
	assert.Empty(t, normalizeName("---"))
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, levenshtein("kitten", "kitten"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 6, levenshtein("", "sitten"))
}
