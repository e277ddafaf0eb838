package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		phone string
		want  bool
	}{
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"sentinel n/a", "N/A", false},
		{"sentinel lowercase", "n/a", false},
		{"sentinel tbd", "TBD", false},
		{"sentinel none", "none", false},
		{"sentinel unknown", "Unknown", false},
		{"sentinel x", "x", false},
		{"letters", "call the office", false},
		{"too short", "555-1234", false},
		{"too long", "1234567890123456", false},
		{"ten digits bare", "7064037343", true},
		{"dashed", "706-877-4587", true},
		{"parenthesized", "(706) 877-4587", true},
		{"international", "+17068774587", true},
		{"dotted", "706.877.4587", true},
		{"embedded letters", "706-877-4587 ext 2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ValidatePhone(tt.phone), "phone %q", tt.phone)
		})
	}
}

func TestStandardizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"dashed US", "706-877-4587", "+17068774587"},
		{"bare ten digit US", "7068774587", "+17068774587"},
		{"already standardized", "+17068774587", "+17068774587"},
		{"eleven digit with country code", "17068774587", "+17068774587"},
		{"double zero international", "00447911123456", "+447911123456"},
		{"plus international", "+44 7911 123456", "+447911123456"},
		{"formatted US", "(706) 877.4587", "+17068774587"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := StandardizePhone(tt.phone)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("extension fragment rejected", func(t *testing.T) {
		t.Parallel()
		_, ok := StandardizePhone("12345")
		assert.False(t, ok)
	})
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "7068774587", NormalizePhone("+17068774587"))
	assert.Equal(t, "7068774587", NormalizePhone("706-877-4587"))
	assert.Equal(t, "7068774587", NormalizePhone("17068774587"))
	assert.Equal(t, "447911123456", NormalizePhone("+447911123456"))
}

func TestLastSevenDigits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "8774587", LastSevenDigits("+17068774587"))
	assert.Equal(t, "8774587", LastSevenDigits("706-877-4587"))
	assert.Empty(t, LastSevenDigits("12345"))
}
