package relfreq

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMarginal(t *testing.T) {
	assert.True(t, BigramKey{First: "the", Second: Marker}.IsMarginal())
	assert.False(t, BigramKey{First: "the", Second: "cat"}.IsMarginal())
	assert.False(t, BigramKey{First: Marker, Second: "cat"}.IsMarginal())
}

func TestKeyLess(t *testing.T) {
	var keyLessTests = []struct {
		a, b     BigramKey
		expected bool
	}{
		{BigramKey{"cat", "sat"}, BigramKey{"the", "cat"}, true},
		{BigramKey{"the", "cat"}, BigramKey{"cat", "sat"}, false},
		{BigramKey{"the", Marker}, BigramKey{"the", "cat"}, true},
		{BigramKey{"the", "cat"}, BigramKey{"the", Marker}, false},
		{BigramKey{"the", "ant"}, BigramKey{"the", "cat"}, true},
		{BigramKey{"the", "cat"}, BigramKey{"the", "cat"}, false},
		// The marker is special-cased, not ordered by code point: it comes
		// before tokens that sort below "*" lexicographically.
		{BigramKey{"the", Marker}, BigramKey{"the", "!bang"}, true},
	}

	for _, test := range keyLessTests {
		assert.Equal(t, test.expected, keyLess(test.a, test.b), "keyLess(%s, %s)", test.a, test.b)
	}
}

func TestTruncateToken(t *testing.T) {
	short := "word"
	assert.Equal(t, short, truncateToken(short, 100))

	long := strings.Repeat("a", 150)
	assert.Equal(t, strings.Repeat("a", 100), truncateToken(long, 100))

	exact := strings.Repeat("b", 100)
	assert.Equal(t, exact, truncateToken(exact, 100))

	// Truncation counts runes, not bytes.
	multibyte := strings.Repeat("é", 150)
	assert.Equal(t, strings.Repeat("é", 100), truncateToken(multibyte, 100))
}

func TestFormatWeight(t *testing.T) {
	assert.Equal(t, "2.0", formatWeight(2))
	assert.Equal(t, "1.0", formatWeight(1))
	assert.Equal(t, "0.5", formatWeight(0.5))
	assert.Equal(t, "0.25", formatWeight(0.25))
}
