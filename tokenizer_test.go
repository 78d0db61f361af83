package relfreq

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// collectingEmitter accumulates emitted weights by key for assertions.
type collectingEmitter struct {
	counts map[BigramKey]float64
	order  []BigramKey
}

func newCollectingEmitter() *collectingEmitter {
	return &collectingEmitter{counts: make(map[BigramKey]float64)}
}

func (c *collectingEmitter) Emit(key BigramKey, weight float64) error {
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key] += weight
	return nil
}

func (c *collectingEmitter) close() error        { return nil }
func (c *collectingEmitter) bytesWritten() int64 { return 0 }

func (c *collectingEmitter) emissions() int {
	total := 0.0
	for _, weight := range c.counts {
		total += weight
	}
	return int(total)
}

func TestTokenizerEmitsPairsAndMarginals(t *testing.T) {
	emitter := newCollectingEmitter()
	NewTokenizer().Map("the cat sat the cat ran", emitter)

	// 6 tokens => 5 adjacent pairs, each with a marginal emission.
	assert.Equal(t, 10, emitter.emissions())

	expected := map[BigramKey]float64{
		{"the", "cat"}:  2,
		{"cat", "sat"}:  1,
		{"sat", "the"}:  1,
		{"cat", "ran"}:  1,
		{"the", Marker}: 2,
		{"cat", Marker}: 2,
		{"sat", Marker}: 1,
	}
	assert.Equal(t, expected, emitter.counts)
}

func TestTokenizerShortLines(t *testing.T) {
	for _, line := range []string{"", "   ", "word", "  word  "} {
		emitter := newCollectingEmitter()
		NewTokenizer().Map(line, emitter)
		assert.Empty(t, emitter.counts, "line %q should yield no bigrams", line)
	}
}

func TestTokenizerWhitespaceSplitting(t *testing.T) {
	emitter := newCollectingEmitter()
	NewTokenizer().Map("foo\t bar \t\tbaz", emitter)

	expected := map[BigramKey]float64{
		{"foo", "bar"}:  1,
		{"bar", "baz"}:  1,
		{"foo", Marker}: 1,
		{"bar", Marker}: 1,
	}
	assert.Equal(t, expected, emitter.counts)
}

func TestTokenizerTruncatesLongTokens(t *testing.T) {
	long := strings.Repeat("x", 150)
	truncated := strings.Repeat("x", 100)

	emitter := newCollectingEmitter()
	NewTokenizer().Map(long+" short", emitter)

	expected := map[BigramKey]float64{
		{truncated, "short"}: 1,
		{truncated, Marker}:  1,
	}
	assert.Equal(t, expected, emitter.counts)
}

func TestTokenizerCustomTokenLength(t *testing.T) {
	tokenizer := &Tokenizer{MaxTokenLength: 3}

	emitter := newCollectingEmitter()
	tokenizer.Map("aaaa bbbb", emitter)

	expected := map[BigramKey]float64{
		{"aaa", "bbb"}:  1,
		{"aaa", Marker}: 1,
	}
	assert.Equal(t, expected, emitter.counts)
}

func TestTokenizerEmitsLazilyInOrder(t *testing.T) {
	emitter := newCollectingEmitter()
	NewTokenizer().Map("a b c", emitter)

	assert.Equal(t, []BigramKey{
		{"a", "b"},
		{"a", Marker},
		{"b", "c"},
		{"b", Marker},
	}, emitter.order)
}
