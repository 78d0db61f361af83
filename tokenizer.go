package relfreq

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// Tokenizer is the standard Mapper of the pipeline. It splits a line into
// whitespace-delimited tokens and, for every adjacent pair (prev, cur),
// emits the pair key with unit weight along with the marginal key
// (prev, Marker) with unit weight. A line with fewer than two tokens
// yields nothing.
type Tokenizer struct {
	// MaxTokenLength caps token length in runes; longer tokens are
	// silently truncated. Zero means DefaultMaxTokenLength.
	MaxTokenLength int
}

// NewTokenizer returns a Tokenizer. The token length cap defaults to
// DefaultMaxTokenLength and may be overridden by configuration before the
// job runs.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Map emits weighted bigram keys for a single line of text.
func (t *Tokenizer) Map(line string, emitter Emitter) {
	max := t.MaxTokenLength
	if max <= 0 {
		max = DefaultMaxTokenLength
	}

	prev := ""
	havePrev := false
	for _, token := range strings.Fields(line) {
		cur := truncateToken(token, max)

		if havePrev {
			if err := emitter.Emit(BigramKey{First: prev, Second: cur}, 1.0); err != nil {
				log.Errorf("Tokenizer failed to emit pair: %s", err)
				return
			}
			if err := emitter.Emit(BigramKey{First: prev, Second: Marker}, 1.0); err != nil {
				log.Errorf("Tokenizer failed to emit marginal: %s", err)
				return
			}
		}

		prev = cur
		havePrev = true
	}
}
