package relfreq

import "strconv"

// Marker is the reserved second element of a BigramKey that denotes the
// marginal count of the key's first word. It is distinguished from an
// ordinary token by value only: a corpus that literally contains "*" as a
// word will collide with it.
const Marker = "*"

// DefaultMaxTokenLength is the rune cap applied to tokens before emission.
// Longer tokens are silently truncated.
const DefaultMaxTokenLength = 100

// BigramKey is an ordered pair of adjacent words. A key whose Second is
// Marker carries the marginal count of First rather than a pair count.
type BigramKey struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// IsMarginal reports whether the key denotes the marginal count of First.
func (k BigramKey) IsMarginal() bool {
	return k.Second == Marker
}

func (k BigramKey) String() string {
	return "(" + k.First + ", " + k.Second + ")"
}

// keyLess orders keys so that within a run of equal First values the
// marginal key comes before every ordinary key. The reducer's normalizer
// depends on this ordering; the marker is special-cased rather than
// relying on its code point sorting below all real tokens.
func keyLess(a, b BigramKey) bool {
	if a.First != b.First {
		return a.First < b.First
	}
	if a.IsMarginal() != b.IsMarginal() {
		return a.IsMarginal()
	}
	return a.Second < b.Second
}

// truncateToken caps a token at max runes. Tokens at or under the cap are
// returned unchanged; longer ones lose their tail without error.
func truncateToken(token string, max int) string {
	if len(token) <= max {
		// A token of at most max bytes cannot exceed max runes.
		return token
	}
	runes := []rune(token)
	if len(runes) <= max {
		return token
	}
	return string(runes[:max])
}

// keyWeight is the intermediate shuffle record written by mappers and
// consumed by reducers.
type keyWeight struct {
	First  string  `json:"first"`
	Second string  `json:"second"`
	Weight float64 `json:"weight"`
}

func (kw keyWeight) key() BigramKey {
	return BigramKey{First: kw.First, Second: kw.Second}
}

// formatWeight renders a weight for the final TSV output. Integral totals
// (marginals and raw counts) keep a trailing ".0" so that counts and
// ratios are visually distinct.
func formatWeight(w float64) string {
	if w == float64(int64(w)) {
		return strconv.FormatFloat(w, 'f', 1, 64)
	}
	return strconv.FormatFloat(w, 'g', -1, 64)
}
