package relfreq

// accumulator pre-aggregates weights by exact key before they cross the
// partition boundary. Weights combine by addition only, which is
// commutative and associative: draining an accumulator zero, one, or many
// times before the final reduce cannot change results, it only shrinks
// the intermediate data volume.
//
// An accumulator must never normalize across keys. Normalization needs the
// complete per-group marginal, which only the reducer sees.
type accumulator map[BigramKey]float64

func (a accumulator) add(key BigramKey, weight float64) {
	a[key] += weight
}

// drain invokes fn for every combined key and empties the accumulator.
// Iteration order is unspecified; the reducer re-sums, so order does not
// matter here.
func (a accumulator) drain(fn func(key BigramKey, weight float64) error) error {
	for key, weight := range a {
		if err := fn(key, weight); err != nil {
			return err
		}
		delete(a, key)
	}
	return nil
}
