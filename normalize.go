package relfreq

import "fmt"

// OrderingViolationError reports that a reduce partition encountered an
// ordinary key before the marginal key of its group. The partition's
// results are unusable: the group must be re-reduced in full, never
// resumed. Dividing by a stale or zero marginal would silently corrupt
// every ratio in the group, so the reducer fails instead.
type OrderingViolationError struct {
	Key BigramKey
}

func (e *OrderingViolationError) Error() string {
	return fmt.Sprintf("key %s arrived before the marginal count for %q", e.Key, e.Key.First)
}

// normalizer turns summed counts into relative frequencies. It consumes
// keys in keyLess order, so all keys sharing a First are contiguous and
// the group's marginal key comes first. The marginal total is emitted
// verbatim; every ordinary key in the group is emitted as count/marginal.
//
// State is scoped to one reduce partition and must never be shared across
// partitions.
type normalizer struct {
	first        string
	marginal     float64
	haveMarginal bool
	started      bool
}

// consume takes the summed weight of the next key in sorted order and
// returns the weight to emit for it.
func (n *normalizer) consume(key BigramKey, sum float64) (float64, error) {
	if !n.started || key.First != n.first {
		n.started = true
		n.first = key.First
		n.haveMarginal = false
		n.marginal = 0
	}

	if key.IsMarginal() {
		n.marginal = sum
		n.haveMarginal = true
		return sum, nil
	}

	if !n.haveMarginal || n.marginal == 0 {
		return 0, &OrderingViolationError{Key: key}
	}
	return sum / n.marginal, nil
}
