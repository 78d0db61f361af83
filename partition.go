package relfreq

import "hash/fnv"

// PartitionFunc routes a key to one of numBins reduce partitions.
//
// Correctness constraint: every key sharing a First value must land in the
// same partition, so implementations may only inspect key.First. The
// reducer needs the complete group for a First (marginal included) to
// normalize it.
type PartitionFunc func(key BigramKey, numBins uint) uint

// firstWordPartition is the default PartitionFunc. It hashes only the
// first word with FNV-64; the unsigned modulus keeps the result in
// [0, numBins).
func firstWordPartition(key BigramKey, numBins uint) uint {
	h := fnv.New64()
	h.Write([]byte(key.First))
	return uint(h.Sum64() % uint64(numBins))
}
