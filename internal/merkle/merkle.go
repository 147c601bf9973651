// Package merkle builds the fixed-depth order-commitment tree the
// verifier's circuit is compiled against: exactly 16 leaves, zero-padded,
// combined bottom-up with the commutative domain-separated pair hash.
package merkle

import "github.com/latch-protocol/solver/internal/field"

// NumLeaves is the circuit's fixed leaf count. A variable-size tree would
// require a circuit parameter and break the fixed public-inputs layout, so
// every batch is zero-padded to exactly this many leaves; more leaves than
// this is rejected with a panic.
const NumLeaves = 16

// BuildRoot returns the Merkle root over leaves, zero-padded to NumLeaves.
// len(leaves) must be <= NumLeaves; callers are expected to have already
// enforced the order-count invariant upstream.
func BuildRoot(leaves []field.Element) field.Element {
	if len(leaves) > NumLeaves {
		panic("merkle: more than 16 leaves supplied, violates the fixed-depth tree invariant")
	}

	level := make([]field.Element, NumLeaves)
	copy(level, leaves)
	// Remaining slots are already the zero value via make's zero-initialization.

	for width := NumLeaves; width > 1; width /= 2 {
		next := make([]field.Element, width/2)
		for i := 0; i < width/2; i++ {
			next[i] = field.HashPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}
