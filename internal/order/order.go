// Package order defines the revealed-order data model shared by the
// watcher, clearing engine, Merkle builder, and prover driver.
package order

import (
	"fmt"
	"math/big"

	"github.com/latch-protocol/solver/internal/field"
)

// MaxPerBatch is the fixed circuit leaf count: every batch has at most
// this many revealed orders, and every per-order array (Merkle leaves,
// fills, private-input slots) is padded to exactly this length.
const MaxPerBatch = 16

// maxUint128 is 2^128 - 1, the ceiling for Amount and LimitPrice.
var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Order is one trader's private input to a batch.
type Order struct {
	Trader     [20]byte
	Amount     *big.Int
	LimitPrice *big.Int
	IsBuy      bool
}

// Validate checks the data-model invariants from the revealed-order
// contract: Amount and LimitPrice are strictly positive and fit in 128
// bits.
func (o Order) Validate() error {
	if o.Amount == nil || o.Amount.Sign() <= 0 {
		return fmt.Errorf("order: amount must be strictly positive")
	}
	if o.Amount.Cmp(maxUint128) > 0 {
		return fmt.Errorf("order: amount %s exceeds 128 bits", o.Amount)
	}
	if o.LimitPrice == nil || o.LimitPrice.Sign() <= 0 {
		return fmt.Errorf("order: limit_price must be strictly positive")
	}
	if o.LimitPrice.Cmp(maxUint128) > 0 {
		return fmt.Errorf("order: limit_price %s exceeds 128 bits", o.LimitPrice)
	}
	return nil
}

// TraderField returns the trader identifier zero-extended into the BN254
// scalar field.
func (o Order) TraderField() field.Element {
	return field.FromAddress(o.Trader)
}

// LeafHash returns this order's Merkle leaf commitment.
func (o Order) LeafHash() field.Element {
	return field.LeafHash(o.TraderField(), field.FromBigInt(o.Amount), field.FromBigInt(o.LimitPrice), o.IsBuy)
}

// Leaves returns the Merkle leaf hashes for orders, in index order. Callers
// pad to merkle.NumLeaves separately (BuildRoot zero-pads automatically).
func Leaves(orders []Order) []field.Element {
	leaves := make([]field.Element, len(orders))
	for i, o := range orders {
		leaves[i] = o.LeafHash()
	}
	return leaves
}
