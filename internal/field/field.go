// Package field implements the BN254 scalar-field element type and the
// domain-separated hash primitive that every cryptographic value in the
// solver (Merkle nodes, public-input slots 0-8) is built from.
package field

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	bnmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// Element is a value of the BN254 scalar field, p =
// 21888242871839275222246405745257275088548364400416034343698204186575808495617.
type Element = fr.Element

// Domain separators, folded into every hash to keep distinct hash shapes
// from colliding. These exact ASCII byte sequences are part of the wire
// contract with the on-chain verifier and must never change.
var (
	DomainOrder  = fromASCII("LATCH_ORDER_V1")
	DomainMerkle = fromASCII("LATCH_MERKLE_V1")
	DomainTrader = fromASCII("LATCH_TRADER")
)

// Modulus returns the BN254 scalar field prime.
func Modulus() *big.Int {
	return fr.Modulus()
}

// Zero returns the additive identity.
func Zero() Element {
	var e Element
	e.SetZero()
	return e
}

// FromBigInt constructs a field element from a non-negative integer.
// Overflow is a programmer error: it panics rather than silently reducing
// modulo p, per the field-hash primitive's fail-loudly contract.
func FromBigInt(v *big.Int) Element {
	if v.Sign() < 0 || v.Cmp(Modulus()) >= 0 {
		panic(fmt.Sprintf("field: value %s is out of range for the BN254 scalar field", v.String()))
	}
	var e Element
	e.SetBigInt(v)
	return e
}

// FromUint64 constructs a field element from a uint64. Always in range.
func FromUint64(v uint64) Element {
	var e Element
	e.SetUint64(v)
	return e
}

// FromBool maps false/true to the field elements 0/1.
func FromBool(b bool) Element {
	if b {
		return FromUint64(1)
	}
	return FromUint64(0)
}

// FromAddress zero-extends a 20-byte account identifier to a 32-byte
// big-endian field element. Always in range: 2^160 < p.
func FromAddress(addr [20]byte) Element {
	var buf [32]byte
	copy(buf[12:], addr[:])
	var e Element
	e.SetBytes(buf[:])
	return e
}

// Bytes32 returns the element's canonical 32-byte big-endian encoding.
func Bytes32(e Element) [32]byte {
	return e.Bytes()
}

// ToHex renders the element as a lowercase 0x-prefixed 64-hex-digit string.
func ToHex(e Element) string {
	b := e.Bytes()
	return fmt.Sprintf("0x%x", b[:])
}

// Equal reports whether two elements are the same field value.
func Equal(a, b Element) bool {
	return a.Equal(&b)
}

// hash computes the domain-separated digest H(vals) by writing each
// element's 32-byte big-endian encoding into the BN254 MiMC sponge and
// reducing the resulting digest back into the field.
func hash(vals ...Element) Element {
	h := bnmimc.NewMiMC()
	for _, v := range vals {
		b := v.Bytes()
		// hash.Hash.Write never returns an error for this implementation.
		_, _ = h.Write(b[:])
	}
	sum := h.Sum(nil)
	var out Element
	out.SetBytes(sum)
	return out
}

// HashPair computes the commutative Merkle pair hash
// H([D_merkle, min(a,b), max(a,b)]). HashPair(a,b) == HashPair(b,a) always,
// so a Merkle tree built from it needs no canonical sibling ordering.
func HashPair(a, b Element) Element {
	var ab, bb big.Int
	a.BigInt(&ab)
	b.BigInt(&bb)
	if ab.Cmp(&bb) > 0 {
		a, b = b, a
	}
	return hash(DomainMerkle, a, b)
}

// LeafHash computes the order-leaf commitment
// H([D_order, trader_as_field, amount, price, is_buy ? 1 : 0]).
func LeafHash(trader, amount, price Element, isBuy bool) Element {
	return hash(DomainOrder, trader, amount, price, FromBool(isBuy))
}

// TraderHash computes H([D_trader, trader_as_field]), used by the
// whitelist collaborator and by the solver's own sanity checks.
func TraderHash(trader Element) Element {
	return hash(DomainTrader, trader)
}

func fromASCII(tag string) Element {
	return FromBigInt(new(big.Int).SetBytes([]byte(tag)))
}
