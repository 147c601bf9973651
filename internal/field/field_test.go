package field

import (
	"math/big"
	"testing"
)

func TestFromBigIntRoundTrip(t *testing.T) {
	v := big.NewInt(123456789)
	e := FromBigInt(v)

	var out big.Int
	e.BigInt(&out)
	if out.Cmp(v) != 0 {
		t.Fatalf("round trip mismatch: got %s, want %s", out.String(), v.String())
	}
}

func TestFromBigIntRejectsNegative(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on negative input")
		}
	}()
	FromBigInt(big.NewInt(-1))
}

func TestFromBigIntRejectsOverModulus(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on value >= modulus")
		}
	}()
	FromBigInt(Modulus())
}

func TestFromAddressZeroExtends(t *testing.T) {
	var addr [20]byte
	for i := range addr {
		addr[i] = byte(i + 1)
	}
	e := FromAddress(addr)

	b := Bytes32(e)
	for i := 0; i < 12; i++ {
		if b[i] != 0 {
			t.Fatalf("expected zero padding at byte %d, got %x", i, b[i])
		}
	}
	for i := 0; i < 20; i++ {
		if b[12+i] != addr[i] {
			t.Fatalf("byte %d mismatch: got %x, want %x", i, b[12+i], addr[i])
		}
	}
}

func TestHashPairCommutative(t *testing.T) {
	a := FromUint64(1)
	b := FromUint64(2)

	ab := HashPair(a, b)
	ba := HashPair(b, a)

	if !Equal(ab, ba) {
		t.Fatalf("HashPair is not commutative: H(a,b)=%s H(b,a)=%s", ToHex(ab), ToHex(ba))
	}
}

func TestHashPairDiffersOnDifferentInputs(t *testing.T) {
	a := FromUint64(1)
	b := FromUint64(2)
	c := FromUint64(3)

	ab := HashPair(a, b)
	ac := HashPair(a, c)

	if Equal(ab, ac) {
		t.Fatal("expected different pairs to hash differently")
	}
}

func TestLeafHashDistinguishesDirection(t *testing.T) {
	trader := FromUint64(42)
	amount := FromUint64(100)
	price := FromUint64(5)

	buy := LeafHash(trader, amount, price, true)
	sell := LeafHash(trader, amount, price, false)

	if Equal(buy, sell) {
		t.Fatal("expected buy and sell leaves to differ")
	}
}

func TestToHexIsFixedWidth(t *testing.T) {
	e := FromUint64(1)
	h := ToHex(e)
	// "0x" + 64 hex digits
	if len(h) != 2+64 {
		t.Fatalf("expected 66-character hex string, got %d: %s", len(h), h)
	}
}
