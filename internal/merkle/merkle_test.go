package merkle

import (
	"testing"

	"github.com/latch-protocol/solver/internal/field"
)

func TestBuildRootDeterministic(t *testing.T) {
	leaves := []field.Element{field.FromUint64(1), field.FromUint64(2), field.FromUint64(3)}

	root1 := BuildRoot(leaves)
	root2 := BuildRoot(leaves)

	if !field.Equal(root1, root2) {
		t.Fatal("BuildRoot is not deterministic for the same leaf set")
	}
}

func TestBuildRootZeroPadsToNumLeaves(t *testing.T) {
	leaves := []field.Element{field.FromUint64(1)}
	padded := make([]field.Element, NumLeaves)
	padded[0] = field.FromUint64(1)
	for i := 1; i < NumLeaves; i++ {
		padded[i] = field.Zero()
	}

	if !field.Equal(BuildRoot(leaves), BuildRoot(padded)) {
		t.Fatal("BuildRoot should zero-pad short leaf sets to NumLeaves")
	}
}

func TestBuildRootTwoLeavesSymmetric(t *testing.T) {
	l1 := field.FromUint64(1)
	l2 := field.FromUint64(2)

	rootAB := BuildRoot([]field.Element{l1, l2})
	rootBA := BuildRoot([]field.Element{l2, l1})

	if !field.Equal(rootAB, rootBA) {
		t.Fatal("root of [L1, L2] should equal root of [L2, L1] for a two-leaf batch")
	}
}

func TestBuildRootSensitiveToLeafValues(t *testing.T) {
	a := []field.Element{field.FromUint64(1), field.FromUint64(2), field.FromUint64(3)}
	b := []field.Element{field.FromUint64(1), field.FromUint64(2), field.FromUint64(4)}

	if field.Equal(BuildRoot(a), BuildRoot(b)) {
		t.Fatal("expected a changed leaf value to change the root")
	}
}

func TestBuildRootRejectsTooManyLeaves(t *testing.T) {
	leaves := make([]field.Element, NumLeaves+1)
	for i := range leaves {
		leaves[i] = field.FromUint64(uint64(i))
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when leaf count exceeds NumLeaves")
		}
	}()
	BuildRoot(leaves)
}

func TestBuildRootEmptyEqualsAllZeroPadding(t *testing.T) {
	var allZero [NumLeaves]field.Element
	for i := range allZero {
		allZero[i] = field.Zero()
	}

	if !field.Equal(BuildRoot(nil), BuildRoot(allZero[:])) {
		t.Fatal("empty leaf set should equal an explicit all-zero NumLeaves set")
	}
}
