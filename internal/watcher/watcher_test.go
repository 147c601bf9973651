package watcher

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/latch-protocol/solver/internal/order"
)

type fakeReader struct {
	poolConfig   PoolConfig
	poolConfigErr error
	batchID      *big.Int
	batchIDErr   error
	phase        Phase
	phaseErr     error
	orders       []order.Order
	countErr     error
	orderAtErr   error
}

func (f *fakeReader) PoolConfig(ctx context.Context, poolID [32]byte) (PoolConfig, error) {
	return f.poolConfig, f.poolConfigErr
}

func (f *fakeReader) CurrentBatchID(ctx context.Context, poolID [32]byte) (*big.Int, error) {
	return f.batchID, f.batchIDErr
}

func (f *fakeReader) BatchPhase(ctx context.Context, poolID [32]byte, batchID *big.Int) (Phase, error) {
	return f.phase, f.phaseErr
}

func (f *fakeReader) RevealedOrderCount(ctx context.Context, poolID [32]byte, batchID *big.Int) (uint64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return uint64(len(f.orders)), nil
}

func (f *fakeReader) RevealedOrderAt(ctx context.Context, poolID [32]byte, batchID *big.Int, i uint64) (order.Order, error) {
	if f.orderAtErr != nil {
		return order.Order{}, f.orderAtErr
	}
	return f.orders[i], nil
}

func TestDiscoverReturnsFalseWhenNotInSettlePhase(t *testing.T) {
	reader := &fakeReader{batchID: big.NewInt(1), phase: PhaseReveal}
	w := New(reader, [32]byte{})

	state, ok, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false outside PhaseSettle")
	}
	if state != nil {
		t.Fatal("expected nil state outside PhaseSettle")
	}
}

func TestDiscoverPaginatesRevealedOrdersInSettlePhase(t *testing.T) {
	orders := []order.Order{
		{Amount: big.NewInt(10), LimitPrice: big.NewInt(5), IsBuy: true},
		{Amount: big.NewInt(20), LimitPrice: big.NewInt(5), IsBuy: false},
	}
	reader := &fakeReader{batchID: big.NewInt(42), phase: PhaseSettle, orders: orders}
	w := New(reader, [32]byte{1})

	state, ok, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true in PhaseSettle")
	}
	if state.BatchID.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected batch id 42, got %s", state.BatchID)
	}
	if len(state.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(state.Orders))
	}
	if state.Orders[0].Amount.Cmp(big.NewInt(10)) != 0 || state.Orders[1].Amount.Cmp(big.NewInt(20)) != 0 {
		t.Fatal("orders should preserve on-chain index order")
	}
}

func TestDiscoverPropagatesBatchIDError(t *testing.T) {
	sentinel := errors.New("rpc down")
	reader := &fakeReader{batchIDErr: sentinel}
	w := New(reader, [32]byte{})

	_, _, err := w.Discover(context.Background())
	if err == nil || !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel error, got %v", err)
	}
}

func TestDiscoverPropagatesOrderReadError(t *testing.T) {
	sentinel := errors.New("revert")
	reader := &fakeReader{
		batchID:    big.NewInt(1),
		phase:      PhaseSettle,
		orders:     []order.Order{{}},
		orderAtErr: sentinel,
	}
	w := New(reader, [32]byte{})

	_, _, err := w.Discover(context.Background())
	if err == nil || !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel error, got %v", err)
	}
}

func TestDiscoverWithZeroRevealedOrders(t *testing.T) {
	reader := &fakeReader{batchID: big.NewInt(1), phase: PhaseSettle, orders: nil}
	w := New(reader, [32]byte{})

	state, ok, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true even with zero revealed orders")
	}
	if len(state.Orders) != 0 {
		t.Fatalf("expected 0 orders, got %d", len(state.Orders))
	}
}
