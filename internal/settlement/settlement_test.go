package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/latch-protocol/solver/internal/order"
	"github.com/latch-protocol/solver/internal/retry"
)

func ord(isBuy bool) order.Order {
	return order.Order{IsBuy: isBuy}
}

func fillsOf(values ...int64) [order.MaxPerBatch]*big.Int {
	var fills [order.MaxPerBatch]*big.Int
	for i := range fills {
		fills[i] = big.NewInt(0)
	}
	for i, v := range values {
		fills[i] = big.NewInt(v)
	}
	return fills
}

func TestNetSolverToken0BuyerSurplus(t *testing.T) {
	orders := []order.Order{ord(true), ord(false)}
	fills := fillsOf(100, 40)

	got := NetSolverToken0(orders, fills)
	if got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("got %s, want 60", got.String())
	}
}

func TestNetSolverToken0FloorsAtZero(t *testing.T) {
	orders := []order.Order{ord(true), ord(false)}
	fills := fillsOf(40, 100)

	got := NetSolverToken0(orders, fills)
	if got.Sign() != 0 {
		t.Fatalf("expected 0 when sells exceed buys, got %s", got.String())
	}
}

func TestNetSolverToken0BalancedIsZero(t *testing.T) {
	orders := []order.Order{ord(true), ord(false)}
	fills := fillsOf(100, 100)

	got := NetSolverToken0(orders, fills)
	if got.Sign() != 0 {
		t.Fatalf("expected 0 for a balanced batch, got %s", got.String())
	}
}

func TestRetryUnlessRevertedStopsImmediatelyOnRevert(t *testing.T) {
	calls := 0
	attempts, err := retryUnlessReverted(context.Background(), nil, retry.Options{MaxRetries: 5, BaseDelay: time.Millisecond}, func() error {
		calls++
		return fmt.Errorf("transaction 0xabc: %w", ErrReverted)
	})
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected a wrapped ErrReverted, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a reverted transaction, got %d", calls)
	}
	if attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", attempts)
	}
}

func TestRetryUnlessRevertedRetriesTransientErrors(t *testing.T) {
	calls := 0
	attempts, err := retryUnlessReverted(context.Background(), nil, retry.Options{MaxRetries: 3, BaseDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls for a transient error that eventually succeeds, got %d", calls)
	}
	if attempts != 3 {
		t.Fatalf("expected attempts=3, got %d", attempts)
	}
}

func TestRetryUnlessRevertedExhaustsOnPersistentTransientError(t *testing.T) {
	calls := 0
	sentinel := errors.New("dial tcp: connection refused")
	_, err := retryUnlessReverted(context.Background(), nil, retry.Options{MaxRetries: 2, BaseDelay: time.Millisecond}, func() error {
		calls++
		return sentinel
	})
	if err == nil || !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel error, got %v", err)
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestFailedQueueSnapshotAndClear(t *testing.T) {
	var q FailedQueue
	if len(q.Snapshot()) != 0 {
		t.Fatal("expected an empty queue initially")
	}

	q.add(FailedSettlement{
		BatchID:   big.NewInt(1),
		Timestamp: time.Now(),
		Attempts:  6,
		Err:       errors.New("reverted"),
		ErrorText: "reverted",
	})
	q.add(FailedSettlement{BatchID: big.NewInt(2), Attempts: 6, ErrorText: "timeout"})

	snap := q.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 queued failures, got %d", len(snap))
	}
	if snap[0].ErrorText != "reverted" || snap[1].ErrorText != "timeout" {
		t.Fatal("snapshot did not preserve insertion order / error text")
	}

	cleared := q.Clear()
	if cleared != 2 {
		t.Fatalf("expected Clear to report 2 removed entries, got %d", cleared)
	}
	if len(q.Snapshot()) != 0 {
		t.Fatal("expected an empty queue after Clear")
	}
}
