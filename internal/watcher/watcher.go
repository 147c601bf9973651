// Package watcher discovers the currently-settleable batch for a pool and
// rehydrates its revealed orders from chain state.
package watcher

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/latch-protocol/solver/internal/order"
)

// Phase mirrors the coordinator's batch-phase state machine. The solver
// only ever acts on PhaseSettle; every other phase means "nothing to do
// yet" for this pool.
type Phase uint8

const (
	PhaseInactive Phase = iota
	PhaseCommit
	PhaseReveal
	PhaseSettle
	PhaseClaim
	PhaseFinalized
)

// coordinatorABI is the read surface this package consumes from the
// coordinator contract. The contract itself is out of scope: this is
// purely the interface contract from spec.md §6, hand-written in the
// teacher's bind.NewBoundContract style rather than generated by abigen.
const coordinatorABI = `[
	{"name":"getPoolConfig","type":"function","stateMutability":"view",
	 "inputs":[{"name":"poolId","type":"bytes32"}],
	 "outputs":[{"name":"feeRate","type":"uint256"},{"name":"whitelistRoot","type":"uint256"}]},
	{"name":"getCurrentBatchId","type":"function","stateMutability":"view",
	 "inputs":[{"name":"poolId","type":"bytes32"}],
	 "outputs":[{"name":"batchId","type":"uint256"}]},
	{"name":"getBatchPhase","type":"function","stateMutability":"view",
	 "inputs":[{"name":"poolId","type":"bytes32"},{"name":"batchId","type":"uint256"}],
	 "outputs":[{"name":"phase","type":"uint8"}]},
	{"name":"getRevealedOrderCount","type":"function","stateMutability":"view",
	 "inputs":[{"name":"poolId","type":"bytes32"},{"name":"batchId","type":"uint256"}],
	 "outputs":[{"name":"count","type":"uint256"}]},
	{"name":"getRevealedOrderAt","type":"function","stateMutability":"view",
	 "inputs":[{"name":"poolId","type":"bytes32"},{"name":"batchId","type":"uint256"},{"name":"i","type":"uint256"}],
	 "outputs":[{"name":"trader","type":"address"},{"name":"amount","type":"uint256"},{"name":"limitPrice","type":"uint256"},{"name":"isBuy","type":"bool"}]}
]`

// PoolConfig is the subset of on-chain pool configuration the solver needs.
type PoolConfig struct {
	FeeRate       uint64
	WhitelistRoot *big.Int
}

// BatchState is what one discovery attempt reconstructs: the revealed
// orders of the pool's current settleable batch, in canonical on-chain
// order (order index is significant -- it fixes the Merkle leaf position
// and fill-array slot).
type BatchState struct {
	PoolID  [32]byte
	BatchID *big.Int
	Orders  []order.Order
}

// ChainReader is the coordinator's read surface, abstracted for testing.
type ChainReader interface {
	PoolConfig(ctx context.Context, poolID [32]byte) (PoolConfig, error)
	CurrentBatchID(ctx context.Context, poolID [32]byte) (*big.Int, error)
	BatchPhase(ctx context.Context, poolID [32]byte, batchID *big.Int) (Phase, error)
	RevealedOrderCount(ctx context.Context, poolID [32]byte, batchID *big.Int) (uint64, error)
	RevealedOrderAt(ctx context.Context, poolID [32]byte, batchID *big.Int, i uint64) (order.Order, error)
}

// EthChainReader implements ChainReader against a live coordinator
// contract over an Ethereum JSON-RPC client, using a hand-written ABI and
// bind.BoundContract the way the teacher's settlement-contract helpers do.
type EthChainReader struct {
	contract *bind.BoundContract
}

// NewEthChainReader binds to the coordinator at addr using caller for
// reads.
func NewEthChainReader(addr common.Address, caller bind.ContractCaller) (*EthChainReader, error) {
	parsed, err := abi.JSON(strings.NewReader(coordinatorABI))
	if err != nil {
		return nil, fmt.Errorf("watcher: failed to parse coordinator ABI: %w", err)
	}
	return &EthChainReader{contract: bind.NewBoundContract(addr, parsed, caller, nil, nil)}, nil
}

func (r *EthChainReader) PoolConfig(ctx context.Context, poolID [32]byte) (PoolConfig, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &out, "getPoolConfig", poolID); err != nil {
		return PoolConfig{}, fmt.Errorf("watcher: getPoolConfig: %w", err)
	}
	feeRate := out[0].(*big.Int)
	whitelistRoot := out[1].(*big.Int)
	return PoolConfig{FeeRate: feeRate.Uint64(), WhitelistRoot: whitelistRoot}, nil
}

func (r *EthChainReader) CurrentBatchID(ctx context.Context, poolID [32]byte) (*big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &out, "getCurrentBatchId", poolID); err != nil {
		return nil, fmt.Errorf("watcher: getCurrentBatchId: %w", err)
	}
	return out[0].(*big.Int), nil
}

func (r *EthChainReader) BatchPhase(ctx context.Context, poolID [32]byte, batchID *big.Int) (Phase, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &out, "getBatchPhase", poolID, batchID); err != nil {
		return 0, fmt.Errorf("watcher: getBatchPhase: %w", err)
	}
	return Phase(out[0].(uint8)), nil
}

func (r *EthChainReader) RevealedOrderCount(ctx context.Context, poolID [32]byte, batchID *big.Int) (uint64, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &out, "getRevealedOrderCount", poolID, batchID); err != nil {
		return 0, fmt.Errorf("watcher: getRevealedOrderCount: %w", err)
	}
	return out[0].(*big.Int).Uint64(), nil
}

func (r *EthChainReader) RevealedOrderAt(ctx context.Context, poolID [32]byte, batchID *big.Int, i uint64) (order.Order, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &out, "getRevealedOrderAt", poolID, batchID, new(big.Int).SetUint64(i)); err != nil {
		return order.Order{}, fmt.Errorf("watcher: getRevealedOrderAt(%d): %w", i, err)
	}
	trader := out[0].(common.Address)
	return order.Order{
		Trader:     trader,
		Amount:     out[1].(*big.Int),
		LimitPrice: out[2].(*big.Int),
		IsBuy:      out[3].(bool),
	}, nil
}

// Watcher discovers the settleable batch for one pool.
type Watcher struct {
	Reader ChainReader
	PoolID [32]byte
}

// New constructs a Watcher for poolID backed by reader.
func New(reader ChainReader, poolID [32]byte) *Watcher {
	return &Watcher{Reader: reader, PoolID: poolID}
}

// Discover reads the pool's current batch id and phase; if the phase is
// not SETTLE it returns (nil, false, nil). Otherwise it paginates the
// revealed orders and returns the reconstructed BatchState.
//
// All reads in one Discover call should target a single block tag
// ("latest" is acceptable given frequent re-polling); a mid-read reorg is
// tolerated by the next iteration's fresh read, not by this one.
func (w *Watcher) Discover(ctx context.Context) (*BatchState, bool, error) {
	batchID, err := w.Reader.CurrentBatchID(ctx, w.PoolID)
	if err != nil {
		return nil, false, fmt.Errorf("watcher: reading current batch id: %w", err)
	}

	phase, err := w.Reader.BatchPhase(ctx, w.PoolID, batchID)
	if err != nil {
		return nil, false, fmt.Errorf("watcher: reading batch phase: %w", err)
	}
	if phase != PhaseSettle {
		return nil, false, nil
	}

	count, err := w.Reader.RevealedOrderCount(ctx, w.PoolID, batchID)
	if err != nil {
		return nil, false, fmt.Errorf("watcher: reading revealed order count: %w", err)
	}

	orders := make([]order.Order, 0, count)
	for i := uint64(0); i < count; i++ {
		o, err := w.Reader.RevealedOrderAt(ctx, w.PoolID, batchID, i)
		if err != nil {
			return nil, false, fmt.Errorf("watcher: reading revealed order %d: %w", i, err)
		}
		orders = append(orders, o)
	}

	return &BatchState{PoolID: w.PoolID, BatchID: batchID, Orders: orders}, true, nil
}
