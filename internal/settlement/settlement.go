// Package settlement approves the solver's net token-0 delivery and
// submits the settlement transaction, wrapped in bounded retry and
// backed by an in-memory queue of batches that exhausted their retries.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/latch-protocol/solver/internal/chain"
	"github.com/latch-protocol/solver/internal/errkind"
	"github.com/latch-protocol/solver/internal/order"
	"github.com/latch-protocol/solver/internal/publicinputs"
	"github.com/latch-protocol/solver/internal/retry"
)

const erc20ABI = `[
	{"name":"approve","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

const coordinatorWriteABI = `[
	{"name":"settleBatch","type":"function","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"poolKey","type":"tuple","components":[
			{"name":"currency0","type":"address"},
			{"name":"currency1","type":"address"},
			{"name":"fee","type":"uint24"},
			{"name":"tickSpacing","type":"int24"},
			{"name":"hooks","type":"address"}
		]},
		{"name":"proof","type":"bytes"},
		{"name":"publicInputs","type":"uint256[25]"}
	 ],
	 "outputs":[]}
]`

// PoolKey mirrors the on-chain pool key the coordinator expects, built
// from the CURRENCY0/CURRENCY1/POOL_FEE/TICK_SPACING/LATCH_HOOK_ADDRESS
// configuration.
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address
}

// FailedSettlement is one batch whose approve or settleBatch failed within
// an iteration: reverted on-chain after one attempt, or exhausted its
// retries. It lives only in memory: spec.md forbids persistence across
// restarts.
type FailedSettlement struct {
	BatchID   *big.Int  `json:"batch_id"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
	Err       error     `json:"-"`
	ErrorText string    `json:"error"`
}

// FailedQueue is an in-memory record of settlements that never made it
// on-chain, inspectable by operators through the health server.
type FailedQueue struct {
	mu    sync.RWMutex
	items []FailedSettlement
}

func (q *FailedQueue) add(item FailedSettlement) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Snapshot returns a copy of the current failed-settlement queue.
func (q *FailedQueue) Snapshot() []FailedSettlement {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]FailedSettlement, len(q.items))
	copy(out, q.items)
	return out
}

// Clear empties the queue and returns how many entries were removed.
func (q *FailedQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Submitter submits a cleared, proven batch to the coordinator.
type Submitter struct {
	Client          *chain.Client
	CoordinatorAddr common.Address
	Token0Addr      common.Address
	PoolKey         PoolKey
	RetryOptions    retry.Options
	Logger          *zap.Logger

	Failed FailedQueue

	erc20         abi.ABI
	coordinator   abi.ABI
	erc20Contract *bind.BoundContract
	coordContract *bind.BoundContract
}

// New constructs a Submitter bound to the given coordinator and token-0
// contracts.
func New(client *chain.Client, coordinatorAddr, token0Addr common.Address, poolKey PoolKey, retryOpts retry.Options, logger *zap.Logger) (*Submitter, error) {
	erc20Parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("settlement: parsing ERC20 ABI: %w", err)
	}
	coordParsed, err := abi.JSON(strings.NewReader(coordinatorWriteABI))
	if err != nil {
		return nil, fmt.Errorf("settlement: parsing coordinator ABI: %w", err)
	}

	return &Submitter{
		Client:          client,
		CoordinatorAddr: coordinatorAddr,
		Token0Addr:      token0Addr,
		PoolKey:         poolKey,
		RetryOptions:    retryOpts,
		Logger:          logger,
		erc20:           erc20Parsed,
		coordinator:     coordParsed,
		erc20Contract:   bind.NewBoundContract(token0Addr, erc20Parsed, client.Eth, client.Eth, client.Eth),
		coordContract:   bind.NewBoundContract(coordinatorAddr, coordParsed, client.Eth, client.Eth, client.Eth),
	}, nil
}

// NetSolverToken0 computes max(0, sum(fill[i] for buys) - sum(fill[i] for
// sells)): the token-0 the hook must pull from the solver to cover buyer
// fills beyond what sellers deposited.
func NetSolverToken0(orders []order.Order, fills [order.MaxPerBatch]*big.Int) *big.Int {
	buySum := big.NewInt(0)
	sellSum := big.NewInt(0)
	for i, o := range orders {
		if i >= order.MaxPerBatch {
			break
		}
		if o.IsBuy {
			buySum.Add(buySum, fills[i])
		} else {
			sellSum.Add(sellSum, fills[i])
		}
	}
	net := new(big.Int).Sub(buySum, sellSum)
	if net.Sign() < 0 {
		return big.NewInt(0)
	}
	return net
}

// ErrReverted marks a transaction that was mined but reverted on-chain
// (invalid proof, wrong phase, already settled). It is non-transient:
// resubmitting it within the same iteration cannot change the outcome,
// so retryUnlessReverted stops as soon as it sees this error instead of
// burning the remaining retry budget re-estimating gas and refetching a
// nonce for a transaction that will revert again.
var ErrReverted = errors.New("settlement: transaction reverted")

// Settle approves net token-0 liquidity (if any is owed) and calls
// settleBatch, retrying transient failures (dial errors, dropped
// transactions, nonce races) with exponential backoff. A chain revert is
// non-transient: it is recorded in the failed queue and returned tagged
// as errkind.ChainRejection after exactly one attempt, never retried
// within the iteration (spec.md §4.7). Exhausted retries are recorded the
// same way and returned tagged as errkind.Transient.
func (s *Submitter) Settle(ctx context.Context, batchID *big.Int, pi *publicinputs.PublicInputs, proofHex string, orders []order.Order, fills [order.MaxPerBatch]*big.Int) error {
	net := NetSolverToken0(orders, fills)

	if net.Sign() > 0 {
		if attempts, err := retryUnlessReverted(ctx, s.Logger, s.RetryOptions, func() error {
			return s.approve(ctx, net)
		}); err != nil {
			s.Failed.add(FailedSettlement{BatchID: batchID, Timestamp: time.Now(), Attempts: attempts, Err: err, ErrorText: err.Error()})
			if errors.Is(err, ErrReverted) {
				return errkind.Wrap(errkind.ChainRejection, fmt.Errorf("settlement: approving net token0 %s: %w", net, err))
			}
			return errkind.Wrap(errkind.Transient, fmt.Errorf("settlement: approving net token0 %s: %w", net, err))
		}
	}

	attempts, err := retryUnlessReverted(ctx, s.Logger, s.RetryOptions, func() error {
		return s.settleBatch(ctx, pi, proofHex)
	})
	if err != nil {
		s.Failed.add(FailedSettlement{BatchID: batchID, Timestamp: time.Now(), Attempts: attempts, Err: err, ErrorText: err.Error()})
		if errors.Is(err, ErrReverted) {
			return errkind.Wrap(errkind.ChainRejection, fmt.Errorf("settlement: settleBatch for batch %s: %w", batchID, err))
		}
		return errkind.Wrap(errkind.Transient, fmt.Errorf("settlement: settleBatch for batch %s: %w", batchID, err))
	}
	return nil
}

// retryUnlessReverted behaves like retry.WithRetry, except it stops
// immediately -- without consuming further retries or backoff delay --
// the moment fn returns an error wrapping ErrReverted. It reports the
// number of attempts made so callers can record accurate retry counts.
func retryUnlessReverted(ctx context.Context, logger *zap.Logger, opts retry.Options, fn func() error) (int, error) {
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return attempt + 1, nil
		}
		if errors.Is(lastErr, ErrReverted) {
			return attempt + 1, lastErr
		}
		if attempt == opts.MaxRetries {
			break
		}

		delay := opts.BaseDelay * time.Duration(1<<uint(attempt))
		if logger != nil {
			logger.Warn("retrying after error",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
		}

		select {
		case <-ctx.Done():
			return attempt + 1, fmt.Errorf("settlement: context cancelled after attempt %d: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
	}

	return opts.MaxRetries + 1, fmt.Errorf("settlement: exhausted %d retries: %w", opts.MaxRetries, lastErr)
}

func (s *Submitter) auth(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(s.Client.PrivateKey, s.Client.ChainID)
	if err != nil {
		return nil, fmt.Errorf("creating transactor: %w", err)
	}
	auth.Context = ctx

	fromAddr := crypto.PubkeyToAddress(s.Client.PrivateKey.PublicKey)
	nonce, err := s.Client.Eth.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return nil, fmt.Errorf("fetching pending nonce: %w", err)
	}
	auth.Nonce = big.NewInt(int64(nonce))

	gasPrice, err := s.Client.Eth.SuggestGasPrice(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("failed to fetch suggested gas price, using fallback", zap.Error(err))
		}
		gasPrice = big.NewInt(20_000_000_000) // 20 gwei
	}
	auth.GasPrice = gasPrice

	return auth, nil
}

func (s *Submitter) approve(ctx context.Context, amount *big.Int) error {
	auth, err := s.auth(ctx)
	if err != nil {
		return err
	}

	data, err := s.erc20.Pack("approve", s.PoolKey.Hooks, amount)
	if err != nil {
		return fmt.Errorf("packing approve call: %w", err)
	}
	gas, err := s.estimateGas(ctx, s.Token0Addr, data)
	if err != nil {
		return err
	}
	auth.GasLimit = gas

	tx, err := s.erc20Contract.Transact(auth, "approve", s.PoolKey.Hooks, amount)
	if err != nil {
		return fmt.Errorf("submitting approve transaction: %w", err)
	}
	return s.waitMined(ctx, tx)
}

func (s *Submitter) settleBatch(ctx context.Context, pi *publicinputs.PublicInputs, proofHex string) error {
	auth, err := s.auth(ctx)
	if err != nil {
		return err
	}

	proofBytes := common.FromHex(proofHex)
	piArray := pi.ToArray()
	var piInts [publicinputs.Count]*big.Int
	for i, e := range piArray {
		v := new(big.Int)
		e.BigInt(v)
		piInts[i] = v
	}

	poolKeyTuple := struct {
		Currency0   common.Address
		Currency1   common.Address
		Fee         uint32
		TickSpacing int32
		Hooks       common.Address
	}{s.PoolKey.Currency0, s.PoolKey.Currency1, s.PoolKey.Fee, s.PoolKey.TickSpacing, s.PoolKey.Hooks}

	data, err := s.coordinator.Pack("settleBatch", poolKeyTuple, proofBytes, piInts)
	if err != nil {
		return fmt.Errorf("packing settleBatch call: %w", err)
	}
	gas, err := s.estimateGas(ctx, s.CoordinatorAddr, data)
	if err != nil {
		return err
	}
	auth.GasLimit = gas

	tx, err := s.coordContract.Transact(auth, "settleBatch", poolKeyTuple, proofBytes, piInts)
	if err != nil {
		return fmt.Errorf("submitting settleBatch transaction: %w", err)
	}
	return s.waitMined(ctx, tx)
}

func (s *Submitter) estimateGas(ctx context.Context, to common.Address, data []byte) (uint64, error) {
	from := crypto.PubkeyToAddress(s.Client.PrivateKey.PublicKey)
	est, err := s.Client.Eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return 0, fmt.Errorf("estimating gas: %w", err)
	}
	return uint64(float64(est) * 1.2), nil
}

// waitMined blocks until tx is included and returns an error if it
// reverted.
func (s *Submitter) waitMined(ctx context.Context, tx *types.Transaction) error {
	receipt, err := bind.WaitMined(ctx, s.Client.Eth, tx)
	if err != nil {
		return fmt.Errorf("waiting for %s to mine: %w", tx.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s: %w", tx.Hash(), ErrReverted)
	}
	return nil
}
