// Package rewards periodically claims the solver's accrued settlement
// rewards from the rewards contract, gated on SOLVER_REWARDS_ADDRESS
// being configured at all. This is an operational convenience on top of
// the core settle loop, not a per-batch obligation.
package rewards

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/latch-protocol/solver/internal/chain"
	"github.com/latch-protocol/solver/internal/retry"
)

const rewardsABI = `[
	{"name":"claim","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"tokens","type":"address[]"}],
	 "outputs":[{"name":"claimed","type":"uint256[]"}]}
]`

// Claimer claims accrued rewards for the solver's own address, across the
// configured token set.
type Claimer struct {
	Client       *chain.Client
	ContractAddr common.Address
	Tokens       []common.Address
	RetryOptions retry.Options
	Logger       *zap.Logger

	abi      abi.ABI
	contract *bind.BoundContract
}

// New constructs a Claimer bound to the rewards contract at addr, claiming
// rewards for the given token set.
func New(client *chain.Client, addr common.Address, tokens []common.Address, retryOpts retry.Options, logger *zap.Logger) (*Claimer, error) {
	parsed, err := abi.JSON(strings.NewReader(rewardsABI))
	if err != nil {
		return nil, fmt.Errorf("rewards: parsing ABI: %w", err)
	}
	return &Claimer{
		Client:       client,
		ContractAddr: addr,
		Tokens:       tokens,
		RetryOptions: retryOpts,
		Logger:       logger,
		abi:          parsed,
		contract:     bind.NewBoundContract(addr, parsed, client.Eth, client.Eth, client.Eth),
	}, nil
}

// Claim submits a claim transaction for the configured token set,
// retrying any failure, a reverted claim included, with exponential
// backoff. A final failure is logged here and returned; the main loop
// logs it and carries on, so reward claiming never blocks the settlement
// loop.
func (c *Claimer) Claim(ctx context.Context) error {
	err := retry.WithRetry(ctx, c.Logger, c.RetryOptions, func() error {
		return c.claimOnce(ctx)
	})
	if err != nil && c.Logger != nil {
		c.Logger.Warn("reward claim failed, continuing", zap.Error(err))
	}
	return err
}

func (c *Claimer) claimOnce(ctx context.Context) error {
	auth, err := bind.NewKeyedTransactorWithChainID(c.Client.PrivateKey, c.Client.ChainID)
	if err != nil {
		return fmt.Errorf("creating transactor: %w", err)
	}
	auth.Context = ctx

	fromAddr := crypto.PubkeyToAddress(c.Client.PrivateKey.PublicKey)
	nonce, err := c.Client.Eth.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return fmt.Errorf("fetching pending nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)

	tx, err := c.contract.Transact(auth, "claim", c.Tokens)
	if err != nil {
		return fmt.Errorf("submitting claim: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.Client.Eth, tx)
	if err != nil {
		return fmt.Errorf("waiting for %s to mine: %w", tx.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("claim transaction %s reverted", tx.Hash())
	}
	return nil
}
