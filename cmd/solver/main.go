// Command solver runs the off-chain batch-auction solver daemon: it
// polls one pool's coordinator for a settleable batch, clears it,
// proves the clearing, and submits the proof on-chain, once per poll
// interval, until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/latch-protocol/solver/internal/auditlog"
	"github.com/latch-protocol/solver/internal/chain"
	"github.com/latch-protocol/solver/internal/clearing"
	"github.com/latch-protocol/solver/internal/config"
	"github.com/latch-protocol/solver/internal/errkind"
	"github.com/latch-protocol/solver/internal/health"
	"github.com/latch-protocol/solver/internal/logging"
	"github.com/latch-protocol/solver/internal/merkle"
	"github.com/latch-protocol/solver/internal/order"
	"github.com/latch-protocol/solver/internal/prover"
	"github.com/latch-protocol/solver/internal/publicinputs"
	"github.com/latch-protocol/solver/internal/retry"
	"github.com/latch-protocol/solver/internal/rewards"
	"github.com/latch-protocol/solver/internal/settlement"
	"github.com/latch-protocol/solver/internal/watcher"
)

// claimEvery is how many iterations (poll ticks, whatever their outcome)
// elapse between reward claim attempts, when SOLVER_REWARDS_ADDRESS is
// configured.
const claimEvery = 50

func main() {
	cfg, err := config.Load(os.Getenv("ENV_PATH"))
	if err != nil {
		log.Fatalf("solver: %v", errkind.Wrap(errkind.Configuration, err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("solver: %v", errkind.Wrap(errkind.Configuration, err))
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	client, err := chain.Dial(ctx, cfg.RPCURL, cfg.PrivateKeyHex)
	if err != nil {
		logger.Fatal("connecting to chain", zap.Error(errkind.Wrap(errkind.Configuration, err)))
	}
	defer client.Close()

	reader, err := watcher.NewEthChainReader(cfg.LatchHookAddress, client.Eth)
	if err != nil {
		logger.Fatal("binding coordinator reader", zap.Error(errkind.Wrap(errkind.Configuration, err)))
	}
	w := watcher.New(reader, cfg.PoolID)

	retryOpts := retry.Options{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay}

	poolKey := settlement.PoolKey{
		Currency0:   cfg.Currency0,
		Currency1:   cfg.Currency1,
		Fee:         cfg.PoolFee,
		TickSpacing: cfg.TickSpacing,
		Hooks:       cfg.LatchHookAddress,
	}
	submitter, err := settlement.New(client, cfg.LatchHookAddress, cfg.Currency0, poolKey, retryOpts, logger)
	if err != nil {
		logger.Fatal("constructing settlement submitter", zap.Error(errkind.Wrap(errkind.Configuration, err)))
	}

	var claimer *rewards.Claimer
	if cfg.HasRewardsAddress {
		rewardTokens := []common.Address{cfg.Currency0, cfg.Currency1}
		claimer, err = rewards.New(client, cfg.SolverRewardsAddress, rewardTokens, retryOpts, logger)
		if err != nil {
			logger.Fatal("constructing rewards claimer", zap.Error(errkind.Wrap(errkind.Configuration, err)))
		}
	}

	proverDriver := prover.NewDriver(cfg.CircuitDir, logger)
	audit := auditlog.New()
	healthSrv := health.New(audit, &submitter.Failed)

	httpSrv := &http.Server{Addr: cfg.HealthAddr, Handler: healthSrv.Handler()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server exited", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("solver starting",
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("hook", cfg.LatchHookAddress.Hex()),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	var iteration uint64
	for {
		select {
		case <-ctx.Done():
			logger.Info("solver stopped")
			return
		case <-ticker.C:
			iteration++
			runIteration(ctx, logger.With(zap.Uint64("iteration", iteration)), w, proverDriver, submitter, audit, healthSrv)
			if claimer != nil && iteration%claimEvery == 0 {
				if err := claimer.Claim(ctx); err != nil {
					logger.Warn("reward claim failed", zap.Error(err))
				}
			}
		}
	}
}

// runIteration runs exactly one discover -> clear -> prove -> settle
// pass. Every stage's error is logged; the skip, prover and settlement
// outcomes are tagged with an errkind, the other stages' errors are
// logged as returned. No stage
// panics escape to the caller except genuine invariant violations, which
// are intentionally fatal (spec.md §7).
func runIteration(
	ctx context.Context,
	logger *zap.Logger,
	w *watcher.Watcher,
	proverDriver *prover.Driver,
	submitter *settlement.Submitter,
	audit *auditlog.Log,
	healthSrv *health.Server,
) {
	batch, ok, err := w.Discover(ctx)
	if err != nil {
		logger.Error("discovering batch", zap.Error(err))
		audit.Record(auditlog.Outcome{Status: "failed", Detail: err.Error()})
		return
	}
	if !ok {
		skipped := errkind.Wrap(errkind.Skip, errors.New("no settleable batch this poll"))
		logger.Debug("skipping iteration", zap.Error(skipped))
		return
	}

	batchIDStr := batch.BatchID.String()
	logger = logger.With(zap.String("batch_id", batchIDStr))
	logger.Info("discovered settleable batch", zap.Int("order_count", len(batch.Orders)))

	for _, o := range batch.Orders {
		if err := o.Validate(); err != nil {
			logger.Error("invalid revealed order, skipping batch", zap.Error(err))
			audit.Record(auditlog.Outcome{BatchID: batchIDStr, Status: "skipped", Detail: err.Error()})
			healthSrv.RecordIteration(batchIDStr, "skipped")
			return
		}
	}

	poolConfig, err := w.Reader.PoolConfig(ctx, batch.PoolID)
	if err != nil {
		logger.Error("reading pool config", zap.Error(err))
		audit.Record(auditlog.Outcome{BatchID: batchIDStr, Status: "failed", Detail: err.Error()})
		healthSrv.RecordIteration(batchIDStr, "failed")
		return
	}

	result := clearing.Compute(batch.Orders)
	rawFills := clearing.Allocate(batch.Orders, result)
	fills := clearing.PadFills(rawFills)

	leaves := order.Leaves(batch.Orders)
	ordersRoot := merkle.BuildRoot(leaves)

	var whitelist [order.MaxPerBatch]prover.WhitelistProof
	for i := range whitelist {
		whitelist[i] = prover.ZeroWhitelistProof()
	}

	pi, err := publicinputs.Build(batch.BatchID, batch.Orders, result, ordersRoot, poolConfig.WhitelistRoot, poolConfig.FeeRate, fills)
	if err != nil {
		logger.Error("assembling public inputs", zap.Error(err))
		audit.Record(auditlog.Outcome{BatchID: batchIDStr, Status: "failed", Detail: err.Error()})
		healthSrv.RecordIteration(batchIDStr, "failed")
		return
	}

	if result.MatchedVolume.Sign() == 0 {
		skipped := errkind.Wrap(errkind.Skip, fmt.Errorf("batch %s has no crossing volume, nothing to settle", batchIDStr))
		logger.Info("skipping iteration", zap.Error(skipped))
		audit.Record(auditlog.Outcome{BatchID: batchIDStr, ClearingPrice: "0", MatchedVolume: "0", Status: "skipped"})
		healthSrv.RecordIteration(batchIDStr, "skipped")
		return
	}

	artifact, err := proverDriver.Prove(ctx, pi, batch.Orders, whitelist)
	if err != nil {
		wrapped := errkind.Wrap(errkind.ProverFailure, err)
		logger.Error("proving batch", zap.Error(wrapped))
		audit.Record(auditlog.Outcome{BatchID: batchIDStr, Status: "failed", Detail: err.Error()})
		healthSrv.RecordIteration(batchIDStr, "failed")
		return
	}

	if err := submitter.Settle(ctx, batch.BatchID, pi, artifact.ProofHex, batch.Orders, fills); err != nil {
		kind, _ := errkind.Of(err)
		logger.Error("settling batch", zap.String("kind", string(kind)), zap.Error(err))
		audit.Record(auditlog.Outcome{
			BatchID:       batchIDStr,
			ClearingPrice: result.ClearingPrice.String(),
			MatchedVolume: result.MatchedVolume.String(),
			Status:        "failed",
			Detail:        err.Error(),
		})
		healthSrv.RecordIteration(batchIDStr, "failed")
		return
	}

	logger.Info("batch settled",
		zap.String("clearing_price", result.ClearingPrice.String()),
		zap.String("matched_volume", result.MatchedVolume.String()),
	)
	audit.Record(auditlog.Outcome{
		BatchID:       batchIDStr,
		ClearingPrice: result.ClearingPrice.String(),
		MatchedVolume: result.MatchedVolume.String(),
		Status:        "settled",
	})
	healthSrv.RecordIteration(batchIDStr, "settled")
}
