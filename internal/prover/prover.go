// Package prover drives the external witness-generation and proving
// binaries that turn a cleared batch into a proof the on-chain verifier
// accepts. The prover itself is treated as an opaque black box: this
// package only materializes its inputs and parses its binary outputs.
package prover

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/latch-protocol/solver/internal/field"
	"github.com/latch-protocol/solver/internal/order"
	"github.com/latch-protocol/solver/internal/publicinputs"
)

const (
	// WitnessTimeout bounds witness generation.
	WitnessTimeout = 120 * time.Second
	// ProveTimeout bounds proof generation.
	ProveTimeout = 300 * time.Second

	publicInputsByteLen = publicinputs.Count * 32

	proverInputFile  = "Prover.toml"
	proofOutputFile  = "target/proof/proof"
	publicOutputFile = "target/proof/public_inputs"
)

// WhitelistPathDepth is the fixed Merkle path length the circuit expects
// per whitelist proof.
const WhitelistPathDepth = 8

// WhitelistProof is a single trader's whitelist-membership Merkle path.
// The solver currently only ever emits the permissionless all-zero proof
// (spec.md open question: real per-trader paths are unimplemented here).
type WhitelistProof struct {
	Path  [WhitelistPathDepth]field.Element
	Index [WhitelistPathDepth]bool
}

// ZeroWhitelistProof is the canonical permissionless-pool proof record.
func ZeroWhitelistProof() WhitelistProof {
	return WhitelistProof{}
}

// Artifact is the solver-facing result of a successful prove: an opaque
// proof blob, hex-encoded, and the 25-element public-inputs vector the
// prover independently derived and emitted, also hex-encoded so the
// caller can cross-check it against publicinputs.ToHexBytes32.
type Artifact struct {
	ProofHex        string
	PublicInputsHex [publicinputs.Count]string
}

// Driver orchestrates one prove for one batch. CircuitDir is the prover's
// working directory; it is not safe to share across concurrent solver
// instances.
type Driver struct {
	CircuitDir string
	Logger     *zap.Logger
}

// NewDriver constructs a Driver rooted at circuitDir.
func NewDriver(circuitDir string, logger *zap.Logger) *Driver {
	return &Driver{CircuitDir: circuitDir, Logger: logger}
}

// Prove writes the Prover.toml input file, runs witness-gen then prove,
// and parses the resulting artifacts. Any child-process failure --
// non-zero exit, timeout, or a missing/malformed artifact -- is fatal for
// this batch: the caller must skip the iteration and retry fresh on the
// next poll; the prover is deterministic and expensive, so this package
// never retries internally.
func (d *Driver) Prove(ctx context.Context, pi *publicinputs.PublicInputs, orders []order.Order, whitelist [order.MaxPerBatch]WhitelistProof) (*Artifact, error) {
	inputPath := filepath.Join(d.CircuitDir, proverInputFile)
	if err := writeInputFile(inputPath, pi, orders, whitelist); err != nil {
		return nil, fmt.Errorf("prover: writing input file: %w", err)
	}

	if err := d.run(ctx, "witness-gen", WitnessTimeout); err != nil {
		return nil, fmt.Errorf("prover: witness generation failed: %w", err)
	}

	if err := d.run(ctx, "prove", ProveTimeout, "--format", "solidity"); err != nil {
		return nil, fmt.Errorf("prover: proof generation failed: %w", err)
	}

	return d.readArtifacts()
}

// run invokes an external binary in CircuitDir with a hard timeout,
// killing the child process if it is exceeded.
func (d *Driver) run(ctx context.Context, binary string, timeout time.Duration, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Dir = d.CircuitDir
	out, err := cmd.CombinedOutput()

	if d.Logger != nil {
		d.Logger.Debug("prover stage finished",
			zap.String("binary", binary),
			zap.Duration("timeout", timeout),
			zap.ByteString("output", out),
		)
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s timed out after %s", binary, timeout)
	}
	if err != nil {
		return fmt.Errorf("%s exited with error: %w (output: %s)", binary, err, out)
	}
	return nil
}

// readArtifacts reads and parses the proof blob and the 800-byte
// public-inputs blob the prove stage must have written.
func (d *Driver) readArtifacts() (*Artifact, error) {
	proofPath := filepath.Join(d.CircuitDir, proofOutputFile)
	proofBytes, err := os.ReadFile(proofPath)
	if err != nil {
		return nil, fmt.Errorf("prover: reading proof artifact %s: %w", proofPath, err)
	}

	piPath := filepath.Join(d.CircuitDir, publicOutputFile)
	piBytes, err := os.ReadFile(piPath)
	if err != nil {
		return nil, fmt.Errorf("prover: reading public-inputs artifact %s: %w", piPath, err)
	}

	piHex, err := ParsePublicInputsBlob(piBytes)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		ProofHex:        "0x" + hex.EncodeToString(proofBytes),
		PublicInputsHex: piHex,
	}, nil
}

// ParsePublicInputsBlob splits a public-inputs artifact into 25
// lowercase 0x-prefixed 64-hex-digit slices. It fails loudly if blob is
// not exactly 800 bytes (25 * 32).
func ParsePublicInputsBlob(blob []byte) ([publicinputs.Count]string, error) {
	var out [publicinputs.Count]string
	if len(blob) != publicInputsByteLen {
		return out, fmt.Errorf("prover: public-inputs blob is %d bytes, expected %d", len(blob), publicInputsByteLen)
	}
	for i := 0; i < publicinputs.Count; i++ {
		chunk := blob[i*32 : (i+1)*32]
		out[i] = "0x" + hex.EncodeToString(chunk)
	}
	return out, nil
}

// writeInputFile serializes the public and private inputs into the
// prover's Prover.toml. Scalar fields are always quoted decimal strings
// (the prover parses arbitrary-precision integers from string form);
// Merkle roots are 0x-prefixed hex, never native integer literals.
func writeInputFile(path string, pi *publicinputs.PublicInputs, orders []order.Order, whitelist [order.MaxPerBatch]WhitelistProof) error {
	var b strings.Builder

	fmt.Fprintf(&b, "batch_id = %q\n", pi.BatchID.String())
	fmt.Fprintf(&b, "clearing_price = %q\n", pi.ClearingPrice.String())
	fmt.Fprintf(&b, "buy_volume = %q\n", pi.BuyVolume.String())
	fmt.Fprintf(&b, "sell_volume = %q\n", pi.SellVolume.String())
	fmt.Fprintf(&b, "order_count = %q\n", fmt.Sprintf("%d", pi.OrderCount))
	fmt.Fprintf(&b, "fee_rate = %q\n", fmt.Sprintf("%d", pi.FeeRate))
	fmt.Fprintf(&b, "protocol_fee = %q\n", pi.ProtocolFee.String())
	fmt.Fprintf(&b, "orders_root = %q\n", field.ToHex(pi.OrdersRoot))
	fmt.Fprintf(&b, "whitelist_root = %q\n", "0x"+bigIntTo32ByteHex(pi.WhitelistRoot))

	b.WriteString("fills = [")
	for i := 0; i < order.MaxPerBatch; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", pi.Fills[i].String())
	}
	b.WriteString("]\n\n")

	padded := padOrders(orders)
	for _, o := range padded {
		b.WriteString("[[orders]]\n")
		fmt.Fprintf(&b, "amount = %q\n", o.Amount.String())
		fmt.Fprintf(&b, "limit_price = %q\n", o.LimitPrice.String())
		b.WriteString("trader = [")
		for i, bb := range o.Trader {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q", fmt.Sprintf("0x%02x", bb))
		}
		b.WriteString("]\n")
		fmt.Fprintf(&b, "is_buy = %t\n\n", o.IsBuy)
	}

	for _, wp := range whitelist {
		b.WriteString("[[whitelist_proofs]]\n")
		b.WriteString("path = [")
		for i, e := range wp.Path {
			if i > 0 {
				b.WriteString(", ")
			}
			var v big.Int
			e.BigInt(&v)
			fmt.Fprintf(&b, "%q", v.String())
		}
		b.WriteString("]\n")
		b.WriteString("index = [")
		for i, bit := range wp.Index {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%t", bit)
		}
		b.WriteString("]\n\n")
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// padOrders pads orders to exactly order.MaxPerBatch with the canonical
// zero record: amount=0, limit_price=0, trader=[0;20], is_buy=false.
func padOrders(orders []order.Order) [order.MaxPerBatch]order.Order {
	var out [order.MaxPerBatch]order.Order
	for i := range out {
		out[i] = order.Order{Amount: big.NewInt(0), LimitPrice: big.NewInt(0)}
	}
	for i, o := range orders {
		if i >= order.MaxPerBatch {
			break
		}
		out[i] = o
	}
	return out
}

func bigIntTo32ByteHex(v *big.Int) string {
	var buf [32]byte
	v.FillBytes(buf[:])
	return hex.EncodeToString(buf[:])
}
