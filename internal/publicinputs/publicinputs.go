// Package publicinputs assembles the fixed 25-field-element public-inputs
// vector the on-chain verifier expects, bit-for-bit, and its 25x32-byte
// big-endian encoding for submission.
package publicinputs

import (
	"fmt"
	"math/big"

	"github.com/latch-protocol/solver/internal/clearing"
	"github.com/latch-protocol/solver/internal/field"
	"github.com/latch-protocol/solver/internal/order"
)

// MaxFeeRate is the largest protocol fee rate the verifier will accept, in
// basis points.
const MaxFeeRate = 1000

// Slot count and layout, fixed by the verifier's circuit:
//
//	0: batch_id       5: orders_root      10: fills[1]
//	1: clearing_price 6: whitelist_root   ...
//	2: buy_volume     7: fee_rate         24: fills[15]
//	3: sell_volume    8: protocol_fee
//	4: order_count    9: fills[0]
const Count = 25

// PublicInputs holds every value the circuit's public inputs are built
// from, before flattening.
type PublicInputs struct {
	BatchID        *big.Int
	ClearingPrice  *big.Int
	BuyVolume      *big.Int
	SellVolume     *big.Int
	OrderCount     int
	OrdersRoot     field.Element
	WhitelistRoot  *big.Int
	FeeRate        uint64
	ProtocolFee    *big.Int
	Fills          [order.MaxPerBatch]*big.Int
}

// Build assembles the public-inputs struct from a clearing result, the
// orders root, pool configuration, and the padded fill vector. It panics
// (an invariant violation, per spec, is never retried) if the inputs would
// poison the on-chain verifier: a zero clearing price with positive
// matched volume, a non-zero clearing price with zero matched volume, or a
// fill exceeding its order's amount. A fee rate above MaxFeeRate is
// returned as an error.
func Build(
	batchID *big.Int,
	orders []order.Order,
	result clearing.Result,
	ordersRoot field.Element,
	whitelistRoot *big.Int,
	feeRate uint64,
	fills [order.MaxPerBatch]*big.Int,
) (*PublicInputs, error) {
	if result.ClearingPrice.Sign() == 0 && result.MatchedVolume.Sign() != 0 {
		panic("publicinputs: clearing price is zero but matched volume is positive")
	}
	if result.ClearingPrice.Sign() != 0 && result.MatchedVolume.Sign() == 0 {
		panic("publicinputs: clearing price is non-zero but matched volume is zero")
	}
	if feeRate > MaxFeeRate {
		return nil, fmt.Errorf("publicinputs: fee_rate %d exceeds MAX_FEE_RATE %d", feeRate, MaxFeeRate)
	}
	for i, o := range orders {
		if i >= order.MaxPerBatch {
			break
		}
		if fills[i].Cmp(o.Amount) > 0 {
			panic(fmt.Sprintf("publicinputs: fill[%d] = %s exceeds order amount %s", i, fills[i], o.Amount))
		}
	}

	protocolFee := new(big.Int).Mul(result.MatchedVolume, new(big.Int).SetUint64(feeRate))
	protocolFee.Div(protocolFee, big.NewInt(10_000))

	if whitelistRoot == nil {
		whitelistRoot = big.NewInt(0)
	}

	return &PublicInputs{
		BatchID:       batchID,
		ClearingPrice: result.ClearingPrice,
		BuyVolume:     result.BuyVolume,
		SellVolume:    result.SellVolume,
		OrderCount:    len(orders),
		OrdersRoot:    ordersRoot,
		WhitelistRoot: whitelistRoot,
		FeeRate:       feeRate,
		ProtocolFee:   protocolFee,
		Fills:         fills,
	}, nil
}

// ToArray flattens the struct into the verifier's 25-element layout.
// Field-modulus overflow on any slot panics, by the same fail-loudly
// contract as the field-hash primitive.
func (p *PublicInputs) ToArray() [Count]field.Element {
	var out [Count]field.Element
	out[0] = field.FromBigInt(p.BatchID)
	out[1] = field.FromBigInt(p.ClearingPrice)
	out[2] = field.FromBigInt(p.BuyVolume)
	out[3] = field.FromBigInt(p.SellVolume)
	out[4] = field.FromUint64(uint64(p.OrderCount))
	out[5] = p.OrdersRoot
	out[6] = field.FromBigInt(p.WhitelistRoot)
	out[7] = field.FromUint64(p.FeeRate)
	out[8] = field.FromBigInt(p.ProtocolFee)
	for i := 0; i < order.MaxPerBatch; i++ {
		out[9+i] = field.FromBigInt(p.Fills[i])
	}
	return out
}

// ToHexBytes32 renders every slot as a lowercase 0x-prefixed 64-hex-digit
// string: a pure big-endian encoding, left-zero-padded to exactly 32
// bytes per element.
func (p *PublicInputs) ToHexBytes32() [Count]string {
	arr := p.ToArray()
	var out [Count]string
	for i, e := range arr {
		out[i] = field.ToHex(e)
	}
	return out
}
