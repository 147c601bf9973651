package clearing

import (
	"math/big"
	"testing"

	"github.com/latch-protocol/solver/internal/order"
)

func ord(isBuy bool, amount, price int64) order.Order {
	return order.Order{
		Amount:     big.NewInt(amount),
		LimitPrice: big.NewInt(price),
		IsBuy:      isBuy,
	}
}

func requireBig(t *testing.T, got *big.Int, want int64, label string) {
	t.Helper()
	if got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: got %s, want %d", label, got.String(), want)
	}
}

func TestComputeBalancedCrossing(t *testing.T) {
	orders := []order.Order{ord(true, 100, 50), ord(false, 100, 50)}
	result := Compute(orders)

	requireBig(t, result.ClearingPrice, 50, "clearing_price")
	requireBig(t, result.BuyVolume, 100, "buy_volume")
	requireBig(t, result.SellVolume, 100, "sell_volume")
	requireBig(t, result.MatchedVolume, 100, "matched_volume")

	fills := PadFills(Allocate(orders, result))
	requireBig(t, fills[0], 100, "fills[0]")
	requireBig(t, fills[1], 100, "fills[1]")
	for i := 2; i < order.MaxPerBatch; i++ {
		requireBig(t, fills[i], 0, "padding fill")
	}
}

func TestComputeNoCrossing(t *testing.T) {
	orders := []order.Order{ord(true, 100, 40), ord(false, 100, 60)}
	result := Compute(orders)

	requireBig(t, result.ClearingPrice, 0, "clearing_price")
	requireBig(t, result.BuyVolume, 0, "buy_volume")
	requireBig(t, result.SellVolume, 0, "sell_volume")
	requireBig(t, result.MatchedVolume, 0, "matched_volume")
}

func TestComputeRawVolumeReporting(t *testing.T) {
	orders := []order.Order{ord(true, 200, 50), ord(false, 100, 50)}
	result := Compute(orders)

	requireBig(t, result.ClearingPrice, 50, "clearing_price")
	requireBig(t, result.BuyVolume, 200, "buy_volume")
	requireBig(t, result.SellVolume, 100, "sell_volume")
	requireBig(t, result.MatchedVolume, 100, "matched_volume")

	fills := Allocate(orders, result)
	requireBig(t, fills[0], 100, "buy fill") // floor(200*100/200)
	requireBig(t, fills[1], 100, "sell fill")
}

func TestComputeTieBreaksToLowestPrice(t *testing.T) {
	orders := []order.Order{
		ord(true, 100, 60),
		ord(true, 100, 50),
		ord(false, 100, 50),
		ord(false, 100, 60),
	}
	result := Compute(orders)

	requireBig(t, result.ClearingPrice, 50, "clearing_price")
	requireBig(t, result.MatchedVolume, 100, "matched_volume")
}

func TestComputeMaxVolumeDiscovery(t *testing.T) {
	orders := []order.Order{
		ord(true, 100, 60),
		ord(true, 100, 50),
		ord(false, 150, 50),
		ord(false, 50, 55),
	}
	result := Compute(orders)

	requireBig(t, result.ClearingPrice, 50, "clearing_price")
	requireBig(t, result.MatchedVolume, 150, "matched_volume")
}

func TestProtocolFeeComputation(t *testing.T) {
	fee := new(big.Int).Mul(big.NewInt(5000), big.NewInt(30))
	fee.Div(fee, big.NewInt(10_000))
	requireBig(t, fee, 15, "protocol_fee")
}

func TestAllocateSellConstrainedProRata(t *testing.T) {
	orders := []order.Order{ord(true, 50, 50), ord(false, 100, 50)}
	result := Compute(orders)

	fills := Allocate(orders, result)
	requireBig(t, fills[0], 50, "buy fill")  // buys fill in full
	requireBig(t, fills[1], 50, "sell fill") // floor(100*50/100)
}
