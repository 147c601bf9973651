// Package clearing computes the uniform clearing price and pro-rata fill
// allocation for a revealed batch of orders. Both operations are
// deterministic functions of the order list: same input, same output.
package clearing

import (
	"math/big"
	"sort"

	"github.com/latch-protocol/solver/internal/order"
)

// Result is the clearing engine's output. BuyVolume and SellVolume are the
// raw demand/supply at ClearingPrice, not the matched volume -- the
// downstream circuit independently re-derives MatchedVolume as
// min(BuyVolume, SellVolume) and checks conservation, so submitting the
// matched volume in those slots would fail verification.
type Result struct {
	ClearingPrice *big.Int
	BuyVolume     *big.Int
	SellVolume    *big.Int
	MatchedVolume *big.Int
}

// zeroResult is returned when no candidate price produces a positive
// match; ClearingPrice == 0 in that case and every other field is 0 too.
func zeroResult() Result {
	return Result{
		ClearingPrice: big.NewInt(0),
		BuyVolume:     big.NewInt(0),
		SellVolume:    big.NewInt(0),
		MatchedVolume: big.NewInt(0),
	}
}

// Compute finds the uniform price maximizing matched volume over the
// distinct limit prices present in orders. Ties break toward the lowest
// price among candidates with equal positive matched volume. If no price
// yields a positive match, it returns the zero result.
func Compute(orders []order.Order) Result {
	prices := distinctPrices(orders)

	best := zeroResult()
	bestMatched := big.NewInt(0)
	haveBest := false

	for _, p := range prices {
		demand := demandAt(orders, p)
		supply := supplyAt(orders, p)
		matched := minBig(demand, supply)

		if matched.Sign() <= 0 {
			continue
		}

		switch {
		case !haveBest:
			haveBest = true
		case matched.Cmp(bestMatched) > 0:
			// strictly more matched volume, or
		case matched.Cmp(bestMatched) == 0 && p.Cmp(best.ClearingPrice) < 0:
			// equal matched volume but a lower price: tie-break wins
		default:
			continue
		}

		best = Result{
			ClearingPrice: new(big.Int).Set(p),
			BuyVolume:     demand,
			SellVolume:    supply,
			MatchedVolume: matched,
		}
		bestMatched = matched
	}

	if !haveBest {
		return zeroResult()
	}
	return best
}

// distinctPrices returns the sorted, de-duplicated set of limit prices
// across all orders.
func distinctPrices(orders []order.Order) []*big.Int {
	seen := make(map[string]*big.Int, len(orders))
	for _, o := range orders {
		seen[o.LimitPrice.String()] = o.LimitPrice
	}
	out := make([]*big.Int, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// demandAt sums amount over buy orders whose limit price is >= p.
func demandAt(orders []order.Order, p *big.Int) *big.Int {
	sum := big.NewInt(0)
	for _, o := range orders {
		if o.IsBuy && o.LimitPrice.Cmp(p) >= 0 {
			sum.Add(sum, o.Amount)
		}
	}
	return sum
}

// supplyAt sums amount over sell orders whose limit price is <= p.
func supplyAt(orders []order.Order, p *big.Int) *big.Int {
	sum := big.NewInt(0)
	for _, o := range orders {
		if !o.IsBuy && o.LimitPrice.Cmp(p) <= 0 {
			sum.Add(sum, o.Amount)
		}
	}
	return sum
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Allocate computes the pro-rata fill for each order given the clearing
// result, returning a fill vector the same length as orders. Floor
// division is part of the contract: the verifier separately accepts
// floor-1 as a rounding concession the solver never relies on.
func Allocate(orders []order.Order, result Result) []*big.Int {
	fills := make([]*big.Int, len(orders))

	buyEqSell := result.BuyVolume.Cmp(result.SellVolume) == 0
	buyZero := result.BuyVolume.Sign() == 0 && result.SellVolume.Sign() == 0

	for i, o := range orders {
		switch {
		case buyZero:
			fills[i] = big.NewInt(0)
		case buyEqSell:
			fills[i] = new(big.Int).Set(o.Amount)
		case result.BuyVolume.Cmp(result.SellVolume) > 0:
			// buy-constrained: buys get pro-rata, sells fill in full.
			if o.IsBuy {
				fills[i] = proRata(o.Amount, result.SellVolume, result.BuyVolume)
			} else {
				fills[i] = new(big.Int).Set(o.Amount)
			}
		default:
			// sell-constrained: sells get pro-rata, buys fill in full.
			if o.IsBuy {
				fills[i] = new(big.Int).Set(o.Amount)
			} else {
				fills[i] = proRata(o.Amount, result.BuyVolume, result.SellVolume)
			}
		}
	}
	return fills
}

// proRata computes floor(amount * numerator / denominator).
func proRata(amount, numerator, denominator *big.Int) *big.Int {
	prod := new(big.Int).Mul(amount, numerator)
	return prod.Div(prod, denominator)
}

// PadFills zero-pads (or, for batches at the circuit's cap, passes through)
// a fill vector to exactly order.MaxPerBatch entries.
func PadFills(fills []*big.Int) [order.MaxPerBatch]*big.Int {
	var out [order.MaxPerBatch]*big.Int
	for i := range out {
		out[i] = big.NewInt(0)
	}
	for i, f := range fills {
		if i >= order.MaxPerBatch {
			break
		}
		out[i] = f
	}
	return out
}
