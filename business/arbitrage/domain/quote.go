package domain

import (
	"math/big"

	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

// RouteQuote is the simulated outcome of one direction.
type RouteQuote struct {
	Direction    Direction
	Intermediate ledger.Quantity
	Final        ledger.Quantity
	// PnL is Final - AmountIn and may be negative.
	PnL *big.Int
}

// Profitable reports a strictly positive PnL.
func (r RouteQuote) Profitable() bool {
	return r.PnL != nil && r.PnL.Sign() > 0
}

// Quote is the result of calculating both directions for one input amount.
type Quote struct {
	AmountIn  ledger.Quantity
	Profit    ledger.Quantity
	Direction Direction
	AFirst    RouteQuote
	BFirst    RouteQuote
}

// NewRouteQuote simulates nothing; it only derives PnL from the legs.
func NewRouteQuote(d Direction, amountIn, intermediate, final ledger.Quantity) RouteQuote {
	return RouteQuote{
		Direction:    d,
		Intermediate: intermediate,
		Final:        final,
		PnL:          ledger.Signed(final, amountIn),
	}
}

// Decide picks the more profitable route. Profit is floored at zero; when neither
// route gains, or both gain equally, the direction is AFirst.
func Decide(amountIn ledger.Quantity, aFirst, bFirst RouteQuote) Quote {
	q := Quote{
		AmountIn:  amountIn,
		Direction: AFirst,
		AFirst:    aFirst,
		BFirst:    bFirst,
	}

	profitA := ledger.SubFloor(aFirst.Final, amountIn)
	profitB := ledger.SubFloor(bFirst.Final, amountIn)

	if profitB.Gt(profitA) {
		q.Direction = BFirst
		q.Profit = profitB
		return q
	}
	q.Profit = profitA
	return q
}

// Profitable reports a strictly positive profit.
func (q Quote) Profitable() bool {
	return !q.Profit.IsZero()
}

// Clone returns a copy that shares no PnL with q.
func (q Quote) Clone() Quote {
	q.AFirst = q.AFirst.clone()
	q.BFirst = q.BFirst.clone()
	return q
}

func (r RouteQuote) clone() RouteQuote {
	if r.PnL != nil {
		r.PnL = new(big.Int).Set(r.PnL)
	}
	return r
}

// Route returns the winning route.
func (q Quote) Route() RouteQuote {
	if q.Direction == BFirst {
		return q.BFirst
	}
	return q.AFirst
}
