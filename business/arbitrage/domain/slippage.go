package domain

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

// Leg is the reserve pair a swap trades against.
type Leg struct {
	ReserveIn  ledger.Quantity
	ReserveOut ledger.Quantity
}

// MidRoundTrip is the output of trading amountIn through legs at their mid
// prices, with no fee and no price impact. Display only.
func MidRoundTrip(amountIn ledger.Quantity, legs ...Leg) decimal.Decimal {
	out := toDecimal(amountIn)
	for _, l := range legs {
		if l.ReserveIn.IsZero() {
			return decimal.Zero
		}
		out = out.Mul(toDecimal(l.ReserveOut)).Div(toDecimal(l.ReserveIn))
	}
	return out
}

// SlippageBps is how far final falls short of the mid-price round trip, in bps.
// It covers both fees and price impact.
func SlippageBps(amountIn, final ledger.Quantity, legs ...Leg) decimal.Decimal {
	ideal := MidRoundTrip(amountIn, legs...)
	if !ideal.IsPositive() {
		return decimal.Zero
	}
	return ideal.Sub(toDecimal(final)).Div(ideal).Mul(decimal.NewFromInt(ledger.BpsDenominator))
}

func toDecimal(q ledger.Quantity) decimal.Decimal {
	return decimal.NewFromBigInt(q.Big(), 0)
}
