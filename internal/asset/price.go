package asset

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

// PricePrecision is the number of fractional digits kept in a Price.
const PricePrecision = 18

var pricePrecisionMultiplier = new(big.Int).Exp(big.NewInt(10), big.NewInt(PricePrecision), nil)

// Price is the amount of quote token per one whole base token, in fixed point.
type Price struct {
	rate      *big.Int
	base      *Asset
	quote     *Asset
	timestamp time.Time
}

// SpotPrice derives the marginal price of base in quote from pool reserves.
// Fails with InsufficientLiquidity when the base reserve is empty.
func SpotPrice(base, quote *Asset, reserveBase, reserveQuote ledger.Quantity, at time.Time) (Price, error) {
	if base == nil || quote == nil {
		return Price{}, apperror.Validation("nil base or quote")
	}
	if reserveBase.IsZero() {
		return Price{}, apperror.New(apperror.CodeInsufficientLiquidity, apperror.WithContextf("empty %s reserve", base.Symbol()))
	}

	// rate = reserveQuote * 10^18 * 10^baseDecimals / (reserveBase * 10^quoteDecimals)
	num := new(big.Int).Mul(reserveQuote.Big(), pricePrecisionMultiplier)
	num.Mul(num, pow10(base.Decimals()))
	den := new(big.Int).Mul(reserveBase.Big(), pow10(quote.Decimals()))

	return Price{
		rate:      num.Quo(num, den),
		base:      base,
		quote:     quote,
		timestamp: at,
	}, nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Rate returns the price as a decimal.
func (p Price) Rate() decimal.Decimal {
	if p.rate == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(p.rate, -PricePrecision)
}

func (p Price) Base() *Asset { return p.base }

func (p Price) Quote() *Asset { return p.quote }

// Timestamp is when the reserves were read.
func (p Price) Timestamp() time.Time { return p.timestamp }

// IsZero reports an unset or zero price.
func (p Price) IsZero() bool {
	return p.rate == nil || p.rate.Sign() == 0
}

// Pair renders "BASE/QUOTE".
func (p Price) Pair() string {
	if p.base == nil || p.quote == nil {
		return "???/???"
	}
	return fmt.Sprintf("%s/%s", p.base.Symbol(), p.quote.Symbol())
}

// SpreadBps returns (other - p) / p in basis points. Both prices must share base and quote.
func (p Price) SpreadBps(other Price) (decimal.Decimal, error) {
	if !p.base.Equals(other.base) || !p.quote.Equals(other.quote) {
		return decimal.Zero, apperror.New(apperror.CodeAssetMismatch, apperror.WithContextf("%s vs %s", p.Pair(), other.Pair()))
	}
	if p.IsZero() {
		return decimal.Zero, apperror.New(apperror.CodeDivisionByZero, apperror.WithContext("zero reference price"))
	}
	return other.Rate().Sub(p.Rate()).Div(p.Rate()).Mul(decimal.NewFromInt(ledger.BpsDenominator)), nil
}

func (p Price) String() string {
	return fmt.Sprintf("%s %s", p.Rate().String(), p.Pair())
}
