package asset

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

// Amount is an immutable quantity tagged with its token.
type Amount struct {
	raw   ledger.Quantity
	asset *Asset
}

// NewAmount tags a raw quantity with its token.
func NewAmount(a *Asset, raw ledger.Quantity) Amount {
	if a == nil {
		panic("asset: nil asset")
	}
	return Amount{raw: raw, asset: a}
}

// Zero returns a zero amount of the token.
func Zero(a *Asset) Amount {
	return NewAmount(a, ledger.Zero())
}

// Raw returns the quantity in smallest units.
func (a Amount) Raw() ledger.Quantity { return a.raw }

// Asset returns the token.
func (a Amount) Asset() *Asset { return a.asset }

func (a Amount) IsZero() bool { return a.raw.IsZero() }

// Add sums two amounts of the same token.
func (a Amount) Add(b Amount) (Amount, error) {
	if err := a.sameAsset(b); err != nil {
		return Amount{}, err
	}
	sum, err := ledger.Add(a.raw, b.raw)
	if err != nil {
		return Amount{}, err
	}
	return Amount{raw: sum, asset: a.asset}, nil
}

// Sub subtracts b from a and fails with ArithmeticUnderflow when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if err := a.sameAsset(b); err != nil {
		return Amount{}, err
	}
	diff, err := ledger.Sub(a.raw, b.raw)
	if err != nil {
		return Amount{}, err
	}
	return Amount{raw: diff, asset: a.asset}, nil
}

// Equals compares token and value.
func (a Amount) Equals(b Amount) bool {
	return a.asset.Equals(b.asset) && a.raw == b.raw
}

// ToDecimal converts to whole-token units. Display only.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw.Big(), -int32(a.asset.Decimals()))
}

// ParseDecimal converts whole-token units to an Amount, rejecting fractions finer than the token allows.
func ParseDecimal(a *Asset, d decimal.Decimal) (Amount, error) {
	if a == nil {
		return Amount{}, apperror.Validation("nil asset")
	}
	if d.IsNegative() {
		return Amount{}, apperror.New(apperror.CodeArithmeticUnderflow, apperror.WithContextf("negative amount %s", d))
	}

	scaled := d.Shift(int32(a.Decimals()))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, apperror.Validation(fmt.Sprintf("%s has more than %d decimals", d, a.Decimals()))
	}

	raw, err := ledger.FromBig(scaled.BigInt())
	if err != nil {
		return Amount{}, err
	}
	return Amount{raw: raw, asset: a}, nil
}

// ParseString parses a decimal string of whole-token units.
func ParseString(a *Asset, s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, apperror.New(apperror.CodeInvalidInput, apperror.WithContextf("amount %q", s), apperror.WithCause(err))
	}
	return ParseDecimal(a, d)
}

// MustParse is ParseString that panics. Intended for defaults and tests.
func MustParse(a *Asset, s string) Amount {
	amt, err := ParseString(a, s)
	if err != nil {
		panic(err)
	}
	return amt
}

// String renders e.g. "1.5 TKA".
func (a Amount) String() string {
	if a.asset == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.ToDecimal().String(), a.asset.Symbol())
}

// StringFixed renders with a fixed number of places.
func (a Amount) StringFixed(places int32) string {
	if a.asset == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.ToDecimal().StringFixed(places), a.asset.Symbol())
}

func (a Amount) sameAsset(b Amount) error {
	if a.asset == nil || b.asset == nil {
		return apperror.Validation("nil asset")
	}
	if !a.asset.Equals(b.asset) {
		return apperror.New(apperror.CodeAssetMismatch, apperror.WithContextf("%s vs %s", a.asset.Symbol(), b.asset.Symbol()))
	}
	return nil
}
