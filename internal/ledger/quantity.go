// Package ledger provides overflow-checked fixed-point arithmetic over asset quantities.
// A Quantity is an unsigned 256-bit integer counted in the smallest indivisible unit
// of an asset. No floating point is used anywhere in this package; every operation
// either returns the exact result or a typed error.
package ledger

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
)

// BpsDenominator is the number of basis points in one whole.
const BpsDenominator = 10_000

// Quantity is an immutable non-negative integer amount.
// The zero value is a valid zero quantity. Quantity is comparable with ==.
type Quantity struct {
	v uint256.Int
}

// Zero returns the zero quantity.
func Zero() Quantity {
	return Quantity{}
}

// New creates a Quantity from a uint64.
func New(x uint64) Quantity {
	var q Quantity
	q.v.SetUint64(x)
	return q
}

// FromBig converts a big.Int. Negative values underflow, values wider than 256 bits overflow.
func FromBig(b *big.Int) (Quantity, error) {
	if b == nil {
		return Quantity{}, apperror.Validation("nil big.Int")
	}
	if b.Sign() < 0 {
		return Quantity{}, apperror.New(apperror.CodeArithmeticUnderflow, apperror.WithContextf("negative value %s", b.String()))
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return Quantity{}, apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("value exceeds 256 bits"))
	}
	return Quantity{v: *v}, nil
}

// Parse reads a base-10 integer string of raw units.
func Parse(s string) (Quantity, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Quantity{}, apperror.New(apperror.CodeInvalidInput, apperror.WithContextf("quantity %q", s), apperror.WithCause(err))
	}
	return Quantity{v: *v}, nil
}

// MustParse is Parse that panics on error. Intended for constants and tests.
func MustParse(s string) Quantity {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}

// Big returns the value as a new big.Int.
func (q Quantity) Big() *big.Int {
	return q.v.ToBig()
}

// Uint64 returns the value and whether it fits in 64 bits.
func (q Quantity) Uint64() (uint64, bool) {
	return q.v.Uint64(), q.v.IsUint64()
}

// IsZero reports whether q == 0.
func (q Quantity) IsZero() bool {
	return q.v.IsZero()
}

// Cmp returns -1, 0 or +1.
func (q Quantity) Cmp(o Quantity) int {
	return q.v.Cmp(&o.v)
}

// Lt reports q < o.
func (q Quantity) Lt(o Quantity) bool { return q.v.Lt(&o.v) }

// Gt reports q > o.
func (q Quantity) Gt(o Quantity) bool { return q.v.Gt(&o.v) }

// Lte reports q <= o.
func (q Quantity) Lte(o Quantity) bool { return !q.v.Gt(&o.v) }

// Gte reports q >= o.
func (q Quantity) Gte(o Quantity) bool { return !q.v.Lt(&o.v) }

// String renders the raw value in base 10.
func (q Quantity) String() string {
	return q.v.Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (q Quantity) MarshalText() ([]byte, error) {
	return []byte(q.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quantity) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// Add returns a + b.
func Add(a, b Quantity) (Quantity, error) {
	var z Quantity
	if _, overflow := z.v.AddOverflow(&a.v, &b.v); overflow {
		return Quantity{}, apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContextf("%s + %s", a, b))
	}
	return z, nil
}

// Sub returns a - b and fails when b > a.
func Sub(a, b Quantity) (Quantity, error) {
	var z Quantity
	if _, underflow := z.v.SubOverflow(&a.v, &b.v); underflow {
		return Quantity{}, apperror.New(apperror.CodeArithmeticUnderflow, apperror.WithContextf("%s - %s", a, b))
	}
	return z, nil
}

// Mul returns a * b.
func Mul(a, b Quantity) (Quantity, error) {
	var z Quantity
	if _, overflow := z.v.MulOverflow(&a.v, &b.v); overflow {
		return Quantity{}, apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContextf("%s * %s", a, b))
	}
	return z, nil
}

// Div returns floor(a / b).
func Div(a, b Quantity) (Quantity, error) {
	if b.IsZero() {
		return Quantity{}, apperror.New(apperror.CodeDivisionByZero, apperror.WithContextf("%s / 0", a))
	}
	var z Quantity
	z.v.Div(&a.v, &b.v)
	return z, nil
}

// MulDiv returns floor(a * b / c) using a 512-bit intermediate product.
// It fails only when c is zero or the final quotient does not fit in 256 bits.
func MulDiv(a, b, c Quantity) (Quantity, error) {
	if c.IsZero() {
		return Quantity{}, apperror.New(apperror.CodeDivisionByZero, apperror.WithContextf("%s * %s / 0", a, b))
	}
	var z Quantity
	if _, overflow := z.v.MulDivOverflow(&a.v, &b.v, &c.v); overflow {
		return Quantity{}, apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContextf("%s * %s / %s", a, b, c))
	}
	return z, nil
}

// Product returns the exact a * b as a big.Int. Pool invariants are compared with it
// since the product of two 256-bit reserves may need 512 bits.
func Product(a, b Quantity) *big.Int {
	return new(big.Int).Mul(a.v.ToBig(), b.v.ToBig())
}

// SubFloor returns max(a - b, 0).
func SubFloor(a, b Quantity) Quantity {
	if b.Gte(a) {
		return Quantity{}
	}
	var z Quantity
	z.v.Sub(&a.v, &b.v)
	return z
}

// Max returns the larger of a and b.
func Max(a, b Quantity) Quantity {
	if b.Gt(a) {
		return b
	}
	return a
}

// Signed returns a - b as a signed big.Int, for reporting losses.
func Signed(a, b Quantity) *big.Int {
	return new(big.Int).Sub(a.v.ToBig(), b.v.ToBig())
}

// ApplyBps returns floor(amount * (10000 - bps) / 10000).
func ApplyBps(amount Quantity, bps uint32) (Quantity, error) {
	if bps > BpsDenominator {
		return Quantity{}, apperror.New(apperror.CodeInvalidInput, apperror.WithContextf("bps %d exceeds %d", bps, BpsDenominator))
	}
	return MulDiv(amount, New(uint64(BpsDenominator-bps)), New(BpsDenominator))
}
