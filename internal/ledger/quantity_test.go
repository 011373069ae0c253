package ledger_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

var maxQuantity = ledger.MustParse("115792089237316195423570985008687907853269984665640564039457584007913129639935")

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		op      func(a, b ledger.Quantity) (ledger.Quantity, error)
		a, b    ledger.Quantity
		want    string
		wantErr error
	}{
		{name: "add", op: ledger.Add, a: ledger.New(2), b: ledger.New(3), want: "5"},
		{name: "add_overflow", op: ledger.Add, a: maxQuantity, b: ledger.New(1), wantErr: apperror.ErrArithmeticOverflow},
		{name: "sub", op: ledger.Sub, a: ledger.New(5), b: ledger.New(3), want: "2"},
		{name: "sub_to_zero", op: ledger.Sub, a: ledger.New(5), b: ledger.New(5), want: "0"},
		{name: "sub_underflow", op: ledger.Sub, a: ledger.New(3), b: ledger.New(5), wantErr: apperror.ErrArithmeticUnderflow},
		{name: "mul", op: ledger.Mul, a: ledger.New(1_000), b: ledger.New(3_000), want: "3000000"},
		{name: "mul_overflow", op: ledger.Mul, a: maxQuantity, b: ledger.New(2), wantErr: apperror.ErrArithmeticOverflow},
		{name: "div_floors", op: ledger.Div, a: ledger.New(7), b: ledger.New(2), want: "3"},
		{name: "div_by_zero", op: ledger.Div, a: ledger.New(7), b: ledger.Zero(), wantErr: apperror.ErrDivisionByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op(tt.a, tt.b)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestMulDiv(t *testing.T) {
	e18 := ledger.MustParse("1000000000000000000")
	huge := ledger.MustParse("100000000000000000000000000000000000000000000000000") // 1e50

	tests := []struct {
		name    string
		a, b, c ledger.Quantity
		want    string
		wantErr error
	}{
		{name: "fee_floor", a: ledger.New(1_000), b: ledger.New(9_970), c: ledger.New(10_000), want: "997"},
		{name: "rounds_down", a: ledger.New(1), b: ledger.New(2), c: ledger.New(3), want: "0"},
		{name: "wide_intermediate", a: huge, b: huge, c: huge, want: huge.String()},
		{name: "wei_scale", a: e18, b: e18, c: e18, want: e18.String()},
		{name: "division_by_zero", a: ledger.New(1), b: ledger.New(1), c: ledger.Zero(), wantErr: apperror.ErrDivisionByZero},
		{name: "result_overflow", a: maxQuantity, b: ledger.New(2), c: ledger.New(1), wantErr: apperror.ErrArithmeticOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ledger.MulDiv(tt.a, tt.b, tt.c)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestMulDiv_NaiveMulWouldOverflow(t *testing.T) {
	half := ledger.MustParse("340282366920938463463374607431768211456") // 2^128

	_, err := ledger.Mul(half, half)
	require.ErrorIs(t, err, apperror.ErrArithmeticOverflow)

	got, err := ledger.MulDiv(half, half, half)
	require.NoError(t, err)
	assert.Equal(t, half, got)
}

func TestApplyBps(t *testing.T) {
	got, err := ledger.ApplyBps(ledger.New(1_500), 30)
	require.NoError(t, err)
	assert.Equal(t, "1495", got.String())

	got, err = ledger.ApplyBps(ledger.New(1_500), 0)
	require.NoError(t, err)
	assert.Equal(t, "1500", got.String())

	_, err = ledger.ApplyBps(ledger.New(1), 10_001)
	assert.Error(t, err)
}

func TestFromBig(t *testing.T) {
	q, err := ledger.FromBig(big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, ledger.New(42), q)

	_, err = ledger.FromBig(big.NewInt(-1))
	assert.ErrorIs(t, err, apperror.ErrArithmeticUnderflow)

	tooWide := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = ledger.FromBig(tooWide)
	assert.ErrorIs(t, err, apperror.ErrArithmeticOverflow)
}

func TestParse(t *testing.T) {
	q, err := ledger.Parse("3000")
	require.NoError(t, err)
	assert.Equal(t, ledger.New(3_000), q)

	for _, bad := range []string{"", "-1", "1.5", "abc"} {
		_, err := ledger.Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, ledger.Zero(), ledger.SubFloor(ledger.New(3), ledger.New(5)))
	assert.Equal(t, ledger.New(2), ledger.SubFloor(ledger.New(5), ledger.New(3)))
	assert.Equal(t, ledger.New(5), ledger.Max(ledger.New(3), ledger.New(5)))
	assert.Equal(t, "-924", ledger.Signed(ledger.New(76), ledger.New(1_000)).String())

	k := ledger.Product(maxQuantity, maxQuantity)
	assert.Greater(t, k.BitLen(), 256)
}

func TestComparisons(t *testing.T) {
	a, b := ledger.New(1), ledger.New(2)
	assert.True(t, a.Lt(b))
	assert.True(t, b.Gt(a))
	assert.True(t, a.Lte(a))
	assert.True(t, a.Gte(a))
	assert.Equal(t, -1, a.Cmp(b))
	assert.True(t, ledger.Zero().IsZero())
}

func TestTextRoundTrip(t *testing.T) {
	var q ledger.Quantity
	require.NoError(t, q.UnmarshalText([]byte("1796")))
	b, err := q.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1796", string(b))
}
