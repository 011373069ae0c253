package domain_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/pair-arbitrage/business/pool/domain"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

var poolAddr = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")

func q(v uint64) ledger.Quantity { return ledger.New(v) }

func newPool(t *testing.T, feeBps uint32, reserveA, reserveB uint64, opts ...domain.Option) *domain.Pool {
	t.Helper()
	p, err := domain.New("exchange-a", poolAddr, asset.TokenA, asset.TokenB, feeBps, opts...)
	require.NoError(t, err)
	if reserveA > 0 || reserveB > 0 {
		require.NoError(t, p.AddLiquidity(q(reserveA), q(reserveB)))
	}
	return p
}

func TestGetAmountOut(t *testing.T) {
	tests := []struct {
		name       string
		amountIn   string
		reserveIn  string
		reserveOut string
		feeBps     uint32
		want       string
		wantCode   apperror.Code
	}{
		{name: "no_fee", amountIn: "1000", reserveIn: "1000", reserveOut: "3000", feeBps: 0, want: "1500"},
		{name: "fee_30", amountIn: "1000", reserveIn: "1000", reserveOut: "3000", feeBps: 30, want: "1497"},
		{name: "second_leg_fee_30", amountIn: "1497", reserveIn: "1000", reserveOut: "3000", feeBps: 30, want: "1796"},
		{name: "reverse_leg_no_fee", amountIn: "1500", reserveIn: "3000", reserveOut: "1000", feeBps: 0, want: "333"},
		{name: "fee_eats_dust", amountIn: "1", reserveIn: "1000", reserveOut: "1000", feeBps: 30, want: "0"},
		{
			name:       "wide_intermediate",
			amountIn:   "1000000000000000000000",
			reserveIn:  "1000000000000000000000",
			reserveOut: "3000000000000000000000",
			feeBps:     30,
			want:       "1497746619929894842263",
		},
		{name: "zero_input", amountIn: "0", reserveIn: "1000", reserveOut: "3000", wantCode: apperror.CodeZeroInput},
		{name: "empty_in", amountIn: "1", reserveIn: "0", reserveOut: "3000", wantCode: apperror.CodeInsufficientLiquidity},
		{name: "empty_out", amountIn: "1", reserveIn: "1000", reserveOut: "0", wantCode: apperror.CodeInsufficientLiquidity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.GetAmountOut(
				ledger.MustParse(tt.amountIn),
				ledger.MustParse(tt.reserveIn),
				ledger.MustParse(tt.reserveOut),
				tt.feeBps,
			)
			if tt.wantCode != "" {
				assert.True(t, apperror.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.True(t, got.Lt(ledger.MustParse(tt.reserveOut)))
		})
	}
}

func TestPool_Swap(t *testing.T) {
	p := newPool(t, 30, 1000, 3000)
	before := p.Reserves().Invariant()

	out, err := p.Swap(asset.IDTokenA, q(1000))
	require.NoError(t, err)
	assert.Equal(t, q(1497), out)
	assert.Equal(t, domain.Reserves{A: q(2000), B: q(1503)}, p.Reserves())
	assert.Equal(t, 1, p.Reserves().Invariant().Cmp(before))

	out, err = p.Swap(asset.IDTokenB, q(100))
	require.NoError(t, err)
	// afterFee 99, out floor(2000*99/1602) = 123
	assert.Equal(t, q(123), out)
	assert.Equal(t, domain.Reserves{A: q(1877), B: q(1603)}, p.Reserves())
}

func TestPool_SwapFailuresLeaveStateUnchanged(t *testing.T) {
	foreign := asset.NewAssetID(1, common.HexToAddress("0x1111111111111111111111111111111111111111"))

	tests := []struct {
		name     string
		pool     func(t *testing.T) *domain.Pool
		in       asset.AssetID
		amount   ledger.Quantity
		wantCode apperror.Code
	}{
		{name: "zero_input", pool: func(t *testing.T) *domain.Pool { return newPool(t, 30, 1000, 3000) }, in: asset.IDTokenA, amount: q(0), wantCode: apperror.CodeZeroInput},
		{name: "empty_pool", pool: func(t *testing.T) *domain.Pool { return newPool(t, 30, 0, 0) }, in: asset.IDTokenA, amount: q(10), wantCode: apperror.CodeInsufficientLiquidity},
		{name: "foreign_asset", pool: func(t *testing.T) *domain.Pool { return newPool(t, 30, 1000, 3000) }, in: foreign, amount: q(10), wantCode: apperror.CodeAssetMismatch},
		{
			name: "reserve_overflow",
			pool: func(t *testing.T) *domain.Pool {
				p := newPool(t, 0, 0, 0)
				require.NoError(t, p.AddLiquidity(ledger.MustParse("115792089237316195423570985008687907853269984665640564039457584007913129639935"), q(10)))
				return p
			},
			in:       asset.IDTokenA,
			amount:   q(1),
			wantCode: apperror.CodeArithmeticOverflow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.pool(t)
			before := p.Reserves()

			_, err := p.Swap(tt.in, tt.amount)
			assert.True(t, apperror.HasCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, before, p.Reserves())
		})
	}
}

func TestPool_AddLiquidity(t *testing.T) {
	tests := []struct {
		name      string
		tolerance uint32
		seedA     uint64
		seedB     uint64
		addA      uint64
		addB      uint64
		wantCode  apperror.Code
	}{
		{name: "empty_sets_ratio", addA: 7, addB: 11},
		{name: "exact_ratio", seedA: 1000, seedB: 3000, addA: 10, addB: 30},
		{name: "ratio_off", seedA: 1000, seedB: 3000, addA: 10, addB: 31, wantCode: apperror.CodeRatioMismatch},
		{name: "ratio_within_tolerance", tolerance: 500, seedA: 1000, seedB: 3000, addA: 10, addB: 31},
		{name: "ratio_outside_tolerance", tolerance: 100, seedA: 1000, seedB: 3000, addA: 10, addB: 31, wantCode: apperror.CodeRatioMismatch},
		{name: "zero_a", seedA: 1000, seedB: 3000, addA: 0, addB: 30, wantCode: apperror.CodeZeroInput},
		{name: "zero_b_on_empty", addA: 10, addB: 0, wantCode: apperror.CodeZeroInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPool(t, 30, tt.seedA, tt.seedB, domain.WithRatioTolerance(tt.tolerance))
			before := p.Reserves()

			err := p.AddLiquidity(q(tt.addA), q(tt.addB))
			if tt.wantCode != "" {
				assert.True(t, apperror.HasCode(err, tt.wantCode), "got %v", err)
				assert.Equal(t, before, p.Reserves())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.Reserves{A: q(tt.seedA + tt.addA), B: q(tt.seedB + tt.addB)}, p.Reserves())
			assert.Equal(t, 1, p.Reserves().Invariant().Cmp(before.Invariant()))
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := domain.New("", poolAddr, asset.TokenA, asset.TokenB, 30)
	assert.Error(t, err)

	_, err = domain.New("x", poolAddr, asset.TokenA, asset.TokenA, 30)
	assert.True(t, apperror.HasCode(err, apperror.CodeAssetMismatch))

	_, err = domain.New("x", poolAddr, asset.TokenA, asset.TokenB, 10_000)
	assert.Error(t, err)

	_, err = domain.New("x", poolAddr, asset.TokenA, asset.TokenB, 30, domain.WithRatioTolerance(10_001))
	assert.Error(t, err)
}

func TestPool_QuoteDoesNotMutate(t *testing.T) {
	p := newPool(t, 30, 1000, 3000)
	before := p.Reserves()

	out, err := p.Quote(asset.IDTokenA, q(1000))
	require.NoError(t, err)
	assert.Equal(t, q(1497), out)
	assert.Equal(t, before, p.Reserves())
}

func TestPool_CounterpartAndSpot(t *testing.T) {
	p := newPool(t, 30, 1000, 3000)

	other, err := p.Counterpart(asset.IDTokenA)
	require.NoError(t, err)
	assert.Equal(t, "TKB", other.Symbol())

	price, err := p.SpotPrice(time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "3", price.Rate().String())
}

func FuzzSwapInvariant(f *testing.F) {
	f.Add(uint64(1000), uint64(3000), uint64(1000), uint64(250), true)
	f.Add(uint64(1), uint64(1), uint64(1), uint64(1), false)
	f.Add(uint64(1<<62), uint64(3), uint64(1<<40), uint64(7), true)

	f.Fuzz(func(t *testing.T, reserveA, reserveB, first, second uint64, aFirst bool) {
		if reserveA == 0 || reserveB == 0 {
			t.Skip()
		}
		p, err := domain.New("fuzz", poolAddr, asset.TokenA, asset.TokenB, 30)
		require.NoError(t, err)
		require.NoError(t, p.AddLiquidity(q(reserveA), q(reserveB)))

		in := []asset.AssetID{asset.IDTokenA, asset.IDTokenB}
		if !aFirst {
			in[0], in[1] = in[1], in[0]
		}

		for i, amount := range []uint64{first, second} {
			before := p.Reserves()
			reserveOut := before.B
			if in[i] == asset.IDTokenB {
				reserveOut = before.A
			}

			out, err := p.Swap(in[i], q(amount))
			if err != nil {
				assert.Equal(t, before, p.Reserves())
				continue
			}
			assert.True(t, out.Lt(reserveOut))
			assert.Equal(t, 1, p.Reserves().Invariant().Cmp(before.Invariant()),
				"k must grow: %v -> %v", before, p.Reserves())
		}
	})
}
