package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

func TestEngine_OptimalAmount(t *testing.T) {
	tests := []struct {
		name          string
		poolA, poolB  seed
		wantDirection domain.Direction
	}{
		{name: "a_first", poolA: seed{q(1000), q(3000)}, poolB: seed{q(3000), q(1000)}, wantDirection: domain.AFirst},
		{name: "b_first", poolA: seed{q(3000), q(1000)}, poolB: seed{q(1000), q(3000)}, wantDirection: domain.BFirst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, setup{fee: 30, poolA: tt.poolA, poolB: tt.poolB, cacheLen: 4096})
			ctx := context.Background()

			best, err := f.engine.OptimalAmount(ctx, q(1), q(2000))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDirection, best.Direction)

			brute := ledger.Zero()
			for x := uint64(1); x <= 2000; x++ {
				quote, err := f.engine.CalculateArbitrage(ctx, q(x))
				require.NoError(t, err)
				brute = ledger.Max(brute, quote.Profit)
			}

			assert.True(t, best.Profit.Lte(brute))
			gap := ledger.SubFloor(brute, best.Profit)
			assert.True(t, gap.Lte(q(3)), "optimizer %s, exhaustive %s", best.Profit, brute)

			// the optimum beats both ends of the range
			for _, edge := range []uint64{1, 2000} {
				quote, err := f.engine.CalculateArbitrage(ctx, q(edge))
				require.NoError(t, err)
				assert.True(t, best.Profit.Gte(quote.Profit))
			}
		})
	}
}

func TestEngine_OptimalAmountWithoutProfit(t *testing.T) {
	f := newFixture(t, setup{fee: 30, poolA: seed{q(1000), q(1000)}, poolB: seed{q(1000), q(1000)}})

	best, err := f.engine.OptimalAmount(context.Background(), q(1), q(500))
	require.NoError(t, err)
	assert.False(t, best.Profitable())
}

func TestEngine_OptimalAmountEmptyRange(t *testing.T) {
	f := standard(t)

	_, err := f.engine.OptimalAmount(context.Background(), q(100), q(10))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestEngine_OptimalAmountOverWideRange(t *testing.T) {
	f := newFixture(t, setup{fee: 30, poolA: seed{q(1000), q(3000)}, poolB: seed{q(3000), q(1000)}, cacheLen: 4096})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hi := ledger.MustParse("1" + strings.Repeat("0", 60))
	best, err := f.engine.OptimalAmount(ctx, q(1), hi)
	require.NoError(t, err)
	require.NoError(t, ctx.Err())
	assert.Equal(t, domain.AFirst, best.Direction)

	narrow, err := f.engine.OptimalAmount(ctx, q(1), q(2000))
	require.NoError(t, err)
	gap := ledger.SubFloor(narrow.Profit, best.Profit)
	assert.True(t, best.Profitable())
	assert.True(t, gap.Lte(q(5)), "wide %s, narrow %s", best.Profit, narrow.Profit)
}

func TestEngine_OptimalAmountRejectsRangeBeyondStepBudget(t *testing.T) {
	f := newFixture(t, setup{fee: 30, poolA: seed{q(1000), q(3000)}, poolB: seed{q(3000), q(1000)}, steps: 8})

	_, err := f.engine.OptimalAmount(context.Background(), q(1), q(1_000_000))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput), "got %v", err)

	// eight rounds are plenty for a handful of candidates
	_, err = f.engine.OptimalAmount(context.Background(), q(1), q(20))
	assert.NoError(t, err)
}

func TestEngine_OptimalAmountHonorsCancelledContext(t *testing.T) {
	f := standard(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.OptimalAmount(ctx, q(1), ledger.MustParse("1"+strings.Repeat("0", 60)))
	assert.ErrorIs(t, err, context.Canceled)
}
