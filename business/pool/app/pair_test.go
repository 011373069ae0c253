package app_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/pair-arbitrage/business/pool/app"
	"github.com/fd1az/pair-arbitrage/business/pool/domain"
	tokenDomain "github.com/fd1az/pair-arbitrage/business/token/domain"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
	"github.com/fd1az/pair-arbitrage/internal/logger"
)

var (
	deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	trader   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	addrA    = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	addrB    = common.HexToAddress("0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9")
)

func q(v uint64) ledger.Quantity { return ledger.New(v) }

type fixture struct {
	pair   *app.Pair
	tokens *tokenDomain.Ledger
}

func newFixture(t *testing.T, tokens app.TokenLedger, book *tokenDomain.Ledger) fixture {
	t.Helper()
	return newLoggedFixture(t, tokens, book, logger.NewNop())
}

func newLoggedFixture(t *testing.T, tokens app.TokenLedger, book *tokenDomain.Ledger, log logger.LoggerInterface) fixture {
	t.Helper()
	poolA, err := domain.New("exchange-a", addrA, asset.TokenA, asset.TokenB, 30)
	require.NoError(t, err)
	poolB, err := domain.New("exchange-b", addrB, asset.TokenA, asset.TokenB, 30)
	require.NoError(t, err)

	require.NoError(t, book.Mint(asset.IDTokenA, deployer, q(1_000_000)))
	require.NoError(t, book.Mint(asset.IDTokenB, deployer, q(1_000_000)))
	require.NoError(t, book.Mint(asset.IDTokenA, trader, q(10_000)))

	pair, err := app.NewPair(poolA, poolB, tokens, log)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, pair.AddLiquidity(ctx, "exchange-a", deployer, q(1000), q(3000)))
	require.NoError(t, pair.AddLiquidity(ctx, "exchange-b", deployer, q(3000), q(1000)))
	return fixture{pair: pair, tokens: book}
}

func seeded(t *testing.T) fixture {
	book := tokenDomain.NewLedger()
	return newFixture(t, book, book)
}

func TestPair_AddLiquidityMovesTokens(t *testing.T) {
	f := seeded(t)

	r, err := f.pair.Reserves(context.Background(), "exchange-a")
	require.NoError(t, err)
	assert.Equal(t, domain.Reserves{A: q(1000), B: q(3000)}, r)
	assert.Equal(t, q(1000), f.tokens.BalanceOf(asset.IDTokenA, addrA))
	assert.Equal(t, q(3000), f.tokens.BalanceOf(asset.IDTokenB, addrA))
	assert.Equal(t, q(1_000_000-4000), f.tokens.BalanceOf(asset.IDTokenA, deployer))
}

func TestPair_AddLiquidityFailures(t *testing.T) {
	tests := []struct {
		name     string
		poolID   string
		provider common.Address
		a, b     uint64
		wantCode apperror.Code
	}{
		{name: "ratio_mismatch", poolID: "exchange-a", provider: deployer, a: 10, b: 31, wantCode: apperror.CodeRatioMismatch},
		{name: "unfunded_provider", poolID: "exchange-a", provider: trader, a: 10, b: 30, wantCode: apperror.CodeInsufficientFunds},
		{name: "unknown_pool", poolID: "exchange-c", provider: deployer, a: 10, b: 30, wantCode: apperror.CodePoolNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := seeded(t)
			ctx := context.Background()
			before, err := f.pair.State(ctx)
			require.NoError(t, err)
			providerA := f.tokens.BalanceOf(asset.IDTokenA, tt.provider)

			err = f.pair.AddLiquidity(ctx, tt.poolID, tt.provider, q(tt.a), q(tt.b))
			assert.True(t, apperror.HasCode(err, tt.wantCode), "got %v", err)

			after, err := f.pair.State(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, providerA, f.tokens.BalanceOf(asset.IDTokenA, tt.provider))
			assert.Equal(t, q(1000), f.tokens.BalanceOf(asset.IDTokenA, addrA))
		})
	}
}

func TestPair_RejectedDepositIsNotARollback(t *testing.T) {
	tests := []struct {
		name         string
		write        func(tx *app.Tx) error
		wantRollback bool
	}{
		{
			name: "ratio_mismatch",
			write: func(tx *app.Tx) error {
				return tx.AddLiquidity("exchange-a", deployer, q(10), q(31))
			},
		},
		{
			name: "zero_deposit",
			write: func(tx *app.Tx) error {
				return tx.AddLiquidity("exchange-b", deployer, q(0), q(0))
			},
		},
		{
			name: "failure_after_swap",
			write: func(tx *app.Tx) error {
				if _, err := tx.Swap("exchange-a", trader, asset.IDTokenA, q(100)); err != nil {
					return err
				}
				return apperror.ErrExecutionAborted
			},
			wantRollback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			book := tokenDomain.NewLedger()
			f := newLoggedFixture(t, book, book, logger.New(&buf, logger.ParseLevel("debug"), "pool-test", nil))
			ctx := context.Background()
			before, err := f.pair.State(ctx)
			require.NoError(t, err)

			require.Error(t, f.pair.Write(ctx, tt.write))

			after, err := f.pair.State(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, tt.wantRollback, strings.Contains(buf.String(), "transaction rolled back"), buf.String())
		})
	}
}

func TestPair_Swap(t *testing.T) {
	f := seeded(t)
	ctx := context.Background()

	out, err := f.pair.Swap(ctx, "exchange-a", trader, asset.IDTokenA, q(1000))
	require.NoError(t, err)
	assert.Equal(t, q(1497), out)

	assert.Equal(t, q(9000), f.tokens.BalanceOf(asset.IDTokenA, trader))
	assert.Equal(t, q(1497), f.tokens.BalanceOf(asset.IDTokenB, trader))
	assert.Equal(t, q(2000), f.tokens.BalanceOf(asset.IDTokenA, addrA))
	assert.Equal(t, q(1503), f.tokens.BalanceOf(asset.IDTokenB, addrA))

	r, err := f.pair.Reserves(ctx, "exchange-a")
	require.NoError(t, err)
	assert.Equal(t, domain.Reserves{A: q(2000), B: q(1503)}, r)
}

func TestPair_WriteRollsBackEveryStep(t *testing.T) {
	f := seeded(t)
	ctx := context.Background()
	before, err := f.pair.State(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = f.pair.Write(ctx, func(tx *app.Tx) error {
		if _, err := tx.Swap("exchange-a", trader, asset.IDTokenA, q(1000)); err != nil {
			return err
		}
		if _, err := tx.Swap("exchange-b", trader, asset.IDTokenB, q(1497)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	after, err := f.pair.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, q(10_000), f.tokens.BalanceOf(asset.IDTokenA, trader))
	assert.True(t, f.tokens.BalanceOf(asset.IDTokenB, trader).IsZero())
	assert.Equal(t, q(3000), f.tokens.BalanceOf(asset.IDTokenA, addrB))
}

func TestPair_TransferFromRollbackRestoresAllowance(t *testing.T) {
	f := seeded(t)
	ctx := context.Background()
	engine := common.HexToAddress("0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9")
	require.NoError(t, f.tokens.Approve(asset.IDTokenA, trader, engine, q(500)))

	err := f.pair.Write(ctx, func(tx *app.Tx) error {
		if err := tx.TransferFrom(asset.IDTokenA, engine, trader, engine, q(300)); err != nil {
			return err
		}
		return apperror.ErrExecutionAborted
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeExecutionAborted))
	assert.Equal(t, q(500), f.tokens.Allowance(asset.IDTokenA, trader, engine))
	assert.Equal(t, q(10_000), f.tokens.BalanceOf(asset.IDTokenA, trader))
	assert.True(t, f.tokens.BalanceOf(asset.IDTokenA, engine).IsZero())
}

// flakyLedger fails the nth Transfer call when armed.
type flakyLedger struct {
	*tokenDomain.Ledger
	mu     sync.Mutex
	armed  bool
	failAt int
	calls  int
}

func (l *flakyLedger) Transfer(token asset.AssetID, from, to common.Address, amount ledger.Quantity) error {
	l.mu.Lock()
	if l.armed {
		l.calls++
		if l.calls == l.failAt {
			l.mu.Unlock()
			return errors.New("transfer rejected")
		}
	}
	l.mu.Unlock()
	return l.Ledger.Transfer(token, from, to, amount)
}

func TestPair_SwapPayoutFailureRollsBack(t *testing.T) {
	book := tokenDomain.NewLedger()
	flaky := &flakyLedger{Ledger: book}
	f := newFixture(t, flaky, book)
	ctx := context.Background()
	before, err := f.pair.State(ctx)
	require.NoError(t, err)

	// second transfer of the swap is the payout
	flaky.armed, flaky.failAt = true, 2
	_, err = f.pair.Swap(ctx, "exchange-a", trader, asset.IDTokenA, q(1000))
	assert.EqualError(t, err, "transfer rejected")

	after, err := f.pair.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, q(10_000), book.BalanceOf(asset.IDTokenA, trader))
	assert.Equal(t, q(1000), book.BalanceOf(asset.IDTokenA, addrA))
}

func TestPair_RollbackFailureIsReported(t *testing.T) {
	book := tokenDomain.NewLedger()
	flaky := &flakyLedger{Ledger: book}
	f := newFixture(t, flaky, book)

	// 1: pay in, 2: payout, 3: reverse payout during rollback
	flaky.armed, flaky.failAt = true, 3
	err := f.pair.Write(context.Background(), func(tx *app.Tx) error {
		if _, err := tx.Swap("exchange-a", trader, asset.IDTokenA, q(1000)); err != nil {
			return err
		}
		return apperror.ErrExecutionAborted
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeExecutionAborted))
	assert.True(t, apperror.HasCode(err, apperror.CodeRollbackFailed))
}

func TestPair_ConcurrentSwapsConserveTokens(t *testing.T) {
	f := seeded(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			poolID := "exchange-a"
			if i%2 == 1 {
				poolID = "exchange-b"
			}
			_, err := f.pair.Swap(ctx, poolID, trader, asset.IDTokenA, q(50))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	states, err := f.pair.State(ctx)
	require.NoError(t, err)
	for _, s := range states {
		assert.Equal(t, s.Reserves.A, f.tokens.BalanceOf(asset.IDTokenA, s.Address), s.ID)
		assert.Equal(t, s.Reserves.B, f.tokens.BalanceOf(asset.IDTokenB, s.Address), s.ID)
	}
	assert.Equal(t, q(9000), f.tokens.BalanceOf(asset.IDTokenA, trader))
}

func TestPair_Healthy(t *testing.T) {
	poolA, err := domain.New("exchange-a", addrA, asset.TokenA, asset.TokenB, 30)
	require.NoError(t, err)
	poolB, err := domain.New("exchange-b", addrB, asset.TokenA, asset.TokenB, 30)
	require.NoError(t, err)
	pair, err := app.NewPair(poolA, poolB, tokenDomain.NewLedger(), logger.NewNop())
	require.NoError(t, err)

	ok, msg := pair.Healthy(context.Background())
	assert.False(t, ok)
	assert.Contains(t, msg, "exchange-a")

	ok, _ = seeded(t).pair.Healthy(context.Background())
	assert.True(t, ok)
}

func TestNewPair_Validation(t *testing.T) {
	other := asset.NewAsset(asset.NewAssetID(31337, common.HexToAddress("0x2222222222222222222222222222222222222222")), "TKC", "Token C", 18)
	poolA, err := domain.New("exchange-a", addrA, asset.TokenA, asset.TokenB, 30)
	require.NoError(t, err)
	poolC, err := domain.New("exchange-c", addrB, asset.TokenA, other, 30)
	require.NoError(t, err)

	_, err = app.NewPair(poolA, poolC, tokenDomain.NewLedger(), logger.NewNop())
	assert.True(t, apperror.HasCode(err, apperror.CodeAssetMismatch))

	_, err = app.NewPair(poolA, poolA, tokenDomain.NewLedger(), logger.NewNop())
	assert.Error(t, err)
}

func TestPair_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("sets_named_pools", func(t *testing.T) {
		f := seeded(t)
		require.NoError(t, f.pair.Restore(ctx, map[string]domain.Reserves{
			"exchange-b": {A: q(2500), B: q(1200)},
		}))

		b, err := f.pair.Reserves(ctx, "exchange-b")
		require.NoError(t, err)
		assert.Equal(t, domain.Reserves{A: q(2500), B: q(1200)}, b)
		a, err := f.pair.Reserves(ctx, "exchange-a")
		require.NoError(t, err)
		assert.Equal(t, domain.Reserves{A: q(1000), B: q(3000)}, a)
	})

	tests := []struct {
		name     string
		reserves map[string]domain.Reserves
		code     apperror.Code
	}{
		{
			name: "unknown_pool",
			reserves: map[string]domain.Reserves{
				"exchange-a": {A: q(1), B: q(1)},
				"exchange-c": {A: q(1), B: q(1)},
			},
			code: apperror.CodePoolNotFound,
		},
		{
			name: "one_sided",
			reserves: map[string]domain.Reserves{
				"exchange-a": {A: q(1), B: q(1)},
				"exchange-b": {A: q(0), B: q(1)},
			},
			code: apperror.CodeInvalidState,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := seeded(t)
			err := f.pair.Restore(ctx, tt.reserves)
			assert.True(t, apperror.HasCode(err, tt.code))

			a, err := f.pair.Reserves(ctx, "exchange-a")
			require.NoError(t, err)
			assert.Equal(t, domain.Reserves{A: q(1000), B: q(3000)}, a)
		})
	}
}
