package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/pair-arbitrage/business/pool/domain"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

type undo struct {
	step    string
	reverse func() error
}

type counted struct {
	counter metric.Int64Counter
	poolID  string
}

// Tx is an exclusive, journaled unit of work on the pair.
type Tx struct {
	View
	ctx     context.Context
	journal []undo
	// changes counts applied state changes; pool snapshots alone are not changes.
	changes int
	touched map[string]bool
	events  []counted
}

// Context returns the context Write was called with.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// Transfer moves tokens and journals the reverse transfer.
func (tx *Tx) Transfer(token asset.AssetID, from, to common.Address, amount ledger.Quantity) error {
	if err := tx.pair.tokens.Transfer(token, from, to, amount); err != nil {
		return err
	}
	tx.record(fmt.Sprintf("transfer %s %s %s->%s", amount, token, from.Hex(), to.Hex()), func() error {
		return tx.pair.tokens.Transfer(token, to, from, amount)
	})
	return nil
}

// TransferFrom moves tokens on spender's allowance and journals both the
// reverse transfer and the allowance it consumed.
func (tx *Tx) TransferFrom(token asset.AssetID, spender, from, to common.Address, amount ledger.Quantity) error {
	allowance := tx.pair.tokens.Allowance(token, from, spender)
	if err := tx.pair.tokens.TransferFrom(token, spender, from, to, amount); err != nil {
		return err
	}
	tx.record(fmt.Sprintf("transferFrom %s %s %s->%s", amount, token, from.Hex(), to.Hex()), func() error {
		if err := tx.pair.tokens.Transfer(token, to, from, amount); err != nil {
			return err
		}
		return tx.pair.tokens.Approve(token, from, spender, allowance)
	})
	return nil
}

// Swap pays amountIn of in from trader into the pool, swaps, and pays the output to trader.
func (tx *Tx) Swap(poolID string, trader common.Address, in asset.AssetID, amountIn ledger.Quantity) (ledger.Quantity, error) {
	ctx, span := tx.pair.tracer.StartSpanFromContext(tx.ctx, "pool.swap")
	defer span.End()
	span.SetAttributes(
		attribute.String("pool.id", poolID),
		attribute.String("asset.in", in.String()),
		attribute.String("amount.in", amountIn.String()),
	)

	out, err := tx.swap(poolID, trader, in, amountIn)
	if err != nil {
		span.NoticeError(err)
		return ledger.Zero(), err
	}
	span.SetAttributes(attribute.String("amount.out", out.String()))

	tx.pair.log.Debug(ctx, "swap staged",
		"pool", poolID,
		"trader", trader.Hex(),
		"asset_in", in.String(),
		"amount_in", amountIn.String(),
		"amount_out", out.String(),
	)
	return out, nil
}

func (tx *Tx) swap(poolID string, trader common.Address, in asset.AssetID, amountIn ledger.Quantity) (ledger.Quantity, error) {
	pool, err := tx.pair.pool(poolID)
	if err != nil {
		return ledger.Zero(), err
	}
	outAsset, err := pool.Counterpart(in)
	if err != nil {
		return ledger.Zero(), err
	}
	if amountIn.IsZero() {
		return ledger.Zero(), apperror.New(apperror.CodeZeroInput)
	}

	if err := tx.Transfer(in, trader, pool.Address(), amountIn); err != nil {
		return ledger.Zero(), err
	}

	tx.snapshot(pool)
	out, err := pool.Swap(in, amountIn)
	if err != nil {
		return ledger.Zero(), err
	}
	tx.changes++

	if !out.IsZero() {
		if err := tx.Transfer(outAsset.ID(), pool.Address(), trader, out); err != nil {
			return ledger.Zero(), err
		}
	}

	tx.events = append(tx.events, counted{counter: tx.pair.metrics.swaps, poolID: poolID})
	return out, nil
}

// AddLiquidity moves both deposit amounts from provider to the pool and grows its reserves.
func (tx *Tx) AddLiquidity(poolID string, provider common.Address, amountA, amountB ledger.Quantity) error {
	pool, err := tx.pair.pool(poolID)
	if err != nil {
		return err
	}

	tx.snapshot(pool)
	if err := pool.AddLiquidity(amountA, amountB); err != nil {
		return err
	}
	tx.changes++
	if err := tx.Transfer(pool.AssetA().ID(), provider, pool.Address(), amountA); err != nil {
		return err
	}
	if err := tx.Transfer(pool.AssetB().ID(), provider, pool.Address(), amountB); err != nil {
		return err
	}

	tx.events = append(tx.events, counted{counter: tx.pair.metrics.deposits, poolID: poolID})
	tx.pair.log.Info(tx.ctx, "liquidity added",
		"pool", poolID,
		"provider", provider.Hex(),
		"amount_a", amountA.String(),
		"amount_b", amountB.String(),
	)
	return nil
}

// snapshot journals the pool's reserves the first time the Tx touches it.
func (tx *Tx) snapshot(pool *domain.Pool) {
	if tx.touched[pool.ID()] {
		return
	}
	tx.touched[pool.ID()] = true
	saved := pool.Reserves()
	tx.journal = append(tx.journal, undo{step: "restore " + pool.ID(), reverse: func() error {
		pool.Restore(saved)
		return nil
	}})
}

func (tx *Tx) record(step string, reverse func() error) {
	tx.journal = append(tx.journal, undo{step: step, reverse: reverse})
	tx.changes++
}

func (tx *Tx) rollback() error {
	var errs []error
	for i := len(tx.journal) - 1; i >= 0; i-- {
		if err := tx.journal[i].reverse(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tx.journal[i].step, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return apperror.New(apperror.CodeRollbackFailed, apperror.WithCause(errors.Join(errs...)))
}

func (tx *Tx) commit() {
	for _, ev := range tx.events {
		ev.counter.Add(tx.ctx, 1, metric.WithAttributes(attribute.String("pool.id", ev.poolID)))
	}
}
