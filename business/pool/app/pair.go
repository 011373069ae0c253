package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/pair-arbitrage/business/pool/domain"
	"github.com/fd1az/pair-arbitrage/internal/apm"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
	"github.com/fd1az/pair-arbitrage/internal/logger"
)

// PoolState is a point-in-time copy of one pool.
type PoolState struct {
	ID       string
	Address  common.Address
	AssetA   *asset.Asset
	AssetB   *asset.Asset
	FeeBps   uint32
	Reserves domain.Reserves
}

// Spot is the reserve-implied price of asset A in asset B.
func (s PoolState) Spot(at time.Time) (asset.Price, error) {
	return asset.SpotPrice(s.AssetA, s.AssetB, s.Reserves.A, s.Reserves.B, at)
}

type pairMetrics struct {
	swaps     metric.Int64Counter
	deposits  metric.Int64Counter
	rollbacks metric.Int64Counter
}

// Pair owns two pools over the same assets behind one lock. Reads share the
// lock; every state change runs in a Tx holding it exclusively.
type Pair struct {
	mu     sync.RWMutex
	pools  map[string]*domain.Pool
	first  string
	second string

	tokens  TokenLedger
	log     logger.LoggerInterface
	tracer  apm.Tracer
	metrics pairMetrics
}

func NewPair(a, b *domain.Pool, tokens TokenLedger, log logger.LoggerInterface) (*Pair, error) {
	if a == nil || b == nil {
		return nil, apperror.Validation("pair needs two pools")
	}
	if a.ID() == b.ID() {
		return nil, apperror.Validation("pool ids must differ: " + a.ID())
	}
	if !b.Has(a.AssetA().ID()) || !b.Has(a.AssetB().ID()) {
		return nil, apperror.New(apperror.CodeAssetMismatch,
			apperror.WithContextf("%s trades %s/%s, %s trades %s/%s",
				a.ID(), a.AssetA(), a.AssetB(), b.ID(), b.AssetA(), b.AssetB()))
	}

	p := &Pair{
		pools:  map[string]*domain.Pool{a.ID(): a, b.ID(): b},
		first:  a.ID(),
		second: b.ID(),
		tokens: tokens,
		log:    log,
		tracer: apm.NewTracer("pool", attribute.String("pair", a.ID()+"/"+b.ID())),
	}
	if err := p.initMetrics(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pair) initMetrics() error {
	meter := otel.Meter("pool")
	var err error

	p.metrics.swaps, err = meter.Int64Counter(
		"pool_swaps_total",
		metric.WithDescription("Swaps committed per pool"),
		metric.WithUnit("{swap}"),
	)
	if err != nil {
		return err
	}

	p.metrics.deposits, err = meter.Int64Counter(
		"pool_deposits_total",
		metric.WithDescription("Liquidity deposits committed per pool"),
		metric.WithUnit("{deposit}"),
	)
	if err != nil {
		return err
	}

	p.metrics.rollbacks, err = meter.Int64Counter(
		"pool_rollbacks_total",
		metric.WithDescription("Transactions rolled back"),
		metric.WithUnit("{rollback}"),
	)
	return err
}

// PoolIDs returns the ids of the first and second pool.
func (p *Pair) PoolIDs() (string, string) {
	return p.first, p.second
}

// Assets returns the pair's assets in the first pool's order.
func (p *Pair) Assets() (*asset.Asset, *asset.Asset) {
	first := p.pools[p.first]
	return first.AssetA(), first.AssetB()
}

// Read runs fn under the shared lock.
func (p *Pair) Read(ctx context.Context, fn func(v *View) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fn(&View{pair: p})
}

// Write runs fn under the exclusive lock. If fn fails, every change it made
// is compensated in reverse order before Write returns.
func (p *Pair) Write(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tx := &Tx{View: View{pair: p}, ctx: ctx, touched: make(map[string]bool)}
	err := fn(tx)
	if err == nil {
		tx.commit()
		return nil
	}
	if tx.changes == 0 {
		// only snapshots were taken; restoring them is a no-op
		_ = tx.rollback()
		return err
	}

	p.metrics.rollbacks.Add(ctx, 1)
	if rbErr := tx.rollback(); rbErr != nil {
		p.log.Error(ctx, "rollback failed", "error", rbErr.Error(), "original_error", err.Error())
		return errors.Join(err, rbErr)
	}
	p.log.Warn(ctx, "transaction rolled back", "steps", len(tx.journal), "error", err.Error())
	return err
}

// Reserves reads one pool's reserves.
func (p *Pair) Reserves(ctx context.Context, poolID string) (domain.Reserves, error) {
	var r domain.Reserves
	err := p.Read(ctx, func(v *View) error {
		var err error
		r, err = v.Reserves(poolID)
		return err
	})
	return r, err
}

// State copies both pools, first pool first.
func (p *Pair) State(ctx context.Context) ([]PoolState, error) {
	var states []PoolState
	err := p.Read(ctx, func(v *View) error {
		states = v.States()
		return nil
	})
	return states, err
}

// AddLiquidity deposits amountA and amountB from provider into poolID.
func (p *Pair) AddLiquidity(ctx context.Context, poolID string, provider common.Address, amountA, amountB ledger.Quantity) error {
	return p.Write(ctx, func(tx *Tx) error {
		return tx.AddLiquidity(poolID, provider, amountA, amountB)
	})
}

// Swap pays amountIn of in from trader into poolID and sends the output back to trader.
func (p *Pair) Swap(ctx context.Context, poolID string, trader common.Address, in asset.AssetID, amountIn ledger.Quantity) (ledger.Quantity, error) {
	var out ledger.Quantity
	err := p.Write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Swap(poolID, trader, in, amountIn)
		return err
	})
	return out, err
}

// Restore sets the reserves of every pool named in reserves, or none of them.
func (p *Pair) Restore(ctx context.Context, reserves map[string]domain.Reserves) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, r := range reserves {
		if _, err := p.pool(id); err != nil {
			return err
		}
		if r.A.IsZero() != r.B.IsZero() {
			return apperror.New(apperror.CodeInvalidState,
				apperror.WithContextf("pool %s reserves %s:%s are one-sided", id, r.A, r.B))
		}
	}
	for id, r := range reserves {
		p.pools[id].Restore(r)
	}
	return nil
}

// Healthy reports whether both pools hold liquidity.
func (p *Pair) Healthy(ctx context.Context) (bool, string) {
	states, err := p.State(ctx)
	if err != nil {
		return false, err.Error()
	}
	for _, s := range states {
		if s.Reserves.A.IsZero() || s.Reserves.B.IsZero() {
			return false, fmt.Sprintf("pool %s has no liquidity", s.ID)
		}
	}
	return true, "both pools liquid"
}

func (p *Pair) pool(id string) (*domain.Pool, error) {
	pool, ok := p.pools[id]
	if !ok {
		return nil, apperror.New(apperror.CodePoolNotFound, apperror.WithContext(id))
	}
	return pool, nil
}

// View reads pool and token state. Valid only inside Read or Write.
type View struct {
	pair *Pair
}

func (v *View) Reserves(poolID string) (domain.Reserves, error) {
	pool, err := v.pair.pool(poolID)
	if err != nil {
		return domain.Reserves{}, err
	}
	return pool.Reserves(), nil
}

// Quote prices a swap on poolID without changing it.
func (v *View) Quote(poolID string, in asset.AssetID, amountIn ledger.Quantity) (ledger.Quantity, error) {
	pool, err := v.pair.pool(poolID)
	if err != nil {
		return ledger.Zero(), err
	}
	return pool.Quote(in, amountIn)
}

func (v *View) BalanceOf(token asset.AssetID, owner common.Address) ledger.Quantity {
	return v.pair.tokens.BalanceOf(token, owner)
}

func (v *View) States() []PoolState {
	states := make([]PoolState, 0, 2)
	for _, id := range []string{v.pair.first, v.pair.second} {
		pool := v.pair.pools[id]
		states = append(states, PoolState{
			ID:       pool.ID(),
			Address:  pool.Address(),
			AssetA:   pool.AssetA(),
			AssetB:   pool.AssetB(),
			FeeBps:   pool.FeeBps(),
			Reserves: pool.Reserves(),
		})
	}
	return states
}
