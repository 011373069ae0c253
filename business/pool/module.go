// Package pool implements the liquidity pool context: two constant-product pools behind one pair lock.
package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/pair-arbitrage/business/pool/app"
	poolDI "github.com/fd1az/pair-arbitrage/business/pool/di"
	"github.com/fd1az/pair-arbitrage/business/pool/domain"
	"github.com/fd1az/pair-arbitrage/business/token"
	tokenDI "github.com/fd1az/pair-arbitrage/business/token/di"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/chainstate"
	"github.com/fd1az/pair-arbitrage/internal/config"
	"github.com/fd1az/pair-arbitrage/internal/di"
	"github.com/fd1az/pair-arbitrage/internal/logger"
	"github.com/fd1az/pair-arbitrage/internal/monolith"
)

// Module implements the pool bounded context.
type Module struct{}

func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, poolDI.Seeds, func(sr di.ServiceRegistry) []app.Seed {
		cfg := sr.Get("config").(*config.Config)
		seeds, err := SeedsFromConfig(cfg)
		if err != nil {
			panic("invalid pool seeds: " + err.Error())
		}
		return seeds
	})

	di.RegisterToken(c, poolDI.Pair, func(sr di.ServiceRegistry) *app.Pair {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		pair, err := NewPairFromConfig(cfg, registry, tokenDI.GetLedger(sr), log)
		if err != nil {
			panic("failed to create pool pair: " + err.Error())
		}
		return pair
	})

	return nil
}

// Startup restores checkpointed reserves, or seeds both pools from the deployer,
// then registers the liquidity health check.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	pair := poolDI.GetPair(mono.Services())

	restored, err := restoreReserves(ctx, mono, pair)
	if err != nil {
		return err
	}
	if !restored {
		if err := seed(ctx, mono, pair); err != nil {
			return err
		}
	}

	mono.Health().RegisterCheck("pools", pair.Healthy)

	first, second := pair.PoolIDs()
	mono.Logger().Info(ctx, "pool module started", "pool_a", first, "pool_b", second)
	return nil
}

func restoreReserves(ctx context.Context, mono monolith.Monolith, pair *app.Pair) (bool, error) {
	store := tokenDI.GetState(mono.Services())
	if store == nil {
		return false, nil
	}
	snap, found, err := store.Load(ctx)
	if err != nil || !found {
		return false, err
	}

	reserves := make(map[string]domain.Reserves, len(snap.Reserves))
	for id, r := range snap.ReservesByPool() {
		reserves[id] = domain.Reserves{A: r.A, B: r.B}
	}
	if err := pair.Restore(ctx, reserves); err != nil {
		return false, err
	}
	mono.Logger().Info(ctx, "pool reserves restored", "saved_at", snap.SavedAt)
	return true, nil
}

func seed(ctx context.Context, mono monolith.Monolith, pair *app.Pair) error {
	assetA, assetB := pair.Assets()
	deposits, err := app.ScaleSeeds(assetA, assetB, poolDI.GetSeeds(mono.Services()), decimal.NewFromInt(1))
	if err != nil {
		return err
	}
	return pair.Fund(ctx, mono.Config().Chain.DeployerAddress(), deposits)
}

// Checkpoint saves the ledger and both pools' reserves as one snapshot.
// It is a no-op when persistence is off.
func Checkpoint(ctx context.Context, sr di.ServiceRegistry) error {
	store := tokenDI.GetState(sr)
	if store == nil {
		return nil
	}

	var snap chainstate.Snapshot
	err := poolDI.GetPair(sr).Read(ctx, func(v *app.View) error {
		token.SnapshotBook(tokenDI.GetLedger(sr).Book(), &snap)
		for _, s := range v.States() {
			snap.Reserves = append(snap.Reserves, chainstate.Reserves{PoolID: s.ID, A: s.Reserves.A, B: s.Reserves.B})
		}
		return nil
	})
	if err != nil {
		return err
	}
	snap.Sort()
	return store.Save(ctx, snap)
}

// SeedsFromConfig reads each pool's reference liquidity.
func SeedsFromConfig(cfg *config.Config) ([]app.Seed, error) {
	seeds := make([]app.Seed, 0, 2)
	for _, pc := range []config.PoolConfig{cfg.Pools.A, cfg.Pools.B} {
		a, err := decimal.NewFromString(pc.SeedA)
		if err != nil {
			return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContextf("pool %s seed_a %q", pc.ID, pc.SeedA))
		}
		b, err := decimal.NewFromString(pc.SeedB)
		if err != nil {
			return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContextf("pool %s seed_b %q", pc.ID, pc.SeedB))
		}
		seeds = append(seeds, app.Seed{PoolID: pc.ID, A: a, B: b})
	}
	return seeds, nil
}

// NewPairFromConfig builds both pools over tokens.a/tokens.b.
func NewPairFromConfig(cfg *config.Config, registry *asset.Registry, tokens app.TokenLedger, log logger.LoggerInterface) (*app.Pair, error) {
	assetA, ok := registry.Get(asset.NewAssetID(cfg.Chain.ChainID, common.HexToAddress(cfg.Tokens.A.Address)))
	if !ok {
		return nil, apperror.New(apperror.CodeUnknownAsset, apperror.WithContext(cfg.Tokens.A.Address))
	}
	assetB, ok := registry.Get(asset.NewAssetID(cfg.Chain.ChainID, common.HexToAddress(cfg.Tokens.B.Address)))
	if !ok {
		return nil, apperror.New(apperror.CodeUnknownAsset, apperror.WithContext(cfg.Tokens.B.Address))
	}

	pools := make([]*domain.Pool, 0, 2)
	for _, pc := range []config.PoolConfig{cfg.Pools.A, cfg.Pools.B} {
		p, err := domain.New(pc.ID, common.HexToAddress(pc.Address), assetA, assetB, pc.FeeBps,
			domain.WithRatioTolerance(pc.RatioToleranceBps))
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return app.NewPair(pools[0], pools[1], tokens, log)
}
