// Package token implements the token balance context: minting, transfers and allowances.
package token

import (
	"context"

	"github.com/fd1az/pair-arbitrage/business/token/app"
	"github.com/fd1az/pair-arbitrage/business/token/domain"
	tokenDI "github.com/fd1az/pair-arbitrage/business/token/di"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/chainstate"
	"github.com/fd1az/pair-arbitrage/internal/config"
	"github.com/fd1az/pair-arbitrage/internal/di"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
	"github.com/fd1az/pair-arbitrage/internal/logger"
	"github.com/fd1az/pair-arbitrage/internal/monolith"
)

// Module implements the token bounded context.
type Module struct{}

func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, tokenDI.Ledger, func(di.ServiceRegistry) *domain.Ledger {
		return domain.NewLedger()
	})

	di.RegisterToken(c, tokenDI.State, func(sr di.ServiceRegistry) *chainstate.Store {
		cfg := sr.Get("config").(*config.Config)
		if !cfg.Chain.Persist {
			return nil
		}
		store, err := chainstate.Open(cfg.Arbitrage.HistoryPath)
		if err != nil {
			panic("failed to open chain state: " + err.Error())
		}
		return store
	})

	di.RegisterToken(c, tokenDI.Service, func(sr di.ServiceRegistry) *app.Service {
		registry := sr.Get("assetRegistry").(*asset.Registry)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewService(tokenDI.GetLedger(sr), registry, log)
	})

	return nil
}

// Startup restores the last checkpointed ledger, or mints each token's
// configured supply to the deployer when there is none.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	svc := tokenDI.GetService(mono.Services())
	deployer := cfg.Chain.DeployerAddress()

	if store := tokenDI.GetState(mono.Services()); store != nil {
		snap, found, err := store.Load(ctx)
		if err != nil {
			return err
		}
		if found {
			if err := tokenDI.GetLedger(mono.Services()).Load(BookFromSnapshot(cfg.Chain.ChainID, snap)); err != nil {
				return err
			}
			mono.Logger().Info(ctx, "token module restored", "saved_at", snap.SavedAt, "balances", len(snap.Balances))
			return nil
		}
	}

	for _, tc := range []struct{ symbol, supply string }{
		{cfg.Tokens.A.Symbol, cfg.Tokens.A.Supply},
		{cfg.Tokens.B.Symbol, cfg.Tokens.B.Supply},
	} {
		tok, _ := mono.AssetRegistry().BySymbol(tc.symbol)
		supply, err := asset.ParseString(tok, tc.supply)
		if err != nil {
			return err
		}
		if err := svc.Mint(ctx, deployer, supply); err != nil {
			return err
		}
	}

	mono.Logger().Info(ctx, "token module started", "deployer", deployer.Hex())
	return nil
}

// BookFromSnapshot rebuilds a ledger book from a checkpoint taken on chainID.
func BookFromSnapshot(chainID uint64, snap chainstate.Snapshot) domain.Book {
	b := domain.Book{Supply: make(map[asset.AssetID]ledger.Quantity, len(snap.Supply))}
	for _, s := range snap.Supply {
		b.Supply[asset.NewAssetID(chainID, s.Token)] = s.Amount
	}
	for _, bal := range snap.Balances {
		b.Balances = append(b.Balances, domain.Balance{
			Token:  asset.NewAssetID(chainID, bal.Token),
			Owner:  bal.Owner,
			Amount: bal.Amount,
		})
	}
	for _, a := range snap.Allowances {
		b.Allowances = append(b.Allowances, domain.Allowance{
			Token:   asset.NewAssetID(chainID, a.Token),
			Owner:   a.Owner,
			Spender: a.Spender,
			Amount:  a.Amount,
		})
	}
	return b
}

// SnapshotBook copies b into the ledger sections of snap.
func SnapshotBook(b domain.Book, snap *chainstate.Snapshot) {
	for token, amount := range b.Supply {
		snap.Supply = append(snap.Supply, chainstate.Supply{Token: token.Address(), Amount: amount})
	}
	for _, bal := range b.Balances {
		snap.Balances = append(snap.Balances, chainstate.Balance{
			Token:  bal.Token.Address(),
			Owner:  bal.Owner,
			Amount: bal.Amount,
		})
	}
	for _, a := range b.Allowances {
		snap.Allowances = append(snap.Allowances, chainstate.Allowance{
			Token:   a.Token.Address(),
			Owner:   a.Owner,
			Spender: a.Spender,
			Amount:  a.Amount,
		})
	}
}
