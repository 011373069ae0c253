package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

// Deposit is one pool's share of a funding round.
type Deposit struct {
	PoolID  string
	AmountA ledger.Quantity
	AmountB ledger.Quantity
}

// Seed is a pool's reference liquidity in whole tokens.
type Seed struct {
	PoolID string
	A      decimal.Decimal
	B      decimal.Decimal
}

// ScaleSeeds multiplies every seed by multiplier, keeping each pool's ratio.
func ScaleSeeds(assetA, assetB *asset.Asset, seeds []Seed, multiplier decimal.Decimal) ([]Deposit, error) {
	if !multiplier.IsPositive() {
		return nil, apperror.Validation("multiplier must be positive, got " + multiplier.String())
	}

	deposits := make([]Deposit, 0, len(seeds))
	for _, s := range seeds {
		a, err := asset.ParseDecimal(assetA, s.A.Mul(multiplier))
		if err != nil {
			return nil, err
		}
		b, err := asset.ParseDecimal(assetB, s.B.Mul(multiplier))
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, Deposit{PoolID: s.PoolID, AmountA: a.Raw(), AmountB: b.Raw()})
	}
	return deposits, nil
}

// Fund applies every deposit from provider in one transaction: all pools are funded or none.
func (p *Pair) Fund(ctx context.Context, provider common.Address, deposits []Deposit) error {
	return p.Write(ctx, func(tx *Tx) error {
		for _, d := range deposits {
			if err := tx.AddLiquidity(d.PoolID, provider, d.AmountA, d.AmountB); err != nil {
				return err
			}
		}
		return nil
	})
}
