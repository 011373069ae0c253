// Package app contains the token service used by the CLI and bootstrap.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/pair-arbitrage/business/token/domain"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/logger"
)

// Account is a labelled address shown in balance listings.
type Account struct {
	Label   string
	Address common.Address
}

// Holding is an account's balance in every registered token.
type Holding struct {
	Account
	Balances []asset.Amount
}

// Service works in display amounts on top of the raw ledger.
type Service struct {
	ledger   *domain.Ledger
	registry *asset.Registry
	log      logger.LoggerInterface
}

func NewService(l *domain.Ledger, registry *asset.Registry, log logger.LoggerInterface) *Service {
	return &Service{ledger: l, registry: registry, log: log}
}

func (s *Service) Ledger() *domain.Ledger {
	return s.ledger
}

func (s *Service) Mint(ctx context.Context, to common.Address, amount asset.Amount) error {
	if err := s.known(amount.Asset()); err != nil {
		return err
	}
	if err := s.ledger.Mint(amount.Asset().ID(), to, amount.Raw()); err != nil {
		return err
	}
	s.log.Info(ctx, "tokens minted", "token", amount.Asset().Symbol(), "to", to.Hex(), "amount", amount.String())
	return nil
}

func (s *Service) Transfer(ctx context.Context, from, to common.Address, amount asset.Amount) error {
	if err := s.known(amount.Asset()); err != nil {
		return err
	}
	if err := s.ledger.Transfer(amount.Asset().ID(), from, to, amount.Raw()); err != nil {
		return err
	}
	s.log.Info(ctx, "tokens transferred",
		"token", amount.Asset().Symbol(),
		"from", from.Hex(),
		"to", to.Hex(),
		"amount", amount.String(),
	)
	return nil
}

func (s *Service) Approve(ctx context.Context, owner, spender common.Address, amount asset.Amount) error {
	if err := s.known(amount.Asset()); err != nil {
		return err
	}
	if err := s.ledger.Approve(amount.Asset().ID(), owner, spender, amount.Raw()); err != nil {
		return err
	}
	s.log.Debug(ctx, "allowance set",
		"token", amount.Asset().Symbol(),
		"owner", owner.Hex(),
		"spender", spender.Hex(),
		"amount", amount.String(),
	)
	return nil
}

func (s *Service) Balance(owner common.Address, a *asset.Asset) asset.Amount {
	return asset.NewAmount(a, s.ledger.BalanceOf(a.ID(), owner))
}

// Holdings lists balances of every registered token for each account, in the order given.
func (s *Service) Holdings(accounts ...Account) []Holding {
	tokens := s.registry.All()
	result := make([]Holding, 0, len(accounts))
	for _, acc := range accounts {
		h := Holding{Account: acc, Balances: make([]asset.Amount, 0, len(tokens))}
		for _, tok := range tokens {
			h.Balances = append(h.Balances, s.Balance(acc.Address, tok))
		}
		result = append(result, h)
	}
	return result
}

func (s *Service) known(a *asset.Asset) error {
	if a == nil {
		return apperror.New(apperror.CodeUnknownAsset, apperror.WithContext("nil asset"))
	}
	if _, ok := s.registry.Get(a.ID()); !ok {
		return apperror.New(apperror.CodeUnknownAsset, apperror.WithContext(a.ID().String()))
	}
	return nil
}
