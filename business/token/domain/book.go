package domain

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

type Balance struct {
	Token  asset.AssetID
	Owner  common.Address
	Amount ledger.Quantity
}

type Allowance struct {
	Token   asset.AssetID
	Owner   common.Address
	Spender common.Address
	Amount  ledger.Quantity
}

// Book is a copy of the whole ledger.
type Book struct {
	Supply     map[asset.AssetID]ledger.Quantity
	Balances   []Balance
	Allowances []Allowance
}

// Book copies every supply, non-zero balance and allowance.
func (l *Ledger) Book() Book {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b := Book{Supply: make(map[asset.AssetID]ledger.Quantity, len(l.supply))}
	for token, amount := range l.supply {
		b.Supply[token] = amount
	}
	for h, amount := range l.balances {
		if amount.IsZero() {
			continue
		}
		b.Balances = append(b.Balances, Balance{Token: h.token, Owner: h.owner, Amount: amount})
	}
	for g, amount := range l.allowances {
		b.Allowances = append(b.Allowances, Allowance{Token: g.token, Owner: g.owner, Spender: g.spender, Amount: amount})
	}
	return b
}

// Load replaces the ledger's contents with b. Every token's balances must add up to its supply.
func (l *Ledger) Load(b Book) error {
	held := make(map[asset.AssetID]ledger.Quantity, len(b.Supply))
	balances := make(map[holding]ledger.Quantity, len(b.Balances))
	for _, bal := range b.Balances {
		if _, ok := b.Supply[bal.Token]; !ok {
			return apperror.New(apperror.CodeInvalidState,
				apperror.WithContextf("balance of %s on %s has no supply", bal.Owner.Hex(), bal.Token))
		}
		sum, err := ledger.Add(held[bal.Token], bal.Amount)
		if err != nil {
			return err
		}
		held[bal.Token] = sum
		key := holding{bal.Token, bal.Owner}
		if balances[key], err = ledger.Add(balances[key], bal.Amount); err != nil {
			return err
		}
	}
	for token, supply := range b.Supply {
		if held[token].Cmp(supply) != 0 {
			return apperror.New(apperror.CodeInvalidState,
				apperror.WithContextf("balances on %s add up to %s, supply is %s", token, held[token], supply))
		}
	}

	allowances := make(map[grant]ledger.Quantity, len(b.Allowances))
	for _, a := range b.Allowances {
		if a.Amount.IsZero() {
			continue
		}
		allowances[grant{a.Token, a.Owner, a.Spender}] = a.Amount
	}
	supply := make(map[asset.AssetID]ledger.Quantity, len(b.Supply))
	for token, amount := range b.Supply {
		supply[token] = amount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.supply = supply
	l.balances = balances
	l.allowances = allowances
	return nil
}
