// Package domain contains the token balance book for the pair.
package domain

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

type holding struct {
	token asset.AssetID
	owner common.Address
}

type grant struct {
	token   asset.AssetID
	owner   common.Address
	spender common.Address
}

// Ledger is an ERC20-style book of balances and allowances for any number of tokens.
// It is safe for concurrent use.
type Ledger struct {
	mu         sync.RWMutex
	balances   map[holding]ledger.Quantity
	allowances map[grant]ledger.Quantity
	supply     map[asset.AssetID]ledger.Quantity
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[holding]ledger.Quantity),
		allowances: make(map[grant]ledger.Quantity),
		supply:     make(map[asset.AssetID]ledger.Quantity),
	}
}

// Mint creates amount of token and credits it to to.
func (l *Ledger) Mint(token asset.AssetID, to common.Address, amount ledger.Quantity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	supply, err := ledger.Add(l.supply[token], amount)
	if err != nil {
		return err
	}
	balance, err := ledger.Add(l.balances[holding{token, to}], amount)
	if err != nil {
		return err
	}

	l.supply[token] = supply
	l.balances[holding{token, to}] = balance
	return nil
}

func (l *Ledger) BalanceOf(token asset.AssetID, owner common.Address) ledger.Quantity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[holding{token, owner}]
}

func (l *Ledger) TotalSupply(token asset.AssetID) ledger.Quantity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply[token]
}

// Transfer moves amount of token from one account to another.
func (l *Ledger) Transfer(token asset.AssetID, from, to common.Address, amount ledger.Quantity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(token, from, to, amount)
}

// Approve sets the amount spender may move out of owner's balance, replacing any previous grant.
func (l *Ledger) Approve(token asset.AssetID, owner, spender common.Address, amount ledger.Quantity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := grant{token, owner, spender}
	if amount.IsZero() {
		delete(l.allowances, key)
		return nil
	}
	l.allowances[key] = amount
	return nil
}

func (l *Ledger) Allowance(token asset.AssetID, owner, spender common.Address) ledger.Quantity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[grant{token, owner, spender}]
}

// TransferFrom moves amount from from to to on behalf of spender, consuming allowance.
func (l *Ledger) TransferFrom(token asset.AssetID, spender, from, to common.Address, amount ledger.Quantity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := grant{token, from, spender}
	remaining, err := ledger.Sub(l.allowances[key], amount)
	if err != nil {
		return apperror.New(apperror.CodeInsufficientFunds,
			apperror.WithContextf("allowance of %s for %s on %s is %s, need %s",
				from.Hex(), spender.Hex(), token, l.allowances[key], amount))
	}
	if err := l.move(token, from, to, amount); err != nil {
		return err
	}

	if remaining.IsZero() {
		delete(l.allowances, key)
	} else {
		l.allowances[key] = remaining
	}
	return nil
}

// move requires l.mu held for writing.
func (l *Ledger) move(token asset.AssetID, from, to common.Address, amount ledger.Quantity) error {
	src := holding{token, from}
	dst := holding{token, to}

	debited, err := ledger.Sub(l.balances[src], amount)
	if err != nil {
		return apperror.New(apperror.CodeInsufficientFunds,
			apperror.WithContextf("balance of %s on %s is %s, need %s",
				from.Hex(), token, l.balances[src], amount))
	}
	if from == to {
		return nil
	}
	credited, err := ledger.Add(l.balances[dst], amount)
	if err != nil {
		return err
	}

	l.balances[src] = debited
	l.balances[dst] = credited
	return nil
}
