// Package app serialises access to the two pools of a pair and moves tokens alongside reserves.
package app

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

// TokenLedger is the balance book pools and traders settle against.
type TokenLedger interface {
	BalanceOf(token asset.AssetID, owner common.Address) ledger.Quantity
	Transfer(token asset.AssetID, from, to common.Address, amount ledger.Quantity) error
	TransferFrom(token asset.AssetID, spender, from, to common.Address, amount ledger.Quantity) error
	Allowance(token asset.AssetID, owner, spender common.Address) ledger.Quantity
	Approve(token asset.AssetID, owner, spender common.Address, amount ledger.Quantity) error
}
