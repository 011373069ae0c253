// Package asset models the tokens traded by the pools.
// Quantities in the core are ledger.Quantity in smallest units;
// decimal.Decimal only appears at boundaries (CLI input, display).
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID identifies a token by chain and contract address.
// The symbol is display metadata, never identity.
type AssetID struct {
	chainID uint64
	address common.Address
}

// NewAssetID creates an AssetID. The zero address is reserved and rejected.
func NewAssetID(chainID uint64, addr common.Address) AssetID {
	if addr == (common.Address{}) {
		panic("asset: token address cannot be zero")
	}
	return AssetID{chainID: chainID, address: addr}
}

// ParseAssetID builds an AssetID from a hex address string.
func ParseAssetID(chainID uint64, hex string) (AssetID, error) {
	if !common.IsHexAddress(hex) {
		return AssetID{}, fmt.Errorf("asset: invalid address %q", hex)
	}
	addr := common.HexToAddress(hex)
	if addr == (common.Address{}) {
		return AssetID{}, fmt.Errorf("asset: zero address")
	}
	return AssetID{chainID: chainID, address: addr}, nil
}

// ChainID returns the chain the token lives on.
func (id AssetID) ChainID() uint64 {
	return id.chainID
}

// Address returns the token contract address.
func (id AssetID) Address() common.Address {
	return id.address
}

// IsZero reports whether the id is unset.
func (id AssetID) IsZero() bool {
	return id == AssetID{}
}

func (id AssetID) String() string {
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}
