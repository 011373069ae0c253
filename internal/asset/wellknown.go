package asset

import "github.com/ethereum/go-ethereum/common"

// ChainIDHardhat is the local development chain the pair is deployed on by default.
const ChainIDHardhat = 31337

// Default deployment addresses on the local chain.
var (
	AddrTokenA = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	AddrTokenB = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

var (
	IDTokenA = NewAssetID(ChainIDHardhat, AddrTokenA)
	IDTokenB = NewAssetID(ChainIDHardhat, AddrTokenB)

	TokenA = NewAsset(IDTokenA, "TKA", "Token A", 18)
	TokenB = NewAsset(IDTokenB, "TKB", "Token B", 18)
)

// DefaultRegistry returns a registry holding the default pair.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TokenA)
	r.Register(TokenB)
	return r
}
