package asset

// Asset is token metadata keyed by AssetID.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
}

// NewAsset creates token metadata. Panics on an empty symbol or more than 36 decimals.
func NewAsset(id AssetID, symbol, name string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 36 {
		panic("asset: suspicious decimals (>36)")
	}
	if name == "" {
		name = symbol
	}
	return &Asset{id: id, symbol: symbol, name: name, decimals: decimals}
}

func (a *Asset) ID() AssetID { return a.id }
func (a *Asset) Symbol() string { return a.symbol }
func (a *Asset) Name() string { return a.name }
func (a *Asset) Decimals() uint8 { return a.decimals }
func (a *Asset) String() string { return a.symbol }
func (a *Asset) ChainID() uint64 { return a.id.ChainID() }

// Equals compares by identity.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id == other.id
}
