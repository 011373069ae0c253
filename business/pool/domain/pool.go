// Package domain contains the constant-product liquidity pool.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

// Reserves are a pool's holdings of its two assets.
type Reserves struct {
	A ledger.Quantity
	B ledger.Quantity
}

// IsEmpty reports whether no liquidity has been added.
func (r Reserves) IsEmpty() bool {
	return r.A.IsZero() && r.B.IsZero()
}

// Invariant returns reserveA * reserveB.
func (r Reserves) Invariant() *big.Int {
	return ledger.Product(r.A, r.B)
}

// Pool holds reserves of two assets and trades between them at x*y=k.
// A Pool is not safe for concurrent use; the pair that owns it serialises access.
type Pool struct {
	id           string
	address      common.Address
	assetA       *asset.Asset
	assetB       *asset.Asset
	reserves     Reserves
	feeBps       uint32
	toleranceBps uint32
}

type Option func(*Pool)

// WithRatioTolerance lets AddLiquidity accept deposits whose ratio deviates
// from the reserve ratio by at most bps basis points.
func WithRatioTolerance(bps uint32) Option {
	return func(p *Pool) {
		p.toleranceBps = bps
	}
}

// New creates an empty pool. feeBps is fixed for the pool's lifetime.
func New(id string, address common.Address, a, b *asset.Asset, feeBps uint32, opts ...Option) (*Pool, error) {
	if id == "" {
		return nil, apperror.Validation("pool id is empty")
	}
	if a == nil || b == nil || a.Equals(b) {
		return nil, apperror.New(apperror.CodeAssetMismatch, apperror.WithContextf("pool %s needs two distinct assets", id))
	}
	if feeBps >= ledger.BpsDenominator {
		return nil, apperror.Validation("fee must be below 10000 bps")
	}

	p := &Pool{
		id:      id,
		address: address,
		assetA:  a,
		assetB:  b,
		feeBps:  feeBps,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.toleranceBps > ledger.BpsDenominator {
		return nil, apperror.Validation("ratio tolerance must be at most 10000 bps")
	}
	return p, nil
}

func (p *Pool) ID() string              { return p.id }
func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) AssetA() *asset.Asset    { return p.assetA }
func (p *Pool) AssetB() *asset.Asset    { return p.assetB }
func (p *Pool) FeeBps() uint32          { return p.feeBps }
func (p *Pool) Reserves() Reserves      { return p.reserves }

// Has reports whether id is one of the pool's assets.
func (p *Pool) Has(id asset.AssetID) bool {
	return p.assetA.ID() == id || p.assetB.ID() == id
}

// Counterpart returns the asset received when paying in id.
func (p *Pool) Counterpart(id asset.AssetID) (*asset.Asset, error) {
	switch id {
	case p.assetA.ID():
		return p.assetB, nil
	case p.assetB.ID():
		return p.assetA, nil
	default:
		return nil, p.mismatch(id)
	}
}

// GetAmountOut prices a swap with the fee taken from the input:
//
//	afterFee = floor(amountIn * (10000 - feeBps) / 10000)
//	out      = floor(reserveOut * afterFee / (reserveIn + afterFee))
//
// Both roundings go down, in the pool's favour.
func GetAmountOut(amountIn, reserveIn, reserveOut ledger.Quantity, feeBps uint32) (ledger.Quantity, error) {
	if amountIn.IsZero() {
		return ledger.Zero(), apperror.New(apperror.CodeZeroInput)
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return ledger.Zero(), apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContextf("reserves %s/%s", reserveIn, reserveOut))
	}

	afterFee, err := ledger.ApplyBps(amountIn, feeBps)
	if err != nil {
		return ledger.Zero(), err
	}
	denominator, err := ledger.Add(reserveIn, afterFee)
	if err != nil {
		return ledger.Zero(), err
	}
	return ledger.MulDiv(reserveOut, afterFee, denominator)
}

// Quote prices paying amountIn of in against the current reserves.
func (p *Pool) Quote(in asset.AssetID, amountIn ledger.Quantity) (ledger.Quantity, error) {
	reserveIn, reserveOut, err := p.sides(in)
	if err != nil {
		return ledger.Zero(), err
	}
	return GetAmountOut(amountIn, reserveIn, reserveOut, p.feeBps)
}

// Swap trades amountIn of in for the other asset and returns the amount paid out.
// Nothing changes unless the swap succeeds.
func (p *Pool) Swap(in asset.AssetID, amountIn ledger.Quantity) (ledger.Quantity, error) {
	reserveIn, reserveOut, err := p.sides(in)
	if err != nil {
		return ledger.Zero(), err
	}

	out, err := GetAmountOut(amountIn, reserveIn, reserveOut, p.feeBps)
	if err != nil {
		return ledger.Zero(), err
	}
	if out.Gte(reserveOut) {
		return ledger.Zero(), apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContextf("pool %s cannot pay %s from %s", p.id, out, reserveOut))
	}

	newIn, err := ledger.Add(reserveIn, amountIn)
	if err != nil {
		return ledger.Zero(), err
	}
	newOut, err := ledger.Sub(reserveOut, out)
	if err != nil {
		return ledger.Zero(), err
	}
	if ledger.Product(newIn, newOut).Cmp(ledger.Product(reserveIn, reserveOut)) < 0 {
		return ledger.Zero(), apperror.New(apperror.CodeInvariantViolated,
			apperror.WithContextf("pool %s swap of %s", p.id, amountIn))
	}

	if in == p.assetA.ID() {
		p.reserves = Reserves{A: newIn, B: newOut}
	} else {
		p.reserves = Reserves{A: newOut, B: newIn}
	}
	return out, nil
}

// AddLiquidity deposits both assets. An empty pool takes any ratio; otherwise
// amountA:amountB must match reserveA:reserveB within the pool's tolerance.
func (p *Pool) AddLiquidity(amountA, amountB ledger.Quantity) error {
	if amountA.IsZero() || amountB.IsZero() {
		return apperror.New(apperror.CodeZeroInput, apperror.WithContext("both deposit amounts must be non-zero"))
	}

	newA, err := ledger.Add(p.reserves.A, amountA)
	if err != nil {
		return err
	}
	newB, err := ledger.Add(p.reserves.B, amountB)
	if err != nil {
		return err
	}

	if !p.reserves.IsEmpty() && !p.ratioMatches(amountA, amountB) {
		return apperror.New(apperror.CodeRatioMismatch,
			apperror.WithContextf("pool %s holds %s:%s, deposit %s:%s",
				p.id, p.reserves.A, p.reserves.B, amountA, amountB))
	}

	p.reserves = Reserves{A: newA, B: newB}
	return nil
}

// Restore overwrites the reserves. Used to roll back a failed multi-step operation.
func (p *Pool) Restore(r Reserves) {
	p.reserves = r
}

// SpotPrice is the reserve-implied price of asset A in asset B.
func (p *Pool) SpotPrice(at time.Time) (asset.Price, error) {
	return asset.SpotPrice(p.assetA, p.assetB, p.reserves.A, p.reserves.B, at)
}

// ratioMatches compares amountA*reserveB with amountB*reserveA.
func (p *Pool) ratioMatches(amountA, amountB ledger.Quantity) bool {
	lhs := ledger.Product(amountA, p.reserves.B)
	rhs := ledger.Product(amountB, p.reserves.A)

	diff := new(big.Int).Sub(lhs, rhs)
	if diff.Sign() == 0 {
		return true
	}
	if p.toleranceBps == 0 || rhs.Sign() == 0 {
		return false
	}

	// |lhs - rhs| * 10000 <= tolerance * rhs
	diff.Abs(diff).Mul(diff, big.NewInt(ledger.BpsDenominator))
	limit := new(big.Int).Mul(rhs, big.NewInt(int64(p.toleranceBps)))
	return diff.Cmp(limit) <= 0
}

func (p *Pool) sides(in asset.AssetID) (reserveIn, reserveOut ledger.Quantity, err error) {
	switch in {
	case p.assetA.ID():
		return p.reserves.A, p.reserves.B, nil
	case p.assetB.ID():
		return p.reserves.B, p.reserves.A, nil
	default:
		return ledger.Zero(), ledger.Zero(), p.mismatch(in)
	}
}

func (p *Pool) mismatch(id asset.AssetID) error {
	return apperror.New(apperror.CodeAssetMismatch,
		apperror.WithContextf("pool %s does not trade %s", p.id, id))
}
