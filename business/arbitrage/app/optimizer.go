package app

import (
	"context"
	"math/big"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	poolApp "github.com/fd1az/pair-arbitrage/business/pool/app"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

// defaultSearchSteps narrows any 256-bit range: each round keeps at most
// two thirds of it, and (3/2)^512 exceeds 2^256.
const defaultSearchSteps = 512

// OptimalAmount searches [lo, hi] for the input that maximizes profit and
// returns the quote for it. Round-trip PnL over two constant-product pools is
// concave in the input, so each direction is searched by ternary search on its
// signed PnL and the better of the two wins. All evaluations see the same reserves.
// A range the step budget cannot narrow to three candidates is rejected, and ctx
// is checked on every round since the search holds the pair's read lock.
func (e *Engine) OptimalAmount(ctx context.Context, lo, hi ledger.Quantity) (domain.Quote, error) {
	if lo.IsZero() {
		lo = ledger.New(1)
	}
	if hi.Lt(lo) {
		return domain.Quote{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContextf("search range [%s, %s] is empty", lo, hi))
	}

	ctx, span := e.tracer.StartSpanFromContext(ctx, "arbitrage.optimize")
	defer span.End()

	var best domain.Quote
	err := e.pair.Read(ctx, func(v *poolApp.View) error {
		var bestAmount ledger.Quantity
		var bestPnL *big.Int
		for _, d := range []domain.Direction{domain.AFirst, domain.BFirst} {
			amount, pnl, err := e.search(ctx, v, d, lo, hi)
			if err != nil {
				return err
			}
			if bestPnL == nil || pnl.Cmp(bestPnL) > 0 {
				bestAmount, bestPnL = amount, pnl
			}
		}

		var err error
		best, err = e.simulate(v, bestAmount)
		return err
	})
	if err != nil {
		span.NoticeError(err)
		return domain.Quote{}, err
	}
	e.metrics.calculations.Add(ctx, 1)
	return best, nil
}

func (e *Engine) search(ctx context.Context, v *poolApp.View, d domain.Direction, lo, hi ledger.Quantity) (ledger.Quantity, *big.Int, error) {
	pnl := func(x ledger.Quantity) (*big.Int, error) {
		r, err := e.simulateRoute(v, d, x)
		if err != nil {
			return nil, err
		}
		return r.PnL, nil
	}

	three := ledger.New(3)
	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return ledger.Zero(), nil, err
		}
		width, err := ledger.Sub(hi, lo)
		if err != nil {
			return ledger.Zero(), nil, err
		}
		if width.Lte(ledger.New(2)) {
			break
		}
		if step == e.steps {
			return ledger.Zero(), nil, apperror.New(apperror.CodeInvalidInput,
				apperror.WithContextf("search range still %s wide after %d steps", width, e.steps))
		}
		third, err := ledger.Div(width, three)
		if err != nil {
			return ledger.Zero(), nil, err
		}
		m1, err := ledger.Add(lo, third)
		if err != nil {
			return ledger.Zero(), nil, err
		}
		m2, err := ledger.Sub(hi, third)
		if err != nil {
			return ledger.Zero(), nil, err
		}

		p1, err := pnl(m1)
		if err != nil {
			return ledger.Zero(), nil, err
		}
		p2, err := pnl(m2)
		if err != nil {
			return ledger.Zero(), nil, err
		}
		if p1.Cmp(p2) < 0 {
			lo = m1
		} else {
			hi = m2
		}
	}

	// at most three candidates remain
	var bestAmount ledger.Quantity
	var bestPnL *big.Int
	for x := lo; x.Lte(hi); {
		p, err := pnl(x)
		if err != nil {
			return ledger.Zero(), nil, err
		}
		if bestPnL == nil || p.Cmp(bestPnL) > 0 {
			bestAmount, bestPnL = x, p
		}
		next, err := ledger.Add(x, ledger.New(1))
		if err != nil {
			break
		}
		x = next
	}
	return bestAmount, bestPnL, nil
}
