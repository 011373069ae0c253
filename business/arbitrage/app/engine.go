package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	poolApp "github.com/fd1az/pair-arbitrage/business/pool/app"
	poolDomain "github.com/fd1az/pair-arbitrage/business/pool/domain"
	"github.com/fd1az/pair-arbitrage/internal/apm"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/cache"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
	"github.com/fd1az/pair-arbitrage/internal/logger"
)

// EngineConfig binds an engine to its custody account and input asset.
type EngineConfig struct {
	// Account holds custody of the input while a trade is staged.
	Account common.Address
	// InputAsset is the asset traded in and paid back out.
	InputAsset     asset.AssetID
	QuoteCacheSize int
	// SearchSteps caps the ternary rounds per direction in OptimalAmount; wider ranges are rejected.
	SearchSteps int
}

type EngineOption func(*Engine)

// WithReceiptSinks sends every execution receipt to sinks.
func WithReceiptSinks(sinks ...ReceiptSink) EngineOption {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sinks...)
	}
}

// WithClock replaces time.Now for receipts and opportunities.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

type quoteKey struct {
	amountIn ledger.Quantity
	first    poolDomain.Reserves
	second   poolDomain.Reserves
}

type engineMetrics struct {
	calculations metric.Int64Counter
	executions   metric.Int64Counter
	rollbacks    metric.Int64Counter
	cacheLookups metric.Int64Counter
	profit       metric.Float64Histogram
	latency      metric.Float64Histogram
}

// Engine computes and executes round trips between the two pools of a pair.
// It keeps no state between calls beyond a quote cache keyed by reserves.
type Engine struct {
	pair    *poolApp.Pair
	poolA   string
	poolB   string
	input   *asset.Asset
	other   *asset.Asset
	account common.Address
	steps   int

	quotes  *cache.LRU[quoteKey, domain.Quote]
	sinks   []ReceiptSink
	now     func() time.Time
	tracer  apm.Tracer
	log     logger.LoggerInterface
	metrics engineMetrics
}

func NewEngine(pair *poolApp.Pair, cfg EngineConfig, log logger.LoggerInterface, opts ...EngineOption) (*Engine, error) {
	assetA, assetB := pair.Assets()
	var input, other *asset.Asset
	switch cfg.InputAsset {
	case assetA.ID():
		input, other = assetA, assetB
	case assetB.ID():
		input, other = assetB, assetA
	default:
		return nil, apperror.New(apperror.CodeAssetMismatch,
			apperror.WithContextf("input %s is not traded by the pair", cfg.InputAsset))
	}

	size := cfg.QuoteCacheSize
	if size <= 0 {
		size = 1024
	}
	quotes, err := cache.NewLRU[quoteKey, domain.Quote](size)
	if err != nil {
		return nil, err
	}

	if cfg.SearchSteps <= 0 {
		cfg.SearchSteps = defaultSearchSteps
	}

	poolA, poolB := pair.PoolIDs()
	e := &Engine{
		pair:    pair,
		poolA:   poolA,
		poolB:   poolB,
		input:   input,
		other:   other,
		account: cfg.Account,
		steps:   cfg.SearchSteps,
		quotes:  quotes,
		now:     time.Now,
		tracer:  apm.NewTracer("arbitrage", attribute.String("input_asset", input.Symbol())),
		log:     log,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.initMetrics(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter("arbitrage")
	var err error

	e.metrics.calculations, err = meter.Int64Counter(
		"arbitrage_calculations_total",
		metric.WithDescription("Arbitrage calculations served"),
		metric.WithUnit("{calculation}"),
	)
	if err != nil {
		return err
	}

	e.metrics.executions, err = meter.Int64Counter(
		"arbitrage_executions_total",
		metric.WithDescription("Arbitrage executions by outcome"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return err
	}

	e.metrics.rollbacks, err = meter.Int64Counter(
		"arbitrage_rollbacks_total",
		metric.WithDescription("Executions rolled back after taking custody"),
		metric.WithUnit("{rollback}"),
	)
	if err != nil {
		return err
	}

	e.metrics.cacheLookups, err = meter.Int64Counter(
		"arbitrage_quote_cache_lookups_total",
		metric.WithDescription("Quote cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	e.metrics.profit, err = meter.Float64Histogram(
		"arbitrage_realized_profit",
		metric.WithDescription("Realized profit per settled execution, in whole input tokens"),
	)
	if err != nil {
		return err
	}

	e.metrics.latency, err = meter.Float64Histogram(
		"arbitrage_execution_latency_ms",
		metric.WithDescription("Execution wall time"),
		metric.WithUnit("ms"),
	)
	return err
}

// InputAsset is the asset the engine trades in and returns.
func (e *Engine) InputAsset() *asset.Asset { return e.input }

// Account is the custody account callers approve.
func (e *Engine) Account() common.Address { return e.account }

// CalculateArbitrage simulates both directions for amountIn against live reserves.
// It never changes either pool.
func (e *Engine) CalculateArbitrage(ctx context.Context, amountIn ledger.Quantity) (domain.Quote, error) {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "arbitrage.calculate")
	defer span.End()
	span.SetAttributes(attribute.String("amount.in", amountIn.String()))

	var quote domain.Quote
	err := e.pair.Read(ctx, func(v *poolApp.View) error {
		var err error
		quote, err = e.quote(ctx, v, amountIn)
		return err
	})
	if err != nil {
		span.NoticeError(err)
		return domain.Quote{}, err
	}

	e.metrics.calculations.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("direction", string(quote.Direction)),
		attribute.String("profit", quote.Profit.String()),
	)
	return quote, nil
}

// PerformArbitrage re-quotes amountIn under the pair lock and, if profitable,
// takes amountIn from caller's allowance, runs both legs, verifies the engine
// holds at least amountIn again and pays everything back to caller.
//
// Any failure after custody is taken rolls back every transfer and reserve
// change. The receipt is returned on failure too.
func (e *Engine) PerformArbitrage(ctx context.Context, caller common.Address, amountIn ledger.Quantity) (*domain.Receipt, error) {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "arbitrage.perform")
	defer span.End()
	span.SetAttributes(
		attribute.String("caller", caller.Hex()),
		attribute.String("amount.in", amountIn.String()),
	)

	exec := domain.NewExecution()
	receipt := &domain.Receipt{
		ID:         uuid.NewString(),
		Caller:     caller,
		InputAsset: e.input.Symbol(),
		Decimals:   e.input.Decimals(),
		Direction:  domain.AFirst,
		AmountIn:   amountIn,
		StartedAt:  e.now(),
	}

	custody := false
	err := e.pair.Write(ctx, func(tx *poolApp.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		quote, err := e.quote(ctx, &tx.View, amountIn)
		if err != nil {
			return err
		}
		if err := advance(exec, domain.StateSimulated); err != nil {
			return err
		}
		receipt.Direction = quote.Direction
		if !quote.Profitable() {
			return apperror.New(apperror.CodeNoProfitableOpportunity,
				apperror.WithContextf("amount %s: %s final %s, %s final %s",
					amountIn, domain.AFirst.Route(), quote.AFirst.Final, domain.BFirst.Route(), quote.BFirst.Final))
		}

		first, second := e.route(quote.Direction)
		baseline := tx.BalanceOf(e.input.ID(), e.account)
		if err := tx.TransferFrom(e.input.ID(), e.account, caller, e.account, amountIn); err != nil {
			return err
		}
		custody = true

		// From here on nothing checks ctx: the trade settles or rolls back.
		mid, err := tx.Swap(first, e.account, e.input.ID(), amountIn)
		if err != nil {
			return aborted(err, "leg 1 on "+first)
		}
		receipt.Intermediate = mid
		if err := advance(exec, domain.StateLeg1Committed); err != nil {
			return err
		}

		if _, err := tx.Swap(second, e.account, e.other.ID(), mid); err != nil {
			return aborted(err, "leg 2 on "+second)
		}
		if err := advance(exec, domain.StateLeg2Committed); err != nil {
			return err
		}

		received, err := ledger.Sub(tx.BalanceOf(e.input.ID(), e.account), baseline)
		if err != nil || received.Lt(amountIn) {
			return apperror.New(apperror.CodeExecutionAborted,
				apperror.WithContextf("engine holds %s of %s after both legs, needs %s",
					received, e.input.Symbol(), amountIn))
		}
		receipt.Final = received
		if err := advance(exec, domain.StateVerified); err != nil {
			return err
		}

		if err := tx.Transfer(e.input.ID(), e.account, caller, received); err != nil {
			return aborted(err, "settlement to "+caller.Hex())
		}
		receipt.Profit = ledger.SubFloor(received, amountIn)
		return advance(exec, domain.StateSettled)
	})

	receipt.FinishedAt = e.now()
	if err != nil {
		exec.Abort()
		receipt.RolledBack = custody
		receipt.Intermediate, receipt.Final, receipt.Profit = ledger.Zero(), ledger.Zero(), ledger.Zero()
		receipt.ErrorCode = string(apperror.GetCode(err))
		receipt.Error = err.Error()
		span.NoticeError(err)
	}
	receipt.Trail = exec.Trail()

	e.observe(ctx, receipt, err)
	e.record(ctx, receipt)
	span.SetAttributes(
		attribute.String("receipt.id", receipt.ID),
		attribute.String("direction", string(receipt.Direction)),
		attribute.String("profit", receipt.Profit.String()),
	)
	return receipt, err
}

// Opportunity quotes size and adds spot prices, spread and slippage, all from one read.
func (e *Engine) Opportunity(ctx context.Context, size ledger.Quantity) (*domain.Opportunity, error) {
	opp := &domain.Opportunity{
		ID:        uuid.NewString(),
		Timestamp: e.now(),
		TradeSize: asset.NewAmount(e.input, size),
	}

	err := e.pair.Read(ctx, func(v *poolApp.View) error {
		quote, err := e.quote(ctx, v, size)
		if err != nil {
			return err
		}
		opp.Quote = quote

		states := v.States()
		if opp.SpotA, err = states[0].Spot(opp.Timestamp); err != nil {
			return err
		}
		if opp.SpotB, err = states[1].Spot(opp.Timestamp); err != nil {
			return err
		}
		if opp.SpreadBps, err = opp.SpotA.SpreadBps(opp.SpotB); err != nil {
			return err
		}

		firstState, secondState := states[0], states[1]
		if quote.Direction == domain.BFirst {
			firstState, secondState = secondState, firstState
		}
		opp.SlippageBps = domain.SlippageBps(size, quote.Route().Final,
			e.leg(firstState.Reserves, e.input.ID()),
			e.leg(secondState.Reserves, e.other.ID()),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.calculations.Add(ctx, 1)
	return opp, nil
}

// quote serves from cache when both pools' reserves and the amount match a previous call.
func (e *Engine) quote(ctx context.Context, v *poolApp.View, amountIn ledger.Quantity) (domain.Quote, error) {
	first, err := v.Reserves(e.poolA)
	if err != nil {
		return domain.Quote{}, err
	}
	second, err := v.Reserves(e.poolB)
	if err != nil {
		return domain.Quote{}, err
	}

	key := quoteKey{amountIn: amountIn, first: first, second: second}
	// cached quotes are cloned both ways so callers never alias the cache's PnL
	if q, ok := e.quotes.Get(key); ok {
		e.metrics.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "hit")))
		return q.Clone(), nil
	}
	e.metrics.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "miss")))

	q, err := e.simulate(v, amountIn)
	if err != nil {
		return domain.Quote{}, err
	}
	e.quotes.Add(key, q.Clone())
	return q, nil
}

func (e *Engine) simulate(v *poolApp.View, amountIn ledger.Quantity) (domain.Quote, error) {
	if amountIn.IsZero() {
		return domain.Quote{}, apperror.New(apperror.CodeZeroInput)
	}
	aFirst, err := e.simulateRoute(v, domain.AFirst, amountIn)
	if err != nil {
		return domain.Quote{}, err
	}
	bFirst, err := e.simulateRoute(v, domain.BFirst, amountIn)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Decide(amountIn, aFirst, bFirst), nil
}

func (e *Engine) simulateRoute(v *poolApp.View, d domain.Direction, amountIn ledger.Quantity) (domain.RouteQuote, error) {
	first, second := e.route(d)
	mid, err := v.Quote(first, e.input.ID(), amountIn)
	if err != nil {
		return domain.RouteQuote{}, err
	}
	final := ledger.Zero()
	if !mid.IsZero() {
		if final, err = v.Quote(second, e.other.ID(), mid); err != nil {
			return domain.RouteQuote{}, err
		}
	}
	return domain.NewRouteQuote(d, amountIn, mid, final), nil
}

func (e *Engine) route(d domain.Direction) (first, second string) {
	if d == domain.BFirst {
		return e.poolB, e.poolA
	}
	return e.poolA, e.poolB
}

func (e *Engine) leg(r poolDomain.Reserves, in asset.AssetID) domain.Leg {
	assetA, _ := e.pair.Assets()
	if in == assetA.ID() {
		return domain.Leg{ReserveIn: r.A, ReserveOut: r.B}
	}
	return domain.Leg{ReserveIn: r.B, ReserveOut: r.A}
}

func (e *Engine) observe(ctx context.Context, r *domain.Receipt, err error) {
	outcome := "settled"
	if err != nil {
		outcome = string(apperror.GetCode(err))
	}
	e.metrics.executions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("direction", string(r.Direction)),
	))
	e.metrics.latency.Record(ctx, float64(r.Duration().Microseconds())/1000)

	if r.RolledBack {
		e.metrics.rollbacks.Add(ctx, 1)
		e.log.Error(ctx, "arbitrage rolled back",
			"receipt_id", r.ID,
			"direction", r.Direction.Route(),
			"amount_in", r.AmountIn.String(),
			"error_code", r.ErrorCode,
			"error", r.Error,
		)
		return
	}
	if err != nil {
		e.log.Info(ctx, "arbitrage not executed", "amount_in", r.AmountIn.String(), "error_code", r.ErrorCode)
		return
	}

	profit := asset.NewAmount(e.input, r.Profit)
	f, _ := profit.ToDecimal().Float64()
	e.metrics.profit.Record(ctx, f, metric.WithAttributes(attribute.String("asset", e.input.Symbol())))
	e.log.Info(ctx, "arbitrage settled",
		"receipt_id", r.ID,
		"direction", r.Direction.Route(),
		"amount_in", asset.NewAmount(e.input, r.AmountIn).String(),
		"final", asset.NewAmount(e.input, r.Final).String(),
		"profit", profit.String(),
	)
}

func (e *Engine) record(ctx context.Context, r *domain.Receipt) {
	for _, sink := range e.sinks {
		if err := sink.Record(ctx, r); err != nil {
			e.log.Warn(ctx, "receipt sink failed", "receipt_id", r.ID, "error", err.Error())
		}
	}
}

func advance(exec *domain.Execution, to domain.State) error {
	if err := exec.Advance(to); err != nil {
		return apperror.Internal(apperror.CodeInternalError, "execution state", err)
	}
	return nil
}

func aborted(cause error, step string) error {
	return apperror.New(apperror.CodeExecutionAborted, apperror.WithContext(step), apperror.WithCause(cause))
}
