package app

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
	"github.com/fd1az/pair-arbitrage/internal/logger"
	"github.com/fd1az/pair-arbitrage/internal/ratelimit"
)

// DetectorConfig holds configuration for the arbitrage detector.
type DetectorConfig struct {
	TradeSizes []ledger.Quantity
	Interval   time.Duration
	// AutoExecute performs the most profitable opportunity of each scan as Caller.
	AutoExecute bool
	Caller      common.Address
}

// Detector scans the pair on a fixed interval, reports what it finds and
// optionally executes the best opportunity.
type Detector struct {
	engine   *Engine
	reporter Reporter
	limiter  *ratelimit.Limiter
	breaker  *circuitbreaker.CircuitBreaker[*domain.Receipt]
	config   DetectorConfig
	logger   logger.LoggerInterface

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDetector creates a new arbitrage Detector. limiter and breaker only
// apply to auto-execution.
func NewDetector(
	engine *Engine,
	reporter Reporter,
	limiter *ratelimit.Limiter,
	breaker *circuitbreaker.CircuitBreaker[*domain.Receipt],
	config DetectorConfig,
	logger logger.LoggerInterface,
) *Detector {
	return &Detector{
		engine:   engine,
		reporter: reporter,
		limiter:  limiter,
		breaker:  breaker,
		config:   config,
		logger:   logger,
	}
}

// Start begins the detection loop.
func (d *Detector) Start(ctx context.Context) error {
	if d.config.Interval <= 0 {
		return apperror.Validation("detector interval must be positive")
	}
	d.logger.Info(ctx, "starting arbitrage detector",
		"interval", d.config.Interval.String(),
		"sizes", len(d.config.TradeSizes),
		"auto_execute", d.config.AutoExecute,
	)

	if err := d.reporter.Start(ctx); err != nil {
		return err
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.run(ctx)
	return nil
}

func (d *Detector) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	d.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info(ctx, "detector stopping", "reason", ctx.Err().Error())
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Detector) tick(ctx context.Context) {
	opps := d.Scan(ctx)
	if !d.config.AutoExecute {
		return
	}
	if best := bestOpportunity(opps); best != nil {
		d.execute(ctx, best)
	}
}

// Scan quotes every configured trade size and reports each result.
func (d *Detector) Scan(ctx context.Context) []*domain.Opportunity {
	opps := make([]*domain.Opportunity, 0, len(d.config.TradeSizes))
	for _, size := range d.config.TradeSizes {
		opp, err := d.engine.Opportunity(ctx, size)
		if err != nil {
			d.logger.Warn(ctx, "scan failed", "size", size.String(), "error", err.Error())
			continue
		}
		d.reporter.Report(opp)
		opps = append(opps, opp)
	}
	return opps
}

func (d *Detector) execute(ctx context.Context, opp *domain.Opportunity) {
	if !d.limiter.Allow() {
		d.logger.Debug(ctx, "execution rate limited", "opportunity_id", opp.ID)
		return
	}

	receipt, err := d.breaker.Execute(func() (*domain.Receipt, error) {
		return d.engine.PerformArbitrage(ctx, d.config.Caller, opp.TradeSize.Raw())
	})
	if receipt != nil {
		d.reporter.ReportExecution(receipt)
	}
	if err != nil && !apperror.HasCode(err, apperror.CodeNoProfitableOpportunity) {
		d.logger.Warn(ctx, "auto execution failed",
			"opportunity_id", opp.ID,
			"error_code", string(apperror.GetCode(err)),
			"breaker", d.breaker.State().String(),
		)
	}
}

// Stop cancels the loop, waits for it and stops the reporter.
func (d *Detector) Stop() error {
	d.logger.Info(context.Background(), "stopping arbitrage detector")
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	return d.reporter.Stop()
}

func bestOpportunity(opps []*domain.Opportunity) *domain.Opportunity {
	var best *domain.Opportunity
	for _, o := range opps {
		if !o.IsProfitable() {
			continue
		}
		if best == nil || o.Quote.Profit.Gt(best.Quote.Profit) {
			best = o
		}
	}
	return best
}
