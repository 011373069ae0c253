// Package arbitrage implements the arbitrage bounded context: quoting and
// executing round trips across the pair's two pools.
package arbitrage

import (
	"context"
	"os"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/app"
	arbDI "github.com/fd1az/pair-arbitrage/business/arbitrage/di"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/infra"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/infra/archive"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/infra/redisfeed"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/infra/sqlite"
	poolApp "github.com/fd1az/pair-arbitrage/business/pool/app"
	poolDI "github.com/fd1az/pair-arbitrage/business/pool/di"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/pair-arbitrage/internal/config"
	"github.com/fd1az/pair-arbitrage/internal/di"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
	"github.com/fd1az/pair-arbitrage/internal/logger"
	"github.com/fd1az/pair-arbitrage/internal/monolith"
	"github.com/fd1az/pair-arbitrage/internal/ratelimit"
)

// Module implements the arbitrage bounded context.
type Module struct{}

func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbDI.History, func(sr di.ServiceRegistry) *sqlite.HistoryStore {
		cfg := sr.Get("config").(*config.Config)
		store, err := sqlite.NewHistoryStore(cfg.Arbitrage.HistoryPath)
		if err != nil {
			panic("failed to open execution history: " + err.Error())
		}
		return store
	})

	di.RegisterToken(c, arbDI.Exporter, func(di.ServiceRegistry) *archive.Exporter {
		return archive.NewExporter()
	})

	di.RegisterToken(c, arbDI.Feed, func(sr di.ServiceRegistry) *redisfeed.Publisher {
		cfg := sr.Get("config").(*config.Config)
		if !cfg.Feed.Enabled() {
			return nil
		}
		return redisfeed.NewPublisher(cfg.Feed)
	})

	di.RegisterToken(c, arbDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sinks := []app.ReceiptSink{arbDI.GetHistory(sr)}
		if feed := arbDI.GetFeed(sr); feed != nil {
			sinks = append(sinks, feed)
		}

		engine, err := NewEngineFromConfig(cfg, poolDI.GetPair(sr), log, app.WithReceiptSinks(sinks...))
		if err != nil {
			panic("failed to create arbitrage engine: " + err.Error())
		}
		return engine
	})

	di.RegisterToken(c, arbDI.Reporter, func(di.ServiceRegistry) app.Reporter {
		return infra.NewConsoleReporter(os.Stdout, false)
	})

	di.RegisterToken(c, arbDI.Breaker, func(sr di.ServiceRegistry) *circuitbreaker.CircuitBreaker[*domain.Receipt] {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		bc := circuitbreaker.DefaultConfig("arbitrage.execute")
		if cfg.Arbitrage.Breaker.MaxFailures > 0 {
			bc.MaxFailures = cfg.Arbitrage.Breaker.MaxFailures
		}
		if cfg.Arbitrage.Breaker.OpenTimeout > 0 {
			bc.OpenTimeout = cfg.Arbitrage.Breaker.OpenTimeout
		}
		// losing a race for the spread is expected
		bc.Ignore = []apperror.Code{apperror.CodeNoProfitableOpportunity}
		bc.OnStateChange = func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		}
		return circuitbreaker.New[*domain.Receipt](bc)
	})

	di.RegisterToken(c, arbDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		engine := arbDI.GetEngine(sr)

		sizes, err := TradeSizes(cfg, engine.InputAsset())
		if err != nil {
			panic("invalid trade sizes: " + err.Error())
		}

		return app.NewDetector(
			engine,
			arbDI.GetReporter(sr),
			ratelimit.New(cfg.Arbitrage.MaxExecutionsPerMinute),
			arbDI.GetBreaker(sr),
			app.DetectorConfig{
				TradeSizes:  sizes,
				Interval:    cfg.Arbitrage.ScanInterval,
				AutoExecute: cfg.Arbitrage.AutoExecute,
				Caller:      cfg.Chain.DeployerAddress(),
			},
			log,
		)
	})

	return nil
}

// Startup registers the execution breaker health check.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	engine := arbDI.GetEngine(mono.Services())
	breaker := arbDI.GetBreaker(mono.Services())

	mono.Health().RegisterCheck("execution_breaker", func(context.Context) (bool, string) {
		state := breaker.State()
		return state != gobreaker.StateOpen, state.String()
	})
	if feed := arbDI.GetFeed(mono.Services()); feed != nil {
		mono.Health().RegisterCheck("feed", func(ctx context.Context) (bool, string) {
			if err := feed.Ping(ctx); err != nil {
				return false, err.Error()
			}
			return true, "redis reachable"
		})
	}

	mono.Logger().Info(ctx, "arbitrage module started",
		"input_asset", engine.InputAsset().Symbol(),
		"custody", engine.Account().Hex(),
	)
	return nil
}

// NewEngineFromConfig binds an engine to the configured input asset and custody account.
func NewEngineFromConfig(cfg *config.Config, pair *poolApp.Pair, log logger.LoggerInterface, opts ...app.EngineOption) (*app.Engine, error) {
	assetA, assetB := pair.Assets()
	input := assetA
	if strings.EqualFold(cfg.Arbitrage.InputAsset, "b") {
		input = assetB
	}

	return app.NewEngine(pair, app.EngineConfig{
		Account:        cfg.Chain.EngineAddress(),
		InputAsset:     input.ID(),
		QuoteCacheSize: cfg.Arbitrage.QuoteCacheSize,
		SearchSteps:    cfg.Arbitrage.OptimizerSteps,
	}, log, opts...)
}

// TradeSizes converts the configured whole-token sizes to raw units of in.
func TradeSizes(cfg *config.Config, in *asset.Asset) ([]ledger.Quantity, error) {
	decimals, err := cfg.Arbitrage.TradeSizesDecimal()
	if err != nil {
		return nil, err
	}
	sizes := make([]ledger.Quantity, 0, len(decimals))
	for _, d := range decimals {
		amount, err := asset.ParseDecimal(in, d)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, amount.Raw())
	}
	return sizes, nil
}
