// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/pair-arbitrage/business/arbitrage/app"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/infra/archive"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/infra/redisfeed"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/infra/sqlite"
	"github.com/fd1az/pair-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/pair-arbitrage/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Engine   = di.NewToken[*app.Engine]("arbitrage.Engine")
	Detector = di.NewToken[*app.Detector]("arbitrage.Detector")
	History  = di.NewToken[*sqlite.HistoryStore]("arbitrage.History")
	Exporter = di.NewToken[*archive.Exporter]("arbitrage.Exporter")
)

// Private dependency tokens - internal to arbitrage module
var (
	Reporter = di.NewToken[app.Reporter]("arbitrage:reporter")
	Breaker  = di.NewToken[*circuitbreaker.CircuitBreaker[*domain.Receipt]]("arbitrage:breaker")
	// Feed is nil when no Redis address is configured.
	Feed = di.NewToken[*redisfeed.Publisher]("arbitrage:feed")
)

func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}

func GetDetector(c di.ServiceRegistry) *app.Detector {
	return di.GetToken(c, Detector)
}

func GetHistory(c di.ServiceRegistry) *sqlite.HistoryStore {
	return di.GetToken(c, History)
}

func GetExporter(c di.ServiceRegistry) *archive.Exporter {
	return di.GetToken(c, Exporter)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}

func GetBreaker(c di.ServiceRegistry) *circuitbreaker.CircuitBreaker[*domain.Receipt] {
	return di.GetToken(c, Breaker)
}

func GetFeed(c di.ServiceRegistry) *redisfeed.Publisher {
	return di.GetToken(c, Feed)
}
