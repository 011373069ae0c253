// Package di contains dependency injection tokens for the pool context.
package di

import (
	"github.com/fd1az/pair-arbitrage/business/pool/app"
	"github.com/fd1az/pair-arbitrage/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Pair = di.NewToken[*app.Pair]("pool.Pair")
)

// Private dependency tokens - internal to pool module
var (
	Seeds = di.NewToken[[]app.Seed]("pool:seeds")
)

func GetPair(c di.ServiceRegistry) *app.Pair {
	return di.GetToken(c, Pair)
}

func GetSeeds(c di.ServiceRegistry) []app.Seed {
	return di.GetToken(c, Seeds)
}
