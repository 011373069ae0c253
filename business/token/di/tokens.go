// Package di contains dependency injection tokens for the token context.
package di

import (
	"github.com/fd1az/pair-arbitrage/business/token/app"
	"github.com/fd1az/pair-arbitrage/business/token/domain"
	"github.com/fd1az/pair-arbitrage/internal/chainstate"
	"github.com/fd1az/pair-arbitrage/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Ledger  = di.NewToken[*domain.Ledger]("token.Ledger")
	Service = di.NewToken[*app.Service]("token.Service")
	// State is nil when chain.persist is off.
	State = di.NewToken[*chainstate.Store]("token.State")
)

func GetLedger(c di.ServiceRegistry) *domain.Ledger {
	return di.GetToken(c, Ledger)
}

func GetService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Service)
}

func GetState(c di.ServiceRegistry) *chainstate.Store {
	return di.GetToken(c, State)
}
