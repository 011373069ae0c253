package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/pair-arbitrage/internal/asset"
)

// Opportunity is a quote enriched with market context for reporting.
type Opportunity struct {
	ID          string
	Timestamp   time.Time
	TradeSize   asset.Amount
	Quote       Quote
	SpotA       asset.Price
	SpotB       asset.Price
	SpreadBps   decimal.Decimal
	SlippageBps decimal.Decimal
}

// IsProfitable reports whether the winning route gains.
func (o *Opportunity) IsProfitable() bool {
	return o.Quote.Profitable()
}

// Profit returns the profit in the trade size's asset.
func (o *Opportunity) Profit() asset.Amount {
	return asset.NewAmount(o.TradeSize.Asset(), o.Quote.Profit)
}
