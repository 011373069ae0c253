package infra_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/infra"
	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

func opportunity(t *testing.T, profit uint64) *domain.Opportunity {
	t.Helper()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	spotA, err := asset.SpotPrice(asset.TokenA, asset.TokenB, ledger.New(1000), ledger.New(3000), at)
	assert.NoError(t, err)
	spotB, err := asset.SpotPrice(asset.TokenA, asset.TokenB, ledger.New(3000), ledger.New(1000), at)
	assert.NoError(t, err)

	in := ledger.New(1000)
	final, err := ledger.Add(in, ledger.New(profit))
	assert.NoError(t, err)
	route := domain.NewRouteQuote(domain.AFirst, in, ledger.New(1497), final)
	return &domain.Opportunity{
		ID:        "opp-1",
		Timestamp: at,
		TradeSize: asset.NewAmount(asset.TokenA, in),
		Quote:     domain.Decide(in, route, domain.NewRouteQuote(domain.BFirst, in, ledger.New(249), ledger.New(76))),
		SpotA:     spotA,
		SpotB:     spotB,
	}
}

func TestConsoleReporter_Report(t *testing.T) {
	tests := []struct {
		name   string
		profit uint64
		quiet  bool
		want   string
	}{
		{name: "profitable", profit: 796, want: "ARBITRAGE OPPORTUNITY DETECTED"},
		{name: "unprofitable_verbose", profit: 0, want: "NO PROFITABLE ROUTE"},
		{name: "unprofitable_quiet", profit: 0, quiet: true, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := infra.NewConsoleReporter(&buf, tt.quiet)

			r.Report(opportunity(t, tt.profit))

			if tt.want == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "A->B")
		})
	}
}

func TestConsoleReporter_ReportExecution(t *testing.T) {
	var buf bytes.Buffer
	r := infra.NewConsoleReporter(&buf, false)

	r.ReportExecution(&domain.Receipt{
		ID:         "rcpt-1",
		Direction:  domain.BFirst,
		InputAsset: "TKA",
		AmountIn:   ledger.New(100),
		Final:      ledger.Zero(),
		Profit:     ledger.Zero(),
		ErrorCode:  "EXECUTION_ABORTED",
		RolledBack: true,
		Trail:      []domain.State{domain.StateIdle, domain.StateSimulated, domain.StateIdle},
	})

	assert.Contains(t, buf.String(), "rcpt-1 B->A")
	assert.Contains(t, buf.String(), "FAILED EXECUTION_ABORTED (rolled back)")
}
