// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/internal/asset"
)

const rule = "================================================================================"

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
	// quiet skips unprofitable scan results.
	quiet bool
}

// NewConsoleReporter writes to out, or stdout when out is nil.
func NewConsoleReporter(out io.Writer, quiet bool) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{out: out, quiet: quiet}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Pair Arbitrage Watch Started")
	fmt.Fprintln(r.out, "============================")
	return nil
}

// Report prints one scanned opportunity.
func (r *ConsoleReporter) Report(opp *domain.Opportunity) {
	if r.quiet && !opp.IsProfitable() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	in := opp.TradeSize.Asset()
	route := opp.Quote.Route()

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, rule)
	if opp.IsProfitable() {
		fmt.Fprintln(r.out, "ARBITRAGE OPPORTUNITY DETECTED")
	} else {
		fmt.Fprintln(r.out, "NO PROFITABLE ROUTE")
	}
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "Timestamp:      %s\n", opp.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(r.out, "Direction:      %s (%s)\n", opp.Quote.Direction.Route(), opp.Quote.Direction)
	fmt.Fprintln(r.out, strings.Repeat("-", len(rule)))
	fmt.Fprintln(r.out, "PRICES")
	fmt.Fprintf(r.out, "  Pool A:         %s\n", opp.SpotA.Rate().StringFixed(6))
	fmt.Fprintf(r.out, "  Pool B:         %s\n", opp.SpotB.Rate().StringFixed(6))
	fmt.Fprintf(r.out, "  Spread:         %s bps\n", opp.SpreadBps.StringFixed(2))
	fmt.Fprintln(r.out, strings.Repeat("-", len(rule)))
	fmt.Fprintln(r.out, "TRADE DETAILS")
	fmt.Fprintf(r.out, "  Size:           %s %s\n", opp.TradeSize.StringFixed(4), in.Symbol())
	fmt.Fprintf(r.out, "  Intermediate:   %s (raw)\n", route.Intermediate)
	fmt.Fprintf(r.out, "  Final:          %s %s\n", asset.NewAmount(in, route.Final).StringFixed(4), in.Symbol())
	fmt.Fprintf(r.out, "  Slippage:       %s bps\n", opp.SlippageBps.StringFixed(2))
	fmt.Fprintln(r.out, strings.Repeat("-", len(rule)))
	fmt.Fprintln(r.out, "PROFIT")
	fmt.Fprintf(r.out, "  Expected:       %s %s\n", opp.Profit().StringFixed(6), in.Symbol())
	fmt.Fprintln(r.out, rule)
}

// ReportExecution prints the outcome of one execution.
func (r *ConsoleReporter) ReportExecution(rc *domain.Receipt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := "SETTLED"
	if !rc.Succeeded() {
		status = "FAILED " + rc.ErrorCode
		if rc.RolledBack {
			status += " (rolled back)"
		}
	}
	fmt.Fprintf(r.out, "[%s] execution %s %s: in %s out %s profit %s %s (%s)\n",
		rc.FinishedAt.Format("15:04:05"),
		rc.ID,
		rc.Direction.Route(),
		rc.AmountIn, rc.Final, rc.Profit, rc.InputAsset,
		status,
	)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Pair Arbitrage Watch Stopped")
	return nil
}
