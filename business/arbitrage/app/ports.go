// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
)

// Reporter presents scan results and executions.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// Report presents one scanned opportunity, profitable or not.
	Report(opp *domain.Opportunity)

	// ReportExecution presents the outcome of a performArbitrage call.
	ReportExecution(r *domain.Receipt)

	// Stop gracefully shuts down the reporter.
	Stop() error
}

// ReceiptSink receives every execution receipt.
type ReceiptSink interface {
	Record(ctx context.Context, r *domain.Receipt) error
}

// HistoryStore persists receipts and lists them newest first.
type HistoryStore interface {
	ReceiptSink
	List(ctx context.Context, limit int) ([]*domain.Receipt, error)
	Close() error
}
