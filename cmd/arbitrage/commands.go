package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	arbDI "github.com/fd1az/pair-arbitrage/business/arbitrage/di"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/business/pool"
	poolApp "github.com/fd1az/pair-arbitrage/business/pool/app"
	poolDI "github.com/fd1az/pair-arbitrage/business/pool/di"
	tokenApp "github.com/fd1az/pair-arbitrage/business/token/app"
	tokenDI "github.com/fd1az/pair-arbitrage/business/token/di"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/asset"
)

// withRuntime bootstraps the application around fn, checkpoints balances and
// reserves when fn succeeds, and tears everything down afterwards.
func withRuntime(cmd *cobra.Command, serve bool, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	rt, err := bootstrap(ctx, serve)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	if err := fn(ctx, rt); err != nil {
		return err
	}
	return pool.Checkpoint(context.Background(), rt.mono.Services())
}

func newCalculateCmd() *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Quote both round trips for an input amount without trading",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				engine := arbDI.GetEngine(rt.mono.Services())
				in, err := asset.ParseString(engine.InputAsset(), amount)
				if err != nil {
					return err
				}
				quote, err := engine.CalculateArbitrage(ctx, in.Raw())
				if err != nil {
					return err
				}
				printQuote(cmd.OutOrStdout(), engine.InputAsset(), otherAsset(rt, engine.InputAsset()), quote)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "1000", "input amount in whole tokens")
	return cmd
}

func newPerformCmd() *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "perform",
		Short: "Execute the best round trip from the deployer account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				sr := rt.mono.Services()
				engine := arbDI.GetEngine(sr)
				tokens := tokenDI.GetService(sr)
				caller := rt.cfg.Chain.DeployerAddress()

				in, err := asset.ParseString(engine.InputAsset(), amount)
				if err != nil {
					return err
				}
				if err := tokens.Approve(ctx, caller, engine.Account(), in); err != nil {
					return err
				}

				receipt, err := engine.PerformArbitrage(ctx, caller, in.Raw())
				out := cmd.OutOrStdout()
				if receipt != nil {
					printReceipt(out, engine.InputAsset(), receipt)
				}
				if err != nil {
					if apperror.HasCode(err, apperror.CodeNoProfitableOpportunity) {
						fmt.Fprintln(out, "no profitable route, nothing executed")
						return nil
					}
					return err
				}
				fmt.Fprintln(out)
				printHoldings(out, tokens.Holdings(accounts(rt)...))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "1000", "input amount in whole tokens")
	return cmd
}

func newOptimizeCmd() *cobra.Command {
	var lo, hi string
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search an input range for the most profitable amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				engine := arbDI.GetEngine(rt.mono.Services())
				in := engine.InputAsset()
				lower, err := asset.ParseString(in, lo)
				if err != nil {
					return err
				}
				upper, err := asset.ParseString(in, hi)
				if err != nil {
					return err
				}
				quote, err := engine.OptimalAmount(ctx, lower.Raw(), upper.Raw())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "best input: %s\n", asset.NewAmount(in, quote.AmountIn).StringFixed(6))
				printQuote(cmd.OutOrStdout(), in, otherAsset(rt, in), quote)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&lo, "min", "0.000001", "lower bound in whole tokens")
	cmd.Flags().StringVar(&hi, "max", "10000", "upper bound in whole tokens")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Scan the configured trade sizes on an interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *runtime) error {
				sr := rt.mono.Services()
				engine := arbDI.GetEngine(sr)

				if rt.cfg.Arbitrage.AutoExecute {
					tokens := tokenDI.GetService(sr)
					caller := rt.cfg.Chain.DeployerAddress()
					budget := tokens.Balance(caller, engine.InputAsset())
					if err := tokens.Approve(ctx, caller, engine.Account(), budget); err != nil {
						return err
					}
					rt.log.Info(ctx, "auto-execute enabled", "budget", budget.String())
				}

				detector := arbDI.GetDetector(sr)
				if err := detector.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				rt.log.Info(context.Background(), "shutting down")
				return detector.Stop()
			})
		},
	}
}

func newBalancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Show token balances and pool reserves",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				out := cmd.OutOrStdout()
				printHoldings(out, tokenDI.GetService(rt.mono.Services()).Holdings(accounts(rt)...))
				fmt.Fprintln(out)
				return printPools(ctx, out, poolDI.GetPair(rt.mono.Services()))
			})
		},
	}
}

func newTransferCmd() *cobra.Command {
	var to, amount, symbol string
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move tokens from the deployer to another account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !common.IsHexAddress(to) {
				return apperror.Validation("invalid recipient address " + to)
			}
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				tok, ok := rt.mono.AssetRegistry().BySymbol(strings.ToUpper(symbol))
				if !ok {
					return apperror.New(apperror.CodeUnknownAsset, apperror.WithContext(symbol))
				}
				amt, err := asset.ParseString(tok, amount)
				if err != nil {
					return err
				}
				tokens := tokenDI.GetService(rt.mono.Services())
				if err := tokens.Transfer(ctx, rt.cfg.Chain.DeployerAddress(), common.HexToAddress(to), amt); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "transferred %s to %s\n", amt.StringFixed(6), common.HexToAddress(to).Hex())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in whole tokens")
	cmd.Flags().StringVar(&symbol, "asset", "TKA", "token symbol")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newFundCmd() *cobra.Command {
	var multiplier string
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Add liquidity to both pools at their seed ratios",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := decimal.NewFromString(multiplier)
			if err != nil {
				return apperror.Validation("invalid multiplier " + multiplier)
			}
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				sr := rt.mono.Services()
				pair := poolDI.GetPair(sr)
				assetA, assetB := pair.Assets()
				deposits, err := poolApp.ScaleSeeds(assetA, assetB, poolDI.GetSeeds(sr), m)
				if err != nil {
					return err
				}
				if err := pair.Fund(ctx, rt.cfg.Chain.DeployerAddress(), deposits); err != nil {
					return err
				}
				return printPools(ctx, cmd.OutOrStdout(), pair)
			})
		},
	}
	cmd.Flags().StringVar(&multiplier, "multiplier", "1", "multiple of each pool's seed liquidity")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded executions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				store := arbDI.GetHistory(rt.mono.Services())
				receipts, err := store.List(ctx, limit)
				if err != nil {
					return err
				}
				summary, err := store.Summary(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tFINISHED\tROUTE\tIN\tOUT\tPROFIT\tSTATUS")
				for _, r := range receipts {
					status := "SETTLED"
					if !r.Succeeded() {
						status = r.ErrorCode
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						r.ID, r.FinishedAt.Format("2006-01-02 15:04:05"), r.Direction.Route(),
						r.AmountIn, r.Final, r.Profit, status)
				}
				_ = w.Flush()
				fmt.Fprintf(out, "\n%d executions, %d settled, %d rolled back, total profit %s\n",
					summary.Executions, summary.Settled, summary.RolledBack, summary.TotalProfit)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to show")
	cmd.AddCommand(newHistoryExportCmd())
	return cmd
}

func newHistoryExportCmd() *cobra.Command {
	var path string
	var limit int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write recorded executions to a Parquet file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				sr := rt.mono.Services()
				receipts, err := arbDI.GetHistory(sr).List(ctx, limit)
				if err != nil {
					return err
				}
				n, err := arbDI.GetExporter(sr).Export(path, receipts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d executions to %s\n", n, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "out", "executions.parquet", "output file")
	cmd.Flags().IntVar(&limit, "limit", 10000, "maximum rows to export")
	return cmd
}

func accounts(rt *runtime) []tokenApp.Account {
	return []tokenApp.Account{
		{Label: "deployer", Address: rt.cfg.Chain.DeployerAddress()},
		{Label: "engine", Address: rt.cfg.Chain.EngineAddress()},
		{Label: rt.cfg.Pools.A.ID, Address: common.HexToAddress(rt.cfg.Pools.A.Address)},
		{Label: rt.cfg.Pools.B.ID, Address: common.HexToAddress(rt.cfg.Pools.B.Address)},
	}
}

func otherAsset(rt *runtime, in *asset.Asset) *asset.Asset {
	a, b := poolDI.GetPair(rt.mono.Services()).Assets()
	if in.Equals(a) {
		return b
	}
	return a
}

func printQuote(out io.Writer, in, mid *asset.Asset, q domain.Quote) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tINTERMEDIATE\tFINAL\tPNL")
	for _, r := range []domain.RouteQuote{q.AFirst, q.BFirst} {
		pnl := decimal.NewFromBigInt(r.PnL, -int32(in.Decimals()))
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Direction.Route(),
			asset.NewAmount(mid, r.Intermediate).StringFixed(6),
			asset.NewAmount(in, r.Final).StringFixed(6),
			pnl.StringFixed(6))
	}
	_ = w.Flush()

	if !q.Profitable() {
		fmt.Fprintln(out, "\nno profitable route")
		return
	}
	fmt.Fprintf(out, "\nbest: %s, profit %s\n", q.Direction, asset.NewAmount(in, q.Profit).StringFixed(6))
}

func printReceipt(out io.Writer, in *asset.Asset, r *domain.Receipt) {
	fmt.Fprintf(out, "execution %s\n", r.ID)
	fmt.Fprintf(out, "  route:   %s\n", r.Direction)
	fmt.Fprintf(out, "  in:      %s\n", asset.NewAmount(in, r.AmountIn).StringFixed(6))
	fmt.Fprintf(out, "  out:     %s\n", asset.NewAmount(in, r.Final).StringFixed(6))
	fmt.Fprintf(out, "  profit:  %s\n", asset.NewAmount(in, r.Profit).StringFixed(6))

	trail := make([]string, len(r.Trail))
	for i, s := range r.Trail {
		trail[i] = string(s)
	}
	fmt.Fprintf(out, "  trail:   %s\n", strings.Join(trail, " -> "))
	if r.RolledBack {
		fmt.Fprintf(out, "  rolled back: %s %s\n", r.ErrorCode, r.Error)
	}
	fmt.Fprintf(out, "  took:    %s\n", r.Duration())
}

func printHoldings(out io.Writer, holdings []tokenApp.Holding) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tADDRESS\tBALANCES")
	for _, h := range holdings {
		parts := make([]string, len(h.Balances))
		for i, b := range h.Balances {
			parts[i] = b.StringFixed(6)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", h.Label, h.Address.Hex(), strings.Join(parts, ", "))
	}
	_ = w.Flush()
}

func printPools(ctx context.Context, out io.Writer, pair *poolApp.Pair) error {
	states, err := pair.State(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POOL\tFEE\tRESERVE A\tRESERVE B\tSPOT")
	for _, s := range states {
		spot := "-"
		if p, err := s.Spot(time.Now()); err == nil {
			spot = p.Rate().StringFixed(6)
		}
		fmt.Fprintf(w, "%s\t%d bps\t%s\t%s\t%s\n", s.ID, s.FeeBps,
			asset.NewAmount(s.AssetA, s.Reserves.A).StringFixed(6),
			asset.NewAmount(s.AssetB, s.Reserves.B).StringFixed(6),
			spot)
	}
	return w.Flush()
}
