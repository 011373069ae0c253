// Package main is the entry point for the pair arbitrage CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fd1az/pair-arbitrage/business/arbitrage"
	arbDI "github.com/fd1az/pair-arbitrage/business/arbitrage/di"
	"github.com/fd1az/pair-arbitrage/business/pool"
	"github.com/fd1az/pair-arbitrage/business/token"
	tokenDI "github.com/fd1az/pair-arbitrage/business/token/di"
	"github.com/fd1az/pair-arbitrage/internal/apm"
	"github.com/fd1az/pair-arbitrage/internal/config"
	"github.com/fd1az/pair-arbitrage/internal/logger"
	"github.com/fd1az/pair-arbitrage/internal/metrics"
	"github.com/fd1az/pair-arbitrage/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var (
	configPath string
	logLevel   string
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "arbitrage",
		Short: "Two-pool constant-product arbitrage engine",
		Long: `Runs two constant-product pools over the same token pair on a token ledger,
quotes round trips between them and executes profitable ones atomically.
Balances and reserves are checkpointed to the history database after every
command unless chain.persist is off.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override app.log_level")

	root.AddCommand(
		newVersionCmd(),
		newCalculateCmd(),
		newPerformCmd(),
		newOptimizeCmd(),
		newWatchCmd(),
		newBalancesCmd(),
		newTransferCmd(),
		newFundCmd(),
		newHistoryCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pair-arbitrage %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}

// runtime is a started application: config, logging, telemetry and every module.
type runtime struct {
	cfg   *config.Config
	log   *logger.Logger
	mono  monolithApp
	trace apm.TraceProvider
}

type monolithApp interface {
	monolith.Monolith
	RegisterModules(modules ...monolith.Module) error
	StartModules(ctx context.Context, modules ...monolith.Module) error
	Close(ctx context.Context) error
}

// bootstrap loads config, wires telemetry and starts token, pool and arbitrage in that order.
func bootstrap(ctx context.Context, serve bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, map[string]any{
		"version":     version,
		"environment": cfg.App.Environment,
	})

	rt := &runtime{cfg: cfg, log: log}
	if err := rt.initTelemetry(ctx, serve); err != nil {
		return nil, err
	}

	created, err := monolith.New(cfg, log, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create monolith: %w", err)
	}
	var mono monolithApp = created
	rt.mono = mono

	// Define modules in dependency order
	modules := []monolith.Module{
		&token.Module{},     // Mints the supply to the deployer
		&pool.Module{},      // Seeds both pools from the deployer
		&arbitrage.Module{}, // Quotes and executes against the pools
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return nil, fmt.Errorf("failed to start modules: %w", err)
	}

	if serve {
		if err := mono.Health().Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err.Error())
		}
	}
	return rt, nil
}

func (rt *runtime) initTelemetry(ctx context.Context, serve bool) error {
	tel := rt.cfg.Telemetry
	if !tel.Enabled {
		return nil
	}

	tp, err := apm.NewTraceProvider(rt.log, apm.TraceConfig{
		Provider:    apm.Provider(tel.TraceProvider),
		ServiceName: tel.ServiceName,
		Endpoint:    tel.OTLPEndpoint,
		Headers:     tel.OTLPHeaders,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	rt.trace = tp

	metricOpts := []metrics.OptionFn{
		metrics.WithServiceName(tel.ServiceName),
		metrics.WithVersion(version),
		metrics.WithPrometheus(),
	}
	if apm.Provider(tel.TraceProvider) == apm.OTLPGRPCProvider {
		metricOpts = append(metricOpts, metrics.WithCollector(tel.OTLPEndpoint, nil))
	}
	if _, err := metrics.NewMetricProvider(metricOpts...); err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}

	if serve {
		go func() {
			if err := metrics.ServePrometheusMetrics(ctx, rt.log, metrics.WithPort(tel.PrometheusPort)); err != nil {
				rt.log.Error(ctx, "prometheus server stopped", "error", err.Error())
			}
		}()
	}
	return nil
}

func (rt *runtime) Close(ctx context.Context) {
	if rt.mono != nil {
		if err := arbDI.GetHistory(rt.mono.Services()).Close(); err != nil {
			rt.log.Warn(ctx, "closing history failed", "error", err.Error())
		}
		if feed := arbDI.GetFeed(rt.mono.Services()); feed != nil {
			_ = feed.Close()
		}
		if state := tokenDI.GetState(rt.mono.Services()); state != nil {
			if err := state.Close(); err != nil {
				rt.log.Warn(ctx, "closing chain state failed", "error", err.Error())
			}
		}
		if err := rt.mono.Close(ctx); err != nil {
			rt.log.Warn(ctx, "closing health server failed", "error", err.Error())
		}
	}
	if rt.trace != nil {
		_ = rt.trace.Stop()
	}
	_ = rt.log.Sync()
}
