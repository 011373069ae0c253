// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Tokens    TokensConfig    `mapstructure:"tokens"`
	Pools     PoolsConfig     `mapstructure:"pools"`
	Arbitrage ArbitrageConfig `mapstructure:"arbitrage"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ChainConfig holds the accounts taking part in the deployment.
type ChainConfig struct {
	ChainID  uint64 `mapstructure:"chain_id"`
	Deployer string `mapstructure:"deployer"`
	Engine   string `mapstructure:"engine"`
	// Persist checkpoints balances and reserves next to the execution history.
	Persist bool `mapstructure:"persist"`
}

// DeployerAddress returns the deployer as common.Address.
func (c *ChainConfig) DeployerAddress() common.Address {
	return common.HexToAddress(c.Deployer)
}

// EngineAddress returns the engine custody account as common.Address.
func (c *ChainConfig) EngineAddress() common.Address {
	return common.HexToAddress(c.Engine)
}

// TokenConfig describes one token of the pair.
type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Decimals uint8  `mapstructure:"decimals"`
	Supply   string `mapstructure:"supply"`
}

// TokensConfig holds both tokens.
type TokensConfig struct {
	A TokenConfig `mapstructure:"a"`
	B TokenConfig `mapstructure:"b"`
}

// PoolConfig describes one constant-product pool and its seed liquidity in whole tokens.
type PoolConfig struct {
	ID                string `mapstructure:"id"`
	Address           string `mapstructure:"address"`
	FeeBps            uint32 `mapstructure:"fee_bps"`
	SeedA             string `mapstructure:"seed_a"`
	SeedB             string `mapstructure:"seed_b"`
	RatioToleranceBps uint32 `mapstructure:"ratio_tolerance_bps"`
}

// PoolsConfig holds both pools of the pair.
type PoolsConfig struct {
	A PoolConfig `mapstructure:"a"`
	B PoolConfig `mapstructure:"b"`
}

// BreakerConfig tunes the auto-execution circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// ArbitrageConfig holds engine and detector settings.
type ArbitrageConfig struct {
	InputAsset             string        `mapstructure:"input_asset"`
	TradeSizes             []string      `mapstructure:"trade_sizes"`
	ScanInterval           time.Duration `mapstructure:"scan_interval"`
	AutoExecute            bool          `mapstructure:"auto_execute"`
	MaxExecutionsPerMinute int           `mapstructure:"max_executions_per_minute"`
	QuoteCacheSize         int           `mapstructure:"quote_cache_size"`
	OptimizerSteps         int           `mapstructure:"optimizer_steps"`
	HistoryPath            string        `mapstructure:"history_path"`
	Breaker                BreakerConfig `mapstructure:"breaker"`
}

// TradeSizesDecimal returns trade sizes as decimal.Decimal slice.
func (c *ArbitrageConfig) TradeSizesDecimal() ([]decimal.Decimal, error) {
	result := make([]decimal.Decimal, 0, len(c.TradeSizes))
	for _, s := range c.TradeSizes {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid trade size %q: %w", s, err)
		}
		result = append(result, d)
	}
	return result, nil
}

// FeedConfig configures the Redis execution feed. An empty Addr disables it.
type FeedConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// Enabled reports whether a Redis address is configured.
func (c *FeedConfig) Enabled() bool {
	return c.Addr != ""
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Chain
	v.BindEnv("chain.chain_id", "ARB_CHAIN_ID", "CHAIN_ID")
	v.BindEnv("chain.deployer", "ARB_DEPLOYER", "DEPLOYER_ADDRESS")
	v.BindEnv("chain.engine", "ARB_ENGINE", "BOT_ADDRESS")
	v.BindEnv("chain.persist", "ARB_PERSIST")

	// Tokens
	v.BindEnv("tokens.a.address", "ARB_TOKEN_A", "TOKEN_A_ADDRESS")
	v.BindEnv("tokens.b.address", "ARB_TOKEN_B", "TOKEN_B_ADDRESS")

	// Pools
	v.BindEnv("pools.a.address", "ARB_POOL_A", "EXCHANGE_A_ADDRESS")
	v.BindEnv("pools.b.address", "ARB_POOL_B", "EXCHANGE_B_ADDRESS")
	v.BindEnv("pools.a.fee_bps", "ARB_POOL_A_FEE_BPS")
	v.BindEnv("pools.b.fee_bps", "ARB_POOL_B_FEE_BPS")

	// Arbitrage
	v.BindEnv("arbitrage.input_asset", "ARB_INPUT_ASSET")
	v.BindEnv("arbitrage.auto_execute", "ARB_AUTO_EXECUTE")
	v.BindEnv("arbitrage.history_path", "ARB_HISTORY_PATH")

	// Feed
	v.BindEnv("feed.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("feed.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "ARB_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "pair-arbitrage")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Local hardhat deployment
	v.SetDefault("chain.chain_id", 31337)
	v.SetDefault("chain.deployer", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	v.SetDefault("chain.engine", "0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9")
	v.SetDefault("chain.persist", true)

	v.SetDefault("tokens.a.address", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	v.SetDefault("tokens.a.symbol", "TKA")
	v.SetDefault("tokens.a.name", "Token A")
	v.SetDefault("tokens.a.decimals", 18)
	v.SetDefault("tokens.a.supply", "1000000")
	v.SetDefault("tokens.b.address", "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	v.SetDefault("tokens.b.symbol", "TKB")
	v.SetDefault("tokens.b.name", "Token B")
	v.SetDefault("tokens.b.decimals", 18)
	v.SetDefault("tokens.b.supply", "1000000")

	// Pool A trades 1:3, pool B trades 3:1
	v.SetDefault("pools.a.id", "exchange-a")
	v.SetDefault("pools.a.address", "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	v.SetDefault("pools.a.fee_bps", 30)
	v.SetDefault("pools.a.seed_a", "1000")
	v.SetDefault("pools.a.seed_b", "3000")
	v.SetDefault("pools.a.ratio_tolerance_bps", 0)
	v.SetDefault("pools.b.id", "exchange-b")
	v.SetDefault("pools.b.address", "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9")
	v.SetDefault("pools.b.fee_bps", 30)
	v.SetDefault("pools.b.seed_a", "3000")
	v.SetDefault("pools.b.seed_b", "1000")
	v.SetDefault("pools.b.ratio_tolerance_bps", 0)

	// Arbitrage defaults
	v.SetDefault("arbitrage.input_asset", "a")
	v.SetDefault("arbitrage.trade_sizes", []string{"1", "10", "100"})
	v.SetDefault("arbitrage.scan_interval", "2s")
	v.SetDefault("arbitrage.auto_execute", false)
	v.SetDefault("arbitrage.max_executions_per_minute", 12)
	v.SetDefault("arbitrage.quote_cache_size", 1024)
	v.SetDefault("arbitrage.optimizer_steps", 512)
	v.SetDefault("arbitrage.history_path", "data/history.db")
	v.SetDefault("arbitrage.breaker.max_failures", 3)
	v.SetDefault("arbitrage.breaker.open_timeout", "30s")

	// Feed defaults (disabled without an address)
	v.SetDefault("feed.db", 0)
	v.SetDefault("feed.stream", "arbitrage:executions")
	v.SetDefault("feed.max_len", 10000)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "pair-arbitrage")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for name, addr := range map[string]string{
		"chain.deployer":   c.Chain.Deployer,
		"chain.engine":     c.Chain.Engine,
		"tokens.a.address": c.Tokens.A.Address,
		"tokens.b.address": c.Tokens.B.Address,
		"pools.a.address":  c.Pools.A.Address,
		"pools.b.address":  c.Pools.B.Address,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s: %q", name, addr)
		}
	}
	if strings.EqualFold(c.Tokens.A.Address, c.Tokens.B.Address) {
		return fmt.Errorf("tokens.a and tokens.b must differ")
	}
	if c.Pools.A.ID == "" || c.Pools.B.ID == "" || c.Pools.A.ID == c.Pools.B.ID {
		return fmt.Errorf("pools need distinct ids")
	}
	for _, p := range []PoolConfig{c.Pools.A, c.Pools.B} {
		if p.FeeBps >= 10_000 {
			return fmt.Errorf("pools.%s.fee_bps must be below 10000", p.ID)
		}
		if p.RatioToleranceBps > 10_000 {
			return fmt.Errorf("pools.%s.ratio_tolerance_bps must be at most 10000", p.ID)
		}
	}
	switch strings.ToLower(c.Arbitrage.InputAsset) {
	case "a", "b":
	default:
		return fmt.Errorf("arbitrage.input_asset must be a or b, got %q", c.Arbitrage.InputAsset)
	}
	if _, err := c.Arbitrage.TradeSizesDecimal(); err != nil {
		return err
	}
	if c.Arbitrage.ScanInterval <= 0 {
		return fmt.Errorf("arbitrage.scan_interval must be positive")
	}
	if c.Arbitrage.QuoteCacheSize <= 0 {
		return fmt.Errorf("arbitrage.quote_cache_size must be positive")
	}
	return nil
}
