// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/pair-arbitrage/internal/asset"
	"github.com/fd1az/pair-arbitrage/internal/config"
	"github.com/fd1az/pair-arbitrage/internal/di"
	"github.com/fd1az/pair-arbitrage/internal/health"
	"github.com/fd1az/pair-arbitrage/internal/logger"
)

// Monolith gives modules access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	AssetRegistry() *asset.Registry
	Health() *health.Server
	Services() di.ServiceRegistry
}

// Module is a bounded context that registers services and starts up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	assetRegistry *asset.Registry
	health        *health.Server
	container     di.Container
}

// New builds the container with the configured token pair registered.
func New(cfg *config.Config, log logger.LoggerInterface, version string) (*app, error) {
	registry, err := RegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	healthServer := health.NewServer(cfg.Telemetry.HealthPort, version, log)

	container := di.NewContainer()
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("assetRegistry", registry)
	container.Register("health", healthServer)

	return &app{
		config:        cfg,
		logger:        log,
		assetRegistry: registry,
		health:        healthServer,
		container:     container,
	}, nil
}

// RegistryFromConfig registers tokens.a and tokens.b.
func RegistryFromConfig(cfg *config.Config) (*asset.Registry, error) {
	registry := asset.NewRegistry()
	for _, tc := range []config.TokenConfig{cfg.Tokens.A, cfg.Tokens.B} {
		if !common.IsHexAddress(tc.Address) {
			return nil, fmt.Errorf("token %s: invalid address %q", tc.Symbol, tc.Address)
		}
		id := asset.NewAssetID(cfg.Chain.ChainID, common.HexToAddress(tc.Address))
		registry.Register(asset.NewAsset(id, tc.Symbol, tc.Name, tc.Decimals))
	}
	return registry, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container exposes the container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts modules in order, stopping at the first failure.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) Close(ctx context.Context) error {
	return a.health.Stop(ctx)
}
