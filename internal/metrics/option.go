package metrics

type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OtelCollector      Provider = "otlp"
)

type Config struct {
	ServiceName string
	Version     string
	Provider    []ProviderCfg
}

// ProviderCfg selects one reader. Endpoint and Headers apply to OtelCollector only.
type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

type OptionFn func(config Config) Config

func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)
		return config
	}
}

// WithPrometheus registers the pull exporter scraped by ServePrometheusMetrics.
func WithPrometheus() OptionFn {
	return WithProviderConfig(ProviderCfg{Provider: PrometheusProvider})
}

// WithCollector pushes metrics to an OTLP gRPC collector. An empty endpoint is ignored.
func WithCollector(endpoint string, headers map[string]string) OptionFn {
	return func(config Config) Config {
		if endpoint == "" {
			return config
		}
		config.Provider = append(config.Provider, ProviderCfg{
			Provider: OtelCollector,
			Endpoint: endpoint,
			Headers:  headers,
			Insecure: true,
		})
		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

func WithVersion(version string) OptionFn {
	return func(config Config) Config {
		config.Version = version
		return config
	}
}

type PromServerConfig struct {
	port int
	path string
}

type PromOptionFn func(config PromServerConfig) PromServerConfig

func WithPort(port int) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		if port > 0 {
			config.port = port
		}
		return config
	}
}

func WithPath(path string) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		config.path = path
		return config
	}
}
