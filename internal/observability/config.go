package observability

import (
	"strings"

	"github.com/smallbiznis/salesledger/internal/config"
	"github.com/spf13/viper"
)

const defaultSamplingRatio = 0.1

// Config holds the logging, tracing and ops server settings.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel    string
	LogFormat   string
	LogSampling bool

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	// MetricsAddr is where the ops server exposes /metrics and /health.
	MetricsAddr string
}

// LoadConfig reads observability settings from the environment, falling back
// to the application config.
func LoadConfig(cfg config.Config) Config {
	env := viper.New()
	env.AutomaticEnv()
	return loadConfig(cfg, env)
}

func loadConfig(cfg config.Config, env *viper.Viper) Config {
	env.SetDefault("DEPLOYMENT_ENV", cfg.Environment)
	env.SetDefault("SERVICE_VERSION", cfg.AppVersion)
	env.SetDefault("LOG_LEVEL", "info")
	env.SetDefault("LOG_FORMAT", "json")
	env.SetDefault("LOG_SAMPLING", false)
	env.SetDefault("OTEL_ENABLED", false)
	env.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	env.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	env.SetDefault("OTEL_SAMPLING_RATIO", defaultSamplingRatio)
	env.SetDefault("METRICS_ADDR", ":9090")

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "salesledger"
	}

	protocol := env.GetString("OTEL_EXPORTER_OTLP_PROTOCOL")
	if traces := strings.TrimSpace(env.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}

	ratio := env.GetFloat64("OTEL_SAMPLING_RATIO")
	if ratio < 0 || ratio > 1 {
		ratio = defaultSamplingRatio
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(env.GetString("DEPLOYMENT_ENV")),
		Version:              strings.TrimSpace(env.GetString("SERVICE_VERSION")),
		LogLevel:             normalize(env.GetString("LOG_LEVEL")),
		LogFormat:            normalize(env.GetString("LOG_FORMAT")),
		LogSampling:          env.GetBool("LOG_SAMPLING"),
		OtelEnabled:          env.GetBool("OTEL_ENABLED"),
		OtelExporterEndpoint: strings.TrimSpace(env.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OtelExporterProtocol: normalize(protocol),
		OtelSamplingRatio:    ratio,
		MetricsAddr:          strings.TrimSpace(env.GetString("METRICS_ADDR")),
	}
}

// Debug reports whether verbose logging applies, either by level or because
// the deployment is a development one.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch normalize(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
