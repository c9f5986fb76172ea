package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/commission/internal/config"
)

const defaultServiceName = "commission-engine"

// Config is the observability view of the process: identity for resource
// attributes, log shape, SQL logging and the OTLP exporter.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	SQLLogLevel      string
	SQLSlowThreshold time.Duration

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig layers observability env vars over the application config.
// Recompute runs are rare and expensive, so every trace is sampled unless
// OTEL_TRACES_SAMPLER_ARG says otherwise.
func LoadConfig(cfg config.Config) Config {
	env := envLookup(os.LookupEnv)

	out := Config{
		ServiceName: env.text("OTEL_SERVICE_NAME", cfg.AppName),
		Environment: env.text("DEPLOYMENT_ENV", cfg.Environment),
		Version:     env.text("SERVICE_VERSION", cfg.AppVersion),

		LogLevel:  env.lower("LOG_LEVEL", "info"),
		LogFormat: env.lower("LOG_FORMAT", "json"),

		SQLLogLevel:      env.lower("SQL_LOG_LEVEL", "warn"),
		SQLSlowThreshold: env.millis("SQL_SLOW_THRESHOLD_MS", 500*time.Millisecond),

		OtelEnabled:          env.flag("OTEL_ENABLED", false),
		OtelExporterEndpoint: env.text("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelExporterProtocol: env.lower("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		OtelSamplingRatio:    env.ratio("OTEL_TRACES_SAMPLER_ARG", 1.0),
	}
	out.OtelExporterProtocol = env.lower("OTEL_EXPORTER_OTLP_METRICS_PROTOCOL", out.OtelExporterProtocol)
	if out.ServiceName == "" {
		out.ServiceName = defaultServiceName
	}
	if out.LogLevel == "debug" && out.SQLLogLevel == "warn" {
		out.SQLLogLevel = "info"
	}
	return out
}

// Debug turns on development logging and gin debug mode.
func (c Config) Debug() bool {
	return c.LogLevel == "debug" || devEnvironments[strings.ToLower(c.Environment)]
}

var devEnvironments = map[string]bool{
	"dev":         true,
	"development": true,
	"local":       true,
	"test":        true,
}

// envLookup reads trimmed variables, falling back when unset, blank or unparsable.
type envLookup func(key string) (string, bool)

func (e envLookup) text(key, def string) string {
	if v, ok := e(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return strings.TrimSpace(def)
}

func (e envLookup) lower(key, def string) string {
	return strings.ToLower(e.text(key, def))
}

func (e envLookup) flag(key string, def bool) bool {
	switch e.lower(key, "") {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// ratio parses a sampling ratio and clamps it to [0, 1].
func (e envLookup) ratio(key string, def float64) float64 {
	v, err := strconv.ParseFloat(e.text(key, ""), 64)
	switch {
	case err != nil:
		return def
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func (e envLookup) millis(key string, def time.Duration) time.Duration {
	v, err := strconv.Atoi(e.text(key, ""))
	if err != nil || v < 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}
