package observability

import (
	"testing"
	"time"

	"github.com/smallbiznis/commission/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SQL_LOG_LEVEL", "")
	t.Setenv("SQL_SLOW_THRESHOLD_MS", "")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")

	cfg := LoadConfig(config.Config{Environment: "production", AppVersion: "1.2.0"})
	assert.Equal(t, defaultServiceName, cfg.ServiceName)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "warn", cfg.SQLLogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.SQLSlowThreshold)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", " commission-worker ")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SQL_LOG_LEVEL", "")
	t.Setenv("SQL_SLOW_THRESHOLD_MS", "not-a-number")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "7")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_PROTOCOL", "HTTP")

	cfg := LoadConfig(config.Config{AppName: "commission", Environment: "production"})
	assert.Equal(t, "commission-worker", cfg.ServiceName)
	assert.Equal(t, "info", cfg.SQLLogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.SQLSlowThreshold)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.True(t, cfg.Debug())
}

func TestDebugFollowsEnvironment(t *testing.T) {
	assert.True(t, Config{LogLevel: "info", Environment: "Local"}.Debug())
	assert.False(t, Config{LogLevel: "info", Environment: "staging"}.Debug())
}
