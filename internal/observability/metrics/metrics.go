package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the commission engine instruments.
type Metrics struct {
	recomputes     metric.Int64Counter
	recomputeUsers metric.Int64Counter
	turnRejections metric.Int64Counter
	ledgerEvents   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "commission"
	}
	meter := provider.Meter(name)

	recomputes, err := meter.Int64Counter("commission_recompute_total")
	if err != nil {
		return nil, err
	}
	recomputeUsers, err := meter.Int64Counter("commission_recompute_users_total")
	if err != nil {
		return nil, err
	}
	turnRejections, err := meter.Int64Counter("commission_turn_rejections_total")
	if err != nil {
		return nil, err
	}
	ledgerEvents, err := meter.Int64Counter("commission_ledger_events_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		recomputes:     recomputes,
		recomputeUsers: recomputeUsers,
		turnRejections: turnRejections,
		ledgerEvents:   ledgerEvents,
	}, nil
}

// RecordRecompute counts one Aggregation Writer invocation and the users it touched.
func (m *Metrics) RecordRecompute(ctx context.Context, mode, status string, users int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("mode", strings.TrimSpace(mode)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.recomputes.Add(ctx, 1, metric.WithAttributes(attrs...))
	if users > 0 {
		m.recomputeUsers.Add(ctx, int64(users), metric.WithAttributes(attrs...))
	}
}

func (m *Metrics) RecordTurnRejection(ctx context.Context) {
	if m == nil {
		return
	}
	m.turnRejections.Add(ctx, 1)
}

func (m *Metrics) RecordLedgerEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("status", strings.TrimSpace(outcome)),
	)
	m.ledgerEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"mode":       {},
	"status":     {},
	"event_type": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// Budget and user ids never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
