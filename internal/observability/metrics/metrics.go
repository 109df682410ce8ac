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

// Metrics exposes org chart instruments.
type Metrics struct {
	treeBuilds   metric.Int64Counter
	treeMembers  metric.Int64Histogram
	reparents    metric.Int64Counter
	memberWrites metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
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

// New creates the instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "orgchart"
	}
	meter := provider.Meter(name)

	treeBuilds, err := meter.Int64Counter("orgchart_tree_builds_total")
	if err != nil {
		return nil, err
	}
	treeMembers, err := meter.Int64Histogram("orgchart_tree_members")
	if err != nil {
		return nil, err
	}
	reparents, err := meter.Int64Counter("orgchart_reparent_total")
	if err != nil {
		return nil, err
	}
	memberWrites, err := meter.Int64Counter("orgchart_member_writes_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		treeBuilds:   treeBuilds,
		treeMembers:  treeMembers,
		reparents:    reparents,
		memberWrites: memberWrites,
	}, nil
}

// NewNoop returns instruments backed by a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordTreeBuild counts a derived tree and how many members it covered.
// excluded reports whether any member had to be dropped.
func (m *Metrics) RecordTreeBuild(ctx context.Context, members int, excluded bool) {
	if m == nil {
		return
	}
	result := "ok"
	if excluded {
		result = "degraded"
	}
	attrs := FilterAttributes(attribute.String("result", result))
	m.treeBuilds.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.treeMembers.Record(ctx, int64(members))
}

// RecordReparent counts reparent requests by outcome, e.g. "applied" or
// "cycle_detected".
func (m *Metrics) RecordReparent(ctx context.Context, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.reparents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMemberWrite counts member mutations by operation.
func (m *Metrics) RecordMemberWrite(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.memberWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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
	"result":    {},
	"operation": {},
	"role":      {},
	"route":     {},
}

// FilterAttributes strips labels outside the allow-list; member ids and
// emails must never become metric dimensions.
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
