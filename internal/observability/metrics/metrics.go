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

	"github.com/johnanishgitc/salesdashboard/internal/config"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	syncChunks       metric.Int64Counter
	syncChunkErrors  metric.Int64Counter
	vouchersIngested metric.Int64Counter
	rebuilds         metric.Int64Counter
	rebuildDuration  metric.Float64Histogram
	cardFailures     metric.Int64Counter
}

// Module wires the meter provider and instruments into the fx graph.
var Module = fx.Module("metrics",
	fx.Provide(newConfig),
	fx.Provide(NewProvider),
	fx.Provide(New),
)

func newConfig(cfg config.Config) Config {
	return Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.AppName,
		Environment:      cfg.Environment,
	}
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
		name = "salesdashboard"
	}
	meter := provider.Meter(name)

	syncChunks, err := meter.Int64Counter("salesdashboard_sync_chunks_total")
	if err != nil {
		return nil, err
	}
	syncChunkErrors, err := meter.Int64Counter("salesdashboard_sync_chunk_errors_total")
	if err != nil {
		return nil, err
	}
	vouchersIngested, err := meter.Int64Counter("salesdashboard_vouchers_ingested_total")
	if err != nil {
		return nil, err
	}
	rebuilds, err := meter.Int64Counter("salesdashboard_aggregate_rebuilds_total")
	if err != nil {
		return nil, err
	}
	rebuildDuration, err := meter.Float64Histogram("salesdashboard_aggregate_rebuild_seconds")
	if err != nil {
		return nil, err
	}
	cardFailures, err := meter.Int64Counter("salesdashboard_card_compute_failures_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		syncChunks:       syncChunks,
		syncChunkErrors:  syncChunkErrors,
		vouchersIngested: vouchersIngested,
		rebuilds:         rebuilds,
		rebuildDuration:  rebuildDuration,
		cardFailures:     cardFailures,
	}, nil
}

// RecordSyncChunk increments per-chunk sync counts.
func (m *Metrics) RecordSyncChunk(ctx context.Context, mode string, failed bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("mode", strings.TrimSpace(mode)))
	m.syncChunks.Add(ctx, 1, metric.WithAttributes(attrs...))
	if failed {
		m.syncChunkErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordVouchersIngested increments the ingested voucher count.
func (m *Metrics) RecordVouchersIngested(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.vouchersIngested.Add(ctx, int64(count))
}

// RecordRebuild records an aggregate rebuild and its duration.
func (m *Metrics) RecordRebuild(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := FilterAttributes(attribute.String("status", status))
	m.rebuilds.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.rebuildDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCardFailure increments card compute failure counts.
func (m *Metrics) RecordCardFailure(ctx context.Context, chartType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("chart_type", strings.TrimSpace(chartType)))
	m.cardFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"mode":        {},
	"status":      {},
	"chart_type":  {},
	"status_code": {},
	"endpoint":    {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// Tenant guids in particular must never become metric labels.
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
