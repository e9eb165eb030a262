package otel

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// MetricsConfig holds configuration for the OpenTelemetry metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active. Default: false (no-op).
	Enabled bool

	// ServiceName is the name of the service for metric attribution.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// ExporterType specifies which exporter to use.
	ExporterType ExporterType

	// OTLPEndpoint is the endpoint for OTLP exporters (e.g., "localhost:4317").
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool
}

// DefaultMetricsConfig returns a default configuration with metrics disabled.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "tvbridge",
		ExporterType: ExporterNone,
	}
}

// Metrics wraps OpenTelemetry metrics for the relay broker.
type Metrics struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	shutdown      func(context.Context) error

	// Metric instruments
	queueWait        metric.Float64Histogram
	roundTrip        metric.Float64Histogram
	commandsEnqueued metric.Int64Counter
	resultsPosted    metric.Int64Counter
	queueDepth       metric.Int64UpDownCounter
	staleTransitions metric.Int64Counter
}

var (
	globalMetrics   *Metrics
	globalMetricsMu sync.RWMutex
)

// NewMetrics creates a new Metrics instance with the given configuration.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{config: cfg}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		// Use no-op meter when disabled
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		if err := m.registerInstruments(); err != nil {
			return nil, err
		}
		return m, nil
	}

	exporter, err := m.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := m.createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}

	return m, nil
}

func (m *Metrics) createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

func (m *Metrics) createResource(cfg *MetricsConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
}

// registerInstruments creates and registers all metric instruments.
func (m *Metrics) registerInstruments() error {
	var err error

	m.queueWait, err = m.meter.Float64Histogram(
		"tvbridge.command.queue_wait",
		metric.WithDescription("Time commands spend in the ingress queue"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue wait histogram: %w", err)
	}

	m.roundTrip, err = m.meter.Float64Histogram(
		"tvbridge.command.round_trip",
		metric.WithDescription("Dispatch-to-result latency of commands"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create round trip histogram: %w", err)
	}

	m.commandsEnqueued, err = m.meter.Int64Counter(
		"tvbridge.commands.enqueued",
		metric.WithDescription("Count of commands accepted into the queue"),
	)
	if err != nil {
		return fmt.Errorf("failed to create enqueued counter: %w", err)
	}

	m.resultsPosted, err = m.meter.Int64Counter(
		"tvbridge.results.posted",
		metric.WithDescription("Count of results posted by the device"),
	)
	if err != nil {
		return fmt.Errorf("failed to create results counter: %w", err)
	}

	m.queueDepth, err = m.meter.Int64UpDownCounter(
		"tvbridge.queue.depth",
		metric.WithDescription("Number of commands waiting for dispatch"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue depth counter: %w", err)
	}

	m.staleTransitions, err = m.meter.Int64Counter(
		"tvbridge.device.stale_transitions",
		metric.WithDescription("Count of lazy connected-to-false transitions"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stale transition counter: %w", err)
	}

	return nil
}

// RecordEnqueued records an accepted command and a queue depth increase.
func (m *Metrics) RecordEnqueued(ctx context.Context, function string) {
	attrs := metric.WithAttributes(attribute.String("function", function))
	m.commandsEnqueued.Add(ctx, 1, attrs)
	m.queueDepth.Add(ctx, 1)
}

// RecordDispatched records commands leaving the queue with their wait time.
func (m *Metrics) RecordDispatched(ctx context.Context, count int, queueWaitMs int64) {
	m.queueDepth.Add(ctx, -int64(count))
	m.queueWait.Record(ctx, float64(queueWaitMs))
}

// RecordResultPosted records a device result and its round trip when known.
func (m *Metrics) RecordResultPosted(ctx context.Context, success bool, roundTripMs int64) {
	m.resultsPosted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	if roundTripMs > 0 {
		m.roundTrip.Record(ctx, float64(roundTripMs))
	}
}

// RecordStaleTransition records one lazy liveness eviction.
func (m *Metrics) RecordStaleTransition(ctx context.Context) {
	m.staleTransitions.Add(ctx, 1)
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// SetGlobalMetrics sets the global metrics instance.
func SetGlobalMetrics(m *Metrics) {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the global metrics instance, or a no-op
// instance if none has been set.
func GetGlobalMetrics() *Metrics {
	globalMetricsMu.RLock()
	defer globalMetricsMu.RUnlock()

	if globalMetrics == nil {
		m, _ := NewMetrics(context.Background(), nil)
		return m
	}
	return globalMetrics
}
