// Package observability exports a span and RED metrics for every sidecar
// operation over OTLP gRPC.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"orange-sidecar/internal/config"
)

const instrumentationName = "orange.sidecar"

// ServiceVersion is reported as service.version and in the stdio handshake.
var ServiceVersion = "0.1.0"

// Provider is safe to use when nil or disabled; spans then go to the global
// no-op tracer and no metrics are recorded.
type Provider struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
	shutdown []func(context.Context) error
	logger   *slog.Logger
}

// New builds the exporters. They dial lazily, so an unreachable collector
// does not fail startup.
func New(ctx context.Context, cfg config.ObservabilitySection) (*Provider, error) {
	p := &Provider{logger: slog.Default().With("component", "observability")}

	if !cfg.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	spanExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spanExporter.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spanExporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	p.tracer = tp.Tracer(instrumentationName)
	p.shutdown = []func(context.Context) error{tp.Shutdown, mp.Shutdown}

	if err := p.initInstruments(mp.Meter(instrumentationName)); err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"endpoint", cfg.Endpoint,
		"sample_rate", cfg.SampleRate,
	)

	return p, nil
}

// newResource describes the service without pinning a semantic-convention
// schema, so it merges with whatever schema the SDK's default resource uses.
func newResource(serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = "orange-sidecar"
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", ServiceVersion),
	))
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func (p *Provider) initInstruments(meter metric.Meter) error {
	var err error
	if p.requests, err = meter.Int64Counter("orange.requests.total", metric.WithUnit("{request}")); err != nil {
		return err
	}
	if p.failures, err = meter.Int64Counter("orange.errors.total", metric.WithUnit("{error}")); err != nil {
		return err
	}
	p.latency, err = meter.Float64Histogram("orange.request.duration",
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	return err
}

// Enabled reports whether exporters are configured.
func (p *Provider) Enabled() bool {
	return p != nil && len(p.shutdown) > 0
}

// Shutdown flushes pending spans and metrics. Export failures are logged,
// not returned.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, stop := range p.shutdown {
		errs = append(errs, stop(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		p.logger.WarnContext(ctx, "observability shutdown incomplete", "error", err)
	}
	return nil
}

// TrackOperation starts a span for one operation and returns the function
// that ends it with the outcome.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	tracer := otel.Tracer(instrumentationName)
	if p != nil && p.tracer != nil {
		tracer = p.tracer
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(attrs...))
	set := metric.WithAttributes(attrs...)

	return ctx, func(err error) {
		defer span.End()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if !p.Enabled() || p.requests == nil {
			return
		}
		p.requests.Add(ctx, 1, set)
		p.latency.Record(ctx, time.Since(start).Seconds(), set)
		if err != nil {
			p.failures.Add(ctx, 1, set)
		}
	}
}
