package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"orange-sidecar/internal/config"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), config.ObservabilitySection{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.Enabled())

	// Tracking still works against the no-op globals
	_, done := p.TrackOperation(context.Background(), "plan", attribute.String("route", "/v1/plan"))
	done(nil)
	_, done = p.TrackOperation(context.Background(), "verify")
	done(errors.New("boom"))

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNilProviderIsUsable(t *testing.T) {
	var p *Provider
	_, done := p.TrackOperation(context.Background(), "plan")
	done(errors.New("boom"))
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderEnabled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// exporters dial lazily; an unreachable collector must not fail construction
	p, err := New(ctx, config.ObservabilitySection{
		Enabled:     true,
		Endpoint:    "127.0.0.1:1",
		Insecure:    true,
		SampleRate:  1.0,
		ServiceName: "orange-sidecar-test",
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, done := p.TrackOperation(ctx, "plan", attribute.String("route", "/v1/plan"))
	done(nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer shutdownCancel()
	assert.NoError(t, p.Shutdown(shutdownCtx))
}

func TestNewResourceMergesWithSDKDefaults(t *testing.T) {
	res, err := newResource("")
	require.NoError(t, err)
	assert.Equal(t, resource.Default().SchemaURL(), res.SchemaURL())

	name, ok := res.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "orange-sidecar", name.AsString())

	version, ok := res.Set().Value(attribute.Key("service.version"))
	require.True(t, ok)
	assert.Equal(t, ServiceVersion, version.AsString())
}

func TestTrackOperationRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tp := sdktrace.NewTracerProvider()

	p := &Provider{
		tracer:   tp.Tracer("test"),
		shutdown: []func(context.Context) error{tp.Shutdown, mp.Shutdown},
	}
	require.NoError(t, p.initInstruments(mp.Meter("test")))

	route := attribute.String("http.route", "POST /v1/plan")
	_, done := p.TrackOperation(context.Background(), "http.plan", route)
	done(nil)
	_, done = p.TrackOperation(context.Background(), "http.plan", route)
	done(errors.New("planner unavailable"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	totals := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch data := m.Data.(type) {
		case metricdata.Sum[int64]:
			for _, dp := range data.DataPoints {
				totals[m.Name] += dp.Value
			}
		case metricdata.Histogram[float64]:
			for _, dp := range data.DataPoints {
				totals[m.Name] += int64(dp.Count)
			}
		}
	}
	assert.Equal(t, map[string]int64{
		"orange.requests.total":   2,
		"orange.errors.total":     1,
		"orange.request.duration": 2,
	}, totals)
}

func TestTrackOperationRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	p := &Provider{tracer: tp.Tracer("test")}

	_, done := p.TrackOperation(context.Background(), "verify", attribute.String("session_id", "s1"))
	done(errors.New("verification exploded"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "verify", spans[0].Name())
	assert.Equal(t, "verification exploded", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), samplerFor(0.25).Description())
}
