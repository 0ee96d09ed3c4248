package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	tel, err := Init(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, tel.Tracer())
	assert.NotNil(t, tel.Meter())

	cfg := &Config{Enabled: false, ServiceName: "test-service"}
	tel, err = Init(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, tel.config)
	assert.Same(t, tel, Get())
}

func TestInit_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := &Config{
		Enabled:        true,
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		CollectorAddr:  "localhost:4317",
	}

	tel, err := Init(ctx, cfg)
	require.NoError(t, err)
	assert.NotNil(t, tel.tracerProvider)
	assert.NotNil(t, tel.meterProvider)
	assert.Equal(t, 15*time.Second, cfg.MetricInterval)
	assert.Equal(t, 1.0, cfg.SampleRatio)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	_ = Shutdown(shutdownCtx)
}

func TestStartSpan_Disabled(t *testing.T) {
	_, err := Init(context.Background(), &Config{ServiceName: "test-service"})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "test.span")
	defer span.End()

	assert.NotNil(t, ctx)
	// the no-op provider produces no trace id
	assert.Empty(t, GetTraceID(ctx))
}

func TestSpanHelpers_NoSpan(t *testing.T) {
	ctx := context.Background()
	_, span := StartSpan(ctx, "noop")

	assert.NotPanics(t, func() {
		AddSpanEvent(ctx, "event", attribute.String("k", "v"))
		SetSpanAttributes(ctx, attribute.Int("n", 1))
		RecordError(span, errors.New("boom"))
		RecordError(span, nil)
	})
}

func TestNewResource(t *testing.T) {
	res := newResource(&Config{ServiceName: "svc", ServiceVersion: "1.2.3", Environment: "test"})

	found := map[string]string{}
	for _, kv := range res.Attributes() {
		found[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "svc", found["service.name"])
	assert.Equal(t, "1.2.3", found["service.version"])
	assert.Equal(t, serviceNamespace, found["service.namespace"])
}
