package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ashita-ai/kansoku/internal/telemetry"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := telemetry.Init(context.Background(), telemetry.Settings{ServiceName: "kansoku"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, telemetry.TraceID(context.Background()))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	id := telemetry.TraceID(ctx)
	assert.Len(t, id, 32)
	assert.Equal(t, span.SpanContext().TraceID().String(), id)
}
