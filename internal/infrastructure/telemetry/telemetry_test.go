package telemetry

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "ringminter-test", "dev", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestKafkaHeadersRoundTrip(t *testing.T) {
	_, err := InitTracer(context.Background(), "ringminter-test", "", "")
	require.NoError(t, err)

	traceID, hexID, ok := NewTraceID()
	require.True(t, ok)
	spanCtx, ok := NewSpanContext(traceID)
	require.True(t, ok)
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	headers := []kafka.Header{{Key: "x-source", Value: []byte("cli")}}
	InjectKafkaHeaders(ctx, &headers)
	require.Greater(t, len(headers), 1)

	extracted := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	require.True(t, extracted.IsValid())
	require.Equal(t, hexID, extracted.TraceID().String())
	require.True(t, extracted.IsRemote())
}

func TestContextWithTraceID(t *testing.T) {
	_, hexID, ok := NewTraceID()
	require.True(t, ok)

	ctx, ok := ContextWithTraceID(context.Background(), hexID)
	require.True(t, ok)
	require.Equal(t, hexID, trace.SpanContextFromContext(ctx).TraceID().String())

	_, ok = ContextWithTraceID(context.Background(), "nope")
	require.False(t, ok)
}
