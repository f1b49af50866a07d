package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs a tracer provider backed by an in-memory exporter.
func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("taskgraph")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		tracer = otel.Tracer("taskgraph")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})

	return exporter
}

func attrString(attrs []attribute.KeyValue, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.AsString()
		}
	}
	return ""
}

func TestStartRunSpan(t *testing.T) {
	exporter := setupTracingTest(t)

	_, span := StartRunSpan(context.Background(), "diamond", "run-123")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "taskgraph.run", spans[0].Name)
	assert.Equal(t, "diamond", attrString(spans[0].Attributes, "graph.name"))
	assert.Equal(t, "run-123", attrString(spans[0].Attributes, "run.id"))
}

func TestStartNodeSpan_ChildOfRun(t *testing.T) {
	exporter := setupTracingTest(t)

	ctx, runSpan := StartRunSpan(context.Background(), "g", "run-1")
	_, nodeSpan := StartNodeSpan(ctx, "fetch")
	nodeSpan.End()
	runSpan.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	var node, run *tracetest.SpanStub
	for i := range spans {
		switch spans[i].Name {
		case "taskgraph.node.fetch":
			node = &spans[i]
		case "taskgraph.run":
			run = &spans[i]
		}
	}
	require.NotNil(t, node)
	require.NotNil(t, run)
	assert.Equal(t, "fetch", attrString(node.Attributes, "node.id"))
	assert.Equal(t, run.SpanContext.SpanID(), node.Parent.SpanID())
}

func TestEndSpanWithError(t *testing.T) {
	exporter := setupTracingTest(t)

	t.Run("error status", func(t *testing.T) {
		exporter.Reset()
		_, span := StartNodeSpan(context.Background(), "bad")
		EndSpanWithError(span, errors.New("boom"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, "boom", spans[0].Status.Description)
		assert.NotEmpty(t, spans[0].Events) // RecordError adds an exception event
	})

	t.Run("ok status", func(t *testing.T) {
		exporter.Reset()
		_, span := StartNodeSpan(context.Background(), "good")
		EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	t.Run("nil span", func(t *testing.T) {
		assert.NotPanics(t, func() { EndSpanWithError(nil, errors.New("x")) })
	})
}

func TestSpanManager_AddSpanEvent(t *testing.T) {
	exporter := setupTracingTest(t)
	m := NewSpanManager()

	ctx, span := m.StartNodeSpan(context.Background(), "n")
	m.AddSpanEvent(ctx, "retry", attribute.Int("attempt", 1))
	m.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "retry", spans[0].Events[0].Name)
}

func TestNoopSpanManager(t *testing.T) {
	m := NoopSpanManager{}
	ctx := context.Background()

	got, span := m.StartRunSpan(ctx, "g", "r")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())

	got, span = m.StartNodeSpan(ctx, "n")
	assert.Equal(t, ctx, got)
	assert.NotPanics(t, func() {
		m.AddSpanEvent(got, "e")
		m.EndSpanWithError(span, errors.New("x"))
	})
}
