package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/codegraph-dev/codegraph/pkg/observability"
)

func TestTracingHandlerInjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := observability.NewTracingHandler(inner, "codegraph", "test", observability.ModeIndex)
	logger := slog.New(handler)

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "stage completed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "codegraph", record["service"])
	assert.Equal(t, "test", record["env"])
	assert.Equal(t, "index", record["mode"])
}

func TestTracingHandlerNoTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := observability.NewTracingHandler(inner, "codegraph", "", observability.ModeWatch)
	logger := slog.New(handler)

	logger.InfoContext(context.Background(), "no span")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	_, hasTraceID := record["trace_id"]
	assert.False(t, hasTraceID)
	assert.Equal(t, "codegraph", record["service"])
	assert.Equal(t, "watch", record["mode"])
}

func TestTracingHandlerWithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := observability.NewTracingHandler(inner, "codegraph", "", observability.ModeIndex)
	logger := slog.New(handler)

	grouped := logger.WithGroup("stage")
	grouped.InfoContext(context.Background(), "done", slog.String("id", "L1_ir_build"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "codegraph", record["service"])

	stage, ok := record["stage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "L1_ir_build", stage["id"])
}

func TestTracingHandlerWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := observability.NewTracingHandler(inner, "codegraph", "", observability.ModeIndex)
	logger := slog.New(handler)

	withAttrs := logger.With(slog.String("op", "apply_delta"))
	withAttrs.InfoContext(context.Background(), "started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "apply_delta", record["op"])
	assert.Equal(t, "codegraph", record["service"])
}
