package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/observability"
)

func TestInitProducesUsableProviders(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig("codegraph-test", observability.ModeIndex)

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Logger)
	assert.NotNil(t, providers.Shutdown)

	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitSpanIsValid(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig("codegraph-test", observability.ModeIndex)

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	ctx, span := providers.Tracer.Start(context.Background(), "test-stage")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.True(t, span.SpanContext().IsValid())
}

func TestInitDebugTraceAlwaysSamples(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig("codegraph-test", observability.ModeWatch)
	cfg.DebugTrace = true
	cfg.ShutdownTimeoutSec = 1

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	_, span := providers.Tracer.Start(context.Background(), "debug-stage")
	defer span.End()

	assert.True(t, span.IsRecording())
}
