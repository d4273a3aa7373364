package orchestrator_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/orchestrator"
	"github.com/codegraph-dev/codegraph/internal/stagedag"
)

func TestPoolRunExecutesEveryEnabledStage(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()
	plan, err := reg.Resolve(stagedag.PresetBalanced, nil)
	require.NoError(t, err)

	pool := orchestrator.NewPool(reg, orchestrator.PoolConfig{MaxParsers: 4})

	var calls int64

	for id := range plan.Enabled {
		pool.Register(id, func(_ context.Context, _ *orchestrator.Job, stage stagedag.ID, inputs []string) (string, error) {
			atomic.AddInt64(&calls, 1)

			return orchestrator.FingerprintInputs(append(inputs, string(stage))...), nil
		})
	}

	job := orchestrator.NewJob("repo-1", "snap-1", 0)

	outputs, err := pool.Run(context.Background(), job, plan, "config-v1")
	require.NoError(t, err)
	assert.Len(t, outputs, len(plan.Enabled))
	assert.Equal(t, int64(len(plan.Enabled)), atomic.LoadInt64(&calls))
}

func TestPoolRunMemoizesRepeatedStage(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()
	plan, err := reg.Resolve(stagedag.PresetFast, nil)
	require.NoError(t, err)

	pool := orchestrator.NewPool(reg, orchestrator.PoolConfig{MaxParsers: 2})

	var calls int64

	for id := range plan.Enabled {
		pool.Register(id, func(_ context.Context, _ *orchestrator.Job, stage stagedag.ID, inputs []string) (string, error) {
			atomic.AddInt64(&calls, 1)

			return orchestrator.FingerprintInputs(append(inputs, string(stage))...), nil
		})
	}

	job := orchestrator.NewJob("repo-1", "snap-1", 0)

	_, err = pool.Run(context.Background(), job, plan, "config-v1")
	require.NoError(t, err)

	firstCalls := atomic.LoadInt64(&calls)

	job2 := orchestrator.NewJob("repo-1", "snap-1", 0)
	_, err = pool.Run(context.Background(), job2, plan, "config-v1")
	require.NoError(t, err)

	assert.Equal(t, firstCalls, atomic.LoadInt64(&calls), "second identical run should hit memoized stage outputs")
}

func TestPoolRunPropagatesStageError(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()
	plan, err := reg.Resolve(stagedag.PresetFast, nil)
	require.NoError(t, err)

	pool := orchestrator.NewPool(reg, orchestrator.PoolConfig{MaxParsers: 2})

	for id := range plan.Enabled {
		id := id
		pool.Register(id, func(_ context.Context, _ *orchestrator.Job, stage stagedag.ID, _ []string) (string, error) {
			if stage == stagedag.StageChunking {
				return "", errs.New(errs.CategoryPermanent, string(stage), errors.New("boom"))
			}

			return string(id), nil
		})
	}

	job := orchestrator.NewJob("repo-1", "snap-1", 0)

	_, err = pool.Run(context.Background(), job, plan, "config-v1")
	require.Error(t, err)
	assert.Equal(t, errs.CategoryPermanent, errs.Classify(err))
}

func TestPoolRunSkipsUnregisteredStage(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()
	plan, err := reg.Resolve(stagedag.PresetFast, nil)
	require.NoError(t, err)

	pool := orchestrator.NewPool(reg, orchestrator.PoolConfig{MaxParsers: 2})

	job := orchestrator.NewJob("repo-1", "snap-1", 0)

	outputs, err := pool.Run(context.Background(), job, plan, "config-v1")
	require.NoError(t, err)
	assert.Len(t, outputs, len(plan.Enabled))
}
