package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/config"
)

func validConfig() config.Config {
	return config.Config{
		Preset: "balanced",
		Cache: config.CacheConfig{
			L0MaxEntries: 10,
			L1MaxEntries: 10,
			L1MaxBytes:   1024,
		},
		Orchestrator: config.OrchestratorConfig{
			MaxCommitCostMS:      100,
			VectorSkipThreshold:  0.1,
			FullRebuildThreshold: 0.5,
		},
		Watcher: config.WatcherConfig{
			DebounceWindow: 100 * time.Millisecond,
		},
		Tolerance: config.ToleranceConfig{
			DurationPct:   10,
			ThroughputPct: 10,
			MemoryPct:     10,
		},
	}
}

func TestValidateAcceptsDefaultShapedConfig(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownPreset(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Preset = "extreme"

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidPreset)
}

func TestValidateRejectsNonPositiveCacheSizes(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Cache.L1MaxEntries = 0

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidL1MaxEntries)
}

func TestValidateRejectsOutOfRangeThresholds(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Orchestrator.VectorSkipThreshold = 1.5

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidVectorSkipThreshold)
}

func TestValidateRejectsNonPositiveDebounceWindow(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Watcher.DebounceWindow = 0

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidDebounceWindow)
}

func TestLoadConfigAppliesDefaultsWithNoFile(t *testing.T) {
	t.Parallel()

	t.Chdir(t.TempDir())

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPreset, cfg.Preset)
	assert.Equal(t, config.DefaultL0MaxEntries, cfg.Cache.L0MaxEntries)
	assert.True(t, cfg.Watcher.Recursive)
	assert.Equal(t, config.DefaultDebounceWindow, cfg.Watcher.DebounceWindow)
}
