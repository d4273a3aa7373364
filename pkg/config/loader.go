package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".codegraph"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for codegraph settings.
const envPrefix = "CODEGRAPH"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file
// path. Otherwise, the config file is searched in CWD and $HOME.
// A missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))

	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("preset", DefaultPreset)
	v.SetDefault("stage_overrides", map[string]bool{})

	v.SetDefault("cache.l0_max_entries", DefaultL0MaxEntries)
	v.SetDefault("cache.l1_max_entries", DefaultL1MaxEntries)
	v.SetDefault("cache.l1_max_bytes", DefaultL1MaxBytes)
	v.SetDefault("cache.l1_ttl", DefaultL1TTLSeconds)
	v.SetDefault("cache.l2_dir", DefaultL2Dir)
	v.SetDefault("cache.l2_compression", DefaultL2Compression)
	v.SetDefault("cache.enable_background_l2", DefaultEnableBackgroundL2)

	v.SetDefault("orchestrator.parallel_updates", DefaultParallelUpdates)
	v.SetDefault("orchestrator.max_commit_cost_ms", DefaultMaxCommitCostMS)
	v.SetDefault("orchestrator.vector_skip_threshold", DefaultVectorSkipThreshold)
	v.SetDefault("orchestrator.full_rebuild_threshold", DefaultFullRebuildThreshold)
	v.SetDefault("orchestrator.lazy_rebuild_enabled", DefaultLazyRebuildEnabled)
	v.SetDefault("orchestrator.max_parsers", DefaultMaxParsers)

	v.SetDefault("watcher.debounce_window", DefaultDebounceWindow)
	v.SetDefault("watcher.recursive", DefaultWatcherRecursive)
	v.SetDefault("watcher.extensions", DefaultExtensions)
	v.SetDefault("watcher.ignore_globs", DefaultIgnoreGlobs)

	v.SetDefault("tolerance.duration_pct", DefaultToleranceDurationPct)
	v.SetDefault("tolerance.throughput_pct", DefaultToleranceThroughputPct)
	v.SetDefault("tolerance.memory_pct", DefaultToleranceMemoryPct)
	v.SetDefault("tolerance.count_tolerance", DefaultCountTolerance)
}
