// Package config is the top-level configuration surface for codegraph:
// the stage preset, per-stage overrides, and the cache/orchestrator/
// watcher/tolerance sections names, loaded via viper from a config
// file, environment variables, and built-in defaults.
package config

import (
	"errors"
	"time"
)

// Config is the top-level configuration struct. Field tags use
// mapstructure for viper unmarshalling.
type Config struct {
	Preset string `mapstructure:"preset"`
	StageOverrides map[string]bool `mapstructure:"stage_overrides"`
	Cache CacheConfig `mapstructure:"cache"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Watcher WatcherConfig `mapstructure:"watcher"`
	Tolerance ToleranceConfig `mapstructure:"tolerance"`
}

// CacheConfig mirrors the `cache: {...}` block.
type CacheConfig struct {
	L0MaxEntries int `mapstructure:"l0_max_entries"`
	L1MaxEntries int `mapstructure:"l1_max_entries"`
	L1MaxBytes int64 `mapstructure:"l1_max_bytes"`
	L1TTLSeconds int `mapstructure:"l1_ttl"`
	L2Dir string `mapstructure:"l2_dir"`
	L2Compression bool `mapstructure:"l2_compression"`
	EnableBackgroundL2 bool `mapstructure:"enable_background_l2"`
}

// OrchestratorConfig mirrors the `orchestrator: {...}` block.
type OrchestratorConfig struct {
	ParallelUpdates bool `mapstructure:"parallel_updates"`
	MaxCommitCostMS int `mapstructure:"max_commit_cost_ms"`
	VectorSkipThreshold float64 `mapstructure:"vector_skip_threshold"`
	FullRebuildThreshold float64 `mapstructure:"full_rebuild_threshold"`
	LazyRebuildEnabled bool `mapstructure:"lazy_rebuild_enabled"`
	MaxParsers int `mapstructure:"max_parsers"`
}

// WatcherConfig mirrors the `watcher: {...}` block exactly: `debounce_window`,
// `recursive`, `extensions[]`, `ignore_globs[]`.
type WatcherConfig struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	Recursive bool `mapstructure:"recursive"`
	Extensions []string `mapstructure:"extensions"`
	IgnoreGlobs []string `mapstructure:"ignore_globs"`
}

// ToleranceConfig mirrors the `tolerance: {...}` block, used by the
// benchmark validation harness to compare measured runs to a baseline.
type ToleranceConfig struct {
	DurationPct float64 `mapstructure:"duration_pct"`
	ThroughputPct float64 `mapstructure:"throughput_pct"`
	MemoryPct float64 `mapstructure:"memory_pct"`
	CountTolerance int `mapstructure:"count_tolerance"`
}

// Sentinel validation errors.
var (
	ErrInvalidPreset = errors.New("preset must be one of fast, balanced, thorough")
	ErrInvalidL0MaxEntries = errors.New("cache.l0_max_entries must be positive")
	ErrInvalidL1MaxEntries = errors.New("cache.l1_max_entries must be positive")
	ErrInvalidL1MaxBytes = errors.New("cache.l1_max_bytes must be positive")
	ErrInvalidMaxCommitCost = errors.New("orchestrator.max_commit_cost_ms must be non-negative")
	ErrInvalidVectorSkipThreshold = errors.New("orchestrator.vector_skip_threshold must be between 0 and 1")
	ErrInvalidFullRebuildThreshold = errors.New("orchestrator.full_rebuild_threshold must be between 0 and 1")
	ErrInvalidDebounceWindow = errors.New("watcher.debounce_window must be positive")
	ErrInvalidTolerancePct = errors.New("tolerance percentages must be non-negative")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if err := c.validatePreset(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.validateOrchestrator(); err != nil {
		return err
	}

	if err := c.validateWatcher(); err != nil {
		return err
	}

	return c.validateTolerance()
}

func (c *Config) validatePreset() error {
	switch c.Preset {
	case "fast", "balanced", "thorough":
		return nil
	default:
		return ErrInvalidPreset
	}
}

func (c *Config) validateCache() error {
	if c.Cache.L0MaxEntries <= 0 {
		return ErrInvalidL0MaxEntries
	}

	if c.Cache.L1MaxEntries <= 0 {
		return ErrInvalidL1MaxEntries
	}

	if c.Cache.L1MaxBytes <= 0 {
		return ErrInvalidL1MaxBytes
	}

	return nil
}

func (c *Config) validateOrchestrator() error {
	if c.Orchestrator.MaxCommitCostMS < 0 {
		return ErrInvalidMaxCommitCost
	}

	if c.Orchestrator.VectorSkipThreshold < 0 || c.Orchestrator.VectorSkipThreshold > 1 {
		return ErrInvalidVectorSkipThreshold
	}

	if c.Orchestrator.FullRebuildThreshold < 0 || c.Orchestrator.FullRebuildThreshold > 1 {
		return ErrInvalidFullRebuildThreshold
	}

	return nil
}

func (c *Config) validateWatcher() error {
	if c.Watcher.DebounceWindow <= 0 {
		return ErrInvalidDebounceWindow
	}

	return nil
}

func (c *Config) validateTolerance() error {
	if c.Tolerance.DurationPct < 0 || c.Tolerance.ThroughputPct < 0 || c.Tolerance.MemoryPct < 0 {
		return ErrInvalidTolerancePct
	}

	return nil
}
