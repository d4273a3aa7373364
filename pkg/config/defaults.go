package config

import "time"

// Default values applied by applyDefaults before a config file or
// environment variables are layered on top.
const (
	DefaultPreset = "balanced"

	DefaultL0MaxEntries       = 10_000
	DefaultL1MaxEntries       = 50_000
	DefaultL1MaxBytes   int64 = 256 << 20
	DefaultL1TTLSeconds       = 600
	DefaultL2Dir              = ".codegraph/cache"
	DefaultL2Compression      = true
	DefaultEnableBackgroundL2 = true

	DefaultParallelUpdates      = true
	DefaultMaxCommitCostMS      = 500
	DefaultVectorSkipThreshold  = 0.05
	DefaultFullRebuildThreshold = 0.6
	DefaultLazyRebuildEnabled   = true
	DefaultMaxParsers           = 0 // 0 means runtime.NumCPU() at construction time.

	DefaultWatcherRecursive = true

	DefaultToleranceDurationPct   = 15.0
	DefaultToleranceThroughputPct = 15.0
	DefaultToleranceMemoryPct     = 20.0
	DefaultCountTolerance         = 0
)

// DefaultDebounceWindow is the time.Duration default for
// watcher.debounce_window; kept outside the const block since
// time.Duration constants must be typed individually.
const DefaultDebounceWindow = 200 * time.Millisecond

// DefaultExtensions are the source file extensions watched when a
// deployment does not configure its own whitelist.
var DefaultExtensions = []string{"go", "py", "js", "ts", "jsx", "tsx", "java", "rb", "rs", "c", "cpp", "h", "hpp"}

// DefaultIgnoreGlobs are directories universally excluded from
// watching regardless of language.
var DefaultIgnoreGlobs = []string{"**/.git/**", "**/node_modules/**", "**/vendor/**", "**/.codegraph/**"}
