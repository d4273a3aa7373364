// Package observability wires structured logging, tracing, and metrics
// for the codegraph indexing engine: a trace-context-injecting slog
// handler, OpenTelemetry tracer/meter providers, and the RED metric
// instruments the orchestrator and query engine record against.
package observability

import "log/slog"

const defaultShutdownTimeoutSec = 5

// AppMode distinguishes the entry point codegraph was invoked as, so
// logs and traces can be filtered by surface without a separate field
// per call site.
type AppMode string

// Application modes.
const (
	ModeIndex AppMode = "index"
	ModeWatch AppMode = "watch"
	ModeQuery AppMode = "query"
	ModeServe AppMode = "serve"
)

// Config configures Init. Spans are sampled in-process for
// trace_id/span_id log correlation: DebugTrace samples every span,
// otherwise OTEL_TRACES_SAMPLER (if set) or SampleRatio picks the
// sampler, so some spans may go unsampled. There is no remote collector to
// export to yet, so OTLP exporter wiring is left for a future addition
// rather than stubbed out unused here.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	SampleRatio float64
	DebugTrace  bool

	LogLevel slog.Level
	LogJSON  bool

	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config suitable for a local `codegraph index`
// invocation: text logging at info level, no trace export.
func DefaultConfig(service string, mode AppMode) Config {
	return Config{
		ServiceName:        service,
		Mode:               mode,
		SampleRatio:        1.0,
		LogLevel:           slog.LevelInfo,
		LogJSON:            false,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
