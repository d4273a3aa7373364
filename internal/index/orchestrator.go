package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/model"
)

var tracer = otel.Tracer("codegraph/index")

// OrchestratorConfig mirrors the `orchestrator: {...}` configuration
// block.
type OrchestratorConfig struct {
	ParallelUpdates bool
	MaxCommitCostMS int64
	VectorSkipThreshold float64
	FullRebuildThreshold float64
	LazyRebuildEnabled bool
}

// pluginRecord pairs a registered Plugin with its last known health, so
// ApplyResult can report per-plugin outcomes without re-querying every
// plugin's Health() on the hot path.
type pluginRecord struct {
	plugin Plugin
	healthy atomic.Bool
}

// Orchestrator is the Multi-Index Orchestrator: it keeps a
// concurrent, lock-free-for-reads registry of plugins keyed by Type,
// routes TransactionDeltas to all of them (in parallel or sequentially
// per config), and advances the system-wide watermark to the minimum
// of every plugin's AppliedUpTo only when every plugin succeeds.
type Orchestrator struct {
	registry sync.Map // Type -> *pluginRecord
	order []Type // registration order, for sequential dispatch
	orderMu sync.Mutex
	cfg OrchestratorConfig
	logger *slog.Logger
	watermark atomic.Uint64

	appliedTotal *prometheus.CounterVec
	failedTotal *prometheus.CounterVec
	watermarkGauge prometheus.Gauge
}

// NewOrchestrator constructs an Orchestrator. reg may be nil, in which
// case metrics are created unregistered (tests commonly do this).
func NewOrchestrator(cfg OrchestratorConfig, logger *slog.Logger, reg prometheus.Registerer) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		cfg: cfg,
		logger: logger,
		appliedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codegraph_index_plugin_apply_total",
			Help: "Count of successful apply_delta calls per plugin.",
		}, []string{"index_type"}),
		failedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codegraph_index_plugin_apply_failed_total",
			Help: "Count of failed apply_delta calls per plugin.",
		}, []string{"index_type"}),
		watermarkGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codegraph_index_watermark",
			Help: "Current system-wide applied-up-to watermark.",
		}),
	}

	if reg != nil {
		reg.MustRegister(o.appliedTotal, o.failedTotal, o.watermarkGauge)
	}

	return o
}

// Register adds plugin to the registry. Registration is safe to call
// concurrently from multiple goroutines (scenario 6: four plugins
// registered from four threads yield four discoverable plugins) and is
// lock-free with respect to concurrent queries via sync.Map.
func (o *Orchestrator) Register(plugin Plugin) {
	rec := &pluginRecord{plugin: plugin}
	rec.healthy.Store(true)

	o.registry.Store(plugin.IndexType(), rec)

	o.orderMu.Lock()
	o.order = append(o.order, plugin.IndexType())
	o.orderMu.Unlock()
}

// Plugins returns every registered plugin, for introspection and for
// the Query Engine's dispatch table.
func (o *Orchestrator) Plugins() []Plugin {
	var plugins []Plugin

	o.registry.Range(func(_, v any) bool {
		rec, _ := v.(*pluginRecord)
		plugins = append(plugins, rec.plugin)

		return true
	})

	return plugins
}

// PluginFor returns the registered plugin for t, if any.
func (o *Orchestrator) PluginFor(t Type) (Plugin, bool) {
	v, ok := o.registry.Load(t)
	if !ok {
		return nil, false
	}

	rec, _ := v.(*pluginRecord)

	return rec.plugin, true
}

// Resolve picks the plugin that should answer a query of kind qt, using
// SupportsQuery together with the fixed preference order of
// queryTypePreference to break ties.
func (o *Orchestrator) Resolve(qt QueryType) (Plugin, bool) {
	for _, preferred := range queryTypePreference[qt] {
		if plugin, ok := o.PluginFor(preferred); ok && plugin.SupportsQuery(qt) {
			return plugin, true
		}
	}

	var fallback Plugin

	o.registry.Range(func(_, v any) bool {
		rec, _ := v.(*pluginRecord)
		if rec.plugin.SupportsQuery(qt) {
			fallback = rec.plugin

			return false
		}

		return true
	})

	return fallback, fallback != nil
}

// Watermark returns the current system-wide applied-up-to watermark.
func (o *Orchestrator) Watermark() model.TxnID {
	return model.TxnID(o.watermark.Load())
}

// PluginResult is one plugin's outcome from an Apply call.
type PluginResult struct {
	Error error
	IndexType Type
	Rebuilt bool
}

// ApplyResult summarises one Apply call across all plugins.
type ApplyResult struct {
	Results []PluginResult
	WatermarkMoved bool
	NewWatermark model.TxnID
}

// Apply routes delta to every registered plugin. Control flow is
// either in parallel if cfg.ParallelUpdates, or sequentially in
// registration order. After every plugin succeeds the watermark
// advances to min(plugin.AppliedUpTo); if any plugin fails, the
// watermark does not advance and the failing plugin is marked
// unhealthy, while other plugins' successful updates are retained.
func (o *Orchestrator) Apply(ctx context.Context, delta model.TransactionDelta, analysis DeltaAnalysis) (ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "index.orchestrator.apply")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("from_txn", int64(delta.FromTxn)),
		attribute.Int64("to_txn", int64(delta.ToTxn)),
		attribute.Float64("impact_ratio", analysis.ImpactRatio),
	)

	if delta.ToTxn <= delta.FromTxn {
		return ApplyResult{}, errs.New(errs.CategoryPermanent, "index.apply",
			fmt.Errorf("non-monotone delta: from=%d to=%d", delta.FromTxn, delta.ToTxn))
	}

	plugins := o.orderedPlugins()

	var (
		results []PluginResult
		anyFailed bool
		mu sync.Mutex
	)

	apply := func(rec *pluginRecord) PluginResult {
		res := o.applyOne(ctx, rec, delta, analysis)

		mu.Lock()
		results = append(results, res)

		if res.Error != nil {
			anyFailed = true
		}

		mu.Unlock()

		return res
	}

	if o.cfg.ParallelUpdates {
		group, _ := errgroup.WithContext(ctx)

		for _, rec := range plugins {
			rec := rec

			group.Go(func() error {
				apply(rec)

				return nil // plugin failures are reported in results, not propagated as group errors.
			})
		}

		_ = group.Wait()
	} else {
		for _, rec := range plugins {
			apply(rec)
		}
	}

	result := ApplyResult{Results: results}

	if anyFailed {
		o.logger.Warn("apply_delta failed for at least one plugin; watermark not advanced",
			"from_txn", delta.FromTxn, "to_txn", delta.ToTxn)

		return result, nil
	}

	newWatermark := o.minAppliedUpTo(plugins)
	if newWatermark > o.Watermark() {
		o.watermark.Store(uint64(newWatermark))
		o.watermarkGauge.Set(float64(newWatermark))
		result.WatermarkMoved = true
	}

	result.NewWatermark = o.Watermark()

	return result, nil
}

func (o *Orchestrator) orderedPlugins() []*pluginRecord {
	o.orderMu.Lock()
	order := append([]Type(nil), o.order...)
	o.orderMu.Unlock()

	plugins := make([]*pluginRecord, 0, len(order))

	for _, t := range order {
		if v, ok := o.registry.Load(t); ok {
			rec, _ := v.(*pluginRecord)
			plugins = append(plugins, rec)
		}
	}

	return plugins
}

// applyOne applies delta to a single plugin, choosing between patch and
// rebuild using impact-ratio / cost-budget / vector-skip rules.
func (o *Orchestrator) applyOne(ctx context.Context, rec *pluginRecord, delta model.TransactionDelta, analysis DeltaAnalysis) PluginResult {
	plugin := rec.plugin
	result := PluginResult{IndexType: plugin.IndexType()}

	if plugin.IndexType() == TypeVector && analysis.ImpactRatio < o.cfg.VectorSkipThreshold && o.cfg.LazyRebuildEnabled {
		// Vector-class plugins may skip updates below the skip threshold
		// and defer work to a lazy rebuild; a skip is a success,
		// not a failure, so it does not block the watermark. The
		// plugin's AppliedUpTo is left unchanged, and the watermark
		// (the minimum across plugins) cannot pass it.
		o.appliedTotal.WithLabelValues(string(plugin.IndexType())).Inc()
		rec.healthy.Store(true)

		return result
	}

	if analysis.ImpactRatio >= o.cfg.FullRebuildThreshold {
		if _, cost, ok := o.boundedRebuildCost(plugin); ok && cost <= o.cfg.MaxCommitCostMS {
			if _, err := plugin.Rebuild(ctx, ""); err != nil {
				result.Error = err
				rec.healthy.Store(false)
				o.failedTotal.WithLabelValues(string(plugin.IndexType())).Inc()

				return result
			}

			result.Rebuilt = true
			o.appliedTotal.WithLabelValues(string(plugin.IndexType())).Inc()
			rec.healthy.Store(true)

			return result
		}
	}

	if err := plugin.ApplyDelta(ctx, delta, analysis); err != nil {
		result.Error = err
		rec.healthy.Store(false)
		o.failedTotal.WithLabelValues(string(plugin.IndexType())).Inc()

		return result
	}

	o.appliedTotal.WithLabelValues(string(plugin.IndexType())).Inc()
	rec.healthy.Store(true)

	return result
}

// boundedRebuildCost estimates a plugin's rebuild cost from its last
// reported stats, used to decide whether a rebuild is within
// max_commit_cost_ms before attempting it.
func (o *Orchestrator) boundedRebuildCost(plugin Plugin) (Plugin, int64, bool) {
	stats := plugin.Stats()

	return plugin, stats.LastRebuild.Milliseconds(), true
}

func (o *Orchestrator) minAppliedUpTo(plugins []*pluginRecord) model.TxnID {
	if len(plugins) == 0 {
		return o.Watermark()
	}

	min := model.TxnID(^uint64(0))

	for _, rec := range plugins {
		applied := rec.plugin.AppliedUpTo()
		if applied < min {
			min = applied
		}
	}

	return min
}

// Health reports every plugin's health, keyed by index type.
func (o *Orchestrator) Health() map[Type]Health {
	out := make(map[Type]Health)

	o.registry.Range(func(k, v any) bool {
		t, _ := k.(Type)
		rec, _ := v.(*pluginRecord)

		h := rec.plugin.Health()
		if !rec.healthy.Load() {
			h.IsHealthy = false
		}

		out[t] = h

		return true
	})

	return out
}
