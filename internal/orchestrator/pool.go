package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/stagedag"
)

var tracer = otel.Tracer("codegraph/orchestrator")

// StageFunc executes one stage of the DAG against a fingerprinted input
// set, returning the fingerprint the stage's output should be memoized
// under. Implementations live alongside the subsystem they populate
// (the chunk store, an index plugin, the query engine's materialised
// views); this package only schedules and memoizes the call.
type StageFunc func(ctx context.Context, job *Job, stage stagedag.ID, inputFingerprints []string) (outputFingerprint string, err error)

// PoolConfig tunes the worker pool's concurrency and its logger. The
// stage memoization map has no capacity bound.
type PoolConfig struct {
	// MaxParsers bounds concurrent stage executions that are
	// individually CPU-heavy (parsing, SSA construction); zero means
	// runtime.NumCPU(), matching the "work-stealing pool sized to
	// NumCPU" design.
	MaxParsers int
	Logger     *slog.Logger
}

// memoKey identifies one memoized stage execution: the stage, its
// input fingerprints, and a fingerprint of the stage's own
// configuration (so changing a stage's tuning invalidates its cached
// outputs without touching unrelated stages).
type memoKey struct {
	stage      stagedag.ID
	inputs     string
	configHash string
}

// Pool executes a stagedag.Plan's stages over a Job using a bounded
// worker pool, memoizing per-stage results by content fingerprint so
// an incremental run never recomputes a stage whose inputs and config
// are unchanged.
type Pool struct {
	reg    *stagedag.Registry
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu    sync.Mutex
	memo  map[memoKey]string
	funcs map[stagedag.ID]StageFunc
}

// NewPool creates a Pool backed by reg's dependency graph.
func NewPool(reg *stagedag.Registry, cfg PoolConfig) *Pool {
	maxParsers := cfg.MaxParsers
	if maxParsers <= 0 {
		maxParsers = runtime.NumCPU()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		reg:    reg,
		sem:    semaphore.NewWeighted(int64(maxParsers)),
		logger: logger,
		memo:   make(map[memoKey]string),
		funcs:  make(map[stagedag.ID]StageFunc),
	}
}

// Register binds fn as the executor for stage. A stage with no
// registered function is skipped with a debug log, which lets a
// deployment enable a preset stage it has not yet implemented a
// plugin for without the run failing outright.
func (p *Pool) Register(stage stagedag.ID, fn StageFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.funcs[stage] = fn
}

// FingerprintInputs derives a stable fingerprint for a stage's
// upstream output fingerprints plus the job's changed-file set, used
// as the memoization key's input component.
func FingerprintInputs(parts ...string) string {
	h := sha256.New()

	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Run executes plan's stages over job level by level: within a level
// (stages whose dependencies are already satisfied) it runs every
// stage concurrently up to the pool's MaxParsers budget via errgroup
// and a weighted semaphore, then waits for the whole level before
// advancing, which keeps the scheduler's correctness obvious while
// still exploiting all the parallelism the DAG's shape allows. Run
// stops and returns the first stage error; the caller is responsible
// for transitioning job to Failed with the returned error and stage.
func (p *Pool) Run(ctx context.Context, job *Job, plan stagedag.Plan, configHash string) (map[stagedag.ID]string, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.run")
	defer span.End()

	outputs := make(map[stagedag.ID]string, len(plan.Order))
	var outputsMu sync.Mutex

	for _, level := range p.levels(plan) {
		group, gctx := errgroup.WithContext(ctx)

		for _, id := range level {
			id := id

			group.Go(func() error {
				if err := p.sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer p.sem.Release(1)

				outFP, err := p.runOne(gctx, job, id, &outputs, &outputsMu, configHash)
				if err != nil {
					return err
				}

				outputsMu.Lock()
				outputs[id] = outFP
				outputsMu.Unlock()

				return nil
			})
		}

		if err := group.Wait(); err != nil {
			return outputs, err
		}
	}

	return outputs, nil
}

// levels groups plan's stages into dependency-respecting batches: every
// stage in batch N depends only on stages in batches before N, so a
// caller may run each batch's stages concurrently.
func (p *Pool) levels(plan stagedag.Plan) [][]stagedag.ID {
	depth := make(map[stagedag.ID]int, len(plan.Order))

	for _, id := range plan.Order {
		stage, err := p.reg.Get(id)
		if err != nil {
			continue
		}

		max := -1

		for _, dep := range stage.DependsOn {
			if !plan.Enabled[dep] {
				continue
			}

			if d := depth[dep]; d > max {
				max = d
			}
		}

		depth[id] = max + 1
	}

	var levels [][]stagedag.ID

	for _, id := range plan.Order {
		d := depth[id]
		for len(levels) <= d {
			levels = append(levels, nil)
		}

		levels[d] = append(levels[d], id)
	}

	return levels
}

func (p *Pool) runOne(ctx context.Context, job *Job, id stagedag.ID, outputs *map[stagedag.ID]string, outputsMu *sync.Mutex, configHash string) (string, error) {
	stage, err := p.reg.Get(id)
	if err != nil {
		return "", err
	}

	inputParts := make([]string, 0, len(stage.DependsOn)+1)

	outputsMu.Lock()
	for _, dep := range stage.DependsOn {
		inputParts = append(inputParts, (*outputs)[dep])
	}
	outputsMu.Unlock()

	inputParts = append(inputParts, job.ChangedFiles...)
	inputFP := FingerprintInputs(inputParts...)

	key := memoKey{stage: id, inputs: inputFP, configHash: configHash}

	p.mu.Lock()
	if cached, ok := p.memo[key]; ok {
		p.mu.Unlock()
		p.logger.Debug("stage memo hit", "stage", id, "job", job.ID)

		return cached, nil
	}
	p.mu.Unlock()

	p.mu.Lock()
	fn := p.funcs[id]
	p.mu.Unlock()

	if fn == nil {
		p.logger.Debug("stage has no registered executor, skipping", "stage", id)

		return inputFP, nil
	}

	ctx, span := tracer.Start(ctx, fmt.Sprintf("stage.%s", id))
	defer span.End()

	outFP, err := fn(ctx, job, id, inputParts)
	if err != nil {
		return "", errs.New(errs.Classify(err), string(id), err)
	}

	p.mu.Lock()
	p.memo[key] = outFP
	p.mu.Unlock()

	return outFP, nil
}
