package stagedag

import (
	"fmt"

	"github.com/codegraph-dev/codegraph/internal/errs"
)

// Preset names one of the three canonical stage-enable bit-sets 
// ships: Fast, Balanced, Thorough.
type Preset string

// Canonical presets.
const (
	PresetFast Preset = "fast"
	PresetBalanced Preset = "balanced"
	PresetThorough Preset = "thorough"
)

// presetBaseline is the set of stages each preset enables before
// stage_overrides are applied. Fast trades completeness for latency
// (IR build, chunking, lexical index and git history); Balanced adds the structural
// and semantic analyses most callers want; Thorough enables everything
// the registry declares, including optional stages.
var presetBaseline = map[Preset][]ID{
	PresetFast: {
		StageIRBuild,
		StageChunking,
		StageLexicalIndex,
		StageGitHistory,
	},
	PresetBalanced: {
		StageIRBuild,
		StageChunking,
		StageLexicalIndex,
		StageCrossFileResolution,
		StageFlowGraph,
		StageTypeResolution,
		StageSymbolOccurrence,
		StageCloneDetection,
		StageGitHistory,
		StageQueryEngineIndex,
	},
	PresetThorough: {
		StageIRBuild,
		StageChunking,
		StageLexicalIndex,
		StageCrossFileResolution,
		StageFlowGraph,
		StageTypeResolution,
		StageDataFlow,
		StageSSA,
		StageSymbolOccurrence,
		StageCloneDetection,
		StagePointsTo,
		StagePDG,
		StageEffectAnalysis,
		StageTaintAnalysis,
		StageConcurrencyRace,
		StageSMTVerification,
		StageGitHistory,
		StageQueryEngineIndex,
	},
}

// Plan is a resolved, closure-validated stage selection ready for the
// orchestrator to schedule: Enabled is the full transitive closure and
// Order is a valid topological execution order over it.
type Plan struct {
	Preset Preset
	Enabled map[ID]bool
	Order []ID
}

// Resolve computes a Plan for preset with stage_overrides layered on
// top (overrides[id]=true forces it on regardless of the preset
// baseline, false forces it off), then validates and closes the
// dependency set: enabling a stage implicitly enables its transitive
// dependencies.
//
// An override that turns a stage off while another enabled stage still
// depends on it is rejected with ErrInvalidPresetClosure rather than
// silently re-enabling it, since a preset is user-facing configuration
// and a silently-ignored override would be a surprising support issue.
func (r *Registry) Resolve(preset Preset, overrides map[ID]bool) (Plan, error) {
	baseline, ok := presetBaseline[preset]
	if !ok {
		return Plan{}, errs.New(errs.CategoryConfiguration, "stagedag.resolve", fmt.Errorf("unknown preset %q", preset))
	}

	enabled := make(map[ID]bool, len(baseline)+len(overrides))
	for _, id := range baseline {
		enabled[id] = true
	}

	for id, on := range overrides {
		if _, err := r.Get(id); err != nil {
			return Plan{}, err
		}

		enabled[id] = on
	}

	closed, err := r.Closure(enabled)
	if err != nil {
		return Plan{}, err
	}

	for id, on := range enabled {
		if !on && closed[id] {
			return Plan{}, errs.New(errs.CategoryConfiguration, "stagedag.resolve",
				fmt.Errorf("%w: %s was explicitly disabled but is required by another enabled stage", errs.ErrInvalidPresetClosure, id))
		}
	}

	order, err := r.TopoOrder(closed)
	if err != nil {
		return Plan{}, err
	}

	return Plan{Preset: preset, Enabled: closed, Order: order}, nil
}
