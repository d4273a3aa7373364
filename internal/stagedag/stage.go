// Package stagedag declares the pipeline's stage DAG: the named
// analysis stages, their declared input/output artifact kinds, their
// dependency edges, and the Fast/Balanced/Thorough presets as canonical
// bit-sets over the stage enable flags. It does not execute stages;
// internal/orchestrator does that, consulting this package's
// dependency-closure logic.
package stagedag

import (
	"fmt"
	"sort"

	"github.com/codegraph-dev/codegraph/internal/errs"
)

// ID names one pipeline stage. The numeric prefix is the stage's
// layer (L1-L37); IDs are a closed enum rather than a free string,
// so an unknown ID is a configuration error at startup, not a
// runtime surprise.
type ID string

// Stage IDs. Layer numbers follow the minimum shipped selection;
// gaps between layers are reserved for stages this core does not name
// (language-specific extractors, etc.) that a deployment may register
// without renumbering the ones below.
const (
	StageIRBuild ID = "L1_ir_build"
	StageChunking ID = "L2_chunking"
	StageLexicalIndex ID = "L3_lexical_index"
	StageCrossFileResolution ID = "L4_cross_file_resolution"
	StageFlowGraph ID = "L5_flow_graph"
	StageTypeResolution ID = "L8_type_resolution"
	StageDataFlow ID = "L10_data_flow"
	StageSSA ID = "L12_ssa"
	StageSymbolOccurrence ID = "L14_symbol_occurrence"
	StageCloneDetection ID = "L16_clone_detection"
	StagePointsTo ID = "L19_points_to"
	StagePDG ID = "L22_pdg"
	StageEffectAnalysis ID = "L25_effect_analysis"
	StageTaintAnalysis ID = "L28_taint_analysis"
	StageConcurrencyRace ID = "L31_concurrency_race"
	StageSMTVerification ID = "L34_smt_verification"
	StageGitHistory ID = "L36_git_history"
	StageQueryEngineIndex ID = "L37_query_engine_index"
)

// ArtifactKind names a stage's input/output artifact type.
type ArtifactKind string

// Artifact kinds produced/consumed across the pipeline's stages.
const (
	ArtifactSource ArtifactKind = "source"
	ArtifactIR ArtifactKind = "ir"
	ArtifactChunks ArtifactKind = "chunks"
	ArtifactLexicalIdx ArtifactKind = "lexical_index"
	ArtifactResolvedRef ArtifactKind = "resolved_refs"
	ArtifactFlowGraph ArtifactKind = "flow_graph"
	ArtifactTypes ArtifactKind = "types"
	ArtifactDataFlow ArtifactKind = "data_flow"
	ArtifactSSA ArtifactKind = "ssa"
	ArtifactSymbolTable ArtifactKind = "symbol_table"
	ArtifactClonePairs ArtifactKind = "clone_pairs"
	ArtifactPointsTo ArtifactKind = "points_to_graph"
	ArtifactPDG ArtifactKind = "pdg"
	ArtifactEffects ArtifactKind = "effects"
	ArtifactTaintFlows ArtifactKind = "taint_flows"
	ArtifactRaceReport ArtifactKind = "race_report"
	ArtifactSMTResult ArtifactKind = "smt_result"
	ArtifactGitHistory ArtifactKind = "git_history"
	ArtifactQueryIndex ArtifactKind = "query_index"
)

// Stage declares one DAG node: its inputs, its outputs, and the stages
// it structurally depends on (enabling a stage implicitly enables
// these too).
type Stage struct {
	ID ID
	Inputs []ArtifactKind
	Outputs []ArtifactKind
	DependsOn []ID
	Optional bool // true for stages like SMT verification, explicitly "optional" in .
}

// Registry is the fixed, startup-initialised table of declared stages,
// a process-wide read-only table rather than a mutable global.
type Registry struct {
	stages map[ID]Stage
	order []ID
}

// NewRegistry builds the Registry for the minimum stage set names.
func NewRegistry() *Registry {
	defs := []Stage{
		{ID: StageIRBuild, Inputs: []ArtifactKind{ArtifactSource}, Outputs: []ArtifactKind{ArtifactIR}},
		{ID: StageChunking, Inputs: []ArtifactKind{ArtifactIR}, Outputs: []ArtifactKind{ArtifactChunks}, DependsOn: []ID{StageIRBuild}},
		{ID: StageLexicalIndex, Inputs: []ArtifactKind{ArtifactChunks}, Outputs: []ArtifactKind{ArtifactLexicalIdx}, DependsOn: []ID{StageChunking}},
		{ID: StageCrossFileResolution, Inputs: []ArtifactKind{ArtifactIR}, Outputs: []ArtifactKind{ArtifactResolvedRef}, DependsOn: []ID{StageIRBuild}},
		{ID: StageFlowGraph, Inputs: []ArtifactKind{ArtifactResolvedRef}, Outputs: []ArtifactKind{ArtifactFlowGraph}, DependsOn: []ID{StageCrossFileResolution}},
		{ID: StageTypeResolution, Inputs: []ArtifactKind{ArtifactResolvedRef}, Outputs: []ArtifactKind{ArtifactTypes}, DependsOn: []ID{StageCrossFileResolution}},
		{ID: StageDataFlow, Inputs: []ArtifactKind{ArtifactFlowGraph}, Outputs: []ArtifactKind{ArtifactDataFlow}, DependsOn: []ID{StageFlowGraph}},
		{ID: StageSSA, Inputs: []ArtifactKind{ArtifactDataFlow}, Outputs: []ArtifactKind{ArtifactSSA}, DependsOn: []ID{StageDataFlow}},
		{ID: StageSymbolOccurrence, Inputs: []ArtifactKind{ArtifactResolvedRef}, Outputs: []ArtifactKind{ArtifactSymbolTable}, DependsOn: []ID{StageCrossFileResolution}},
		{ID: StageCloneDetection, Inputs: []ArtifactKind{ArtifactChunks}, Outputs: []ArtifactKind{ArtifactClonePairs}, DependsOn: []ID{StageChunking}},
		{ID: StagePointsTo, Inputs: []ArtifactKind{ArtifactSSA}, Outputs: []ArtifactKind{ArtifactPointsTo}, DependsOn: []ID{StageSSA}},
		{ID: StagePDG, Inputs: []ArtifactKind{ArtifactSSA, ArtifactDataFlow}, Outputs: []ArtifactKind{ArtifactPDG}, DependsOn: []ID{StageSSA, StageDataFlow}},
		{ID: StageEffectAnalysis, Inputs: []ArtifactKind{ArtifactPDG}, Outputs: []ArtifactKind{ArtifactEffects}, DependsOn: []ID{StagePDG}},
		{ID: StageTaintAnalysis, Inputs: []ArtifactKind{ArtifactPDG, ArtifactPointsTo}, Outputs: []ArtifactKind{ArtifactTaintFlows}, DependsOn: []ID{StagePDG, StagePointsTo}},
		{ID: StageConcurrencyRace, Inputs: []ArtifactKind{ArtifactPDG}, Outputs: []ArtifactKind{ArtifactRaceReport}, DependsOn: []ID{StagePDG}},
		{ID: StageSMTVerification, Inputs: []ArtifactKind{ArtifactDataFlow}, Outputs: []ArtifactKind{ArtifactSMTResult}, DependsOn: []ID{StageDataFlow}, Optional: true},
		{ID: StageGitHistory, Inputs: []ArtifactKind{ArtifactSource}, Outputs: []ArtifactKind{ArtifactGitHistory}},
		{ID: StageQueryEngineIndex, Inputs: []ArtifactKind{ArtifactSymbolTable, ArtifactTaintFlows, ArtifactClonePairs}, Outputs: []ArtifactKind{ArtifactQueryIndex}, DependsOn: []ID{StageSymbolOccurrence, StageTaintAnalysis, StageCloneDetection}},
	}

	reg := &Registry{stages: make(map[ID]Stage, len(defs))}

	for _, s := range defs {
		reg.stages[s.ID] = s
		reg.order = append(reg.order, s.ID)
	}

	return reg
}

// Get returns the declared Stage for id, or an ErrUnknownStage error if
// id was never registered, a configuration error at startup.
func (r *Registry) Get(id ID) (Stage, error) {
	s, ok := r.stages[id]
	if !ok {
		return Stage{}, errs.New(errs.CategoryConfiguration, "stagedag.get", fmt.Errorf("%w: %s", errs.ErrUnknownStage, id))
	}

	return s, nil
}

// All returns every declared stage in registration order.
func (r *Registry) All() []Stage {
	out := make([]Stage, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.stages[id])
	}

	return out
}

// Closure returns the set of stages enabled transitively: every stage
// in enabled plus everything each depends on, transitively.
func (r *Registry) Closure(enabled map[ID]bool) (map[ID]bool, error) {
	closed := make(map[ID]bool, len(enabled))

	var visit func(id ID) error

	visit = func(id ID) error {
		if closed[id] {
			return nil
		}

		stage, err := r.Get(id)
		if err != nil {
			return err
		}

		closed[id] = true

		for _, dep := range stage.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}

		return nil
	}

	for id, on := range enabled {
		if !on {
			continue
		}

		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return closed, nil
}

// TopoOrder returns closed's stages in an order where every stage
// follows all of its dependencies, using Kahn's algorithm over the
// registry's declared edges restricted to closed.
func (r *Registry) TopoOrder(closed map[ID]bool) ([]ID, error) {
	indegree := make(map[ID]int, len(closed))
	dependents := make(map[ID][]ID, len(closed))

	for id := range closed {
		stage, err := r.Get(id)
		if err != nil {
			return nil, err
		}

		for _, dep := range stage.DependsOn {
			if closed[dep] {
				indegree[id]++
				dependents[dep] = append(dependents[dep], id)
			}
		}
	}

	var queue []ID

	for id := range closed {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })

	var order []ID

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		next := append([]ID(nil), dependents[id]...)
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })

		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(closed) {
		return nil, errs.New(errs.CategoryConfiguration, "stagedag.toposort", fmt.Errorf("dependency cycle detected among %d stages", len(closed)))
	}

	return order, nil
}
