package stagedag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/stagedag"
)

func TestClosureIncludesTransitiveDependencies(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()

	closed, err := reg.Closure(map[stagedag.ID]bool{stagedag.StageSSA: true})
	require.NoError(t, err)

	assert.True(t, closed[stagedag.StageSSA])
	assert.True(t, closed[stagedag.StageDataFlow])
	assert.True(t, closed[stagedag.StageFlowGraph])
	assert.True(t, closed[stagedag.StageCrossFileResolution])
	assert.True(t, closed[stagedag.StageIRBuild])
	assert.False(t, closed[stagedag.StageCloneDetection])
}

func TestTopoOrderRespectsDependencies(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()

	closed, err := reg.Closure(map[stagedag.ID]bool{stagedag.StagePDG: true})
	require.NoError(t, err)

	order, err := reg.TopoOrder(closed)
	require.NoError(t, err)

	pos := make(map[stagedag.ID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	assert.Less(t, pos[stagedag.StageIRBuild], pos[stagedag.StageCrossFileResolution])
	assert.Less(t, pos[stagedag.StageCrossFileResolution], pos[stagedag.StageFlowGraph])
	assert.Less(t, pos[stagedag.StageFlowGraph], pos[stagedag.StageDataFlow])
	assert.Less(t, pos[stagedag.StageDataFlow], pos[stagedag.StageSSA])
	assert.Less(t, pos[stagedag.StageSSA], pos[stagedag.StagePDG])
}

func TestResolveFastPreset(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()

	plan, err := reg.Resolve(stagedag.PresetFast, nil)
	require.NoError(t, err)

	assert.True(t, plan.Enabled[stagedag.StageLexicalIndex])
	assert.False(t, plan.Enabled[stagedag.StageTaintAnalysis])
	assert.Len(t, plan.Order, len(plan.Enabled))
}

func TestResolveThoroughPresetEnablesOptionalStages(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()

	plan, err := reg.Resolve(stagedag.PresetThorough, nil)
	require.NoError(t, err)

	assert.True(t, plan.Enabled[stagedag.StageSMTVerification])
	assert.True(t, plan.Enabled[stagedag.StageConcurrencyRace])
}

func TestResolveOverrideAddsDependencyClosure(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()

	plan, err := reg.Resolve(stagedag.PresetFast, map[stagedag.ID]bool{stagedag.StageTaintAnalysis: true})
	require.NoError(t, err)

	assert.True(t, plan.Enabled[stagedag.StageTaintAnalysis])
	assert.True(t, plan.Enabled[stagedag.StagePDG])
	assert.True(t, plan.Enabled[stagedag.StagePointsTo])
	assert.True(t, plan.Enabled[stagedag.StageSSA])
}

func TestResolveRejectsInconsistentDisableOverride(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()

	_, err := reg.Resolve(stagedag.PresetThorough, map[stagedag.ID]bool{stagedag.StagePDG: false})
	require.Error(t, err)
}

func TestResolveRejectsUnknownPreset(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()

	_, err := reg.Resolve(stagedag.Preset("nonexistent"), nil)
	require.Error(t, err)
}

func TestResolveRejectsUnknownOverrideStage(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()

	_, err := reg.Resolve(stagedag.PresetBalanced, map[stagedag.ID]bool{stagedag.ID("L99_made_up"): true})
	require.Error(t, err)
}

func TestGetUnknownStageReturnsClassifiedError(t *testing.T) {
	t.Parallel()

	reg := stagedag.NewRegistry()

	_, err := reg.Get(stagedag.ID("does_not_exist"))
	require.Error(t, err)
}
