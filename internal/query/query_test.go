package query_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/model"
	"github.com/codegraph-dev/codegraph/internal/query"
)

func buildFunctionIndex(t *testing.T) *query.GraphIndex {
	t.Helper()

	idx := query.NewGraphIndex()

	var added []model.Node

	for i := 1; i <= 10; i++ {
		added = append(added, model.Node{
			ID:   fmt.Sprintf("fn-%d", i),
			Kind: model.NodeKindFunction,
			Name: fmt.Sprintf("fn%d", i),
			Attrs: map[string]string{
				"complexity": fmt.Sprintf("%d", i*5),
			},
		})
	}

	idx.ApplyDelta(model.TransactionDelta{FromTxn: 0, ToTxn: 1, AddedNodes: added})

	return idx
}

func TestAggregateCountAndAvgComplexity(t *testing.T) {
	t.Parallel()

	idx := buildFunctionIndex(t)
	engine := query.NewEngine(idx)

	agg := engine.Nodes().Filter(model.NodeKindFunction).Aggregate()

	assert.Equal(t, 10, agg.Count())
	assert.InDelta(t, 27.5, agg.Avg("complexity"), 0.001)
}

func TestAggregateMinMaxSum(t *testing.T) {
	t.Parallel()

	idx := buildFunctionIndex(t)
	engine := query.NewEngine(idx)

	agg := engine.Nodes().Filter(model.NodeKindFunction).Aggregate()

	min, ok := agg.Min("complexity")
	require.True(t, ok)
	assert.InDelta(t, 5, min, 0.001)

	max, ok := agg.Max("complexity")
	require.True(t, ok)
	assert.InDelta(t, 50, max, 0.001)

	assert.InDelta(t, 275, agg.Sum("complexity"), 0.001)
}

func TestStreamDeliversConfiguredBatchSizes(t *testing.T) {
	t.Parallel()

	idx := buildFunctionIndex(t)
	engine := query.NewEngine(idx)

	stream := engine.Nodes().Filter(model.NodeKindFunction).OrderBy("complexity", false).Stream(3)

	var sizes []int

	for {
		batch, ok := stream.Next()
		if !ok {
			break
		}

		sizes = append(sizes, len(batch))
	}

	assert.Equal(t, []int{3, 3, 3, 1}, sizes)
}

func TestStreamRestartSucceedsWhenWatermarkUnchanged(t *testing.T) {
	t.Parallel()

	idx := buildFunctionIndex(t)
	engine := query.NewEngine(idx)

	stream := engine.Nodes().Filter(model.NodeKindFunction).Stream(5)
	_, _ = stream.Next()

	require.NoError(t, stream.Restart(idx))

	batch, ok := stream.Next()
	require.True(t, ok)
	assert.Len(t, batch, 5)
}

func TestStreamRestartFailsAfterWatermarkAdvances(t *testing.T) {
	t.Parallel()

	idx := buildFunctionIndex(t)
	engine := query.NewEngine(idx)

	stream := engine.Nodes().Filter(model.NodeKindFunction).Stream(5)

	idx.ApplyDelta(model.TransactionDelta{FromTxn: 1, ToTxn: 2, AddedNodes: []model.Node{
		{ID: "fn-11", Kind: model.NodeKindFunction, Name: "fn11"},
	}})

	assert.Error(t, stream.Restart(idx))
}

func TestNodeQueryOffsetAndLimit(t *testing.T) {
	t.Parallel()

	idx := buildFunctionIndex(t)
	engine := query.NewEngine(idx)

	result := engine.Nodes().Filter(model.NodeKindFunction).OrderBy("complexity", false).Offset(2).Limit(3).Execute()

	require.Len(t, result, 3)
	assert.Equal(t, "15", result[0].Attrs["complexity"])
}

func TestEdgeQueryCallersAndCallees(t *testing.T) {
	t.Parallel()

	idx := query.NewGraphIndex()
	idx.ApplyDelta(model.TransactionDelta{
		FromTxn: 0,
		ToTxn:   1,
		AddedNodes: []model.Node{
			{ID: "a", Kind: model.NodeKindFunction, Name: "a"},
			{ID: "b", Kind: model.NodeKindFunction, Name: "b"},
		},
		AddedEdges: []model.Edge{{SourceID: "a", TargetID: "b", Kind: model.EdgeKindCalls}},
	})

	engine := query.NewEngine(idx)

	callees := engine.Edges().CalleesOf("a")
	require.Len(t, callees, 1)
	assert.Equal(t, "b", callees[0].ID)

	callers := engine.Edges().CallersOf("b")
	require.Len(t, callers, 1)
	assert.Equal(t, "a", callers[0].ID)
}

func TestPathQueryFindsShortestRoute(t *testing.T) {
	t.Parallel()

	idx := query.NewGraphIndex()
	idx.ApplyDelta(model.TransactionDelta{
		FromTxn: 0,
		ToTxn:   1,
		AddedNodes: []model.Node{
			{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"},
		},
		AddedEdges: []model.Edge{
			{SourceID: "a", TargetID: "b", Kind: model.EdgeKindCalls},
			{SourceID: "b", TargetID: "c", Kind: model.EdgeKindCalls},
			{SourceID: "a", TargetID: "d", Kind: model.EdgeKindCalls},
			{SourceID: "d", TargetID: "c", Kind: model.EdgeKindCalls},
		},
	})

	engine := query.NewEngine(idx)

	path, ok := engine.Paths("a").To("c")
	require.True(t, ok)
	assert.Len(t, path.NodeIDs, 3)
}

func TestTaintFlowQueryFiltersBySeverityAndConfidence(t *testing.T) {
	t.Parallel()

	findings := query.NewFindings()
	findings.SetTaintFlows([]query.TaintFlow{
		{SinkCategory: "sql", Severity: "high", Confidence: 0.9},
		{SinkCategory: "sql", Severity: "low", Confidence: 0.3},
		{SinkCategory: "xss", Severity: "high", Confidence: 0.95},
	})

	result := findings.TaintFlows().BySinkCategory("sql").BySeverity("high").MinConfidence(0.5).Execute()
	require.Len(t, result, 1)
	assert.Equal(t, "high", result[0].Severity)
}

func TestClonePairQueryFiltersByTypeAndSimilarity(t *testing.T) {
	t.Parallel()

	findings := query.NewFindings()
	findings.SetClonePairs([]query.ClonePair{
		{CloneType: "type1", Similarity: 0.99},
		{CloneType: "type3", Similarity: 0.7},
	})

	result := findings.ClonePairs().ByCloneType("type1").MinSimilarity(0.9).Execute()
	require.Len(t, result, 1)
}
