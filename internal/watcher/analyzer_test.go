package watcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codegraph-dev/codegraph/internal/index"
	"github.com/codegraph-dev/codegraph/internal/model"
	"github.com/codegraph-dev/codegraph/internal/watcher"
)

type fakeIndexQuery struct {
	total     int
	importers map[string][]string
}

func (f fakeIndexQuery) TotalNodes() int { return f.total }

func (f fakeIndexQuery) ImportersOf(filePath string) []string { return f.importers[filePath] }

func TestClassifyScopeSyntaxForExpressionOnly(t *testing.T) {
	t.Parallel()

	a := watcher.NewChangeAnalyzer(fakeIndexQuery{total: 100})
	delta := model.TransactionDelta{
		FromTxn:    1,
		ToTxn:      2,
		AddedNodes: []model.Node{{Kind: model.NodeKindExpression, FilePath: "a.go"}},
	}

	analysis := a.Analyze(delta)
	assert.Equal(t, index.ScopeSyntax, analysis.Scope)
}

func TestClassifyScopeStructuralForModuleChange(t *testing.T) {
	t.Parallel()

	a := watcher.NewChangeAnalyzer(fakeIndexQuery{total: 100})
	delta := model.TransactionDelta{
		FromTxn:    1,
		ToTxn:      2,
		AddedNodes: []model.Node{{Kind: model.NodeKindModule, FilePath: "a.go"}},
	}

	analysis := a.Analyze(delta)
	assert.Equal(t, index.ScopeStructural, analysis.Scope)
}

func TestImpactRatioClampedAndComputed(t *testing.T) {
	t.Parallel()

	a := watcher.NewChangeAnalyzer(fakeIndexQuery{total: 10})
	delta := model.TransactionDelta{
		FromTxn:       1,
		ToTxn:         2,
		ModifiedNodes: make([]model.Node, 5),
	}

	analysis := a.Analyze(delta)
	assert.InDelta(t, 0.5, analysis.ImpactRatio, 0.001)
}

func TestExpandedScopeFollowsImporters(t *testing.T) {
	t.Parallel()

	a := watcher.NewChangeAnalyzer(fakeIndexQuery{
		total:     10,
		importers: map[string][]string{"lib.go": {"main.go"}},
	})

	delta := model.TransactionDelta{
		FromTxn:    1,
		ToTxn:      2,
		AddedNodes: []model.Node{{Kind: model.NodeKindModule, FilePath: "lib.go"}},
	}

	analysis := a.Analyze(delta)
	assert.True(t, analysis.ExpandedScope)
	assert.Contains(t, analysis.AffectedRegions, "main.go")
}

func TestAnalyzerIsDeterministic(t *testing.T) {
	t.Parallel()

	a := watcher.NewChangeAnalyzer(fakeIndexQuery{total: 10})
	delta := model.TransactionDelta{
		FromTxn:    1,
		ToTxn:      2,
		AddedNodes: []model.Node{{Kind: model.NodeKindFunction, FilePath: "a.go"}},
	}

	first := a.Analyze(delta)
	second := a.Analyze(delta)
	assert.Equal(t, first, second)
}
