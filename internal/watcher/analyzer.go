package watcher

import (
	"sort"

	"github.com/codegraph-dev/codegraph/internal/index"
	"github.com/codegraph-dev/codegraph/internal/model"
)

// IndexQuery is the lightweight query surface the Change Analyzer
// consults, deliberately narrow (a total node count and an importer
// lookup) so the analyzer never needs a full graph walk to classify a
// delta.
type IndexQuery interface {
	// TotalNodes returns the current number of live nodes, used as the
	// denominator for impact_ratio.
	TotalNodes() int
	// ImportersOf returns the file paths that import filePath, used to
	// compute the expanded_scope fan-out for a module-level change.
	ImportersOf(filePath string) []string
}

// ChangeAnalyzer computes a DeltaAnalysis from a TransactionDelta's
// contents plus IndexQuery. It is pure and deterministic given its
// inputs, and never walks the full graph.
type ChangeAnalyzer struct {
	query IndexQuery
}

// NewChangeAnalyzer creates a ChangeAnalyzer backed by query.
func NewChangeAnalyzer(query IndexQuery) *ChangeAnalyzer {
	return &ChangeAnalyzer{query: query}
}

// structuralKinds are node kinds whose addition/removal changes the
// shape of the containment/import graph, warranting Structural scope.
var structuralKinds = map[model.NodeKind]bool{
	model.NodeKindFile: true,
	model.NodeKindModule: true,
	model.NodeKindClass: true,
	model.NodeKindInterface: true,
	model.NodeKindImport: true,
}

// semanticKinds are node kinds whose change affects behaviour but not
// the module/class shape of the codebase.
var semanticKinds = map[model.NodeKind]bool{
	model.NodeKindFunction: true,
	model.NodeKindMethod: true,
	model.NodeKindVariable: true,
	model.NodeKindField: true,
}

// Analyze classifies delta's scope, computes its impact ratio against
// the analyzer's IndexQuery, and expands the affected region set to
// files that import a changed module.
func (a *ChangeAnalyzer) Analyze(delta model.TransactionDelta) index.DeltaAnalysis {
	scope := a.classifyScope(delta)
	regions, expanded := a.affectedRegions(delta)

	return index.DeltaAnalysis{
		Scope: scope,
		ImpactRatio: a.impactRatio(delta),
		AffectedRegions: regions,
		ExpandedScope: expanded,
	}
}

// classifyScope picks the deepest scope touched by any changed node:
// Structural if a file/module/class/interface/import changed,
// Semantic if a function/method/variable/field changed, else Syntax.
func (a *ChangeAnalyzer) classifyScope(delta model.TransactionDelta) index.Scope {
	scope := index.ScopeSyntax

	consider := func(nodes []model.Node) {
		for _, n := range nodes {
			switch {
			case structuralKinds[n.Kind]:
				scope = index.ScopeStructural
			case semanticKinds[n.Kind] && scope != index.ScopeStructural:
				scope = index.ScopeSemantic
			}
		}
	}

	consider(delta.AddedNodes)
	consider(delta.ModifiedNodes)

	if len(delta.AddedEdges) > 0 || len(delta.RemovedEdges) > 0 {
		if scope == index.ScopeSyntax {
			scope = index.ScopeSemantic
		}
	}

	return scope
}

// impactRatio is the fraction of the current node population this
// delta touches, clamped to [0, 1].
func (a *ChangeAnalyzer) impactRatio(delta model.TransactionDelta) float64 {
	touched := len(delta.AddedNodes) + len(delta.ModifiedNodes) + len(delta.RemovedNodes)

	total := 1
	if a.query != nil {
		if tn := a.query.TotalNodes(); tn > 0 {
			total = tn
		}
	}

	ratio := float64(touched) / float64(total)
	if ratio > 1 {
		ratio = 1
	}

	return ratio
}

// affectedRegions lists the file paths touched directly by delta, in
// sorted order, followed by any files that import them, whatever the
// delta's scope. This
// expanded scope is what incremental execution restricts stage inputs
// to.
func (a *ChangeAnalyzer) affectedRegions(delta model.TransactionDelta) ([]string, bool) {
	seen := make(map[string]bool)

	add := func(n model.Node) {
		if n.FilePath != "" {
			seen[n.FilePath] = true
		}
	}

	for _, n := range delta.AddedNodes {
		add(n)
	}

	for _, n := range delta.ModifiedNodes {
		add(n)
	}

	direct := make([]string, 0, len(seen))
	for f := range seen {
		direct = append(direct, f)
	}

	sort.Strings(direct)

	expanded := false

	if a.query != nil {
		for _, f := range direct {
			for _, importer := range a.query.ImportersOf(f) {
				if !seen[importer] {
					seen[importer] = true

					direct = append(direct, importer)
					expanded = true
				}
			}
		}
	}

	return direct, expanded
}
