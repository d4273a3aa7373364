// Package index defines the uniform Index Plugin interface and
// the Multi-Index Orchestrator that routes transaction deltas to every
// registered plugin under a monotone system watermark. Concrete index
// implementations (lexical full-text, vector, symbol, graph) are
// external collaborators here; this package owns only the contract
// and the routing/watermark machinery.
package index

import (
	"context"
	"time"

	"github.com/codegraph-dev/codegraph/internal/model"
)

// Type identifies an index's analytical kind.
type Type string

// Index types named in the component table.
const (
	TypeLexical Type = "lexical"
	TypeVector Type = "vector"
	TypeSymbol Type = "symbol"
	TypeGraph Type = "graph"
)

// QueryType identifies the shape of a query a plugin might support; the
// Query Engine (internal/query) dispatches on this.
type QueryType string

// Query types the orchestrator knows how to route, in the fixed
// preference order used to break ties when more than one plugin claims
// support for the same QueryType .
const (
	QueryTypeNodeFilter QueryType = "node_filter"
	QueryTypeEdgeFilter QueryType = "edge_filter"
	QueryTypeFullText QueryType = "full_text"
	QueryTypeVectorSim QueryType = "vector_similarity"
	QueryTypeTaintFlow QueryType = "taint_flow"
	QueryTypeClonePair QueryType = "clone_pair"
	QueryTypePath QueryType = "path"
)

// queryTypePreference is the fixed index-type preference order for each
// QueryType, consulted when more than one registered plugin claims
// SupportsQuery for the same kind. Earlier entries win.
var queryTypePreference = map[QueryType][]Type{
	QueryTypeNodeFilter: {TypeGraph, TypeSymbol, TypeLexical},
	QueryTypeEdgeFilter: {TypeGraph},
	QueryTypeFullText: {TypeLexical},
	QueryTypeVectorSim: {TypeVector},
	QueryTypeTaintFlow: {TypeGraph},
	QueryTypeClonePair: {TypeGraph, TypeSymbol},
	QueryTypePath: {TypeGraph},
}

// Health reports a plugin's self-assessed status.
type Health struct {
	Error error
	IsHealthy bool
}

// PluginStats reports operational counters for a plugin.
type PluginStats struct {
	LastRebuild time.Duration
	EntryCount int64
	TotalUpdates int64
}

// Plugin is the uniform interface every derived index implements, per
// the `IndexPlugin` trait.
type Plugin interface {
	IndexType() Type
	SupportsQuery(QueryType) bool
	AppliedUpTo() model.TxnID
	ApplyDelta(ctx context.Context, delta model.TransactionDelta, analysis DeltaAnalysis) error
	Rebuild(ctx context.Context, snapshotID string) (time.Duration, error)
	Health() Health
	Stats() PluginStats
}

// DeltaAnalysis is the Change Analyzer's output : the sole signal
// the orchestrator and plugins use to choose between a patch and a
// rebuild.
type DeltaAnalysis struct {
	Scope Scope
	AffectedRegions []string
	ImpactRatio float64
	ExpandedScope bool
}

// Scope classifies how deep a change reaches.
type Scope string

// Scope values, ordered from shallowest to deepest.
const (
	ScopeSyntax Scope = "syntax"
	ScopeSemantic Scope = "semantic"
	ScopeStructural Scope = "structural"
)
