// Package query implements the read-only Query Engine : a
// composable node/edge filter builder, aggregations, specialised taint
// flow/clone pair/path queries, and batch streaming, all reading a
// snapshot fixed at query-start so concurrent writes never perturb an
// in-flight query.
package query

import (
	"sync"

	"github.com/codegraph-dev/codegraph/internal/model"
)

// GraphIndex is the mutable, concurrency-safe graph store the Query
// Engine reads from: nodes and edges indexed by ID, with forward and
// backward adjacency and a name index for fast lookups, grounded on
// the original incremental graph index's id/name/adjacency maps.
type GraphIndex struct {
	mu sync.RWMutex

	nodesByID map[string]model.Node
	edgesFrom map[string][]model.Edge
	edgesTo map[string][]model.Edge
	nodesByName map[string][]string // name -> node IDs

	watermark uint64
}

// NewGraphIndex creates an empty GraphIndex.
func NewGraphIndex() *GraphIndex {
	return &GraphIndex{
		nodesByID: make(map[string]model.Node),
		edgesFrom: make(map[string][]model.Edge),
		edgesTo: make(map[string][]model.Edge),
		nodesByName: make(map[string][]string),
	}
}

// ApplyDelta applies a TransactionDelta's node/edge changes and
// advances the index's watermark to delta.ToTxn. Calls must be
// serialized by the caller in order of ToTxn; ApplyDelta itself takes
// the write lock for its own duration only.
func (g *GraphIndex) ApplyDelta(delta model.TransactionDelta) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range delta.RemovedNodes {
		g.removeNodeLocked(id)
	}

	for _, n := range delta.AddedNodes {
		g.addNodeLocked(n)
	}

	for _, n := range delta.ModifiedNodes {
		g.removeNodeLocked(n.ID)
		g.addNodeLocked(n)
	}

	for _, e := range delta.RemovedEdges {
		g.removeEdgeLocked(e)
	}

	for _, e := range delta.AddedEdges {
		g.edgesFrom[e.SourceID] = append(g.edgesFrom[e.SourceID], e)
		g.edgesTo[e.TargetID] = append(g.edgesTo[e.TargetID], e)
	}

	g.watermark = uint64(delta.ToTxn)
}

func (g *GraphIndex) addNodeLocked(n model.Node) {
	g.nodesByID[n.ID] = n

	if n.Name != "" {
		g.nodesByName[n.Name] = append(g.nodesByName[n.Name], n.ID)
	}
}

func (g *GraphIndex) removeNodeLocked(id string) {
	n, ok := g.nodesByID[id]
	if !ok {
		return
	}

	delete(g.nodesByID, id)

	if n.Name != "" {
		ids := g.nodesByName[n.Name]
		for i, candidate := range ids {
			if candidate == id {
				g.nodesByName[n.Name] = append(ids[:i], ids[i+1:]...)

				break
			}
		}
	}

	delete(g.edgesFrom, id)
	delete(g.edgesTo, id)
}

func (g *GraphIndex) removeEdgeLocked(e model.Edge) {
	g.edgesFrom[e.SourceID] = removeEdge(g.edgesFrom[e.SourceID], e)
	g.edgesTo[e.TargetID] = removeEdge(g.edgesTo[e.TargetID], e)
}

func removeEdge(edges []model.Edge, target model.Edge) []model.Edge {
	for i, e := range edges {
		if e.SourceID == target.SourceID && e.TargetID == target.TargetID && e.Kind == target.Kind {
			return append(edges[:i], edges[i+1:]...)
		}
	}

	return edges
}

// Snapshot captures the index's current node/edge population and
// watermark under a single read lock, giving a Query Engine query a
// point-in-time view that subsequent writes cannot mutate.
type Snapshot struct {
	Nodes []model.Node
	EdgesFrom map[string][]model.Edge
	EdgesTo map[string][]model.Edge
	Watermark uint64
}

// Snapshot returns a Snapshot of g's current state.
func (g *GraphIndex) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]model.Node, 0, len(g.nodesByID))
	for _, n := range g.nodesByID {
		nodes = append(nodes, n)
	}

	edgesFrom := make(map[string][]model.Edge, len(g.edgesFrom))
	for k, v := range g.edgesFrom {
		edgesFrom[k] = append([]model.Edge(nil), v...)
	}

	edgesTo := make(map[string][]model.Edge, len(g.edgesTo))
	for k, v := range g.edgesTo {
		edgesTo[k] = append([]model.Edge(nil), v...)
	}

	return Snapshot{Nodes: nodes, EdgesFrom: edgesFrom, EdgesTo: edgesTo, Watermark: g.watermark}
}

// Watermark returns the index's current watermark without taking a
// full snapshot, used by Stream to check restartability cheaply.
func (g *GraphIndex) Watermark() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.watermark
}
