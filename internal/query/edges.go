package query

import "github.com/codegraph-dev/codegraph/internal/model"

// EdgeQuery is a composable edge filter over a fixed snapshot,
// supporting the "callers-of, callees-of, reads/writes-of a node,
// filter by edge kind" operations.
type EdgeQuery struct {
	snapshot Snapshot
	edges []model.Edge
	started bool
}

func (q *EdgeQuery) all() []model.Edge {
	if q.started {
		return q.edges
	}

	var all []model.Edge

	for _, es := range q.snapshot.EdgesFrom {
		all = append(all, es...)
	}

	q.edges = all
	q.started = true

	return all
}

// FilterKind restricts to edges of the given kind.
func (q *EdgeQuery) FilterKind(kind model.EdgeKind) *EdgeQuery {
	var out []model.Edge

	for _, e := range q.all() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}

	q.edges = out
	q.started = true

	return q
}

// CallersOf returns the nodes with a Calls edge targeting nodeID.
func (q *EdgeQuery) CallersOf(nodeID string) []model.Node {
	return q.sourcesInto(nodeID, model.EdgeKindCalls)
}

// CalleesOf returns the nodes reached by a Calls edge from nodeID.
func (q *EdgeQuery) CalleesOf(nodeID string) []model.Node {
	return q.targetsFrom(nodeID, model.EdgeKindCalls)
}

// ReadsOf returns the nodes reached by a Reads edge from nodeID.
func (q *EdgeQuery) ReadsOf(nodeID string) []model.Node {
	return q.targetsFrom(nodeID, model.EdgeKindReads)
}

// WritesOf returns the nodes reached by a Writes edge from nodeID.
func (q *EdgeQuery) WritesOf(nodeID string) []model.Node {
	return q.targetsFrom(nodeID, model.EdgeKindWrites)
}

func (q *EdgeQuery) targetsFrom(nodeID string, kind model.EdgeKind) []model.Node {
	var out []model.Node

	for _, e := range q.snapshot.EdgesFrom[nodeID] {
		if e.Kind != kind {
			continue
		}

		if n, ok := nodeByID(q.snapshot, e.TargetID); ok {
			out = append(out, n)
		}
	}

	return out
}

func (q *EdgeQuery) sourcesInto(nodeID string, kind model.EdgeKind) []model.Node {
	var out []model.Node

	for _, e := range q.snapshot.EdgesTo[nodeID] {
		if e.Kind != kind {
			continue
		}

		if n, ok := nodeByID(q.snapshot, e.SourceID); ok {
			out = append(out, n)
		}
	}

	return out
}

func nodeByID(snap Snapshot, id string) (model.Node, bool) {
	for _, n := range snap.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return model.Node{}, false
}
