package query

import "github.com/codegraph-dev/codegraph/internal/model"

// Path is one discovered route from a starting node, as an ordered
// list of node IDs from source to destination inclusive.
type Path struct {
	NodeIDs []string
	Edges []model.Edge
}

// PathQuery performs a breadth-first search from a starting node over
// a fixed snapshot.
type PathQuery struct {
	snapshot Snapshot
	start string
	kinds map[model.EdgeKind]bool
	maxDepth int
}

// Paths starts a PathQuery from nodeID over the current snapshot.
func (e *Engine) Paths(nodeID string) *PathQuery {
	return &PathQuery{snapshot: e.index.Snapshot(), start: nodeID, maxDepth: 32}
}

// AlongKinds restricts traversal to edges of the given kinds; with no
// call, every edge kind is traversable.
func (q *PathQuery) AlongKinds(kinds ...model.EdgeKind) *PathQuery {
	q.kinds = make(map[model.EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		q.kinds[k] = true
	}

	return q
}

// MaxDepth bounds the BFS traversal depth.
func (q *PathQuery) MaxDepth(depth int) *PathQuery {
	q.maxDepth = depth

	return q
}

// To finds the shortest path (fewest edges) from the query's start
// node to targetID, or false if no such path exists within MaxDepth.
func (q *PathQuery) To(targetID string) (Path, bool) {
	if q.start == targetID {
		return Path{NodeIDs: []string{q.start}}, true
	}

	type frame struct {
		id string
		path []string
		edges []model.Edge
	}

	visited := map[string]bool{q.start: true}
	queue := []frame{{id: q.start, path: []string{q.start}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if len(cur.path) > q.maxDepth {
			continue
		}

		for _, e := range q.snapshot.EdgesFrom[cur.id] {
			if q.kinds != nil && !q.kinds[e.Kind] {
				continue
			}

			if visited[e.TargetID] {
				continue
			}

			visited[e.TargetID] = true

			nextPath := append(append([]string(nil), cur.path...), e.TargetID)
			nextEdges := append(append([]model.Edge(nil), cur.edges...), e)

			if e.TargetID == targetID {
				return Path{NodeIDs: nextPath, Edges: nextEdges}, true
			}

			queue = append(queue, frame{id: e.TargetID, path: nextPath, edges: nextEdges})
		}
	}

	return Path{}, false
}
