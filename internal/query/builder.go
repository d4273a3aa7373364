package query

import (
	"sort"

	"github.com/codegraph-dev/codegraph/internal/model"
)

// Engine is the entry point for building queries against a GraphIndex.
// Every query captures the index's Snapshot at construction time, so
// results stay consistent even if the index keeps mutating underneath.
type Engine struct {
	index *GraphIndex
}

// NewEngine creates an Engine reading from index.
func NewEngine(index *GraphIndex) *Engine {
	return &Engine{index: index}
}

// Nodes starts a NodeQuery over a fresh snapshot of the index.
func (e *Engine) Nodes() *NodeQuery {
	snap := e.index.Snapshot()

	return &NodeQuery{snapshot: snap, nodes: snap.Nodes}
}

// Edges starts an EdgeQuery over a fresh snapshot of the index.
func (e *Engine) Edges() *EdgeQuery {
	snap := e.index.Snapshot()

	return &EdgeQuery{snapshot: snap}
}

// Predicate is an arbitrary node filter a caller can chain alongside
// the built-in kind/language/field filters.
type Predicate func(model.Node) bool

// NodeQuery is a composable, immutable-snapshot node filter. Each
// method returns the same *NodeQuery for chaining: filter by kind,
// language, predicate, or field equality; order by field; offset and
// limit.
type NodeQuery struct {
	snapshot Snapshot
	nodes []model.Node
	orderBy string
	orderDesc bool
	offset int
	limit int // 0 means unlimited.
}

// Filter restricts to nodes of the given kind.
func (q *NodeQuery) Filter(kind model.NodeKind) *NodeQuery {
	return q.Where(func(n model.Node) bool { return n.Kind == kind })
}

// FilterLanguage restricts to nodes written in language.
func (q *NodeQuery) FilterLanguage(language string) *NodeQuery {
	return q.Where(func(n model.Node) bool { return n.Language == language })
}

// FilterField restricts to nodes whose Attrs[key] equals value.
func (q *NodeQuery) FilterField(key, value string) *NodeQuery {
	return q.Where(func(n model.Node) bool { return n.Attrs[key] == value })
}

// Where restricts to nodes satisfying an arbitrary predicate.
func (q *NodeQuery) Where(pred Predicate) *NodeQuery {
	out := q.nodes[:0:0]

	for _, n := range q.nodes {
		if pred(n) {
			out = append(out, n)
		}
	}

	q.nodes = out

	return q
}

// OrderBy sorts the current result set by an Attrs field, numerically
// when every value parses as a float, lexically otherwise.
func (q *NodeQuery) OrderBy(field string, desc bool) *NodeQuery {
	q.orderBy = field
	q.orderDesc = desc

	sorted := append([]model.Node(nil), q.nodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		less := compareAttr(sorted[i].Attrs[field], sorted[j].Attrs[field])
		if desc {
			return !less && sorted[i].Attrs[field] != sorted[j].Attrs[field]
		}

		return less
	})
	q.nodes = sorted

	return q
}

// Offset skips the first n results.
func (q *NodeQuery) Offset(n int) *NodeQuery {
	q.offset = n

	return q
}

// Limit caps the result set to n results (0 means unlimited).
func (q *NodeQuery) Limit(n int) *NodeQuery {
	q.limit = n

	return q
}

// Execute applies Offset/Limit and returns the final node slice.
func (q *NodeQuery) Execute() []model.Node {
	nodes := q.nodes

	if q.offset > 0 {
		if q.offset >= len(nodes) {
			return nil
		}

		nodes = nodes[q.offset:]
	}

	if q.limit > 0 && q.limit < len(nodes) {
		nodes = nodes[:q.limit]
	}

	return nodes
}

// Aggregate starts an AggregateQuery over the current filtered set,
// ignoring Offset/Limit/OrderBy since aggregation runs over every
// matching node. Filters may be combined with aggregation this way.
func (q *NodeQuery) Aggregate() *AggregateQuery {
	return &AggregateQuery{nodes: q.nodes}
}

// Stream returns a Stream over the current filtered/ordered set in
// batches of batchSize, restartable only while the index's watermark
// has not advanced past the snapshot this query was built from.
func (q *NodeQuery) Stream(batchSize int) *Stream {
	return newStream(q.snapshot, q.Execute(), batchSize)
}

func compareAttr(a, b string) bool {
	af, aok := parseFloat(a)
	bf, bok := parseFloat(b)

	if aok && bok {
		return af < bf
	}

	return a < b
}
