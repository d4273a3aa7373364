package query

import (
	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/model"
)

// Stream is a lazy, finite sequence of node batches over a query's
// result set. It is restartable only if the underlying watermark has
// not advanced.
type Stream struct {
	watermark uint64
	nodes []model.Node
	batchSize int
	pos int
}

func newStream(snap Snapshot, nodes []model.Node, batchSize int) *Stream {
	if batchSize <= 0 {
		batchSize = len(nodes)
		if batchSize == 0 {
			batchSize = 1
		}
	}

	return &Stream{watermark: snap.Watermark, nodes: nodes, batchSize: batchSize}
}

// Next returns the next batch and true, or a zero batch and false once
// every node has been delivered.
func (s *Stream) Next() ([]model.Node, bool) {
	if s.pos >= len(s.nodes) {
		return nil, false
	}

	end := s.pos + s.batchSize
	if end > len(s.nodes) {
		end = len(s.nodes)
	}

	batch := s.nodes[s.pos:end]
	s.pos = end

	return batch, true
}

// Exhausted reports whether every batch has already been delivered.
func (s *Stream) Exhausted() bool {
	return s.pos >= len(s.nodes)
}

// Restart rewinds the stream to its first batch, iff index's watermark
// has not advanced past the watermark this stream was built from.
// Otherwise the committed state has moved on and a caller must issue a
// fresh query rather than replay stale results.
func (s *Stream) Restart(index *GraphIndex) error {
	if index.Watermark() != s.watermark {
		return errs.New(errs.CategoryPermanent, "query.stream.restart",
			errStreamWatermarkAdvanced)
	}

	s.pos = 0

	return nil
}

var errStreamWatermarkAdvanced = streamError("stream watermark has advanced, query is no longer restartable")

type streamError string

func (e streamError) Error() string { return string(e) }
