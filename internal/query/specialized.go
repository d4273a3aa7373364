package query

import "sync"

// TaintFlow is one source-to-sink path the taint analysis stage
// reported, the unit the "taint flows (filter by sink category,
// severity, min confidence)" specialised query operates over.
type TaintFlow struct {
	SourceNodeID string
	SinkNodeID string
	SinkCategory string
	Severity string
	Confidence float64
	Path []string
}

// ClonePair is one pair of structurally similar chunks the clone
// detection stage reported.
type ClonePair struct {
	ChunkAID string
	ChunkBID string
	CloneType string
	Similarity float64
}

// Findings holds the taint flows and clone pairs a completed analysis
// run produced, written once per snapshot by the taint/clone stages
// and read many times by specialised queries.
type Findings struct {
	mu sync.RWMutex
	taintFlows []TaintFlow
	clonePairs []ClonePair
}

// NewFindings creates an empty Findings store.
func NewFindings() *Findings {
	return &Findings{}
}

// SetTaintFlows replaces the stored taint flows wholesale, called by
// the taint analysis stage once per run.
func (f *Findings) SetTaintFlows(flows []TaintFlow) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.taintFlows = append([]TaintFlow(nil), flows...)
}

// SetClonePairs replaces the stored clone pairs wholesale, called by
// the clone detection stage once per run.
func (f *Findings) SetClonePairs(pairs []ClonePair) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clonePairs = append([]ClonePair(nil), pairs...)
}

// TaintFlowQuery filters the stored taint flows by sink category,
// severity, and a minimum confidence threshold.
type TaintFlowQuery struct {
	flows []TaintFlow
}

// TaintFlows starts a TaintFlowQuery over the current findings.
func (f *Findings) TaintFlows() *TaintFlowQuery {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return &TaintFlowQuery{flows: append([]TaintFlow(nil), f.taintFlows...)}
}

// BySinkCategory restricts to flows whose sink category matches.
func (q *TaintFlowQuery) BySinkCategory(category string) *TaintFlowQuery {
	var out []TaintFlow

	for _, tf := range q.flows {
		if tf.SinkCategory == category {
			out = append(out, tf)
		}
	}

	q.flows = out

	return q
}

// BySeverity restricts to flows at the given severity.
func (q *TaintFlowQuery) BySeverity(severity string) *TaintFlowQuery {
	var out []TaintFlow

	for _, tf := range q.flows {
		if tf.Severity == severity {
			out = append(out, tf)
		}
	}

	q.flows = out

	return q
}

// MinConfidence restricts to flows at or above the given confidence.
func (q *TaintFlowQuery) MinConfidence(min float64) *TaintFlowQuery {
	var out []TaintFlow

	for _, tf := range q.flows {
		if tf.Confidence >= min {
			out = append(out, tf)
		}
	}

	q.flows = out

	return q
}

// Execute returns the filtered taint flows.
func (q *TaintFlowQuery) Execute() []TaintFlow {
	return q.flows
}

// ClonePairQuery filters the stored clone pairs by type and a minimum
// similarity threshold.
type ClonePairQuery struct {
	pairs []ClonePair
}

// ClonePairs starts a ClonePairQuery over the current findings.
func (f *Findings) ClonePairs() *ClonePairQuery {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return &ClonePairQuery{pairs: append([]ClonePair(nil), f.clonePairs...)}
}

// ByCloneType restricts to pairs of the given clone type (e.g. "type1",
// "type2", "type3").
func (q *ClonePairQuery) ByCloneType(cloneType string) *ClonePairQuery {
	var out []ClonePair

	for _, p := range q.pairs {
		if p.CloneType == cloneType {
			out = append(out, p)
		}
	}

	q.pairs = out

	return q
}

// MinSimilarity restricts to pairs at or above the given similarity.
func (q *ClonePairQuery) MinSimilarity(min float64) *ClonePairQuery {
	var out []ClonePair

	for _, p := range q.pairs {
		if p.Similarity >= min {
			out = append(out, p)
		}
	}

	q.pairs = out

	return q
}

// Execute returns the filtered clone pairs.
func (q *ClonePairQuery) Execute() []ClonePair {
	return q.pairs
}
