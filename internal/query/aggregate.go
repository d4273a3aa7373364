package query

import (
	"strconv"

	"github.com/codegraph-dev/codegraph/internal/model"
)

// AggregateQuery computes count/sum/avg/min/max over a numeric Attrs
// field for a fixed node set.
type AggregateQuery struct {
	nodes []model.Node
}

// Count returns the number of nodes in the aggregated set.
func (a *AggregateQuery) Count() int {
	return len(a.nodes)
}

// Sum returns the sum of field across every node carrying a parseable
// numeric value for it; nodes missing the field or holding a
// non-numeric value are skipped.
func (a *AggregateQuery) Sum(field string) float64 {
	var total float64

	for _, n := range a.nodes {
		if v, ok := parseFloat(n.Attrs[field]); ok {
			total += v
		}
	}

	return total
}

// Avg returns the arithmetic mean of field over the nodes carrying a
// numeric value for it, or 0 if none do.
func (a *AggregateQuery) Avg(field string) float64 {
	var total float64

	var count int

	for _, n := range a.nodes {
		if v, ok := parseFloat(n.Attrs[field]); ok {
			total += v
			count++
		}
	}

	if count == 0 {
		return 0
	}

	return total / float64(count)
}

// Min returns the smallest numeric value of field, and false if no
// node carries one.
func (a *AggregateQuery) Min(field string) (float64, bool) {
	return a.extremum(field, func(current, candidate float64) bool { return candidate < current })
}

// Max returns the largest numeric value of field, and false if no node
// carries one.
func (a *AggregateQuery) Max(field string) (float64, bool) {
	return a.extremum(field, func(current, candidate float64) bool { return candidate > current })
}

func (a *AggregateQuery) extremum(field string, better func(current, candidate float64) bool) (float64, bool) {
	var (
		best float64
		found bool
	)

	for _, n := range a.nodes {
		v, ok := parseFloat(n.Attrs[field])
		if !ok {
			continue
		}

		if !found || better(best, v) {
			best = v
			found = true
		}
	}

	return best, found
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}
