package typestate

import (
	"github.com/google/btree"
)

// ComparisonOp is the relational operator of one constraint, grounded
// on the original pipeline's PathCondition comparison operators.
type ComparisonOp int

// Comparison operators an IntInterval can absorb. Neq, which can't be
// expressed as an interval, is rejected by FromConstraint, matching the
// original tracker's "cannot represent as interval" cases.
const (
	OpEq ComparisonOp = iota
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
)

// Constraint is one `var OP value` fact fed to the tracker.
type Constraint struct {
	Var string
	Op ComparisonOp
	Value int64
}

// IntInterval is an integer interval [lower, upper] with independently
// open/closed bounds; nil bounds mean unbounded in that direction.
type IntInterval struct {
	Lower *int64
	Upper *int64
	LowerOpen bool
	UpperOpen bool
}

// Unbounded returns (-inf, +inf).
func Unbounded() IntInterval {
	return IntInterval{LowerOpen: true, UpperOpen: true}
}

func ptr(v int64) *int64 { return &v }

// Bounded returns the closed interval [lower, upper].
func Bounded(lower, upper int64) IntInterval {
	return IntInterval{Lower: ptr(lower), Upper: ptr(upper)}
}

// LowerBounded returns [lower, +inf) or (lower, +inf) if open.
func LowerBounded(lower int64, open bool) IntInterval {
	return IntInterval{Lower: ptr(lower), LowerOpen: open, UpperOpen: true}
}

// UpperBounded returns (-inf, upper] or (-inf, upper) if open.
func UpperBounded(upper int64, open bool) IntInterval {
	return IntInterval{Upper: ptr(upper), UpperOpen: open, LowerOpen: true}
}

// IsEmpty reports whether the interval represents a contradiction (no
// integer satisfies it).
func (iv IntInterval) IsEmpty() bool {
	if iv.Lower == nil || iv.Upper == nil {
		return false
	}

	if iv.LowerOpen && iv.UpperOpen {
		return *iv.Lower >= *iv.Upper || *iv.Upper-*iv.Lower == 1
	}

	if iv.LowerOpen || iv.UpperOpen {
		return *iv.Lower >= *iv.Upper
	}

	return *iv.Lower > *iv.Upper
}

// Contains reports whether value satisfies the interval's bounds.
func (iv IntInterval) Contains(value int64) bool {
	lowerOK := iv.Lower == nil || (iv.LowerOpen && value > *iv.Lower) || (!iv.LowerOpen && value >= *iv.Lower)
	upperOK := iv.Upper == nil || (iv.UpperOpen && value < *iv.Upper) || (!iv.UpperOpen && value <= *iv.Upper)

	return lowerOK && upperOK
}

// Intersect returns the tightest interval satisfying both iv and other.
func (iv IntInterval) Intersect(other IntInterval) IntInterval {
	lower, lowerOpen := intersectLower(iv.Lower, iv.LowerOpen, other.Lower, other.LowerOpen)
	upper, upperOpen := intersectUpper(iv.Upper, iv.UpperOpen, other.Upper, other.UpperOpen)

	return IntInterval{Lower: lower, LowerOpen: lowerOpen, Upper: upper, UpperOpen: upperOpen}
}

func intersectLower(a *int64, aOpen bool, b *int64, bOpen bool) (*int64, bool) {
	switch {
	case a == nil && b == nil:
		return nil, true
	case a == nil:
		return b, bOpen
	case b == nil:
		return a, aOpen
	case *a > *b:
		return a, aOpen
	case *a < *b:
		return b, bOpen
	default:
		return a, aOpen || bOpen
	}
}

func intersectUpper(a *int64, aOpen bool, b *int64, bOpen bool) (*int64, bool) {
	switch {
	case a == nil && b == nil:
		return nil, true
	case a == nil:
		return b, bOpen
	case b == nil:
		return a, aOpen
	case *a < *b:
		return a, aOpen
	case *a > *b:
		return b, bOpen
	default:
		return a, aOpen || bOpen
	}
}

// FromConstraint derives an IntInterval from a Constraint, or ok=false
// if the operator cannot be represented as an interval (Neq has no
// convex interval form).
func FromConstraint(c Constraint) (IntInterval, bool) {
	switch c.Op {
	case OpEq:
		return Bounded(c.Value, c.Value), true
	case OpNeq:
		return IntInterval{}, false
	case OpLt:
		return UpperBounded(c.Value, true), true
	case OpLe:
		return UpperBounded(c.Value, false), true
	case OpGt:
		return LowerBounded(c.Value, true), true
	case OpGe:
		return LowerBounded(c.Value, false), true
	default:
		return IntInterval{}, false
	}
}

// maxTrackedVars caps the variable set the tracker holds, mirroring the
// original tracker's fixed capacity; beyond it, new variables are
// conservatively assumed feasible rather than rejected.
const maxTrackedVars = 50

// varInterval is one btree entry: a variable name ordered alongside its
// current interval. The btree gives IntervalTracker's diagnostics a
// stable, sorted variable iteration order (Ascend) without a separate
// sort step.
type varInterval struct {
	name string
	interval IntInterval
}

func lessVarInterval(a, b varInterval) bool { return a.name < b.name }

// IntervalTracker accumulates interval constraints per variable and
// reports infeasibility the moment an intersection collapses to empty,
// backing the "Typestate interval arithmetic" testable property and
// scenario 10.
type IntervalTracker struct {
	tree *btree.BTreeG[varInterval]
}

// NewIntervalTracker creates an empty tracker.
func NewIntervalTracker() *IntervalTracker {
	return &IntervalTracker{tree: btree.NewG(32, lessVarInterval)}
}

// AddConstraint intersects c into its variable's current interval,
// returning false the instant the result is empty (infeasible). A
// constraint whose operator has no interval form (Neq) is accepted
// without effect, matching the original tracker's conservative pass-
// through. Variables beyond maxTrackedVars are likewise treated as
// feasible rather than tracked.
func (t *IntervalTracker) AddConstraint(c Constraint) bool {
	existing, found := t.tree.Get(varInterval{name: c.Var})
	if !found && t.tree.Len() >= maxTrackedVars {
		return true
	}

	newInterval, ok := FromConstraint(c)
	if !ok {
		return true
	}

	current := Unbounded()
	if found {
		current = existing.interval
	}

	result := current.Intersect(newInterval)
	t.tree.ReplaceOrInsert(varInterval{name: c.Var, interval: result})

	return !result.IsEmpty()
}

// IsFeasible reports whether every tracked variable's interval is
// non-empty.
func (t *IntervalTracker) IsFeasible() bool {
	feasible := true

	t.tree.Ascend(func(vi varInterval) bool {
		if vi.interval.IsEmpty() {
			feasible = false

			return false
		}

		return true
	})

	return feasible
}

// Interval returns the current interval for var, if tracked.
func (t *IntervalTracker) Interval(v string) (IntInterval, bool) {
	vi, found := t.tree.Get(varInterval{name: v})

	return vi.interval, found
}

// Clear removes all tracked variables.
func (t *IntervalTracker) Clear() {
	t.tree.Clear(false)
}

// VarCount returns the number of tracked variables.
func (t *IntervalTracker) VarCount() int {
	return t.tree.Len()
}
