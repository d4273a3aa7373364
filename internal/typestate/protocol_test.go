package typestate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/typestate"
)

const transactionProtocolYAML = `
protocol: Transaction
initial_state: Idle
final_states: [Committed, RolledBack]
transitions:
  - {from: Idle,   action: begin,    to: Active}
  - {from: Active, action: commit,   to: Committed}
  - {from: Active, action: rollback, to: RolledBack}
preconditions:
  commit:   {requires: Active}
  rollback: {requires: Active}
`

// Scenario 7: protocol parse and validate.
func TestParseProtocolYAML(t *testing.T) {
	t.Parallel()

	proto, err := typestate.ParseProtocolYAML([]byte(transactionProtocolYAML))
	require.NoError(t, err)
	assert.Equal(t, "Transaction", proto.Name)
	assert.ElementsMatch(t, []string{"Committed", "RolledBack"}, proto.FinalStates)
}

func TestVerifierRejectsCommitFromIdle(t *testing.T) {
	t.Parallel()

	proto, err := typestate.ParseProtocolYAML([]byte(transactionProtocolYAML))
	require.NoError(t, err)

	v := typestate.NewVerifier(proto)
	violation := v.Step("tx1", "commit")
	require.NotNil(t, violation)
}

func TestVerifierAcceptsBeginThenCommit(t *testing.T) {
	t.Parallel()

	proto, err := typestate.ParseProtocolYAML([]byte(transactionProtocolYAML))
	require.NoError(t, err)

	v := typestate.NewVerifier(proto)
	assert.Nil(t, v.Step("tx1", "begin"))
	assert.Nil(t, v.Step("tx1", "commit"))
	assert.Nil(t, v.Finish("tx1"))
	assert.Equal(t, "Committed", v.CurrentState("tx1"))
}

func TestVerifierFlagsNonFinalStateAtExit(t *testing.T) {
	t.Parallel()

	proto, err := typestate.ParseProtocolYAML([]byte(transactionProtocolYAML))
	require.NoError(t, err)

	v := typestate.NewVerifier(proto)
	require.Nil(t, v.Step("tx1", "begin"))
	assert.NotNil(t, v.Finish("tx1"), "Active is not a final state")
}

func TestParseProtocolRejectsUnreachableFinalState(t *testing.T) {
	t.Parallel()

	yamlDoc := `
protocol: Bad
initial_state: A
final_states: [Z]
transitions:
  - {from: A, action: go, to: B}
  - {from: X, action: go, to: Z}
`
	_, err := typestate.ParseProtocolYAML([]byte(yamlDoc))
	require.Error(t, err)
}

func TestParseProtocolRejectsUndeclaredPreconditionState(t *testing.T) {
	t.Parallel()

	yamlDoc := `
protocol: Bad
initial_state: A
final_states: [B]
transitions:
  - {from: A, action: go, to: B}
preconditions:
  go: {requires: Nonexistent}
`
	_, err := typestate.ParseProtocolYAML([]byte(yamlDoc))
	require.Error(t, err)
}

// Scenario 10: interval contradiction.
func TestIntervalTrackerContradiction(t *testing.T) {
	t.Parallel()

	tr := typestate.NewIntervalTracker()
	assert.True(t, tr.AddConstraint(typestate.Constraint{Var: "x", Op: typestate.OpGt, Value: 5}))
	assert.False(t, tr.AddConstraint(typestate.Constraint{Var: "x", Op: typestate.OpLt, Value: 5}))
	assert.False(t, tr.IsFeasible())
}

func TestIntervalTrackerTightRange(t *testing.T) {
	t.Parallel()

	tr := typestate.NewIntervalTracker()
	assert.True(t, tr.AddConstraint(typestate.Constraint{Var: "x", Op: typestate.OpGe, Value: 5}))
	assert.True(t, tr.AddConstraint(typestate.Constraint{Var: "x", Op: typestate.OpLe, Value: 5}))
	assert.True(t, tr.IsFeasible())

	interval, ok := tr.Interval("x")
	require.True(t, ok)
	assert.Equal(t, int64(5), *interval.Lower)
	assert.Equal(t, int64(5), *interval.Upper)
}

func TestIntervalTrackerMultipleVars(t *testing.T) {
	t.Parallel()

	tr := typestate.NewIntervalTracker()
	tr.AddConstraint(typestate.Constraint{Var: "x", Op: typestate.OpGt, Value: 5})
	tr.AddConstraint(typestate.Constraint{Var: "y", Op: typestate.OpLt, Value: 10})
	tr.AddConstraint(typestate.Constraint{Var: "z", Op: typestate.OpEq, Value: 7})

	assert.Equal(t, 3, tr.VarCount())
	assert.True(t, tr.IsFeasible())
}

func TestIntervalTrackerClear(t *testing.T) {
	t.Parallel()

	tr := typestate.NewIntervalTracker()
	tr.AddConstraint(typestate.Constraint{Var: "x", Op: typestate.OpGt, Value: 5})
	tr.Clear()
	assert.Equal(t, 0, tr.VarCount())
}
