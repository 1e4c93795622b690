package uws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCanTransitionTable exhaustively checks every (from, to) pair against
// the legality table in §4.1 of the specification.
func TestCanTransitionTable(t *testing.T) {
	legal := map[ExecutionPhase]map[ExecutionPhase]bool{
		PENDING:   set(PENDING, UNKNOWN),
		QUEUED:    set(PENDING, HELD, QUEUED, UNKNOWN),
		EXECUTING: set(QUEUED, HELD, SUSPENDED, EXECUTING, UNKNOWN),
		HELD:      set(PENDING, EXECUTING, HELD, UNKNOWN),
		SUSPENDED: set(EXECUTING, SUSPENDED, UNKNOWN),
		COMPLETED: set(EXECUTING, COMPLETED, UNKNOWN),
		ABORTED:   allExcept(COMPLETED, ERROR, ARCHIVED),
		ERROR:     allExcept(COMPLETED, ABORTED, ARCHIVED),
		ARCHIVED:  set(COMPLETED, ABORTED, ERROR, ARCHIVED, UNKNOWN),
		UNKNOWN:   allExcept(),
	}

	for _, to := range allPhases {
		for _, from := range allPhases {
			want := legal[to][from]
			got := CanTransition(from, to)
			assert.Equalf(t, want, got, "CanTransition(%s, %s)", from, to)
		}
	}
}

func TestPhaseMachineTransitionLeavesCurrentUnchangedOnFailure(t *testing.T) {
	m := NewPhaseMachine()
	require.Equal(t, PENDING, m.Current())

	err := m.Transition(COMPLETED, false)
	require.Error(t, err)
	var ipt *IllegalPhaseTransitionError
	require.ErrorAs(t, err, &ipt)
	assert.Equal(t, PENDING, ipt.From)
	assert.Equal(t, COMPLETED, ipt.To)
	assert.Equal(t, PENDING, m.Current(), "phase must not change on illegal transition")
}

func TestPhaseMachineForceBypassesTable(t *testing.T) {
	m := NewPhaseMachine()
	require.NoError(t, m.Transition(COMPLETED, true))
	assert.Equal(t, COMPLETED, m.Current())
}

func TestPhaseMachinePredicates(t *testing.T) {
	m := NewPhaseMachine()
	assert.True(t, m.IsUpdatable())
	assert.False(t, m.IsFinished())
	assert.False(t, m.IsExecuting())

	require.NoError(t, m.Transition(QUEUED, false))
	require.NoError(t, m.Transition(EXECUTING, false))
	assert.False(t, m.IsUpdatable())
	assert.True(t, m.IsExecuting())

	require.NoError(t, m.Transition(COMPLETED, false))
	assert.True(t, m.IsFinished())

	// No transition out of a terminal phase except ->ARCHIVED.
	assert.Error(t, m.Transition(EXECUTING, false))
	assert.NoError(t, m.Transition(ARCHIVED, false))
}
