package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerResult_RecordsSuccessfulContinualTask(t *testing.T) {
	task, err := ScheduledTask(Thread, "t", "", noopTarget, Options{Continual: true})
	require.NoError(t, err)
	state := newSharedState()
	state.SetElapsedTime(5 * time.Millisecond)
	state.SetReturnValue("value")
	state.SetComplete(true)

	result := newSchedulerResult()
	result.record(task, state)

	value, ok := result.ReturnValue.Get("t")
	require.True(t, ok)
	assert.Equal(t, "value", value)
	_, ok = result.RaiseException.Get("t")
	assert.False(t, ok)
}

func TestSchedulerResult_OmitsReturnValueWhenNotContinual(t *testing.T) {
	task, err := ScheduledTask(Thread, "t", "", noopTarget, Options{Continual: false})
	require.NoError(t, err)
	state := newSharedState()
	state.SetReturnValue("value")
	state.SetComplete(true)

	result := newSchedulerResult()
	result.record(task, state)

	_, ok := result.ReturnValue.Get("t")
	assert.False(t, ok)
}

func TestSchedulerResult_RecordsRaiseExceptionInsteadOfReturnValue(t *testing.T) {
	task, err := ScheduledTask(Thread, "t", "", noopTarget, Options{Continual: true})
	require.NoError(t, err)
	state := newSharedState()
	state.SetRaiseException(&RaiseException{Err: assert.AnError})

	result := newSchedulerResult()
	result.record(task, state)

	raised, ok := result.RaiseException.Get("t")
	require.True(t, ok)
	assert.Equal(t, assert.AnError, raised.Err)
	_, ok = result.ReturnValue.Get("t")
	assert.False(t, ok)
}

func TestSchedulerResult_SortOrdersByExecutionTime(t *testing.T) {
	early, err := ScheduledTask(Thread, "early", "", noopTarget, Options{Continual: true})
	require.NoError(t, err)
	late, err := ScheduledTask(Thread, "late", "", noopTarget, Options{Continual: true})
	require.NoError(t, err)

	result := newSchedulerResult()
	lateState := newSharedState()
	lateState.SetExecutionTime(time.Now().Add(time.Hour))
	lateState.SetReturnValue("late-value")
	lateState.SetComplete(true)
	result.record(late, lateState)

	earlyState := newSharedState()
	earlyState.SetExecutionTime(time.Now())
	earlyState.SetReturnValue("early-value")
	earlyState.SetComplete(true)
	result.record(early, earlyState)

	result.sort()
	assert.Equal(t, []string{"early", "late"}, result.ExecutionTime.Keys())
	assert.Equal(t, []string{"early", "late"}, result.ReturnValue.Keys())
}

func TestOrderedMap_GetMissingKey(t *testing.T) {
	m := newOrderedMap[int]()
	_, ok := m.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestOrderedMap_SetOverwritesExistingKey(t *testing.T) {
	m := newOrderedMap[string]()
	m.set("a", "first")
	m.set("a", "second")
	value, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "second", value)
	assert.Equal(t, 1, m.Len())
}
