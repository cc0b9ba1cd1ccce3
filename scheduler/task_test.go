package scheduler

import (
	"context"
	"math"
	"testing"

	"github.com/idanhazan/parallelism/scheduler/execctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopTarget(_ context.Context, _ []any, _ map[string]any) (any, error) {
	return nil, nil
}

func TestScheduledTask_DefaultsAndValidation(t *testing.T) {
	task, err := ScheduledTask(Thread, "task-a", "", noopTarget, Options{})
	require.NoError(t, err)
	assert.Equal(t, "task-a", task.Name())
	assert.Equal(t, Thread, task.Kind())
	assert.True(t, math.IsInf(task.Priority(), 1))
	assert.False(t, task.Continual())
	assert.Empty(t, task.Dependencies())
}

func TestScheduledTask_RejectsEmptyName(t *testing.T) {
	_, err := ScheduledTask(Thread, "", "", noopTarget, Options{})
	assert.Error(t, err)
}

func TestScheduledTask_RejectsNilTarget(t *testing.T) {
	_, err := ScheduledTask(Thread, "task-a", "", nil, Options{})
	assert.Error(t, err)
}

func TestScheduledTask_ProcessKindRequiresRegisteredName(t *testing.T) {
	_, err := ScheduledTask(Process, "task-a", "unregistered.target", noopTarget, Options{})
	assert.Error(t, err)

	execctx.Register("task_test.registered", noopTarget)
	task, err := ScheduledTask(Process, "task-a", "task_test.registered", noopTarget, Options{})
	require.NoError(t, err)
	assert.Equal(t, Process, task.Kind())
}

func TestScheduledTask_RejectsOutOfRangeResourceDemand(t *testing.T) {
	_, err := ScheduledTask(Thread, "task-a", "", noopTarget, Options{SystemProcessor: 150})
	assert.Error(t, err)

	_, err = ScheduledTask(Thread, "task-a", "", noopTarget, Options{SystemProcessor: -1})
	assert.Error(t, err)
}

func TestScheduledTask_DependenciesAreDeduplicated(t *testing.T) {
	a, err := ScheduledTask(Thread, "a", "", noopTarget, Options{})
	require.NoError(t, err)
	b, err := ScheduledTask(Thread, "b", "", noopTarget, Options{
		Dependencies: []*TaskSpec{a, a},
	})
	require.NoError(t, err)
	assert.Len(t, b.Dependencies(), 1)
}

func TestScheduledTask_SequenceIsMonotonic(t *testing.T) {
	a, err := ScheduledTask(Thread, "seq-a", "", noopTarget, Options{})
	require.NoError(t, err)
	b, err := ScheduledTask(Thread, "seq-b", "", noopTarget, Options{})
	require.NoError(t, err)
	assert.Less(t, a.sequence, b.sequence)
}
