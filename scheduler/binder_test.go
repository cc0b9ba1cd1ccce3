package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterBinder_ResolvesReturnProxyAgainstCompletedState(t *testing.T) {
	producer, err := ScheduledTask(Thread, "producer", "", noopTarget, Options{})
	require.NoError(t, err)
	consumer, err := ScheduledTask(Thread, "consumer", "", noopTarget, Options{
		Args:   []any{producer.ReturnValue()},
		Kwargs: map[string]any{"literal": 42, "value": producer.ReturnValue().Attr("Name")},
	})
	require.NoError(t, err)

	states := newStateStore()
	state := states.allocate("producer")
	state.SetReturnValue(testRecord{Name: "resolved"})
	state.SetComplete(true)

	binder := newParameterBinder(states)
	args, kwargs, err := binder.Resolve(consumer)
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, testRecord{Name: "resolved"}, args[0])
	assert.Equal(t, 42, kwargs["literal"])
	assert.Equal(t, "resolved", kwargs["value"])
}

func TestParameterBinder_RejectsIncompleteProducer(t *testing.T) {
	producer, err := ScheduledTask(Thread, "producer", "", noopTarget, Options{})
	require.NoError(t, err)
	consumer, err := ScheduledTask(Thread, "consumer", "", noopTarget, Options{
		Args: []any{producer.ReturnValue()},
	})
	require.NoError(t, err)

	states := newStateStore()
	states.allocate("producer") // initialized but never marked complete

	binder := newParameterBinder(states)
	_, _, err = binder.Resolve(consumer)
	assert.Error(t, err)
}

func TestParameterBinder_RejectsUnknownProducer(t *testing.T) {
	producer, err := ScheduledTask(Thread, "producer", "", noopTarget, Options{})
	require.NoError(t, err)
	consumer, err := ScheduledTask(Thread, "consumer", "", noopTarget, Options{
		Args: []any{producer.ReturnValue()},
	})
	require.NoError(t, err)

	binder := newParameterBinder(newStateStore())
	_, _, err = binder.Resolve(consumer)
	assert.Error(t, err)
}

func TestParameterBinder_PassesThroughNonProxyValues(t *testing.T) {
	task, err := ScheduledTask(Thread, "plain", "", noopTarget, Options{
		Args:   []any{"literal-arg"},
		Kwargs: map[string]any{"k": 7},
	})
	require.NoError(t, err)

	binder := newParameterBinder(newStateStore())
	args, kwargs, err := binder.Resolve(task)
	require.NoError(t, err)
	assert.Equal(t, []any{"literal-arg"}, args)
	assert.Equal(t, 7, kwargs["k"])
}
