package scheduler

import "github.com/pkg/errors"

// ParameterBinder resolves a TaskSpec's bound arguments against its
// prerequisites' harvested return values immediately before launch,
// grounded on
// original_source/parallelism/core/handlers/parameters_handler.py's
// args()/kwargs().
type ParameterBinder struct {
	states *stateStore
}

func newParameterBinder(states *stateStore) *ParameterBinder {
	return &ParameterBinder{states: states}
}

// Resolve returns task's args and kwargs with every ReturnProxy
// replaced by its resolved value. A ReturnProxy referencing a
// prerequisite that has not reached "complete" is a programming error
// the scheduler's own scan-order guarantees should prevent; Resolve
// reports it rather than panicking, in case a caller invokes it out of
// order.
func (b *ParameterBinder) Resolve(task *TaskSpec) (args []any, kwargs map[string]any, err error) {
	args = make([]any, len(task.args))
	for i, v := range task.args {
		resolved, err := b.resolveValue(v)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "resolving positional argument %d of task %q", i, task.name)
		}
		args[i] = resolved
	}
	kwargs = make(map[string]any, len(task.kwargs))
	for k, v := range task.kwargs {
		resolved, err := b.resolveValue(v)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "resolving keyword argument %q of task %q", k, task.name)
		}
		kwargs[k] = resolved
	}
	return args, kwargs, nil
}

func (b *ParameterBinder) resolveValue(v any) (any, error) {
	proxy, ok := v.(*ReturnProxy)
	if !ok {
		return v, nil
	}
	producer := proxy.task
	state, ok := b.states.get(producer.name)
	if !ok || !state.Complete() {
		return nil, errors.Errorf("%s references a prerequisite that has not completed", proxy)
	}
	return proxy.resolve(state.ReturnValue())
}
