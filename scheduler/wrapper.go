package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/idanhazan/parallelism/scheduler/humantime"
)

// FunctionWrapper times a task's target, captures its outcome (return
// value, error, or recovered panic) into a SharedState, and logs the
// result, grounded on
// original_source/parallelism/core/handlers/function_handler.py's
// __call__/log_current_state.
type FunctionWrapper struct {
	logger    *slog.Logger
	formatter humantime.DurationFormatter
}

// NewFunctionWrapper constructs a FunctionWrapper. A nil logger falls
// back to slog.Default(); a nil formatter falls back to
// humantime.Default.
func NewFunctionWrapper(logger *slog.Logger, formatter humantime.DurationFormatter) *FunctionWrapper {
	if logger == nil {
		logger = slog.Default()
	}
	if formatter == nil {
		formatter = humantime.Default
	}
	return &FunctionWrapper{logger: logger, formatter: formatter}
}

// Call invokes task's target in-process with its bound args/kwargs via
// CallRemote, recording the same lifecycle ThreadExecutor relies on.
func (w *FunctionWrapper) Call(ctx context.Context, task *TaskSpec, state *SharedState) {
	w.CallRemote(ctx, task, state, func(ctx context.Context) (any, error) {
		return task.target(ctx, task.args, task.kwargs)
	})
}

// CallRemote runs invoke — either a direct in-process call or, for
// ProcessExecutor, a round trip through a re-exec'd child — recording
// execution_time before the call and elapsed_time/return_value/
// raise_exception/finish after it returns, exactly the lifecycle
// function_handler.py's __call__ records. A recovered panic is treated
// as the task's raised exception, since spec.md §4.3 requires a
// panicking task to cascade-cancel its dependents rather than bring
// down the coordinator.
func (w *FunctionWrapper) CallRemote(ctx context.Context, task *TaskSpec, state *SharedState, invoke func(ctx context.Context) (any, error)) {
	state.SetExecutionTime(time.Now())
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			state.SetRaiseException(&RaiseException{
				Err:       fmt.Errorf("panic: %v", r),
				Traceback: string(debug.Stack()),
			})
		}
		elapsed := time.Since(start)
		state.SetElapsedTime(elapsed)
		state.SetFinish(true)
		w.logCurrentState(task, state, "")
	}()
	value, err := invoke(ctx)
	if err != nil {
		state.SetRaiseException(&RaiseException{Err: err})
		return
	}
	state.SetReturnValue(value)
	state.SetComplete(true)
}

// CancelForDependency marks task as cascade-cancelled due to one or
// more unmet prerequisites and logs the WARN line
// log_current_state produces for blocker reason "dependency".
func (w *FunctionWrapper) CancelForDependency(task *TaskSpec, state *SharedState, blockingTasks []string) {
	state.SetExecutionTime(time.Now())
	state.SetRaiseException(&RaiseException{Err: NewDependencyError(task.name, blockingTasks)})
	state.SetFinish(true)
	w.logger.Warn(DependencyCancellationReason(task.name, blockingTasks))
}

// CancelForWorkerDeficit marks task as cascade-cancelled because the
// worker budget can never admit it and logs the matching WARN line.
func (w *FunctionWrapper) CancelForWorkerDeficit(task *TaskSpec, state *SharedState, deficit WorkerDeficit) {
	state.SetExecutionTime(time.Now())
	state.SetRaiseException(&RaiseException{Err: NewWorkerError(task.name, deficit)})
	state.SetFinish(true)
	w.logger.Warn(WorkerCancellationReason(task.name, deficit))
}

// CancelForResourceDeficit marks task as cascade-cancelled because the
// resource budget can never admit it and logs the matching WARN line.
func (w *FunctionWrapper) CancelForResourceDeficit(task *TaskSpec, state *SharedState, deficit ResourceDeficit) {
	state.SetExecutionTime(time.Now())
	state.SetRaiseException(&RaiseException{Err: NewResourceError(task.name, deficit)})
	state.SetFinish(true)
	w.logger.Warn(ResourceCancellationReason(task.name, deficit))
}

func (w *FunctionWrapper) logCurrentState(task *TaskSpec, state *SharedState, _ string) {
	elapsed, _ := state.ElapsedTime()
	formatted := w.formatter.Format(elapsed)
	if raised := state.RaiseException(); raised != nil {
		w.logger.Error(fmt.Sprintf("%q ran approximately %s - %v", task.name, formatted, raised.Err))
		return
	}
	w.logger.Info(fmt.Sprintf("%q ran approximately %s", task.name, formatted))
}
