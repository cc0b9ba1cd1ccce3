package scheduler

import (
	"fmt"
	"strings"
)

// CycleError is returned synchronously from Run when the submitted
// tasks' prerequisite relation contains a cycle, grounded on
// original_source/parallelism/core/handlers/dependency_handler.py's
// directed_acyclic_graph check and spec.md §4.1.
type CycleError struct {
	Message string
}

func (e *CycleError) Error() string { return e.Message }

// MissingDependencyError is returned synchronously from Run when a task
// names a prerequisite that is absent from the submission set.
type MissingDependencyError struct {
	Message string
	Edges   []string
}

func (e *MissingDependencyError) Error() string { return e.Message }

// ValidationError is returned synchronously from Run (or ScheduledTask)
// when a caller-supplied parameter fails a precondition spec.md §2/§4.2
// requires, grounded on api_reference.py's validation checks.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// DependencyError is the per-task cancellation cause stored in a
// SharedState's RaiseException when a task is cascade-cancelled because
// one or more of its prerequisites did not complete successfully,
// grounded on core/exceptions/dependency_error.py.
type DependencyError struct {
	Message string
	Tasks   []string
}

func (e *DependencyError) Error() string { return e.Message }

// NewDependencyError renders the message
// FunctionHandler.log_current_state produces for the "dependency"
// cancellation reason, then returns a DependencyError carrying it.
func NewDependencyError(name string, blockingTasks []string) *DependencyError {
	return &DependencyError{
		Message: fmt.Sprintf("%q has been canceled", name),
		Tasks:   blockingTasks,
	}
}

// DependencyCancellationReason renders the WARN-level explanation
// logged alongside a DependencyError, matching
// FunctionHandler.log_current_state's phrasing for blocker reason
// "dependency".
func DependencyCancellationReason(name string, blockingTasks []string) string {
	if len(blockingTasks) == 0 {
		return fmt.Sprintf("%q is being canceled, due to unmet dependencies", name)
	}
	left := blockingTasks[:len(blockingTasks)-1]
	right := blockingTasks[len(blockingTasks)-1]
	switch len(left) {
	case 0:
		return fmt.Sprintf("%q is being canceled, due to task %q", name, right)
	case 1:
		return fmt.Sprintf("%q is being canceled, due to both tasks %q and %q", name, left[0], right)
	default:
		quoted := make([]string, len(left))
		for i, t := range left {
			quoted[i] = fmt.Sprintf("%q", t)
		}
		return fmt.Sprintf("%q is being canceled, due to tasks %s, and %q", name, strings.Join(quoted, ", "), right)
	}
}

// WorkerError is the per-task cancellation cause stored in a
// SharedState's RaiseException when a task is cascade-cancelled because
// the global process/thread budget could never admit it, grounded on
// core/exceptions/worker_error.py.
type WorkerError struct {
	Message   string
	Processes int
	Threads   int
}

func (e *WorkerError) Error() string { return e.Message }

// NewWorkerError renders the message
// FunctionHandler.log_current_state produces for the "worker"
// cancellation reason, then returns a WorkerError carrying it.
func NewWorkerError(name string, deficit WorkerDeficit) *WorkerError {
	return &WorkerError{
		Message:   fmt.Sprintf("%q has been canceled", name),
		Processes: deficit.Processes,
		Threads:   deficit.Threads,
	}
}

// WorkerCancellationReason renders the WARN-level explanation logged
// alongside a WorkerError, matching FunctionHandler.log_current_state's
// phrasing for blocker reason "worker".
func WorkerCancellationReason(name string, deficit WorkerDeficit) string {
	p, t := deficit.Processes, deficit.Threads
	unit := func(n int, singular string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, singular)
		}
		return fmt.Sprintf("%d %ss", n, singular)
	}
	switch {
	case p > 0 && t > 0:
		return fmt.Sprintf("%q is being canceled, due to lack of %s and also %s", name, unit(p, "process"), unit(t, "thread"))
	case p > 0:
		return fmt.Sprintf("%q is being canceled, due to lack of %s", name, unit(p, "process"))
	case t > 0:
		return fmt.Sprintf("%q is being canceled, due to lack of %s", name, unit(t, "thread"))
	default:
		return fmt.Sprintf("%q is being canceled, due to lack of workers", name)
	}
}

// ResourceError is the per-task cancellation cause stored in a
// SharedState's RaiseException when a task is cascade-cancelled because
// the global resource budget could never admit it, grounded on
// core/exceptions/resource_error.py. This error type is a supplemented
// feature: the distilled spec.md folds resource exhaustion into the
// worker path, but original_source/ treats it as a distinct axis with
// its own exception, and this module follows the original.
type ResourceError struct {
	Message string
	Deficit ResourceDeficit
}

func (e *ResourceError) Error() string { return e.Message }

// NewResourceError builds the per-task cancellation cause for a task
// the global resource budget can never admit.
func NewResourceError(name string, deficit ResourceDeficit) *ResourceError {
	return &ResourceError{
		Message: fmt.Sprintf("%q has been canceled", name),
		Deficit: deficit,
	}
}

// ResourceCancellationReason renders the WARN-level explanation logged
// alongside a ResourceError.
func ResourceCancellationReason(name string, deficit ResourceDeficit) string {
	var axes []string
	if deficit.SystemProcessor > 0 {
		axes = append(axes, fmt.Sprintf("%.2f%% system processor", deficit.SystemProcessor))
	}
	if deficit.SystemMemory > 0 {
		axes = append(axes, fmt.Sprintf("%.2f%% system memory", deficit.SystemMemory))
	}
	if deficit.GraphicsProcessor > 0 {
		axes = append(axes, fmt.Sprintf("%.2f%% graphics processor", deficit.GraphicsProcessor))
	}
	if deficit.GraphicsMemory > 0 {
		axes = append(axes, fmt.Sprintf("%.2f%% graphics memory", deficit.GraphicsMemory))
	}
	if len(axes) == 0 {
		return fmt.Sprintf("%q is being canceled, due to lack of resources", name)
	}
	return fmt.Sprintf("%q is being canceled, due to lack of %s", name, strings.Join(axes, ", "))
}
