package scheduler

import "context"

// Handle is the running-task handle an ExecutorBackend returns from
// Launch. SchedulerLoop waits on Done before releasing the task's worker
// weight, and calls Close on every handle when the run ends; it never
// calls Terminate or Kill itself.
//
// spec.md §1 puts the concrete OS-level execution mechanism out of
// scope as an externally supplied capability; a Thread-kind task has no
// real termination primitive (a goroutine cannot be killed from
// outside), so ThreadExecutor's Handle reports those as no-ops, while
// ProcessExecutor's Handle can actually signal a child OS process.
type Handle interface {
	// Done returns a channel closed once the task's target has
	// returned, panicked, or errored.
	Done() <-chan struct{}
	// Terminate requests cooperative shutdown. No-op for Thread-kind.
	Terminate() error
	// Kill requests immediate shutdown. No-op for Thread-kind.
	Kill() error
	// Close releases any resources the handle holds (pipes, the child
	// process itself). Safe to call after Done is closed.
	Close() error
}

// ExecutorBackend runs one task's wrapped target and reports its
// outcome into state. Thread-kind and Process-kind tasks each have
// their own backend; Scheduler picks one per TaskSpec.Kind.
type ExecutorBackend interface {
	Launch(ctx context.Context, task *TaskSpec, wrapper *FunctionWrapper, state *SharedState) (Handle, error)
}

// threadHandle backs a goroutine-based launch; it has no real
// cancellation capability, matching ThreadExecutor's run()/start()/
// join() proxy bookkeeping with no terminate/kill/close support.
type threadHandle struct {
	done chan struct{}
}

func (h *threadHandle) Done() <-chan struct{} { return h.done }
func (h *threadHandle) Terminate() error      { return nil }
func (h *threadHandle) Kill() error           { return nil }
func (h *threadHandle) Close() error          { return nil }

// ThreadExecutor runs a task's wrapped target as a goroutine in the
// coordinator's own address space, grounded on
// original_source/parallelism/core/executors/thread_executor.py's
// run/start/join proxy bookkeeping, adapted from OS threads to
// goroutines since Go has no native thread handle to subclass.
type ThreadExecutor struct{}

// Launch starts task's target on a new goroutine and returns
// immediately; the returned Handle's Done channel closes when the
// wrapper has recorded the task's outcome into state.
func (ThreadExecutor) Launch(ctx context.Context, task *TaskSpec, wrapper *FunctionWrapper, state *SharedState) (Handle, error) {
	done := make(chan struct{})
	state.SetStart(true)
	go func() {
		defer close(done)
		state.SetRun(true)
		wrapper.Call(ctx, task, state)
		state.SetJoin(true)
	}()
	return &threadHandle{done: done}, nil
}
