package scheduler

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// WorkerDeficit names how far a task's worker demand falls short of the
// budget that rejected it, 0 on either axis meaning that axis was not
// the cause.
type WorkerDeficit struct {
	Processes int
	Threads   int
}

// WorkerLedger tracks the global process/thread budget a Scheduler run
// was configured with, grounded on
// original_source/parallelism/core/handlers/worker_handler.py.
//
// Feasible/Admissible recompute usage by scanning the active task set,
// exactly as WorkerHandler.enough_workers/available_worker do, which is
// what lets them report a WorkerDeficit alongside the bool. The
// semaphore.Weighted pair is the primitive SchedulerLoop actually
// acquires and releases around a dispatched task's lifetime. Both are
// sized from the same budgets, but they can briefly differ: the scan
// stops counting a task once it sets finish, while its semaphore weight
// is released only after its Handle's Done channel closes.
type WorkerLedger struct {
	processes int
	threads   int

	processSem *semaphore.Weighted
	threadSem  *semaphore.Weighted
}

// NewWorkerLedger constructs a WorkerLedger with the given global
// process and thread budgets.
func NewWorkerLedger(processes, threads int) *WorkerLedger {
	return &WorkerLedger{
		processes:  processes,
		threads:    threads,
		processSem: semaphore.NewWeighted(int64(processes)),
		threadSem:  semaphore.NewWeighted(int64(threads)),
	}
}

// Processes returns the configured global process budget.
func (l *WorkerLedger) Processes() int { return l.processes }

// Threads returns the configured global thread budget.
func (l *WorkerLedger) Threads() int { return l.threads }

// activeWorkerUsage sums the process/thread consumption of every task
// currently started but not finished, matching
// WorkerHandler.active_processes/active_threads: a Process-kind task
// contributes its declared processes plus one for the executor it runs
// under; a Thread-kind task contributes its declared processes as-is
// (child processes it may itself spawn) plus one thread for the
// executor it runs under.
func activeWorkerUsage(tasks []*TaskSpec, states *stateStore) (processes int, threads int) {
	for _, t := range tasks {
		state, ok := states.get(t.name)
		if !ok || !state.Start() || state.Finish() {
			continue
		}
		switch t.kind {
		case Process:
			processes += t.processes + 1
		case Thread:
			processes += t.processes
			threads += t.threads + 1
		}
	}
	return processes, threads
}

// Feasible reports whether task could ever run under this ledger's
// budget in isolation, with no other task active. This is the literal
// strict-less-than semantics of WorkerHandler.enough_workers: a
// Process-kind task additionally consumes one process slot for itself
// on top of the processes it declares; a Thread-kind task additionally
// consumes one thread slot for itself on top of its declared threads,
// while its declared processes count against the process budget with
// no extra slot (it has no process executor of its own).
func (l *WorkerLedger) Feasible(task *TaskSpec) (bool, WorkerDeficit) {
	switch task.kind {
	case Process:
		if task.processes < l.processes {
			return true, WorkerDeficit{}
		}
		return false, WorkerDeficit{Processes: task.processes - l.processes + 1}
	case Thread:
		if task.processes < l.processes && task.threads < l.threads {
			return true, WorkerDeficit{}
		}
		var deficit WorkerDeficit
		if task.processes >= l.processes {
			deficit.Processes = task.processes - l.processes
		}
		if task.threads >= l.threads {
			deficit.Threads = task.threads - l.threads + 1
		}
		return false, deficit
	default:
		return false, WorkerDeficit{}
	}
}

// Admissible reports whether task can be dispatched right now, given the
// other tasks currently active, mirroring
// WorkerHandler.available_worker's strict-less-than comparisons.
func (l *WorkerLedger) Admissible(task *TaskSpec, tasks []*TaskSpec, states *stateStore) (bool, WorkerDeficit) {
	activeProcesses, activeThreads := activeWorkerUsage(tasks, states)
	switch task.kind {
	case Process:
		if activeProcesses+task.processes < l.processes {
			return true, WorkerDeficit{}
		}
		return false, WorkerDeficit{Processes: activeProcesses + task.processes - l.processes + 1}
	case Thread:
		if activeProcesses+task.processes < l.processes && activeThreads+task.threads < l.threads {
			return true, WorkerDeficit{}
		}
		var deficit WorkerDeficit
		if activeProcesses+task.processes >= l.processes {
			deficit.Processes = activeProcesses + task.processes - l.processes
		}
		if activeThreads+task.threads >= l.threads {
			deficit.Threads = activeThreads + task.threads - l.threads + 1
		}
		return false, deficit
	default:
		return false, WorkerDeficit{}
	}
}

// Acquire blocks until task's worker weight is available and reserves
// it, returning a release function to call when the task finishes.
// SchedulerLoop calls this immediately after Admissible passes, so the
// weighted semaphores hold the same tasks the scan-based accounting
// above counts, apart from the finish-to-release window noted on
// WorkerLedger.
func (l *WorkerLedger) Acquire(ctx context.Context, task *TaskSpec) (release func(), err error) {
	switch task.kind {
	case Process:
		weight := int64(task.processes + 1)
		if err := l.processSem.Acquire(ctx, weight); err != nil {
			return nil, err
		}
		return func() { l.processSem.Release(weight) }, nil
	default:
		processWeight := int64(task.processes)
		threadWeight := int64(task.threads + 1)
		if processWeight > 0 {
			if err := l.processSem.Acquire(ctx, processWeight); err != nil {
				return nil, err
			}
		}
		if err := l.threadSem.Acquire(ctx, threadWeight); err != nil {
			if processWeight > 0 {
				l.processSem.Release(processWeight)
			}
			return nil, err
		}
		return func() {
			if processWeight > 0 {
				l.processSem.Release(processWeight)
			}
			l.threadSem.Release(threadWeight)
		}, nil
	}
}
