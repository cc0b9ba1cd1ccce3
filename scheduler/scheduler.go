package scheduler

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/idanhazan/parallelism/scheduler/humantime"
	"github.com/idanhazan/parallelism/scheduler/metrics"
	"github.com/pkg/errors"
)

// RunOptions configures one Run call. The zero value is valid: worker
// and resource budgets default to the host's CPU count and 100% of
// each resource axis, matching api_reference.py's task_scheduler
// defaults.
type RunOptions struct {
	Processes int
	Threads   int

	SystemProcessor   float64
	SystemMemory      float64
	GraphicsProcessor float64
	GraphicsMemory    float64

	Logger            *slog.Logger
	DurationFormatter humantime.DurationFormatter

	// ProcessBackend overrides the ExecutorBackend used for Process-kind
	// tasks. Defaults to ProcessExecutor{}.
	ProcessBackend ExecutorBackend

	// PollInterval bounds how long the coordinator can go between scans
	// when no task has signaled completion, a safety net against a
	// missed wakeup. Defaults to 50ms.
	PollInterval time.Duration

	// Exporter, if set, receives live ledger occupancy and per-task
	// terminal outcomes over the run. A nil Exporter (the default) costs
	// nothing: this is optional instrumentation, never a measurement of
	// actual resource usage (spec.md §5/§9).
	Exporter *metrics.PrometheusExporter
}

func (o RunOptions) withDefaults() RunOptions {
	if o.Processes <= 0 {
		o.Processes = runtime.NumCPU()
	}
	if o.Threads <= 0 {
		o.Threads = runtime.NumCPU()
	}
	if o.SystemProcessor == 0 {
		o.SystemProcessor = 100
	}
	if o.SystemMemory == 0 {
		o.SystemMemory = 100
	}
	if o.GraphicsProcessor == 0 {
		o.GraphicsProcessor = 100
	}
	if o.GraphicsMemory == 0 {
		o.GraphicsMemory = 100
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.DurationFormatter == nil {
		o.DurationFormatter = humantime.Default
	}
	if o.ProcessBackend == nil {
		o.ProcessBackend = ProcessExecutor{}
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Millisecond
	}
	return o
}

// Run schedules and executes tasks, honoring their priorities, their
// dependency graph, and the given worker/resource budgets, then returns
// the harvested results. It is the Go analogue of
// original_source/parallelism/api_reference.py's task_scheduler,
// restructured around the goroutine-dispatch-loop shape of
// dag_scheduler.go.
//
// Run returns synchronously with a CycleError, MissingDependencyError,
// or ValidationError for a malformed submission; per-task failures
// (including cascade cancellations) are captured in the returned
// SchedulerResult's RaiseException table, not returned as an error.
func Run(ctx context.Context, tasks []*TaskSpec, opts RunOptions) (*SchedulerResult, error) {
	if len(tasks) == 0 {
		return nil, &ValidationError{Message: `the "tasks" parameter must contain at least one task`}
	}
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t == nil {
			return nil, &ValidationError{Message: `the "tasks" parameter must only contain non-nil tasks`}
		}
		if seen[t.name] {
			return nil, &ValidationError{Message: "each task name in \"tasks\" must be unique: " + t.name}
		}
		seen[t.name] = true
	}

	opts = opts.withDefaults()
	if opts.Processes < 0 {
		return nil, &ValidationError{Message: `the "Processes" option must be >= 0`}
	}
	if opts.Threads < 0 {
		return nil, &ValidationError{Message: `the "Threads" option must be >= 0`}
	}

	graph := BuildDependencyGraph(tasks)
	if ok, missing, cyclic := graph.Validate(); !ok {
		if cyclic {
			return nil, &CycleError{Message: "dependencies of the tasks contain a cycle"}
		}
		return nil, &MissingDependencyError{
			Message: "one or more tasks depend on a task outside the submitted set",
			Edges:   missing,
		}
	}

	runID := uuid.NewString()
	logger := opts.Logger.With("run_id", runID)
	s := &scheduler{
		runID:       runID,
		tasks:       sortedByPriority(tasks),
		graph:       graph,
		states:      newStateStore(),
		workers:     NewWorkerLedger(opts.Processes, opts.Threads),
		resources:   NewResourceLedger(ResourceDemand{opts.SystemProcessor, opts.SystemMemory, opts.GraphicsProcessor, opts.GraphicsMemory}),
		wrapper:     NewFunctionWrapper(logger, opts.DurationFormatter),
		binder:      nil, // assigned below, needs states
		thread:      ThreadExecutor{},
		process:     opts.ProcessBackend,
		result:      newSchedulerResult(),
		logger:      logger,
		wake:        make(chan struct{}, 1),
		pollEvery:   opts.PollInterval,
		handles:     make(map[string]Handle, len(tasks)),
		initialized: make(map[string]bool, len(tasks)),
		exporter:    opts.Exporter,
	}
	s.binder = newParameterBinder(s.states)
	s.logger.Info("scheduler run starting", "tasks", len(tasks))

	return s.execute(ctx)
}

func sortedByPriority(tasks []*TaskSpec) []*TaskSpec {
	out := append([]*TaskSpec(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].sequence < out[j].sequence
	})
	return out
}

// scheduler holds one Run call's mutable coordination state.
type scheduler struct {
	runID string
	tasks []*TaskSpec
	graph *DependencyGraph

	states    *stateStore
	workers   *WorkerLedger
	resources *ResourceLedger
	wrapper   *FunctionWrapper
	binder    *ParameterBinder
	thread    ExecutorBackend
	process   ExecutorBackend
	result    *SchedulerResult
	logger    *slog.Logger

	wake      chan struct{}
	pollEvery time.Duration

	handles     map[string]Handle
	initialized map[string]bool

	exporter *metrics.PrometheusExporter
}

// reportOccupancy pushes the ledgers' current scan-based in-flight
// consumption to the exporter, if one was configured. Called once per
// scheduler-loop scan, matching the "declared, not measured" rule: this
// reads the same bookkeeping Admissible already computes, never
// sampled OS-level usage.
func (s *scheduler) reportOccupancy() {
	if s.exporter == nil {
		return
	}
	processes, threads := activeWorkerUsage(s.tasks, s.states)
	s.exporter.SetWorkerOccupancy(processes, threads)
	usage := activeResourceUsage(s.tasks, s.states)
	s.exporter.SetResourceUsage("system_processor", usage.SystemProcessor)
	s.exporter.SetResourceUsage("system_memory", usage.SystemMemory)
	s.exporter.SetResourceUsage("graphics_processor", usage.GraphicsProcessor)
	s.exporter.SetResourceUsage("graphics_memory", usage.GraphicsMemory)

	active := 0
	for _, t := range s.tasks {
		if state, ok := s.states.get(t.name); ok && state.Start() && !state.Finish() {
			active++
		}
	}
	s.exporter.SetActiveTasks(active)
}

func (s *scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *scheduler) finished() bool {
	for _, t := range s.tasks {
		if !s.initialized[t.name] {
			return false
		}
		state, _ := s.states.get(t.name)
		if !state.Finish() {
			return false
		}
	}
	return true
}

// execute runs the preflight admission pass and then the priority-scan
// dispatch loop, mirroring TaskScheduler.execute's "preflight once, then
// scan-and-break" structure.
func (s *scheduler) execute(ctx context.Context) (*SchedulerResult, error) {
	for _, t := range s.tasks {
		if ok, deficit := s.workers.Feasible(t); !ok {
			s.cancelForWorker(t, deficit)
			continue
		}
		if ok, deficit := s.resources.Feasible(t); !ok {
			s.cancelForResource(t, deficit)
		}
	}

	for !s.finished() {
		dispatched := false
		for _, t := range s.tasks {
			if s.initialized[t.name] {
				continue
			}
			if ok, _ := s.workers.Admissible(t, s.tasks, s.states); !ok {
				continue
			}
			if ok, _ := s.resources.Admissible(t, s.tasks, s.states); !ok {
				continue
			}
			if s.graph.IsBlocked(t, s.states, "finish") {
				continue
			}
			if s.graph.IsBlocked(t, s.states, "complete") {
				s.cancelForDependency(t)
				dispatched = true
				continue
			}
			if err := s.dispatch(ctx, t); err != nil {
				s.logger.Error("failed to dispatch task", "task", t.name, "error", err)
				continue
			}
			dispatched = true
			break
		}
		s.reportOccupancy()
		if dispatched {
			continue
		}
		select {
		case <-s.wake:
		case <-time.After(s.pollEvery):
		case <-ctx.Done():
			s.closeHandles()
			return s.harvest(), errors.Wrap(ctx.Err(), "scheduler run canceled")
		}
	}
	s.closeHandles()
	return s.harvest(), nil
}

func (s *scheduler) closeHandles() {
	for _, h := range s.handles {
		h.Close()
	}
}

func (s *scheduler) markInitialized(t *TaskSpec) *SharedState {
	state := s.states.allocate(t.name)
	s.initialized[t.name] = true
	return state
}

func (s *scheduler) cancelForWorker(t *TaskSpec, deficit WorkerDeficit) {
	state := s.markInitialized(t)
	s.wrapper.CancelForWorkerDeficit(t, state, deficit)
	if s.exporter != nil {
		s.exporter.RecordCancellation("worker")
	}
}

func (s *scheduler) cancelForResource(t *TaskSpec, deficit ResourceDeficit) {
	state := s.markInitialized(t)
	s.wrapper.CancelForResourceDeficit(t, state, deficit)
	if s.exporter != nil {
		s.exporter.RecordCancellation("resource")
	}
}

func (s *scheduler) cancelForDependency(t *TaskSpec) {
	blocking := s.graph.BlockingTasks(t, s.states)
	state := s.markInitialized(t)
	s.wrapper.CancelForDependency(t, state, blocking)
	if s.exporter != nil {
		s.exporter.RecordCancellation("dependency")
	}
}

func (s *scheduler) dispatch(ctx context.Context, t *TaskSpec) error {
	args, kwargs, err := s.binder.Resolve(t)
	if err != nil {
		// An unresolvable ReturnProxy fails the task itself, so its
		// dependents cascade-cancel instead of the loop retrying it.
		state := s.markInitialized(t)
		state.SetRaiseException(&RaiseException{Err: err})
		state.SetFinish(true)
		return err
	}
	bound := *t
	bound.args = args
	bound.kwargs = kwargs

	// Admissible already confirmed headroom by scanning active tasks;
	// Acquire reserves the same weight on the semaphore pair. The scan
	// stops counting a task once it sets finish, but its weight is only
	// released after its Done channel closes, so Acquire may wait briefly
	// for that release (see WorkerLedger docs).
	release, err := s.workers.Acquire(ctx, t)
	if err != nil {
		return err
	}

	state := s.markInitialized(t)
	backend := s.thread
	if t.kind == Process {
		backend = s.process
	}
	handle, err := backend.Launch(ctx, &bound, s.wrapper, state)
	if err != nil {
		release()
		// Launch failed before the task ever ran: mark it terminal
		// directly, since no goroutine is coming to do it and the loop
		// would otherwise poll forever waiting for this task to finish.
		state.SetRaiseException(&RaiseException{Err: err})
		state.SetFinish(true)
		if s.exporter != nil {
			s.exporter.RecordTaskOutcome(t.kind.String(), false, 0)
		}
		return err
	}
	s.handles[t.name] = handle
	go func() {
		<-handle.Done()
		release()
		if s.exporter != nil {
			elapsed, _ := state.ElapsedTime()
			s.exporter.RecordTaskOutcome(t.kind.String(), state.Complete(), elapsed)
		}
		s.signalWake()
	}()
	return nil
}

// harvest drains every terminal task's SharedState into the result and
// frees it, matching shared_memory_handler.py's free(): by the time
// harvest runs, every downstream consumer has either already launched
// (and thus bound this task's return value) or been cascade-cancelled,
// so nothing can still need the entry afterward.
func (s *scheduler) harvest() *SchedulerResult {
	for _, t := range s.tasks {
		state, ok := s.states.get(t.name)
		if !ok || !state.Finish() {
			continue
		}
		s.result.record(t, state)
	}
	s.result.sort()
	for _, t := range s.tasks {
		s.states.free(t.name)
	}
	return s.result
}
