// Package scheduler implements a dependency-aware task scheduler: a
// priority-ordered, budget-constrained executor for a user-supplied set
// of computational tasks that honors a directed acyclic dependency graph
// between them.
package scheduler

import (
	"math"
	"sync/atomic"

	"github.com/idanhazan/parallelism/scheduler/execctx"
	"github.com/pkg/errors"
)

// Kind selects the execution unit a TaskSpec runs under.
type Kind int

const (
	// Thread runs the target as a goroutine in the coordinator's own
	// address space.
	Thread Kind = iota
	// Process runs the target in a freshly isolated OS process.
	Process
)

// String renders the kind the way log lines and error messages expect.
func (k Kind) String() string {
	switch k {
	case Thread:
		return "thread"
	case Process:
		return "process"
	default:
		return "unknown"
	}
}

var taskSequence int64

// TaskSpec is an immutable description of one scheduled unit of work.
// Construct one with ScheduledTask; do not build it by hand.
type TaskSpec struct {
	name         string
	kind         Kind
	target       execctx.TaskFunc
	processName  string // non-empty only for Process-kind tasks
	args         []any
	kwargs       map[string]any
	dependencies []*TaskSpec
	priority     float64
	sequence     int64
	processes    int
	threads      int
	system       ResourceDemand
	continual    bool
}

// ResourceDemand is the declared CPU/RAM/GPU/GPU-RAM percentage estimate
// a task carries. Values are estimates the caller supplies; the
// scheduler never measures actual usage.
type ResourceDemand struct {
	SystemProcessor   float64
	SystemMemory      float64
	GraphicsProcessor float64
	GraphicsMemory    float64
}

// Options configures a ScheduledTask call. Zero value means "default".
type Options struct {
	Args              []any
	Kwargs            map[string]any
	Dependencies      []*TaskSpec
	Priority          *float64
	Processes         int
	Threads           int
	SystemProcessor   float64
	SystemMemory      float64
	GraphicsProcessor float64
	GraphicsMemory    float64
	Continual         bool
}

// ScheduledTask validates the given options and constructs an immutable
// TaskSpec. It is the Go analogue of the Python library's
// `scheduled_task` function (api_reference.py).
//
// For Process-kind tasks, target must already be registered by name with
// execctx.Register — processName identifies that registration, since a
// Go closure cannot be handed across a real OS process boundary the way
// a pickled Python callable can.
//
// Every rejected option is reported as a *ValidationError.
func ScheduledTask(kind Kind, name string, processName string, target execctx.TaskFunc, opts Options) (_ *TaskSpec, err error) {
	defer func() {
		if err != nil {
			err = &ValidationError{Message: err.Error()}
		}
	}()
	if name == "" {
		return nil, errors.New(`the "name" parameter must be a non-empty string`)
	}
	if target == nil {
		return nil, errors.New(`the "target" parameter must be a callable object`)
	}
	if kind == Process && processName == "" {
		return nil, errors.New(`the "processName" parameter is required for Process-kind tasks`)
	}
	if kind == Process {
		if _, ok := execctx.Lookup(processName); !ok {
			return nil, errors.Errorf("process target %q is not registered with execctx.Register", processName)
		}
	}
	if opts.Processes < 0 {
		return nil, errors.New(`the "processes" parameter must be an integer >= 0`)
	}
	if opts.Threads < 0 {
		return nil, errors.New(`the "threads" parameter must be an integer >= 0`)
	}
	for _, pair := range []struct {
		name  string
		value float64
	}{
		{"systemProcessor", opts.SystemProcessor},
		{"systemMemory", opts.SystemMemory},
		{"graphicsProcessor", opts.GraphicsProcessor},
		{"graphicsMemory", opts.GraphicsMemory},
	} {
		if pair.value < 0 || pair.value > 100 {
			return nil, errors.Errorf("the %q parameter must be between 0 and 100", pair.name)
		}
	}

	priority := math.Inf(1)
	if opts.Priority != nil {
		priority = *opts.Priority
	}

	args := append([]any(nil), opts.Args...)
	kwargs := make(map[string]any, len(opts.Kwargs))
	for k, v := range opts.Kwargs {
		kwargs[k] = v
	}
	deps := append([]*TaskSpec(nil), opts.Dependencies...)

	return &TaskSpec{
		name:         name,
		kind:         kind,
		target:       target,
		processName:  processName,
		args:         args,
		kwargs:       kwargs,
		dependencies: dedupeTasks(deps),
		priority:     priority,
		sequence:     atomic.AddInt64(&taskSequence, 1),
		processes:    opts.Processes,
		threads:      opts.Threads,
		system: ResourceDemand{
			SystemProcessor:   opts.SystemProcessor,
			SystemMemory:      opts.SystemMemory,
			GraphicsProcessor: opts.GraphicsProcessor,
			GraphicsMemory:    opts.GraphicsMemory,
		},
		continual: opts.Continual,
	}, nil
}

// Name returns the task's unique identifier within its submission.
func (t *TaskSpec) Name() string { return t.name }

// Kind returns whether this task runs as a Process or a Thread.
func (t *TaskSpec) Kind() Kind { return t.kind }

// Priority returns the task's scheduling priority; smaller runs first.
func (t *TaskSpec) Priority() float64 { return t.priority }

// Continual reports whether this task's return value survives into the
// final SchedulerResult.
func (t *TaskSpec) Continual() bool { return t.continual }

// Processes returns the number of additional OS processes this task
// will itself spawn, counted against the global process budget.
func (t *TaskSpec) Processes() int { return t.processes }

// Threads returns the number of additional threads this task will
// itself spawn, counted against the global thread budget.
func (t *TaskSpec) Threads() int { return t.threads }

// Demand returns the task's declared resource estimate.
func (t *TaskSpec) Demand() ResourceDemand { return t.system }

// Dependencies returns the task's explicitly declared prerequisites
// (not including ones implied by ReturnProxy arguments — see
// Prerequisites on DependencyGraph for the merged set).
func (t *TaskSpec) Dependencies() []*TaskSpec {
	return append([]*TaskSpec(nil), t.dependencies...)
}

// ReturnValue returns a ReturnProxy bound to this task, with an empty
// transformation chain. Using it as an argument of another TaskSpec
// implicitly adds this task as a prerequisite of that consumer.
func (t *TaskSpec) ReturnValue() *ReturnProxy {
	return &ReturnProxy{task: t}
}

// String renders a debug-friendly summary, echoing
// original_source/parallelism/core/scheduled_task.py's __repr__.
func (t *TaskSpec) String() string {
	return "TaskSpec(name=" + t.name + ", kind=" + t.kind.String() + ")"
}

func dedupeTasks(tasks []*TaskSpec) []*TaskSpec {
	seen := make(map[string]bool, len(tasks))
	out := make([]*TaskSpec, 0, len(tasks))
	for _, task := range tasks {
		if task == nil || seen[task.name] {
			continue
		}
		seen[task.name] = true
		out = append(out, task)
	}
	return out
}
