package scheduler

import (
	"context"
	"testing"

	"github.com/idanhazan/parallelism/scheduler/execctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledgerProcessName is registered so Process-kind fixtures pass
// ScheduledTask's registration check.
const ledgerProcessName = "workerledger_test.noop"

func init() {
	execctx.Register(ledgerProcessName, noopTarget)
}

func TestWorkerLedger_FeasibleProcessStrictLessThan(t *testing.T) {
	ledger := NewWorkerLedger(2, 2)
	task, err := ScheduledTask(Process, "p", ledgerProcessName, noopTarget, Options{Processes: 1})
	require.NoError(t, err)

	ok, deficit := ledger.Feasible(task)
	assert.True(t, ok)
	assert.Zero(t, deficit)
}

func TestWorkerLedger_FeasibleProcessRejectsAtEquality(t *testing.T) {
	// task.Processes declares 2 additional processes, equal to the full
	// budget of 2: 2 < 2 is false, so this is infeasible under the
	// strict-less-than semantics, and its total demand of 3 (2 plus the
	// +1 it consumes for itself) exceeds the budget by 1.
	ledger := NewWorkerLedger(2, 2)
	task, err := ScheduledTask(Process, "p", ledgerProcessName, noopTarget, Options{Processes: 2})
	require.NoError(t, err)

	ok, deficit := ledger.Feasible(task)
	assert.False(t, ok)
	assert.Equal(t, 1, deficit.Processes)
}

func TestWorkerLedger_FeasibleThreadBothAxes(t *testing.T) {
	ledger := NewWorkerLedger(2, 2)
	task, err := ScheduledTask(Thread, "t", "", noopTarget, Options{Threads: 2})
	require.NoError(t, err)

	ok, deficit := ledger.Feasible(task)
	assert.False(t, ok)
	assert.Equal(t, 1, deficit.Threads)
	assert.Zero(t, deficit.Processes)
}

func TestWorkerLedger_AdmissibleAccountsForActiveTasks(t *testing.T) {
	// "active" alone already occupies the full process budget (its
	// declared Processes: 1 plus the +1 its own executor consumes), so
	// a zero-demand candidate still has no room to be admitted.
	ledger := NewWorkerLedger(2, 2)
	states := newStateStore()

	active, err := ScheduledTask(Process, "active", ledgerProcessName, noopTarget, Options{Processes: 1})
	require.NoError(t, err)
	candidate, err := ScheduledTask(Process, "candidate", ledgerProcessName, noopTarget, Options{})
	require.NoError(t, err)

	state := states.allocate("active")
	state.SetStart(true)

	ok, _ := ledger.Admissible(candidate, []*TaskSpec{active, candidate}, states)
	assert.False(t, ok)
}

func TestWorkerLedger_FeasibleThreadProcessAxisNoExtraSlot(t *testing.T) {
	// A Thread-kind task has no process executor of its own, so its
	// declared processes count against the budget with no +1: at
	// processes == budget the deficit is 0, not 1.
	ledger := NewWorkerLedger(2, 2)
	task, err := ScheduledTask(Thread, "t", "", noopTarget, Options{Processes: 2})
	require.NoError(t, err)

	ok, deficit := ledger.Feasible(task)
	assert.False(t, ok)
	assert.Zero(t, deficit.Processes)
}

func TestWorkerLedger_AdmissibleAccountsForActiveThreadTaskProcesses(t *testing.T) {
	// A running Thread task that declares Processes:2 already exhausts
	// the process budget (P=2) even though activeWorkerUsage only ever
	// credits it to the thread axis for its own executor slot; a second
	// Process-kind task must not be admitted on top of it.
	ledger := NewWorkerLedger(2, 2)
	states := newStateStore()

	active, err := ScheduledTask(Thread, "active", "", noopTarget, Options{Processes: 2})
	require.NoError(t, err)
	candidate, err := ScheduledTask(Process, "candidate", ledgerProcessName, noopTarget, Options{})
	require.NoError(t, err)

	state := states.allocate("active")
	state.SetStart(true)

	ok, _ := ledger.Admissible(candidate, []*TaskSpec{active, candidate}, states)
	assert.False(t, ok)
}

func TestWorkerLedger_AdmissibleIgnoresFinishedTasks(t *testing.T) {
	ledger := NewWorkerLedger(2, 2)
	states := newStateStore()

	done, err := ScheduledTask(Process, "done", ledgerProcessName, noopTarget, Options{})
	require.NoError(t, err)
	candidate, err := ScheduledTask(Process, "candidate", ledgerProcessName, noopTarget, Options{})
	require.NoError(t, err)

	state := states.allocate("done")
	state.SetStart(true)
	state.SetFinish(true)

	ok, _ := ledger.Admissible(candidate, []*TaskSpec{done, candidate}, states)
	assert.True(t, ok)
}

func TestWorkerLedger_AcquireAndRelease(t *testing.T) {
	ledger := NewWorkerLedger(1, 1)
	task, err := ScheduledTask(Process, "p", ledgerProcessName, noopTarget, Options{})
	require.NoError(t, err)

	release, err := ledger.Acquire(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, release)
	release()

	// After release, a second acquire for the same single-slot budget
	// must succeed without blocking.
	release2, err := ledger.Acquire(context.Background(), task)
	require.NoError(t, err)
	release2()
}
