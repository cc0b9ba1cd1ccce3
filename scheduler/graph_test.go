package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStates is a minimal taskStates implementation for graph tests that
// don't need a full stateStore/SharedState round trip.
type fakeStates struct {
	init, fin, comp map[string]bool
}

func newFakeStates() *fakeStates {
	return &fakeStates{init: map[string]bool{}, fin: map[string]bool{}, comp: map[string]bool{}}
}

func (f *fakeStates) initialized(name string) bool { return f.init[name] }
func (f *fakeStates) finished(name string) bool     { return f.fin[name] }
func (f *fakeStates) completed(name string) bool    { return f.comp[name] }

func mustTask(t *testing.T, name string, opts Options) *TaskSpec {
	t.Helper()
	task, err := ScheduledTask(Thread, name, "", noopTarget, opts)
	require.NoError(t, err)
	return task
}

func TestDependencyGraph_ValidateOK(t *testing.T) {
	a := mustTask(t, "a", Options{})
	b := mustTask(t, "b", Options{Dependencies: []*TaskSpec{a}})
	g := BuildDependencyGraph([]*TaskSpec{a, b})

	ok, missing, cyclic := g.Validate()
	assert.True(t, ok)
	assert.Empty(t, missing)
	assert.False(t, cyclic)
}

func TestDependencyGraph_ValidateMissingDependency(t *testing.T) {
	a := mustTask(t, "a", Options{})
	b := mustTask(t, "b", Options{Dependencies: []*TaskSpec{a}})
	// Only submit b, so a is referenced but absent from the submission set.
	g := BuildDependencyGraph([]*TaskSpec{b})

	ok, missing, cyclic := g.Validate()
	assert.False(t, ok)
	assert.NotEmpty(t, missing)
	assert.False(t, cyclic)
}

func TestDependencyGraph_ValidateDetectsCycle(t *testing.T) {
	a := mustTask(t, "a", Options{})
	b := mustTask(t, "b", Options{Dependencies: []*TaskSpec{a}})
	// Manually wire a cycle: a depends on b, b depends on a.
	a.dependencies = []*TaskSpec{b}
	g := BuildDependencyGraph([]*TaskSpec{a, b})

	ok, _, cyclic := g.Validate()
	assert.False(t, ok)
	assert.True(t, cyclic)
}

func TestDependencyGraph_MergedPrerequisitesIncludesReturnProxyProducer(t *testing.T) {
	a := mustTask(t, "a", Options{})
	b := mustTask(t, "b", Options{Args: []any{a.ReturnValue()}})
	g := BuildDependencyGraph([]*TaskSpec{a, b})

	prereqs := g.Prerequisites(b)
	require.Len(t, prereqs, 1)
	assert.Equal(t, "a", prereqs[0].Name())
}

func TestDependencyGraph_IsBlockedUninitializedPrerequisite(t *testing.T) {
	a := mustTask(t, "a", Options{})
	b := mustTask(t, "b", Options{Dependencies: []*TaskSpec{a}})
	g := BuildDependencyGraph([]*TaskSpec{a, b})
	states := newFakeStates()

	assert.True(t, g.IsBlocked(b, states, "finish"))
}

func TestDependencyGraph_IsBlockedNotFinished(t *testing.T) {
	a := mustTask(t, "a", Options{})
	b := mustTask(t, "b", Options{Dependencies: []*TaskSpec{a}})
	g := BuildDependencyGraph([]*TaskSpec{a, b})
	states := newFakeStates()
	states.init["a"] = true

	assert.True(t, g.IsBlocked(b, states, "finish"))

	states.fin["a"] = true
	assert.False(t, g.IsBlocked(b, states, "finish"))
}

func TestDependencyGraph_BlockingTasksReturnsFinishedButIncomplete(t *testing.T) {
	a := mustTask(t, "a", Options{})
	b := mustTask(t, "b", Options{Dependencies: []*TaskSpec{a}})
	g := BuildDependencyGraph([]*TaskSpec{a, b})
	states := newFakeStates()
	states.init["a"] = true
	states.fin["a"] = true
	// not completed

	blocking := g.BlockingTasks(b, states)
	assert.Equal(t, []string{"a"}, blocking)

	states.comp["a"] = true
	assert.Empty(t, g.BlockingTasks(b, states))
}

func TestDependencyGraph_ReversePrerequisites(t *testing.T) {
	a := mustTask(t, "a", Options{})
	b := mustTask(t, "b", Options{Dependencies: []*TaskSpec{a}})
	g := BuildDependencyGraph([]*TaskSpec{a, b})

	reverse := g.ReversePrerequisites(a)
	require.Len(t, reverse, 1)
	assert.Equal(t, "b", reverse[0].Name())
}
