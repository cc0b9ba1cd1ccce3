package scheduler

import (
	"sort"
	"time"
)

// entry is one key/value pair of an OrderedMap, preserving insertion or
// sort order explicitly rather than relying on Go's unordered map
// iteration.
type entry[V any] struct {
	Key   string
	Value V
}

// OrderedMap is a minimal ordered string-keyed map, used by
// SchedulerResult to expose its four result tables sorted by each
// task's execution time, matching
// original_source/parallelism/core/handlers/shared_memory_handler.py's
// sort method.
type OrderedMap[V any] struct {
	entries []entry[V]
	index   map[string]int
}

func newOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{index: make(map[string]int)}
}

func (m *OrderedMap[V]) set(key string, value V) {
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, entry[V]{Key: key, Value: value})
}

// Get returns the value stored under key, and whether it was present.
func (m *OrderedMap[V]) Get(key string) (V, bool) {
	if i, ok := m.index[key]; ok {
		return m.entries[i].Value, true
	}
	var zero V
	return zero, false
}

// Keys returns the map's keys in its current order.
func (m *OrderedMap[V]) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of entries.
func (m *OrderedMap[V]) Len() int { return len(m.entries) }

// sortByOrder reorders m's entries to match the order names appear in
// order. Entries whose names order does not list are kept and sort as
// if they were at position 0.
func (m *OrderedMap[V]) sortByOrder(order []string) {
	position := make(map[string]int, len(order))
	for i, name := range order {
		position[name] = i
	}
	sort.SliceStable(m.entries, func(i, j int) bool {
		return position[m.entries[i].Key] < position[m.entries[j].Key]
	})
	for i, e := range m.entries {
		m.index[e.Key] = i
	}
}

// SchedulerResult is the harvested outcome of a Run call: four tables
// keyed by the names of terminal tasks (launched or cancelled), each
// sorted by that task's execution_time so callers iterating Keys() see
// tasks in the order they started or were cancelled. Grounded on scheduler_result.py and
// shared_memory_handler.py's free()/sort().
type SchedulerResult struct {
	ExecutionTime  *OrderedMap[time.Time]
	ElapsedTime    *OrderedMap[time.Duration]
	RaiseException *OrderedMap[*RaiseException]
	ReturnValue    *OrderedMap[any]
}

func newSchedulerResult() *SchedulerResult {
	return &SchedulerResult{
		ExecutionTime:  newOrderedMap[time.Time](),
		ElapsedTime:    newOrderedMap[time.Duration](),
		RaiseException: newOrderedMap[*RaiseException](),
		ReturnValue:    newOrderedMap[any](),
	}
}

// record harvests one finished task's SharedState into the result
// tables, following shared_memory_handler.py's free(): only the
// execution_time is unconditional, elapsed_time/raise_exception are
// recorded when present, and return_value is recorded only when the
// task both succeeded and was marked continual.
func (r *SchedulerResult) record(task *TaskSpec, state *SharedState) {
	r.ExecutionTime.set(task.name, state.ExecutionTime())
	if elapsed, ok := state.ElapsedTime(); ok {
		r.ElapsedTime.set(task.name, elapsed)
	}
	if raised := state.RaiseException(); raised != nil {
		r.RaiseException.set(task.name, raised)
	} else if task.continual {
		r.ReturnValue.set(task.name, state.ReturnValue())
	}
}

// sort reorders every table by ascending execution_time, breaking ties
// by the order names were first recorded, matching
// shared_memory_handler.py's sort().
func (r *SchedulerResult) sort() {
	order := append([]string(nil), r.ExecutionTime.Keys()...)
	sort.SliceStable(order, func(i, j int) bool {
		ti, _ := r.ExecutionTime.Get(order[i])
		tj, _ := r.ExecutionTime.Get(order[j])
		return ti.Before(tj)
	})
	r.ExecutionTime.sortByOrder(order)
	r.ElapsedTime.sortByOrder(order)
	r.RaiseException.sortByOrder(order)
	r.ReturnValue.sortByOrder(order)
}
