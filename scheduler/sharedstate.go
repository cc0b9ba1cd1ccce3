package scheduler

import (
	"sync"
	"time"
)

// RaiseException carries a user exception or a cancellation error
// together with its formatted traceback, mirroring
// original_source/parallelism/core/raise_exception.py.
type RaiseException struct {
	Err       error
	Traceback string
}

func (r *RaiseException) Error() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// SharedState is the per-task coordination record spec.md §3 describes:
// readable/writable across the coordinator/worker boundary, tolerant of
// concurrent access. Each task's SharedState is written by exactly one
// worker and read by the coordinator and by ParameterBinder code
// resolving downstream consumers, so a single mutex per task is
// sufficient — no cross-task locking is required (spec.md §5).
type SharedState struct {
	mu sync.RWMutex

	executionTime time.Time
	elapsedTime   time.Duration
	hasElapsed    bool
	returnValue   any
	raiseErr      *RaiseException

	start    bool
	run      bool
	join     bool
	finish   bool
	complete bool
}

func newSharedState() *SharedState {
	return &SharedState{executionTime: time.Now()}
}

func (s *SharedState) SetExecutionTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executionTime = t
}

func (s *SharedState) ExecutionTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executionTime
}

func (s *SharedState) SetElapsedTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsedTime = d
	s.hasElapsed = true
}

func (s *SharedState) ElapsedTime() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elapsedTime, s.hasElapsed
}

func (s *SharedState) SetReturnValue(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returnValue = v
}

func (s *SharedState) ReturnValue() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.returnValue
}

func (s *SharedState) SetRaiseException(r *RaiseException) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raiseErr = r
}

func (s *SharedState) RaiseException() *RaiseException {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raiseErr
}

func (s *SharedState) SetStart(v bool) { s.setFlag(&s.start, v) }
func (s *SharedState) Start() bool     { return s.getFlag(&s.start) }

func (s *SharedState) SetRun(v bool) { s.setFlag(&s.run, v) }
func (s *SharedState) Run() bool     { return s.getFlag(&s.run) }

func (s *SharedState) SetJoin(v bool) { s.setFlag(&s.join, v) }
func (s *SharedState) Join() bool     { return s.getFlag(&s.join) }

func (s *SharedState) SetFinish(v bool) { s.setFlag(&s.finish, v) }
func (s *SharedState) Finish() bool     { return s.getFlag(&s.finish) }

func (s *SharedState) SetComplete(v bool) { s.setFlag(&s.complete, v) }
func (s *SharedState) Complete() bool     { return s.getFlag(&s.complete) }

func (s *SharedState) setFlag(field *bool, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*field = v
}

func (s *SharedState) getFlag(field *bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *field
}

// stateStore owns the lifetime of per-task SharedState records and
// implements the taskStates interface DependencyGraph queries against.
// A task only has an entry once it has been admitted — preflight
// rejected, cascade-cancelled, or actually launched — matching the
// "initialized" flag of original_source/parallelism/core/scheduled_task.py.
type stateStore struct {
	mu     sync.RWMutex
	states map[string]*SharedState
}

func newStateStore() *stateStore {
	return &stateStore{states: make(map[string]*SharedState)}
}

func (s *stateStore) allocate(name string) *SharedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newSharedState()
	s.states[name] = state
	return state
}

func (s *stateStore) get(name string) (*SharedState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[name]
	return state, ok
}

func (s *stateStore) free(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, name)
}

func (s *stateStore) initialized(name string) bool {
	_, ok := s.get(name)
	return ok
}

func (s *stateStore) finished(name string) bool {
	state, ok := s.get(name)
	return ok && state.Finish()
}

func (s *stateStore) completed(name string) bool {
	state, ok := s.get(name)
	return ok && state.Complete()
}
