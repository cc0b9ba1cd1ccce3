// Package execctx defines the callable shape a scheduler task runs and
// the registry Process-kind tasks use to resolve a target across an OS
// process boundary.
//
// A Go closure cannot be handed to a child process the way Python's
// multiprocessing can pickle a bound function, so a Process-kind
// TaskSpec's target must be registered here, by name, before it is
// scheduled; the child process looks the name back up in its own copy
// of the registry. Thread-kind tasks need no registration: they run as
// a goroutine in the coordinator's own address space.
package execctx

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"sync"
)

// TaskFunc is the callable shape every scheduled task's target
// implements: positional args, keyword args, and a context for
// cancellation, returning a single value or an error.
type TaskFunc func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// WorkerFlag is the sentinel argument a re-exec'd binary recognizes to
// mean "run as a Process-kind worker and Serve one request on
// stdin/stdout", rather than running its normal entry point.
const WorkerFlag = "--parallelism-worker"

var (
	mu       sync.RWMutex
	registry = make(map[string]TaskFunc)
)

// Register associates name with fn so a Process-kind task can refer to
// it by name. Call this from an init function or before constructing
// any TaskSpec that targets it — in particular, before re-executing the
// binary as a worker, since the child process must see the same
// registration the parent does.
func Register(name string, fn TaskFunc) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Lookup returns the TaskFunc registered under name, if any.
func Lookup(name string) (TaskFunc, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Request is the wire shape a re-exec'd worker process reads from
// stdin: which registered target to run and the arguments to run it
// with. Any concrete type carried in Args/Kwargs must be registered
// with gob.Register by both the parent and the worker binary, since
// encoding/gob cannot encode an interface value it was never told the
// concrete type of — the Go analogue of a value needing to be
// picklable to cross a Python multiprocessing boundary.
type Request struct {
	ProcessName string
	Args        []any
	Kwargs      map[string]any
}

// Response is the wire shape a worker process writes to stdout after
// running the requested target.
type Response struct {
	Value any
	Err   string
}

// Serve reads a single Request from r, looks up its ProcessName in this
// process's own registry, runs it, and writes a Response to w. It is
// the entry point a re-exec'd worker binary calls; see
// scheduler.ProcessExecutor for the parent side of the protocol.
func Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	var req Request
	if err := gob.NewDecoder(r).Decode(&req); err != nil {
		return fmt.Errorf("decoding worker request: %w", err)
	}
	fn, ok := Lookup(req.ProcessName)
	if !ok {
		return gob.NewEncoder(w).Encode(Response{Err: fmt.Sprintf("process target %q is not registered", req.ProcessName)})
	}
	value, err := fn(ctx, req.Args, req.Kwargs)
	resp := Response{Value: value}
	if err != nil {
		resp.Err = err.Error()
	}
	return gob.NewEncoder(w).Encode(resp)
}
