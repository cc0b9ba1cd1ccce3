package main

import (
	"context"
	"fmt"
	"time"

	"github.com/idanhazan/parallelism/scheduler/execctx"
)

// fetchTarget simulates fetching a batch of records; it is registered
// under processFetch so it can also run as a Process-kind task.
func fetchTarget(_ context.Context, _ []any, kwargs map[string]any) (any, error) {
	batch, _ := kwargs["batch"].(int)
	time.Sleep(10 * time.Millisecond)
	return fmt.Sprintf("records-%d", batch), nil
}

// transformTarget simulates transforming the fetched batch; its first
// positional argument is expected to be a ReturnProxy resolution of
// fetchTarget's output.
func transformTarget(_ context.Context, args []any, _ map[string]any) (any, error) {
	var input string
	if len(args) > 0 {
		input, _ = args[0].(string)
	}
	time.Sleep(5 * time.Millisecond)
	return "transformed:" + input, nil
}

// reportTarget simulates writing a final report from two transformed
// batches.
func reportTarget(_ context.Context, args []any, _ map[string]any) (any, error) {
	time.Sleep(5 * time.Millisecond)
	return fmt.Sprintf("report(%v)", args), nil
}

const (
	processFetch = "demo.fetch"
)

func init() {
	execctx.Register(processFetch, fetchTarget)
}
