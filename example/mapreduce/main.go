// Command mapreduce runs a small map/reduce application on the local runner:
// the entrypoint maps inc over the input slice and folds the results with
// add. It exercises declaration, composition, tail calls, and fold lowering
// without a scheduler.
package main

import (
	"context"
	"flag"
	"fmt"

	tensorlake "github.com/tensorlakeai/tensorlake-go"
	"github.com/tensorlakeai/tensorlake-go/runtime/runner/local"
	"github.com/tensorlakeai/tensorlake-go/runtime/telemetry"
	"goa.design/clue/log"
)

// inc adds one to its argument.
var inc = tensorlake.Function("inc", func(ctx context.Context, inv *tensorlake.Invocation) (any, error) {
	x, ok := inv.Arg(0).(int)
	if !ok {
		return nil, fmt.Errorf("inc takes an int, got %T", inv.Arg(0))
	}
	return x + 1, nil
})

// add is the binary fold step.
var add = tensorlake.Function("add", func(ctx context.Context, inv *tensorlake.Invocation) (any, error) {
	a, ok := inv.Arg(0).(int)
	if !ok {
		return nil, fmt.Errorf("add takes ints, got %T", inv.Arg(0))
	}
	b, ok := inv.Arg(1).(int)
	if !ok {
		return nil, fmt.Errorf("add takes ints, got %T", inv.Arg(1))
	}
	return a + b, nil
})

// sum is the application entrypoint. The returned fold is a tail call, so
// the request resolves to the fold result.
var _ = tensorlake.Application("sum", sumHandler,
	tensorlake.WithDescription("increment every element, then add them up"),
	tensorlake.WithParams(tensorlake.Param{Name: "xs", TypeToken: "[]int", Required: true}),
	tensorlake.WithReturnHint(tensorlake.Param{TypeToken: "int"}),
)

func sumHandler(ctx context.Context, inv *tensorlake.Invocation) (any, error) {
	xs, ok := inv.Arg(0).([]int)
	if !ok {
		return nil, fmt.Errorf("sum takes []int, got %T", inv.Arg(0))
	}
	calls := make([]any, len(xs))
	for i, x := range xs {
		calls[i] = inc.Call(x)
	}
	return tensorlake.Reduce(add, calls...), nil
}

func main() {
	var (
		workersF = flag.Int("workers", local.DefaultWorkers, "Worker pool size")
		dbgF     = flag.Bool("debug", false, "Enable debug logs")
	)
	flag.Parse()

	// Setup logger. Replace logger with your own log package of choice.
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	runner := tensorlake.NewLocalRunner(
		local.WithWorkers(*workersF),
		local.WithLogger(telemetry.NewClueLogger()),
	)

	req, err := runner.Run(ctx, "sum", []int{1, 2, 3})
	if err != nil {
		log.Fatal(ctx, err)
	}
	out, err := req.Output(ctx)
	if err != nil {
		log.Fatal(ctx, err)
	}
	log.Print(ctx, log.KV{K: "request", V: req.ID()}, log.KV{K: "sum", V: out})
}
