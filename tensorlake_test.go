package tensorlake

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tensorlakeai/tensorlake-go/client"
	"github.com/tensorlakeai/tensorlake-go/manifest"
	"github.com/tensorlakeai/tensorlake-go/runtime/function"
	"github.com/tensorlakeai/tensorlake-go/runtime/runner/local"
)

const testTimeout = 10 * time.Second

// Declarations register into the process-wide registry, so every test uses
// names of its own.

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestFunctionDeclarationRegisters(t *testing.T) {
	fn := Function("tl.declared", func(ctx context.Context, inv *Invocation) (any, error) {
		return inv.Arg(0), nil
	})

	got, ok := Registry().Function("tl.declared")
	require.True(t, ok)
	require.Same(t, fn, got)
	require.True(t, strings.HasSuffix(fn.File(), "tensorlake_test.go"),
		"declaration site points at the caller")
}

func TestApplicationDeclarationRegisters(t *testing.T) {
	app := Application("tl.declared.app", func(ctx context.Context, inv *Invocation) (any, error) {
		return "ok", nil
	})

	got, ok := Registry().Application("tl.declared.app")
	require.True(t, ok)
	require.Same(t, app, got)
	require.True(t, app.IsAPI())

	_, ok = Registry().Function("tl.declared.app")
	require.True(t, ok, "the entrypoint is callable like any function")
}

func TestClassDeclarationRegisters(t *testing.T) {
	cls := Class("tl.Tokenizer", func(ctx context.Context) (any, error) {
		return &strings.Replacer{}, nil
	})
	Function("tl.Tokenizer.split", func(ctx context.Context, inv *Invocation) (any, error) {
		return strings.Fields(inv.Arg(0).(string)), nil
	}, WithClass("tl.Tokenizer"))

	got, ok := Registry().Class("tl.Tokenizer")
	require.True(t, ok)
	require.Same(t, cls, got)
}

func TestDuplicateDeclarationPanics(t *testing.T) {
	handler := func(ctx context.Context, inv *Invocation) (any, error) { return nil, nil }
	Function("tl.dup", handler)

	require.Panics(t, func() {
		Function("tl.dup", handler, function.WithSource("elsewhere/defs.go", 7))
	})
}

func TestRunApplicationEndToEnd(t *testing.T) {
	add := Function("tl.add", func(ctx context.Context, inv *Invocation) (any, error) {
		a, aok := inv.Arg(0).(int)
		b, bok := inv.Arg(1).(int)
		if !aok || !bok {
			return nil, fmt.Errorf("add wants ints, got %T and %T", inv.Arg(0), inv.Arg(1))
		}
		return a + b, nil
	})
	Application("tl.pipeline", func(ctx context.Context, inv *Invocation) (any, error) {
		base, ok := inv.Arg(0).(int)
		if !ok {
			return nil, fmt.Errorf("pipeline wants an int, got %T", inv.Arg(0))
		}
		return Await(ctx, add.Call(base, 4))
	})

	ctx := testContext(t)
	req, err := NewLocalRunner(local.WithTick(5 * time.Millisecond)).Run(ctx, "tl.pipeline", 3)
	require.NoError(t, err)
	require.NotEmpty(t, req.ID())

	out, err := req.Output(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, out)
}

func TestRunAndWaitPartition(t *testing.T) {
	square := Function("tl.square", func(ctx context.Context, inv *Invocation) (any, error) {
		n := inv.Arg(0).(int)
		return n * n, nil
	})
	Application("tl.squares", func(ctx context.Context, inv *Invocation) (any, error) {
		f1, err := Run(ctx, square.Call(3))
		if err != nil {
			return nil, err
		}
		f2, err := Run(ctx, square.Call(4))
		if err != nil {
			return nil, err
		}
		done, notDone, err := Wait(ctx, []*Future{f1, f2}, AllCompleted)
		if err != nil {
			return nil, err
		}
		if len(notDone) != 0 {
			return nil, fmt.Errorf("%d futures still pending after AllCompleted", len(notDone))
		}
		sum := 0
		for _, f := range done {
			v, err := f.Result(ctx)
			if err != nil {
				return nil, err
			}
			sum += v.(int)
		}
		return sum, nil
	})

	ctx := testContext(t)
	req, err := NewLocalRunner(local.WithTick(5 * time.Millisecond)).Run(ctx, "tl.squares")
	require.NoError(t, err)
	out, err := req.Output(ctx)
	require.NoError(t, err)
	require.Equal(t, 25, out)
}

func TestGatherExpandsIntoArguments(t *testing.T) {
	double := Function("tl.gather.double", func(ctx context.Context, inv *Invocation) (any, error) {
		return inv.Arg(0).(int) * 2, nil
	})
	sumAll := Function("tl.gather.sum", func(ctx context.Context, inv *Invocation) (any, error) {
		sum := 0
		for _, a := range inv.Args {
			n, ok := a.(int)
			if !ok {
				return nil, fmt.Errorf("sum wants ints, got %T", a)
			}
			sum += n
		}
		return sum, nil
	})
	Application("tl.gathered", func(ctx context.Context, inv *Invocation) (any, error) {
		return Await(ctx, sumAll.Call(Gather(1, double.Call(2), 3)))
	})

	ctx := testContext(t)
	req, err := NewLocalRunner(local.WithTick(5 * time.Millisecond)).Run(ctx, "tl.gathered")
	require.NoError(t, err)
	out, err := req.Output(ctx)
	require.NoError(t, err)
	require.Equal(t, 8, out, "1 + double(2) + 3")
}

func TestReduceFoldsLeft(t *testing.T) {
	concat := Function("tl.reduce.concat", func(ctx context.Context, inv *Invocation) (any, error) {
		a, aok := inv.Arg(0).(string)
		b, bok := inv.Arg(1).(string)
		if !aok || !bok {
			return nil, fmt.Errorf("concat wants strings, got %T and %T", inv.Arg(0), inv.Arg(1))
		}
		return a + b, nil
	})
	Application("tl.reduced", func(ctx context.Context, inv *Invocation) (any, error) {
		return Await(ctx, Reduce(concat, "a", "b", "c"))
	})

	ctx := testContext(t)
	req, err := NewLocalRunner(local.WithTick(5 * time.Millisecond)).Run(ctx, "tl.reduced")
	require.NoError(t, err)
	out, err := req.Output(ctx)
	require.NoError(t, err)
	require.Equal(t, "abc", out)
}

func TestRunLaterHonorsDelay(t *testing.T) {
	echo := Function("tl.later.echo", func(ctx context.Context, inv *Invocation) (any, error) {
		return inv.Arg(0), nil
	})
	Application("tl.later", func(ctx context.Context, inv *Invocation) (any, error) {
		start := time.Now()
		f, err := RunLater(ctx, 60*time.Millisecond, echo.Call("x"))
		if err != nil {
			return nil, err
		}
		if _, err := f.Result(ctx); err != nil {
			return nil, err
		}
		return time.Since(start).Milliseconds(), nil
	})

	ctx := testContext(t)
	req, err := NewLocalRunner(local.WithTick(5 * time.Millisecond)).Run(ctx, "tl.later")
	require.NoError(t, err)
	out, err := req.Output(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, out.(int64), int64(60))
}

func TestHooksOutsideRequestFail(t *testing.T) {
	noop := Function("tl.unbound", func(ctx context.Context, inv *Invocation) (any, error) {
		return nil, nil
	})
	ctx := context.Background()

	_, err := Run(ctx, noop.Call())
	require.True(t, IsUsageError(err))
	_, err = RunLater(ctx, time.Second, noop.Call())
	require.True(t, IsUsageError(err))
	_, err = Await(ctx, noop.Call())
	require.True(t, IsUsageError(err))
	_, _, err = Wait(ctx, nil, AllCompleted)
	require.True(t, IsUsageError(err))
}

func TestDeployUploadsManifestAndCode(t *testing.T) {
	Application("tl.deployable", func(ctx context.Context, inv *Invocation) (any, error) {
		return inv.Arg(0), nil
	},
		WithDescription("echo application"),
		WithParams(Param{Name: "url", TypeToken: "string", Required: true}),
		WithReturnHint(Param{TypeToken: "string"}),
	)

	var (
		manifestBody []byte
		archiveBody  []byte
		handlerErr   error
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			handlerErr = err
			return
		}
		mf, _, err := r.FormFile("manifest")
		if err != nil {
			handlerErr = err
			return
		}
		manifestBody, handlerErr = io.ReadAll(mf)
		cf, _, err := r.FormFile("code")
		if err != nil {
			handlerErr = err
			return
		}
		archiveBody, _ = io.ReadAll(cf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv(client.EnvAPIKey, "")
	c, err := client.New(
		client.WithBaseURL(srv.URL),
		client.WithAPIKey("test-key"),
		client.WithCredentialsFile(""),
	)
	require.NoError(t, err)

	ctx := testContext(t)
	m, err := Deploy(ctx, c, "tl.deployable", strings.NewReader("zipped code"))
	require.NoError(t, err)
	require.NoError(t, handlerErr)
	require.Equal(t, "tl.deployable", m.Name)

	uploaded, err := manifest.Decode(manifestBody)
	require.NoError(t, err)
	require.Equal(t, m, uploaded)
	require.Equal(t, "tl.deployable", uploaded.Entrypoint.FunctionName)
	require.Contains(t, uploaded.Functions, "tl.deployable")
	require.Equal(t, "zipped code", string(archiveBody))
}

func TestDeployUnknownApplicationSendsNothing(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	t.Setenv(client.EnvAPIKey, "")
	c, err := client.New(
		client.WithBaseURL(srv.URL),
		client.WithAPIKey("test-key"),
		client.WithCredentialsFile(""),
	)
	require.NoError(t, err)

	_, err = Deploy(testContext(t), c, "tl.ghost", strings.NewReader("zip"))
	require.True(t, IsUsageError(err))
	require.Equal(t, int32(0), calls.Load(), "nothing uploads when the build fails")
}
