package function

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

func noop(ctx context.Context, inv *Invocation) (any, error) { return nil, nil }

func TestNewDefaults(t *testing.T) {
	fn := New("summarize", noop)
	require.Equal(t, "summarize", fn.Name())
	require.Equal(t, serializer.NameJSON, fn.InputSerializer())
	require.Equal(t, serializer.NameJSON, fn.OutputSerializer())
	require.Equal(t, DefaultMaxConcurrency, fn.MaxConcurrency())
	require.Equal(t, DefaultResources(), fn.Resources())
	require.Equal(t, DefaultTimeouts(), fn.Timeouts())
	require.False(t, fn.IsAPI())
	require.NotEmpty(t, fn.File(), "declaration source is captured")

	_, declared := fn.Retry()
	require.False(t, declared)
}

func TestNewOptions(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 4, InitialDelay: time.Second, MaxDelay: time.Minute, DelayMultiplier: 2}
	fn := New("embed", noop,
		WithDescription("embeds chunks"),
		WithClass("embedder"),
		WithInputSerializer(serializer.NameBinary),
		WithOutputSerializer(serializer.NameBinary),
		WithRetryPolicy(policy),
		WithRegion("us-east-1"),
		WithMaxConcurrency(8),
		WithImage("repo/embedder:1"),
		WithSecrets("API_KEY"),
		WithCacheKey("embed-v1"),
		WithParams(Param{Name: "chunk", TypeToken: "string", Required: true}),
		WithReturnHint(Param{TypeToken: "[]float64"}),
	)
	require.Equal(t, "embeds chunks", fn.Description())
	require.Equal(t, "embedder", fn.Class())
	require.Equal(t, serializer.NameBinary, fn.InputSerializer())
	require.Equal(t, serializer.NameBinary, fn.OutputSerializer())
	require.Equal(t, "us-east-1", fn.Region())
	require.Equal(t, 8, fn.MaxConcurrency())
	require.Equal(t, "repo/embedder:1", fn.Image())
	require.Equal(t, []string{"API_KEY"}, fn.Secrets())
	require.Equal(t, "embed-v1", fn.CacheKey())
	require.Equal(t, "[]float64", fn.ReturnHint().TypeToken)

	got, declared := fn.Retry()
	require.True(t, declared)
	require.Equal(t, policy, got)

	params := fn.Params()
	require.Len(t, params, 1)
	require.Equal(t, "chunk", params[0].Name)
}

func TestCallLiftsArguments(t *testing.T) {
	inner := New("inner", noop)
	outer := New("outer", noop)

	call := outer.Call(1, inner.Call(2), "x")
	require.Equal(t, "outer", call.Function())
	args := call.Args()
	require.Len(t, args, 3)
	require.True(t, args[0].IsValue())
	require.Equal(t, 1, args[0].Value())
	require.True(t, args[1].IsRef())
	require.Equal(t, "inner", args[1].Node().(*awaitable.FunctionCall).Function())
	require.True(t, args[2].IsValue())
}

func TestReduceLiftsInputs(t *testing.T) {
	add := New("add", noop)
	step := New("step", noop)

	red := add.Reduce(1, step.Call(2))
	require.Equal(t, "add", red.Function())
	inputs := red.Inputs()
	require.Len(t, inputs, 2)
	require.True(t, inputs[0].IsValue())
	require.True(t, inputs[1].IsRef())
}

func TestInvocationAccessors(t *testing.T) {
	inv := &Invocation{
		Args:   []any{"a", 2},
		Kwargs: map[string]any{"mode": "fast"},
	}
	require.Equal(t, "a", inv.Arg(0))
	require.Equal(t, 2, inv.Arg(1))
	require.Nil(t, inv.Arg(2))
	require.Nil(t, inv.Arg(-1))

	v, ok := inv.Kwarg("mode")
	require.True(t, ok)
	require.Equal(t, "fast", v)
	_, ok = inv.Kwarg("missing")
	require.False(t, ok)
}

func TestApplicationVersionNonce(t *testing.T) {
	a := NewApplication("pipeline", noop)
	b := NewApplication("pipeline", noop)
	require.Len(t, a.Version(), 12)
	require.NotEqual(t, a.Version(), b.Version(), "each load gets a fresh nonce")
	require.True(t, a.IsAPI())
}

func TestApplicationEffectiveRetry(t *testing.T) {
	appDefault := RetryPolicy{MaxRetries: 2, InitialDelay: time.Second, MaxDelay: time.Minute, DelayMultiplier: 2}
	app := NewApplication("pipeline", noop, WithDefaultRetryPolicy(appDefault))
	require.Equal(t, appDefault, app.DefaultRetry())

	plain := New("plain", noop)
	require.Equal(t, appDefault, app.EffectiveRetry(plain))

	own := RetryPolicy{MaxRetries: 7, InitialDelay: time.Millisecond}
	custom := New("custom", noop, WithRetryPolicy(own))
	require.Equal(t, own, app.EffectiveRetry(custom))
}

func TestApplicationDefaultRetryWhenUndeclared(t *testing.T) {
	app := NewApplication("pipeline", noop)
	require.Equal(t, DefaultRetryPolicy(), app.DefaultRetry())
}

func TestApplicationTagsCopied(t *testing.T) {
	tags := map[string]string{"team": "ml"}
	app := NewApplication("pipeline", noop, WithTags(tags))
	got := app.Tags()
	require.Equal(t, tags, got)
	got["team"] = "other"
	require.Equal(t, "ml", app.Tags()["team"])
}

func TestRetryPolicyDelaySchedule(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, DelayMultiplier: 2}
	require.Equal(t, time.Duration(0), p.Delay(0))
	require.Equal(t, 100*time.Millisecond, p.Delay(1))
	require.Equal(t, 200*time.Millisecond, p.Delay(2))
	require.Equal(t, 400*time.Millisecond, p.Delay(3))
	require.Equal(t, 800*time.Millisecond, p.Delay(4))
	require.Equal(t, time.Second, p.Delay(5), "schedule caps at MaxDelay")
	require.Equal(t, time.Second, p.Delay(50))
}

func TestRetryPolicyDelayNoInitial(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3}
	require.Equal(t, time.Duration(0), p.Delay(1))
	require.Equal(t, time.Duration(0), p.Delay(3))
}

func TestRetryPolicyDelayNoMultiplier(t *testing.T) {
	p := RetryPolicy{InitialDelay: 50 * time.Millisecond}
	require.Equal(t, 50*time.Millisecond, p.Delay(1))
	require.Equal(t, 50*time.Millisecond, p.Delay(4), "a zero multiplier keeps the delay flat")
}
