package function

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRetryDelayProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genPolicy := gopter.CombineGens(
		gen.Int64Range(int64(time.Millisecond), int64(time.Second)),
		gen.Float64Range(1, 4),
		gen.Int64Range(1, 120),
	).Map(func(vals []interface{}) RetryPolicy {
		initial := time.Duration(vals[0].(int64))
		return RetryPolicy{
			InitialDelay:    initial,
			DelayMultiplier: vals[1].(float64),
			MaxDelay:        initial * time.Duration(vals[2].(int64)),
		}
	})

	properties.Property("schedule never exceeds the cap", prop.ForAll(
		func(p RetryPolicy, retry int) bool {
			return p.Delay(retry) <= p.MaxDelay
		},
		genPolicy,
		gen.IntRange(1, 30),
	))

	properties.Property("schedule is non-decreasing", prop.ForAll(
		func(p RetryPolicy, retry int) bool {
			return p.Delay(retry) <= p.Delay(retry+1)
		},
		genPolicy,
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}
