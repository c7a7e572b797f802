package function

import "time"

type (
	// RetryPolicy bounds in-process retries of a failing function run and
	// shapes the delay schedule between attempts. The schedule is honored by
	// the local runner and shipped verbatim to the scheduler.
	RetryPolicy struct {
		// MaxRetries is the number of retries after the first attempt.
		MaxRetries int
		// InitialDelay precedes the first retry.
		InitialDelay time.Duration
		// MaxDelay caps the growing delay.
		MaxDelay time.Duration
		// DelayMultiplier scales the delay after each retry.
		DelayMultiplier float64
	}

	// Resources describes the compute request for one function on fleet
	// workers. The local runner ignores it.
	Resources struct {
		CPUs            float64
		MemoryMB        int
		EphemeralDiskMB int
		GPUs            []GPU
	}

	// GPU requests count devices of a given model.
	GPU struct {
		Count int
		Model string
	}

	// Timeouts bounds class initialization and a single call. Advisory at
	// the local runner, enforced by the scheduler.
	Timeouts struct {
		Initialization time.Duration
		Call           time.Duration
	}

	// Param declares one application parameter: the name, the serializer
	// type token used to decode submitted values, and an optional explicit
	// JSON-Schema fragment overriding the token-derived one.
	Param struct {
		Name        string
		TypeToken   string
		Schema      map[string]any
		Description string
		Required    bool
	}
)

// Defaults applied when the corresponding option is omitted.
const (
	DefaultCPUs            = 1.0
	DefaultMemoryMB        = 1024
	DefaultEphemeralDiskMB = 2048
	DefaultCallTimeout     = 5 * time.Minute
	DefaultInitTimeout     = 5 * time.Minute
	DefaultMaxConcurrency  = 1
)

// DefaultRetryPolicy performs no retries but carries the standard delay
// schedule so enabling retries only requires raising MaxRetries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      0,
		InitialDelay:    time.Second,
		MaxDelay:        time.Minute,
		DelayMultiplier: 2,
	}
}

// DefaultResources returns the standard compute request.
func DefaultResources() Resources {
	return Resources{
		CPUs:            DefaultCPUs,
		MemoryMB:        DefaultMemoryMB,
		EphemeralDiskMB: DefaultEphemeralDiskMB,
	}
}

// DefaultTimeouts returns the standard initialization and call bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Initialization: DefaultInitTimeout,
		Call:           DefaultCallTimeout,
	}
}

// Delay returns the schedule delay preceding the given retry, starting at
// retry 1: InitialDelay grown by DelayMultiplier per retry, capped at
// MaxDelay.
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry <= 0 || p.InitialDelay <= 0 {
		return 0
	}
	d := float64(p.InitialDelay)
	for i := 1; i < retry; i++ {
		if p.DelayMultiplier > 0 {
			d *= p.DelayMultiplier
		}
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}
