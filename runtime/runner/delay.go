package runner

import (
	"time"

	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

// Delay is a start-delay for submitted futures, either relative to
// submission time or an absolute wall-clock instant.
type Delay struct {
	after time.Duration
	at    time.Time
}

// After delays dispatch by d from submission time.
func After(d time.Duration) Delay {
	return Delay{after: d}
}

// At delays dispatch until the absolute instant t.
func At(t time.Time) Delay {
	return Delay{at: t}
}

// NotBefore resolves the delay to the earliest dispatch instant, measured
// from now. The zero Delay resolves to the zero time: dispatch immediately.
func (d Delay) NotBefore(now time.Time) time.Time {
	if !d.at.IsZero() {
		return d.at
	}
	if d.after > 0 {
		return now.Add(d.after)
	}
	return time.Time{}
}

// Validate rejects negative relative delays.
func (d Delay) Validate() error {
	if d.after < 0 {
		return sdkerrors.NewUsageError("start delay must not be negative, got %s", d.after)
	}
	return nil
}
