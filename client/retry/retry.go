// Package retry provides retry utilities for scheduler API calls:
// exponential backoff with jitter, retryable-error classification, and
// reconnection state for progress streams.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"
)

// Config configures retry behavior for one API operation.
type Config struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// Zero or one means no retries.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the delay after each retry; 2.0 doubles it.
	BackoffMultiplier float64
	// Jitter adds randomness to each delay; 0.1 adds up to ±10%.
	Jitter float64
}

// DefaultConfig returns the retry configuration used by the scheduler client
// when none is supplied.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	// Attempts is the number of attempts made.
	Attempts int
	// TotalDuration is the time spent across all attempts.
	TotalDuration time.Duration
	// LastError is the failure of the final attempt.
	LastError error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts over %v: %v", e.Attempts, e.TotalDuration, e.LastError)
}

// Unwrap returns the final attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// retryable is implemented by errors that carry their own retry
// classification, such as the client's APIError.
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether retrying the operation may succeed without
// changing the request. Transient transport failures (timeouts, temporary
// DNS errors) are retryable; user cancellation is not. Errors that classify
// themselves through a Retryable method are trusted: the scheduler client
// marks 502, 503, and 504 retryable and every other status final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// Do executes fn, retrying on retryable errors until the attempt budget or
// the context runs out.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(Backoff(cfg, attempt)):
		}
	}

	return &ExhaustedError{
		Attempts:      cfg.MaxAttempts,
		TotalDuration: time.Since(start),
		LastError:     lastErr,
	}
}

// Backoff computes the delay before the retry following the given attempt,
// the first attempt being 1. Stream reconnection shares this schedule.
func Backoff(cfg Config, attempt int) time.Duration {
	d := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	if cfg.Jitter > 0 {
		d += d * cfg.Jitter * (rand.Float64()*2 - 1) //nolint:gosec // jitter needs no crypto rand
	}
	return time.Duration(d)
}

// StreamState tracks a progress stream across reconnects.
type StreamState struct {
	// LastEventID is the id of the last event received, sent back on
	// reconnect so the server resumes instead of replaying.
	LastEventID string
	// ReconnectAttempts counts consecutive failed reconnects.
	ReconnectAttempts int
}

// Reset clears the reconnect counter after a successful connection.
func (s *StreamState) Reset() {
	s.ReconnectAttempts = 0
}

// UpdateLastEventID records the id of a received event; empty ids are
// ignored so comment-only frames never clear resume state.
func (s *StreamState) UpdateLastEventID(id string) {
	if id != "" {
		s.LastEventID = id
	}
}
