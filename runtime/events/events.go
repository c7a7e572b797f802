// Package events defines the request lifecycle events published by runners
// and the bus that fans them out to subscribers. The local runner publishes
// the same shapes the scheduler streams over SSE, so progress consumers do
// not care which runner drives the request.
package events

import "time"

// EventType names a lifecycle event.
type EventType string

const (
	// RequestStarted fires when a runner accepts a root call.
	RequestStarted EventType = "RequestStarted"
	// FunctionRunStarted fires before each function run attempt.
	FunctionRunStarted EventType = "FunctionRunStarted"
	// FunctionRunCompleted fires after each function run attempt, success
	// or failure.
	FunctionRunCompleted EventType = "FunctionRunCompleted"
	// Progress relays a user progress report.
	Progress EventType = "Progress"
	// RequestFinished fires once per request with the terminal outcome.
	RequestFinished EventType = "RequestFinished"
)

type (
	// Event is implemented by every lifecycle event. Subscribers type-switch
	// on the concrete types for payload access.
	Event interface {
		// Type returns the event type constant.
		Type() EventType
		// RequestID correlates events of one request.
		RequestID() string
		// Timestamp returns when the event was created, not delivered.
		Timestamp() time.Time
	}

	baseEvent struct {
		requestID string
		at        time.Time
	}

	// RequestStartedEvent fires when the runner accepts the root call.
	RequestStartedEvent struct {
		baseEvent
		// Application is the entrypoint function name.
		Application string
	}

	// FunctionRunStartedEvent fires before one attempt of one function run.
	FunctionRunStartedEvent struct {
		baseEvent
		// FutureID identifies the future being driven.
		FutureID string
		// Function is the qualified function name.
		Function string
		// Attempt counts from 1, including retries.
		Attempt int
	}

	// FunctionRunCompletedEvent fires after one attempt finishes.
	FunctionRunCompletedEvent struct {
		baseEvent
		FutureID string
		Function string
		Attempt  int
		// Duration is the wall-clock attempt time.
		Duration time.Duration
		// Error is the attempt failure, nil on success.
		Error error
	}

	// ProgressEvent relays a user progress report from the request context.
	ProgressEvent struct {
		baseEvent
		Current uint64
		Total   uint64
		Message string
	}

	// RequestFinishedEvent is the terminal event of a request.
	RequestFinishedEvent struct {
		baseEvent
		// Outcome is "success" or "failure".
		Outcome string
		// Error carries the request failure, nil on success.
		Error error
	}
)

// Outcome values of RequestFinishedEvent.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

func newBase(requestID string) baseEvent {
	return baseEvent{requestID: requestID, at: time.Now()}
}

func (e baseEvent) RequestID() string    { return e.requestID }
func (e baseEvent) Timestamp() time.Time { return e.at }

// NewRequestStarted constructs the request acceptance event.
func NewRequestStarted(requestID, application string) *RequestStartedEvent {
	return &RequestStartedEvent{baseEvent: newBase(requestID), Application: application}
}

// NewFunctionRunStarted constructs the attempt start event.
func NewFunctionRunStarted(requestID, futureID, function string, attempt int) *FunctionRunStartedEvent {
	return &FunctionRunStartedEvent{
		baseEvent: newBase(requestID),
		FutureID:  futureID,
		Function:  function,
		Attempt:   attempt,
	}
}

// NewFunctionRunCompleted constructs the attempt completion event.
func NewFunctionRunCompleted(requestID, futureID, function string, attempt int, d time.Duration, err error) *FunctionRunCompletedEvent {
	return &FunctionRunCompletedEvent{
		baseEvent: newBase(requestID),
		FutureID:  futureID,
		Function:  function,
		Attempt:   attempt,
		Duration:  d,
		Error:     err,
	}
}

// NewProgress constructs a progress relay event.
func NewProgress(requestID string, current, total uint64, message string) *ProgressEvent {
	return &ProgressEvent{
		baseEvent: newBase(requestID),
		Current:   current,
		Total:     total,
		Message:   message,
	}
}

// NewRequestFinished constructs the terminal event.
func NewRequestFinished(requestID string, err error) *RequestFinishedEvent {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	return &RequestFinishedEvent{baseEvent: newBase(requestID), Outcome: outcome, Error: err}
}

func (e *RequestStartedEvent) Type() EventType       { return RequestStarted }
func (e *FunctionRunStartedEvent) Type() EventType   { return FunctionRunStarted }
func (e *FunctionRunCompletedEvent) Type() EventType { return FunctionRunCompleted }
func (e *ProgressEvent) Type() EventType             { return Progress }
func (e *RequestFinishedEvent) Type() EventType      { return RequestFinished }
