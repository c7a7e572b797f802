package reqctx

import (
	"context"
	"time"

	"github.com/tensorlakeai/tensorlake-go/runtime/events"
	"github.com/tensorlakeai/tensorlake-go/runtime/telemetry"
)

// ConsoleProgress is the local runner's progress sink: reports land in the
// structured log and are republished on the event bus so subscribers see
// the same stream the scheduler would deliver over SSE.
type ConsoleProgress struct {
	requestID string
	logger    telemetry.Logger
	bus       events.Bus
}

// NewConsoleProgress constructs the local progress sink. The bus may be nil
// when no subscribers exist.
func NewConsoleProgress(requestID string, logger telemetry.Logger, bus events.Bus) *ConsoleProgress {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &ConsoleProgress{requestID: requestID, logger: logger, bus: bus}
}

// Report logs the progress update and republishes it as a Progress event.
func (p *ConsoleProgress) Report(ctx context.Context, current, total uint64, message string) error {
	p.logger.Info(ctx, "progress",
		"request_id", p.requestID,
		"current", current,
		"total", total,
		"message", message,
	)
	if p.bus == nil {
		return nil
	}
	return p.bus.Publish(ctx, events.NewProgress(p.requestID, current, total, message))
}

// TelemetryMetrics records request metrics through the runtime telemetry
// seam, tagging every observation with the request id.
type TelemetryMetrics struct {
	requestID string
	metrics   telemetry.Metrics
}

// NewTelemetryMetrics constructs the local metrics recorder.
func NewTelemetryMetrics(requestID string, m telemetry.Metrics) *TelemetryMetrics {
	if m == nil {
		m = telemetry.NewNoopMetrics()
	}
	return &TelemetryMetrics{requestID: requestID, metrics: m}
}

// Counter adds value to the named counter.
func (t *TelemetryMetrics) Counter(_ context.Context, name string, value float64) error {
	t.metrics.IncCounter(name, value, "request_id", t.requestID)
	return nil
}

// Timer records a duration observation.
func (t *TelemetryMetrics) Timer(_ context.Context, name string, d time.Duration) error {
	t.metrics.RecordTimer(name, d, "request_id", t.requestID)
	return nil
}

// Gauge records a point-in-time value.
func (t *TelemetryMetrics) Gauge(_ context.Context, name string, value float64) error {
	t.metrics.RecordGauge(name, value, "request_id", t.requestID)
	return nil
}
