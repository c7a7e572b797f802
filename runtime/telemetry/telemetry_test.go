package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"goa.design/clue/log"
)

func TestNoopImplementationsDiscardEverything(t *testing.T) {
	ctx := context.Background()

	logger := NewNoopLogger()
	logger.Debug(ctx, "a")
	logger.Info(ctx, "b", "k", 1)
	logger.Warn(ctx, "c")
	logger.Error(ctx, "d")

	metrics := NewNoopMetrics()
	metrics.IncCounter("calls", 1, "fn", "x")
	metrics.RecordTimer("latency", time.Second)
	metrics.RecordGauge("depth", 3)

	tracer := NewNoopTracer()
	spanCtx, span := tracer.Start(ctx, "op")
	require.Equal(t, ctx, spanCtx)
	span.AddEvent("evt", "k", "v")
	span.SetStatus(codes.Ok, "done")
	span.RecordError(errors.New("boom"))
	span.End()
	require.NotNil(t, tracer.Span(ctx))
}

func TestClueLoggerWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.Context(context.Background(),
		log.WithOutput(&buf),
		log.WithFormat(log.FormatJSON),
		log.WithDebug(),
	)

	NewClueLogger().Info(ctx, "request submitted", "request_id", "req-1", "calls", 3)

	out := buf.String()
	require.Contains(t, out, `"level":"info"`)
	require.Contains(t, out, `"msg":"request submitted"`)
	require.Contains(t, out, `"request_id":"req-1"`)
	require.Contains(t, out, `"calls":3`)
}

func TestFieldersPairsKeyvals(t *testing.T) {
	fs := fielders("indexed", []any{"pages", 12, 404, "skipped", "dangling"})
	require.Equal(t, []log.Fielder{
		log.KV{K: "msg", V: "indexed"},
		log.KV{K: "pages", V: 12},
		log.KV{K: "dangling", V: nil},
	}, fs)
}

func TestTagAttrsPairsTags(t *testing.T) {
	attrs := tagAttrs([]string{"env", "prod", "region"})
	require.Equal(t, []attribute.KeyValue{
		attribute.String("env", "prod"),
		attribute.String("region", ""),
	}, attrs)
}

func TestEventAttrsMapsGoTypes(t *testing.T) {
	attrs := eventAttrs([]any{
		"name", "split",
		"count", 3,
		"total", int64(9),
		"ratio", 0.5,
		"done", true,
		"blob", []byte("x"),
		7, "skipped",
	})
	require.Equal(t, []attribute.KeyValue{
		attribute.String("name", "split"),
		attribute.Int("count", 3),
		attribute.Int64("total", 9),
		attribute.Float64("ratio", 0.5),
		attribute.Bool("done", true),
		attribute.String("blob", ""),
	}, attrs)
}
