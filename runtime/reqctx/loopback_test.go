package reqctx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopbackStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	state := NewMemoryState()
	srv := httptest.NewServer(NewServer(state).Router())
	defer srv.Close()

	rc := NewHTTPContext("req1", srv.URL, srv.Client())
	require.Equal(t, "req1", rc.RequestID())

	require.NoError(t, rc.State().Set(ctx, "cursor", 42))

	// The client wrote through the wire into the shared store.
	v, ok, err := state.Get(ctx, "cursor")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, v)

	// And reads come back decoded the same way.
	v, ok, err = rc.State().Get(ctx, "cursor")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, v)

	_, ok, err = rc.State().Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoopbackKeysEscape(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(NewServer(NewMemoryState()).Router())
	defer srv.Close()

	rc := NewHTTPContext("req1", srv.URL, srv.Client())
	require.NoError(t, rc.State().Set(ctx, "a/b c", "v"))
	v, ok, err := rc.State().Get(ctx, "a/b c")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}

type captureProgress struct {
	current, total uint64
	message        string
	calls          int
}

func (c *captureProgress) Report(_ context.Context, current, total uint64, message string) error {
	c.current, c.total, c.message = current, total, message
	c.calls++
	return nil
}

func TestLoopbackProgressAndMetrics(t *testing.T) {
	ctx := context.Background()
	progress := &captureProgress{}
	metrics := &captureMetrics{}
	srv := httptest.NewServer(NewServer(NewMemoryState(),
		WithServerProgress(progress),
		WithServerMetrics(metrics),
	).Router())
	defer srv.Close()

	rc := NewHTTPContext("req1", srv.URL, srv.Client())

	require.NoError(t, rc.Progress().Report(ctx, 5, 10, "halfway"))
	require.Equal(t, 1, progress.calls)
	require.Equal(t, uint64(5), progress.current)
	require.Equal(t, uint64(10), progress.total)
	require.Equal(t, "halfway", progress.message)

	require.NoError(t, rc.Metrics().Counter(ctx, "chunks", 3))
	require.NoError(t, rc.Metrics().Timer(ctx, "embed", 1500*time.Millisecond))
	require.NoError(t, rc.Metrics().Gauge(ctx, "depth", 7))
	require.Len(t, metrics.records, 3)
	require.Equal(t, "counter", metrics.records[0].kind)
	require.Equal(t, float64(3), metrics.records[0].value)
	require.Equal(t, "timer", metrics.records[1].kind)
	require.InDelta(t, 1.5, metrics.records[1].value, 0.001)
	require.Equal(t, "gauge", metrics.records[2].kind)
}

func TestLoopbackServerStartAndClose(t *testing.T) {
	s := NewServer(NewMemoryState())
	require.Empty(t, s.Addr())
	require.NoError(t, s.Start(""))
	addr := s.Addr()
	require.NotEmpty(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc := NewHTTPContext("req1", "http://"+addr, nil)
	require.NoError(t, rc.State().Set(ctx, "k", "v"))
	v, ok, err := rc.State().Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.NoError(t, s.Close(ctx))

	// A closed server no longer answers.
	_, err = http.Get("http://" + addr + "/state/k")
	require.Error(t, err)
}
