package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tensorlakeai/tensorlake-go/runtime/events"
)

func TestReadStreamEvent(t *testing.T) {
	raw := ": keepalive\r\n\r\nid: 7\r\nevent: Progress\ndata: {\"current\":1,\ndata:  \"total\":5}\n\n"
	r := bufio.NewReader(strings.NewReader(raw))

	ev, err := readStreamEvent(r)
	require.NoError(t, err)
	require.Equal(t, "7", ev.ID)
	require.Equal(t, "Progress", ev.Event)
	require.Equal(t, "{\"current\":1,\n \"total\":5}", string(ev.Data),
		"multi-line data joins with newlines")

	_, err = readStreamEvent(r)
	require.ErrorIs(t, err, io.EOF)
}

func TestStreamEventFinished(t *testing.T) {
	require.True(t, StreamEvent{Event: string(events.RequestFinished)}.Finished())
	require.False(t, StreamEvent{Event: string(events.Progress)}.Finished())
	require.False(t, StreamEvent{}.Finished())
}

func TestStreamProgressDeliversEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": hello\n\n")
		fmt.Fprintf(w, "id: 1\nevent: %s\ndata: {\"application\":\"wordcount\"}\n\n", events.RequestStarted)
		fmt.Fprintf(w, "id: 2\nevent: %s\ndata: {\"current\":1}\ndata: {\"total\":5}\n\n", events.Progress)
		fmt.Fprintf(w, "id: 3\nevent: %s\ndata: {\"outcome\":\"success\"}\n\n", events.RequestFinished)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	var got []StreamEvent
	err := c.StreamProgress(context.Background(), "wordcount", "req-1", func(ev StreamEvent) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 3, "comment frames are not delivered")
	require.Equal(t, string(events.RequestStarted), got[0].Event)
	require.Equal(t, "{\"current\":1}\n{\"total\":5}", string(got[1].Data))
	require.True(t, got[2].Finished())
}

func TestStreamProgressReconnectsAndResumes(t *testing.T) {
	var (
		conns    atomic.Int32
		mu       sync.Mutex
		resumeID string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if conns.Add(1) == 1 {
			// Drop after one event, before the terminal frame.
			fmt.Fprintf(w, "id: 1\nevent: %s\ndata: {}\n\n", events.RequestStarted)
			return
		}
		mu.Lock()
		resumeID = r.Header.Get("Last-Event-ID")
		mu.Unlock()
		fmt.Fprintf(w, "id: 2\nevent: %s\ndata: {\"outcome\":\"success\"}\n\n", events.RequestFinished)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	var got []StreamEvent
	err := c.StreamProgress(context.Background(), "wordcount", "req-1", func(ev StreamEvent) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int32(2), conns.Load())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "1", resumeID, "reconnects resume from the last received event")
}

func TestStreamProgressCallbackErrorStops(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "id: 1\nevent: %s\ndata: {}\n\n", events.RequestStarted)
		fmt.Fprintf(w, "id: 2\nevent: %s\ndata: {\"outcome\":\"success\"}\n\n", events.RequestFinished)
	}))
	defer srv.Close()

	boom := errors.New("consumer gave up")
	c := testClient(t, srv.URL)
	err := c.StreamProgress(context.Background(), "wordcount", "req-1", func(ev StreamEvent) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, int32(1), conns.Load(), "callback errors never reconnect")
}

func TestStreamProgressPropagatesAPIErrors(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such request"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	err := c.StreamProgress(context.Background(), "wordcount", "req-1", func(StreamEvent) error {
		t.Error("no events expected")
		return nil
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, int32(1), conns.Load())
}
