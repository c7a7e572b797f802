package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tensorlakeai/tensorlake-go/client/retry"
	"github.com/tensorlakeai/tensorlake-go/runtime/events"
)

// StreamEvent is one frame of a request's progress stream. Event carries
// the lifecycle event name (events.RequestFinished marks the end); Data is
// the scheduler's JSON payload for that event.
type StreamEvent struct {
	ID    string
	Event string
	Data  json.RawMessage
}

// Finished reports whether this is the terminal lifecycle event.
func (e StreamEvent) Finished() bool {
	return e.Event == string(events.RequestFinished)
}

// streamDroppedError marks a mid-stream disconnect eligible for reconnect.
type streamDroppedError struct {
	cause error
}

func (e *streamDroppedError) Error() string {
	return fmt.Sprintf("progress stream interrupted: %v", e.cause)
}

func (e *streamDroppedError) Unwrap() error { return e.cause }

// StreamProgress follows a request's progress stream, invoking fn for every
// event until the terminal RequestFinished event arrives, fn returns an
// error, or the context ends. Transient drops reconnect with backoff,
// resuming from the last received event id; consecutive reconnect failures
// are bounded by the client's retry budget.
func (c *Client) StreamProgress(ctx context.Context, application, requestID string, fn func(StreamEvent) error) error {
	var state retry.StreamState
	for {
		finished, err := c.followProgress(ctx, application, requestID, &state, fn)
		if finished {
			return nil
		}
		if err == nil {
			// Stream closed cleanly without RequestFinished: resume.
			err = &streamDroppedError{cause: io.EOF}
		}

		var dropped *streamDroppedError
		if !errors.As(err, &dropped) && !retry.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		state.ReconnectAttempts++
		if state.ReconnectAttempts >= c.retry.MaxAttempts {
			return err
		}
		c.logger.Debug(ctx, "progress stream reconnecting",
			"request_id", requestID, "attempt", state.ReconnectAttempts, "cause", err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.Backoff(c.retry, state.ReconnectAttempts)):
		}
	}
}

// followProgress runs one stream connection to completion or disconnect.
func (c *Client) followProgress(ctx context.Context, application, requestID string, state *retry.StreamState, fn func(StreamEvent) error) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.requestURL(application, requestID)+"/progress", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if state.LastEventID != "" {
		req.Header.Set("Last-Event-ID", state.LastEventID)
	}

	resp, err := c.do(req)
	if err != nil {
		return false, &streamDroppedError{cause: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return false, statusError(resp)
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return false, fmt.Errorf("unexpected progress content type %q: %s", resp.Header.Get("Content-Type"), string(raw))
	}
	state.Reset()

	reader := bufio.NewReader(resp.Body)
	for {
		ev, err := readStreamEvent(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, &streamDroppedError{cause: err}
		}
		state.UpdateLastEventID(ev.ID)
		if ev.Event == "" && len(ev.Data) == 0 {
			continue
		}
		if err := fn(ev); err != nil {
			return false, err
		}
		if ev.Finished() {
			return true, nil
		}
	}
}

// readStreamEvent parses one server-sent event: id/event/data lines up to a
// blank line. Comment lines are skipped; multi-line data is joined with
// newlines.
func readStreamEvent(reader *bufio.Reader) (StreamEvent, error) {
	var ev StreamEvent
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return StreamEvent{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if ev.ID == "" && ev.Event == "" && len(ev.Data) == 0 {
				continue
			}
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if after, ok := strings.CutPrefix(line, "id:"); ok {
			ev.ID = strings.TrimSpace(after)
			continue
		}
		if after, ok := strings.CutPrefix(line, "event:"); ok {
			ev.Event = strings.TrimSpace(after)
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			if len(ev.Data) > 0 {
				ev.Data = append(ev.Data, '\n')
			}
			ev.Data = append(ev.Data, strings.TrimPrefix(after, " ")...)
			continue
		}
	}
}
