package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tensorlakeai/tensorlake-go/client/retry"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

// Outcome states reported by the scheduler.
const (
	OutcomePending = "pending"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type (
	// RequestFailure describes why a request failed: the function that
	// raised and the user-facing message.
	RequestFailure struct {
		FunctionName string `json:"function_name,omitempty"`
		Message      string `json:"message"`
	}

	// Outcome is a request's terminal state. On the wire pending and
	// success travel as bare strings and failure as an object, so the type
	// carries custom JSON codecs.
	Outcome struct {
		Status  string
		Failure *RequestFailure
	}

	// RequestMetadata is the scheduler's view of one request.
	RequestMetadata struct {
		ID          string  `json:"id"`
		Application string  `json:"application_name"`
		Outcome     Outcome `json:"outcome"`
		CreatedAt   string  `json:"created_at,omitempty"`
	}

	// RequestOutput is the raw request output: bytes plus the content type
	// and type hint the scheduler recorded at completion.
	RequestOutput struct {
		Data        []byte
		ContentType string
		TypeHint    string
	}
)

// MarshalJSON renders pending/success as strings and failure as an object.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Status == OutcomeFailure {
		return json.Marshal(struct {
			Failure *RequestFailure `json:"failure"`
		}{o.Failure})
	}
	return json.Marshal(o.Status)
}

// UnmarshalJSON accepts both wire shapes.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Status = s
		o.Failure = nil
		return nil
	}
	var obj struct {
		Failure *RequestFailure `json:"failure"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("malformed request outcome: %w", err)
	}
	if obj.Failure == nil {
		return fmt.Errorf("malformed request outcome: %s", string(data))
	}
	o.Status = OutcomeFailure
	o.Failure = obj.Failure
	return nil
}

// Finished reports whether the request reached a terminal state.
func (o Outcome) Finished() bool {
	return o.Status == OutcomeSuccess || o.Status == OutcomeFailure
}

// Err converts a failure outcome into the request error a handle raises;
// nil for pending and success.
func (o Outcome) Err() error {
	if o.Status != OutcomeFailure {
		return nil
	}
	msg := "request failed"
	if o.Failure != nil && o.Failure.Message != "" {
		msg = o.Failure.Message
	}
	return &sdkerrors.RequestError{Message: msg}
}

// GetRequest fetches a request's metadata.
func (c *Client) GetRequest(ctx context.Context, application, requestID string) (*RequestMetadata, error) {
	var md RequestMetadata
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(application, requestID), nil)
		if err != nil {
			return err
		}
		resp, err := c.do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		return json.NewDecoder(resp.Body).Decode(&md)
	})
	if err != nil {
		return nil, err
	}
	return &md, nil
}

// GetRequestOutput fetches the raw output bytes of a finished request.
func (c *Client) GetRequestOutput(ctx context.Context, application, requestID string) (*RequestOutput, error) {
	var out RequestOutput
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(application, requestID)+"/output", nil)
		if err != nil {
			return err
		}
		resp, err := c.do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		out = RequestOutput{
			Data:        data,
			ContentType: resp.Header.Get("Content-Type"),
			TypeHint:    resp.Header.Get(headerTypeHint),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Payload converts the raw output into a decodable payload, mapping the
// content type back to the codec that produced it. Unknown content types
// come back as raw file payloads.
func (o *RequestOutput) Payload() *serializer.Payload {
	return &serializer.Payload{
		Data:        o.Data,
		Serializer:  serializerForContentType(o.ContentType),
		ContentType: o.ContentType,
		TypeHint:    o.TypeHint,
	}
}

func serializerForContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(strings.ToLower(ct)) {
	case serializer.ContentTypeJSON:
		return serializer.NameJSON
	case serializer.ContentTypeBinary:
		return serializer.NameBinary
	}
	return ""
}
