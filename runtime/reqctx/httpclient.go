package reqctx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

// HTTPClient reaches a loopback request-context server from inside a worker
// process. It implements State, Progress, and Metrics so a remote-worker
// context is assembled from one client.
type HTTPClient struct {
	base string
	http *http.Client
}

// NewHTTPClient constructs a client for the loopback server at baseURL
// (for example "http://127.0.0.1:9178"). A nil httpClient uses a short
// default timeout suitable for loopback traffic.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPClient{base: baseURL, http: httpClient}
}

// NewHTTPContext assembles a request context whose state, progress, and
// metrics all speak to the loopback server.
func NewHTTPContext(requestID, baseURL string, httpClient *http.Client) *Context {
	c := NewHTTPClient(baseURL, httpClient)
	return New(requestID, WithState(c), WithProgress(c), WithMetrics(c))
}

// Set encodes value with the binary codec and PUTs it to the server.
func (c *HTTPClient) Set(ctx context.Context, key string, value any) error {
	p, err := serializer.EncodePayload(serializer.NameBinary, value)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.stateURL(key), bytes.NewReader(p.Data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", p.ContentType)
	req.Header.Set(headerSerializer, p.Serializer)
	req.Header.Set(headerTypeHint, p.TypeHint)
	return c.do(req, http.StatusNoContent)
}

// Get fetches and decodes the value stored under key.
func (c *HTTPClient) Get(ctx context.Context, key string) (any, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.stateURL(key), nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("state get %q: status %d", key, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	p := &serializer.Payload{
		Data:        data,
		Serializer:  resp.Header.Get(headerSerializer),
		ContentType: resp.Header.Get("Content-Type"),
		TypeHint:    resp.Header.Get(headerTypeHint),
	}
	v, err := p.Decode()
	if err != nil {
		return nil, true, err
	}
	return v, true, nil
}

// Report POSTs a progress update.
func (c *HTTPClient) Report(ctx context.Context, current, total uint64, message string) error {
	return c.postJSON(ctx, "/progress", progressBody{Current: current, Total: total, Message: message})
}

// Counter records a counter observation on the server.
func (c *HTTPClient) Counter(ctx context.Context, name string, value float64) error {
	return c.postJSON(ctx, "/metrics", metricBody{Name: name, Kind: "counter", Value: value})
}

// Timer records a duration observation on the server.
func (c *HTTPClient) Timer(ctx context.Context, name string, d time.Duration) error {
	return c.postJSON(ctx, "/metrics", metricBody{Name: name, Kind: "timer", Value: d.Seconds()})
}

// Gauge records a gauge observation on the server.
func (c *HTTPClient) Gauge(ctx context.Context, name string, value float64) error {
	return c.postJSON(ctx, "/metrics", metricBody{Name: name, Kind: "gauge", Value: value})
}

func (c *HTTPClient) stateURL(key string) string {
	return c.base + "/state/" + url.PathEscape(key)
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, http.StatusNoContent)
}

func (c *HTTPClient) do(req *http.Request, want int) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return nil
}
