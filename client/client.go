// Package client talks to the scheduler HTTP API: application lifecycle
// (upsert, list, fetch, delete), request submission, request metadata and
// output retrieval, and the server-sent-event progress stream.
//
// Credentials resolve in precedence order: explicit option, then
// environment, then the TOML credentials file profile for the base URL.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/tensorlakeai/tensorlake-go/client/retry"
	"github.com/tensorlakeai/tensorlake-go/manifest"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
	"github.com/tensorlakeai/tensorlake-go/runtime/telemetry"
)

type (
	// Option configures the scheduler client.
	Option func(*Client)

	// Client is a scheduler API client scoped to one namespace. It is safe
	// for concurrent use.
	Client struct {
		baseURL        string
		namespace      string
		apiKey         string
		organizationID string
		projectID      string
		credFile       string
		http           *http.Client
		limiter        *rate.Limiter
		retry          retry.Config
		logger         telemetry.Logger
	}

	// RunArg is one application argument ready for submission: an encoded
	// payload under the part name the scheduler expects.
	RunArg struct {
		Name    string
		Payload *serializer.Payload
	}
)

// WithBaseURL overrides the scheduler endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = normalizeBaseURL(u) }
}

// WithAPIKey sets the bearer token explicitly.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithNamespace scopes the client to a namespace other than "default".
func WithNamespace(ns string) Option {
	return func(c *Client) { c.namespace = ns }
}

// WithOrganization sets the organization and project forwarded with
// personal-access-token auth.
func WithOrganization(organizationID, projectID string) Option {
	return func(c *Client) {
		c.organizationID = organizationID
		c.projectID = projectID
	}
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit bounds outgoing requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithRetryConfig overrides the retry schedule for API calls.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the structured logger; the default discards everything.
func WithLogger(l telemetry.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCredentialsFile overrides the credentials file path,
// ~/.tensorlake/credentials.toml by default.
func WithCredentialsFile(path string) Option {
	return func(c *Client) { c.credFile = path }
}

// New builds a client, resolving the endpoint and credentials from options,
// environment, and the credentials file, in that order. It fails when no
// API key can be found.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		namespace: DefaultNamespace,
		credFile:  defaultCredentialsPath(),
		http:      &http.Client{Timeout: 60 * time.Second},
		retry:     retry.DefaultConfig(),
		logger:    telemetry.NewNoopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.baseURL == "" {
		c.baseURL = normalizeBaseURL(envOr(EnvAPIURL, DefaultBaseURL))
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}

	if c.apiKey == "" {
		c.apiKey = envOr(EnvAPIKey, "")
	}
	if c.organizationID == "" {
		c.organizationID = envOr(EnvOrganizationID, "")
	}
	if c.projectID == "" {
		c.projectID = envOr(EnvProjectID, "")
	}

	if c.apiKey == "" || c.organizationID == "" || c.projectID == "" {
		creds, err := loadCredentials(c.credFile, c.baseURL)
		if err != nil {
			return nil, err
		}
		if c.apiKey == "" {
			c.apiKey = creds.APIKey
		}
		if c.organizationID == "" {
			c.organizationID = creds.OrganizationID
		}
		if c.projectID == "" {
			c.projectID = creds.ProjectID
		}
	}

	if c.apiKey == "" {
		return nil, sdkerrors.NewUsageError(
			"no API key: pass WithAPIKey, set %s, or store a personal access token in %s",
			EnvAPIKey, c.credFile)
	}
	return c, nil
}

// BaseURL returns the resolved scheduler endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// Namespace returns the namespace this client is scoped to.
func (c *Client) Namespace() string { return c.namespace }

// UpsertApplication registers or replaces an application: a multipart body
// carrying the manifest JSON and the zipped code archive. The archive is
// buffered so retries can resend it.
func (c *Client) UpsertApplication(ctx context.Context, m *manifest.Manifest, code io.Reader) error {
	manifestJSON, err := m.Encode()
	if err != nil {
		return err
	}
	archive, err := io.ReadAll(code)
	if err != nil {
		return fmt.Errorf("read code archive: %w", err)
	}

	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		if err := writePart(mw, "manifest", "manifest.json", "application/json", manifestJSON); err != nil {
			return err
		}
		if err := writePart(mw, "code", "code.zip", "application/zip", archive); err != nil {
			return err
		}
		if err := mw.Close(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.applicationsURL(), &body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())

		resp, err := c.do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return statusError(resp)
		}
		c.logger.Info(ctx, "application upserted", "application", m.Name, "namespace", c.namespace)
		return nil
	})
}

// DeleteApplication removes an application and its requests.
func (c *Client) DeleteApplication(ctx context.Context, name string) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.applicationURL(name), nil)
		if err != nil {
			return err
		}
		resp, err := c.do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return statusError(resp)
		}
		return nil
	})
}

// ListApplications fetches the manifests of every application in the
// namespace.
func (c *Client) ListApplications(ctx context.Context) ([]*manifest.Manifest, error) {
	var out struct {
		Applications []*manifest.Manifest `json:"applications"`
	}
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.applicationsURL(), nil)
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
		out.Applications = nil
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return nil, err
	}
	return out.Applications, nil
}

// GetApplication fetches one application's manifest.
func (c *Client) GetApplication(ctx context.Context, name string) (*manifest.Manifest, error) {
	var m *manifest.Manifest
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.applicationURL(name), nil)
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
		m, err = manifest.Decode(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Run submits a request: one multipart part per argument, each carrying the
// encoded payload with its content type and type-hint header. It returns
// the scheduler-assigned request id.
func (c *Client) Run(ctx context.Context, application string, args []RunArg) (string, error) {
	var out struct {
		RequestID string `json:"request_id"`
	}
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		for _, a := range args {
			if err := writeArgPart(mw, a); err != nil {
				return err
			}
		}
		if err := mw.Close(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.applicationURL(application), &body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())

		resp, err := c.do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return statusError(resp)
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", sdkerrors.NewInternalError("scheduler returned no request id for application %q", application)
	}
	c.logger.Debug(ctx, "request submitted", "application", application, "request_id", out.RequestID)
	return out.RequestID, nil
}

// do sends one request with auth headers and rate limiting applied.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organizationID != "" {
		req.Header.Set("X-Forwarded-Organization-Id", c.organizationID)
	}
	if c.projectID != "" {
		req.Header.Set("X-Forwarded-Project-Id", c.projectID)
	}
	return c.http.Do(req)
}

func (c *Client) applicationsURL() string {
	return fmt.Sprintf("%s/v1/namespaces/%s/applications", c.baseURL, url.PathEscape(c.namespace))
}

func (c *Client) applicationURL(name string) string {
	return c.applicationsURL() + "/" + url.PathEscape(name)
}

func (c *Client) requestURL(application, requestID string) string {
	return c.applicationURL(application) + "/requests/" + url.PathEscape(requestID)
}

// headerTypeHint carries a payload's type token on its multipart part.
const headerTypeHint = "X-Type-Hint"

// writePart adds one fixed-name multipart file part.
func writePart(mw *multipart.Writer, field, filename, contentType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// writeArgPart adds one application argument part named after its
// parameter.
func writeArgPart(mw *multipart.Writer, a RunArg) error {
	if a.Payload == nil {
		return sdkerrors.NewInternalError("argument %q has no payload", a.Name)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, a.Name))
	if ct := a.Payload.ContentType; ct != "" {
		h.Set("Content-Type", ct)
	}
	if a.Payload.TypeHint != "" {
		h.Set(headerTypeHint, a.Payload.TypeHint)
	}
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = w.Write(a.Payload.Data)
	return err
}

