package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tensorlakeai/tensorlake-go/client/retry"
	"github.com/tensorlakeai/tensorlake-go/manifest"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

// clearEnv blanks every credential variable so tests resolve only what they
// set up themselves.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvOrganizationID, "")
	t.Setenv(EnvProjectID, "")
}

func testClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	clearEnv(t)
	opts = append([]Option{
		WithBaseURL(baseURL),
		WithAPIKey("test-key"),
		WithCredentialsFile(""),
		WithRetryConfig(retry.Config{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2,
		}),
	}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

// capturedPart is one multipart part as the scheduler would see it.
type capturedPart struct {
	name        string
	filename    string
	contentType string
	typeHint    string
	body        string
}

func readParts(r *http.Request) ([]capturedPart, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	var parts []capturedPart
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return parts, nil
		}
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, capturedPart{
			name:        p.FormName(),
			filename:    p.FileName(),
			contentType: p.Header.Get("Content-Type"),
			typeHint:    p.Header.Get(headerTypeHint),
			body:        string(body),
		})
	}
}

func TestNewResolvesCredentialsFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "credentials.toml")
	doc := `["https://api.tensorlake.ai"]
api_key = "tl_file_key"
organization_id = "org_1"
project_id = "proj_1"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := New(WithCredentialsFile(path))
	require.NoError(t, err)
	require.Equal(t, "tl_file_key", c.apiKey)
	require.Equal(t, "org_1", c.organizationID)
	require.Equal(t, "proj_1", c.projectID)
	require.Equal(t, DefaultBaseURL, c.BaseURL())
	require.Equal(t, DefaultNamespace, c.Namespace())
}

func TestLoadCredentialsPicksProfileForBaseURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.toml")
	doc := `["https://api.tensorlake.ai"]
api_key = "prod_key"

["http://localhost:8900"]
api_key = "dev_key"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	creds, err := loadCredentials(path, "http://localhost:8900/")
	require.NoError(t, err)
	require.Equal(t, "dev_key", creds.APIKey)

	creds, err = loadCredentials(path, "https://api.tensorlake.ai")
	require.NoError(t, err)
	require.Equal(t, "prod_key", creds.APIKey)

	creds, err = loadCredentials(path, "https://other.example.com")
	require.NoError(t, err)
	require.Empty(t, creds.APIKey, "unknown endpoints resolve to an empty profile")
}

func TestNewPrefersExplicitOverEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIKey, "env_key")

	c, err := New(WithAPIKey("explicit_key"), WithCredentialsFile(""))
	require.NoError(t, err)
	require.Equal(t, "explicit_key", c.apiKey)
}

func TestNewFallsBackToEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIKey, "env_key")
	t.Setenv(EnvAPIURL, "http://sched.internal:8900/")
	t.Setenv(EnvOrganizationID, "org_env")
	t.Setenv(EnvProjectID, "proj_env")

	c, err := New(WithCredentialsFile(""))
	require.NoError(t, err)
	require.Equal(t, "env_key", c.apiKey)
	require.Equal(t, "org_env", c.organizationID)
	require.Equal(t, "proj_env", c.projectID)
	require.Equal(t, "http://sched.internal:8900", c.BaseURL(), "trailing slash is stripped")
}

func TestNewWithoutAnyKeyFails(t *testing.T) {
	clearEnv(t)
	_, err := New(WithCredentialsFile(filepath.Join(t.TempDir(), "absent.toml")))
	require.ErrorIs(t, err, sdkerrors.ErrUsage)
	require.Contains(t, err.Error(), "no API key")
}

func TestUpsertApplicationSendsManifestAndArchive(t *testing.T) {
	var (
		gotMethod, gotPath       string
		gotAuth, gotOrg, gotProj string
		gotParts                 []capturedPart
		handlerErr               error
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotOrg = r.Header.Get("X-Forwarded-Organization-Id")
		gotProj = r.Header.Get("X-Forwarded-Project-Id")
		gotParts, handlerErr = readParts(r)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, WithOrganization("org_9", "proj_9"))
	m := &manifest.Manifest{
		Name:      "wordcount",
		Version:   "abc123def456",
		Functions: map[string]manifest.Function{"wordcount": {Name: "wordcount", IsAPI: true}},
		Entrypoint: manifest.Entrypoint{
			FunctionName:     "wordcount",
			InputSerializer:  serializer.NameJSON,
			OutputSerializer: serializer.NameJSON,
		},
	}
	err := c.UpsertApplication(context.Background(), m, strings.NewReader("fake zip bytes"))
	require.NoError(t, err)
	require.NoError(t, handlerErr)

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "/v1/namespaces/default/applications", gotPath)
	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, "org_9", gotOrg)
	require.Equal(t, "proj_9", gotProj)

	require.Len(t, gotParts, 2)
	require.Equal(t, "manifest", gotParts[0].name)
	require.Equal(t, "manifest.json", gotParts[0].filename)
	require.Equal(t, "application/json", gotParts[0].contentType)
	sent, err := manifest.Decode([]byte(gotParts[0].body))
	require.NoError(t, err)
	require.Equal(t, m, sent)

	require.Equal(t, "code", gotParts[1].name)
	require.Equal(t, "code.zip", gotParts[1].filename)
	require.Equal(t, "application/zip", gotParts[1].contentType)
	require.Equal(t, "fake zip bytes", gotParts[1].body)
}

func TestRunSubmitsEncodedArguments(t *testing.T) {
	var (
		gotPath    string
		gotParts   []capturedPart
		handlerErr error
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotParts, handlerErr = readParts(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"request_id":"req-123"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, WithNamespace("prod"))

	urlArg, err := serializer.EncodePayload(serializer.NameJSON, "https://tensorlake.ai")
	require.NoError(t, err)
	limitArg, err := serializer.EncodePayload(serializer.NameJSON, 3)
	require.NoError(t, err)

	id, err := c.Run(context.Background(), "wordcount", []RunArg{
		{Name: "url", Payload: urlArg},
		{Name: "limit", Payload: limitArg},
	})
	require.NoError(t, err)
	require.NoError(t, handlerErr)
	require.Equal(t, "req-123", id)
	require.Equal(t, "/v1/namespaces/prod/applications/wordcount", gotPath)

	require.Len(t, gotParts, 2)
	require.Equal(t, "url", gotParts[0].name)
	require.Equal(t, "application/json", gotParts[0].contentType)
	require.Equal(t, "string", gotParts[0].typeHint)
	require.Equal(t, `"https://tensorlake.ai"`, gotParts[0].body)

	require.Equal(t, "limit", gotParts[1].name)
	require.Equal(t, "int", gotParts[1].typeHint)
	require.Equal(t, "3", gotParts[1].body)
}

func TestRunRetriesGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"request_id":"req-1"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	id, err := c.Run(context.Background(), "wordcount", nil)
	require.NoError(t, err)
	require.Equal(t, "req-1", id)
	require.Equal(t, int32(3), calls.Load(), "each attempt rebuilds the multipart body")
}

func TestRunWithoutRequestIDFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Run(context.Background(), "wordcount", nil)
	require.ErrorIs(t, err, sdkerrors.ErrInternal)
}

func TestDeleteApplicationAuthFailureIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	err := c.DeleteApplication(context.Background(), "wordcount")
	require.ErrorIs(t, err, ErrUnauthenticated)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Contains(t, apiErr.Message, "bad key")
	require.Equal(t, int32(1), calls.Load(), "auth failures never retry")
}

func TestGetApplicationDecodesManifest(t *testing.T) {
	m := &manifest.Manifest{
		Name:      "wordcount",
		Version:   "abc123def456",
		Functions: map[string]manifest.Function{},
	}
	body, err := m.Encode()
	require.NoError(t, err)

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	got, err := c.GetApplication(context.Background(), "wordcount")
	require.NoError(t, err)
	require.Equal(t, m, got)
	require.Equal(t, "/v1/namespaces/default/applications/wordcount", gotPath)
}

func TestListApplications(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"applications": []map[string]any{
				{"name": "wordcount"},
				{"name": "imageresize"},
			},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	apps, err := c.ListApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	require.Equal(t, "wordcount", apps[0].Name)
	require.Equal(t, "imageresize", apps[1].Name)
}

func TestAPIErrorClassification(t *testing.T) {
	require.True(t, (&APIError{Status: http.StatusBadGateway}).Retryable())
	require.True(t, (&APIError{Status: http.StatusServiceUnavailable}).Retryable())
	require.True(t, (&APIError{Status: http.StatusGatewayTimeout}).Retryable())
	require.False(t, (&APIError{Status: http.StatusInternalServerError}).Retryable())
	require.False(t, (&APIError{Status: http.StatusNotFound}).Retryable())

	require.ErrorIs(t, &APIError{Status: http.StatusUnauthorized}, ErrUnauthenticated)
	require.ErrorIs(t, &APIError{Status: http.StatusForbidden}, ErrForbidden)
	require.NotErrorIs(t, &APIError{Status: http.StatusNotFound}, ErrUnauthenticated)

	require.Equal(t, "scheduler api status 500", (&APIError{Status: 500}).Error())
	require.Equal(t, "scheduler api status 404: no such app",
		(&APIError{Status: 404, Message: "no such app"}).Error())
}
