// Package remote submits application requests to the scheduler and exposes
// them as request handles. It never executes user code in-process: the
// manifest drives argument serialization, the scheduler drives execution,
// and the progress stream drives output retrieval.
package remote

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tensorlakeai/tensorlake-go/client"
	"github.com/tensorlakeai/tensorlake-go/manifest"
	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/runner"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
	"github.com/tensorlakeai/tensorlake-go/runtime/telemetry"
)

type (
	// Option configures the remote runner.
	Option func(*Runner)

	// Runner submits requests to the scheduler. Unlike the local runner it
	// is reusable: each Run opens an independent request. Fetched manifests
	// are cached for the runner's lifetime.
	Runner struct {
		client *client.Client
		logger telemetry.Logger

		mu        sync.Mutex
		manifests map[string]*manifest.Manifest
	}
)

// WithLogger sets the structured logger; the default discards everything.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithManifest preloads an application manifest, skipping the fetch on
// first submission. Deployment flows that just built the manifest use this.
func WithManifest(m *manifest.Manifest) Option {
	return func(r *Runner) { r.manifests[m.Name] = m }
}

// New constructs a remote runner over the given scheduler client.
func New(c *client.Client, opts ...Option) *Runner {
	r := &Runner{
		client:    c,
		logger:    telemetry.NewNoopLogger(),
		manifests: make(map[string]*manifest.Manifest),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run submits one invocation of the named application with the given
// positional arguments and returns its request handle. Arguments must be
// plain values; composing awaitable graphs client-side is local-runner
// territory.
func (r *Runner) Run(ctx context.Context, appName string, args ...any) (*Request, error) {
	m, err := r.manifest(ctx, appName)
	if err != nil {
		return nil, err
	}

	parts, err := encodeArgs(m.Entrypoint, args)
	if err != nil {
		return nil, err
	}

	requestID, err := r.client.Run(ctx, appName, parts)
	if err != nil {
		return nil, err
	}
	r.logger.Info(ctx, "request submitted", "application", appName, "request_id", requestID)

	return &Request{
		client:   r.client,
		logger:   r.logger,
		app:      appName,
		manifest: m,
		id:       requestID,
	}, nil
}

// manifest returns the cached manifest for the application, fetching it
// from the scheduler on first use.
func (r *Runner) manifest(ctx context.Context, appName string) (*manifest.Manifest, error) {
	r.mu.Lock()
	m, ok := r.manifests[appName]
	r.mu.Unlock()
	if ok {
		return m, nil
	}

	m, err := r.client.GetApplication(ctx, appName)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.manifests[appName] = m
	r.mu.Unlock()
	return m, nil
}

// encodeArgs serializes each positional argument with the entrypoint's
// input serializer, in parallel, naming each part after the declared
// parameter and stamping the declared type hint when the value carries
// none.
func encodeArgs(ep manifest.Entrypoint, args []any) ([]client.RunArg, error) {
	hints, err := ep.InputHints()
	if err != nil {
		return nil, err
	}
	if len(hints) > 0 && len(args) != len(hints) {
		return nil, sdkerrors.NewUsageError(
			"application %q takes %d argument(s), got %d", ep.FunctionName, len(hints), len(args))
	}

	parts := make([]client.RunArg, len(args))
	var g errgroup.Group
	for i, v := range args {
		g.Go(func() error {
			if _, ok := v.(awaitable.Awaitable); ok {
				return sdkerrors.NewUsageError(
					"argument %d of %q is an awaitable; remote submission takes values only", i, ep.FunctionName)
			}
			p, err := serializer.EncodePayload(ep.InputSerializer, v)
			if err != nil {
				return err
			}
			name := argName(hints, i)
			if p.TypeHint == "" {
				p.TypeHint = argHint(hints, i)
			}
			parts[i] = client.RunArg{Name: name, Payload: p}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

func argName(hints []manifest.ParameterHint, i int) string {
	if i < len(hints) && hints[i].ArgName != "" {
		return hints[i].ArgName
	}
	return "arg_" + strconv.Itoa(i)
}

func argHint(hints []manifest.ParameterHint, i int) string {
	if i < len(hints) {
		return hints[i].TypeHint
	}
	return ""
}

var _ runner.Request = (*Request)(nil)
