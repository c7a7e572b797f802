package manifest

import (
	"github.com/tensorlakeai/tensorlake-go/runtime/function"
	"github.com/tensorlakeai/tensorlake-go/runtime/registry"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

// Build renders the wire manifest of a registered application: every
// registered function with its effective retry policy, plus the entrypoint
// block carrying the codec names and base64 parameter hints. Build is
// deterministic for a fixed registry, so upserting twice ships identical
// bytes apart from the version nonce.
func Build(reg *registry.Registry, appName string) (*Manifest, error) {
	app, ok := reg.Application(appName)
	if !ok {
		return nil, sdkerrors.NewUsageError("unknown application %q", appName)
	}

	m := &Manifest{
		Name:        app.Name(),
		Description: app.Description(),
		Version:     app.Version(),
		Functions:   make(map[string]Function),
	}
	if tags := app.Tags(); len(tags) > 0 {
		m.Tags = tags
	}
	for _, fn := range reg.Functions() {
		m.Functions[fn.Name()] = buildFunction(app, fn)
	}

	ep, err := buildEntrypoint(app)
	if err != nil {
		return nil, err
	}
	m.Entrypoint = ep
	return m, nil
}

func buildFunction(app *function.Application, fn *function.Function) Function {
	retry := app.EffectiveRetry(fn)
	res := fn.Resources()

	out := Function{
		Name:                     fn.Name(),
		Description:              fn.Description(),
		IsAPI:                    fn.IsAPI(),
		Image:                    fn.Image(),
		InitializationTimeoutSec: int(fn.Timeouts().Initialization.Seconds()),
		TimeoutSec:               int(fn.Timeouts().Call.Seconds()),
		Resources: Resources{
			CPUs:            res.CPUs,
			MemoryMB:        res.MemoryMB,
			EphemeralDiskMB: res.EphemeralDiskMB,
			GPUs:            buildGPUs(res.GPUs),
		},
		RetryPolicy: RetryPolicy{
			MaxRetries:      retry.MaxRetries,
			InitialDelaySec: retry.InitialDelay.Seconds(),
			MaxDelaySec:     retry.MaxDelay.Seconds(),
			DelayMultiplier: retry.DelayMultiplier,
		},
		MaxConcurrency: fn.MaxConcurrency(),
	}
	if secrets := fn.Secrets(); len(secrets) > 0 {
		out.SecretNames = secrets
	}
	if key := fn.CacheKey(); key != "" {
		out.CacheKey = &key
	}
	if region := fn.Region(); region != "" {
		out.PlacementConstraints = []string{"region==" + region}
	}
	for _, p := range fn.Params() {
		out.Parameters = append(out.Parameters, Parameter{
			Name:        p.Name,
			DataType:    paramSchema(p),
			Description: p.Description,
			Required:    p.Required,
		})
	}
	if ret := fn.ReturnHint(); ret.TypeToken != "" || ret.Schema != nil {
		out.ReturnType = paramSchema(ret)
	}
	return out
}

func buildGPUs(gpus []function.GPU) []GPU {
	if len(gpus) == 0 {
		return nil
	}
	out := make([]GPU, len(gpus))
	for i, g := range gpus {
		out[i] = GPU{Count: g.Count, Model: g.Model}
	}
	return out
}

// paramSchema resolves the JSON-Schema of one declared parameter: the
// explicit schema when given, the token-derived one otherwise.
func paramSchema(p function.Param) map[string]any {
	if p.Schema != nil {
		return p.Schema
	}
	return SchemaFor(p.TypeToken)
}

func buildEntrypoint(app *function.Application) (Entrypoint, error) {
	params := app.Params()
	hints := make([]ParameterHint, len(params))
	for i, p := range params {
		hints[i] = ParameterHint{ArgName: p.Name, TypeHint: p.TypeToken}
	}
	inputs, err := EncodeHints(hints)
	if err != nil {
		return Entrypoint{}, err
	}

	var outHints []ParameterHint
	if ret := app.ReturnHint(); ret.TypeToken != "" {
		outHints = append(outHints, ParameterHint{ArgName: ret.Name, TypeHint: ret.TypeToken})
	}
	outputs, err := EncodeHints(outHints)
	if err != nil {
		return Entrypoint{}, err
	}

	return Entrypoint{
		FunctionName:          app.Name(),
		InputSerializer:       app.InputSerializer(),
		InputsBase64:          inputs,
		OutputSerializer:      app.OutputSerializer(),
		OutputTypeHintsBase64: outputs,
	}, nil
}
