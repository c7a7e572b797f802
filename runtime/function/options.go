package function

type config struct {
	desc      string
	class     string
	inputSer  string
	outputSer string
	retry     *RetryPolicy
	resources Resources
	timeouts  Timeouts
	region    string
	maxConc   int
	image     string
	secrets   []string
	cacheKey  string
	params    []Param
	retHint   Param
	tags      map[string]string
	appRetry  *RetryPolicy
	file      string
	line      int
}

// Option configures a function, class, or application descriptor at
// declaration time.
type Option func(*config)

func newConfig(opts []Option) *config {
	cfg := &config{
		resources: DefaultResources(),
		timeouts:  DefaultTimeouts(),
		maxConc:   DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (cfg *config) function(name string, handler Handler) *Function {
	return &Function{
		name:       name,
		desc:       cfg.desc,
		class:      cfg.class,
		handler:    handler,
		inputSer:   cfg.inputSer,
		outputSer:  cfg.outputSer,
		retry:      cfg.retry,
		resources:  cfg.resources,
		timeouts:   cfg.timeouts,
		region:     cfg.region,
		maxConc:    cfg.maxConc,
		image:      cfg.image,
		secrets:    cfg.secrets,
		cacheKey:   cfg.cacheKey,
		params:     cfg.params,
		returnHint: cfg.retHint,
		file:       cfg.file,
		line:       cfg.line,
	}
}

// WithDescription attaches a human-readable description.
func WithDescription(desc string) Option {
	return func(cfg *config) { cfg.desc = desc }
}

// WithClass binds the function as a method of the named class. The worker
// constructs the class instance once and passes it as Invocation.Receiver.
func WithClass(name string) Option {
	return func(cfg *config) { cfg.class = name }
}

// WithInputSerializer selects the codec decoding arguments ("json" or
// "binary"); the default is "json".
func WithInputSerializer(name string) Option {
	return func(cfg *config) { cfg.inputSer = name }
}

// WithOutputSerializer selects the codec encoding results ("json" or
// "binary"); the default is "json".
func WithOutputSerializer(name string) Option {
	return func(cfg *config) { cfg.outputSer = name }
}

// WithRetryPolicy declares the function's own retry policy, overriding the
// application default.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cfg *config) { cfg.retry = &p }
}

// WithResources declares the compute request.
func WithResources(r Resources) Option {
	return func(cfg *config) { cfg.resources = r }
}

// WithTimeouts declares initialization and call bounds.
func WithTimeouts(t Timeouts) Option {
	return func(cfg *config) { cfg.timeouts = t }
}

// WithRegion constrains placement to a region.
func WithRegion(region string) Option {
	return func(cfg *config) { cfg.region = region }
}

// WithMaxConcurrency bounds concurrent runs per worker.
func WithMaxConcurrency(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.maxConc = n
		}
	}
}

// WithImage names the container image for fleet execution.
func WithImage(ref string) Option {
	return func(cfg *config) { cfg.image = ref }
}

// WithSecrets names the secrets injected into the function environment.
func WithSecrets(names ...string) Option {
	return func(cfg *config) { cfg.secrets = names }
}

// WithCacheKey enables scheduler-side result caching under the given key.
func WithCacheKey(key string) Option {
	return func(cfg *config) { cfg.cacheKey = key }
}

// WithParams declares the parameters in positional order. Applications must
// declare every parameter so a schema can be generated.
func WithParams(params ...Param) Option {
	return func(cfg *config) { cfg.params = params }
}

// WithReturnHint declares the return type token and optional schema.
func WithReturnHint(p Param) Option {
	return func(cfg *config) { cfg.retHint = p }
}

// WithTags attaches application tags. Ignored on plain functions.
func WithTags(tags map[string]string) Option {
	return func(cfg *config) { cfg.tags = tags }
}

// WithDefaultRetryPolicy sets the application-wide retry default for
// functions without their own policy. Ignored on plain functions.
func WithDefaultRetryPolicy(p RetryPolicy) Option {
	return func(cfg *config) { cfg.appRetry = &p }
}

// WithSource overrides the captured registration source location. Wrapper
// layers use this to report their caller rather than themselves.
func WithSource(file string, line int) Option {
	return func(cfg *config) {
		cfg.file = file
		cfg.line = line
	}
}
