package function

import (
	"strings"

	"github.com/google/uuid"
)

// Application is the distinguished function that defines a request's entry
// point. It carries everything a Function does plus tags and a version
// nonce regenerated on every process load.
type Application struct {
	*Function
	tags         map[string]string
	version      string
	defaultRetry RetryPolicy
}

// NewApplication constructs an application descriptor. The version nonce is
// a fresh alphanumeric tag unique to this load.
func NewApplication(name string, handler Handler, opts ...Option) *Application {
	cfg := newConfig(opts)
	f := cfg.function(name, handler)
	if f.file == "" {
		f.file, f.line = callerLocation(2)
	}
	f.isAPI = true

	retry := DefaultRetryPolicy()
	if cfg.appRetry != nil {
		retry = *cfg.appRetry
	}
	return &Application{
		Function:     f,
		tags:         cfg.tags,
		version:      newVersionNonce(),
		defaultRetry: retry,
	}
}

// Tags returns a copy of the application tags.
func (a *Application) Tags() map[string]string {
	out := make(map[string]string, len(a.tags))
	for k, v := range a.tags {
		out[k] = v
	}
	return out
}

// Version returns the load-unique version nonce.
func (a *Application) Version() string { return a.version }

// DefaultRetry returns the retry policy applied to functions that declare
// none of their own.
func (a *Application) DefaultRetry() RetryPolicy { return a.defaultRetry }

// EffectiveRetry resolves the policy for one function: its own when
// declared, the application default otherwise.
func (a *Application) EffectiveRetry(f *Function) RetryPolicy {
	if p, ok := f.Retry(); ok {
		return p
	}
	return a.defaultRetry
}

func newVersionNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
