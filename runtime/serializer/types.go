package serializer

import (
	"fmt"
	"sync"
)

// The type registry maps short type tokens to concrete Go types so decoders
// can reconstruct typed values on any process. Tokens replace runtime
// reflection of hints: a function declares the token, the registry resolves
// the decoder.
//
// Registration is process-wide and normally happens from package init, next
// to the functions that use the types.

type typeEntry struct {
	token  string
	newPtr func() any        // allocates *T
	deref  func(ptr any) any // recovers T from *T
}

var typeReg = struct {
	sync.RWMutex
	byToken map[string]typeEntry
	byGo    map[string]string // dynamic Go type -> token
}{
	byToken: make(map[string]typeEntry),
	byGo:    make(map[string]string),
}

// RegisterType associates token with the concrete type T. Values of dynamic
// type T encode with the token attached, and payloads carrying the token
// decode back into T. Re-registering a token overwrites the previous binding.
func RegisterType[T any](token string) {
	var zero T
	entry := typeEntry{
		token:  token,
		newPtr: func() any { var v T; return &v },
		deref:  func(p any) any { return *(p.(*T)) },
	}
	typeReg.Lock()
	defer typeReg.Unlock()
	typeReg.byToken[token] = entry
	typeReg.byGo[fmt.Sprintf("%T", zero)] = token
}

// TokenFor returns the registered token for v's dynamic type, or the empty
// string when the type is unregistered.
func TokenFor(v any) string {
	if v == nil {
		return ""
	}
	typeReg.RLock()
	defer typeReg.RUnlock()
	return typeReg.byGo[fmt.Sprintf("%T", v)]
}

// KnownToken reports whether token resolves to a registered type.
func KnownToken(token string) bool {
	typeReg.RLock()
	defer typeReg.RUnlock()
	_, ok := typeReg.byToken[token]
	return ok
}

func lookupToken(token string) (typeEntry, bool) {
	typeReg.RLock()
	defer typeReg.RUnlock()
	e, ok := typeReg.byToken[token]
	return e, ok
}

func init() {
	RegisterType[int]("int")
	RegisterType[int64]("int64")
	RegisterType[float64]("float64")
	RegisterType[string]("string")
	RegisterType[bool]("bool")
	RegisterType[[]byte]("bytes")
	RegisterType[[]int]("[]int")
	RegisterType[[]float64]("[]float64")
	RegisterType[[]string]("[]string")
	RegisterType[[]any]("[]any")
	RegisterType[map[string]any]("map[string]any")
}
