package awaitable

import "github.com/tensorlakeai/tensorlake-go/runtime/serializer"

// Awaitables are descriptions of work, not data. Implementing the marshaler
// interfaces with a hard failure means any attempt to smuggle one inside an
// opaque user value errors at the codec boundary, for both named codecs.

// MarshalJSON always fails: pass calls as direct arguments instead.
func (c *FunctionCall) MarshalJSON() ([]byte, error) {
	return nil, serializer.ErrNotEncodable
}

// MarshalCBOR always fails: pass calls as direct arguments instead.
func (c *FunctionCall) MarshalCBOR() ([]byte, error) {
	return nil, serializer.ErrNotEncodable
}

// MarshalJSON always fails: pass lists as direct arguments instead.
func (l *List) MarshalJSON() ([]byte, error) {
	return nil, serializer.ErrNotEncodable
}

// MarshalCBOR always fails: pass lists as direct arguments instead.
func (l *List) MarshalCBOR() ([]byte, error) {
	return nil, serializer.ErrNotEncodable
}

// MarshalJSON always fails: pass reducers as direct arguments instead.
func (r *Reduce) MarshalJSON() ([]byte, error) {
	return nil, serializer.ErrNotEncodable
}

// MarshalCBOR always fails: pass reducers as direct arguments instead.
func (r *Reduce) MarshalCBOR() ([]byte, error) {
	return nil, serializer.ErrNotEncodable
}
