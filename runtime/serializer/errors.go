package serializer

import "errors"

// Error reports a failed boundary conversion. Every serialization failure is
// attributable to a named codec and a direction.
type Error struct {
	// Serializer names the codec that failed.
	Serializer string
	// Op is "encode" or "decode".
	Op string
	// Cause stores the underlying codec error.
	Cause error
}

// ErrNotEncodable matches attempts to serialize an awaitable or future
// embedded inside an opaque user value.
var ErrNotEncodable = errors.New("awaitables and futures cannot be serialized")

// Error renders "<codec> <op>: <cause>".
func (e *Error) Error() string {
	if e == nil {
		return "serialization error"
	}
	return e.Serializer + " " + e.Op + ": " + e.Cause.Error()
}

// Unwrap exposes the codec error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func encodeErr(name string, cause error) error {
	return &Error{Serializer: name, Op: "encode", Cause: cause}
}

func decodeErr(name string, cause error) error {
	return &Error{Serializer: name, Op: "decode", Cause: cause}
}
