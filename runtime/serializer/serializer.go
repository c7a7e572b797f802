// Package serializer implements the named codecs that carry user values
// across function boundaries: "json" for human-compatible payloads and
// "binary" for full-fidelity self-describing payloads (CBOR).
//
// A Payload couples encoded bytes with the metadata any process needs to
// decode them again: codec name, content type, and an optional type token
// resolved through the process-wide type registry.
package serializer

import (
	"fmt"

	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

// Codec names understood by every runner and by the scheduler manifest.
const (
	NameJSON   = "json"
	NameBinary = "binary"
)

// Content types attached to payloads produced by the named codecs.
const (
	ContentTypeJSON   = "application/json"
	ContentTypeBinary = "application/cbor"
	ContentTypeFile   = "application/octet-stream"
)

// TokenFile is the type token recorded for raw file payloads.
const TokenFile = "file"

type (
	// Serializer is a named codec for user values. Encode refuses values
	// that embed awaitables or futures; only argument positions recognized
	// by the AST builder may carry those.
	Serializer interface {
		// Name returns the codec name used in manifests and payloads.
		Name() string
		// ContentType returns the MIME type of encoded payloads.
		ContentType() string
		// Encode converts a user value to bytes.
		Encode(v any) ([]byte, error)
		// Decode converts bytes back to a value. A registered type token
		// yields the concrete Go type; an empty or unknown hint yields the
		// codec's generic representation.
		Decode(data []byte, hint string) (any, error)
	}

	// Payload is an encoded user value plus everything needed to decode it
	// on another process: the codec name (empty for raw files), the content
	// type, and the type token recorded at encode time.
	Payload struct {
		Data        []byte
		Serializer  string
		ContentType string
		TypeHint    string
	}

	// File is a binary value transported verbatim: raw bytes plus content
	// type, bypassing the named codecs.
	File struct {
		Data        []byte
		ContentType string
	}
)

var codecs = map[string]Serializer{
	NameJSON:   jsonSerializer{},
	NameBinary: binarySerializer{},
}

// Get resolves a codec by name.
func Get(name string) (Serializer, error) {
	s, ok := codecs[name]
	if !ok {
		return nil, sdkerrors.NewUsageError("unknown serializer %q", name)
	}
	return s, nil
}

// EncodePayload encodes v with the named codec. Files skip the codec and
// travel as raw bytes with their declared content type.
func EncodePayload(name string, v any) (*Payload, error) {
	if f, ok := v.(*File); ok {
		ct := f.ContentType
		if ct == "" {
			ct = ContentTypeFile
		}
		return &Payload{Data: f.Data, ContentType: ct, TypeHint: TokenFile}, nil
	}
	codec, err := Get(name)
	if err != nil {
		return nil, err
	}
	data, err := codec.Encode(v)
	if err != nil {
		return nil, err
	}
	return &Payload{
		Data:        data,
		Serializer:  name,
		ContentType: codec.ContentType(),
		TypeHint:    TokenFor(v),
	}, nil
}

// Decode recovers the value carried by the payload using its recorded codec
// and type token. File payloads come back as *File.
func (p *Payload) Decode() (any, error) {
	return p.DecodeAs(p.TypeHint)
}

// DecodeAs recovers the value using an explicit type token, overriding the
// one recorded at encode time. Remote output decoding uses this with the
// application's declared return hint.
func (p *Payload) DecodeAs(hint string) (any, error) {
	if p.Serializer == "" || hint == TokenFile {
		return &File{Data: p.Data, ContentType: p.ContentType}, nil
	}
	codec, err := Get(p.Serializer)
	if err != nil {
		return nil, err
	}
	return codec.Decode(p.Data, hint)
}

// Clone returns a deep copy of the payload. Tail-call propagation stores
// clones so completing futures never share backing arrays.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Data = make([]byte, len(p.Data))
	copy(cp.Data, p.Data)
	return &cp
}

func (f *File) String() string {
	return fmt.Sprintf("file<%s, %d bytes>", f.ContentType, len(f.Data))
}
