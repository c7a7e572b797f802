package serializer

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// binarySerializer is the full-fidelity codec backed by CBOR. CBOR payloads
// are self-describing, so integers survive round trips as integers and byte
// strings stay bytes, which the JSON codec cannot guarantee.
type binarySerializer struct{}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	// Deterministic encoding keeps payload bytes stable across processes.
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborEnc = enc

	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	cborDec = dec
}

func (binarySerializer) Name() string { return NameBinary }

func (binarySerializer) ContentType() string { return ContentTypeBinary }

func (binarySerializer) Encode(v any) ([]byte, error) {
	data, err := cborEnc.Marshal(v)
	if err != nil {
		return nil, encodeErr(NameBinary, err)
	}
	return data, nil
}

func (binarySerializer) Decode(data []byte, hint string) (any, error) {
	if entry, ok := lookupToken(hint); ok {
		ptr := entry.newPtr()
		if err := cborDec.Unmarshal(data, ptr); err != nil {
			return nil, decodeErr(NameBinary, err)
		}
		return entry.deref(ptr), nil
	}
	var v any
	if err := cborDec.Unmarshal(data, &v); err != nil {
		return nil, decodeErr(NameBinary, err)
	}
	return v, nil
}
