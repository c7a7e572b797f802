package serializer

import "encoding/json"

// jsonSerializer is the human-compatible codec. It round-trips any value
// encoding/json accepts; decoding without a registered token yields the
// generic JSON representation (map[string]any, []any, float64, ...).
type jsonSerializer struct{}

func (jsonSerializer) Name() string { return NameJSON }

func (jsonSerializer) ContentType() string { return ContentTypeJSON }

func (jsonSerializer) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, encodeErr(NameJSON, err)
	}
	return data, nil
}

func (jsonSerializer) Decode(data []byte, hint string) (any, error) {
	if entry, ok := lookupToken(hint); ok {
		ptr := entry.newPtr()
		if err := json.Unmarshal(data, ptr); err != nil {
			return nil, decodeErr(NameJSON, err)
		}
		return entry.deref(ptr), nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, decodeErr(NameJSON, err)
	}
	return v, nil
}
