// Package manifest defines the application manifest: the JSON document that
// describes an application and its functions to the scheduler. Build renders
// a manifest from the registry; the client ships it on upsert and the remote
// runner reads serializer names and parameter hints back out of it.
package manifest

import (
	"encoding/base64"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"

	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

type (
	// Manifest is the wire form of one application.
	Manifest struct {
		Name        string              `json:"name"`
		Description string              `json:"description"`
		Tags        map[string]string   `json:"tags,omitempty"`
		Version     string              `json:"version"`
		Functions   map[string]Function `json:"functions"`
		Entrypoint  Entrypoint          `json:"entrypoint"`
	}

	// Function is the wire form of one function declaration.
	Function struct {
		Name                     string         `json:"name"`
		Description              string         `json:"description"`
		IsAPI                    bool           `json:"is_api"`
		Image                    string         `json:"image,omitempty"`
		SecretNames              []string       `json:"secret_names,omitempty"`
		InitializationTimeoutSec int            `json:"initialization_timeout_sec"`
		TimeoutSec               int            `json:"timeout_sec"`
		Resources                Resources      `json:"resources"`
		RetryPolicy              RetryPolicy    `json:"retry_policy"`
		CacheKey                 *string        `json:"cache_key"`
		Parameters               []Parameter    `json:"parameters,omitempty"`
		ReturnType               map[string]any `json:"return_type,omitempty"`
		PlacementConstraints     []string       `json:"placement_constraints,omitempty"`
		MaxConcurrency           int            `json:"max_concurrency"`
	}

	// Resources is the compute request shipped per function.
	Resources struct {
		CPUs            float64 `json:"cpus"`
		MemoryMB        int     `json:"memory_mb"`
		EphemeralDiskMB int     `json:"ephemeral_disk_mb"`
		GPUs            []GPU   `json:"gpus,omitempty"`
	}

	// GPU requests count devices of one model.
	GPU struct {
		Count int    `json:"count"`
		Model string `json:"model"`
	}

	// RetryPolicy is the wire form of a retry schedule, delays in seconds.
	RetryPolicy struct {
		MaxRetries      int     `json:"max_retries"`
		InitialDelaySec float64 `json:"initial_delay_sec"`
		MaxDelaySec     float64 `json:"max_delay_sec"`
		DelayMultiplier float64 `json:"delay_multiplier"`
	}

	// Parameter declares one function parameter with its JSON-Schema type.
	Parameter struct {
		Name        string         `json:"name"`
		DataType    map[string]any `json:"data_type,omitempty"`
		Description string         `json:"description,omitempty"`
		Required    bool           `json:"required"`
	}

	// Entrypoint names the application function and carries the codec names
	// and base64 parameter hints the remote runner needs to serialize a
	// submission.
	Entrypoint struct {
		FunctionName          string `json:"function_name"`
		InputSerializer       string `json:"input_serializer"`
		InputsBase64          string `json:"inputs_base64"`
		OutputSerializer      string `json:"output_serializer"`
		OutputTypeHintsBase64 string `json:"output_type_hints_base64"`
	}

	// ParameterHint pairs an argument name with its serializer type token.
	// Ordered lists of hints travel base64-encoded inside the entrypoint.
	ParameterHint struct {
		ArgName  string `json:"arg_name" cbor:"arg_name"`
		TypeHint string `json:"type_hint" cbor:"type_hint"`
	}
)

// Encode renders the manifest as JSON.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, sdkerrors.NewInternalError("encode manifest %q: %v", m.Name, err)
	}
	return data, nil
}

// Decode parses a manifest from JSON.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, sdkerrors.NewUsageError("malformed application manifest: %v", err)
	}
	return &m, nil
}

// Function returns the named function block.
func (m *Manifest) Function(name string) (Function, bool) {
	f, ok := m.Functions[name]
	return f, ok
}

// EncodeHints renders an ordered hint list as base64 CBOR. An empty list
// encodes to the empty string.
func EncodeHints(hints []ParameterHint) (string, error) {
	if len(hints) == 0 {
		return "", nil
	}
	data, err := cbor.Marshal(hints)
	if err != nil {
		return "", sdkerrors.NewInternalError("encode parameter hints: %v", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeHints parses a base64 CBOR hint list. The empty string decodes to an
// empty list.
func DecodeHints(s string) ([]ParameterHint, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, sdkerrors.NewUsageError("parameter hints are not valid base64: %v", err)
	}
	var hints []ParameterHint
	if err := cbor.Unmarshal(data, &hints); err != nil {
		return nil, sdkerrors.NewUsageError("parameter hints are not valid binary payload: %v", err)
	}
	return hints, nil
}

// InputHints decodes the entrypoint's ordered parameter hints.
func (e Entrypoint) InputHints() ([]ParameterHint, error) {
	return DecodeHints(e.InputsBase64)
}

// OutputHints decodes the entrypoint's return hints.
func (e Entrypoint) OutputHints() ([]ParameterHint, error) {
	return DecodeHints(e.OutputTypeHintsBase64)
}
