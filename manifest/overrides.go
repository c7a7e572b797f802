package manifest

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

type (
	// Overrides is a deploy-time adjustment file applied to a built manifest
	// before upsert. It changes placement and tagging without touching code:
	//
	//	tags:
	//	  team: search
	//	functions:
	//	  wordcount.count:
	//	    placement_constraints: ["region==eu-west-1"]
	//	    max_concurrency: 4
	//	    secret_names: [HF_TOKEN]
	Overrides struct {
		Tags      map[string]string           `yaml:"tags"`
		Functions map[string]FunctionOverride `yaml:"functions"`
	}

	// FunctionOverride adjusts one function block. Zero-valued fields leave
	// the built manifest untouched.
	FunctionOverride struct {
		PlacementConstraints []string `yaml:"placement_constraints"`
		MaxConcurrency       int      `yaml:"max_concurrency"`
		SecretNames          []string `yaml:"secret_names"`
		Image                string   `yaml:"image"`
	}
)

// LoadOverrides parses an overrides document.
func LoadOverrides(r io.Reader) (*Overrides, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, sdkerrors.NewUsageError("read manifest overrides: %v", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, sdkerrors.NewUsageError("malformed manifest overrides: %v", err)
	}
	return &o, nil
}

// Apply merges the overrides into m. Tags merge key by key; function blocks
// must name registered functions.
func (o *Overrides) Apply(m *Manifest) error {
	if o == nil {
		return nil
	}
	if len(o.Tags) > 0 && m.Tags == nil {
		m.Tags = make(map[string]string, len(o.Tags))
	}
	for k, v := range o.Tags {
		m.Tags[k] = v
	}
	for name, fo := range o.Functions {
		fn, ok := m.Functions[name]
		if !ok {
			return sdkerrors.NewUsageError("manifest overrides name unknown function %q", name)
		}
		if len(fo.PlacementConstraints) > 0 {
			fn.PlacementConstraints = fo.PlacementConstraints
		}
		if fo.MaxConcurrency > 0 {
			fn.MaxConcurrency = fo.MaxConcurrency
		}
		if len(fo.SecretNames) > 0 {
			fn.SecretNames = fo.SecretNames
		}
		if fo.Image != "" {
			fn.Image = fo.Image
		}
		m.Functions[name] = fn
	}
	return nil
}
