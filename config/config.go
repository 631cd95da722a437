// Package config loads the immutable swale configuration: store identity,
// bounding box, layer definitions, and job definitions.
//
// Mutable runtime state (the version list, queue cursors) is deliberately
// not part of the configuration file; it lives in the version manager's
// ledger.
package config

import (
	"fmt"
	"os"

	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/schema"

	"gopkg.in/yaml.v3"
)

// Access is the pre-resolved access label attached to a layer. The core
// trusts these labels and does not enforce them.
type Access string

const (
	AccessPublic   Access = "public"
	AccessInternal Access = "internal"
	AccessAdmin    Access = "admin"
)

// JoinStrictness controls how the resolver treats joins that match more
// than one record.
type JoinStrictness string

const (
	// JoinMergeAll applies the annotation to every matched record.
	JoinMergeAll JoinStrictness = "merge_all"
	// JoinUnique surfaces an error when a join matches more than one
	// record, leaving the delta record unapplied.
	JoinUnique JoinStrictness = "unique"
)

// BBox is the store bounding box in configuration form.
type BBox struct {
	West  float64 `yaml:"west"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	North float64 `yaml:"north"`
}

// Bounds returns the bounding box as geometry bounds.
func (b BBox) Bounds() geometry.Bounds {
	return geometry.Bounds{MinX: b.West, MinY: b.South, MaxX: b.East, MaxY: b.North}
}

// TransformRule is one declarative queue-level transformation applied to
// delta records as they are drained.
type TransformRule struct {
	// Rename maps old property names to new property names.
	Rename map[string]string `yaml:"rename,omitempty"`
	// Coerce maps property names to target types: string, int, float, bool.
	Coerce map[string]string `yaml:"coerce,omitempty"`
	// Set maps property names to expressions evaluated against the record
	// properties.
	Set map[string]string `yaml:"set,omitempty"`
}

// Layer is the configuration for one named layer.
type Layer struct {
	Name string        `yaml:"name"`
	Kind geometry.Kind `yaml:"kind"`
	// Access is the pre-resolved access label for the layer.
	Access Access `yaml:"access"`
	// IdentityField names the property used as record identity. When empty
	// the identity is derived from the record geometry.
	IdentityField string `yaml:"identity_field,omitempty"`
	// Schema is optional GraphQL SDL describing the editable properties.
	Schema string `yaml:"schema,omitempty"`
	// JoinStrictness defaults to merge_all.
	JoinStrictness JoinStrictness  `yaml:"join_strictness,omitempty"`
	Transforms     []TransformRule `yaml:"transforms,omitempty"`

	compiled *schema.Schema
}

// PropertySchema returns the compiled property schema, or nil if the layer
// does not declare one.
func (l *Layer) PropertySchema() *schema.Schema {
	return l.compiled
}

// Job is the configuration for one inlet, eddy, or outlet.
type Job struct {
	Name string `yaml:"name"`
	// FetchType selects the job kind from the registry.
	FetchType string         `yaml:"fetch_type"`
	Config    map[string]any `yaml:"config,omitempty"`
}

// Config is the root swale configuration.
type Config struct {
	Name     string            `yaml:"name"`
	CRS      string            `yaml:"crs"`
	BBox     BBox              `yaml:"bbox"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
	Layers   []*Layer          `yaml:"layers"`
	Jobs     []Job             `yaml:"jobs,omitempty"`
	// ConfigSources maps interpolation labels to secondary file paths.
	ConfigSources map[string]string `yaml:"config_sources,omitempty"`
}

// Layer returns the configuration for the named layer.
func (c *Config) Layer(name string) (*Layer, bool) {
	for _, l := range c.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return nil, false
}

// Validate checks the layer definition, applies defaults, and compiles the
// property schema.
func (l *Layer) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("layer must include a name")
	}
	if _, err := geometry.ParseKind(string(l.Kind)); err != nil {
		return fmt.Errorf("layer %q: %w", l.Name, err)
	}
	switch l.Access {
	case AccessPublic, AccessInternal, AccessAdmin:
	case "":
		l.Access = AccessInternal
	default:
		return fmt.Errorf("layer %q: invalid access label %q", l.Name, l.Access)
	}
	switch l.JoinStrictness {
	case JoinMergeAll, JoinUnique:
	case "":
		l.JoinStrictness = JoinMergeAll
	default:
		return fmt.Errorf("layer %q: invalid join strictness %q", l.Name, l.JoinStrictness)
	}
	if l.Schema != "" {
		compiled, err := schema.Parse(l.Schema)
		if err != nil {
			return fmt.Errorf("layer %q: invalid schema: %w", l.Name, err)
		}
		l.compiled = compiled
	}
	return nil
}

// Validate checks the configuration and compiles layer schemas.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config must include a name")
	}
	seen := make(map[string]struct{}, len(c.Layers))
	for _, l := range c.Layers {
		if err := l.Validate(); err != nil {
			return err
		}
		if _, ok := seen[l.Name]; ok {
			return fmt.Errorf("duplicate layer name %q", l.Name)
		}
		seen[l.Name] = struct{}{}
	}
	return nil
}

// Load reads, interpolates, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse parses a configuration document. Interpolated secondary files are
// resolved relative to the given path.
func Parse(data []byte, path string) (*Config, error) {
	resolved, err := interpolate(data, path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(resolved, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
