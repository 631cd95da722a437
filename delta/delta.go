// Package delta defines the batches of proposed change that flow through
// the queue, and the distinguished annotation fields that govern how each
// record is applied.
package delta

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/schema"
)

// Type governs how a delta record affects matched targets.
type Type string

const (
	// TypeAnnotate merges the record properties into matched targets.
	TypeAnnotate Type = "annotate"
	// TypeCreate inserts the record as new, ignoring matches.
	TypeCreate Type = "create"
	// TypeDelete removes matched targets.
	TypeDelete Type = "delete"
)

// ParseType returns the annotation type for the given wire value. An empty
// value defaults to annotate.
func ParseType(value string) (Type, error) {
	switch Type(value) {
	case "":
		return TypeAnnotate, nil
	case TypeAnnotate, TypeCreate, TypeDelete:
		return Type(value), nil
	default:
		return "", fmt.Errorf("invalid annotation type %q", value)
	}
}

// Join selects the strategy used to find the records a delta record
// affects.
type Join string

const (
	// JoinGeometry matches every record whose geometry intersects the
	// delta record geometry.
	JoinGeometry Join = "simple_geometry_intersection"
	// JoinProperty matches every record whose properties equal the
	// configured match properties.
	JoinProperty Join = "property_match"
)

// ParseJoin returns the join strategy for the given wire value. An empty
// value defaults to geometry intersection.
func ParseJoin(value string) (Join, error) {
	switch Join(value) {
	case "":
		return JoinGeometry, nil
	case JoinGeometry, JoinProperty:
		return Join(value), nil
	default:
		return "", fmt.Errorf("invalid annotation join %q", value)
	}
}

// Record is one proposed change within a delta.
type Record struct {
	Geometry   geometry.Geometry
	Properties map[string]any
	Type       Type
	Join       Join
	// PropertyMatch narrows a geometry join (AND semantics) or supplies
	// the equality values for a property join.
	PropertyMatch map[string]any
	// Timestamp is the logical ordering key in unix milliseconds. Zero
	// means the record inherits the batch timestamp.
	Timestamp int64
	// Schema is optional SDL declaring the shape of Properties. Used for
	// validation only.
	Schema string
	// ReplacementGeometry, when present on an annotate record, replaces
	// the geometry of matched targets. The join still evaluates against
	// Geometry.
	ReplacementGeometry *geometry.Geometry
}

// Delta is a batch of proposed records targeting exactly one layer.
type Delta struct {
	Layer     string
	Timestamp int64
	Records   []Record
}

// ValidationError reports a structurally invalid delta. The whole batch is
// rejected before enqueue.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid delta: " + e.Reason
}

// Validate checks the delta against the target layer configuration:
// geometry kinds must match the layer kind, and declared schemas (both the
// layer schema and any per-record annotation schema) must match the record
// properties.
func (d *Delta) Validate(layer *config.Layer) error {
	for i, r := range d.Records {
		if err := r.Geometry.Validate(); err != nil {
			return &ValidationError{Reason: fmt.Sprintf("record %d: %v", i, err)}
		}
		if r.Geometry.Kind != layer.Kind {
			return &ValidationError{Reason: fmt.Sprintf(
				"record %d: geometry kind %q does not match layer %q kind %q",
				i, r.Geometry.Kind, layer.Name, layer.Kind)}
		}
		if r.ReplacementGeometry != nil {
			if err := r.ReplacementGeometry.Validate(); err != nil {
				return &ValidationError{Reason: fmt.Sprintf("record %d: replacement geometry: %v", i, err)}
			}
			if r.ReplacementGeometry.Kind != layer.Kind {
				return &ValidationError{Reason: fmt.Sprintf(
					"record %d: replacement geometry kind %q does not match layer %q kind %q",
					i, r.ReplacementGeometry.Kind, layer.Name, layer.Kind)}
			}
		}
		if r.Schema != "" {
			declared, err := schema.Parse(r.Schema)
			if err != nil {
				return &ValidationError{Reason: fmt.Sprintf("record %d: invalid annotation schema: %v", i, err)}
			}
			if err := declared.Validate(r.Properties); err != nil {
				return &ValidationError{Reason: fmt.Sprintf("record %d: %v", i, err)}
			}
		}
		if ls := layer.PropertySchema(); ls != nil && r.Type != TypeDelete {
			if err := ls.Validate(r.Properties); err != nil {
				return &ValidationError{Reason: fmt.Sprintf("record %d: %v", i, err)}
			}
		}
	}
	return nil
}

// EffectiveTimestamp returns the record ordering key, falling back to the
// batch timestamp.
func (d *Delta) EffectiveTimestamp(r Record) int64 {
	if r.Timestamp != 0 {
		return r.Timestamp
	}
	return d.Timestamp
}

func parseTimestamp(value any) (int64, error) {
	switch t := value.(type) {
	case float64:
		return int64(t), nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return 0, fmt.Errorf("invalid annotation timestamp %q", t)
		}
		return parsed.UnixMilli(), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("invalid annotation timestamp %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("invalid annotation timestamp type %T", value)
	}
}
