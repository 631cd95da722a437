package delta

import (
	"encoding/json"
	"fmt"

	"github.com/rillworks/dataswale/geometry"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// ParseFeatureCollection builds a delta from a GeoJSON feature collection.
// Annotation fields are read from each feature's properties and stripped
// from the record properties. The override type, when non-empty, replaces
// each record's annotation type.
func ParseFeatureCollection(layer string, data []byte, override Type) (*Delta, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if fc.Type != "FeatureCollection" {
		return nil, &ValidationError{Reason: fmt.Sprintf("unexpected type %q", fc.Type)}
	}
	d := &Delta{Layer: layer}
	for i, f := range fc.Features {
		geo, err := geometry.UnmarshalGeoJSON(f.Geometry)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("feature %d: %v", i, err)}
		}
		rec, err := recordFromProperties(geo, f.Properties)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("feature %d: %v", i, err)}
		}
		if override != "" {
			rec.Type = override
		}
		d.Records = append(d.Records, rec)
	}
	return d, nil
}

func recordFromProperties(geo geometry.Geometry, properties map[string]any) (Record, error) {
	rec := Record{Geometry: geo, Properties: make(map[string]any)}
	var err error
	for key, value := range properties {
		switch key {
		case "annotation_type":
			s, ok := value.(string)
			if !ok {
				return rec, fmt.Errorf("annotation_type must be a string")
			}
			rec.Type, err = ParseType(s)
			if err != nil {
				return rec, err
			}
		case "annotation_join":
			s, ok := value.(string)
			if !ok {
				return rec, fmt.Errorf("annotation_join must be a string")
			}
			rec.Join, err = ParseJoin(s)
			if err != nil {
				return rec, err
			}
		case "annotation_property_match":
			m, ok := value.(map[string]any)
			if !ok {
				return rec, fmt.Errorf("annotation_property_match must be an object")
			}
			rec.PropertyMatch = m
		case "annotation_timestamp":
			rec.Timestamp, err = parseTimestamp(value)
			if err != nil {
				return rec, err
			}
		case "annotation_schema":
			s, ok := value.(string)
			if !ok {
				return rec, fmt.Errorf("annotation_schema must be a string")
			}
			rec.Schema = s
		case "annotation_geometry":
			geo, err := geometry.FromValue(value)
			if err != nil {
				return rec, fmt.Errorf("annotation_geometry: %w", err)
			}
			rec.ReplacementGeometry = &geo
		default:
			rec.Properties[key] = value
		}
	}
	if rec.Type == "" {
		rec.Type = TypeAnnotate
	}
	if rec.Join == "" {
		rec.Join = JoinGeometry
	}
	return rec, nil
}

type wireRecord struct {
	Geometry            json.RawMessage `json:"geometry"`
	Properties          map[string]any  `json:"properties"`
	Type                Type            `json:"type"`
	Join                Join            `json:"join"`
	PropertyMatch       map[string]any  `json:"property_match,omitempty"`
	Timestamp           int64           `json:"timestamp,omitempty"`
	Schema              string          `json:"schema,omitempty"`
	ReplacementGeometry json.RawMessage `json:"replacement_geometry,omitempty"`
}

// EncodeRecord serializes a record for queue persistence.
func EncodeRecord(r Record) ([]byte, error) {
	geo, err := r.Geometry.MarshalGeoJSON()
	if err != nil {
		return nil, err
	}
	w := wireRecord{
		Geometry:      geo,
		Properties:    r.Properties,
		Type:          r.Type,
		Join:          r.Join,
		PropertyMatch: r.PropertyMatch,
		Timestamp:     r.Timestamp,
		Schema:        r.Schema,
	}
	if r.ReplacementGeometry != nil {
		w.ReplacementGeometry, err = r.ReplacementGeometry.MarshalGeoJSON()
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(w)
}

// DecodeRecord deserializes a record previously encoded with EncodeRecord.
func DecodeRecord(data []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, err
	}
	geo, err := geometry.UnmarshalGeoJSON(w.Geometry)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Geometry:      geo,
		Properties:    w.Properties,
		Type:          w.Type,
		Join:          w.Join,
		PropertyMatch: w.PropertyMatch,
		Timestamp:     w.Timestamp,
		Schema:        w.Schema,
	}
	if len(w.ReplacementGeometry) > 0 {
		replacement, err := geometry.UnmarshalGeoJSON(w.ReplacementGeometry)
		if err != nil {
			return Record{}, err
		}
		rec.ReplacementGeometry = &replacement
	}
	if rec.Properties == nil {
		rec.Properties = make(map[string]any)
	}
	return rec, nil
}
