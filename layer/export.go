package layer

import (
	"context"
	"encoding/json"

	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/object"
)

type exportFeature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type exportCollection struct {
	Type     string          `json:"type"`
	Features []exportFeature `json:"features"`
}

// Export serializes the layer as a GeoJSON feature collection in identity
// order. An optional bounds filter limits the output.
func Export(ctx context.Context, s *Store, filter *geometry.Bounds) ([]byte, error) {
	fc := exportCollection{Type: "FeatureCollection", Features: []exportFeature{}}
	err := s.ForEach(ctx, filter, func(id string, record object.Record) error {
		geo, err := record.Geometry.MarshalGeoJSON()
		if err != nil {
			return err
		}
		properties := record.Properties
		if properties == nil {
			properties = map[string]any{}
		}
		fc.Features = append(fc.Features, exportFeature{
			Type:       "Feature",
			ID:         id,
			Geometry:   geo,
			Properties: properties,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(fc)
}
