// Package identity derives stable record identities.
//
// When a layer does not configure an identity field, the identity is a hash
// of the layer name and the record geometry. Two distinct logical features
// with identical geometry therefore collide; this is an accepted trade-off,
// and callers that need guaranteed uniqueness must configure an explicit
// identity field.
package identity

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rillworks/dataswale/codec"
	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/object"

	"golang.org/x/crypto/sha3"
)

var ErrMissingIdentityField = errors.New("missing identity field")

// CoordinatePrecision is the number of decimal places coordinates are
// rounded to before hashing, so that re-ingested geometries derive the
// same identity despite float formatting noise.
const CoordinatePrecision = 7

// Assign returns the stable identity for the given record.
func Assign(layer *config.Layer, record object.Record) (string, error) {
	if layer.IdentityField == "" {
		return Derive(layer.Name, record.Geometry), nil
	}
	value, ok := record.Properties[layer.IdentityField]
	if !ok || value == nil {
		return "", fmt.Errorf("%w: %q", ErrMissingIdentityField, layer.IdentityField)
	}
	return stringify(value), nil
}

// Derive returns the deterministic hash identity for a geometry within the
// named layer. Bit-identical input always yields the same identity.
func Derive(layerName string, g geometry.Geometry) string {
	hash := sha3.New256()
	enc := codec.NewEncoder(hash)
	// Encode failures are impossible for this shape; the hash of whatever
	// was written would still be deterministic.
	_ = enc.Encode(map[string]any{
		"layer":    layerName,
		"geometry": g.Rounded(CoordinatePrecision),
	})
	_ = enc.Flush()
	return object.Hash(hash.Sum(nil)).String()
}

func stringify(value any) string {
	switch t := value.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
