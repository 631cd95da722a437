// Package object defines the immutable content-addressed objects that make
// up the state of a swale: records, layer roots, and versions.
package object

import (
	"bytes"
	"encoding/hex"

	"github.com/rillworks/dataswale/geometry"

	"golang.org/x/crypto/sha3"
)

// Hash is the unique hash of an object.
type Hash []byte

// Sum returns the hash of the given data.
func Sum(data []byte) Hash {
	hash := sha3.Sum256(data)
	return Hash(hash[:])
}

// Equal returns true if the given hash is equal to this hash.
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h, other)
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h)
}

// Record is a single spatial feature: a geometry plus a property mapping.
type Record struct {
	Geometry   geometry.Geometry
	Properties map[string]any
}

// NewRecord returns a record with the given properties. A nil mapping is
// replaced with an empty one.
func NewRecord(g geometry.Geometry, properties map[string]any) Record {
	if properties == nil {
		properties = make(map[string]any)
	}
	return Record{Geometry: g, Properties: properties}
}

// RecordEntry is a layer root entry pointing at a stored record.
//
// The bounding box is duplicated here so spatial scans can prefilter
// without loading the record object.
type RecordEntry struct {
	Hash   Hash
	Bounds geometry.Bounds
}

// LayerRoot is the root object for one layer instance, mapping stable
// record identities to record entries.
type LayerRoot struct {
	Records map[string]RecordEntry
}

// NewLayerRoot returns an empty layer root.
func NewLayerRoot() *LayerRoot {
	return &LayerRoot{Records: make(map[string]RecordEntry)}
}

// Clone returns a copy of the layer root that can be mutated without
// affecting the original.
func (r *LayerRoot) Clone() *LayerRoot {
	records := make(map[string]RecordEntry, len(r.Records))
	for k, v := range r.Records {
		records[k] = v
	}
	return &LayerRoot{Records: records}
}

// Version captures the state of every layer at a point in time, mapping
// layer names to layer root hashes.
type Version struct {
	Layers map[string]Hash
}

// NewVersion returns an empty version.
func NewVersion() *Version {
	return &Version{Layers: make(map[string]Hash)}
}
