package codec

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/object"
)

type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{bufio.NewReader(r)}
}

func (e *Decoder) Decode() (any, error) {
	kind, err := e.r.ReadByte()
	if err != nil {
		return nil, err
	}
	err = e.r.UnreadByte()
	if err != nil {
		return nil, err
	}
	switch kind {
	case kindVersion:
		return e.DecodeVersion()
	case kindLayerRoot:
		return e.DecodeLayerRoot()
	case kindEntry:
		return e.DecodeEntry()
	case kindRecord:
		return e.DecodeRecord()
	case kindGeometry:
		return e.DecodeGeometry()
	case kindHash:
		return e.DecodeHash()
	case kindBytes:
		return e.DecodeBytes()
	case kindString:
		return e.DecodeString()
	case kindInt64:
		return e.DecodeInt64()
	case kindFloat64:
		return e.DecodeFloat64()
	case kindBool:
		return e.DecodeBool()
	case kindList:
		return e.DecodeList()
	case kindMap:
		return e.DecodeMap()
	case kindNull:
		_, err = e.r.ReadByte()
		return nil, err
	default:
		return nil, fmt.Errorf("invalid codec kind %x", kind)
	}
}

func (e *Decoder) DecodeVersion() (*object.Version, error) {
	err := e.expect(kindVersion)
	if err != nil {
		return nil, err
	}
	layers, err := e.DecodeMap()
	if err != nil {
		return nil, err
	}
	version := object.NewVersion()
	for k, v := range layers {
		hash, ok := v.(object.Hash)
		if !ok {
			return nil, fmt.Errorf("invalid layer hash for %q", k)
		}
		version.Layers[k] = hash
	}
	return version, nil
}

func (e *Decoder) DecodeLayerRoot() (*object.LayerRoot, error) {
	err := e.expect(kindLayerRoot)
	if err != nil {
		return nil, err
	}
	records, err := e.DecodeMap()
	if err != nil {
		return nil, err
	}
	root := object.NewLayerRoot()
	for k, v := range records {
		entry, ok := v.(object.RecordEntry)
		if !ok {
			return nil, fmt.Errorf("invalid record entry for %q", k)
		}
		root.Records[k] = entry
	}
	return root, nil
}

func (e *Decoder) DecodeEntry() (object.RecordEntry, error) {
	err := e.expect(kindEntry)
	if err != nil {
		return object.RecordEntry{}, err
	}
	hash, err := e.DecodeHash()
	if err != nil {
		return object.RecordEntry{}, err
	}
	var bounds [4]float64
	for i := range bounds {
		bits, err := e.readUint64()
		if err != nil {
			return object.RecordEntry{}, err
		}
		bounds[i] = math.Float64frombits(bits)
	}
	return object.RecordEntry{
		Hash: hash,
		Bounds: geometry.Bounds{
			MinX: bounds[0],
			MinY: bounds[1],
			MaxX: bounds[2],
			MaxY: bounds[3],
		},
	}, nil
}

func (e *Decoder) DecodeRecord() (object.Record, error) {
	err := e.expect(kindRecord)
	if err != nil {
		return object.Record{}, err
	}
	g, err := e.DecodeGeometry()
	if err != nil {
		return object.Record{}, err
	}
	properties, err := e.DecodeMap()
	if err != nil {
		return object.Record{}, err
	}
	return object.Record{Geometry: g, Properties: properties}, nil
}

func (e *Decoder) DecodeGeometry() (geometry.Geometry, error) {
	err := e.expect(kindGeometry)
	if err != nil {
		return geometry.Geometry{}, err
	}
	kind, err := e.DecodeString()
	if err != nil {
		return geometry.Geometry{}, err
	}
	pathCount, err := e.readUint64()
	if err != nil {
		return geometry.Geometry{}, err
	}
	paths := make([][]geometry.Position, pathCount)
	for i := range paths {
		size, err := e.readUint64()
		if err != nil {
			return geometry.Geometry{}, err
		}
		path := make([]geometry.Position, size)
		for j := range path {
			x, err := e.readUint64()
			if err != nil {
				return geometry.Geometry{}, err
			}
			y, err := e.readUint64()
			if err != nil {
				return geometry.Geometry{}, err
			}
			path[j] = geometry.Position{X: math.Float64frombits(x), Y: math.Float64frombits(y)}
		}
		paths[i] = path
	}
	return geometry.Geometry{Kind: geometry.Kind(kind), Paths: paths}, nil
}

func (e *Decoder) DecodeHash() (object.Hash, error) {
	err := e.expect(kindHash)
	if err != nil {
		return nil, err
	}
	value, err := e.readSized()
	if err != nil {
		return nil, err
	}
	return object.Hash(value), nil
}

func (e *Decoder) DecodeBytes() ([]byte, error) {
	err := e.expect(kindBytes)
	if err != nil {
		return nil, err
	}
	return e.readSized()
}

func (e *Decoder) DecodeString() (string, error) {
	err := e.expect(kindString)
	if err != nil {
		return "", err
	}
	value, err := e.readSized()
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (e *Decoder) DecodeInt64() (int64, error) {
	err := e.expect(kindInt64)
	if err != nil {
		return 0, err
	}
	value, err := e.readUint64()
	if err != nil {
		return 0, err
	}
	return int64(value), nil
}

func (e *Decoder) DecodeFloat64() (float64, error) {
	err := e.expect(kindFloat64)
	if err != nil {
		return 0, err
	}
	value, err := e.readUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(value), nil
}

func (e *Decoder) DecodeBool() (bool, error) {
	err := e.expect(kindBool)
	if err != nil {
		return false, err
	}
	value, err := e.r.ReadByte()
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

func (e *Decoder) DecodeList() ([]any, error) {
	err := e.expect(kindList)
	if err != nil {
		return nil, err
	}
	size, err := e.readUint64()
	if err != nil {
		return nil, err
	}
	value := make([]any, size)
	for i := 0; i < int(size); i++ {
		v, err := e.Decode()
		if err != nil {
			return nil, err
		}
		value[i] = v
	}
	return value, nil
}

func (e *Decoder) DecodeMap() (map[string]any, error) {
	err := e.expect(kindMap)
	if err != nil {
		return nil, err
	}
	size, err := e.readUint64()
	if err != nil {
		return nil, err
	}
	value := make(map[string]any, size)
	for i := 0; i < int(size); i++ {
		k, err := e.DecodeString()
		if err != nil {
			return nil, err
		}
		v, err := e.Decode()
		if err != nil {
			return nil, err
		}
		value[k] = v
	}
	return value, nil
}

func (e *Decoder) expect(kind byte) error {
	actual, err := e.r.ReadByte()
	if err != nil {
		return err
	}
	if actual != kind {
		return fmt.Errorf("unexpected codec kind %x", actual)
	}
	return nil
}

func (e *Decoder) readSized() ([]byte, error) {
	size, err := e.readUint64()
	if err != nil {
		return nil, err
	}
	value := make([]byte, size)
	_, err = io.ReadFull(e.r, value)
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (e *Decoder) readUint64() (uint64, error) {
	result := uint64(0)
	for i := 0; i < 8; i++ {
		b, err := e.r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b) << (i * 8)
	}
	return result, nil
}
