package codec

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/object"
)

type Encoder struct {
	w *bufio.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{bufio.NewWriter(w)}
}

func (e *Encoder) Flush() error {
	return e.w.Flush()
}

func (e *Encoder) Encode(value any) error {
	switch t := value.(type) {
	case *object.Version:
		return e.EncodeVersion(t)
	case *object.LayerRoot:
		return e.EncodeLayerRoot(t)
	case object.RecordEntry:
		return e.EncodeEntry(t)
	case object.Record:
		return e.EncodeRecord(t)
	case geometry.Geometry:
		return e.EncodeGeometry(t)
	case object.Hash:
		return e.EncodeHash(t)
	case []byte:
		return e.EncodeBytes(t)
	case string:
		return e.EncodeString(t)
	case int64:
		return e.EncodeInt64(t)
	case float64:
		return e.EncodeFloat64(t)
	case bool:
		return e.EncodeBool(t)
	case []any:
		return e.EncodeList(t)
	case map[string]any:
		return e.EncodeMap(t)
	case nil:
		return e.w.WriteByte(kindNull)
	default:
		return fmt.Errorf("no encoder for %T", value)
	}
}

func (e *Encoder) EncodeVersion(value *object.Version) error {
	err := e.w.WriteByte(kindVersion)
	if err != nil {
		return err
	}
	layers := make(map[string]any, len(value.Layers))
	for k, v := range value.Layers {
		layers[k] = v
	}
	return e.EncodeMap(layers)
}

func (e *Encoder) EncodeLayerRoot(value *object.LayerRoot) error {
	err := e.w.WriteByte(kindLayerRoot)
	if err != nil {
		return err
	}
	records := make(map[string]any, len(value.Records))
	for k, v := range value.Records {
		records[k] = v
	}
	return e.EncodeMap(records)
}

func (e *Encoder) EncodeEntry(value object.RecordEntry) error {
	err := e.w.WriteByte(kindEntry)
	if err != nil {
		return err
	}
	err = e.EncodeHash(value.Hash)
	if err != nil {
		return err
	}
	bounds := [4]float64{value.Bounds.MinX, value.Bounds.MinY, value.Bounds.MaxX, value.Bounds.MaxY}
	for _, f := range bounds {
		err = e.writeUint64(math.Float64bits(f))
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) EncodeRecord(value object.Record) error {
	err := e.w.WriteByte(kindRecord)
	if err != nil {
		return err
	}
	err = e.EncodeGeometry(value.Geometry)
	if err != nil {
		return err
	}
	return e.EncodeMap(value.Properties)
}

func (e *Encoder) EncodeGeometry(value geometry.Geometry) error {
	err := e.w.WriteByte(kindGeometry)
	if err != nil {
		return err
	}
	err = e.EncodeString(string(value.Kind))
	if err != nil {
		return err
	}
	err = e.writeUint64(uint64(len(value.Paths)))
	if err != nil {
		return err
	}
	for _, path := range value.Paths {
		err = e.writeUint64(uint64(len(path)))
		if err != nil {
			return err
		}
		for _, p := range path {
			err = e.writeUint64(math.Float64bits(p.X))
			if err != nil {
				return err
			}
			err = e.writeUint64(math.Float64bits(p.Y))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Encoder) EncodeHash(value object.Hash) error {
	err := e.w.WriteByte(kindHash)
	if err != nil {
		return err
	}
	err = e.writeUint64(uint64(len(value)))
	if err != nil {
		return err
	}
	_, err = e.w.Write(value)
	return err
}

func (e *Encoder) EncodeBytes(value []byte) error {
	err := e.w.WriteByte(kindBytes)
	if err != nil {
		return err
	}
	err = e.writeUint64(uint64(len(value)))
	if err != nil {
		return err
	}
	_, err = e.w.Write(value)
	return err
}

func (e *Encoder) EncodeString(value string) error {
	err := e.w.WriteByte(kindString)
	if err != nil {
		return err
	}
	err = e.writeUint64(uint64(len(value)))
	if err != nil {
		return err
	}
	_, err = e.w.Write([]byte(value))
	return err
}

func (e *Encoder) EncodeInt64(value int64) error {
	err := e.w.WriteByte(kindInt64)
	if err != nil {
		return err
	}
	return e.writeUint64(uint64(value))
}

func (e *Encoder) EncodeFloat64(value float64) error {
	err := e.w.WriteByte(kindFloat64)
	if err != nil {
		return err
	}
	return e.writeUint64(math.Float64bits(value))
}

func (e *Encoder) EncodeBool(value bool) error {
	err := e.w.WriteByte(kindBool)
	if err != nil {
		return err
	}
	if value {
		return e.w.WriteByte(1)
	}
	return e.w.WriteByte(0)
}

func (e *Encoder) EncodeList(value []any) error {
	err := e.w.WriteByte(kindList)
	if err != nil {
		return err
	}
	err = e.writeUint64(uint64(len(value)))
	if err != nil {
		return err
	}
	for _, v := range value {
		err := e.Encode(v)
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) EncodeMap(value map[string]any) error {
	err := e.w.WriteByte(kindMap)
	if err != nil {
		return err
	}
	err = e.writeUint64(uint64(len(value)))
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		err := e.EncodeString(k)
		if err != nil {
			return err
		}
		err = e.Encode(value[k])
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeUint64(value uint64) error {
	for i := 0; i < 8; i++ {
		err := e.w.WriteByte(byte(value >> (i * 8)))
		if err != nil {
			return err
		}
	}
	return nil
}
