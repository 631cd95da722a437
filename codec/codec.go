// Package codec implements the deterministic binary encoding used for all
// stored objects. Map keys are written in sorted order so that encoding the
// same value always produces the same bytes, which is what makes object
// hashes and derived record identities stable.
package codec

const (
	kindString  = byte(1)
	kindBytes   = byte(2)
	kindBool    = byte(3)
	kindInt64   = byte(4)
	kindFloat64 = byte(5)
	kindMap     = byte(6)
	kindList    = byte(7)
	kindHash    = byte(8)
	kindNull    = byte(9)

	kindVersion   = byte(100)
	kindLayerRoot = byte(101)
	kindEntry     = byte(102)
	kindRecord    = byte(103)
	kindGeometry  = byte(104)
)
