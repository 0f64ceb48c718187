// Package cell encodes geographic points into 64-bit locality-preserving keys.
//
// Keys are S2 cell ids computed with github.com/golang/geo/s2. The sphere is
// projected onto the six faces of an enclosing cube, each face is subdivided
// as a quadtree down to MaxLevel and the leaves are numbered along a Hilbert
// curve, so keys that are numerically close are usually close on the ground.
// A key packs the face id in the top 3 bits, two bits of curve position per
// level, and a trailing sentinel bit marking the cell level:
//
//	fff pp pp ... pp 1 00 ... 00
//
// Ordering first partitions by face and then by curve position within a face.
// Two points on either side of a face edge can therefore receive keys that
// are far apart.
package cell

import (
	"fmt"

	"github.com/golang/geo/s2"
)

const (
	// MaxLevel is the depth of the leaf cells (about 1cm on the ground).
	MaxLevel = s2.MaxLevel
	// NumFaces is the number of cube faces.
	NumFaces = 6
)

// ID is a cell key. Leaf keys, the ones assigned to points, are always odd.
type ID uint64

// FromFace returns the level 0 cell of a cube face.
func FromFace(face int) ID {
	return ID(s2.CellIDFromFace(face))
}

func (id ID) cellID() s2.CellID {
	return s2.CellID(id)
}

// Face returns the cube face the cell belongs to.
func (id ID) Face() int {
	return id.cellID().Face()
}

// Level returns the subdivision depth of the cell, MaxLevel for leaves.
func (id ID) Level() int {
	return id.cellID().Level()
}

// IsValid reports whether id names a cell of some face at some level.
func (id ID) IsValid() bool {
	return id.cellID().IsValid()
}

// IsLeaf reports whether id is a leaf cell key.
func (id ID) IsLeaf() bool {
	return id.cellID().IsLeaf()
}

// Parent returns the ancestor of id at the given level.
func (id ID) Parent(level int) ID {
	return ID(id.cellID().Parent(level))
}

// Children returns the four cells one level down, in curve order.
func (id ID) Children() [4]ID {
	var out [4]ID
	for i, c := range id.cellID().Children() {
		out[i] = ID(c)
	}
	return out
}

// RangeMin returns the smallest leaf key contained in the cell.
func (id ID) RangeMin() ID {
	return ID(id.cellID().RangeMin())
}

// RangeMax returns the largest leaf key contained in the cell.
func (id ID) RangeMax() ID {
	return ID(id.cellID().RangeMax())
}

// Contains reports whether other lies inside the cell.
func (id ID) Contains(other ID) bool {
	return id.cellID().Contains(other.cellID())
}

// Next returns the following cell at the same level along the curve.
// The curve continues from one face to the next.
func (id ID) Next() ID {
	return ID(id.cellID().Next())
}

// Prev returns the preceding cell at the same level along the curve.
func (id ID) Prev() ID {
	return ID(id.cellID().Prev())
}

// String returns the compact hex token of the key, trailing zeros removed.
func (id ID) String() string {
	return id.cellID().ToToken()
}

// LatLng returns the centre of the cell.
func (id ID) LatLng() LatLng {
	ll := id.cellID().LatLng()
	return LatLng{Lat: ll.Lat.Degrees(), Lon: ll.Lng.Degrees()}
}

// Range is an inclusive interval of keys.
type Range struct {
	Min ID
	Max ID
}

// RangeOf returns the key range spanned by a cell.
func RangeOf(id ID) Range {
	return Range{Min: id.RangeMin(), Max: id.RangeMax()}
}

// Contains reports whether id falls inside r.
func (r Range) Contains(id ID) bool {
	return id >= r.Min && id <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Min, r.Max)
}
