package ref

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// RegionSelection is the opaque, storage-owned coordinate set described in
// spec.md §3/§9: the set of matching element offsets within a dataset,
// produced by a Container's dataset-region selector and carried by a
// DatasetRegion reference. Offsets are the dataset's flattened
// row-major element indices.
//
// It is backed by a Roaring bitmap (github.com/RoaringBitmap/roaring), the
// same bitmap representation the rest of the retrieved example pack reaches
// for when it needs compressed sorted-integer sets (it is already pulled in
// transitively through bleve's scorch index).
type RegionSelection struct {
	bitmap *roaring.Bitmap
}

// NewRegionSelection builds a selection from a set of element offsets.
func NewRegionSelection(offsets ...uint32) *RegionSelection {
	rs := &RegionSelection{bitmap: roaring.New()}
	rs.bitmap.AddMany(offsets)
	return rs
}

// Len reports the number of selected elements.
func (r *RegionSelection) Len() int {
	if r == nil || r.bitmap == nil {
		return 0
	}
	return int(r.bitmap.GetCardinality())
}

// IsEmpty reports whether the selection has zero elements. A dataset
// data-element apply whose selection IsEmpty does not contribute to a view
// (spec.md §4.2).
func (r *RegionSelection) IsEmpty() bool {
	return r.Len() == 0
}

// Offsets returns the selected element offsets in ascending order.
func (r *RegionSelection) Offsets() []uint32 {
	if r == nil || r.bitmap == nil {
		return nil
	}
	return r.bitmap.ToArray()
}

// Intersect implements the storage layer's required intersect(a,b) -> c
// primitive (spec.md §9), used by AND-combination in the view set algebra.
// The result is a new selection; the receiver and other are untouched.
func (r *RegionSelection) Intersect(other *RegionSelection) *RegionSelection {
	if r == nil || other == nil {
		return NewRegionSelection()
	}
	out := r.bitmap.Clone()
	out.And(other.bitmap)
	return &RegionSelection{bitmap: out}
}

// Union returns the set union of r and other. view.Combine does not call
// it: OR-combination concatenates queues without de-duplicating region
// references that share an identity key.
func (r *RegionSelection) Union(other *RegionSelection) *RegionSelection {
	if r == nil {
		if other == nil {
			return NewRegionSelection()
		}
		return &RegionSelection{bitmap: other.bitmap.Clone()}
	}
	out := r.bitmap.Clone()
	if other != nil {
		out.Or(other.bitmap)
	}
	return &RegionSelection{bitmap: out}
}

// MarshalBinary serializes the selection into the storage layer's canonical
// form (here, Roaring's own compact binary encoding).
func (r *RegionSelection) MarshalBinary() ([]byte, error) {
	if r == nil || r.bitmap == nil {
		return roaring.New().ToBytes()
	}
	return r.bitmap.ToBytes()
}

// UnmarshalRegionSelection is the inverse of MarshalBinary.
func UnmarshalRegionSelection(b []byte) (*RegionSelection, error) {
	bm := roaring.New()
	if err := bm.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &RegionSelection{bitmap: bm}, nil
}
