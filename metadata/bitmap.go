package metadata

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vecsim/model"
)

// Bitmap is a set of rows backed by a 32-bit Roaring Bitmap.
type Bitmap struct {
	rb *roaring.Bitmap
}

// NewBitmap creates a new empty bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{rb: roaring.New()}
}

// Add adds a row to the bitmap.
func (b *Bitmap) Add(row model.Row) {
	b.rb.Add(uint32(row))
}

// Remove removes a row from the bitmap.
func (b *Bitmap) Remove(row model.Row) {
	b.rb.Remove(uint32(row))
}

// Contains checks if a row is in the bitmap.
func (b *Bitmap) Contains(row model.Row) bool {
	return b.rb.Contains(uint32(row))
}

// IsEmpty returns true if the bitmap is empty.
func (b *Bitmap) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Cardinality returns the number of rows in the bitmap.
func (b *Bitmap) Cardinality() uint64 {
	return b.rb.GetCardinality()
}

// Clone returns a deep copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{rb: b.rb.Clone()}
}

// Rows returns an iterator over the rows in ascending order.
func (b *Bitmap) Rows() iter.Seq[model.Row] {
	return func(yield func(model.Row) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(model.Row(it.Next())) {
				return
			}
		}
	}
}

// And computes the intersection in place.
func (b *Bitmap) And(other *Bitmap) {
	b.rb.And(other.rb)
}

// Or computes the union in place.
func (b *Bitmap) Or(other *Bitmap) {
	b.rb.Or(other.rb)
}

// AndNot removes every row of other in place.
func (b *Bitmap) AndNot(other *Bitmap) {
	b.rb.AndNot(other.rb)
}

// GetSizeInBytes returns the size of the bitmap in bytes.
func (b *Bitmap) GetSizeInBytes() uint64 {
	return b.rb.GetSizeInBytes()
}
