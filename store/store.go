// Package store holds fixed-dimension vector records keyed by opaque string ids.
//
// Every record is assigned a dense row number that the graph index, the
// metadata bitmaps and the flat scanner use to address it. Rows of deleted
// records are recycled. Every mutation is appended to a pending queue that the
// index drains to stay in sync.
//
// A Store is not safe for concurrent mutation. The engine serializes writers
// and lets readers share the store while no writer is active.
package store

import (
	"iter"
	"maps"
	"math"
	"slices"

	"github.com/hupe1980/vecsim/metadata"
	"github.com/hupe1980/vecsim/model"
)

// Op is the kind of a pending mutation.
type Op uint8

const (
	// OpUpsert means the row was inserted or its vector/metadata replaced.
	OpUpsert Op = iota + 1
	// OpDelete means the row was removed.
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpUpsert:
		return "upsert"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutation is a store change the index has not applied yet.
type Mutation struct {
	Op  Op
	Row model.Row
	ID  string
}

type slot struct {
	id   string
	vec  []float64
	md   map[string]string
	live bool
}

// Store is an in-memory VectorRecord store.
type Store struct {
	dim     int
	ids     map[string]model.Row
	slots   []slot
	free    []model.Row
	live    int
	meta    *metadata.Index
	pending []Mutation
}

// New creates a store. A dim of 0 lets the first Put fix the dimension.
func New(dim int) *Store {
	return &Store{
		dim:  max(dim, 0),
		ids:  make(map[string]model.Row),
		meta: metadata.NewIndex(),
	}
}

// Dimension returns the fixed vector dimension, or 0 if not yet established.
func (s *Store) Dimension() int { return s.dim }

// Len returns the number of live records.
func (s *Store) Len() int { return s.live }

// Capacity returns the number of allocated rows, live or free.
func (s *Store) Capacity() int { return len(s.slots) }

// Put inserts or replaces the record for id.
//
// The vector and metadata are copied; empty metadata is stored as nil. It fails with model.ErrDimensionMismatch
// when len(vec) differs from the store dimension, and with
// model.ErrInvalidArgument for an empty id, an empty vector or non-finite values.
func (s *Store) Put(id string, vec []float64, md map[string]string) (model.Row, error) {
	if id == "" {
		return 0, model.InvalidArgument("id must not be empty")
	}
	if len(vec) == 0 {
		return 0, model.InvalidArgument("vector for %q must not be empty", id)
	}
	if s.dim != 0 && len(vec) != s.dim {
		return 0, model.NewDimensionMismatch(s.dim, len(vec))
	}
	for i, x := range vec {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, model.InvalidArgument("vector for %q has non-finite value at %d", id, i)
		}
	}
	if s.dim == 0 {
		s.dim = len(vec)
	}

	if len(md) == 0 {
		md = nil
	}
	rec := slot{id: id, vec: slices.Clone(vec), md: maps.Clone(md), live: true}

	row, exists := s.ids[id]
	if exists {
		s.meta.Remove(row, s.slots[row].md)
	} else {
		row = s.allocRow()
		s.ids[id] = row
		s.live++
	}
	s.slots[row] = rec
	s.meta.Add(row, rec.md)
	s.pending = append(s.pending, Mutation{Op: OpUpsert, Row: row, ID: id})
	return row, nil
}

func (s *Store) allocRow() model.Row {
	if n := len(s.free); n > 0 {
		row := s.free[n-1]
		s.free = s.free[:n-1]
		return row
	}
	s.slots = append(s.slots, slot{})
	return model.Row(len(s.slots) - 1)
}

// Get returns a copy of the record for id.
func (s *Store) Get(id string) (model.Record, bool) {
	row, ok := s.ids[id]
	if !ok {
		return model.Record{}, false
	}
	sl := s.slots[row]
	return model.Record{ID: sl.id, Vector: slices.Clone(sl.vec), Metadata: maps.Clone(sl.md)}, true
}

// Lookup returns the row of id.
func (s *Store) Lookup(id string) (model.Row, bool) {
	row, ok := s.ids[id]
	return row, ok
}

// Delete removes id and reports whether it existed.
func (s *Store) Delete(id string) bool {
	row, ok := s.ids[id]
	if !ok {
		return false
	}
	s.meta.Remove(row, s.slots[row].md)
	s.slots[row] = slot{}
	delete(s.ids, id)
	s.free = append(s.free, row)
	s.live--
	s.pending = append(s.pending, Mutation{Op: OpDelete, Row: row, ID: id})
	return true
}

// AllIDs returns the ids in ascending order.
//
// The sequence is lazy: the id set is captured when iteration starts, so it can
// be ranged over repeatedly and always reflects the store at that moment.
func (s *Store) AllIDs() iter.Seq[string] {
	return func(yield func(string) bool) {
		ids := slices.Sorted(maps.Keys(s.ids))
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// Records returns copies of all records in ascending id order.
func (s *Store) Records() iter.Seq[model.Record] {
	return func(yield func(model.Record) bool) {
		for id := range s.AllIDs() {
			rec, _ := s.Get(id)
			if !yield(rec) {
				return
			}
		}
	}
}

// Rows iterates over live rows and their vectors in row order.
// The vectors are shared with the store and must not be modified.
func (s *Store) Rows() iter.Seq2[model.Row, []float64] {
	return func(yield func(model.Row, []float64) bool) {
		for i := range s.slots {
			if !s.slots[i].live {
				continue
			}
			if !yield(model.Row(i), s.slots[i].vec) {
				return
			}
		}
	}
}

// VectorAt returns the vector stored at row. The slice is shared.
func (s *Store) VectorAt(row model.Row) ([]float64, bool) {
	if int(row) >= len(s.slots) || !s.slots[row].live {
		return nil, false
	}
	return s.slots[row].vec, true
}

// IDAt returns the id stored at row.
func (s *Store) IDAt(row model.Row) (string, bool) {
	if int(row) >= len(s.slots) || !s.slots[row].live {
		return "", false
	}
	return s.slots[row].id, true
}

// MetadataAt returns the metadata stored at row. The map is shared.
func (s *Store) MetadataAt(row model.Row) map[string]string {
	if int(row) >= len(s.slots) {
		return nil
	}
	return s.slots[row].md
}

// Metadata returns the inverted metadata index.
func (s *Store) Metadata() *metadata.Index { return s.meta }

// Pending returns the number of mutations not yet drained.
func (s *Store) Pending() int { return len(s.pending) }

// Drain returns the pending mutations in order and clears the queue.
func (s *Store) Drain() []Mutation {
	out := s.pending
	s.pending = nil
	return out
}

// Discard clears the pending queue without returning it. Used after a full
// rebuild has already absorbed every mutation.
func (s *Store) Discard() {
	s.pending = nil
}
