package model

import (
	"fmt"
	"maps"
	"slices"
)

// Row is a dense, engine-local identifier for a record.
// It is transient: rows are recycled after deletion and are not stable across
// export/import.
type Row uint32

// String returns a string representation of the Row.
func (r Row) String() string {
	return fmt.Sprintf("Row(%d)", uint32(r))
}

// Record represents a full data record.
type Record struct {
	ID       string
	Vector   []float64
	Metadata map[string]string
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{
		ID:       r.ID,
		Vector:   slices.Clone(r.Vector),
		Metadata: maps.Clone(r.Metadata),
	}
}

// Neighbor is a single ranked search result.
type Neighbor struct {
	ID       string
	Distance float64
	Metadata map[string]string
}

// Candidate is an index-level match addressed by row.
type Candidate struct {
	Row      Row
	Distance float64
}

// Less reports whether a ranks before b: ascending distance, ties broken by
// ascending id.
func Less(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// CompareNeighbors is a slices.SortFunc comparator implementing Less.
func CompareNeighbors(a, b Neighbor) int {
	switch {
	case a.Distance < b.Distance:
		return -1
	case a.Distance > b.Distance:
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
