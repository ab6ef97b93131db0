package metadata

import "github.com/hupe1980/vecsim/model"

// Index is an inverted index from (key, value) to the rows carrying it.
//
// Index is not safe for concurrent mutation; readers may share it while no
// writer is active.
type Index struct {
	postings map[string]map[string]*Bitmap
}

// NewIndex creates an empty inverted index.
func NewIndex() *Index {
	return &Index{postings: make(map[string]map[string]*Bitmap)}
}

// Add indexes md for row.
func (ix *Index) Add(row model.Row, md map[string]string) {
	for k, v := range md {
		values, ok := ix.postings[k]
		if !ok {
			values = make(map[string]*Bitmap)
			ix.postings[k] = values
		}
		bm, ok := values[v]
		if !ok {
			bm = NewBitmap()
			values[v] = bm
		}
		bm.Add(row)
	}
}

// Remove un-indexes md for row. md must be the metadata row was added with.
func (ix *Index) Remove(row model.Row, md map[string]string) {
	for k, v := range md {
		values, ok := ix.postings[k]
		if !ok {
			continue
		}
		bm, ok := values[v]
		if !ok {
			continue
		}
		bm.Remove(row)
		if bm.IsEmpty() {
			delete(values, v)
		}
		if len(values) == 0 {
			delete(ix.postings, k)
		}
	}
}

// Keys returns the number of distinct keys.
func (ix *Index) Keys() int {
	return len(ix.postings)
}

// Evaluate returns the exact set of rows matching fs.
// It returns nil when fs is empty, meaning "all rows".
func (ix *Index) Evaluate(fs *FilterSet) *Bitmap {
	if fs.IsEmpty() {
		return nil
	}
	var result *Bitmap
	for _, f := range fs.Filters {
		bm := ix.evaluate(f)
		if result == nil {
			result = bm
		} else {
			result.And(bm)
		}
		if result.IsEmpty() {
			break
		}
	}
	return result
}

func (ix *Index) evaluate(f Filter) *Bitmap {
	out := NewBitmap()
	values := ix.postings[f.Key]
	switch f.Operator {
	case OpEqual:
		if bm, ok := values[f.Value]; ok {
			out.Or(bm)
		}
	case OpIn:
		for _, v := range f.Values {
			if bm, ok := values[v]; ok {
				out.Or(bm)
			}
		}
	default:
		for v, bm := range values {
			if f.matchValue(v) {
				out.Or(bm)
			}
		}
	}
	return out
}

// Values returns the distinct values indexed for key, unordered.
func (ix *Index) Values(key string) []string {
	values := ix.postings[key]
	out := make([]string, 0, len(values))
	for v := range values {
		out = append(out, v)
	}
	return out
}

// Count returns the number of rows carrying key=value.
func (ix *Index) Count(key, value string) uint64 {
	if bm, ok := ix.postings[key][value]; ok {
		return bm.Cardinality()
	}
	return 0
}
