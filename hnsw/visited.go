package hnsw

import "github.com/hupe1980/vecsim/model"

// visitedSet tracks visited rows using generation tokens for O(1) reset.
type visitedSet struct {
	marks []uint32
	token uint32
}

func newVisitedSet(capacity int) *visitedSet {
	return &visitedSet{marks: make([]uint32, capacity), token: 1}
}

func (v *visitedSet) Visit(row model.Row) {
	v.ensureCapacity(int(row))
	v.marks[row] = v.token
}

func (v *visitedSet) Visited(row model.Row) bool {
	if int(row) >= len(v.marks) {
		return false
	}
	return v.marks[row] == v.token
}

// Reset prepares the set for a new traversal.
func (v *visitedSet) Reset() {
	v.token++
	if v.token == 0 {
		clear(v.marks)
		v.token = 1
	}
}

func (v *visitedSet) ensureCapacity(idx int) {
	if idx < len(v.marks) {
		return
	}
	newCap := max(len(v.marks)*2, idx+1)
	grown := make([]uint32, newCap)
	copy(grown, v.marks)
	v.marks = grown
}
