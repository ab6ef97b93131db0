package hnsw

import "github.com/hupe1980/vecsim/model"

// item is a row with its distance to the current query.
type item struct {
	row  model.Row
	dist float64
}

// priorityQueue is a binary heap of items. Ties on distance are broken by row
// so that traversal order is deterministic.
type priorityQueue struct {
	isMaxHeap bool
	items     []item
}

func newMinQueue(capacity int) *priorityQueue {
	return &priorityQueue{items: make([]item, 0, capacity)}
}

func newMaxQueue(capacity int) *priorityQueue {
	return &priorityQueue{isMaxHeap: true, items: make([]item, 0, capacity)}
}

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Reset() { pq.items = pq.items[:0] }

// Top returns the root without removing it.
func (pq *priorityQueue) Top() (item, bool) {
	if len(pq.items) == 0 {
		return item{}, false
	}
	return pq.items[0], true
}

// Push inserts it while maintaining the heap invariant.
func (pq *priorityQueue) Push(it item) {
	pq.items = append(pq.items, it)
	pq.siftUp(len(pq.items) - 1)
}

// Pop removes and returns the root.
func (pq *priorityQueue) Pop() (item, bool) {
	n := len(pq.items)
	if n == 0 {
		return item{}, false
	}
	root := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]
	if len(pq.items) > 0 {
		pq.siftDown(0)
	}
	return root, true
}

// Ascending drains the queue and returns its items nearest first.
func (pq *priorityQueue) Ascending() []item {
	out := make([]item, len(pq.items))
	if pq.isMaxHeap {
		for i := len(out) - 1; i >= 0; i-- {
			out[i], _ = pq.Pop()
		}
	} else {
		for i := range out {
			out[i], _ = pq.Pop()
		}
	}
	return out
}

func (pq *priorityQueue) less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if pq.isMaxHeap {
		if a.dist != b.dist {
			return a.dist > b.dist
		}
		return a.row > b.row
	}
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.row < b.row
}

func (pq *priorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *priorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
