package embed

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// Cached is an LRU cache of embeddings in front of a Provider.
//
// Repeated texts, typically search queries, are answered without a provider
// call. Failed calls are not cached. Returned vectors are copies.
type Cached struct {
	p Provider

	mu        sync.Mutex
	capacity  int
	items     map[string]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	text string
	vec  []float64
}

var _ BatchProvider = (*Cached)(nil)

// NewCached wraps p with an LRU cache holding up to capacity texts.
func NewCached(p Provider, capacity int) *Cached {
	return &Cached{
		p:         p,
		capacity:  max(capacity, 1),
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Embed implements Provider.
func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := c.get(text); ok {
		return v, nil
	}
	v, err := c.p.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.set(text, v)
	return slices.Clone(v), nil
}

// EmbedBatch implements BatchProvider. Only the texts missing from the cache
// are sent to the provider.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	var (
		missing []string
		pos     []int
	)
	for i, t := range texts {
		if v, ok := c.get(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		pos = append(pos, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var (
		vecs [][]float64
		err  error
	)
	if bp, ok := c.p.(BatchProvider); ok {
		vecs, err = bp.EmbedBatch(ctx, missing)
	} else {
		vecs = make([][]float64, len(missing))
		for i, t := range missing {
			if vecs[i], err = c.p.Embed(ctx, t); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	for i, v := range vecs {
		c.set(missing[i], v)
		out[pos[i]] = slices.Clone(v)
	}
	return out, nil
}

// Dimension implements Provider.
func (c *Cached) Dimension() int { return c.p.Dimension() }

// Stats returns the number of cache hits and misses.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached texts.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *Cached) get(text string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[text]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return slices.Clone(ent.Value.(*cacheEntry).vec), true
	}
	c.misses.Add(1)
	return nil, false
}

func (c *Cached) set(text string, vec []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[text]; ok {
		c.evictList.MoveToFront(ent)
		ent.Value.(*cacheEntry).vec = slices.Clone(vec)
		return
	}

	c.items[text] = c.evictList.PushFront(&cacheEntry{text: text, vec: slices.Clone(vec)})
	for c.evictList.Len() > c.capacity {
		c.removeElement(c.evictList.Back())
	}
}

func (c *Cached) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	delete(c.items, e.Value.(*cacheEntry).text)
}
