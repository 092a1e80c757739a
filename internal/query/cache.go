package query

import (
	"container/list"
	"sync"
)

type cacheEntry struct {
	key    uint64
	result *Result
}

// resultCache keeps the most recently used results up to capacity.
type resultCache struct {
	mu       sync.Mutex
	items    map[uint64]*list.Element
	order    *list.List
	capacity int
}

func newResultCache(capacity int) *resultCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &resultCache{
		items:    make(map[uint64]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
	}
}

func (c *resultCache) Get(key uint64) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

func (c *resultCache) Add(key uint64, res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).result = res
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, result: res})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *resultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[uint64]*list.Element, c.capacity)
	c.order.Init()
}

func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
