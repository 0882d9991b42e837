package raster

import (
	"container/list"
	"image"
	"sync"
)

// Key identifies one cached page render.
type Key struct {
	Page     int
	Zoom     float64
	Rotation int
}

type entry struct {
	key  Key
	img  image.Image
	size int64
}

// Cache is a byte-bounded LRU of page renders. A full-page bitmap at high
// zoom is large, so eviction is by memory, not entry count.
type Cache struct {
	mu       sync.Mutex
	maxBytes int64
	bytes    int64
	order    *list.List
	entries  map[Key]*list.Element
}

// NewCache returns a cache bounded to maxBytes. maxBytes <= 0 disables
// caching entirely.
func NewCache(maxBytes int64) *Cache {
	return &Cache{
		maxBytes: maxBytes,
		order:    list.New(),
		entries:  make(map[Key]*list.Element),
	}
}

// Get returns the cached render and marks it most recently used.
func (c *Cache) Get(key Key) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).img, true
}

// Put stores a render, evicting the least recently used entries until the
// byte budget holds.
func (c *Cache) Put(key Key, img image.Image) {
	if c.maxBytes <= 0 || img == nil {
		return
	}

	size := imageBytes(img)
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.bytes -= el.Value.(*entry).size
		c.order.Remove(el)
		delete(c.entries, key)
	}

	for c.bytes+size > c.maxBytes {
		back := c.order.Back()
		if back == nil {
			break
		}
		ev := back.Value.(*entry)
		c.bytes -= ev.size
		c.order.Remove(back)
		delete(c.entries, ev.key)
	}

	el := c.order.PushFront(&entry{key: key, img: img, size: size})
	c.entries[key] = el
	c.bytes += size
}

// InvalidatePage drops every cached render of one page.
func (c *Cache) InvalidatePage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, el := range c.entries {
		if key.Page != page {
			continue
		}
		c.bytes -= el.Value.(*entry).size
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[Key]*list.Element)
	c.bytes = 0
}

// Bytes returns the current memory footprint.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Len returns the number of cached renders.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func imageBytes(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
