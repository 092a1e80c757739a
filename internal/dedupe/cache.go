// Package dedupe remembers recently indexed press releases so the worker
// drops redeliveries and releases republished under a new id.
package dedupe

import (
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Key fingerprints a release by its normalised content: letter case and
// whitespace differences between two copies do not change the key.
func Key(source, title, text string) uint64 {
	d := xxhash.New()
	for _, part := range []string{source, title, text} {
		_, _ = d.WriteString(strings.Join(strings.Fields(strings.ToLower(part)), " "))
		_, _ = d.WriteString("\x00")
	}
	return d.Sum64()
}

type stamp struct {
	key uint64
	seq uint64
	at  time.Time
}

// Cache is a bounded set of release keys with a ttl. Once full, the oldest
// mark is forgotten first.
type Cache struct {
	mu       sync.Mutex
	seen     map[uint64]stamp
	marks    []stamp
	seq      uint64
	capacity int
	ttl      time.Duration
}

// NewCache creates a cache holding up to capacity keys for ttl each.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		seen:     make(map[uint64]stamp, capacity),
		marks:    make([]stamp, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// IsSeen reports whether key was marked within the ttl window. It does not
// mark the key; call MarkSeen once the release has been indexed.
func (c *Cache) IsSeen(key uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.seen[key]
	return ok && time.Now().Sub(s.at) <= c.ttl
}

// MarkSeen records key as indexed now.
func (c *Cache) MarkSeen(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.seq++
	s := stamp{key: key, seq: c.seq, at: now}
	c.seen[key] = s
	c.marks = append(c.marks, s)
	c.evict(now)
}

// Len returns the number of keys currently remembered.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) evict(now time.Time) {
	cutoff := now.Add(-c.ttl)
	drop := 0
	for drop < len(c.marks) && (len(c.seen) > c.capacity || c.marks[drop].at.Before(cutoff)) {
		m := c.marks[drop]
		drop++
		// a re-marked key has a newer stamp further down the queue
		if cur, ok := c.seen[m.key]; ok && cur.seq == m.seq {
			delete(c.seen, m.key)
		}
	}
	if drop > 0 {
		c.marks = append(c.marks[:0], c.marks[drop:]...)
	}
}
