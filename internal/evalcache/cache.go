// Package evalcache implements a bounded, thread-safe fingerprint to
// (value, priors) mapping. It is sharded by the low byte of the
// fingerprint so that concurrent workers rarely contend on the same
// shard's mutex, with per-shard FIFO eviction as an approximate,
// cheap-to-maintain bounded policy in place of a true LRU.
package evalcache

import (
	"sync"
	"sync/atomic"

	"chessmcts/internal/game"
)

const numShards = 256

// Entry is one cached evaluation: the NN's value output and its priors,
// keyed by dense move index.
type Entry struct {
	Value  float32
	Priors map[int]float32
}

type shard struct {
	mu    sync.RWMutex
	byKey map[game.Fingerprint]Entry
	order []game.Fingerprint
}

// Cache is the bounded, concurrent evaluation cache shared across
// workers and across successive searches.
type Cache struct {
	shards      [numShards]*shard
	maxPerShard int

	hits   uint64
	misses uint64
}

// New returns a cache whose entries are spread evenly across shards.
// Each shard holds capacity/numShards entries, rounded down, but at
// least one, so the total is capacity rounded down to a multiple of
// numShards, and numShards when capacity is below that.
func New(capacity int) *Cache {
	perShard := capacity / numShards
	if perShard < 1 {
		perShard = 1
	}
	c := &Cache{maxPerShard: perShard}
	for i := range c.shards {
		c.shards[i] = &shard{
			byKey: make(map[game.Fingerprint]Entry),
			order: make([]game.Fingerprint, 0, perShard),
		}
	}
	return c
}

func (c *Cache) shardFor(h game.Fingerprint) *shard {
	return c.shards[byte(h)]
}

// Contains reports whether h is cached, without affecting hit/miss
// counters or eviction order.
func (c *Cache) Contains(h game.Fingerprint) bool {
	s := c.shardFor(h)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[h]
	return ok
}

// Lookup returns the cached entry for h, if any.
func (c *Cache) Lookup(h game.Fingerprint) (Entry, bool) {
	s := c.shardFor(h)
	s.mu.RLock()
	e, ok := s.byKey[h]
	s.mu.RUnlock()
	if ok {
		atomic.AddUint64(&c.hits, 1)
	} else {
		atomic.AddUint64(&c.misses, 1)
	}
	return e, ok
}

// Insert records e under h, evicting the shard's oldest entry if it is
// at capacity. Re-inserting an existing key updates its value in place
// without touching eviction order.
func (c *Cache) Insert(h game.Fingerprint, e Entry) {
	s := c.shardFor(h)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[h]; exists {
		s.byKey[h] = e
		return
	}
	for len(s.byKey) >= c.maxPerShard && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.byKey, oldest)
	}
	s.byKey[h] = e
	s.order = append(s.order, h)
}

// Size returns the number of entries currently cached.
func (c *Cache) Size() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.byKey)
		s.mu.RUnlock()
	}
	return total
}

// Capacity returns the cache's total capacity across all shards.
func (c *Cache) Capacity() int {
	return c.maxPerShard * numShards
}

// HashFullPermille reports cache fullness in permille (0-1000), the unit
// the orchestrator's progress reports use.
func (c *Cache) HashFullPermille() int64 {
	cap := c.Capacity()
	if cap == 0 {
		return 0
	}
	return int64(c.Size()) * 1000 / int64(cap)
}
