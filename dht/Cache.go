/*
File Name:  Cache.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

Value Cache: a bounded key→value map with insertion-recency eviction, per
spec.md §3/§4.2. Adapted from the teacher's Store.go (which kept a
hand-rolled in-memory map) by swapping the recency/eviction core for
hashicorp/golang-lru's generic Cache, the library the rest of the retrieval
pack (go-ethereum's p2p/discover and two other_examples DHT/sync
implementations) reaches for exactly this job. An optional store.Store
backend, adapted from the teacher's own store package, can be attached for
write-through persistence across restarts; it never participates in
eviction or recency decisions.
*/

package dht

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kadcore/node/store"
)

// DefaultCacheCapacity is the default maximum entry count, per spec.md §3.
const DefaultCacheCapacity = 100_000

// Allowed key lengths, per spec.md §3.
var AllowedKeyLengths = [3]int{20, 32, 64}

// MaxValueLength is the maximum permitted value size, per spec.md §3.
const MaxValueLength = 4096

// ValueCache is the bounded key/value store described in spec.md §4.2. It
// does not itself enforce key/value length policy — that is the
// Dispatcher's job, per spec.md §4.2's note that the cache only inspects
// opaque bytes.
type ValueCache struct {
	lru      *lru.Cache[string, []byte]
	capacity int
	backend  store.Store // optional, may be nil
}

// NewValueCache creates a cache with the given capacity and no durable
// backend.
func NewValueCache(capacity int) *ValueCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	c, _ := lru.New[string, []byte](capacity)
	return &ValueCache{lru: c, capacity: capacity}
}

// WithBackend attaches a durable store. Any entries already present in the
// backend are not eagerly loaded — they are hydrated lazily on a cache miss
// in Get, so startup stays O(1) regardless of how much was persisted.
func (c *ValueCache) WithBackend(backend store.Store) *ValueCache {
	c.backend = backend
	return c
}

// Get returns the value for k, marking it most-recently-used on a hit. On a
// cache miss, it falls through to the durable backend (if attached) and, if
// found there, repopulates the in-memory LRU.
func (c *ValueCache) Get(k []byte) (v []byte, found bool) {
	if v, found = c.lru.Get(string(k)); found {
		return v, true
	}
	if c.backend == nil {
		return nil, false
	}
	if v, found = c.backend.Get(k); found {
		c.lru.Add(string(k), v)
		return v, true
	}
	return nil, false
}

// Put inserts or refreshes k. On overflow the least-recently-used entry is
// evicted from the in-memory LRU; the durable backend (if attached) is
// never pruned by eviction, only ever written to.
func (c *ValueCache) Put(k, v []byte) {
	c.lru.Add(string(k), v)
	if c.backend != nil {
		c.backend.Set(k, v)
	}
}

// Contains reports whether k is present, without altering recency.
func (c *ValueCache) Contains(k []byte) bool {
	if c.lru.Contains(string(k)) {
		return true
	}
	if c.backend == nil {
		return false
	}
	_, found := c.backend.Get(k)
	return found
}

// Len returns the current in-memory entry count.
func (c *ValueCache) Len() int {
	return c.lru.Len()
}

// Cap returns the configured capacity.
func (c *ValueCache) Cap() int {
	return c.capacity
}

// ValidKeyLength reports whether n is one of the key lengths spec.md §3
// allows: 20, 32, or 64 bytes.
func ValidKeyLength(n int) bool {
	for _, allowed := range AllowedKeyLengths {
		if n == allowed {
			return true
		}
	}
	return false
}
