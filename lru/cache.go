// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package lru

import (
	"container/list"
	"sync"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// Cache is a bounded set of hashes that evicts the least recently added hash
// once full.  The zero value is not valid and Caches must be created with
// NewCache.  All Cache methods are concurrent safe.
type Cache struct {
	mu    sync.Mutex
	m     map[chainhash.Hash]*list.Element
	list  *list.List
	limit int
}

// NewCache creates an initialized and empty LRU cache holding at most limit
// hashes.
func NewCache(limit int) *Cache {
	return &Cache{
		m:     make(map[chainhash.Hash]*list.Element, limit),
		list:  list.New(),
		limit: limit,
	}
}

// Add adds hash to the cache, evicting the oldest hash if the cache is full.
// A hash already present is marked as the most recently added.  Add reports
// whether hash was not yet a member.
func (c *Cache) Add(hash chainhash.Hash) bool {
	defer c.mu.Unlock()
	c.mu.Lock()

	if elem, ok := c.m[hash]; ok {
		c.list.MoveToFront(elem)
		return false
	}

	if len(c.m) >= c.limit {
		if elem := c.list.Back(); elem != nil {
			delete(c.m, c.list.Remove(elem).(chainhash.Hash))
		}
	}

	c.m[hash] = c.list.PushFront(hash)
	return true
}

// Contains checks whether hash is a member of the cache.
func (c *Cache) Contains(hash *chainhash.Hash) bool {
	c.mu.Lock()
	_, ok := c.m[*hash]
	c.mu.Unlock()
	return ok
}

// Len returns the number of cached hashes.
func (c *Cache) Len() int {
	c.mu.Lock()
	n := len(c.m)
	c.mu.Unlock()
	return n
}
