// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package lru

import (
	"testing"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
)

func TestCache(t *testing.T) {
	h := func(b byte) chainhash.Hash { return chainhash.Hash{b} }
	c := NewCache(2)

	assert.True(t, c.Add(h(1)))
	assert.True(t, c.Add(h(2)))
	assert.False(t, c.Add(h(1)), "1 is already cached")
	assert.Equal(t, 2, c.Len())

	// 2 is now the oldest entry.
	assert.True(t, c.Add(h(3)))
	assert.Equal(t, 2, c.Len())
	h1, h2, h3 := h(1), h(2), h(3)
	assert.True(t, c.Contains(&h1))
	assert.False(t, c.Contains(&h2))
	assert.True(t, c.Contains(&h3))
}
