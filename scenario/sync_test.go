// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrwallet/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncAllConverged(t *testing.T) {
	fakes, nodes := fakeNodes(3, dcrutil.AtomsPerCoin)
	for _, f := range fakes {
		f.setTip(10)
	}
	views, err := SyncAll(context.Background(), nodes, fastSync)
	require.NoError(t, err)
	require.Len(t, views, 3)
	for i, v := range views {
		assert.Equal(t, i, v.Node)
		assert.Equal(t, int64(10), v.Height)
	}

	// A second barrier on unchanged nodes returns at once with the same
	// views.
	again, err := SyncAll(context.Background(), nodes, fastSync)
	require.NoError(t, err)
	assert.Equal(t, views, again)
}

func TestSyncAllNoNodes(t *testing.T) {
	views, err := SyncAll(context.Background(), nil, fastSync)
	assert.Nil(t, views)
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
}

func TestSyncAllWaits(t *testing.T) {
	fakes, nodes := fakeNodes(2, dcrutil.AtomsPerCoin)
	fakes[0].setTip(5)
	go func() {
		time.Sleep(20 * time.Millisecond)
		fakes[1].setTip(5)
	}()
	views, err := SyncAll(context.Background(), nodes,
		SyncOptions{Timeout: 5 * time.Second, PollInterval: 2 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, int64(5), views[1].Height)
}

func TestSyncAllTimeout(t *testing.T) {
	fakes, nodes := fakeNodes(2, dcrutil.AtomsPerCoin)
	fakes[0].setTip(1)
	fakes[1].setTip(2)
	start := time.Now()
	_, err := SyncAll(context.Background(), nodes, fastSync)
	require.Error(t, err)
	assert.True(t, time.Since(start) >= fastSync.Timeout-fastSync.PollInterval)

	cerr, ok := err.(*ConvergenceError)
	require.True(t, ok, "%T: %v", err, err)
	assert.Equal(t, fastSync.Timeout, cerr.Timeout)
	assert.True(t, cerr.Rounds > 1)
	require.Len(t, cerr.Views, 2)
	assert.Equal(t, int64(1), cerr.Views[0].Height)
	assert.Equal(t, int64(2), cerr.Views[1].Height)
	assert.Contains(t, cerr.Error(), "B: height 2")
}

func TestSyncAllMempool(t *testing.T) {
	fakes, nodes := fakeNodes(2, dcrutil.AtomsPerCoin)
	tx1, tx2 := chainhash.HashH([]byte("1")), chainhash.HashH([]byte("2"))
	fakes[0].mempool = []chainhash.Hash{tx1, tx2}
	fakes[1].mempool = []chainhash.Hash{tx2}

	_, err := SyncAll(context.Background(), nodes, fastSync)
	_, ok := err.(*ConvergenceError)
	assert.True(t, ok, "%v", err)

	// Order does not matter, and the comparison can be skipped.
	fakes[1].mempool = []chainhash.Hash{tx2, tx1}
	_, err = SyncAll(context.Background(), nodes, fastSync)
	assert.NoError(t, err)

	fakes[1].mempool = nil
	opts := fastSync
	opts.IgnoreMempool = true
	_, err = SyncAll(context.Background(), nodes, opts)
	assert.NoError(t, err)
}

func TestSyncAllQueryError(t *testing.T) {
	fakes, nodes := fakeNodes(2, dcrutil.AtomsPerCoin)
	fakes[1].bestErr = errors.E(errors.IO, "connection refused")
	_, err := SyncAll(context.Background(), nodes, fastSync)
	require.Error(t, err)
	assert.True(t, errors.Is(errors.IO, err))
	assert.Contains(t, err.Error(), "node B")
}

func TestSyncAllCanceled(t *testing.T) {
	fakes, nodes := fakeNodes(2, dcrutil.AtomsPerCoin)
	fakes[1].setTip(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SyncAll(ctx, nodes, SyncOptions{Timeout: time.Minute})
	require.Error(t, err)
	_, ok := err.(*ConvergenceError)
	assert.False(t, ok)
}
