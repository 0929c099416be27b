// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrwallet/errors"
	"golang.org/x/sync/errgroup"
)

// Default barrier settings.
const (
	DefaultSyncTimeout  = 60 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// SyncOptions bounds the convergence barrier.
type SyncOptions struct {
	// Timeout is the longest SyncAll waits for the nodes to agree.
	Timeout time.Duration

	// PollInterval is the pause between two polling rounds.
	PollInterval time.Duration

	// IgnoreMempool restricts the comparison to the best block.
	IgnoreMempool bool
}

func (o *SyncOptions) withDefaults() SyncOptions {
	opts := *o
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSyncTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return opts
}

// SyncAll blocks until every node reports the same best block hash and
// height and the same set of mempool transactions.  It polls the nodes
// concurrently once per round and returns the agreed views.  When the
// timeout elapses first a *ConvergenceError holding the last observed views
// is returned.  Query failures are returned unchanged.
func SyncAll(ctx context.Context, nodes []Node, opts SyncOptions) ([]NodeView, error) {
	const op errors.Op = "scenario.SyncAll"
	if len(nodes) == 0 {
		return nil, errors.E(op, errors.Invalid, "no nodes")
	}

	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)
	timer := time.NewTimer(0)
	defer timer.Stop()

	var views []NodeView
	for round := 1; ; round++ {
		select {
		case <-ctx.Done():
			return views, errors.E(op, ctx.Err())
		case <-timer.C:
		}

		var err error
		views, err = pollViews(ctx, nodes, !opts.IgnoreMempool)
		if err != nil {
			return views, errors.E(op, err)
		}
		if converged(views, !opts.IgnoreMempool) {
			log.Debugf("Nodes converged at height %d after %d polls",
				views[0].Height, round)
			return views, nil
		}
		if !time.Now().Add(opts.PollInterval).Before(deadline) {
			return views, &ConvergenceError{
				Timeout: opts.Timeout,
				Rounds:  round,
				Views:   views,
			}
		}
		log.Tracef("Nodes not yet converged (round %d)", round)
		timer.Reset(opts.PollInterval)
	}
}

// pollViews queries every node concurrently and joins before returning.
func pollViews(ctx context.Context, nodes []Node, mempool bool) ([]NodeView, error) {
	views := make([]NodeView, len(nodes))
	g, ctx := errgroup.WithContext(ctx)
	for i := range nodes {
		i := i
		g.Go(func() error {
			hash, height, err := nodes[i].BestBlock(ctx)
			if err != nil {
				return errors.E(errors.Op("node "+nodeName(i)), err)
			}
			v := NodeView{Node: i, Hash: hash, Height: height}
			if mempool {
				v.Mempool, err = nodes[i].RawMempool(ctx)
				if err != nil {
					return errors.E(errors.Op("node "+nodeName(i)), err)
				}
				sortHashes(v.Mempool)
			}
			views[i] = v
			return nil
		})
	}
	err := g.Wait()
	return views, err
}

func converged(views []NodeView, mempool bool) bool {
	for i := 1; i < len(views); i++ {
		if views[i].Height != views[0].Height || views[i].Hash != views[0].Hash {
			return false
		}
		if mempool && !equalHashes(views[i].Mempool, views[0].Mempool) {
			return false
		}
	}
	return true
}

func sortHashes(hashes []chainhash.Hash) {
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
}

func equalHashes(a, b []chainhash.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
