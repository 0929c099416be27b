// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scenario

import (
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v2"
)

// SweptOutput records one output moved by a Sweep step.
type SweptOutput struct {
	Owner    int
	Receiver int
	Utxo     Utxo
	Value    dcrutil.Amount // value paid to the receiver
	TxID     chainhash.Hash
}

// Ledger is the runner's bookkeeping of what the scenario did: which node
// mined every height, the subsidy paid at that height, and the totals moved
// between nodes.  Expected balances are resolved against it.
type Ledger struct {
	maturity int64
	tip      int64

	miner   map[int64]int
	subsidy map[int64]dcrutil.Amount

	sent     map[int]dcrutil.Amount
	received map[int]dcrutil.Amount

	swept       []SweptOutput
	lastRelayed *chainhash.Hash
}

func newLedger(maturity int64) *Ledger {
	return &Ledger{
		maturity: maturity,
		miner:    make(map[int64]int),
		subsidy:  make(map[int64]dcrutil.Amount),
		sent:     make(map[int]dcrutil.Amount),
		received: make(map[int]dcrutil.Amount),
	}
}

// Tip returns the highest block height recorded.
func (l *Ledger) Tip() int64 { return l.tip }

// Maturity returns the coinbase maturity the ledger was created with.
func (l *Ledger) Maturity() int64 { return l.maturity }

func (l *Ledger) recordBlock(node int, height int64, subsidy dcrutil.Amount) {
	l.miner[height] = node
	l.subsidy[height] = subsidy
	if height > l.tip {
		l.tip = height
	}
}

func (l *Ledger) recordPayment(from, to int, amount dcrutil.Amount) {
	l.sent[from] += amount
	l.received[to] += amount
}

func (l *Ledger) recordSweep(s SweptOutput) {
	l.swept = append(l.swept, s)
	l.recordPayment(s.Owner, s.Receiver, s.Value)
	l.recordRelay(&s.TxID)
}

func (l *Ledger) recordRelay(txid *chainhash.Hash) {
	h := *txid
	l.lastRelayed = &h
}

// Mature reports whether a coinbase mined at height may be spent at the
// recorded tip.
func (l *Ledger) Mature(height int64) bool {
	return l.tip-height+1 > l.maturity
}

// MinedHeights returns the heights mined by node in ascending order.
func (l *Ledger) MinedHeights(node int) []int64 {
	var heights []int64
	for h := int64(1); h <= l.tip; h++ {
		if n, ok := l.miner[h]; ok && n == node {
			heights = append(heights, h)
		}
	}
	return heights
}

// MaturedSubsidy sums the subsidies of all blocks mined by node that are
// mature at the recorded tip.
func (l *Ledger) MaturedSubsidy(node int) dcrutil.Amount {
	var sum dcrutil.Amount
	for _, h := range l.MinedHeights(node) {
		if l.Mature(h) {
			sum += l.subsidy[h]
		}
	}
	return sum
}

// Sent returns the total node paid out through Pay, BroadcastRaw and Sweep
// steps.
func (l *Ledger) Sent(node int) dcrutil.Amount { return l.sent[node] }

// Received returns the total node received through Pay, BroadcastRaw and
// Sweep steps.
func (l *Ledger) Received(node int) dcrutil.Amount { return l.received[node] }

// Swept returns the outputs moved by Sweep steps.
func (l *Ledger) Swept() []SweptOutput { return l.swept }

// LastRelayed returns the last raw transaction relayed, or nil.
func (l *Ledger) LastRelayed() *chainhash.Hash { return l.lastRelayed }
