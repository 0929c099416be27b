// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simnet

import (
	"sort"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrd/wire"
	"github.com/decred/dcrwallet/errors"
)

type mempoolTx struct {
	tx   *wire.MsgTx
	hash chainhash.Hash
	fee  int64
	seq  uint64
}

// mempool holds transactions waiting to be mined.  Transactions may only
// spend outputs of the main chain.
type mempool struct {
	params *Params
	txs    map[chainhash.Hash]*mempoolTx
	spends map[wire.OutPoint]chainhash.Hash
	seq    uint64
}

func newMempool(params *Params) *mempool {
	return &mempool{
		params: params,
		txs:    make(map[chainhash.Hash]*mempoolTx),
		spends: make(map[wire.OutPoint]chainhash.Hash),
	}
}

func (mp *mempool) have(hash *chainhash.Hash) bool {
	_, ok := mp.txs[*hash]
	return ok
}

// spender returns the mempool transaction spending op, if any.
func (mp *mempool) spender(op wire.OutPoint) (chainhash.Hash, bool) {
	h, ok := mp.spends[op]
	return h, ok
}

// accept validates tx against the chain and relay policy and adds it.
func (mp *mempool) accept(c *chain, tx *wire.MsgTx, allowHighFees bool) (*mempoolTx, error) {
	const op errors.Op = "mempool.accept"
	hash := tx.TxHash()
	if mp.have(&hash) {
		return nil, errors.E(op, errors.Exist, errors.Errorf("already have transaction %v", &hash))
	}
	if _, _, ok := c.tx(&hash); ok {
		return nil, errors.E(op, errors.Exist, errors.Errorf("transaction %v is already mined", &hash))
	}
	for _, in := range tx.TxIn {
		if other, ok := mp.spends[in.PreviousOutPoint]; ok {
			return nil, errors.E(op, errors.DoubleSpend, errors.Errorf("output %v "+
				"already spent by mempool transaction %v", &in.PreviousOutPoint, &other))
		}
		if _, ok := mp.txs[in.PreviousOutPoint.Hash]; ok {
			return nil, errors.E(op, errors.Policy, errors.Errorf("output %v "+
				"is unconfirmed", &in.PreviousOutPoint))
		}
	}

	fee, minConfs, err := c.view().checkTransaction(tx, c.height())
	if err != nil {
		return nil, errors.E(op, err)
	}
	if minConfs < mp.params.FreeRelayConfirmations && fee < int64(mp.params.RelayFee) {
		return nil, errors.E(op, errors.Policy, errors.Errorf("fee %v below "+
			"relay fee %v for inputs with %d confirmations", dcrutil.Amount(fee),
			mp.params.RelayFee, minConfs))
	}
	if fee > int64(mp.params.HighFee) && !allowHighFees {
		return nil, errors.E(op, errors.Policy, errors.Errorf("fee %v is "+
			"absurdly high", dcrutil.Amount(fee)))
	}

	mp.seq++
	m := &mempoolTx{tx: tx, hash: hash, fee: fee, seq: mp.seq}
	mp.txs[hash] = m
	for _, in := range tx.TxIn {
		mp.spends[in.PreviousOutPoint] = hash
	}
	return m, nil
}

func (mp *mempool) remove(m *mempoolTx) {
	delete(mp.txs, m.hash)
	for _, in := range m.tx.TxIn {
		if mp.spends[in.PreviousOutPoint] == m.hash {
			delete(mp.spends, in.PreviousOutPoint)
		}
	}
}

// blockConnected removes mined transactions and any transaction whose
// inputs are no longer unspent.
func (mp *mempool) blockConnected(c *chain, block *wire.MsgBlock) {
	for _, tx := range block.Transactions {
		h := tx.TxHash()
		if m, ok := mp.txs[h]; ok {
			mp.remove(m)
		}
	}
	for _, m := range mp.sorted() {
		for _, in := range m.tx.TxIn {
			if _, ok := c.utxos[in.PreviousOutPoint]; !ok {
				log.Debugf("Evicting conflicting transaction %v", &m.hash)
				mp.remove(m)
				break
			}
		}
	}
}

// sorted returns the transactions in arrival order.
func (mp *mempool) sorted() []*mempoolTx {
	txs := make([]*mempoolTx, 0, len(mp.txs))
	for _, m := range mp.txs {
		txs = append(txs, m)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].seq < txs[j].seq })
	return txs
}
