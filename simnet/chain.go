// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simnet

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/dcrd/wire"
	"github.com/decred/dcrwallet/errors"
)

// utxoEntry is an unspent output of the main chain.
type utxoEntry struct {
	value    int64
	pkScript []byte
	height   int64
	coinbase bool
}

// txLoc locates a mined transaction.
type txLoc struct {
	height int64
	index  int
}

// chain is a node's view of the main chain.  It never reorganizes: a block
// is accepted only when it extends the current tip.
type chain struct {
	params  *Params
	blocks  []*wire.MsgBlock
	hashes  []chainhash.Hash
	utxos   map[wire.OutPoint]*utxoEntry
	txIndex map[chainhash.Hash]txLoc
}

// genesisBlock returns the block at height zero shared by every node.
func genesisBlock(params *Params) *wire.MsgBlock {
	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			Timestamp: params.GenesisTime,
		},
	}
}

func newChain(params *Params) *chain {
	c := &chain{
		params:  params,
		utxos:   make(map[wire.OutPoint]*utxoEntry),
		txIndex: make(map[chainhash.Hash]txLoc),
	}
	genesis := genesisBlock(params)
	c.blocks = append(c.blocks, genesis)
	c.hashes = append(c.hashes, genesis.BlockHash())
	return c
}

func (c *chain) tip() (chainhash.Hash, int64) {
	h := int64(len(c.blocks) - 1)
	return c.hashes[h], h
}

func (c *chain) height() int64 { return int64(len(c.blocks) - 1) }

// confirmations returns the confirmation count of an output mined at height.
func (c *chain) confirmations(height int64) int64 {
	return c.height() - height + 1
}

// blockHeight returns the height of the main chain block with hash, or -1.
func (c *chain) blockHeight(hash *chainhash.Hash) int64 {
	for i := len(c.hashes) - 1; i >= 0; i-- {
		if c.hashes[i] == *hash {
			return int64(i)
		}
	}
	return -1
}

// tx returns a mined transaction and its location.
func (c *chain) tx(hash *chainhash.Hash) (*wire.MsgTx, txLoc, bool) {
	loc, ok := c.txIndex[*hash]
	if !ok {
		return nil, loc, false
	}
	return c.blocks[loc.height].Transactions[loc.index], loc, true
}

// blockTime is the timestamp of the block at height.
func (c *chain) blockTime(height int64) time.Time {
	return c.params.GenesisTime.Add(time.Duration(height) * c.params.TargetTimePerBlock)
}

// utxoView overlays spends and additions of not yet connected transactions
// on the chain's unspent output set.
type utxoView struct {
	c     *chain
	spent map[wire.OutPoint]struct{}
	added map[wire.OutPoint]*utxoEntry
}

func (c *chain) view() *utxoView {
	return &utxoView{
		c:     c,
		spent: make(map[wire.OutPoint]struct{}),
		added: make(map[wire.OutPoint]*utxoEntry),
	}
}

func (v *utxoView) lookup(op wire.OutPoint) *utxoEntry {
	if _, ok := v.spent[op]; ok {
		return nil
	}
	if e, ok := v.added[op]; ok {
		return e
	}
	return v.c.utxos[op]
}

func (v *utxoView) apply(tx *wire.MsgTx, height int64, coinbase bool) {
	if !coinbase {
		for _, in := range tx.TxIn {
			v.spent[in.PreviousOutPoint] = struct{}{}
		}
	}
	hash := tx.TxHash()
	for i, out := range tx.TxOut {
		if !isPubKeyHash(out.PkScript) {
			continue // unspendable
		}
		op := wire.OutPoint{Hash: hash, Index: uint32(i), Tree: wire.TxTreeRegular}
		v.added[op] = &utxoEntry{
			value:    out.Value,
			pkScript: out.PkScript,
			height:   height,
			coinbase: coinbase,
		}
	}
}

// isCoinbase reports whether tx has the shape of a coinbase transaction.
func isCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prev := &tx.TxIn[0].PreviousOutPoint
	return prev.Index == wire.MaxPrevOutIndex && prev.Hash == (chainhash.Hash{})
}

// checkTransaction validates a regular transaction spending outputs of v at
// tip height tip.  It returns the fee paid and the fewest confirmations of
// any spent output.
func (v *utxoView) checkTransaction(tx *wire.MsgTx, tip int64) (fee int64, minConfs int64, err error) {
	params := v.c.params
	if len(tx.TxIn) == 0 || len(tx.TxOut) == 0 {
		return 0, 0, errors.E(errors.Consensus, "transaction has no inputs or outputs")
	}
	if isCoinbase(tx) {
		return 0, 0, errors.E(errors.Consensus, "unexpected coinbase transaction")
	}

	var out int64
	for _, o := range tx.TxOut {
		if o.Value < 0 || o.Value > dcrutil.MaxAmount {
			return 0, 0, errors.E(errors.Consensus, errors.Errorf("output value %d out of range", o.Value))
		}
		out += o.Value
		if out > dcrutil.MaxAmount {
			return 0, 0, errors.E(errors.Consensus, "total output value out of range")
		}
	}

	var in int64
	minConfs = -1
	seen := make(map[wire.OutPoint]struct{}, len(tx.TxIn))
	for i, txIn := range tx.TxIn {
		op := txIn.PreviousOutPoint
		if _, ok := seen[op]; ok {
			return 0, 0, errors.E(errors.DoubleSpend, errors.Errorf("input %v spent twice", &op))
		}
		seen[op] = struct{}{}

		e := v.lookup(op)
		if e == nil {
			if prev, _, ok := v.c.tx(&op.Hash); ok && int(op.Index) < len(prev.TxOut) {
				return 0, 0, errors.E(errors.DoubleSpend, errors.Errorf("output %v already spent", &op))
			}
			return 0, 0, errors.E(errors.NotExist, errors.Errorf("output %v not found", &op))
		}
		if e.coinbase && !params.mature(e.height, tip) {
			return 0, 0, errors.E(errors.Consensus, errors.Errorf("spend of immature "+
				"coinbase %v mined at height %d (tip %d, maturity %d)", &op,
				e.height, tip, params.CoinbaseMaturity))
		}
		if txIn.ValueIn != e.value {
			return 0, 0, errors.E(errors.Consensus, errors.Errorf("input %d "+
				"value %d does not match output value %d", i, txIn.ValueIn, e.value))
		}
		if err := verifyInput(tx, i, e.pkScript); err != nil {
			return 0, 0, errors.E(errors.Op(fmt.Sprintf("input %d", i)), err)
		}
		in += e.value
		confs := tip - e.height + 1
		if minConfs < 0 || confs < minConfs {
			minConfs = confs
		}
	}
	if in < out {
		return 0, 0, errors.E(errors.Consensus, errors.Errorf("outputs %v exceed inputs %v",
			dcrutil.Amount(out), dcrutil.Amount(in)))
	}
	return in - out, minConfs, nil
}

// checkBlock validates block as the next main chain block and returns the
// view with all of its transactions applied.
func (c *chain) checkBlock(block *wire.MsgBlock) (*utxoView, error) {
	const op errors.Op = "simnet.checkBlock"
	tipHash, tip := c.tip()
	hdr := &block.Header
	if hdr.PrevBlock != tipHash || int64(hdr.Height) != tip+1 {
		return nil, errors.E(op, errors.Consensus, errors.Errorf("block %v at "+
			"height %d does not extend tip %v at height %d", block.BlockHash(),
			hdr.Height, &tipHash, tip))
	}
	if merkleRoot(block.Transactions) != hdr.MerkleRoot {
		return nil, errors.E(op, errors.Consensus, "bad merkle root")
	}
	if len(block.Transactions) == 0 || !isCoinbase(block.Transactions[0]) {
		return nil, errors.E(op, errors.Consensus, "first transaction is not a coinbase")
	}

	height := tip + 1
	v := c.view()
	var fees int64
	for _, tx := range block.Transactions[1:] {
		fee, _, err := v.checkTransaction(tx, tip)
		if err != nil {
			return nil, errors.E(op, err)
		}
		fees += fee
		v.apply(tx, height, false)
	}

	cb := block.Transactions[0]
	var paid int64
	for _, o := range cb.TxOut {
		paid += o.Value
	}
	if max := int64(c.params.Subsidy(height)) + fees; paid > max {
		return nil, errors.E(op, errors.Consensus, errors.Errorf("coinbase pays %v, "+
			"more than subsidy plus fees %v", dcrutil.Amount(paid), dcrutil.Amount(max)))
	}
	v.apply(cb, height, true)
	return v, nil
}

// connect makes block the new tip.  v must be the view checkBlock returned
// for it.
func (c *chain) connect(block *wire.MsgBlock, v *utxoView) {
	height := int64(len(c.blocks))
	c.blocks = append(c.blocks, block)
	c.hashes = append(c.hashes, block.BlockHash())
	for op := range v.spent {
		delete(c.utxos, op)
	}
	for op, e := range v.added {
		if _, ok := v.spent[op]; ok {
			continue
		}
		c.utxos[op] = e
	}
	for i, tx := range block.Transactions {
		c.txIndex[tx.TxHash()] = txLoc{height: height, index: i}
	}
}

// newCoinbase returns the coinbase of a block at height paying value to
// pkScript.  The second output commits to the height so coinbases of
// different blocks never share a hash.
func newCoinbase(height int64, value int64, pkScript []byte) (*wire.MsgTx, error) {
	var h [8]byte
	binary.LittleEndian.PutUint64(h[:], uint64(height))
	commit, err := nullDataScript(h[:])
	if err != nil {
		return nil, errors.E(errors.Bug, err)
	}
	tx := wire.NewMsgTx()
	prev := wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex, wire.TxTreeRegular)
	tx.AddTxIn(wire.NewTxIn(prev, value, nil))
	tx.AddTxOut(wire.NewTxOut(value, pkScript))
	tx.AddTxOut(wire.NewTxOut(0, commit))
	return tx, nil
}

// merkleRoot returns the BLAKE-256 merkle root of the transaction hashes.
func merkleRoot(txs []*wire.MsgTx) chainhash.Hash {
	if len(txs) == 0 {
		return chainhash.Hash{}
	}
	level := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		level[i] = tx.TxHash()
	}
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		var buf [chainhash.HashSize * 2]byte
		for i := range next {
			copy(buf[:chainhash.HashSize], level[2*i][:])
			copy(buf[chainhash.HashSize:], level[2*i+1][:])
			next[i] = chainhash.HashH(buf[:])
		}
		level = next
	}
	return level[0]
}
